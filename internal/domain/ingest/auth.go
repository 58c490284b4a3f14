package ingest

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// ExtractPublicKey pulls the DSN public key from a request, in priority
// order: sentry_key/glitchtip_key query parameter, then the structured
// X-Sentry-Auth / Authorization header ("Sentry k1=v1, k2=v2").
func ExtractPublicKey(query url.Values, header http.Header) (string, error) {
	if key := strings.TrimSpace(query.Get("sentry_key")); key != "" {
		return key, nil
	}
	if key := strings.TrimSpace(query.Get("glitchtip_key")); key != "" {
		return key, nil
	}

	for _, name := range []string{"X-Sentry-Auth", "Authorization"} {
		raw := strings.TrimSpace(header.Get(name))
		if raw == "" {
			continue
		}
		if key := parseAuthHeader(raw)["sentry_key"]; key != "" {
			return key, nil
		}
	}

	return "", &AuthenticationError{Reason: "unable to find authentication information"}
}

// ParseKey validates the public key as a UUID and returns its canonical
// dashed lowercase form, the shape project_keys stores.
func ParseKey(key string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(key))
	if err != nil {
		return "", &ValidationError{Reason: "badly formed hexadecimal UUID string"}
	}
	return parsed.String(), nil
}

func parseAuthHeader(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(raw, "Sentry "); ok {
		raw = rest
	}

	pairs := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		pairs[key] = value
	}
	return pairs
}
