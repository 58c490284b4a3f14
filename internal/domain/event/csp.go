package event

import (
	"encoding/json"
	"net/url"
	"strings"

	"faultline/internal/domain/ingest"
)

// CSPReport is the browser-sent Content-Security-Policy violation shape.
// Keys arrive kebab-cased inside a csp-report wrapper.
type CSPReport struct {
	BlockedURI         string `json:"blocked-uri,omitempty"`
	DocumentURI        string `json:"document-uri,omitempty"`
	EffectiveDirective string `json:"effective-directive,omitempty"`
	ViolatedDirective  string `json:"violated-directive,omitempty"`
	OriginalPolicy     string `json:"original-policy,omitempty"`
	Disposition        string `json:"disposition,omitempty"`
	Referrer           string `json:"referrer,omitempty"`
	StatusCode         int    `json:"status-code,omitempty"`
	SourceFile         string `json:"source-file,omitempty"`
	LineNumber         int    `json:"line-number,omitempty"`
}

func ParseCSPReport(raw json.RawMessage) (*CSPReport, error) {
	var report CSPReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, &ingest.ValidationError{Reason: "csp-report is not an object"}
	}
	if report.EffectiveDirective == "" && report.ViolatedDirective == "" {
		return nil, &ingest.ValidationError{Reason: "csp-report carries no directive"}
	}
	return &report, nil
}

// Directive prefers effective-directive, falling back to the first token of
// violated-directive, with any -src suffix stripped for display.
func (r *CSPReport) Directive() string {
	directive := r.EffectiveDirective
	if directive == "" {
		directive, _, _ = strings.Cut(strings.TrimSpace(r.ViolatedDirective), " ")
	}
	return strings.TrimSuffix(directive, "-src")
}

// BlockedHost is the netloc of blocked-uri; scheme-less values such as
// "eval" or "inline" come back as-is.
func (r *CSPReport) BlockedHost() string {
	uri := strings.TrimSpace(r.BlockedURI)
	if uri == "" {
		return ""
	}
	if parsed, err := url.Parse(uri); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return uri
}

func (r *CSPReport) title() string {
	return "Blocked '" + r.Directive() + "' from '" + r.BlockedHost() + "'"
}

func (r *CSPReport) culprit() string {
	return r.ViolatedDirective
}
