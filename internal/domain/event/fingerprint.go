package event

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// DefaultFingerprintToken is the client-side sentinel meaning "use the
// server's default grouping key in this position".
const DefaultFingerprintToken = "{{ default }}"

// GenerateHash computes the grouping hash over UTF-8 bytes of
// title + culprit + type label, or over the concatenated fingerprint
// elements with the default token substituted by that string.
//
// md5 is deliberate: the hash only needs to be fast, stable, and
// low-collision across one organization's event stream, not cryptographic.
// The input construction must stay bit-for-bit stable or existing stored
// hashes stop matching.
func GenerateHash(title string, culprit string, t Type, fingerprint []string) string {
	base := title + culprit + t.String()

	input := base
	if len(fingerprint) > 0 {
		var b strings.Builder
		for _, part := range fingerprint {
			if part == DefaultFingerprintToken {
				b.WriteString(base)
			} else {
				b.WriteString(part)
			}
		}
		input = b.String()
	}

	sum := md5.Sum([]byte(input))
	return hex.EncodeToString(sum[:])
}

// Hash is the grouping hash of a normalized event.
func (n *Normalized) Hash() string {
	return GenerateHash(n.Title(), n.CulpritValue(), n.Type, n.Fingerprint)
}
