// Package identity computes content-addressed record identifiers.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Compute derives the record identifier from the aggregated content and
// the canonical detail URL. The hash covers both, so republished content
// under the same URL yields a new identity while unchanged content never
// reprocesses. Content is trimmed first; a page with no extractable text
// falls back to hashing the URL against itself, keeping the id stable.
func Compute(content, detailURL string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		trimmed = detailURL
	}
	sum := sha256.Sum256([]byte(trimmed + "\n" + detailURL))
	return hex.EncodeToString(sum[:])
}
