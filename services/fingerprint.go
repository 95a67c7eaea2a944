package services

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns the SHA-256 digest of raw bytes as lowercase hex.
// The same bytes always produce the same digest regardless of filename or
// metadata; it is the identity used for dedup and staleness detection.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashText fingerprints a text body. Used as the content hash that gates
// re-indexing.
func HashText(text string) string {
	return Fingerprint([]byte(text))
}
