package common

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sha256Hex returns the SHA-256 digest of the input encoded as lowercase hex.
func Sha256Hex(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// PhotoFingerprint derives the stored content fingerprint for a reference
// photo. Blank references produce no fingerprint so history records created
// without a photo never block a later repeat-order discount.
func PhotoFingerprint(photoURL string) string {
	trimmed := strings.TrimSpace(photoURL)
	if trimmed == "" {
		return ""
	}
	return Sha256Hex(trimmed)
}
