package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Fingerprint returns the hex-encoded SHA-256 of a refresh token. Only the fingerprint
// is ever stored; the raw token cannot be recovered from it.
func Fingerprint(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// FingerprintEqual reports whether two fingerprints match, in constant time.
// Empty fingerprints never match.
func FingerprintEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
