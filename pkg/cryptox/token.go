package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// Token sizes in bytes of entropy before encoding.
const (
	TokenSize128 = 16
	TokenSize256 = 32
)

// GenerateToken returns a URL-safe random token with size bytes of entropy.
// The result is base64url-encoded without padding.
func GenerateToken(size int) (string, error) {
	raw := make([]byte, size)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// FingerprintToken returns the SHA-256 digest of a token, base64url-encoded.
// Only fingerprints are persisted; the plaintext token travels to the user
// exactly once.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
