// Package secrets holds the primitives for raw token secrets: generation,
// one-way hashing for storage, and constant-time comparison of digests.
package secrets

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
)

const secretBytes = 32

// NewSecret returns a cryptographically random secret, hex-encoded.
// Suitable for email-token secrets and refresh credentials.
func NewSecret() (string, error) {
	raw := make([]byte, secretBytes)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// Hasher produces the stored representation of a raw secret. With a pepper
// key it uses HMAC-SHA256; without one it falls back to plain SHA-256.
type Hasher struct {
	pepper []byte
}

func NewHasher(pepper []byte) *Hasher {
	return &Hasher{pepper: pepper}
}

// Hash returns the hex digest of raw. The output is what gets persisted;
// the raw secret never is.
func (h *Hasher) Hash(raw string) string {
	if len(h.pepper) > 0 {
		m := hmac.New(sha256.New, h.pepper)
		m.Write([]byte(raw))
		return hex.EncodeToString(m.Sum(nil))
	}
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Equal compares two digests in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
