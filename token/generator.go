// Package token mints the opaque values used for access tokens, refresh
// tokens and authorization codes.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// entropyBytes is the number of random bytes per token: 256 bits.
const entropyBytes = 32

// Generator produces opaque token values.
type Generator interface {
	// Generate returns a new URL-safe opaque identifier. An error means the
	// randomness source is unavailable, which is fatal and non-retryable.
	Generate() (string, error)
}

// SecureGenerator is the production Generator, backed by crypto/rand.
type SecureGenerator struct{}

// NewSecureGenerator creates a new [SecureGenerator].
func NewSecureGenerator() *SecureGenerator {
	return &SecureGenerator{}
}

// Generate implements Generator.
func (*SecureGenerator) Generate() (string, error) {
	buf := make([]byte, entropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("randomness source unavailable: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}
