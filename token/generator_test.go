package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecureGenerator_Generate(t *testing.T) {
	gen := NewSecureGenerator()

	tok, err := gen.Generate()
	require.NoError(t, err)

	// 32 bytes of entropy encode to 43 base64url characters, no padding.
	assert.Len(t, tok, 43)
	assert.False(t, strings.ContainsAny(tok, "+/="), "token must be URL-safe: %q", tok)
}

func TestSecureGenerator_Uniqueness(t *testing.T) {
	gen := NewSecureGenerator()
	seen := make(map[string]struct{}, 1000)

	for i := 0; i < 1000; i++ {
		tok, err := gen.Generate()
		require.NoError(t, err)

		_, dup := seen[tok]
		require.False(t, dup, "duplicate token generated: %q", tok)
		seen[tok] = struct{}{}
	}
}
