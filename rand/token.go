// Package rand provides a cryptographically unpredictable token generator.
package rand

import (
	"crypto/rand"
	"encoding/base64"
)

// TokenGenerator generates URL-safe tokens from crypto/rand bytes. The zero
// value is not usable; construct with NewTokenGenerator.
type TokenGenerator struct {
	size int
}

// NewTokenGenerator returns a token generator producing tokens of n random
// bytes. Values below 32 are raised to 32 so tokens guarding write and
// master access stay unguessable.
func NewTokenGenerator(n int) *TokenGenerator {
	if n < 32 {
		n = 32
	}
	return &TokenGenerator{size: n}
}

// Token returns a random token.
func (g *TokenGenerator) Token() (string, error) {
	b := make([]byte, g.size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
