// Package mock provides deterministic generators for tests.
package mock

import (
	"fmt"
	"sync/atomic"

	"github.com/analyticshq/metastore"
)

// IDGenerator is a mock metastore.IDGenerator.
type IDGenerator struct {
	IDFn func() uint64
}

var _ metastore.IDGenerator = (*IDGenerator)(nil)

// NextID returns the next id.
func (g *IDGenerator) NextID() uint64 {
	return g.IDFn()
}

// NewIncrementingIDGenerator returns an IDGenerator that issues start,
// start+1, start+2, ... and is safe for concurrent use.
func NewIncrementingIDGenerator(start uint64) *IDGenerator {
	counter := start - 1
	return &IDGenerator{
		IDFn: func() uint64 {
			return atomic.AddUint64(&counter, 1)
		},
	}
}

// TokenGenerator is a mock metastore.TokenGenerator.
type TokenGenerator struct {
	TokenFn func() (string, error)
}

var _ metastore.TokenGenerator = (*TokenGenerator)(nil)

// Token returns the next token.
func (g *TokenGenerator) Token() (string, error) {
	return g.TokenFn()
}

// NewSequentialTokenGenerator returns a TokenGenerator producing
// "<prefix>0", "<prefix>1", ... and is safe for concurrent use.
func NewSequentialTokenGenerator(prefix string) *TokenGenerator {
	var counter uint64
	return &TokenGenerator{
		TokenFn: func() (string, error) {
			n := atomic.AddUint64(&counter, 1) - 1
			return fmt.Sprintf("%s%d", prefix, n), nil
		},
	}
}
