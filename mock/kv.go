package mock

import (
	"context"

	"github.com/analyticshq/metastore/kv"
)

// Store is a mock kv.Store with function-field behavior, so tests can inject
// failures in front of a real backing store.
type Store struct {
	ViewFn   func(ctx context.Context, fn func(kv.Tx) error) error
	UpdateFn func(ctx context.Context, fn func(kv.Tx) error) error
}

var _ kv.Store = (*Store)(nil)

// View delegates to ViewFn.
func (s *Store) View(ctx context.Context, fn func(kv.Tx) error) error {
	return s.ViewFn(ctx, fn)
}

// Update delegates to UpdateFn.
func (s *Store) Update(ctx context.Context, fn func(kv.Tx) error) error {
	return s.UpdateFn(ctx, fn)
}
