// Package registry implements the schema registry and access-key authority
// on top of a transactional kv.Store. The Store type binds the kv buckets;
// Service orchestrates schema evolution, caching and key validation.
package registry

import (
	"context"
	"strings"
	"time"

	"github.com/analyticshq/metastore/kv"
)

var (
	projectBucket       = []byte("projectsv1")
	schemaBucket        = []byte("schemasv1")
	accessKeyBucket     = []byte("accesskeysv1")
	accessKeyTokenIndex = []byte("accesskeytokenindexv1")
)

// nameSeparator joins project, collection and field names into composite
// schema keys. Names therefore must not contain it; see validateName.
const nameSeparator = "/"

// Store exposes the registry's persistence primitives against a kv.Store.
// All methods operate within a caller-supplied transaction so that one
// logical operation maps to exactly one store transaction.
type Store struct {
	kvStore kv.Store
	now     func() time.Time
}

// NewStore returns a Store bound to kvStore and ensures the registry buckets
// exist.
func NewStore(ctx context.Context, kvStore kv.Store) (*Store, error) {
	s := &Store{
		kvStore: kvStore,
		now:     time.Now,
	}
	return s, s.setup(ctx)
}

func (s *Store) setup(ctx context.Context) error {
	return s.Update(ctx, func(tx kv.Tx) error {
		for _, b := range [][]byte{projectBucket, schemaBucket, accessKeyBucket, accessKeyTokenIndex} {
			if _, err := tx.Bucket(b); err != nil {
				return err
			}
		}
		return nil
	})
}

// View opens up a transaction that will not write to any data.
func (s *Store) View(ctx context.Context, fn func(kv.Tx) error) error {
	return s.kvStore.View(ctx, fn)
}

// Update opens up a transaction that will mutate data.
func (s *Store) Update(ctx context.Context, fn func(kv.Tx) error) error {
	return s.kvStore.Update(ctx, fn)
}

func validateName(kind, name string) error {
	if name == "" {
		return EmptyNameError(kind)
	}
	if strings.Contains(name, nameSeparator) {
		return InvalidNameError(kind, name)
	}
	return nil
}

func schemaKey(project, collection, field string) []byte {
	return []byte(project + nameSeparator + collection + nameSeparator + field)
}

func collectionPrefix(project, collection string) []byte {
	return []byte(project + nameSeparator + collection + nameSeparator)
}

func projectSchemaPrefix(project string) []byte {
	return []byte(project + nameSeparator)
}

func projectKey(project string) []byte {
	return []byte(project)
}
