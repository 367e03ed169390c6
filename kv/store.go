// Package kv is a generic transactional key/value abstraction modeled after
// the boltdb database struct. The registry performs all persistence through
// these interfaces and never touches a concrete store directly.
package kv

import (
	"context"
	"errors"
)

var (
	// ErrKeyNotFound is the error returned when the key requested is not found.
	ErrKeyNotFound = errors.New("key not found")
	// ErrBucketNotFound is the error returned when the bucket cannot be found.
	ErrBucketNotFound = errors.New("bucket not found")
	// ErrTxNotWritable is the error returned when a mutable operation is
	// called during a non-writable transaction.
	ErrTxNotWritable = errors.New("transaction is not writable")
)

// IsNotFound reports whether err is a key- or bucket-not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound) || errors.Is(err, ErrBucketNotFound)
}

// Store is an interface for a generic key value store. One Update call is one
// transaction; callers scope every multi-key mutation that must be atomic to
// a single Update.
type Store interface {
	// View opens up a transaction that will not write to any data. Implementing
	// interfaces should take care to ensure that all view transactions do not
	// mutate any data.
	View(ctx context.Context, fn func(Tx) error) error
	// Update opens up a transaction that will mutate data.
	Update(ctx context.Context, fn func(Tx) error) error
}

// Tx is a transaction in the store.
type Tx interface {
	Bucket(b []byte) (Bucket, error)
	Context() context.Context
	WithContext(ctx context.Context)
}

// Bucket is the abstraction used to perform get/put/delete operations in a
// key value store.
type Bucket interface {
	Get(key []byte) ([]byte, error)
	// Put should error if the transaction it was called in is not writable.
	Put(key, value []byte) error
	// Delete should error if the transaction it was called in is not writable.
	Delete(key []byte) error
	// Cursor returns a cursor positioned before the first key of the bucket.
	Cursor() (Cursor, error)
	// ForwardCursor returns a forward cursor over every key sharing the given
	// prefix, in key order. A nil prefix ranges over the entire bucket.
	ForwardCursor(prefix []byte) (ForwardCursor, error)
}

// Cursor is an abstraction for seeking and ranging through data.
type Cursor interface {
	Seek(prefix []byte) (k []byte, v []byte)
	First() (k []byte, v []byte)
	Last() (k []byte, v []byte)
	Next() (k []byte, v []byte)
	Prev() (k []byte, v []byte)
}

// ForwardCursor is an abstraction for iterating forward through data. Next
// returns nil keys once the range is exhausted.
type ForwardCursor interface {
	Next() (k, v []byte)
	Err() error
	Close() error
}

// Pair is a single key/value pair.
type Pair struct {
	Key   []byte
	Value []byte
}
