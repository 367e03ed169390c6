// Package inmem implements an in memory kv.Store backed by btrees, suitable
// for tests and embedded ephemeral deployments.
package inmem

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/analyticshq/metastore/kv"
)

// KVStore is an in memory btree backed kv.Store.
type KVStore struct {
	mu      sync.RWMutex
	buckets map[string]*Bucket
}

// NewKVStore creates an instance of a KVStore.
func NewKVStore() *KVStore {
	return &KVStore{
		buckets: map[string]*Bucket{},
	}
}

// View opens up a transaction with a read lock.
func (s *KVStore) View(ctx context.Context, fn func(kv.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&Tx{
		kv:       s,
		writable: false,
		ctx:      ctx,
	})
}

// Update opens up a transaction with a write lock.
func (s *KVStore) Update(ctx context.Context, fn func(kv.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&Tx{
		kv:       s,
		writable: true,
		ctx:      ctx,
	})
}

// Flush removes every bucket from the store.
func (s *KVStore) Flush(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets = map[string]*Bucket{}
}

// Tx is an in memory transaction.
type Tx struct {
	kv       *KVStore
	writable bool
	ctx      context.Context
}

// Context returns the context for the transaction.
func (t *Tx) Context() context.Context {
	return t.ctx
}

// WithContext sets the context for the transaction.
func (t *Tx) WithContext(ctx context.Context) {
	t.ctx = ctx
}

// createBucketIfNotExists creates a btree bucket at the provided key.
func (t *Tx) createBucketIfNotExists(b []byte) (kv.Bucket, error) {
	if t.writable {
		bkt, ok := t.kv.buckets[string(b)]
		if !ok {
			bkt = &Bucket{btree: btree.New(2)}
			t.kv.buckets[string(b)] = bkt
		}

		return &bucket{
			Bucket:   bkt,
			writable: t.writable,
		}, nil
	}

	return nil, kv.ErrTxNotWritable
}

// Bucket retrieves the bucket at the provided key.
func (t *Tx) Bucket(b []byte) (kv.Bucket, error) {
	bkt, ok := t.kv.buckets[string(b)]
	if !ok {
		return t.createBucketIfNotExists(b)
	}

	return &bucket{
		Bucket:   bkt,
		writable: t.writable,
	}, nil
}

// Bucket is a btree that implements kv.Bucket.
type Bucket struct {
	btree *btree.BTree
}

type bucket struct {
	*Bucket
	writable bool
}

// Put wraps the put method of a kv bucket and ensures that the
// bucket is writable.
func (b *bucket) Put(key, value []byte) error {
	if b.writable {
		return b.Bucket.Put(key, value)
	}
	return kv.ErrTxNotWritable
}

// Delete wraps the delete method of a kv bucket and ensures that the
// bucket is writable.
func (b *bucket) Delete(key []byte) error {
	if b.writable {
		return b.Bucket.Delete(key)
	}
	return kv.ErrTxNotWritable
}

type item struct {
	key   []byte
	value []byte
}

// Less is used to implement btree.Item.
func (i *item) Less(b btree.Item) bool {
	j, ok := b.(*item)
	if !ok {
		return false
	}

	return bytes.Compare(i.key, j.key) < 0
}

// Get retrieves the value at the provided key.
func (b *Bucket) Get(key []byte) ([]byte, error) {
	i := b.btree.Get(&item{key: key})

	if i == nil {
		return nil, kv.ErrKeyNotFound
	}

	j, ok := i.(*item)
	if !ok {
		return nil, kv.ErrKeyNotFound
	}

	return j.value, nil
}

// Put sets the key value pair provided.
func (b *Bucket) Put(key, value []byte) error {
	_ = b.btree.ReplaceOrInsert(&item{key: key, value: value})
	return nil
}

// Delete removes the key provided.
func (b *Bucket) Delete(key []byte) error {
	_ = b.btree.Delete(&item{key: key})
	return nil
}

// Cursor returns a cursor over a stable snapshot of the bucket. The snapshot
// is safe because a transaction holds the store lock for its duration.
func (b *Bucket) Cursor() (kv.Cursor, error) {
	return &cursor{pairs: b.snapshot(nil), index: -1}, nil
}

// ForwardCursor returns a forward cursor over every pair under prefix.
func (b *Bucket) ForwardCursor(prefix []byte) (kv.ForwardCursor, error) {
	return &forwardCursor{pairs: b.snapshot(prefix)}, nil
}

func (b *Bucket) snapshot(prefix []byte) []kv.Pair {
	var pairs []kv.Pair
	pivot := &item{key: prefix}
	b.btree.AscendGreaterOrEqual(pivot, func(i btree.Item) bool {
		j, ok := i.(*item)
		if !ok {
			return false
		}
		if len(prefix) > 0 && !bytes.HasPrefix(j.key, prefix) {
			return false
		}
		pairs = append(pairs, kv.Pair{Key: j.key, Value: j.value})
		return true
	})
	return pairs
}

type cursor struct {
	pairs []kv.Pair
	index int
}

func (c *cursor) Seek(prefix []byte) ([]byte, []byte) {
	for i, p := range c.pairs {
		if bytes.HasPrefix(p.Key, prefix) {
			c.index = i
			return p.Key, p.Value
		}
	}
	c.index = len(c.pairs)
	return nil, nil
}

func (c *cursor) First() ([]byte, []byte) {
	if len(c.pairs) == 0 {
		return nil, nil
	}
	c.index = 0
	return c.pairs[0].Key, c.pairs[0].Value
}

func (c *cursor) Last() ([]byte, []byte) {
	if len(c.pairs) == 0 {
		return nil, nil
	}
	c.index = len(c.pairs) - 1
	return c.pairs[c.index].Key, c.pairs[c.index].Value
}

func (c *cursor) Next() ([]byte, []byte) {
	if c.index+1 >= len(c.pairs) {
		c.index = len(c.pairs)
		return nil, nil
	}
	c.index++
	return c.pairs[c.index].Key, c.pairs[c.index].Value
}

func (c *cursor) Prev() ([]byte, []byte) {
	if c.index-1 < 0 {
		c.index = -1
		return nil, nil
	}
	c.index--
	return c.pairs[c.index].Key, c.pairs[c.index].Value
}

type forwardCursor struct {
	pairs []kv.Pair
	index int
}

func (c *forwardCursor) Next() ([]byte, []byte) {
	if c.index >= len(c.pairs) {
		return nil, nil
	}
	p := c.pairs[c.index]
	c.index++
	return p.Key, p.Value
}

func (c *forwardCursor) Err() error {
	return nil
}

func (c *forwardCursor) Close() error {
	return nil
}
