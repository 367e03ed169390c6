package inmem_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/analyticshq/metastore/inmem"
	"github.com/analyticshq/metastore/kv"
)

var testBucket = []byte("testbucket")

func TestKVStorePutGetDelete(t *testing.T) {
	store := inmem.NewKVStore()
	ctx := context.Background()

	require.NoError(t, store.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket(testBucket)
		require.NoError(t, err)
		require.NoError(t, b.Put([]byte("k1"), []byte("v1")))
		require.NoError(t, b.Put([]byte("k2"), []byte("v2")))
		return nil
	}))

	require.NoError(t, store.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket(testBucket)
		require.NoError(t, err)

		v, err := b.Get([]byte("k1"))
		require.NoError(t, err)
		require.Equal(t, []byte("v1"), v)

		_, err = b.Get([]byte("missing"))
		require.True(t, kv.IsNotFound(err))
		return nil
	}))

	require.NoError(t, store.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket(testBucket)
		require.NoError(t, err)
		return b.Delete([]byte("k1"))
	}))

	require.NoError(t, store.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket(testBucket)
		require.NoError(t, err)
		_, err = b.Get([]byte("k1"))
		require.True(t, kv.IsNotFound(err))
		return nil
	}))
}

func TestKVStoreViewIsNotWritable(t *testing.T) {
	store := inmem.NewKVStore()
	ctx := context.Background()

	require.NoError(t, store.Update(ctx, func(tx kv.Tx) error {
		_, err := tx.Bucket(testBucket)
		return err
	}))

	require.NoError(t, store.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket(testBucket)
		require.NoError(t, err)
		require.Equal(t, kv.ErrTxNotWritable, b.Put([]byte("k"), []byte("v")))
		require.Equal(t, kv.ErrTxNotWritable, b.Delete([]byte("k")))
		return nil
	}))
}

func TestKVStoreForwardCursorPrefix(t *testing.T) {
	store := inmem.NewKVStore()
	ctx := context.Background()

	require.NoError(t, store.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket(testBucket)
		require.NoError(t, err)
		for _, k := range []string{"a/1", "a/2", "ab/1", "b/1"} {
			require.NoError(t, b.Put([]byte(k), []byte(k)))
		}
		return nil
	}))

	require.NoError(t, store.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket(testBucket)
		require.NoError(t, err)

		cursor, err := b.ForwardCursor([]byte("a/"))
		require.NoError(t, err)
		defer cursor.Close()

		var keys []string
		for k, _ := cursor.Next(); k != nil; k, _ = cursor.Next() {
			keys = append(keys, string(k))
		}
		require.NoError(t, cursor.Err())
		require.Equal(t, []string{"a/1", "a/2"}, keys)
		return nil
	}))
}

func TestKVStoreCursor(t *testing.T) {
	store := inmem.NewKVStore()
	ctx := context.Background()

	require.NoError(t, store.Update(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket(testBucket)
		require.NoError(t, err)
		for _, k := range []string{"a", "b", "c"} {
			require.NoError(t, b.Put([]byte(k), []byte(k)))
		}
		return nil
	}))

	require.NoError(t, store.View(ctx, func(tx kv.Tx) error {
		b, err := tx.Bucket(testBucket)
		require.NoError(t, err)

		cursor, err := b.Cursor()
		require.NoError(t, err)

		k, _ := cursor.First()
		require.Equal(t, []byte("a"), k)
		k, _ = cursor.Next()
		require.Equal(t, []byte("b"), k)
		k, _ = cursor.Prev()
		require.Equal(t, []byte("a"), k)
		k, _ = cursor.Last()
		require.Equal(t, []byte("c"), k)
		k, _ = cursor.Next()
		require.Nil(t, k)

		k, _ = cursor.Seek([]byte("b"))
		require.Equal(t, []byte("b"), k)
		return nil
	}))
}
