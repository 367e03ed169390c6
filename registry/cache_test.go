package registry

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/analyticshq/metastore"
)

var cachedFields = []metastore.SchemaField{
	{Name: "url", Type: metastore.FieldTypeString},
	{Name: "visits", Type: metastore.FieldTypeLong},
}

func TestSchemaCachePutGet(t *testing.T) {
	cache := NewSchemaCache()

	_, ok := cache.Get("analytics", "pageviews")
	require.False(t, ok)

	cache.Put("analytics", "pageviews", cachedFields)

	fields, ok := cache.Get("analytics", "pageviews")
	require.True(t, ok)
	require.Equal(t, cachedFields, fields)

	// The returned snapshot is a copy; mutating it must not poison the cache.
	fields[0].Type = metastore.FieldTypeBoolean
	fresh, ok := cache.Get("analytics", "pageviews")
	require.True(t, ok)
	require.Equal(t, cachedFields, fresh)
}

func TestSchemaCacheGenerationIncreases(t *testing.T) {
	cache := NewSchemaCache()

	gen1 := cache.Put("analytics", "pageviews", cachedFields)
	gen2 := cache.Put("analytics", "pageviews", cachedFields)
	require.Greater(t, gen2, gen1)

	gen, ok := cache.Generation("analytics", "pageviews")
	require.True(t, ok)
	require.Equal(t, gen2, gen)
}

func TestSchemaCacheInvalidate(t *testing.T) {
	cache := NewSchemaCache()

	cache.Put("analytics", "pageviews", cachedFields)
	cache.Put("analytics", "clicks", cachedFields)
	cache.Put("billing", "invoices", cachedFields)

	cache.Invalidate("analytics", "pageviews")
	_, ok := cache.Get("analytics", "pageviews")
	require.False(t, ok)
	_, ok = cache.Get("analytics", "clicks")
	require.True(t, ok)

	cache.InvalidateProject("analytics")
	_, ok = cache.Get("analytics", "clicks")
	require.False(t, ok)
	_, ok = cache.Get("billing", "invoices")
	require.True(t, ok)

	cache.InvalidateAll()
	require.Zero(t, cache.Len())
}

func TestSchemaCacheTTL(t *testing.T) {
	mock := clock.NewMock()
	cache := NewSchemaCache(WithCacheTTL(time.Minute), WithCacheClock(mock))

	cache.Put("analytics", "pageviews", cachedFields)

	mock.Add(30 * time.Second)
	_, ok := cache.Get("analytics", "pageviews")
	require.True(t, ok)

	mock.Add(31 * time.Second)
	_, ok = cache.Get("analytics", "pageviews")
	require.False(t, ok)

	// A fresh put revives the entry.
	cache.Put("analytics", "pageviews", cachedFields)
	_, ok = cache.Get("analytics", "pageviews")
	require.True(t, ok)
}
