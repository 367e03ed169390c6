package registry_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/analyticshq/metastore"
	"github.com/analyticshq/metastore/inmem"
	"github.com/analyticshq/metastore/kv"
	"github.com/analyticshq/metastore/mock"
	"github.com/analyticshq/metastore/registry"
)

func TestGetOrCreateCollectionFields(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateProject(ctx, "analytics"))

	schema := []metastore.SchemaField{{Name: "test", Type: metastore.FieldTypeString}}
	merged, err := svc.GetOrCreateCollectionFields(ctx, "analytics", "test", schema)
	require.NoError(t, err)
	require.Equal(t, schema, merged)

	fields, err := svc.GetCollection(ctx, "analytics", "test")
	require.NoError(t, err)
	require.Equal(t, schema, fields)
}

func TestGetOrCreateCollectionFieldsEmptyRequest(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateProject(ctx, "analytics"))

	// An empty request implicitly creates the collection.
	merged, err := svc.GetOrCreateCollectionFields(ctx, "analytics", "test", nil)
	require.NoError(t, err)
	require.Empty(t, merged)

	schema := []metastore.SchemaField{{Name: "test", Type: metastore.FieldTypeString}}
	merged, err = svc.GetOrCreateCollectionFields(ctx, "analytics", "test", schema)
	require.NoError(t, err)
	require.Equal(t, schema, merged)
}

func TestGetOrCreateCollectionFieldsUnknownProject(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.GetOrCreateCollectionFields(context.Background(), "ghost", "test", nil)
	require.Equal(t, metastore.ENotFound, metastore.ErrorCode(err))
}

func TestGetOrCreateCollectionFieldsIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateProject(ctx, "analytics"))

	schema := []metastore.SchemaField{{Name: "test", Type: metastore.FieldTypeLong}}

	first, err := svc.GetOrCreateCollectionFields(ctx, "analytics", "testcollection", schema)
	require.NoError(t, err)

	second, err := svc.GetOrCreateCollectionFields(ctx, "analytics", "testcollection", schema)
	require.NoError(t, err)
	require.Equal(t, first, second)

	fields, err := svc.GetCollection(ctx, "analytics", "testcollection")
	require.NoError(t, err)
	require.Equal(t, []metastore.SchemaField{{Name: "test", Type: metastore.FieldTypeLong}}, fields)
}

func TestBatchTypeConflictCommitsNothing(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateProject(ctx, "analytics"))

	_, err := svc.GetOrCreateCollectionFields(ctx, "analytics", "testcollection", []metastore.SchemaField{
		{Name: "x", Type: metastore.FieldTypeString},
		{Name: "x", Type: metastore.FieldTypeLong},
	})
	require.Equal(t, metastore.EConflict, metastore.ErrorCode(err))

	var conflict *metastore.SchemaConflictError
	require.True(t, errors.As(err, &conflict))
	require.Equal(t, "x", conflict.Field)
	require.Equal(t, metastore.FieldTypeString, conflict.Existing)
	require.Equal(t, metastore.FieldTypeLong, conflict.Requested)

	// Neither field was committed.
	fields, err := svc.GetCollection(ctx, "analytics", "testcollection")
	require.NoError(t, err)
	require.Empty(t, fields)

	// A subsequent conflict-free request succeeds.
	merged, err := svc.GetOrCreateCollectionFields(ctx, "analytics", "testcollection", []metastore.SchemaField{
		{Name: "x", Type: metastore.FieldTypeString},
	})
	require.NoError(t, err)
	require.Equal(t, []metastore.SchemaField{{Name: "x", Type: metastore.FieldTypeString}}, merged)
}

func TestStoredTypeConflictCommitsNothing(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateProject(ctx, "analytics"))

	_, err := svc.GetOrCreateCollectionFields(ctx, "analytics", "testcollection", []metastore.SchemaField{
		{Name: "x", Type: metastore.FieldTypeString},
	})
	require.NoError(t, err)

	// "y" must not be committed when "x" conflicts with the stored schema.
	_, err = svc.GetOrCreateCollectionFields(ctx, "analytics", "testcollection", []metastore.SchemaField{
		{Name: "y", Type: metastore.FieldTypeDouble},
		{Name: "x", Type: metastore.FieldTypeLong},
	})
	require.Equal(t, metastore.EConflict, metastore.ErrorCode(err))

	var conflict *metastore.SchemaConflictError
	require.True(t, errors.As(err, &conflict))
	require.Equal(t, "x", conflict.Field)

	fields, err := svc.GetCollection(ctx, "analytics", "testcollection")
	require.NoError(t, err)
	require.Equal(t, []metastore.SchemaField{{Name: "x", Type: metastore.FieldTypeString}}, fields)
}

func TestConflictAfterCacheClear(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateProject(ctx, "analytics"))

	_, err := svc.GetOrCreateCollectionFields(ctx, "analytics", "testcollection", []metastore.SchemaField{
		{Name: "x", Type: metastore.FieldTypeString},
	})
	require.NoError(t, err)

	// The conflict must be detected against the store, not only the cache.
	svc.ClearCache()

	_, err = svc.GetOrCreateCollectionFields(ctx, "analytics", "testcollection", []metastore.SchemaField{
		{Name: "x", Type: metastore.FieldTypeLong},
	})
	require.Equal(t, metastore.EConflict, metastore.ErrorCode(err))
}

func TestAllSchemaTypes(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateProject(ctx, "analytics"))

	var schema []metastore.SchemaField
	for _, typ := range metastore.FieldTypes() {
		schema = append(schema, metastore.SchemaField{Name: string(typ), Type: typ})
	}

	merged, err := svc.GetOrCreateCollectionFields(ctx, "analytics", "testcollection", schema)
	require.NoError(t, err)
	require.ElementsMatch(t, schema, merged)

	fields, err := svc.GetCollection(ctx, "analytics", "testcollection")
	require.NoError(t, err)
	require.ElementsMatch(t, schema, fields)
}

func TestCollectionEnumeration(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateProject(ctx, "analytics"))

	schema := []metastore.SchemaField{
		{Name: "test1", Type: metastore.FieldTypeString},
		{Name: "test2", Type: metastore.FieldTypeString},
	}
	_, err := svc.GetOrCreateCollectionFields(ctx, "analytics", "testcollection1", schema)
	require.NoError(t, err)
	_, err = svc.GetOrCreateCollectionFields(ctx, "analytics", "testcollection2", schema)
	require.NoError(t, err)

	names, err := svc.GetCollectionNames(ctx, "analytics")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"testcollection1", "testcollection2"}, names)

	collections, err := svc.GetCollections(ctx, "analytics")
	require.NoError(t, err)
	require.Len(t, collections, 2)
	require.ElementsMatch(t, schema, collections["testcollection1"])
	require.ElementsMatch(t, schema, collections["testcollection2"])
}

// TestConcurrentSchemaChanges asserts the monotonic-union property: N
// concurrent evolution calls each adding a distinct field all converge on the
// union of every addition, and each call's snapshot is a subset of the final
// schema.
func TestConcurrentSchemaChanges(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateProject(ctx, "test"))

	const n = 300
	snapshots := make([][]metastore.SchemaField, n)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			fields, err := svc.GetOrCreateCollectionFields(gctx, "test", "test", []metastore.SchemaField{
				{Name: fmt.Sprintf("test%d", i), Type: metastore.FieldTypeString},
			})
			if err != nil {
				return err
			}
			snapshots[i] = fields
			return nil
		})
	}
	require.NoError(t, g.Wait())

	svc.ClearCache()
	final, err := svc.GetCollection(ctx, "test", "test")
	require.NoError(t, err)
	require.Len(t, final, n)

	finalByName := map[string]metastore.FieldType{}
	for _, f := range final {
		finalByName[f.Name] = f.Type
	}

	for i := 0; i < n; i++ {
		name := fmt.Sprintf("test%d", i)
		require.Contains(t, finalByName, name)

		// Every returned snapshot contains the caller's own field and is a
		// subset of the final schema.
		seen := false
		for _, f := range snapshots[i] {
			typ, ok := finalByName[f.Name]
			require.True(t, ok, "snapshot %d contains %q missing from final schema", i, f.Name)
			require.Equal(t, typ, f.Type)
			if f.Name == name {
				seen = true
			}
		}
		require.True(t, seen, "snapshot %d misses its own field", i)
	}
}

func TestGetCollectionCacheKeysDoNotCollide(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	// ("a\x00b", "c") and ("a", "b\x00c") concatenate identically around a
	// naive join byte; neither tenant may observe the other's schema.
	require.NoError(t, svc.CreateProject(ctx, "a\x00b"))
	require.NoError(t, svc.CreateProject(ctx, "a"))

	_, err := svc.GetOrCreateCollectionFields(ctx, "a\x00b", "c", []metastore.SchemaField{
		{Name: "secret", Type: metastore.FieldTypeString},
	})
	require.NoError(t, err)

	fields, err := svc.GetCollection(ctx, "a", "b\x00c")
	require.NoError(t, err)
	require.Empty(t, fields)

	fields, err = svc.GetCollection(ctx, "a\x00b", "c")
	require.NoError(t, err)
	require.Equal(t, []metastore.SchemaField{{Name: "secret", Type: metastore.FieldTypeString}}, fields)
}

func TestGetOrCreateCollectionFieldsRetriesUnavailableStore(t *testing.T) {
	ctx := context.Background()

	inner := inmem.NewKVStore()
	flaky := &mock.Store{ViewFn: inner.View, UpdateFn: inner.Update}

	store, err := registry.NewStore(ctx, flaky)
	require.NoError(t, err)
	svc := registry.NewService(store, registry.WithIDGenerator(mock.NewIncrementingIDGenerator(1)))

	require.NoError(t, svc.CreateProject(ctx, "analytics"))

	// The first commit transaction fails transiently; the internal retry must
	// commit on the second attempt.
	failures := 1
	flaky.UpdateFn = func(ctx context.Context, fn func(kv.Tx) error) error {
		if failures > 0 {
			failures--
			return &metastore.Error{Code: metastore.EUnavailable, Msg: "store unavailable"}
		}
		return inner.Update(ctx, fn)
	}

	merged, err := svc.GetOrCreateCollectionFields(ctx, "analytics", "events", []metastore.SchemaField{
		{Name: "url", Type: metastore.FieldTypeString},
	})
	require.NoError(t, err)
	require.Equal(t, []metastore.SchemaField{{Name: "url", Type: metastore.FieldTypeString}}, merged)
	require.Zero(t, failures)

	svc.ClearCache()
	fields, err := svc.GetCollection(ctx, "analytics", "events")
	require.NoError(t, err)
	require.Equal(t, merged, fields)
}

func TestGetOrCreateCollectionFieldsUnavailableStoreSurfaces(t *testing.T) {
	ctx := context.Background()

	inner := inmem.NewKVStore()
	flaky := &mock.Store{ViewFn: inner.View, UpdateFn: inner.Update}

	store, err := registry.NewStore(ctx, flaky)
	require.NoError(t, err)
	svc := registry.NewService(store, registry.WithIDGenerator(mock.NewIncrementingIDGenerator(1)))

	require.NoError(t, svc.CreateProject(ctx, "analytics"))

	// Every commit attempt fails; the error surfaces once the retry budget is
	// spent.
	failures := 0
	flaky.UpdateFn = func(ctx context.Context, fn func(kv.Tx) error) error {
		failures++
		return &metastore.Error{Code: metastore.EUnavailable, Msg: "store unavailable"}
	}

	_, err = svc.GetOrCreateCollectionFields(ctx, "analytics", "events", []metastore.SchemaField{
		{Name: "url", Type: metastore.FieldTypeString},
	})
	require.Equal(t, metastore.EUnavailable, metastore.ErrorCode(err))
	require.Equal(t, 2, failures)

	// Nothing was committed.
	flaky.UpdateFn = inner.Update
	svc.ClearCache()
	fields, err := svc.GetCollection(ctx, "analytics", "events")
	require.NoError(t, err)
	require.Empty(t, fields)
}

func TestGetCollectionStableOrder(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.CreateProject(ctx, "analytics"))

	_, err := svc.GetOrCreateCollectionFields(ctx, "analytics", "events", []metastore.SchemaField{
		{Name: "b", Type: metastore.FieldTypeString},
		{Name: "a", Type: metastore.FieldTypeLong},
		{Name: "c", Type: metastore.FieldTypeBoolean},
	})
	require.NoError(t, err)

	want, err := svc.GetCollection(ctx, "analytics", "events")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		svc.ClearCache()
		got, err := svc.GetCollection(ctx, "analytics", "events")
		require.NoError(t, err)
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("schema mismatch (-want +got):\n%s", diff)
		}
	}
}
