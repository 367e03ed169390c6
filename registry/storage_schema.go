package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"

	"github.com/analyticshq/metastore"
	"github.com/analyticshq/metastore/kv"
)

// FieldInsertResult reports the outcome of the insert-if-absent primitive for
// one schema field. The registry's retry state machine consumes it instead of
// branching on error values.
type FieldInsertResult int

const (
	// FieldApplied means the field was absent and has been written.
	FieldApplied FieldInsertResult = iota
	// FieldAlreadyPresent means the name exists with the same type; nothing
	// was written.
	FieldAlreadyPresent
	// FieldConflict means the name exists with a different type; nothing was
	// written.
	FieldConflict
)

func unmarshalField(v []byte) (metastore.SchemaField, error) {
	var f metastore.SchemaField
	if err := json.Unmarshal(v, &f); err != nil {
		return metastore.SchemaField{}, ErrCorruptData(err)
	}

	return f, nil
}

func marshalField(f metastore.SchemaField) ([]byte, error) {
	v, err := json.Marshal(f)
	if err != nil {
		return nil, ErrUnprocessableData(err)
	}

	return v, nil
}

// InsertField atomically adds field to the collection schema unless the name
// is taken. It never overwrites: a name collision with a different type
// reports FieldConflict together with the committed type, and the caller
// decides whether that aborts the transaction.
func (s *Store) InsertField(ctx context.Context, tx kv.Tx, project, collection string, field metastore.SchemaField) (FieldInsertResult, metastore.FieldType, error) {
	b, err := tx.Bucket(schemaBucket)
	if err != nil {
		return FieldConflict, "", ErrInternalServiceError(err)
	}

	key := schemaKey(project, collection, field.Name)
	v, err := b.Get(key)
	if err == nil {
		existing, err := unmarshalField(v)
		if err != nil {
			return FieldConflict, "", err
		}
		if existing.Type == field.Type {
			return FieldAlreadyPresent, existing.Type, nil
		}
		return FieldConflict, existing.Type, nil
	}
	if !kv.IsNotFound(err) {
		return FieldConflict, "", ErrInternalServiceError(err)
	}

	v, err = marshalField(field)
	if err != nil {
		return FieldConflict, "", err
	}
	if err := b.Put(key, v); err != nil {
		return FieldConflict, "", ErrInternalServiceError(err)
	}

	return FieldApplied, field.Type, nil
}

// ReadSchema returns the committed field set of the collection, sorted by
// name. An unknown collection under an existing project yields an empty set;
// an unknown project is ENotFound.
func (s *Store) ReadSchema(ctx context.Context, tx kv.Tx, project, collection string) ([]metastore.SchemaField, error) {
	if _, err := s.GetProject(ctx, tx, project); err != nil {
		return nil, err
	}

	b, err := tx.Bucket(schemaBucket)
	if err != nil {
		return nil, ErrInternalServiceError(err)
	}

	cursor, err := b.ForwardCursor(collectionPrefix(project, collection))
	if err != nil {
		return nil, ErrInternalServiceError(err)
	}
	defer cursor.Close()

	fields := []metastore.SchemaField{}
	for k, v := cursor.Next(); k != nil; k, v = cursor.Next() {
		f, err := unmarshalField(v)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}

	return fields, cursor.Err()
}

// ListCollections returns every collection of the project with its field set.
func (s *Store) ListCollections(ctx context.Context, tx kv.Tx, project string) (map[string][]metastore.SchemaField, error) {
	if _, err := s.GetProject(ctx, tx, project); err != nil {
		return nil, err
	}

	b, err := tx.Bucket(schemaBucket)
	if err != nil {
		return nil, ErrInternalServiceError(err)
	}

	prefix := projectSchemaPrefix(project)
	cursor, err := b.ForwardCursor(prefix)
	if err != nil {
		return nil, ErrInternalServiceError(err)
	}
	defer cursor.Close()

	collections := map[string][]metastore.SchemaField{}
	for k, v := cursor.Next(); k != nil; k, v = cursor.Next() {
		rest := bytes.TrimPrefix(k, prefix)
		i := bytes.Index(rest, []byte(nameSeparator))
		if i < 0 {
			continue
		}
		name := string(rest[:i])

		f, err := unmarshalField(v)
		if err != nil {
			return nil, err
		}
		collections[name] = append(collections[name], f)
	}

	return collections, cursor.Err()
}

// ListCollectionNames returns the project's collection names in key order.
func (s *Store) ListCollectionNames(ctx context.Context, tx kv.Tx, project string) ([]string, error) {
	collections, err := s.ListCollections(ctx, tx, project)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(collections))
	for name := range collections {
		names = append(names, name)
	}
	sort.Strings(names)

	return names, nil
}
