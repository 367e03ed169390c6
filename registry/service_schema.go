package registry

import (
	"context"
	"sort"

	"github.com/analyticshq/metastore"
	"github.com/analyticshq/metastore/kv"
)

// maxCommitAttempts bounds the internal retry of the field commit
// transaction. Only transient store failures are retried; a schema conflict
// is definitive and surfaces immediately.
const maxCommitAttempts = 2

// GetOrCreateCollectionFields reconciles the requested field set against the
// collection's committed schema and returns the merged authoritative
// snapshot. Fields already present with the same type are no-ops; previously
// unseen fields are committed in one store transaction; a name carrying a
// type that differs from its committed (or batch-local) type fails the whole
// call and commits nothing.
func (s *Service) GetOrCreateCollectionFields(ctx context.Context, project, collection string, fields []metastore.SchemaField) ([]metastore.SchemaField, error) {
	if err := validateName("project", project); err != nil {
		return nil, err
	}
	if err := validateName("collection", collection); err != nil {
		return nil, err
	}

	requested, err := dedupeFields(project, collection, fields)
	if err != nil {
		return nil, err
	}

	known, ok := s.cache.Get(project, collection)
	if !ok {
		known, err = s.readSchema(ctx, project, collection)
		if err != nil {
			return nil, err
		}
		s.cache.Put(project, collection, known)
	}

	missing, err := missingFields(project, collection, requested, known)
	if err != nil {
		return nil, err
	}
	if len(missing) == 0 {
		// Common low-latency path: everything already known, no store write.
		return known, nil
	}

	merged, err := s.commitFields(ctx, project, collection, missing)
	if err != nil {
		return nil, err
	}

	s.cache.Put(project, collection, merged)
	return merged, nil
}

// GetCollection returns the collection's current field set, cache-first.
func (s *Service) GetCollection(ctx context.Context, project, collection string) ([]metastore.SchemaField, error) {
	if err := validateName("project", project); err != nil {
		return nil, err
	}
	if err := validateName("collection", collection); err != nil {
		return nil, err
	}

	if fields, ok := s.cache.Get(project, collection); ok {
		return fields, nil
	}

	fields, err := s.readSchema(ctx, project, collection)
	if err != nil {
		return nil, err
	}

	s.cache.Put(project, collection, fields)
	return fields, nil
}

// GetCollectionNames returns the project's collection names.
func (s *Service) GetCollectionNames(ctx context.Context, project string) ([]string, error) {
	if err := validateName("project", project); err != nil {
		return nil, err
	}

	var names []string
	err := s.store.View(ctx, func(tx kv.Tx) error {
		var err error
		names, err = s.store.ListCollectionNames(ctx, tx, project)
		return err
	})
	if err != nil {
		return nil, err
	}

	return names, nil
}

// GetCollections returns every collection of the project with its field set.
func (s *Service) GetCollections(ctx context.Context, project string) (map[string][]metastore.SchemaField, error) {
	if err := validateName("project", project); err != nil {
		return nil, err
	}

	var collections map[string][]metastore.SchemaField
	err := s.store.View(ctx, func(tx kv.Tx) error {
		var err error
		collections, err = s.store.ListCollections(ctx, tx, project)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, fields := range collections {
		sortFields(fields)
	}
	return collections, nil
}

func (s *Service) readSchema(ctx context.Context, project, collection string) ([]metastore.SchemaField, error) {
	var fields []metastore.SchemaField
	err := s.store.View(ctx, func(tx kv.Tx) error {
		var err error
		fields, err = s.store.ReadSchema(ctx, tx, project, collection)
		return err
	})
	if err != nil {
		return nil, err
	}

	return fields, nil
}

// commitFields adds missing to the collection schema in a single transaction.
// The schema is re-read inside the transaction, so a concurrent writer that
// committed the same name is observed authoritatively: same type means skip,
// different type means conflict and the transaction aborts wholesale.
// Transient store failures get one retry against the freshly re-read schema.
func (s *Service) commitFields(ctx context.Context, project, collection string, missing []metastore.SchemaField) ([]metastore.SchemaField, error) {
	var merged []metastore.SchemaField

	for attempt := 1; ; attempt++ {
		merged = merged[:0]

		err := s.store.Update(ctx, func(tx kv.Tx) error {
			current, err := s.store.ReadSchema(ctx, tx, project, collection)
			if err != nil {
				return err
			}
			merged = append(merged, current...)

			byName := fieldsByName(current)
			for _, f := range missing {
				if existing, ok := byName[f.Name]; ok {
					if existing != f.Type {
						return metastore.NewSchemaConflictError(&metastore.SchemaConflictError{
							Project:    project,
							Collection: collection,
							Field:      f.Name,
							Existing:   existing,
							Requested:  f.Type,
						})
					}
					continue
				}

				result, existing, err := s.store.InsertField(ctx, tx, project, collection, f)
				if err != nil {
					return err
				}
				switch result {
				case FieldApplied:
					merged = append(merged, f)
				case FieldAlreadyPresent:
					merged = append(merged, metastore.SchemaField{Name: f.Name, Type: existing})
				case FieldConflict:
					return metastore.NewSchemaConflictError(&metastore.SchemaConflictError{
						Project:    project,
						Collection: collection,
						Field:      f.Name,
						Existing:   existing,
						Requested:  f.Type,
					})
				}
			}
			return nil
		})
		if err == nil {
			sortFields(merged)
			return merged, nil
		}
		if metastore.ErrorCode(err) == metastore.EUnavailable && attempt < maxCommitAttempts {
			continue
		}
		return nil, err
	}
}

// dedupeFields collapses the request to one type per name, rejecting a name
// asserted with two different types within the batch.
func dedupeFields(project, collection string, fields []metastore.SchemaField) (map[string]metastore.FieldType, error) {
	requested := make(map[string]metastore.FieldType, len(fields))
	for _, f := range fields {
		if err := validateName("field", f.Name); err != nil {
			return nil, err
		}
		if existing, ok := requested[f.Name]; ok {
			if existing != f.Type {
				return nil, metastore.NewSchemaConflictError(&metastore.SchemaConflictError{
					Project:    project,
					Collection: collection,
					Field:      f.Name,
					Existing:   existing,
					Requested:  f.Type,
				})
			}
			continue
		}
		requested[f.Name] = f.Type
	}
	return requested, nil
}

// missingFields returns the requested fields absent from known, sorted by
// name, or a conflict if a known name carries a different type.
func missingFields(project, collection string, requested map[string]metastore.FieldType, known []metastore.SchemaField) ([]metastore.SchemaField, error) {
	byName := fieldsByName(known)

	var missing []metastore.SchemaField
	for name, typ := range requested {
		if existing, ok := byName[name]; ok {
			if existing != typ {
				return nil, metastore.NewSchemaConflictError(&metastore.SchemaConflictError{
					Project:    project,
					Collection: collection,
					Field:      name,
					Existing:   existing,
					Requested:  typ,
				})
			}
			continue
		}
		missing = append(missing, metastore.SchemaField{Name: name, Type: typ})
	}
	sortFields(missing)
	return missing, nil
}

func fieldsByName(fields []metastore.SchemaField) map[string]metastore.FieldType {
	byName := make(map[string]metastore.FieldType, len(fields))
	for _, f := range fields {
		byName[f.Name] = f.Type
	}
	return byName
}

func sortFields(fields []metastore.SchemaField) {
	sort.Slice(fields, func(i, j int) bool {
		return fields[i].Name < fields[j].Name
	})
}
