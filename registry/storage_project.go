package registry

import (
	"context"
	"encoding/json"

	"github.com/hashicorp/go-multierror"

	"github.com/analyticshq/metastore"
	"github.com/analyticshq/metastore/kv"
)

func unmarshalProject(v []byte) (*metastore.Project, error) {
	p := &metastore.Project{}
	if err := json.Unmarshal(v, p); err != nil {
		return nil, ErrCorruptData(err)
	}

	return p, nil
}

func marshalProject(p *metastore.Project) ([]byte, error) {
	v, err := json.Marshal(p)
	if err != nil {
		return nil, ErrUnprocessableData(err)
	}

	return v, nil
}

// CreateProject persists an empty project, insert-if-absent by name.
func (s *Store) CreateProject(ctx context.Context, tx kv.Tx, name string) error {
	b, err := tx.Bucket(projectBucket)
	if err != nil {
		return ErrInternalServiceError(err)
	}

	_, err = b.Get(projectKey(name))
	if err == nil {
		return ProjectAlreadyExistsError(name)
	}
	if !kv.IsNotFound(err) {
		return ErrInternalServiceError(err)
	}

	v, err := marshalProject(&metastore.Project{
		Name:      name,
		CreatedAt: s.now(),
	})
	if err != nil {
		return err
	}

	return ErrInternalServiceError(b.Put(projectKey(name), v))
}

// GetProject fetches a project by name.
func (s *Store) GetProject(ctx context.Context, tx kv.Tx, name string) (*metastore.Project, error) {
	b, err := tx.Bucket(projectBucket)
	if err != nil {
		return nil, ErrInternalServiceError(err)
	}

	v, err := b.Get(projectKey(name))
	if kv.IsNotFound(err) {
		return nil, ProjectNotFoundError(name)
	}
	if err != nil {
		return nil, ErrInternalServiceError(err)
	}

	return unmarshalProject(v)
}

// ListProjects returns every project name in key order.
func (s *Store) ListProjects(ctx context.Context, tx kv.Tx) ([]string, error) {
	b, err := tx.Bucket(projectBucket)
	if err != nil {
		return nil, ErrInternalServiceError(err)
	}

	cursor, err := b.ForwardCursor(nil)
	if err != nil {
		return nil, ErrInternalServiceError(err)
	}
	defer cursor.Close()

	names := []string{}
	for k, _ := cursor.Next(); k != nil; k, _ = cursor.Next() {
		names = append(names, string(k))
	}

	return names, cursor.Err()
}

// DeleteProject removes the project and cascades to its schema rows, access
// key sets and token index entries. Deleting an absent project is a no-op.
func (s *Store) DeleteProject(ctx context.Context, tx kv.Tx, name string) error {
	b, err := tx.Bucket(projectBucket)
	if err != nil {
		return ErrInternalServiceError(err)
	}

	if _, err := b.Get(projectKey(name)); kv.IsNotFound(err) {
		return nil
	} else if err != nil {
		return ErrInternalServiceError(err)
	}

	var result *multierror.Error
	result = multierror.Append(result, b.Delete(projectKey(name)))
	result = multierror.Append(result, s.deleteProjectSchemas(tx, name))
	result = multierror.Append(result, s.deleteProjectAccessKeys(tx, name))

	return ErrInternalServiceError(result.ErrorOrNil())
}

func (s *Store) deleteProjectSchemas(tx kv.Tx, project string) error {
	b, err := tx.Bucket(schemaBucket)
	if err != nil {
		return err
	}

	keys, err := keysWithPrefix(b, projectSchemaPrefix(project))
	if err != nil {
		return err
	}

	var result *multierror.Error
	for _, k := range keys {
		result = multierror.Append(result, b.Delete(k))
	}
	return result.ErrorOrNil()
}

func (s *Store) deleteProjectAccessKeys(tx kv.Tx, project string) error {
	b, err := tx.Bucket(accessKeyBucket)
	if err != nil {
		return err
	}

	cursor, err := b.ForwardCursor(nil)
	if err != nil {
		return err
	}

	var doomed []*metastore.AccessKeySet
	for k, v := cursor.Next(); k != nil; k, v = cursor.Next() {
		set, err := unmarshalAccessKeySet(v)
		if err != nil {
			continue
		}
		if set.Project == project {
			doomed = append(doomed, set)
		}
	}
	if err := cursor.Err(); err != nil {
		cursor.Close()
		return err
	}
	if err := cursor.Close(); err != nil {
		return err
	}

	var result *multierror.Error
	for _, set := range doomed {
		result = multierror.Append(result, b.Delete(accessKeyKey(set.ID)))
		result = multierror.Append(result, s.deleteTokenIndex(tx, set))
	}
	return result.ErrorOrNil()
}

// keysWithPrefix collects all keys under prefix so deletion can run after
// iteration finished.
func keysWithPrefix(b kv.Bucket, prefix []byte) ([][]byte, error) {
	cursor, err := b.ForwardCursor(prefix)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	var keys [][]byte
	for k, _ := cursor.Next(); k != nil; k, _ = cursor.Next() {
		keys = append(keys, k)
	}
	return keys, cursor.Err()
}
