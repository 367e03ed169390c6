package registry

import (
	"context"
	"encoding/binary"
	"encoding/json"

	"github.com/hashicorp/go-multierror"

	"github.com/analyticshq/metastore"
	"github.com/analyticshq/metastore/kv"
)

func accessKeyKey(id uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, id)
	return k
}

// tokenIndexEntry points a token back at its key set and slot.
type tokenIndexEntry struct {
	ID   uint64            `json:"id"`
	Type metastore.KeyType `json:"type"`
}

func unmarshalAccessKeySet(v []byte) (*metastore.AccessKeySet, error) {
	set := &metastore.AccessKeySet{}
	if err := json.Unmarshal(v, set); err != nil {
		return nil, ErrCorruptData(err)
	}

	return set, nil
}

func marshalAccessKeySet(set *metastore.AccessKeySet) ([]byte, error) {
	v, err := json.Marshal(set)
	if err != nil {
		return nil, ErrUnprocessableData(err)
	}

	return v, nil
}

// CreateAccessKeySet persists the set and its three token index rows in the
// caller's transaction.
func (s *Store) CreateAccessKeySet(ctx context.Context, tx kv.Tx, set *metastore.AccessKeySet) error {
	b, err := tx.Bucket(accessKeyBucket)
	if err != nil {
		return ErrInternalServiceError(err)
	}

	idx, err := tx.Bucket(accessKeyTokenIndex)
	if err != nil {
		return ErrInternalServiceError(err)
	}

	v, err := marshalAccessKeySet(set)
	if err != nil {
		return err
	}

	for _, keyType := range []metastore.KeyType{metastore.ReadKey, metastore.WriteKey, metastore.MasterKey} {
		token := set.Key(keyType)
		if _, err := idx.Get([]byte(token)); err == nil {
			return TokenAlreadyIndexedError
		} else if !kv.IsNotFound(err) {
			return ErrInternalServiceError(err)
		}

		entry, err := json.Marshal(tokenIndexEntry{ID: set.ID, Type: keyType})
		if err != nil {
			return ErrUnprocessableData(err)
		}
		if err := idx.Put([]byte(token), entry); err != nil {
			return ErrInternalServiceError(err)
		}
	}

	return ErrInternalServiceError(b.Put(accessKeyKey(set.ID), v))
}

// GetAccessKeySet fetches one set by id.
func (s *Store) GetAccessKeySet(ctx context.Context, tx kv.Tx, id uint64) (*metastore.AccessKeySet, error) {
	b, err := tx.Bucket(accessKeyBucket)
	if err != nil {
		return nil, ErrInternalServiceError(err)
	}

	v, err := b.Get(accessKeyKey(id))
	if kv.IsNotFound(err) {
		return nil, KeySetNotFoundError(id)
	}
	if err != nil {
		return nil, ErrInternalServiceError(err)
	}

	return unmarshalAccessKeySet(v)
}

// GetAccessKeySets bulk-fetches sets by id, skipping unknown and revoked ids.
// Result order is unspecified relative to ids; callers reconcile by ID.
func (s *Store) GetAccessKeySets(ctx context.Context, tx kv.Tx, ids []uint64) ([]*metastore.AccessKeySet, error) {
	sets := []*metastore.AccessKeySet{}
	for _, id := range ids {
		set, err := s.GetAccessKeySet(ctx, tx, id)
		if metastore.ErrorCode(err) == metastore.ENotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		if set.Revoked {
			continue
		}
		sets = append(sets, set)
	}

	return sets, nil
}

// RevokeAccessKeySet invalidates all three tokens of the set. Revoking an
// unknown id, an already revoked set, or a set owned by another project is a
// no-op so revocation stays idempotent.
func (s *Store) RevokeAccessKeySet(ctx context.Context, tx kv.Tx, project string, id uint64) error {
	set, err := s.GetAccessKeySet(ctx, tx, id)
	if metastore.ErrorCode(err) == metastore.ENotFound {
		return nil
	}
	if err != nil {
		return err
	}
	if set.Project != project || set.Revoked {
		return nil
	}

	set.Revoked = true
	v, err := marshalAccessKeySet(set)
	if err != nil {
		return err
	}

	b, err := tx.Bucket(accessKeyBucket)
	if err != nil {
		return ErrInternalServiceError(err)
	}
	if err := b.Put(accessKeyKey(id), v); err != nil {
		return ErrInternalServiceError(err)
	}

	return ErrInternalServiceError(s.deleteTokenIndex(tx, set))
}

func (s *Store) deleteTokenIndex(tx kv.Tx, set *metastore.AccessKeySet) error {
	idx, err := tx.Bucket(accessKeyTokenIndex)
	if err != nil {
		return err
	}

	var result *multierror.Error
	for _, token := range []string{set.ReadKey, set.WriteKey, set.MasterKey} {
		result = multierror.Append(result, idx.Delete([]byte(token)))
	}
	return result.ErrorOrNil()
}

// LookupToken resolves a token through the index to its key set and slot.
func (s *Store) LookupToken(ctx context.Context, tx kv.Tx, token string) (*metastore.AccessKeySet, metastore.KeyType, error) {
	idx, err := tx.Bucket(accessKeyTokenIndex)
	if err != nil {
		return nil, "", ErrInternalServiceError(err)
	}

	v, err := idx.Get([]byte(token))
	if kv.IsNotFound(err) {
		return nil, "", TokenNotFoundError
	}
	if err != nil {
		return nil, "", ErrInternalServiceError(err)
	}

	var entry tokenIndexEntry
	if err := json.Unmarshal(v, &entry); err != nil {
		return nil, "", ErrCorruptData(err)
	}

	set, err := s.GetAccessKeySet(ctx, tx, entry.ID)
	if err != nil {
		return nil, "", err
	}

	return set, entry.Type, nil
}
