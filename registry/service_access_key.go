package registry

import (
	"context"

	"github.com/analyticshq/metastore"
	"github.com/analyticshq/metastore/kv"
)

// CreateApiKeys issues a fresh access key set for the project: a unique id
// and three unguessable tokens, one per slot.
func (s *Service) CreateApiKeys(ctx context.Context, project string) (*metastore.AccessKeySet, error) {
	if err := validateName("project", project); err != nil {
		return nil, err
	}

	set := &metastore.AccessKeySet{
		ID:        s.idGen.NextID(),
		Project:   project,
		CreatedAt: s.clock.Now(),
	}

	var err error
	if set.ReadKey, err = s.tokenGen.Token(); err != nil {
		return nil, ErrInternalServiceError(err)
	}
	if set.WriteKey, err = s.tokenGen.Token(); err != nil {
		return nil, ErrInternalServiceError(err)
	}
	if set.MasterKey, err = s.tokenGen.Token(); err != nil {
		return nil, ErrInternalServiceError(err)
	}

	err = s.store.Update(ctx, func(tx kv.Tx) error {
		if _, err := s.store.GetProject(ctx, tx, project); err != nil {
			return err
		}
		return s.store.CreateAccessKeySet(ctx, tx, set)
	})
	if err != nil {
		return nil, err
	}

	return set, nil
}

// RevokeApiKeys invalidates all three tokens of the given key set id.
// Revoking an unknown id is a no-op.
func (s *Service) RevokeApiKeys(ctx context.Context, project string, id uint64) error {
	if err := validateName("project", project); err != nil {
		return err
	}

	return s.store.Update(ctx, func(tx kv.Tx) error {
		return s.store.RevokeAccessKeySet(ctx, tx, project, id)
	})
}

// CheckPermission reports whether token currently grants keyType on the
// project. The check is slot-aware: a valid read key never satisfies a write
// or master check. A clean "no" is a false result, not an error.
func (s *Service) CheckPermission(ctx context.Context, project string, keyType metastore.KeyType, token string) (bool, error) {
	if err := validateName("project", project); err != nil {
		return false, err
	}
	if !keyType.Valid() {
		return false, InvalidKeyTypeError(keyType)
	}
	if token == "" {
		return false, nil
	}

	var ok bool
	err := s.store.View(ctx, func(tx kv.Tx) error {
		set, slot, err := s.store.LookupToken(ctx, tx, token)
		if metastore.ErrorCode(err) == metastore.ENotFound {
			return nil
		}
		if err != nil {
			return err
		}

		ok = !set.Revoked &&
			set.Project == project &&
			slot == keyType &&
			set.Key(keyType) == token
		return nil
	})
	if err != nil {
		return false, err
	}

	return ok, nil
}

// GetApiKeys bulk-fetches key sets by id. Unknown and revoked ids are
// skipped; result order is unspecified, callers reconcile by ID.
func (s *Service) GetApiKeys(ctx context.Context, ids []uint64) ([]*metastore.AccessKeySet, error) {
	var sets []*metastore.AccessKeySet
	err := s.store.View(ctx, func(tx kv.Tx) error {
		var err error
		sets, err = s.store.GetAccessKeySets(ctx, tx, ids)
		return err
	})
	if err != nil {
		return nil, err
	}

	return sets, nil
}
