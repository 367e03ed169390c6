package registry

import (
	"context"

	"github.com/analyticshq/metastore/kv"
)

// CreateProject persists an empty project. Creating a name that exists fails
// with EConflict.
func (s *Service) CreateProject(ctx context.Context, project string) error {
	if err := validateName("project", project); err != nil {
		return err
	}

	err := s.store.Update(ctx, func(tx kv.Tx) error {
		return s.store.CreateProject(ctx, tx, project)
	})
	if err != nil {
		return err
	}

	// A prior incarnation of the name may still be cached.
	s.cache.InvalidateProject(project)
	return nil
}

// DeleteProject removes the project and everything it owns. Deleting an
// absent project is a no-op.
func (s *Service) DeleteProject(ctx context.Context, project string) error {
	if err := validateName("project", project); err != nil {
		return err
	}

	err := s.store.Update(ctx, func(tx kv.Tx) error {
		return s.store.DeleteProject(ctx, tx, project)
	})
	if err != nil {
		return err
	}

	s.cache.InvalidateProject(project)
	return nil
}

// GetProjects returns every project name.
func (s *Service) GetProjects(ctx context.Context) ([]string, error) {
	var names []string
	err := s.store.View(ctx, func(tx kv.Tx) error {
		var err error
		names, err = s.store.ListProjects(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	return names, nil
}
