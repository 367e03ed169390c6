package registry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/analyticshq/metastore"
)

// SchemaLogger is a logging service middleware for the Schema Service.
type SchemaLogger struct {
	logger        *zap.Logger
	schemaService metastore.SchemaService
}

// NewSchemaLogger returns a logging service middleware for the Schema
// Service.
func NewSchemaLogger(log *zap.Logger, s metastore.SchemaService) *SchemaLogger {
	return &SchemaLogger{
		logger:        log,
		schemaService: s,
	}
}

var _ metastore.SchemaService = (*SchemaLogger)(nil)

func (l *SchemaLogger) CreateProject(ctx context.Context, project string) (err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			msg := fmt.Sprintf("failed to create project %v", project)
			l.logger.Debug(msg, zap.Error(err), dur)
			return
		}
		l.logger.Debug("project create", dur)
	}(time.Now())
	return l.schemaService.CreateProject(ctx, project)
}

func (l *SchemaLogger) DeleteProject(ctx context.Context, project string) (err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			msg := fmt.Sprintf("failed to delete project %v", project)
			l.logger.Debug(msg, zap.Error(err), dur)
			return
		}
		l.logger.Debug("project delete", dur)
	}(time.Now())
	return l.schemaService.DeleteProject(ctx, project)
}

func (l *SchemaLogger) GetProjects(ctx context.Context) (names []string, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to get projects", zap.Error(err), dur)
			return
		}
		l.logger.Debug("projects get", dur)
	}(time.Now())
	return l.schemaService.GetProjects(ctx)
}

func (l *SchemaLogger) GetOrCreateCollectionFields(ctx context.Context, project, collection string, fields []metastore.SchemaField) (merged []metastore.SchemaField, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			msg := fmt.Sprintf("failed to evolve schema of %v.%v", project, collection)
			l.logger.Debug(msg, zap.Error(err), dur)
			return
		}
		l.logger.Debug("collection fields get or create", dur)
	}(time.Now())
	return l.schemaService.GetOrCreateCollectionFields(ctx, project, collection, fields)
}

func (l *SchemaLogger) GetCollection(ctx context.Context, project, collection string) (fields []metastore.SchemaField, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			msg := fmt.Sprintf("failed to get collection %v.%v", project, collection)
			l.logger.Debug(msg, zap.Error(err), dur)
			return
		}
		l.logger.Debug("collection get", dur)
	}(time.Now())
	return l.schemaService.GetCollection(ctx, project, collection)
}

func (l *SchemaLogger) GetCollectionNames(ctx context.Context, project string) (names []string, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			msg := fmt.Sprintf("failed to get collection names of %v", project)
			l.logger.Debug(msg, zap.Error(err), dur)
			return
		}
		l.logger.Debug("collection names get", dur)
	}(time.Now())
	return l.schemaService.GetCollectionNames(ctx, project)
}

func (l *SchemaLogger) GetCollections(ctx context.Context, project string) (collections map[string][]metastore.SchemaField, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			msg := fmt.Sprintf("failed to get collections of %v", project)
			l.logger.Debug(msg, zap.Error(err), dur)
			return
		}
		l.logger.Debug("collections get", dur)
	}(time.Now())
	return l.schemaService.GetCollections(ctx, project)
}

func (l *SchemaLogger) ClearCache() {
	l.schemaService.ClearCache()
	l.logger.Debug("schema cache clear")
}

// AccessKeyLogger is a logging service middleware for the Access Key Service.
type AccessKeyLogger struct {
	logger           *zap.Logger
	accessKeyService metastore.AccessKeyService
}

// NewAccessKeyLogger returns a logging service middleware for the Access Key
// Service.
func NewAccessKeyLogger(log *zap.Logger, s metastore.AccessKeyService) *AccessKeyLogger {
	return &AccessKeyLogger{
		logger:           log,
		accessKeyService: s,
	}
}

var _ metastore.AccessKeyService = (*AccessKeyLogger)(nil)

func (l *AccessKeyLogger) CreateApiKeys(ctx context.Context, project string) (set *metastore.AccessKeySet, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			msg := fmt.Sprintf("failed to create api keys for %v", project)
			l.logger.Debug(msg, zap.Error(err), dur)
			return
		}
		l.logger.Debug("api keys create", dur)
	}(time.Now())
	return l.accessKeyService.CreateApiKeys(ctx, project)
}

func (l *AccessKeyLogger) RevokeApiKeys(ctx context.Context, project string, id uint64) (err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			msg := fmt.Sprintf("failed to revoke api keys %v of %v", id, project)
			l.logger.Debug(msg, zap.Error(err), dur)
			return
		}
		l.logger.Debug("api keys revoke", dur)
	}(time.Now())
	return l.accessKeyService.RevokeApiKeys(ctx, project, id)
}

func (l *AccessKeyLogger) CheckPermission(ctx context.Context, project string, keyType metastore.KeyType, token string) (ok bool, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			msg := fmt.Sprintf("failed to check %v permission on %v", keyType, project)
			l.logger.Debug(msg, zap.Error(err), dur)
			return
		}
		l.logger.Debug("permission check", zap.Bool("granted", ok), dur)
	}(time.Now())
	return l.accessKeyService.CheckPermission(ctx, project, keyType, token)
}

func (l *AccessKeyLogger) GetApiKeys(ctx context.Context, ids []uint64) (sets []*metastore.AccessKeySet, err error) {
	defer func(start time.Time) {
		dur := zap.Duration("took", time.Since(start))
		if err != nil {
			l.logger.Debug("failed to get api keys", zap.Error(err), dur)
			return
		}
		l.logger.Debug("api keys get", dur)
	}(time.Now())
	return l.accessKeyService.GetApiKeys(ctx, ids)
}
