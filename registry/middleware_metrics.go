package registry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/analyticshq/metastore"
)

// redRecorder records request count and duration per method, labeled by the
// error code of the outcome.
type redRecorder struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newREDRecorder(reg prometheus.Registerer, subsystem string) *redRecorder {
	return &redRecorder{
		calls: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "metastore",
			Subsystem: subsystem,
			Name:      "calls_total",
			Help:      "Number of calls by method and error code.",
		}, []string{"method", "error"}),
		duration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "metastore",
			Subsystem: subsystem,
			Name:      "call_duration_seconds",
			Help:      "Duration of calls by method.",
		}, []string{"method"}),
	}
}

// record starts a timer for method and returns the completion func, which
// passes err through unchanged.
func (r *redRecorder) record(method string) func(error) error {
	start := time.Now()
	return func(err error) error {
		r.duration.WithLabelValues(method).Observe(time.Since(start).Seconds())

		code := ""
		if err != nil {
			code = metastore.ErrorCode(err)
		}
		r.calls.WithLabelValues(method, code).Inc()
		return err
	}
}

// SchemaMetrics is a metrics service middleware for the Schema Service.
type SchemaMetrics struct {
	rec           *redRecorder
	schemaService metastore.SchemaService
}

// NewSchemaMetrics returns a metrics service middleware for the Schema
// Service.
func NewSchemaMetrics(reg prometheus.Registerer, s metastore.SchemaService) *SchemaMetrics {
	return &SchemaMetrics{
		rec:           newREDRecorder(reg, "schema"),
		schemaService: s,
	}
}

var _ metastore.SchemaService = (*SchemaMetrics)(nil)

func (m *SchemaMetrics) CreateProject(ctx context.Context, project string) error {
	rec := m.rec.record("create_project")
	err := m.schemaService.CreateProject(ctx, project)
	return rec(err)
}

func (m *SchemaMetrics) DeleteProject(ctx context.Context, project string) error {
	rec := m.rec.record("delete_project")
	err := m.schemaService.DeleteProject(ctx, project)
	return rec(err)
}

func (m *SchemaMetrics) GetProjects(ctx context.Context) ([]string, error) {
	rec := m.rec.record("get_projects")
	names, err := m.schemaService.GetProjects(ctx)
	return names, rec(err)
}

func (m *SchemaMetrics) GetOrCreateCollectionFields(ctx context.Context, project, collection string, fields []metastore.SchemaField) ([]metastore.SchemaField, error) {
	rec := m.rec.record("get_or_create_collection_fields")
	merged, err := m.schemaService.GetOrCreateCollectionFields(ctx, project, collection, fields)
	return merged, rec(err)
}

func (m *SchemaMetrics) GetCollection(ctx context.Context, project, collection string) ([]metastore.SchemaField, error) {
	rec := m.rec.record("get_collection")
	fields, err := m.schemaService.GetCollection(ctx, project, collection)
	return fields, rec(err)
}

func (m *SchemaMetrics) GetCollectionNames(ctx context.Context, project string) ([]string, error) {
	rec := m.rec.record("get_collection_names")
	names, err := m.schemaService.GetCollectionNames(ctx, project)
	return names, rec(err)
}

func (m *SchemaMetrics) GetCollections(ctx context.Context, project string) (map[string][]metastore.SchemaField, error) {
	rec := m.rec.record("get_collections")
	collections, err := m.schemaService.GetCollections(ctx, project)
	return collections, rec(err)
}

func (m *SchemaMetrics) ClearCache() {
	rec := m.rec.record("clear_cache")
	m.schemaService.ClearCache()
	_ = rec(nil)
}

// AccessKeyMetrics is a metrics service middleware for the Access Key
// Service.
type AccessKeyMetrics struct {
	rec              *redRecorder
	accessKeyService metastore.AccessKeyService
}

// NewAccessKeyMetrics returns a metrics service middleware for the Access Key
// Service.
func NewAccessKeyMetrics(reg prometheus.Registerer, s metastore.AccessKeyService) *AccessKeyMetrics {
	return &AccessKeyMetrics{
		rec:              newREDRecorder(reg, "access_key"),
		accessKeyService: s,
	}
}

var _ metastore.AccessKeyService = (*AccessKeyMetrics)(nil)

func (m *AccessKeyMetrics) CreateApiKeys(ctx context.Context, project string) (*metastore.AccessKeySet, error) {
	rec := m.rec.record("create_api_keys")
	set, err := m.accessKeyService.CreateApiKeys(ctx, project)
	return set, rec(err)
}

func (m *AccessKeyMetrics) RevokeApiKeys(ctx context.Context, project string, id uint64) error {
	rec := m.rec.record("revoke_api_keys")
	err := m.accessKeyService.RevokeApiKeys(ctx, project, id)
	return rec(err)
}

func (m *AccessKeyMetrics) CheckPermission(ctx context.Context, project string, keyType metastore.KeyType, token string) (bool, error) {
	rec := m.rec.record("check_permission")
	ok, err := m.accessKeyService.CheckPermission(ctx, project, keyType, token)
	return ok, rec(err)
}

func (m *AccessKeyMetrics) GetApiKeys(ctx context.Context, ids []uint64) ([]*metastore.AccessKeySet, error) {
	rec := m.rec.record("get_api_keys")
	sets, err := m.accessKeyService.GetApiKeys(ctx, ids)
	return sets, rec(err)
}
