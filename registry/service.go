package registry

import (
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/analyticshq/metastore"
	"github.com/analyticshq/metastore/rand"
	"github.com/analyticshq/metastore/snowflake"
)

// tokenSize is the number of random bytes behind each issued token.
const tokenSize = 48

// Service implements metastore.SchemaService and metastore.AccessKeyService
// against a Store. It holds no lock across store I/O; cross-process
// consistency comes from the store's transaction atomicity plus a bounded
// retry, and the schema cache is a disposable local view.
type Service struct {
	store *Store
	cache *SchemaCache

	log      *zap.Logger
	clock    clock.Clock
	idGen    metastore.IDGenerator
	tokenGen metastore.TokenGenerator
	cacheTTL time.Duration
}

var _ metastore.SchemaService = (*Service)(nil)
var _ metastore.AccessKeyService = (*Service)(nil)

// ServiceOption is a functional option for Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(log *zap.Logger) ServiceOption {
	return func(s *Service) {
		s.log = log
	}
}

// WithClock sets the clock used for timestamps and cache TTL.
func WithClock(cl clock.Clock) ServiceOption {
	return func(s *Service) {
		s.clock = cl
	}
}

// WithIDGenerator sets the access-key set id generator.
func WithIDGenerator(gen metastore.IDGenerator) ServiceOption {
	return func(s *Service) {
		s.idGen = gen
	}
}

// WithTokenGenerator sets the access token generator.
func WithTokenGenerator(gen metastore.TokenGenerator) ServiceOption {
	return func(s *Service) {
		s.tokenGen = gen
	}
}

// WithSchemaCacheTTL bounds how long a cached schema snapshot may serve reads
// without a store round-trip. Zero keeps entries until explicit invalidation.
func WithSchemaCacheTTL(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.cacheTTL = d
	}
}

// NewService returns a Service around store.
func NewService(store *Store, opts ...ServiceOption) *Service {
	s := &Service{
		store: store,
		log:   zap.NewNop(),
		clock: clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.idGen == nil {
		gen, err := snowflake.New()
		if err != nil {
			// snowflake.New without options cannot fail; guard anyway.
			panic(err)
		}
		s.idGen = gen
	}
	if s.tokenGen == nil {
		s.tokenGen = rand.NewTokenGenerator(tokenSize)
	}

	s.cache = NewSchemaCache(WithCacheTTL(s.cacheTTL), WithCacheClock(s.clock))
	store.now = s.clock.Now

	return s
}

// ClearCache drops every cached schema snapshot; subsequent reads hit the
// store.
func (s *Service) ClearCache() {
	s.cache.InvalidateAll()
}
