// Package metastore defines the domain types and service contracts for the
// schema registry and access-key authority of a multi-tenant analytics
// platform. Concrete implementations live in the registry package; durable
// persistence is provided by a kv.Store such as the bolt or inmem packages.
package metastore

import (
	"context"
	"time"
)

// FieldType is the declared type of a schema field. The registry never
// interprets a type beyond equality checks, so kinds unknown to this package
// pass through opaquely.
type FieldType string

const (
	FieldTypeString    FieldType = "STRING"
	FieldTypeInt       FieldType = "INT"
	FieldTypeLong      FieldType = "LONG"
	FieldTypeFloat     FieldType = "FLOAT"
	FieldTypeDouble    FieldType = "DOUBLE"
	FieldTypeBoolean   FieldType = "BOOLEAN"
	FieldTypeDate      FieldType = "DATE"
	FieldTypeTimestamp FieldType = "TIMESTAMP"
	FieldTypeArray     FieldType = "ARRAY"
)

// FieldTypes lists the kinds known to this package.
func FieldTypes() []FieldType {
	return []FieldType{
		FieldTypeString,
		FieldTypeInt,
		FieldTypeLong,
		FieldTypeFloat,
		FieldTypeDouble,
		FieldTypeBoolean,
		FieldTypeDate,
		FieldTypeTimestamp,
		FieldTypeArray,
	}
}

// SchemaField is one attribute of a collection's records. Within a collection
// a field name maps to exactly one type for the collection's lifetime; the
// field set is a set, order carries no meaning.
type SchemaField struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
}

// Project is a tenant namespace grouping collections and access keys.
type Project struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// KeyType selects one of the three access-key slots of an AccessKeySet.
type KeyType string

const (
	ReadKey   KeyType = "READ_KEY"
	WriteKey  KeyType = "WRITE_KEY"
	MasterKey KeyType = "MASTER_KEY"
)

// Valid reports whether t names a known key slot.
func (t KeyType) Valid() bool {
	switch t {
	case ReadKey, WriteKey, MasterKey:
		return true
	}
	return false
}

// AccessKeySet is one issuance of project credentials. A project may hold any
// number of concurrently valid sets; revocation is scoped to a single set and
// invalidates all three tokens at once.
type AccessKeySet struct {
	ID        uint64    `json:"id"`
	Project   string    `json:"project"`
	ReadKey   string    `json:"readKey"`
	WriteKey  string    `json:"writeKey"`
	MasterKey string    `json:"masterKey"`
	CreatedAt time.Time `json:"createdAt"`
	Revoked   bool      `json:"revoked"`
}

// Key returns the token held in the given slot, or the empty string for an
// unknown slot.
func (a *AccessKeySet) Key(t KeyType) string {
	switch t {
	case ReadKey:
		return a.ReadKey
	case WriteKey:
		return a.WriteKey
	case MasterKey:
		return a.MasterKey
	}
	return ""
}

// SchemaService manages projects, collections and their field schemas.
//
// GetOrCreateCollectionFields is the schema-evolution entry point: it commits
// any requested fields not yet known for the collection and returns the merged
// authoritative field set. Concurrent callers adding disjoint names all
// converge on the union of their additions; a name requested with a type that
// differs from its committed type fails the whole call with a schema conflict
// and commits nothing.
type SchemaService interface {
	CreateProject(ctx context.Context, project string) error
	DeleteProject(ctx context.Context, project string) error
	GetProjects(ctx context.Context) ([]string, error)

	GetOrCreateCollectionFields(ctx context.Context, project, collection string, fields []SchemaField) ([]SchemaField, error)
	GetCollection(ctx context.Context, project, collection string) ([]SchemaField, error)
	GetCollectionNames(ctx context.Context, project string) ([]string, error)
	GetCollections(ctx context.Context, project string) (map[string][]SchemaField, error)

	// ClearCache drops every process-local cached schema snapshot, forcing
	// subsequent reads through the backing store.
	ClearCache()
}

// AccessKeyService issues, revokes and validates project access keys.
type AccessKeyService interface {
	CreateApiKeys(ctx context.Context, project string) (*AccessKeySet, error)
	RevokeApiKeys(ctx context.Context, project string, id uint64) error
	// CheckPermission reports whether token is currently valid for the given
	// slot on the project. A clean "no" is a false result, not an error.
	CheckPermission(ctx context.Context, project string, keyType KeyType, token string) (bool, error)
	GetApiKeys(ctx context.Context, ids []uint64) ([]*AccessKeySet, error)
}

// IDGenerator produces unique identifiers for access-key sets.
type IDGenerator interface {
	NextID() uint64
}

// TokenGenerator produces unguessable access tokens.
type TokenGenerator interface {
	Token() (string, error)
}
