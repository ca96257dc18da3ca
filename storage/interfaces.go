package storage

import (
	"context"

	"github.com/poiesic/atlas/core"
)

// EligibleFilter is the input to the spatial-temporal eligibility predicate.
// A nil Geo and nil Time means every stored entity is eligible.
type EligibleFilter struct {
	// Geo restricts entities spatially. Entities with no geometry are
	// excluded whenever Geo is set.
	Geo *core.GeoFilter

	// Time restricts entities temporally: an entity is eligible when its
	// era overlaps the window.
	Time *core.TimeRange

	// Category, when non-empty, requires an exact match against the
	// entity metadata key "category".
	Category string

	// ExcludeUndated drops entities with no era under a time filter.
	// The default (false) treats an unknown era as "any time" so undated
	// records are not silently lost.
	ExcludeUndated bool
}

// EntityRepository provides operations for managing geographic entities.
// Implementations must be thread-safe and support concurrent access.
type EntityRepository interface {
	// PutEntities stores one or more entities with replace-by-id semantics:
	// an existing entity with the same id is overwritten and its index
	// entries are rewritten. Sets InsertedAt/UpdatedAt timestamps.
	PutEntities(ctx context.Context, entities ...*core.GeoEntity) error

	// DeleteEntities removes entities and their index entries by id.
	// Returns ErrNotFound if any entity doesn't exist.
	DeleteEntities(ctx context.Context, ids ...core.ID) error

	// GetEntity retrieves a single entity by id.
	// Returns ErrNotFound if the entity doesn't exist.
	GetEntity(ctx context.Context, id core.ID) (*core.GeoEntity, error)

	// GetEntities retrieves multiple entities by id.
	// Returns only the entities that exist (no error for missing ones).
	GetEntities(ctx context.Context, ids ...core.ID) ([]*core.GeoEntity, error)

	// Eligible evaluates the spatial-temporal predicate and returns the set
	// of entity ids passing it. With no geo and no time filter the result
	// has All set instead of enumerating ids.
	Eligible(ctx context.Context, filter *EligibleFilter) (*core.EligibleSet, error)

	// Count returns the number of stored entities.
	Count(ctx context.Context) (int, error)

	// ForEachEntity calls fn for every stored entity in key order. Stops
	// and returns fn's error if it is non-nil. Used for index rebuilds and
	// batch re-embedding.
	ForEachEntity(ctx context.Context, fn func(*core.GeoEntity) error) error

	// Close closes the repository and releases resources.
	Close() error
}
