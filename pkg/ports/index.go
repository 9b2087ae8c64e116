package ports

import (
	"context"

	"github.com/meshpart/meshpart/pkg/domain"
)

// DistributedIndex is the global directory mapping entity keys to the set of
// ranks holding any copy (owned, shared or ghosted). It is the single source
// of truth for roster rebuilding and must be told about every entity
// creation and destruction.
type DistributedIndex interface {
	// UpdateKeys records that the calling rank dropped `removed` and now
	// holds `added`, as one batch. Removals apply before additions, so a key
	// that appears in both nets to "present"; the protocol relies on this
	// when an entity is destroyed and recreated within a single call.
	UpdateKeys(ctx context.Context, rank int, added, removed []domain.EntityKey) error

	// Lookup returns every (key, rank) membership pair for the requested
	// keys, sorted by key then rank. Keys nobody holds yield no pairs.
	Lookup(ctx context.Context, keys []domain.EntityKey) ([]domain.KeyRank, error)
}
