// Package migrate implements the ownership-transfer protocol: a six-stage,
// barrier-separated pipeline that moves entity ownership between ranks while
// keeping every rank's view of sharing and ghosting consistent.
//
// Stage order is fixed: validate, announce, invalidate ghosts, flip local
// ownership, migrate closures, rebuild rosters. Each stage that talks to
// peers opens and closes its own collective exchange; no two stages share a
// round. Validation is the only recoverable abort point; past it, any
// failure is aggregated across ranks and surfaced as a fatal error on all of
// them, with the mesh left in an unspecified state.
package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/meshpart/meshpart/internal/mesh"
	"github.com/meshpart/meshpart/pkg/domain"
	"github.com/meshpart/meshpart/pkg/observability"
	"github.com/meshpart/meshpart/pkg/ports"
)

// Stage label values used in logs and metrics.
const (
	stageValidate   = "validate"
	stageAnnounce   = "announce"
	stageInvalidate = "invalidate"
	stageFlip       = "flip"
	stageMigrate    = "migrate"
	stageRebuild    = "rebuild"
)

// Engine runs the migration pipeline for one rank.
type Engine struct {
	store   *mesh.Store
	ex      ports.Exchanger
	index   ports.DistributedIndex
	codec   ports.PayloadCodec
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewEngine wires the pipeline to its ports. codec and metrics may be nil
// (no field payload, no instrumentation); logger must not be nil.
func NewEngine(store *mesh.Store, ex ports.Exchanger, index ports.DistributedIndex,
	codec ports.PayloadCodec, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{
		store:   store,
		ex:      ex,
		index:   index,
		codec:   codec,
		logger:  logger,
		metrics: metrics,
	}
}

// localChange is one validated reassignment of a locally-owned entity.
type localChange struct {
	handle   mesh.Handle
	key      domain.EntityKey
	newOwner int
}

// remoteChange is an announced reassignment received from an owner rank.
type remoteChange struct {
	handle   mesh.Handle
	key      domain.EntityKey
	newOwner int
}

// indexBatch accumulates directory updates across stages so the distributed
// index is told once, at the end of the migration stage.
type indexBatch struct {
	added   []domain.EntityKey
	removed []domain.EntityKey
}

// ChangeOwnership executes one collective ownership transfer. Every rank of
// the group must call it with its own (possibly empty) request list.
//
// On validation failure it returns *domain.ValidationError on every rank and
// the mesh is untouched. Any later failure wraps domain.ErrMigrationFailed
// and leaves the mesh unspecified.
func (e *Engine) ChangeOwnership(ctx context.Context, requests []domain.ChangeRequest) error {
	local, err := e.timedValidate(ctx, requests)
	if err != nil {
		return err
	}

	start := time.Now()
	shared, ghosted, err := e.announce(ctx, local)
	e.metrics.ObserveStage(stageAnnounce, time.Since(start))
	if err != nil {
		return fmt.Errorf("announce stage: %v: %w", err, domain.ErrMigrationFailed)
	}

	batch := &indexBatch{}

	start = time.Now()
	if err := e.invalidateGhosts(ctx, local, shared, ghosted, batch); err != nil {
		return fmt.Errorf("ghost invalidation stage: %v: %w", err, domain.ErrMigrationFailed)
	}
	e.metrics.ObserveStage(stageInvalidate, time.Since(start))

	start = time.Now()
	e.flipOwnership(local, shared, ghosted)
	e.metrics.ObserveStage(stageFlip, time.Since(start))

	start = time.Now()
	if err := e.migrateClosures(ctx, local, batch); err != nil {
		return fmt.Errorf("closure migration stage: %v: %w", err, domain.ErrMigrationFailed)
	}
	e.metrics.ObserveStage(stageMigrate, time.Since(start))

	// All ranks must have submitted their directory updates before anyone
	// queries the index to rebuild rosters.
	if err := e.ex.Barrier(ctx); err != nil {
		return fmt.Errorf("pre-rebuild barrier: %v: %w", err, domain.ErrMigrationFailed)
	}

	start = time.Now()
	if err := e.rebuildRosters(ctx); err != nil {
		return fmt.Errorf("roster rebuild stage: %v: %w", err, domain.ErrMigrationFailed)
	}
	e.metrics.ObserveStage(stageRebuild, time.Since(start))

	e.logger.DebugContext(ctx, "ownership change complete",
		"local_changes", len(local), "shared_changes", len(shared), "ghosted_changes", len(ghosted))
	return nil
}

func (e *Engine) timedValidate(ctx context.Context, requests []domain.ChangeRequest) ([]localChange, error) {
	start := time.Now()
	local, err := e.validate(ctx, requests)
	e.metrics.ObserveStage(stageValidate, time.Since(start))
	return local, err
}

// flipOwnership applies the local ownership writes in the orderings that
// keep concurrent consistency checks from ever observing an entity both
// owned and not-owned.
func (e *Engine) flipOwnership(local []localChange, shared, ghosted []remoteChange) {
	rank := e.ex.Rank()

	// Giving an entity away: membership moves out of the owned set before
	// the owner field changes.
	for _, c := range local {
		if !e.store.IsLive(c.handle) {
			continue
		}
		e.store.RemovePart(c.handle, domain.PartOwned)
		e.store.AddPart(c.handle, domain.PartShared)
		e.store.SetOwner(c.handle, c.newOwner)
	}

	// Learning a new owner for a copy we hold: owner field first; if we are
	// the new owner we already held a valid copy, so membership follows the
	// owner write.
	for _, lists := range [][]remoteChange{shared, ghosted} {
		for _, c := range lists {
			// Re-resolve by key: the invalidation stage may have destroyed
			// the copy (and recycled the handle) since the announcement.
			h, ok := e.store.Get(c.key)
			if !ok {
				continue
			}
			e.store.SetOwner(h, c.newOwner)
			if c.newOwner == rank {
				e.store.AddPart(h, domain.PartOwned)
				e.store.RemovePart(h, domain.PartShared)
				e.store.RemovePart(h, domain.PartGhosted)
			}
		}
	}
}
