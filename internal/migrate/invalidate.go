package migrate

import (
	"context"
	"fmt"
	"sort"

	"github.com/meshpart/meshpart/internal/mesh"
	"github.com/meshpart/meshpart/internal/wire"
	"github.com/meshpart/meshpart/pkg/domain"
)

// invalidateGhosts drops every ghost copy whose validity depends on
// ownership or adjacency that is about to change. A ghost is a read-only
// cached copy; it cannot survive an ownership edit, so the whole transitive
// neighborhood of every change is invalidated from ghost tiers (level > 0;
// the shared level-0 tier is exempt, it is rebuilt from adjacency at the end
// of the call).
//
// The stage is one collective round. Two flows share it:
//   - owners revoke replication of entities in a transferred closure, telling
//     level>0 roster ranks to drop their copies;
//   - holders that drop a ghost copy tell the other roster ranks, so owners
//     prune push lists and stale roster entries.
//
// Receivers expand incoming invalidations through their local transitive
// ghost closure, which is how a deletion cascades onto further processes.
func (e *Engine) invalidateGhosts(ctx context.Context, local []localChange,
	shared, ghosted []remoteChange, batch *indexBatch) error {

	// Union of ghost closures over every change list, taken both ways:
	// downward dependents and upward dependents of each changed entity.
	removal := make(map[mesh.Handle]struct{})
	for _, c := range shared {
		e.transitiveGhostClosure(c.handle, removal)
	}
	for _, c := range ghosted {
		e.transitiveGhostClosure(c.handle, removal)
	}
	for _, c := range local {
		e.transitiveGhostClosure(c.handle, removal)
	}

	// Replication revocation: every member of a transferred closure leaves
	// all ghost tiers, whoever owns it, because its authoritative
	// neighborhood is moving.
	revoke := make(map[mesh.Handle]struct{})
	for _, c := range local {
		e.downwardClosure(c.handle, revoke)
	}

	outgoing := make([][]byte, e.ex.Size())
	var err error
	appendTo := func(dest int, key domain.EntityKey) error {
		outgoing[dest], err = wire.AppendRecord(outgoing[dest], wire.Invalidation{Key: key})
		return err
	}

	for h := range revoke {
		roster := e.store.Roster(h)
		var kept []domain.RosterEntry
		for _, entry := range roster {
			if entry.Level > domain.SharedLevel {
				if err := appendTo(entry.Rank, e.store.Key(h)); err != nil {
					return err
				}
				continue
			}
			kept = append(kept, entry)
		}
		if len(kept) != len(roster) {
			e.store.SetRoster(h, kept)
		}
		for _, d := range e.store.GhostDomains() {
			d.Remove(h)
		}
	}

	// Local ghost copies we are about to drop: tell everyone else who holds
	// the entity, so the owner stops pushing to us.
	victims := make(map[mesh.Handle]struct{})
	for h := range removal {
		if !e.isPureGhost(h) {
			continue
		}
		victims[h] = struct{}{}
		for _, dest := range e.store.RosterRanks(h) {
			if err := appendTo(dest, e.store.Key(h)); err != nil {
				return err
			}
		}
	}

	for _, b := range outgoing {
		e.metrics.AddBytesSent(stageInvalidate, len(b))
	}
	incoming, err := e.ex.AllToAll(ctx, outgoing)
	if err != nil {
		return fmt.Errorf("invalidation exchange: %w", err)
	}

	rank := e.ex.Rank()
	for src, buf := range incoming {
		r := wire.NewReader(buf)
		var inv wire.Invalidation
		for {
			ok, err := r.Next(&inv)
			if err != nil {
				return fmt.Errorf("invalidation from rank %d: %w", src, err)
			}
			if !ok {
				break
			}
			h, present := e.store.Get(inv.Key)
			if !present {
				continue
			}
			switch {
			case e.store.Owner(h) == rank:
				// A receiver dropped its copy: prune the push lists and the
				// ghost-tier roster entries pointing at it.
				for _, d := range e.store.GhostDomains() {
					if d.Contains(h) {
						d.Remove(h)
					}
				}
				e.stripGhostRosterEntries(h, src)
			case e.isPureGhost(h):
				// Our cached copy is now stale; drop it and its ghost
				// dependents.
				e.transitiveGhostClosure(h, victims)
				victims[h] = struct{}{}
			default:
				// Shared copy survives (level 0 is exempt); only the ghost
				// tier entries toward src go.
				e.stripGhostRosterEntries(h, src)
			}
		}
	}

	destroyed := e.destroyGhostCopies(victims, batch)
	e.metrics.AddInvalidated(destroyed)
	e.logger.DebugContext(ctx, "ghosts invalidated",
		"removal_set", len(removal), "revoked", len(revoke), "destroyed", destroyed)
	return nil
}

// isPureGhost reports whether the local copy exists only because a ghosting
// domain replicated it here.
func (e *Engine) isPureGhost(h mesh.Handle) bool {
	return e.store.IsLive(h) &&
		!e.store.HasPart(h, domain.PartOwned) &&
		!e.store.HasPart(h, domain.PartShared)
}

func (e *Engine) stripGhostRosterEntries(h mesh.Handle, rank int) {
	roster := e.store.Roster(h)
	var kept []domain.RosterEntry
	for _, entry := range roster {
		if entry.Level > domain.SharedLevel && entry.Rank == rank {
			continue
		}
		kept = append(kept, entry)
	}
	if len(kept) != len(roster) {
		e.store.SetRoster(h, kept)
	}
}

// destroyGhostCopies deletes the victim set in reverse kind order (highest
// first) so no downward relation is severed before its holder is checked.
// Only pure ghost copies die; a victim pinned by a live upward relation
// outside the set is kept (the store refuses the destroy), since that copy
// is still justified by some surviving closure.
func (e *Engine) destroyGhostCopies(victims map[mesh.Handle]struct{}, batch *indexBatch) int {
	order := make([]mesh.Handle, 0, len(victims))
	for h := range victims {
		if e.isPureGhost(h) {
			order = append(order, h)
		}
	}
	sort.Slice(order, func(i, j int) bool {
		ki, kj := e.store.Key(order[i]), e.store.Key(order[j])
		return kj.Less(ki) // descending: cells before their vertices
	})

	destroyed := 0
	for _, h := range order {
		key := e.store.Key(h)
		if e.store.Destroy(h, victims) {
			batch.removed = append(batch.removed, key)
			destroyed++
		}
	}
	return destroyed
}
