package migrate

import (
	"context"
	"fmt"

	"github.com/meshpart/meshpart/pkg/domain"
)

// rebuildRosters restores accurate communication rosters from the
// distributed index, now that ownership and ghost membership have changed.
// The level-0 baseline is recomputed: one shared entry per other rank that
// holds the entity at all. Ghost-tier entries (level > 0) are an explicit
// replication decision made outside this protocol, so whatever the
// invalidation stage left of them is preserved verbatim, not recomputed.
//
// The store takes care of the comm-list bookkeeping: entities joining the
// list mark it for a single deferred re-sort; removals don't.
func (e *Engine) rebuildRosters(ctx context.Context) error {
	rank := e.ex.Rank()
	keys := e.store.Keys()

	pairs, err := e.index.Lookup(ctx, keys)
	if err != nil {
		return fmt.Errorf("distributed index lookup: %w", err)
	}

	// keys and pairs are both key-sorted; merge in one pass.
	i := 0
	changed := 0
	for _, key := range keys {
		var next []domain.RosterEntry
		for i < len(pairs) && pairs[i].Key == key {
			if pairs[i].Rank != rank {
				next = append(next, domain.RosterEntry{Level: domain.SharedLevel, Rank: pairs[i].Rank})
			}
			i++
		}
		h, ok := e.store.Get(key)
		if !ok {
			continue
		}
		old := e.store.Roster(h)
		for _, entry := range old {
			if entry.Level > domain.SharedLevel {
				next = append(next, entry)
			}
		}
		next = domain.NormalizeRoster(next)
		if !domain.EqualRosters(old, next) {
			e.store.SetRoster(h, next)
			changed++
		}
	}

	e.logger.DebugContext(ctx, "rosters rebuilt", "entities", len(keys), "changed", changed)
	return nil
}
