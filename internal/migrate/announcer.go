package migrate

import (
	"context"
	"fmt"
	"sort"

	"github.com/meshpart/meshpart/internal/wire"
	"github.com/meshpart/meshpart/pkg/domain"
)

// announce tells every rank that shares or ghosts a reassigned entity about
// its new owner. Only the current owner knows the request, so it fans the
// (key, new owner) pair out along the entity's communication roster; each
// receiving rank classifies its copy as a ghosted change (held only as a
// receive-side ghost) or a shared change, and sorts both lists by key for
// deterministic downstream processing.
func (e *Engine) announce(ctx context.Context, local []localChange) (shared, ghosted []remoteChange, err error) {
	size := e.ex.Size()

	outgoing := make([][]byte, size)
	sent := 0
	for _, c := range local {
		for _, dest := range e.store.RosterRanks(c.handle) {
			outgoing[dest], err = wire.AppendRecord(outgoing[dest], wire.Announcement{Key: c.key, NewOwner: c.newOwner})
			if err != nil {
				return nil, nil, err
			}
			sent++
		}
	}
	for _, b := range outgoing {
		e.metrics.AddBytesSent(stageAnnounce, len(b))
	}

	incoming, err := e.ex.AllToAll(ctx, outgoing)
	if err != nil {
		return nil, nil, fmt.Errorf("announcement exchange: %w", err)
	}

	for src, buf := range incoming {
		r := wire.NewReader(buf)
		var a wire.Announcement
		for {
			ok, err := r.Next(&a)
			if err != nil {
				return nil, nil, fmt.Errorf("announcement from rank %d: %w", src, err)
			}
			if !ok {
				break
			}
			h, present := e.store.Get(a.Key)
			if !present {
				// The owner's roster said we hold a copy but we don't; the
				// roster rebuild at the end of the call will reconcile it.
				e.logger.WarnContext(ctx, "announcement for absent entity", "key", a.Key.String(), "from", src)
				continue
			}
			rc := remoteChange{handle: h, key: a.Key, newOwner: a.NewOwner}
			if !e.store.HasPart(h, domain.PartOwned) && !e.store.HasPart(h, domain.PartShared) {
				ghosted = append(ghosted, rc)
			} else {
				shared = append(shared, rc)
			}
		}
	}

	byKey := func(list []remoteChange) {
		sort.Slice(list, func(i, j int) bool { return list[i].key.Less(list[j].key) })
	}
	byKey(shared)
	byKey(ghosted)

	e.logger.DebugContext(ctx, "ownership announced",
		"sent", sent, "shared_changes", len(shared), "ghosted_changes", len(ghosted))
	return shared, ghosted, nil
}
