package migrate

import (
	"context"
	"fmt"
	"sort"

	"github.com/meshpart/meshpart/internal/mesh"
	"github.com/meshpart/meshpart/internal/wire"
	"github.com/meshpart/meshpart/pkg/domain"
)

// PushGhosts replicates the named ghosting domain's members (with their
// downward closures, so closure completeness holds on the receivers) from
// their owners to the domain's receiver ranks. Collective: every rank must
// call it with the same name, whether or not it has members to push.
//
// Ghosting is how read-only cached copies come into existence; the
// invalidation stage of ChangeOwnership is how they die.
func (e *Engine) PushGhosts(ctx context.Context, name string) error {
	rank := e.ex.Rank()
	size := e.ex.Size()
	errCount := 0

	var dom *mesh.GhostDomain
	for _, d := range e.store.GhostDomains() {
		if d.Name == name {
			dom = d
			break
		}
	}

	// handle -> receiver set, expanded through downward closures.
	sendTo := make(map[mesh.Handle]map[int]struct{})
	if dom != nil {
		for h, receivers := range dom.Members() {
			if !e.store.IsLive(h) || e.store.Owner(h) != rank {
				continue
			}
			closure := make(map[mesh.Handle]struct{})
			e.downwardClosure(h, closure)
			for m := range closure {
				if sendTo[m] == nil {
					sendTo[m] = make(map[int]struct{})
				}
				for _, r := range receivers {
					if r != rank {
						sendTo[m][r] = struct{}{}
					}
				}
			}
		}
	}

	order := make([]mesh.Handle, 0, len(sendTo))
	for h := range sendTo {
		order = append(order, h)
	}
	sort.Slice(order, func(i, j int) bool {
		return e.store.Key(order[i]).Less(e.store.Key(order[j]))
	})

	batch := &indexBatch{}
	outgoing := make([][]byte, size)
	for _, h := range order {
		info := domain.EntityInfo{
			Key:       e.store.Key(h),
			Owner:     e.store.Owner(h),
			Parts:     e.store.Parts(h),
			Relations: e.store.Relations(h),
		}
		if e.codec != nil {
			payload, err := e.codec.Pack(info.Key)
			if err != nil {
				e.logger.ErrorContext(ctx, "payload pack failed", "key", info.Key.String(), "error", err)
				errCount++
			} else {
				info.Payload = payload
			}
		}
		level := domain.GhostLevel(0)
		if dom != nil {
			level = dom.Level
		}
		roster := e.store.Roster(h)
		for dest := range sendTo[h] {
			var err error
			outgoing[dest], err = wire.AppendRecord(outgoing[dest], info)
			if err != nil {
				return fmt.Errorf("serialize ghost %s: %w", info.Key, err)
			}
			roster = append(roster, domain.RosterEntry{Level: level, Rank: dest})
		}
		e.store.SetRoster(h, roster)
	}

	incoming, err := e.ex.AllToAll(ctx, outgoing)
	if err != nil {
		return fmt.Errorf("ghost exchange: %w", err)
	}

	var created []domain.EntityInfo
	for src, buf := range incoming {
		r := wire.NewReader(buf)
		for {
			var info domain.EntityInfo
			ok, err := r.Next(&info)
			if err != nil {
				e.logger.ErrorContext(ctx, "ghost record unpack failed", "from", src, "error", err)
				errCount++
				break
			}
			if !ok {
				break
			}
			if _, exists := e.store.Get(info.Key); exists {
				// Already held (owned or shared); a ghost push never
				// downgrades an existing copy.
				continue
			}
			h := e.store.Declare(info.Key, info.Owner)
			parts := make([]string, 0, len(info.Parts))
			for _, p := range info.Parts {
				if p != domain.PartOwned && p != domain.PartShared {
					parts = append(parts, p)
				}
			}
			e.store.SetParts(h, parts)
			e.store.AddPart(h, domain.PartGhosted)
			batch.added = append(batch.added, info.Key)
			created = append(created, info)
		}
	}
	for i := range created {
		errCount += e.receiveRelations(ctx, &created[i])
	}
	if e.codec != nil {
		for i := range created {
			if len(created[i].Payload) == 0 {
				continue
			}
			if err := e.codec.Unpack(created[i].Key, created[i].Payload); err != nil {
				e.logger.ErrorContext(ctx, "ghost payload unpack failed", "key", created[i].Key.String(), "error", err)
				errCount++
			}
		}
	}

	if err := e.index.UpdateKeys(ctx, rank, batch.added, nil); err != nil {
		return fmt.Errorf("distributed index update: %w", err)
	}

	total, err := e.ex.SumAll(ctx, errCount)
	if err != nil {
		return fmt.Errorf("ghost error reduction: %w", err)
	}
	if total > 0 {
		return fmt.Errorf("%d ghost push error(s) across all ranks: %w", total, domain.ErrMigrationFailed)
	}

	if err := e.ex.Barrier(ctx); err != nil {
		return err
	}
	return e.rebuildRosters(ctx)
}

// Synchronize flushes nothing but re-derives rosters from the distributed
// index after out-of-band topology changes (initial construction, direct
// declarations). Collective.
func (e *Engine) Synchronize(ctx context.Context) error {
	if err := e.ex.Barrier(ctx); err != nil {
		return err
	}
	return e.rebuildRosters(ctx)
}
