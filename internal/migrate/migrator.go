package migrate

import (
	"context"
	"fmt"
	"sort"

	"github.com/meshpart/meshpart/internal/mesh"
	"github.com/meshpart/meshpart/internal/wire"
	"github.com/meshpart/meshpart/pkg/domain"
)

// migrateClosures physically relocates entity data to the new owners. Every
// transferred entity travels with its full downward closure, tagged with the
// same destination; receivers reconstruct entities, relations and payload
// from the records; senders then drop every copy no longer justified by a
// locally-owned closure, walking the closure in reverse so a downward
// relation is never invalidated before its holder is checked.
//
// Failures in here (payload pack/unpack, unresolvable downward relation,
// refused destroy) are counted locally and summed across ranks after the
// receive loop; any nonzero total fails every rank. There is no partial
// success once sends have been issued.
func (e *Engine) migrateClosures(ctx context.Context, local []localChange, batch *indexBatch) error {
	rank := e.ex.Rank()
	size := e.ex.Size()
	errCount := 0

	// 1. Downward closure of every given-away entity, each member tagged
	// with the destination of the transfer that pulled it in.
	sendTo := make(map[mesh.Handle]map[int]struct{})
	for _, c := range local {
		closure := make(map[mesh.Handle]struct{})
		e.downwardClosure(c.handle, closure)
		for h := range closure {
			if sendTo[h] == nil {
				sendTo[h] = make(map[int]struct{})
			}
			sendTo[h][c.newOwner] = struct{}{}
		}
	}

	order := make([]mesh.Handle, 0, len(sendTo))
	for h := range sendTo {
		order = append(order, h)
	}
	sort.Slice(order, func(i, j int) bool {
		return e.store.Key(order[i]).Less(e.store.Key(order[j]))
	})

	// 2. Serialize each closure member into every destination buffer.
	outgoing := make([][]byte, size)
	migrated := 0
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
		for dest := range sendTo[h] {
			var err error
			outgoing[dest], err = wire.AppendRecord(outgoing[dest], info)
			if err != nil {
				return fmt.Errorf("serialize %s: %w", info.Key, err)
			}
		}
		migrated++
	}
	for _, b := range outgoing {
		e.metrics.AddBytesSent(stageMigrate, len(b))
	}
	e.metrics.AddMigrated(migrated)

	incoming, err := e.ex.AllToAll(ctx, outgoing)
	if err != nil {
		return fmt.Errorf("migration exchange: %w", err)
	}

	// 3. Sender-side cleanup, only now that the closure and destination set
	// are fully known and committed to the wire: reverse-walk the closure
	// (highest keys, hence highest kinds, first) and destroy what no
	// locally-owned closure still justifies.
	victims := make(map[mesh.Handle]struct{})
	for _, h := range order {
		if !e.memberOfOwnedClosure(h) {
			victims[h] = struct{}{}
		}
	}
	for i := len(order) - 1; i >= 0; i-- {
		h := order[i]
		if _, doomed := victims[h]; !doomed {
			continue
		}
		key := e.store.Key(h)
		if e.store.Destroy(h, victims) {
			batch.removed = append(batch.removed, key)
		} else {
			e.logger.ErrorContext(ctx, "migrated copy still pinned by live relation", "key", key.String())
			errCount++
		}
	}

	// 4. Receive side: entities first, then relations, then payload, so
	// every downward reference resolves before it is declared.
	var received []domain.EntityInfo
	for src, buf := range incoming {
		r := wire.NewReader(buf)
		for {
			var info domain.EntityInfo
			ok, err := r.Next(&info)
			if err != nil {
				e.logger.ErrorContext(ctx, "migration record unpack failed", "from", src, "error", err)
				errCount++
				break
			}
			if !ok {
				break
			}
			received = append(received, info)
		}
	}

	for i := range received {
		e.receiveEntity(&received[i], rank, batch)
	}
	for i := range received {
		errCount += e.receiveRelations(ctx, &received[i])
	}
	if e.codec != nil {
		for i := range received {
			info := &received[i]
			if len(info.Payload) == 0 {
				continue
			}
			if err := e.codec.Unpack(info.Key, info.Payload); err != nil {
				e.logger.ErrorContext(ctx, "payload unpack failed", "key", info.Key.String(), "error", err)
				errCount++
			}
		}
	}

	// 5. One batched directory update: removals first, additions second, so
	// a destroy-then-recreate within this call nets to presence.
	if err := e.index.UpdateKeys(ctx, rank, batch.added, batch.removed); err != nil {
		return fmt.Errorf("distributed index update: %w", err)
	}

	// 6. Fatal-error rendezvous: every rank fails together or not at all.
	total, err := e.ex.SumAll(ctx, errCount)
	if err != nil {
		return fmt.Errorf("migration error reduction: %w", err)
	}
	if total > 0 {
		return fmt.Errorf("%d unrecoverable migration error(s) across all ranks", total)
	}

	e.logger.DebugContext(ctx, "closures migrated",
		"sent", migrated, "received", len(received), "destroyed", len(batch.removed))
	return nil
}

// receiveEntity creates or updates the local copy described by info and
// reconciles its memberships. The declared owner decides the owned tag:
// forced on when this rank owns it, forced off otherwise; a non-owner copy
// created by migration is by construction adjacent to an owned closure, so
// it lands in the shared tier.
func (e *Engine) receiveEntity(info *domain.EntityInfo, rank int, batch *indexBatch) {
	h, existed := e.store.Get(info.Key)
	if !existed {
		h = e.store.Declare(info.Key, info.Owner)
		batch.added = append(batch.added, info.Key)
	}
	e.store.SetOwner(h, info.Owner)
	e.store.SetParts(h, info.Parts)
	if info.Owner == rank {
		e.store.AddPart(h, domain.PartOwned)
		e.store.RemovePart(h, domain.PartShared)
		e.store.RemovePart(h, domain.PartGhosted)
	} else {
		e.store.RemovePart(h, domain.PartOwned)
		e.store.AddPart(h, domain.PartShared)
		e.store.RemovePart(h, domain.PartGhosted)
	}
}

// receiveRelations reconciles the local copy's edges to exactly the received
// list. An unresolvable reference to a lower kind is an error (closure
// completeness guarantees the dependency arrived in this same batch); an
// unresolvable upward reference is fine: the destination simply does not
// hold that part of the graph.
func (e *Engine) receiveRelations(ctx context.Context, info *domain.EntityInfo) (errCount int) {
	h, ok := e.store.Get(info.Key)
	if !ok {
		return 0
	}

	want := make(map[domain.RelationRef]struct{}, len(info.Relations))
	for _, ref := range info.Relations {
		want[ref] = struct{}{}
	}
	for _, have := range e.store.Relations(h) {
		if _, keep := want[have]; keep {
			continue
		}
		if far, ok := e.store.Get(have.Key); ok {
			e.store.RemoveRelation(h, far, have.Ordinal)
		}
	}

	for _, ref := range info.Relations {
		far, ok := e.store.Get(ref.Key)
		if !ok {
			if ref.Key.Kind < info.Key.Kind {
				e.logger.ErrorContext(ctx, "migrated entity references absent dependency",
					"key", info.Key.String(), "missing", ref.Key.String())
				errCount++
			}
			continue
		}
		if err := e.store.DeclareRelation(h, far, ref.Ordinal); err != nil {
			e.logger.ErrorContext(ctx, "relation reconstruction failed",
				"key", info.Key.String(), "far", ref.Key.String(), "error", err)
			errCount++
		}
	}
	return errCount
}
