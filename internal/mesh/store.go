package mesh

import (
	"fmt"
	"sort"

	"github.com/meshpart/meshpart/pkg/domain"
)

// Handle is a stable index into the store's entity arena. Handles stay valid
// across unrelated mutations and are reused only after Destroy.
type Handle int32

// NilHandle is the zero result of a failed lookup.
const NilHandle Handle = -1

// relation is one half of a symmetric edge: the far entity plus the ordinal
// distinguishing parallel relations between the same pair. Direction is not
// stored; it is derived from the two entities' kinds.
type relation struct {
	to      Handle
	ordinal uint32
}

type entity struct {
	key       domain.EntityKey
	owner     int
	live      bool
	parts     map[string]struct{}
	relations []relation
	roster    []domain.RosterEntry
}

// Store is the process-local half of the distributed entity-relation graph:
// an arena of entities addressed by handle, a key index, symmetric typed
// relations, per-entity communication rosters and the process-wide list of
// communicated entities.
//
// The store is deliberately unsynchronized: the surrounding library runs
// exactly one mutating protocol mesh-wide at a time (the migration pipeline
// owns the store for the duration of a call).
type Store struct {
	rank  int
	slots []entity
	index map[domain.EntityKey]Handle
	free  []Handle

	comm       []Handle
	commSorted bool

	domains []*GhostDomain
}

// NewStore creates an empty store for the given rank.
func NewStore(rank int) *Store {
	return &Store{
		rank:  rank,
		index: make(map[domain.EntityKey]Handle),
	}
}

// Rank returns the owning process rank of this store.
func (s *Store) Rank() int { return s.rank }

// Get resolves a key to a live handle.
func (s *Store) Get(key domain.EntityKey) (Handle, bool) {
	h, ok := s.index[key]
	return h, ok
}

// Declare creates the entity for key with the given owner, or returns the
// existing handle unchanged if the key is already present (idempotent).
func (s *Store) Declare(key domain.EntityKey, owner int) Handle {
	if h, ok := s.index[key]; ok {
		return h
	}
	var h Handle
	if n := len(s.free); n > 0 {
		h = s.free[n-1]
		s.free = s.free[:n-1]
		s.slots[h] = entity{}
	} else {
		h = Handle(len(s.slots))
		s.slots = append(s.slots, entity{})
	}
	e := &s.slots[h]
	e.key = key
	e.owner = owner
	e.live = true
	e.parts = make(map[string]struct{})
	s.index[key] = h
	return h
}

// IsLive reports whether h addresses a live entity.
func (s *Store) IsLive(h Handle) bool {
	return h >= 0 && int(h) < len(s.slots) && s.slots[h].live
}

// Key returns the key of a live entity.
func (s *Store) Key(h Handle) domain.EntityKey { return s.slots[h].key }

// Owner returns the owner rank of a live entity.
func (s *Store) Owner(h Handle) int { return s.slots[h].owner }

// SetOwner rewrites the owner rank.
func (s *Store) SetOwner(h Handle, owner int) { s.slots[h].owner = owner }

// HasPart reports membership in the named part.
func (s *Store) HasPart(h Handle, part string) bool {
	_, ok := s.slots[h].parts[part]
	return ok
}

// AddPart adds the entity to the named part (no-op if already a member).
func (s *Store) AddPart(h Handle, part string) { s.slots[h].parts[part] = struct{}{} }

// RemovePart removes the entity from the named part.
func (s *Store) RemovePart(h Handle, part string) { delete(s.slots[h].parts, part) }

// Parts returns the entity's part memberships, sorted.
func (s *Store) Parts(h Handle) []string {
	e := &s.slots[h]
	if len(e.parts) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.parts))
	for p := range e.parts {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// SetParts reconciles the entity's memberships to exactly the given set.
func (s *Store) SetParts(h Handle, parts []string) {
	e := &s.slots[h]
	e.parts = make(map[string]struct{}, len(parts))
	for _, p := range parts {
		e.parts[p] = struct{}{}
	}
}

// DeclareRelation records a symmetric edge between a and b with the given
// ordinal. The two entities must be of different kinds (the kind ordering is
// what makes one side the downward side). Declaring an existing edge is a
// no-op.
func (s *Store) DeclareRelation(a, b Handle, ordinal uint32) error {
	if !s.IsLive(a) || !s.IsLive(b) {
		return domain.ErrEntityNotFound
	}
	ka, kb := s.slots[a].key.Kind, s.slots[b].key.Kind
	if ka == kb {
		return fmt.Errorf("relation %s <-> %s: entities of equal kind cannot be related",
			s.slots[a].key, s.slots[b].key)
	}
	if s.hasRelation(a, b, ordinal) {
		return nil
	}
	s.slots[a].relations = append(s.slots[a].relations, relation{to: b, ordinal: ordinal})
	s.slots[b].relations = append(s.slots[b].relations, relation{to: a, ordinal: ordinal})
	return nil
}

func (s *Store) hasRelation(a, b Handle, ordinal uint32) bool {
	for _, r := range s.slots[a].relations {
		if r.to == b && r.ordinal == ordinal {
			return true
		}
	}
	return false
}

// RemoveRelation severs the edge between a and b, both halves.
func (s *Store) RemoveRelation(a, b Handle, ordinal uint32) {
	s.dropHalf(a, b, ordinal)
	s.dropHalf(b, a, ordinal)
}

func (s *Store) dropHalf(from, to Handle, ordinal uint32) {
	rels := s.slots[from].relations
	for i, r := range rels {
		if r.to == to && r.ordinal == ordinal {
			s.slots[from].relations = append(rels[:i], rels[i+1:]...)
			return
		}
	}
}

// Downward returns the handles of entities related to h with a lower kind,
// in declaration order.
func (s *Store) Downward(h Handle) []Handle {
	return s.related(h, func(self, other domain.EntityKind) bool { return other < self })
}

// Upward returns the handles of entities related to h with a higher kind.
func (s *Store) Upward(h Handle) []Handle {
	return s.related(h, func(self, other domain.EntityKind) bool { return other > self })
}

func (s *Store) related(h Handle, want func(self, other domain.EntityKind) bool) []Handle {
	e := &s.slots[h]
	var out []Handle
	for _, r := range e.relations {
		if !s.IsLive(r.to) {
			continue
		}
		if want(e.key.Kind, s.slots[r.to].key.Kind) {
			out = append(out, r.to)
		}
	}
	return out
}

// Relations returns the entity's edges as wire-facing refs, sorted by far
// key then ordinal so serialized records are deterministic.
func (s *Store) Relations(h Handle) []domain.RelationRef {
	e := &s.slots[h]
	var out []domain.RelationRef
	for _, r := range e.relations {
		if !s.IsLive(r.to) {
			continue
		}
		out = append(out, domain.RelationRef{Key: s.slots[r.to].key, Ordinal: r.ordinal})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key.Less(out[j].Key)
		}
		return out[i].Ordinal < out[j].Ordinal
	})
	return out
}

// Destroy removes the entity if no live upward relation reaches it from an
// entity outside deleteSet. It returns false (and leaves everything intact)
// otherwise, so callers can batch-delete a closure in reverse kind order.
// On success the entity's remaining relations are severed first, its roster
// cleared, and the slot recycled.
func (s *Store) Destroy(h Handle, deleteSet map[Handle]struct{}) bool {
	if !s.IsLive(h) {
		return false
	}
	e := &s.slots[h]
	for _, r := range e.relations {
		if !s.IsLive(r.to) {
			continue
		}
		if s.slots[r.to].key.Kind <= e.key.Kind {
			continue // only upward holders pin the entity
		}
		if _, inSet := deleteSet[r.to]; !inSet {
			return false
		}
	}

	// Sever before reclaiming so no peer entity keeps a dangling half-edge.
	for len(e.relations) > 0 {
		r := e.relations[len(e.relations)-1]
		s.RemoveRelation(h, r.to, r.ordinal)
	}
	for _, d := range s.domains {
		delete(d.members, h)
	}
	s.setRosterInternal(h, nil)
	delete(s.index, e.key)
	s.slots[h] = entity{}
	s.free = append(s.free, h)
	return true
}

// Roster returns the entity's communication roster (normalized form).
func (s *Store) Roster(h Handle) []domain.RosterEntry {
	return s.slots[h].roster
}

// RosterRanks returns the distinct remote ranks in the entity's roster.
func (s *Store) RosterRanks(h Handle) []int {
	var out []int
	for _, e := range s.slots[h].roster {
		if len(out) == 0 || out[len(out)-1] != e.Rank {
			out = append(out, e.Rank)
		}
	}
	return out
}

// SetRoster replaces the entity's roster with the normalized form of
// entries, maintaining the process-wide comm list: the entity joins the list
// when its roster becomes nonempty and leaves it when the roster empties.
// The comm list is re-sorted only when something was added.
func (s *Store) SetRoster(h Handle, entries []domain.RosterEntry) {
	s.setRosterInternal(h, domain.NormalizeRoster(entries))
}

func (s *Store) setRosterInternal(h Handle, normalized []domain.RosterEntry) {
	e := &s.slots[h]
	hadRoster := len(e.roster) > 0
	e.roster = normalized
	switch {
	case len(normalized) > 0 && !hadRoster:
		s.comm = append(s.comm, h)
		s.commSorted = false
	case len(normalized) == 0 && hadRoster:
		for i, c := range s.comm {
			if c == h {
				s.comm = append(s.comm[:i], s.comm[i+1:]...)
				break
			}
		}
	}
}

// CommList returns the handles of every entity with a nonempty roster,
// sorted by key. The sort is deferred until something was added since the
// last call; removals keep the existing order.
func (s *Store) CommList() []Handle {
	if !s.commSorted {
		sort.Slice(s.comm, func(i, j int) bool {
			return s.slots[s.comm[i]].key.Less(s.slots[s.comm[j]].key)
		})
		s.commSorted = true
	}
	return s.comm
}

// Keys returns every live key, sorted.
func (s *Store) Keys() []domain.EntityKey {
	out := make([]domain.EntityKey, 0, len(s.index))
	for k := range s.index {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Snapshot captures the protocol-visible state of every live entity.
func (s *Store) Snapshot(size int) domain.MeshSnapshot {
	snap := domain.MeshSnapshot{Rank: s.rank, Size: size}
	for _, k := range s.Keys() {
		h := s.index[k]
		snap.Entities = append(snap.Entities, domain.EntitySnapshot{
			Key:       k,
			Owner:     s.slots[h].owner,
			Parts:     s.Parts(h),
			Roster:    append([]domain.RosterEntry(nil), s.slots[h].roster...),
			Relations: s.Relations(h),
		})
	}
	return snap
}
