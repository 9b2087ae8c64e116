package mesh

import (
	"testing"

	"github.com/meshpart/meshpart/pkg/domain"
)

func key(kind domain.EntityKind, id uint64) domain.EntityKey {
	return domain.EntityKey{Kind: kind, ID: id}
}

func TestStore_DeclareIsIdempotent(t *testing.T) {
	s := NewStore(0)
	k := key(domain.KindVertex, 1)

	h1 := s.Declare(k, 0)
	h2 := s.Declare(k, 3)

	if h1 != h2 {
		t.Fatalf("second Declare returned a new handle: %d vs %d", h1, h2)
	}
	if got := s.Owner(h1); got != 0 {
		t.Errorf("redeclaring must not rewrite the owner: got %d, want 0", got)
	}
}

func TestStore_DestroyRecyclesSlots(t *testing.T) {
	s := NewStore(0)
	k1 := key(domain.KindVertex, 1)
	h1 := s.Declare(k1, 0)

	if !s.Destroy(h1, nil) {
		t.Fatal("Destroy of an unrelated entity must succeed")
	}
	if s.IsLive(h1) {
		t.Fatal("handle still live after Destroy")
	}
	if _, ok := s.Get(k1); ok {
		t.Fatal("key still resolves after Destroy")
	}

	// The freed slot is reused for the next declaration.
	h2 := s.Declare(key(domain.KindVertex, 2), 0)
	if h2 != h1 {
		t.Errorf("expected slot reuse: got handle %d, want %d", h2, h1)
	}
	if s.Key(h2) != key(domain.KindVertex, 2) {
		t.Errorf("recycled slot carries the wrong key: %s", s.Key(h2))
	}
}

func TestStore_DestroyRefusedWhileUpwardHolderLives(t *testing.T) {
	s := NewStore(0)
	cell := s.Declare(key(domain.KindCell, 1), 0)
	vert := s.Declare(key(domain.KindVertex, 1), 0)
	if err := s.DeclareRelation(cell, vert, 0); err != nil {
		t.Fatal(err)
	}

	// The cell still references the vertex, so the vertex is pinned.
	if s.Destroy(vert, nil) {
		t.Fatal("vertex destroyed while its cell still holds it")
	}
	if !s.IsLive(vert) {
		t.Fatal("refused Destroy must leave the entity intact")
	}

	// Declaring the pinning entity part of the delete set unblocks it.
	del := map[Handle]struct{}{cell: {}, vert: {}}
	if !s.Destroy(vert, del) {
		t.Fatal("vertex not destroyed although its only holder is in the delete set")
	}

	// Downward relations never pin: the cell goes down without ceremony.
	if !s.Destroy(cell, nil) {
		t.Fatal("cell destroy refused")
	}
}

func TestStore_DestroySeversRelations(t *testing.T) {
	s := NewStore(0)
	cell := s.Declare(key(domain.KindCell, 1), 0)
	v1 := s.Declare(key(domain.KindVertex, 1), 0)
	v2 := s.Declare(key(domain.KindVertex, 2), 0)
	if err := s.DeclareRelation(cell, v1, 0); err != nil {
		t.Fatal(err)
	}
	if err := s.DeclareRelation(cell, v2, 0); err != nil {
		t.Fatal(err)
	}

	if !s.Destroy(cell, nil) {
		t.Fatal("cell destroy refused")
	}
	for _, v := range []Handle{v1, v2} {
		if rels := s.Relations(v); len(rels) != 0 {
			t.Errorf("vertex %s keeps dangling relations after cell destroy: %v",
				s.Key(v), rels)
		}
	}
}

func TestStore_RelationsRejectEqualKinds(t *testing.T) {
	s := NewStore(0)
	a := s.Declare(key(domain.KindVertex, 1), 0)
	b := s.Declare(key(domain.KindVertex, 2), 0)
	if err := s.DeclareRelation(a, b, 0); err == nil {
		t.Fatal("expected error relating two vertices")
	}
}

func TestStore_RelationDirectionAndOrdinals(t *testing.T) {
	s := NewStore(0)
	cell := s.Declare(key(domain.KindCell, 1), 0)
	vert := s.Declare(key(domain.KindVertex, 1), 0)

	// Two parallel edges with distinct ordinals coexist; redeclaring one is
	// a no-op.
	for _, ord := range []uint32{0, 1, 0} {
		if err := s.DeclareRelation(cell, vert, ord); err != nil {
			t.Fatal(err)
		}
	}
	if got := len(s.Relations(cell)); got != 2 {
		t.Fatalf("expected 2 relations on the cell, got %d", got)
	}

	if down := s.Downward(cell); len(down) != 2 || down[0] != vert {
		t.Errorf("cell downward = %v, want two refs to the vertex", down)
	}
	if up := s.Downward(vert); len(up) != 0 {
		t.Errorf("vertex has no downward relations, got %v", up)
	}
	if up := s.Upward(vert); len(up) != 2 || up[0] != cell {
		t.Errorf("vertex upward = %v, want two refs to the cell", up)
	}

	s.RemoveRelation(cell, vert, 1)
	if got := len(s.Relations(vert)); got != 1 {
		t.Errorf("removal must drop both halves: vertex still sees %d", got)
	}
}

func TestStore_RosterMaintainsCommList(t *testing.T) {
	s := NewStore(0)
	a := s.Declare(key(domain.KindCell, 2), 0)
	b := s.Declare(key(domain.KindCell, 1), 0)

	s.SetRoster(a, []domain.RosterEntry{{Level: 0, Rank: 1}})
	s.SetRoster(b, []domain.RosterEntry{{Level: 1, Rank: 2}, {Level: 0, Rank: 2}})

	comm := s.CommList()
	if len(comm) != 2 || comm[0] != b || comm[1] != a {
		t.Fatalf("comm list not key-sorted: %v", comm)
	}

	// Emptying a roster removes the entity from the list.
	s.SetRoster(a, nil)
	comm = s.CommList()
	if len(comm) != 1 || comm[0] != b {
		t.Fatalf("comm list after roster clear: %v", comm)
	}

	// RosterRanks deduplicates across levels.
	if ranks := s.RosterRanks(b); len(ranks) != 1 || ranks[0] != 2 {
		t.Errorf("RosterRanks = %v, want [2]", ranks)
	}
}

func TestStore_GhostDomains(t *testing.T) {
	s := NewStore(0)
	if _, err := s.DeclareGhostDomain("halo", 0); err == nil {
		t.Fatal("level 0 is the shared tier, not a ghost level")
	}
	d, err := s.DeclareGhostDomain("halo", 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.DeclareGhostDomain("halo", 2); err == nil {
		t.Fatal("duplicate domain name accepted")
	}
	if _, err := s.DeclareGhostDomain("far", 1); err == nil {
		t.Fatal("duplicate level accepted")
	}

	h := s.Declare(key(domain.KindVertex, 1), 0)
	d.Add(h, 2, 1, 2)
	if ranks := d.Members()[h]; len(ranks) != 2 {
		t.Errorf("receiver ranks not deduplicated: %v", ranks)
	}

	// Destroy drops domain membership alongside the entity.
	if !s.Destroy(h, nil) {
		t.Fatal("destroy refused")
	}
	if d.Contains(h) {
		t.Error("destroyed entity still a domain member")
	}
}
