package tests

import (
	"context"
	"testing"

	"github.com/meshpart/meshpart/pkg/domain"
	"github.com/meshpart/meshpart/pkg/ports"
)

// RunDistributedIndexContract is a reusable suite that verifies an adapter
// complies with ports.DistributedIndex. Adapters call it from their own
// package tests against a fresh, empty index.
func RunDistributedIndexContract(t *testing.T, idx ports.DistributedIndex) {
	t.Helper()
	ctx := context.Background()

	keyA := domain.EntityKey{Kind: domain.KindCell, ID: 1}
	keyB := domain.EntityKey{Kind: domain.KindVertex, ID: 7}

	t.Run("AddAndLookup", func(t *testing.T) {
		if err := idx.UpdateKeys(ctx, 0, []domain.EntityKey{keyA, keyB}, nil); err != nil {
			t.Fatalf("UpdateKeys failed: %v", err)
		}
		if err := idx.UpdateKeys(ctx, 2, []domain.EntityKey{keyA}, nil); err != nil {
			t.Fatalf("UpdateKeys failed: %v", err)
		}

		pairs, err := idx.Lookup(ctx, []domain.EntityKey{keyA, keyB})
		if err != nil {
			t.Fatalf("Lookup failed: %v", err)
		}
		want := []domain.KeyRank{
			{Key: keyB, Rank: 0}, // vertex sorts before cell
			{Key: keyA, Rank: 0},
			{Key: keyA, Rank: 2},
		}
		if len(pairs) != len(want) {
			t.Fatalf("expected %d pairs, got %d: %v", len(want), len(pairs), pairs)
		}
		for i := range want {
			if pairs[i] != want[i] {
				t.Errorf("pair %d: got %v, want %v", i, pairs[i], want[i])
			}
		}
	})

	t.Run("RemoveThenAddNetsToPresent", func(t *testing.T) {
		// An entity destroyed and recreated in one migration shows up in
		// both lists of the same batch; removals must apply first.
		if err := idx.UpdateKeys(ctx, 0, []domain.EntityKey{keyA}, []domain.EntityKey{keyA}); err != nil {
			t.Fatalf("UpdateKeys failed: %v", err)
		}
		pairs, err := idx.Lookup(ctx, []domain.EntityKey{keyA})
		if err != nil {
			t.Fatalf("Lookup failed: %v", err)
		}
		found := false
		for _, p := range pairs {
			if p.Rank == 0 {
				found = true
			}
		}
		if !found {
			t.Error("rank 0 missing after remove+add batch")
		}
	})

	t.Run("Remove", func(t *testing.T) {
		if err := idx.UpdateKeys(ctx, 2, nil, []domain.EntityKey{keyA}); err != nil {
			t.Fatalf("UpdateKeys failed: %v", err)
		}
		pairs, err := idx.Lookup(ctx, []domain.EntityKey{keyA})
		if err != nil {
			t.Fatalf("Lookup failed: %v", err)
		}
		for _, p := range pairs {
			if p.Rank == 2 {
				t.Errorf("rank 2 still listed for %s after removal", keyA)
			}
		}
	})

	t.Run("UnknownKeyYieldsNothing", func(t *testing.T) {
		pairs, err := idx.Lookup(ctx, []domain.EntityKey{{Kind: domain.KindFace, ID: 999}})
		if err != nil {
			t.Fatalf("Lookup failed: %v", err)
		}
		if len(pairs) != 0 {
			t.Errorf("expected no pairs for unknown key, got %v", pairs)
		}
	})
}
