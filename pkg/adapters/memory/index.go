package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/meshpart/meshpart/pkg/domain"
	"github.com/meshpart/meshpart/pkg/ports"
)

// Index implements ports.DistributedIndex in memory. One Index is shared by
// every rank of an in-process cluster. Safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	holders map[domain.EntityKey]map[int]struct{}
}

var _ ports.DistributedIndex = (*Index)(nil)

// NewIndex creates an empty directory.
func NewIndex() *Index {
	return &Index{holders: make(map[domain.EntityKey]map[int]struct{})}
}

// UpdateKeys applies removals before additions, per the port contract.
func (x *Index) UpdateKeys(ctx context.Context, rank int, added, removed []domain.EntityKey) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	for _, k := range removed {
		if set, ok := x.holders[k]; ok {
			delete(set, rank)
			if len(set) == 0 {
				delete(x.holders, k)
			}
		}
	}
	for _, k := range added {
		set, ok := x.holders[k]
		if !ok {
			set = make(map[int]struct{})
			x.holders[k] = set
		}
		set[rank] = struct{}{}
	}
	return nil
}

// Lookup returns memberships sorted by key then rank.
func (x *Index) Lookup(ctx context.Context, keys []domain.EntityKey) ([]domain.KeyRank, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var out []domain.KeyRank
	for _, k := range keys {
		for r := range x.holders[k] {
			out = append(out, domain.KeyRank{Key: k, Rank: r})
		}
	}
	sort.Slice(out, func(i, j int) bool { return domain.LessKeyRank(out[i], out[j]) })
	return out, nil
}
