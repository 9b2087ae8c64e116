// Package redis implements the distributed index on Redis, so ranks running
// in separate processes share one directory. Each entity key maps to a Redis
// set of holding ranks.
package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	backend "github.com/redis/go-redis/v9"

	"github.com/meshpart/meshpart/pkg/domain"
	"github.com/meshpart/meshpart/pkg/ports"
)

// Index implements ports.DistributedIndex using one Redis set per entity key.
type Index struct {
	client *backend.Client
	prefix string
}

var _ ports.DistributedIndex = (*Index)(nil)

type Option func(*Index)

// WithPrefix sets the key prefix for directory entries.
func WithPrefix(prefix string) Option {
	return func(x *Index) {
		x.prefix = prefix
	}
}

// New creates a Redis index with its own client.
func New(address, password string, db int, opts ...Option) *Index {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a Redis index from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Index {
	x := &Index{
		client: client,
		prefix: "meshpart:index:",
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

func (x *Index) key(k domain.EntityKey) string {
	return fmt.Sprintf("%s%d:%d", x.prefix, k.Kind, k.ID)
}

// UpdateKeys applies removals before additions in one pipeline round trip.
func (x *Index) UpdateKeys(ctx context.Context, rank int, added, removed []domain.EntityKey) error {
	if len(added) == 0 && len(removed) == 0 {
		return nil
	}
	member := strconv.Itoa(rank)
	pipe := x.client.Pipeline()
	for _, k := range removed {
		pipe.SRem(ctx, x.key(k), member)
	}
	for _, k := range added {
		pipe.SAdd(ctx, x.key(k), member)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis index update failed: %w", err)
	}
	return nil
}

// Lookup fetches every requested set in one pipeline and returns the
// memberships sorted by key then rank.
func (x *Index) Lookup(ctx context.Context, keys []domain.EntityKey) ([]domain.KeyRank, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	pipe := x.client.Pipeline()
	cmds := make([]*backend.StringSliceCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.SMembers(ctx, x.key(k))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis index lookup failed: %w", err)
	}

	var out []domain.KeyRank
	for i, cmd := range cmds {
		members, err := cmd.Result()
		if err != nil {
			return nil, fmt.Errorf("redis index lookup failed for %s: %w", keys[i], err)
		}
		for _, m := range members {
			rank, err := strconv.Atoi(m)
			if err != nil {
				return nil, fmt.Errorf("redis index holds non-numeric rank %q for %s", m, keys[i])
			}
			out = append(out, domain.KeyRank{Key: keys[i], Rank: rank})
		}
	}
	sort.Slice(out, func(i, j int) bool { return domain.LessKeyRank(out[i], out[j]) })
	return out, nil
}
