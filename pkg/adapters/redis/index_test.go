package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshpart/meshpart/pkg/adapters/redis"
	"github.com/meshpart/meshpart/pkg/domain"
	"github.com/meshpart/meshpart/pkg/ports/tests"
)

func TestRedisIndex_Contract(t *testing.T) {
	// Setup miniredis
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})

	// Run contract
	idx := redis.NewFromClient(client)
	tests.RunDistributedIndexContract(t, idx)
}

func TestRedisIndex_KeyPrefix(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})

	idx := redis.NewFromClient(client, redis.WithPrefix("custom:"))
	ctx := context.Background()
	key := domain.EntityKey{Kind: domain.KindEdge, ID: 42}

	err = idx.UpdateKeys(ctx, 3, []domain.EntityKey{key}, nil)
	require.NoError(t, err)

	// The directory entry lands under the configured prefix, as a set of
	// rank members.
	members, err := mr.SMembers("custom:1:42")
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, members)

	pairs, err := idx.Lookup(ctx, []domain.EntityKey{key})
	require.NoError(t, err)
	assert.Equal(t, []domain.KeyRank{{Key: key, Rank: 3}}, pairs)
}
