// Package memory provides in-process adapters for the mesh's driven ports:
// a Cluster implementing ports.Exchanger across N goroutine ranks, and a
// map-backed ports.DistributedIndex. Both exist for tests, examples and the
// CLI simulator; production deployments plug in real transports and the
// redis index.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/meshpart/meshpart/pkg/ports"
)

// Cluster couples N in-process ranks into one collective group. Each rank
// (one goroutine) obtains its Exchanger via Exchanger(rank); every
// collective is a rendezvous round that completes only once all N ranks
// have contributed, which reproduces the size-then-fill contract: no rank
// reads a byte before every sender has committed its full buffer set.
type Cluster struct {
	n   int
	mu  sync.Mutex
	cur *round
}

type round struct {
	bufs      [][][]byte // [source][destination]
	remaining int
	done      chan struct{}
}

// NewCluster creates a collective group of n ranks.
func NewCluster(n int) *Cluster {
	if n < 1 {
		panic("memory: cluster size must be >= 1")
	}
	return &Cluster{n: n}
}

// Size returns the number of ranks in the group.
func (c *Cluster) Size() int { return c.n }

// Exchanger returns the collective endpoint for one rank.
func (c *Cluster) Exchanger(rank int) ports.Exchanger {
	if rank < 0 || rank >= c.n {
		panic(fmt.Sprintf("memory: rank %d out of range [0,%d)", rank, c.n))
	}
	return &Exchanger{cluster: c, rank: rank}
}

// exchange runs one rendezvous round: every rank deposits its outgoing
// matrix row, the last arrival releases the round, and each rank reads its
// own column. Buffers are copied on deposit so ranks never alias each
// other's slices.
func (c *Cluster) exchange(ctx context.Context, src int, outgoing [][]byte) ([][]byte, error) {
	c.mu.Lock()
	if c.cur == nil {
		c.cur = &round{
			bufs:      make([][][]byte, c.n),
			remaining: c.n,
			done:      make(chan struct{}),
		}
	}
	r := c.cur
	row := make([][]byte, c.n)
	for d, b := range outgoing {
		if len(b) > 0 {
			row[d] = append([]byte(nil), b...)
		}
	}
	r.bufs[src] = row
	r.remaining--
	if r.remaining == 0 {
		c.cur = nil
		close(r.done)
	}
	c.mu.Unlock()

	select {
	case <-r.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	incoming := make([][]byte, c.n)
	for s := 0; s < c.n; s++ {
		incoming[s] = r.bufs[s][src]
	}
	return incoming, nil
}

// Exchanger is one rank's endpoint into the cluster.
type Exchanger struct {
	cluster *Cluster
	rank    int
}

var _ ports.Exchanger = (*Exchanger)(nil)

func (e *Exchanger) Rank() int { return e.rank }

func (e *Exchanger) Size() int { return e.cluster.n }

// AllToAll implements ports.Exchanger.
func (e *Exchanger) AllToAll(ctx context.Context, outgoing [][]byte) ([][]byte, error) {
	if len(outgoing) != e.cluster.n {
		return nil, fmt.Errorf("memory: all-to-all needs %d destination buffers, got %d",
			e.cluster.n, len(outgoing))
	}
	return e.cluster.exchange(ctx, e.rank, outgoing)
}

// SumAll implements ports.Exchanger by broadcasting each rank's count and
// summing locally; every rank observes the same total.
func (e *Exchanger) SumAll(ctx context.Context, n int) (int, error) {
	out := make([][]byte, e.cluster.n)
	enc := []byte(strconv.Itoa(n))
	for d := range out {
		out[d] = enc
	}
	in, err := e.cluster.exchange(ctx, e.rank, out)
	if err != nil {
		return 0, err
	}
	total := 0
	for src, b := range in {
		v, err := strconv.Atoi(string(b))
		if err != nil {
			return 0, fmt.Errorf("memory: bad sum contribution from rank %d: %w", src, err)
		}
		total += v
	}
	return total, nil
}

// Gather implements ports.Exchanger. Non-root ranks return nil.
func (e *Exchanger) Gather(ctx context.Context, payload []byte, root int) ([][]byte, error) {
	if root < 0 || root >= e.cluster.n {
		return nil, fmt.Errorf("memory: gather root %d out of range", root)
	}
	out := make([][]byte, e.cluster.n)
	out[root] = payload
	in, err := e.cluster.exchange(ctx, e.rank, out)
	if err != nil {
		return nil, err
	}
	if e.rank != root {
		return nil, nil
	}
	return in, nil
}

// Barrier implements ports.Exchanger with an empty exchange.
func (e *Exchanger) Barrier(ctx context.Context) error {
	_, err := e.cluster.exchange(ctx, e.rank, make([][]byte, e.cluster.n))
	return err
}
