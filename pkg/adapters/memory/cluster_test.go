package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// runRanks executes fn concurrently for every rank and returns the per-rank
// errors once all have finished.
func runRanks(c *Cluster, fn func(rank int) error) []error {
	errs := make([]error, c.Size())
	var wg sync.WaitGroup
	for r := 0; r < c.Size(); r++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			errs[rank] = fn(rank)
		}(r)
	}
	wg.Wait()
	return errs
}

func TestCluster_AllToAll(t *testing.T) {
	const n = 4
	c := NewCluster(n)
	ctx := context.Background()

	got := make([][][]byte, n)
	errs := runRanks(c, func(rank int) error {
		out := make([][]byte, n)
		for d := range out {
			out[d] = []byte(fmt.Sprintf("%d->%d", rank, d))
		}
		in, err := c.Exchanger(rank).AllToAll(ctx, out)
		got[rank] = in
		return err
	})
	for rank, err := range errs {
		if err != nil {
			t.Fatalf("rank %d: %v", rank, err)
		}
	}

	for dst := 0; dst < n; dst++ {
		for src := 0; src < n; src++ {
			want := fmt.Sprintf("%d->%d", src, dst)
			if string(got[dst][src]) != want {
				t.Errorf("rank %d received %q from rank %d, want %q",
					dst, got[dst][src], src, want)
			}
		}
	}
}

func TestCluster_AllToAllCopiesBuffers(t *testing.T) {
	// A sender mutating its buffer after the call must not leak into what
	// receivers observed.
	c := NewCluster(2)
	ctx := context.Background()

	got := make([][][]byte, 2)
	runRanks(c, func(rank int) error {
		out := make([][]byte, 2)
		buf := []byte("orig")
		out[1-rank] = buf
		in, err := c.Exchanger(rank).AllToAll(ctx, out)
		buf[0] = 'X'
		got[rank] = in
		return err
	})

	for rank := range got {
		if string(got[rank][1-rank]) != "orig" {
			t.Errorf("rank %d saw mutated buffer %q", rank, got[rank][1-rank])
		}
	}
}

func TestCluster_SumAll(t *testing.T) {
	const n = 3
	c := NewCluster(n)
	ctx := context.Background()

	totals := make([]int, n)
	errs := runRanks(c, func(rank int) error {
		total, err := c.Exchanger(rank).SumAll(ctx, rank+1)
		totals[rank] = total
		return err
	})
	for rank, err := range errs {
		if err != nil {
			t.Fatalf("rank %d: %v", rank, err)
		}
		if totals[rank] != 6 {
			t.Errorf("rank %d: sum = %d, want 6", rank, totals[rank])
		}
	}
}

func TestCluster_GatherOnlyRootReceives(t *testing.T) {
	const n, root = 3, 1
	c := NewCluster(n)
	ctx := context.Background()

	got := make([][][]byte, n)
	errs := runRanks(c, func(rank int) error {
		in, err := c.Exchanger(rank).Gather(ctx, []byte(fmt.Sprintf("r%d", rank)), root)
		got[rank] = in
		return err
	})
	for rank, err := range errs {
		if err != nil {
			t.Fatalf("rank %d: %v", rank, err)
		}
	}

	for rank := 0; rank < n; rank++ {
		if rank == root {
			continue
		}
		if got[rank] != nil {
			t.Errorf("non-root rank %d received %v", rank, got[rank])
		}
	}
	for src := 0; src < n; src++ {
		want := fmt.Sprintf("r%d", src)
		if string(got[root][src]) != want {
			t.Errorf("root got %q from rank %d, want %q", got[root][src], src, want)
		}
	}
}

func TestCluster_BarrierReleasesAllRanks(t *testing.T) {
	const n = 4
	c := NewCluster(n)
	ctx := context.Background()

	var arrived int32
	var mu sync.Mutex
	errs := runRanks(c, func(rank int) error {
		mu.Lock()
		arrived++
		mu.Unlock()
		if err := c.Exchanger(rank).Barrier(ctx); err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		if arrived != n {
			return fmt.Errorf("rank %d passed the barrier with only %d arrivals", rank, arrived)
		}
		return nil
	})
	for rank, err := range errs {
		if err != nil {
			t.Errorf("rank %d: %v", rank, err)
		}
	}
}

func TestCluster_ContextCancellationUnblocks(t *testing.T) {
	// One missing rank wedges the rendezvous; cancellation must let the
	// caller escape with the context's error.
	c := NewCluster(2)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.Exchanger(0).Barrier(ctx)
	if err == nil {
		t.Fatal("barrier completed without the second rank")
	}
	if ctx.Err() == nil {
		t.Fatal("expected the context to have expired")
	}
}
