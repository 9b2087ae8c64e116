package ports

import "context"

// Exchanger is the collective transport between the ranks of one mesh.
//
// Every method is collective: all ranks of the group must call it, with
// matching arguments where noted, before any rank returns. Calls block until
// the collective completes (logically synchronous, even if an implementation
// pipelines bytes). The protocol never interleaves two collectives: each
// stage opens and closes its own exchange.
//
// Cancellation caveat: a context cancelled mid-collective releases only the
// calling rank and leaves the round incomplete for its peers. The protocol
// itself never cancels (it has no recoverable abort past validation); ctx
// exists so tests and drivers can escape a wedged cluster.
type Exchanger interface {
	// Rank returns this process's rank, in [0, Size).
	Rank() int

	// Size returns the number of ranks in the group.
	Size() int

	// AllToAll delivers outgoing[d] to rank d and returns the buffers every
	// rank addressed to this one, indexed by source rank. outgoing must have
	// exactly Size entries; nil entries are delivered as empty. Sizing is
	// the implementation's problem: no recipient sees bytes before every
	// sender has committed its full buffer set.
	AllToAll(ctx context.Context, outgoing [][]byte) ([][]byte, error)

	// SumAll returns the sum of n over all ranks. Used for global error
	// counts: every rank observes the same total.
	SumAll(ctx context.Context, n int) (int, error)

	// Gather collects every rank's payload at root, indexed by source rank.
	// Non-root ranks receive nil.
	Gather(ctx context.Context, payload []byte, root int) ([][]byte, error)

	// Barrier returns once every rank has entered it.
	Barrier(ctx context.Context) error
}
