package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/meshpart/meshpart/pkg/domain"
)

// validate cleans the caller's raw request list and arbitrates the only
// recoverable abort point of the protocol: every rank sums its rejection
// count, and a nonzero global total fails the call on all ranks with the
// mesh untouched. Rank 0 prints every rank's diagnostics.
func (e *Engine) validate(ctx context.Context, requests []domain.ChangeRequest) ([]localChange, error) {
	rank := e.ex.Rank()
	size := e.ex.Size()

	sorted := make([]domain.ChangeRequest, len(requests))
	copy(sorted, requests)
	domain.SortChangeRequests(sorted)

	var (
		clean      []localChange
		rejections []domain.Rejection
	)
	reject := func(r domain.ChangeRequest, why domain.RejectReason) {
		rejections = append(rejections, domain.Rejection{Key: r.Key, NewOwner: r.NewOwner, Reason: why})
	}

	for i := 0; i < len(sorted); i++ {
		r := sorted[i]

		// Exact duplicates collapse; same key with a different target is a
		// conflict.
		if i > 0 && sorted[i-1].Key == r.Key {
			if sorted[i-1].NewOwner == r.NewOwner {
				continue
			}
			reject(r, domain.ReasonConflictingTarget)
			continue
		}

		if r.NewOwner < 0 || r.NewOwner >= size {
			reject(r, domain.ReasonRankOutOfRange)
			continue
		}
		h, ok := e.store.Get(r.Key)
		if !ok {
			reject(r, domain.ReasonStaleEntity)
			continue
		}
		if e.store.Owner(h) != rank {
			reject(r, domain.ReasonNotOwner)
			continue
		}
		if r.NewOwner == rank {
			continue // no-op transfer, drop silently
		}
		clean = append(clean, localChange{handle: h, key: r.Key, newOwner: r.NewOwner})
	}

	e.metrics.AddRejected(len(rejections))

	total, err := e.ex.SumAll(ctx, len(rejections))
	if err != nil {
		return nil, fmt.Errorf("validation reduction: %v: %w", err, domain.ErrMigrationFailed)
	}
	if total == 0 {
		e.logger.DebugContext(ctx, "change list validated", "requests", len(requests), "accepted", len(clean))
		return clean, nil
	}

	// Collect every rank's diagnostic text at rank 0 so one place prints
	// the full picture.
	var diag strings.Builder
	for _, rej := range rejections {
		fmt.Fprintf(&diag, "rank %d: %s\n", rank, rej)
	}
	gathered, err := e.ex.Gather(ctx, []byte(diag.String()), 0)
	if err != nil {
		return nil, fmt.Errorf("validation diagnostics gather: %v: %w", err, domain.ErrMigrationFailed)
	}
	if rank == 0 {
		for src, text := range gathered {
			for _, line := range strings.Split(strings.TrimRight(string(text), "\n"), "\n") {
				if line != "" {
					e.logger.ErrorContext(ctx, "invalid ownership change", "source_rank", src, "detail", line)
				}
			}
		}
	}
	return nil, &domain.ValidationError{Rank: rank, Rejections: rejections}
}
