package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEntityNotFound is returned when a key does not resolve to a locally
// present entity.
var ErrEntityNotFound = errors.New("entity not found")

// ErrMigrationFailed wraps any failure past the validation stage. The mesh
// state is unspecified after it: the protocol has already issued collective
// sends and cannot roll back. Callers should abort or restore a checkpoint.
var ErrMigrationFailed = errors.New("ownership migration failed")

// RejectReason classifies why a change request failed validation.
type RejectReason string

const (
	// ReasonNotOwner: the requesting rank is not the entity's current owner.
	ReasonNotOwner RejectReason = "not_owner"
	// ReasonRankOutOfRange: the target rank is >= the process count.
	ReasonRankOutOfRange RejectReason = "rank_out_of_range"
	// ReasonStaleEntity: the key no longer resolves to live local storage.
	ReasonStaleEntity RejectReason = "stale_entity"
	// ReasonConflictingTarget: the same entity was requested with two
	// different target ranks.
	ReasonConflictingTarget RejectReason = "conflicting_target"
)

// Rejection is one offending change request plus the rule it violated.
type Rejection struct {
	Key      EntityKey    `json:"key"`
	NewOwner int          `json:"new_owner"`
	Reason   RejectReason `json:"reason"`
}

func (r Rejection) String() string {
	return fmt.Sprintf("%s -> rank %d: %s", r.Key, r.NewOwner, r.Reason)
}

// ValidationError reports every change request this rank rejected. It is the
// only recoverable failure of the protocol: when any rank returns it, every
// rank returns it, and the mesh is untouched.
type ValidationError struct {
	Rank       int
	Rejections []Rejection
}

func (e *ValidationError) Error() string {
	if len(e.Rejections) == 0 {
		return fmt.Sprintf("rank %d: ownership change rejected on a peer rank", e.Rank)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "rank %d: %d invalid ownership change(s):", e.Rank, len(e.Rejections))
	for _, r := range e.Rejections {
		b.WriteString(" [")
		b.WriteString(r.String())
		b.WriteString("]")
	}
	return b.String()
}
