package domain

import "sort"

// ChangeRequest asks the protocol to move ownership of one entity to a new
// rank. Requests are only valid on the entity's current owner.
type ChangeRequest struct {
	Key      EntityKey `json:"key" yaml:"key"`
	NewOwner int       `json:"new_owner" yaml:"new_owner"`
}

// SortChangeRequests orders requests by entity key. Validation and every
// later stage depend on this ordering for determinism.
func SortChangeRequests(reqs []ChangeRequest) {
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].Key != reqs[j].Key {
			return reqs[i].Key.Less(reqs[j].Key)
		}
		return reqs[i].NewOwner < reqs[j].NewOwner
	})
}

// RelationRef is a relation as seen on the wire: the far entity's key plus
// the ordinal that distinguishes parallel relations between the same pair.
type RelationRef struct {
	Key     EntityKey `json:"key"`
	Ordinal uint32    `json:"ordinal"`
}

// EntityInfo is the wire-facing record of one entity: everything a receiving
// rank needs to reconstruct it, minus the opaque field payload which rides
// alongside as codec-produced bytes.
type EntityInfo struct {
	Key       EntityKey     `json:"key"`
	Owner     int           `json:"owner"`
	Parts     []string      `json:"parts,omitempty"`
	Relations []RelationRef `json:"relations,omitempty"`
	Payload   []byte        `json:"payload,omitempty"`
}
