package domain

import "sort"

// GhostLevel identifies a replication tier. Level 0 is reserved for the
// "shared" tier (copies justified by adjacency to owned data); levels >= 1
// belong to explicitly declared ghosting domains.
type GhostLevel int

// SharedLevel is the reserved level-0 tier.
const SharedLevel GhostLevel = 0

// RosterEntry records that one remote rank holds a copy of an entity at a
// given ghost level.
type RosterEntry struct {
	Level GhostLevel `json:"level"`
	Rank  int        `json:"rank"`
}

// NormalizeRoster returns the roster sorted by rank (then level) with exact
// duplicates removed. Every roster stored on an entity is in this form.
func NormalizeRoster(entries []RosterEntry) []RosterEntry {
	if len(entries) == 0 {
		return nil
	}
	out := make([]RosterEntry, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].Level < out[j].Level
	})
	dedup := out[:1]
	for _, e := range out[1:] {
		if e != dedup[len(dedup)-1] {
			dedup = append(dedup, e)
		}
	}
	return dedup
}

// EqualRosters reports whether two normalized rosters are identical.
func EqualRosters(a, b []RosterEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
