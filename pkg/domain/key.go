package domain

import "fmt"

// EntityKind is the topological type tag of an entity. Kinds are ordered:
// a relation from a higher kind to a lower kind is "downward", the reverse
// is "upward". Closure computations traverse in kind order.
type EntityKind uint8

const (
	KindVertex EntityKind = iota
	KindEdge
	KindFace
	KindCell
)

var kindNames = map[EntityKind]string{
	KindVertex: "vertex",
	KindEdge:   "edge",
	KindFace:   "face",
	KindCell:   "cell",
}

func (k EntityKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps a kind name (as used in scenario files) back to its tag.
func ParseKind(name string) (EntityKind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown entity kind %q", name)
}

// EntityKey is the globally unique identity of an entity: a kind tag plus a
// numeric id. Keys are comparable and totally ordered (kind first, then id),
// which the protocol relies on for deterministic processing.
type EntityKey struct {
	Kind EntityKind `json:"kind" yaml:"kind"`
	ID   uint64     `json:"id" yaml:"id"`
}

// Less reports whether k sorts before o (kind, then id).
func (k EntityKey) Less(o EntityKey) bool {
	if k.Kind != o.Kind {
		return k.Kind < o.Kind
	}
	return k.ID < o.ID
}

func (k EntityKey) String() string {
	return fmt.Sprintf("%s/%d", k.Kind, k.ID)
}

// KeyRank pairs an entity key with a process rank. It is both the unit of
// the distributed-index directory and the sort key for roster rebuilding.
type KeyRank struct {
	Key  EntityKey `json:"key"`
	Rank int       `json:"rank"`
}

// LessKeyRank orders by key, then rank.
func LessKeyRank(a, b KeyRank) bool {
	if a.Key != b.Key {
		return a.Key.Less(b.Key)
	}
	return a.Rank < b.Rank
}
