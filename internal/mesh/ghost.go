package mesh

import (
	"fmt"

	"github.com/meshpart/meshpart/pkg/domain"
)

// GhostDomain is the owner-side record of one named replication tier: which
// local entities it pushes, and to which receiver ranks. Level 0 is reserved
// for the shared tier and cannot be declared as a ghost domain.
type GhostDomain struct {
	Name  string
	Level domain.GhostLevel

	// members maps each pushed entity to its receiver ranks.
	members map[Handle][]int
}

// DeclareGhostDomain registers a new ghosting tier. Levels start at 1;
// names and levels must be unique within the store.
func (s *Store) DeclareGhostDomain(name string, level domain.GhostLevel) (*GhostDomain, error) {
	if level <= domain.SharedLevel {
		return nil, fmt.Errorf("ghost domain %q: level must be >= 1 (level 0 is the shared tier)", name)
	}
	for _, d := range s.domains {
		if d.Name == name || d.Level == level {
			return nil, fmt.Errorf("ghost domain %q/level %d already declared", name, level)
		}
	}
	d := &GhostDomain{Name: name, Level: level, members: make(map[Handle][]int)}
	s.domains = append(s.domains, d)
	return d, nil
}

// GhostDomains returns the declared domains in declaration order.
func (s *Store) GhostDomains() []*GhostDomain { return s.domains }

// GhostDomainAt returns the domain with the given level, if declared.
func (s *Store) GhostDomainAt(level domain.GhostLevel) (*GhostDomain, bool) {
	for _, d := range s.domains {
		if d.Level == level {
			return d, true
		}
	}
	return nil, false
}

// Add registers an owned entity for push to the given receiver ranks.
func (d *GhostDomain) Add(h Handle, receivers ...int) {
	d.members[h] = appendUniqueRanks(d.members[h], receivers)
}

// Remove drops an entity from the domain's push list.
func (d *GhostDomain) Remove(h Handle) { delete(d.members, h) }

// Contains reports whether the entity is in the push list.
func (d *GhostDomain) Contains(h Handle) bool {
	_, ok := d.members[h]
	return ok
}

// Members returns the push list as (handle, receivers) pairs. Order is
// unspecified; callers sort by key when determinism matters.
func (d *GhostDomain) Members() map[Handle][]int { return d.members }

func appendUniqueRanks(have []int, add []int) []int {
	for _, r := range add {
		seen := false
		for _, h := range have {
			if h == r {
				seen = true
				break
			}
		}
		if !seen {
			have = append(have, r)
		}
	}
	return have
}
