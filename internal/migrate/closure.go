package migrate

import (
	"github.com/meshpart/meshpart/internal/mesh"
	"github.com/meshpart/meshpart/pkg/domain"
)

// Closure computations are iterative (explicit work stack, visited set keyed
// by handle) so depth is bounded by memory, not goroutine stack, and
// traversal order is deterministic enough for testing.

// ghostClosure adds every non-owned entity reachable from start via downward
// relations to removal. An owned entity bounds the traversal: it is neither
// added nor expanded.
func (e *Engine) ghostClosure(start mesh.Handle, removal map[mesh.Handle]struct{}) {
	e.walkGhosts(start, removal, false)
}

// transitiveGhostClosure additionally recurses upward: a non-owned entity
// whose closure contains a member of the removal set is pulled in too, so an
// ownership change propagates both ways through a relation.
func (e *Engine) transitiveGhostClosure(start mesh.Handle, removal map[mesh.Handle]struct{}) {
	e.walkGhosts(start, removal, true)
}

func (e *Engine) walkGhosts(start mesh.Handle, removal map[mesh.Handle]struct{}, upward bool) {
	stack := []mesh.Handle{start}
	visited := map[mesh.Handle]struct{}{}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := visited[h]; seen {
			continue
		}
		visited[h] = struct{}{}
		if !e.store.IsLive(h) {
			continue
		}
		if e.store.HasPart(h, domain.PartOwned) {
			continue
		}
		removal[h] = struct{}{}
		stack = append(stack, e.store.Downward(h)...)
		if upward {
			stack = append(stack, e.store.Upward(h)...)
		}
	}
}

// downwardClosure collects start and everything reachable from it via
// downward relations, regardless of ownership. This is the unit the migrator
// ships: a transferred entity travels with every entity it depends on.
func (e *Engine) downwardClosure(start mesh.Handle, closure map[mesh.Handle]struct{}) {
	stack := []mesh.Handle{start}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := closure[h]; seen {
			continue
		}
		if !e.store.IsLive(h) {
			continue
		}
		closure[h] = struct{}{}
		stack = append(stack, e.store.Downward(h)...)
	}
}

// memberOfOwnedClosure reports whether the entity is still justified by some
// locally-owned closure: it is owned here, or some entity reachable upward
// from it is owned here.
func (e *Engine) memberOfOwnedClosure(start mesh.Handle) bool {
	rank := e.ex.Rank()
	stack := []mesh.Handle{start}
	visited := map[mesh.Handle]struct{}{}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := visited[h]; seen {
			continue
		}
		visited[h] = struct{}{}
		if !e.store.IsLive(h) {
			continue
		}
		if e.store.Owner(h) == rank {
			return true
		}
		stack = append(stack, e.store.Upward(h)...)
	}
	return false
}
