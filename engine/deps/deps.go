// Package deps answers whether an encounter may be attempted given the
// static prerequisite graph. The graph is validated once and never changes.
package deps

import (
	"errors"
	"fmt"

	"github.com/nathoo/instancecore/types"
)

var (
	// ErrUnknownPrerequisite is returned when a requirement names no encounter.
	ErrUnknownPrerequisite = errors.New("deps: unknown prerequisite")
	// ErrSelfDependency is returned when an encounter requires itself.
	ErrSelfDependency = errors.New("deps: encounter requires itself")
	// ErrCycleDetected is returned when the requirements are not a DAG.
	ErrCycleDetected = errors.New("deps: cycle detected")
)

// StateFunc reads the current state of an encounter.
type StateFunc func(types.EncounterID) types.EncounterState

// Resolver walks prerequisite chains against live state.
type Resolver struct {
	requires [][]types.EncounterID
	state    StateFunc
	order    []types.EncounterID
}

// New validates requires, indexed by encounter id, and returns a resolver.
func New(requires [][]types.EncounterID, state StateFunc) (*Resolver, error) {
	n := len(requires)
	for id, reqs := range requires {
		for _, req := range reqs {
			if int(req) == id {
				return nil, fmt.Errorf("%w: %d", ErrSelfDependency, id)
			}
			if req < 0 || int(req) >= n {
				return nil, fmt.Errorf("%w: %d requires %d", ErrUnknownPrerequisite, id, req)
			}
		}
	}

	r := &Resolver{requires: requires, state: state}
	order, err := r.topoSort()
	if err != nil {
		return nil, err
	}
	r.order = order
	return r, nil
}

// topoSort orders encounters prerequisites-first using Kahn's algorithm.
func (r *Resolver) topoSort() ([]types.EncounterID, error) {
	n := len(r.requires)
	inDegree := make([]int, n)
	dependents := make([][]types.EncounterID, n)
	for id, reqs := range r.requires {
		inDegree[id] = len(reqs)
		for _, req := range reqs {
			dependents[req] = append(dependents[req], types.EncounterID(id))
		}
	}

	var queue []types.EncounterID
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, types.EncounterID(id))
		}
	}

	order := make([]types.EncounterID, 0, n)
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		order = append(order, curr)
		for _, dep := range dependents[curr] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) != n {
		return nil, ErrCycleDetected
	}
	return order, nil
}

// CanAttempt reports whether every ancestor of id is Done. An override
// context bypasses the walk entirely. Unknown ids are never attemptable.
func (r *Resolver) CanAttempt(id types.EncounterID, ctx types.AttemptContext) bool {
	if ctx.Override {
		return true
	}
	if id < 0 || int(id) >= len(r.requires) {
		return false
	}
	_, blocked := r.Blocker(id)
	return !blocked
}

// Blocker returns the first ancestor of id, in depth-first declared order,
// that is not Done.
func (r *Resolver) Blocker(id types.EncounterID) (types.EncounterID, bool) {
	var found types.EncounterID
	blocked := false
	r.walk(id, func(a types.EncounterID) bool {
		if r.state(a) != types.Done {
			found, blocked = a, true
			return false
		}
		return true
	})
	return found, blocked
}

// Chain lists every ancestor of id in depth-first declared order.
func (r *Resolver) Chain(id types.EncounterID) []types.EncounterID {
	var out []types.EncounterID
	r.walk(id, func(a types.EncounterID) bool {
		out = append(out, a)
		return true
	})
	return out
}

// Order returns encounter ids prerequisites-first.
func (r *Resolver) Order() []types.EncounterID {
	return append([]types.EncounterID(nil), r.order...)
}

// walk visits each ancestor once: a direct parent, then its ancestors,
// then the next direct parent. visit returns false to stop.
func (r *Resolver) walk(id types.EncounterID, visit func(types.EncounterID) bool) {
	if id < 0 || int(id) >= len(r.requires) {
		return
	}
	seen := make(map[types.EncounterID]bool)
	var rec func(types.EncounterID) bool
	rec = func(cur types.EncounterID) bool {
		for _, p := range r.requires[cur] {
			if seen[p] {
				continue
			}
			seen[p] = true
			if !visit(p) || !rec(p) {
				return false
			}
		}
		return true
	}
	rec(id)
}
