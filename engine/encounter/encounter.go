// Package encounter holds the authoritative per-encounter progression state
// and the transition rules between states.
package encounter

import "github.com/nathoo/instancecore/types"

// transitions lists the accepted target states for each four-way state.
// Writing the current state again is always accepted and reported unchanged.
var transitions = map[types.EncounterState][]types.EncounterState{
	types.NotStarted: {types.InProgress, types.Done},
	types.InProgress: {types.Done, types.Fail, types.NotStarted},
	types.Fail:       {types.NotStarted, types.InProgress},
	types.Done:       {types.NotStarted},
}

// Machine is the state vector of one instance session.
type Machine struct {
	defs   []types.EncounterDef
	states []types.EncounterState
}

// NewMachine creates a machine with every encounter NotStarted. Special
// encounters always read Special.
func NewMachine(defs []types.EncounterDef) *Machine {
	m := &Machine{
		defs:   defs,
		states: make([]types.EncounterState, len(defs)),
	}
	m.Reset()
	return m
}

// Reset returns every encounter to its initial state.
func (m *Machine) Reset() {
	for i, def := range m.defs {
		if def.Kind == types.KindSpecial {
			m.states[i] = types.Special
		} else {
			m.states[i] = types.NotStarted
		}
	}
}

// Len returns the number of encounters.
func (m *Machine) Len() int {
	return len(m.states)
}

// Known reports whether id is a configured encounter.
func (m *Machine) Known(id types.EncounterID) bool {
	return id >= 0 && int(id) < len(m.states)
}

// IsSpecial reports whether id is a counter-valued encounter.
func (m *Machine) IsSpecial(id types.EncounterID) bool {
	return m.Known(id) && m.defs[id].Kind == types.KindSpecial
}

// Get returns the state of an encounter. Unknown ids read NotStarted.
func (m *Machine) Get(id types.EncounterID) types.EncounterState {
	if !m.Known(id) {
		return types.NotStarted
	}
	return m.states[id]
}

// Set applies a transition. accepted is false for unknown ids, for special
// encounters and for structurally invalid transitions; in that case nothing
// changes. changed is false when the encounter was already in st.
func (m *Machine) Set(id types.EncounterID, st types.EncounterState) (accepted, changed bool) {
	if !m.Known(id) || m.IsSpecial(id) {
		return false, false
	}
	cur := m.states[id]
	if cur == st {
		return true, false
	}
	if !Allowed(cur, st) {
		return false, false
	}
	m.states[id] = st
	return true, true
}

// Allowed reports whether the four-way machine accepts from → to.
func Allowed(from, to types.EncounterState) bool {
	if from == to {
		return to != types.Special
	}
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// States returns a copy of the state vector in encounter-id order.
func (m *Machine) States() []types.EncounterState {
	out := make([]types.EncounterState, len(m.states))
	copy(out, m.states)
	return out
}

// Restore overwrites the state vector from a decoded blob. Entries beyond
// len(states) are reset; special encounters keep Special; codes that are not
// four-way states on a four-way encounter become NotStarted.
func (m *Machine) Restore(states []types.EncounterState) {
	m.Reset()
	for i := range m.states {
		if i >= len(states) || m.defs[i].Kind == types.KindSpecial {
			continue
		}
		switch states[i] {
		case types.NotStarted, types.InProgress, types.Fail, types.Done:
			m.states[i] = states[i]
		}
	}
}

// Name returns the configured name of an encounter.
func (m *Machine) Name(id types.EncounterID) string {
	if !m.Known(id) {
		return ""
	}
	return m.defs[id].Name
}

// StateName returns the canonical lower-case name of a state.
func StateName(st types.EncounterState) string {
	switch st {
	case types.NotStarted:
		return "not_started"
	case types.InProgress:
		return "in_progress"
	case types.Fail:
		return "fail"
	case types.Done:
		return "done"
	case types.Special:
		return "special"
	default:
		return "unknown"
	}
}

// ParseState maps a state name to its value.
func ParseState(name string) (types.EncounterState, bool) {
	switch name {
	case "not_started", "notstarted", "reset":
		return types.NotStarted, true
	case "in_progress", "inprogress", "progress", "pull":
		return types.InProgress, true
	case "fail", "failed", "wipe":
		return types.Fail, true
	case "done", "complete", "killed":
		return types.Done, true
	case "special":
		return types.Special, true
	default:
		return 0, false
	}
}
