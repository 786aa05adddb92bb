// Package state holds the immutable instance definitions loaded from Lua:
// encounters, the registration tables for creature and prop entries, the
// variant tables and every handler keyed by what triggers it.
package state

import (
	"strconv"

	"github.com/nathoo/instancecore/types"
)

// Handler keys. Handlers are matched by exact key.
const (
	KeyEnter = "enter"
	KeyLeave = "leave"
	KeyLoad  = "load"
)

// StateKey is the handler key for an encounter reaching a state.
func StateKey(enc types.EncounterID, st types.EncounterState) string {
	return "state:" + strconv.Itoa(int(enc)) + ":" + strconv.Itoa(int(st))
}

// EventKey is the handler key for a world event id.
func EventKey(id uint32) string {
	return "event:" + strconv.FormatUint(uint64(id), 10)
}

// DeathKey is the handler key for the death of a creature entry.
func DeathKey(entry uint32) string {
	return "death:" + strconv.FormatUint(uint64(entry), 10)
}

// TimerKey is the handler key for a scheduled timer firing.
func TimerKey(name string) string {
	return "timer:" + name
}

// Defs holds the immutable instance definitions loaded from Lua.
type Defs struct {
	Instance         types.InstanceDef
	Encounters       []types.EncounterDef // indexed by EncounterID
	Creatures        map[uint32]types.CreatureDef
	Props            map[uint32]types.PropDef
	CreatureVariants []types.VariantDef
	PropVariants     []types.VariantDef
	Counters         []types.CounterDef
	Criteria         map[uint32]string // achievement criteria id → eligibility counter
	Handlers         []types.EventHandler
	Timers           []types.TimerDef
	// TimersActiveWhen gates the scheduled event queue; empty means always.
	TimersActiveWhen []types.Condition
}

// EncounterByName returns the id of a named encounter.
func (d *Defs) EncounterByName(name string) (types.EncounterID, bool) {
	for _, e := range d.Encounters {
		if e.Name == name {
			return e.ID, true
		}
	}
	return 0, false
}

// Requires returns the prerequisite table indexed by encounter id.
func (d *Defs) Requires() [][]types.EncounterID {
	out := make([][]types.EncounterID, len(d.Encounters))
	for i, e := range d.Encounters {
		out[i] = e.Requires
	}
	return out
}

// Counter returns a counter declaration.
func (d *Defs) Counter(name string) (types.CounterDef, bool) {
	for _, c := range d.Counters {
		if c.Name == name {
			return c, true
		}
	}
	return types.CounterDef{}, false
}

// PersistentCounters lists the counters written to the progress blob, in
// declaration order.
func (d *Defs) PersistentCounters() []types.CounterDef {
	var out []types.CounterDef
	for _, c := range d.Counters {
		if c.Persist {
			out = append(out, c)
		}
	}
	return out
}

// Roles lists every role a creature or prop entry can fill.
func (d *Defs) Roles() map[string]bool {
	roles := map[string]bool{}
	for _, c := range d.Creatures {
		if c.Role != "" {
			roles[c.Role] = true
		}
	}
	for _, p := range d.Props {
		if p.Role != "" {
			roles[p.Role] = true
		}
	}
	return roles
}

// Groups lists every creature group name.
func (d *Defs) Groups() map[string]bool {
	groups := map[string]bool{}
	for _, c := range d.Creatures {
		if c.Group != "" {
			groups[c.Group] = true
		}
	}
	return groups
}

// ConditionalProps returns the prop entries whose state derives from
// conditions rather than door bindings.
func (d *Defs) ConditionalProps() map[uint32]types.PropDef {
	out := map[uint32]types.PropDef{}
	for entry, p := range d.Props {
		if len(p.OpenWhen) > 0 {
			out[entry] = p
		}
	}
	return out
}

// NewCounters creates the runtime counter table with declared defaults.
// Special encounters get a counter named after them.
func NewCounters(defs *Defs) map[string]int {
	counters := make(map[string]int, len(defs.Counters))
	for _, e := range defs.Encounters {
		if e.Kind == types.KindSpecial {
			counters[e.Name] = 0
		}
	}
	for _, c := range defs.Counters {
		counters[c.Name] = c.Default
	}
	return counters
}
