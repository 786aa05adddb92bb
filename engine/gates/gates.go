// Package gates owns the gateable props of an instance and keeps their
// physical open/closed state in line with encounter state.
package gates

import (
	"fmt"
	"slices"

	"github.com/nathoo/instancecore/types"
)

// Prop is a physical gate the controller can open and close.
type Prop interface {
	GUID() types.GUID
	SetGoState(types.GoState)
}

// StateFunc reads the current state of an encounter.
type StateFunc func(types.EncounterID) types.EncounterState

// Controller tracks registered gate props. A prop may carry several
// bindings; it is open only while every applicable binding says open.
type Controller struct {
	// Known, when set, reports whether an encounter id exists. Bindings to
	// other ids are dropped by RegisterAll.
	Known func(types.EncounterID) bool

	state    StateFunc
	raidSize func() int

	gates map[types.GUID]*gate
	order []types.GUID
}

type gate struct {
	prop     Prop
	bindings []types.DoorBinding
	applied  types.GoState
	set      bool
}

// UnknownEncounterError lists the bindings of a prop that named an
// encounter the controller does not track. Those bindings were dropped.
type UnknownEncounterError struct {
	GUID       types.GUID
	Encounters []types.EncounterID
}

func (e *UnknownEncounterError) Error() string {
	return fmt.Sprintf("prop %d bound to unknown encounter(s) %v", e.GUID, e.Encounters)
}

// Status is a read-only view of one registered gate.
type Status struct {
	GUID     types.GUID
	Open     bool
	Bindings []types.DoorBinding
}

// New creates a gate controller. raidSize may be nil when no binding uses a
// raid size requirement.
func New(state StateFunc, raidSize func() int) *Controller {
	return &Controller{
		state:    state,
		raidSize: raidSize,
		gates:    make(map[types.GUID]*gate),
	}
}

// Register binds p to an encounter with the given policy and reconciles it.
func (c *Controller) Register(p Prop, enc types.EncounterID, behavior types.GateBehavior) error {
	return c.RegisterAll(p, []types.DoorBinding{{Encounter: enc, Behavior: behavior}})
}

// RegisterAll adds every binding to p and then reconciles p once against
// current state. Identical bindings are kept once. Bindings to unknown
// encounters are skipped and reported as an *UnknownEncounterError; a prop
// left with no binding is not registered.
func (c *Controller) RegisterAll(p Prop, bindings []types.DoorBinding) error {
	var err error
	valid := make([]types.DoorBinding, 0, len(bindings))
	var unknown []types.EncounterID
	for _, b := range bindings {
		if c.Known != nil && !c.Known(b.Encounter) {
			unknown = append(unknown, b.Encounter)
			continue
		}
		valid = append(valid, b)
	}
	if len(unknown) > 0 {
		err = &UnknownEncounterError{GUID: p.GUID(), Encounters: unknown}
	}
	if len(valid) == 0 {
		return err
	}

	g, ok := c.gates[p.GUID()]
	if !ok || g.prop != p {
		if ok {
			c.Unregister(p.GUID())
		}
		g = &gate{prop: p}
		c.gates[p.GUID()] = g
		c.order = append(c.order, p.GUID())
	}
	for _, b := range valid {
		if !slices.Contains(g.bindings, b) {
			g.bindings = append(g.bindings, b)
		}
	}
	c.apply(g)
	return err
}

// Unregister forgets a prop. Unknown props are ignored.
func (c *Controller) Unregister(guid types.GUID) bool {
	if _, ok := c.gates[guid]; !ok {
		return false
	}
	delete(c.gates, guid)
	c.order = slices.DeleteFunc(c.order, func(g types.GUID) bool { return g == guid })
	return true
}

// Reconcile re-applies policy to every prop bound to enc and returns the
// number of props whose physical state changed.
func (c *Controller) Reconcile(enc types.EncounterID) int {
	n := 0
	for _, guid := range c.order {
		g := c.gates[guid]
		if !g.boundTo(enc) {
			continue
		}
		if c.apply(g) {
			n++
		}
	}
	return n
}

// ReconcileAll re-applies policy to every registered prop.
func (c *Controller) ReconcileAll() int {
	n := 0
	for _, guid := range c.order {
		if c.apply(c.gates[guid]) {
			n++
		}
	}
	return n
}

// IsOpen reports the last state applied to a prop.
func (c *Controller) IsOpen(guid types.GUID) (open, ok bool) {
	g, ok := c.gates[guid]
	if !ok {
		return false, false
	}
	return g.applied == types.GoOpen, true
}

// Len returns the number of registered props.
func (c *Controller) Len() int {
	return len(c.order)
}

// Statuses lists registered props in registration order.
func (c *Controller) Statuses() []Status {
	out := make([]Status, 0, len(c.order))
	for _, guid := range c.order {
		g := c.gates[guid]
		out = append(out, Status{
			GUID:     guid,
			Open:     g.applied == types.GoOpen,
			Bindings: slices.Clone(g.bindings),
		})
	}
	return out
}

// apply pushes the target state to the prop if it differs from the last one
// applied.
func (c *Controller) apply(g *gate) bool {
	target := types.GoClosed
	if c.open(g) {
		target = types.GoOpen
	}
	if g.set && g.applied == target {
		return false
	}
	g.prop.SetGoState(target)
	g.applied = target
	g.set = true
	return true
}

func (c *Controller) open(g *gate) bool {
	for _, b := range g.bindings {
		if b.MinRaidSize > 0 && c.raidSize != nil && c.raidSize() < b.MinRaidSize {
			continue
		}
		if !Allows(b.Behavior, c.state(b.Encounter)) {
			return false
		}
	}
	return true
}

func (g *gate) boundTo(enc types.EncounterID) bool {
	for _, b := range g.bindings {
		if b.Encounter == enc {
			return true
		}
	}
	return false
}

// Allows reports whether a policy keeps its gate open in state st.
func Allows(behavior types.GateBehavior, st types.EncounterState) bool {
	switch behavior {
	case types.OpenWhenDone:
		return st == types.Done
	case types.OpenWhenInProgress:
		return st == types.InProgress
	default:
		return st != types.InProgress
	}
}

// ParseBehavior maps a content policy name to a gate behavior.
func ParseBehavior(name string) (types.GateBehavior, bool) {
	switch name {
	case "", "not_in_progress", "idle":
		return types.OpenWhenNotInProgress, true
	case "done", "when_done":
		return types.OpenWhenDone, true
	case "in_progress", "when_in_progress":
		return types.OpenWhenInProgress, true
	}
	return 0, false
}

// BehaviorName is the inverse of ParseBehavior.
func BehaviorName(b types.GateBehavior) string {
	switch b {
	case types.OpenWhenDone:
		return "done"
	case types.OpenWhenInProgress:
		return "in_progress"
	default:
		return "not_in_progress"
	}
}

// ParseGoState maps a prop state name to its value.
func ParseGoState(name string) (types.GoState, bool) {
	switch name {
	case "closed", "ready":
		return types.GoClosed, true
	case "open", "active":
		return types.GoOpen, true
	case "destroyed":
		return types.GoDestroyed, true
	}
	return 0, false
}

// GoStateName returns the canonical name of a prop state.
func GoStateName(s types.GoState) string {
	switch s {
	case types.GoClosed:
		return "closed"
	case types.GoOpen:
		return "open"
	case types.GoDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}
