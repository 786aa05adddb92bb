// Package engine provides the instance progression Controller that wires the
// encounter state machine, gates, dependency resolver, scheduled event queue,
// handle registry, variant and boundary tables into the world hooks of one
// instance session.
package engine

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/nathoo/instancecore/engine/boundary"
	"github.com/nathoo/instancecore/engine/deps"
	"github.com/nathoo/instancecore/engine/effects"
	"github.com/nathoo/instancecore/engine/encounter"
	"github.com/nathoo/instancecore/engine/events"
	"github.com/nathoo/instancecore/engine/gates"
	"github.com/nathoo/instancecore/engine/handles"
	"github.com/nathoo/instancecore/engine/rules"
	"github.com/nathoo/instancecore/engine/schedule"
	"github.com/nathoo/instancecore/engine/state"
	"github.com/nathoo/instancecore/engine/variant"
	"github.com/nathoo/instancecore/types"
)

// maxDepth bounds nested handler dispatch (a handler setting a state whose
// handlers set another state, and so on).
const maxDepth = 16

// Controller owns the progression state of one instance session. It is
// driven from the session's tick and is not safe for concurrent use.
type Controller struct {
	Defs *state.Defs

	world   World
	log     *zap.Logger
	pub     Publisher
	persist func([]byte)
	session ulid.ULID

	machine  *encounter.Machine
	handles  *handles.Registry[Entity]
	gates    *gates.Controller
	deps     *deps.Resolver
	queue    *schedule.Queue
	variants *variant.Resolver
	bounds   *boundary.Registry

	counters     map[string]int
	participants map[types.GUID]types.Participant
	affiliation  types.Affiliation
	affFixed     bool
	defaultAff   types.Affiliation
	conditional  []*conditionalProp

	announcements []string
	depth         int
}

type conditionalProp struct {
	prop    Prop
	def     types.PropDef
	applied types.GoState
	set     bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithPublisher sets the notification sink.
func WithPublisher(p Publisher) Option {
	return func(c *Controller) { c.pub = p }
}

// WithPersister sets a callback receiving the progress blob after every
// accepted state change.
func WithPersister(fn func([]byte)) Option {
	return func(c *Controller) { c.persist = fn }
}

// WithDefaultAffiliation overrides the instance's default affiliation, used
// until the first participant fixes it.
func WithDefaultAffiliation(a types.Affiliation) Option {
	return func(c *Controller) { c.defaultAff = a }
}

// New creates a controller from definitions. It fails only on definitions
// the loader should already have rejected.
func New(defs *state.Defs, world World, opts ...Option) (*Controller, error) {
	c := &Controller{
		Defs:         defs,
		world:        world,
		log:          zap.NewNop(),
		pub:          nopPublisher{},
		session:      ulid.Make(),
		machine:      encounter.NewMachine(defs.Encounters),
		handles:      handles.New[Entity](),
		queue:        schedule.New(),
		variants:     variant.NewResolver(defs.CreatureVariants, defs.PropVariants),
		counters:     state.NewCounters(defs),
		participants: map[types.GUID]types.Participant{},
		defaultAff:   defs.Instance.DefaultAffiliation,
	}
	for _, opt := range opts {
		opt(c)
	}

	var err error
	c.deps, err = deps.New(defs.Requires(), c.machine.Get)
	if err != nil {
		return nil, fmt.Errorf("dependency graph: %w", err)
	}
	c.bounds, err = boundary.New(defs.Encounters)
	if err != nil {
		return nil, fmt.Errorf("boundaries: %w", err)
	}
	c.gates = gates.New(c.machine.Get, world.RaidSize)
	c.gates.Known = c.machine.Known

	c.log.Debug("controller created",
		zap.String("instance", defs.Instance.Name),
		zap.String("session", c.session.String()),
		zap.Int("encounters", len(defs.Encounters)))
	return c, nil
}

// --- exposed surface -------------------------------------------------------

// GetState returns the state of an encounter. Unknown ids read NotStarted.
func (c *Controller) GetState(id types.EncounterID) types.EncounterState {
	return c.machine.Get(id)
}

// SetState requests a transition. It returns false, with no side effects,
// for unknown encounters and structurally invalid transitions. Writing the
// current state again returns true and runs no side effects.
func (c *Controller) SetState(id types.EncounterID, st types.EncounterState) (accepted bool) {
	// A panicking handler still leaves the transition applied.
	defer c.recoverHook("SetState")

	from := c.machine.Get(id)
	accepted, changed := c.machine.Set(id, st)
	if !accepted {
		c.log.Debug("transition rejected",
			zap.Int("encounter", int(id)),
			zap.String("from", encounter.StateName(from)),
			zap.String("to", encounter.StateName(st)))
		return false
	}
	if changed {
		c.onTransition(id, from, st)
	}
	return true
}

// onTransition runs the side effects of an accepted state change.
func (c *Controller) onTransition(id types.EncounterID, from, to types.EncounterState) {
	name := c.machine.Name(id)
	c.log.Debug("encounter state changed",
		zap.String("encounter", name),
		zap.String("from", encounter.StateName(from)),
		zap.String("to", encounter.StateName(to)))

	// 1. Gates bound to this encounter.
	c.gates.Reconcile(id)

	// 2. Conditional props.
	c.reconcileProps()

	// 3. Content handlers for (encounter, state).
	c.dispatch(state.StateKey(id, to), effects.Context{Trigger: state.StateKey(id, to)})

	// 4. Observers.
	c.publish(Notification{
		Kind:      "state",
		Encounter: name,
		From:      encounter.StateName(from),
		To:        encounter.StateName(to),
	})

	// 5. Persistence.
	c.save()
}

// GetGenericCounter returns a counter. Unset counters read 0.
func (c *Controller) GetGenericCounter(name string) int {
	return c.counters[name]
}

// SetGenericCounter sets a counter and re-derives conditional props.
func (c *Controller) SetGenericCounter(name string, value int) {
	defer c.recoverHook("SetGenericCounter")

	if old, ok := c.counters[name]; ok && old == value {
		return
	}
	c.counters[name] = value
	c.reconcileProps()
	if c.counterPersists(name) {
		c.save()
	}
}

// GetBoundEntity returns the entity currently filling role.
func (c *Controller) GetBoundEntity(role string) (Entity, bool) {
	return c.handles.Resolve(role)
}

// CanAttempt reports whether every prerequisite of id is Done, or ctx is an
// override.
func (c *Controller) CanAttempt(id types.EncounterID, ctx types.AttemptContext) bool {
	return c.deps.CanAttempt(id, ctx)
}

// Blocker returns the first prerequisite of id that is not Done.
func (c *Controller) Blocker(id types.EncounterID) (types.EncounterID, bool) {
	return c.deps.Blocker(id)
}

// IsWithinBoundary reports whether pos lies inside every boundary of id.
func (c *Controller) IsWithinBoundary(id types.EncounterID, pos types.Position) bool {
	return c.bounds.IsWithin(id, pos)
}

// CheckCriteria reports whether an achievement criteria's eligibility
// counter is still set. Unknown criteria are not met.
func (c *Controller) CheckCriteria(criteriaID uint32) bool {
	counter, ok := c.Defs.Criteria[criteriaID]
	if !ok {
		return false
	}
	return c.counters[counter] != 0
}

// Session returns the id of this controller session.
func (c *Controller) Session() ulid.ULID {
	return c.session
}

// Clock returns the scheduled event queue clock.
func (c *Controller) Clock() time.Duration {
	return c.queue.Now()
}

// Affiliation returns the fixed affiliation, or the default until a
// participant has entered.
func (c *Controller) Affiliation() types.Affiliation {
	if c.affFixed {
		return c.affiliation
	}
	return c.defaultAff
}

// Serialize encodes the progress blob.
func (c *Controller) Serialize() []byte {
	return encounter.Encode(c.Defs.Instance.Header, c.machine.States(), c.persistentCounters())
}

// Deserialize restores progress from a blob. Malformed input is recovered
// (unreadable entries read NotStarted) and reported as a
// *encounter.MalformedStateError; the recovered state is applied either way.
func (c *Controller) Deserialize(blob []byte) error {
	d, err := encounter.Decode(c.Defs.Instance.Header, blob, c.machine.Len())
	if err != nil {
		c.log.Warn("malformed progress blob", zap.Error(err))
	}
	c.machine.Restore(d.States)
	for _, name := range c.persistentNames() {
		v, ok := d.Counters[name]
		if !ok {
			v = c.defaultCounter(name)
		}
		c.counters[name] = v
	}

	c.gates.ReconcileAll()
	c.reconcileProps()
	c.dispatch(state.KeyLoad, effects.Context{Trigger: state.KeyLoad})
	c.publish(Notification{Kind: "loaded", Data: map[string]any{"version": d.Version}})
	return err
}

// DrainAnnouncements returns and clears the text produced by say effects.
func (c *Controller) DrainAnnouncements() []string {
	out := c.announcements
	c.announcements = nil
	return out
}

// TimersActive reports whether the scheduled event queue currently runs.
func (c *Controller) TimersActive() bool {
	return rules.EvalAllConditions(c.Defs.TimersActiveWhen, facts{c})
}

// --- world hooks -----------------------------------------------------------

// ResolveEntityTemplate maps a raw creature entry to the one that should
// spawn for the current affiliation. 0 means suppressed.
func (c *Controller) ResolveEntityTemplate(raw uint32) uint32 {
	return c.variants.Creatures.ResolveSpawn(raw, c.Affiliation())
}

// ResolvePropTemplate maps a raw prop entry the same way.
func (c *Controller) ResolvePropTemplate(raw uint32) uint32 {
	return c.variants.Props.ResolveSpawn(raw, c.Affiliation())
}

// OnEntityCreated binds a new entity to its registered role and group and
// brings gate and conditional props in line with current state.
func (c *Controller) OnEntityCreated(e Entity) {
	defer c.recoverHook("OnEntityCreated")

	switch e.Kind() {
	case types.KindProp:
		def, ok := c.Defs.Props[e.Entry()]
		if !ok {
			return
		}
		if def.Role != "" {
			c.handles.Bind(def.Role, e)
		}
		if len(def.Doors) == 0 && len(def.OpenWhen) == 0 {
			break
		}
		p, ok := e.(Prop)
		if !ok {
			c.log.Warn("gate entry is not a prop", zap.Uint32("entry", e.Entry()))
			break
		}
		if len(def.Doors) > 0 {
			if err := c.gates.RegisterAll(p, def.Doors); err != nil {
				c.log.Warn("gate configuration", zap.Uint32("entry", e.Entry()), zap.Error(err))
			}
		}
		if len(def.OpenWhen) > 0 {
			guid := p.GUID()
			c.conditional = slices.DeleteFunc(c.conditional, func(cp *conditionalProp) bool {
				return cp.prop.GUID() == guid
			})
			cp := &conditionalProp{prop: p, def: def}
			c.conditional = append(c.conditional, cp)
			c.applyConditional(cp)
		}
	default:
		def, ok := c.Defs.Creatures[e.Entry()]
		if !ok {
			return
		}
		if def.Role != "" {
			c.handles.Bind(def.Role, e)
		}
		if def.Group != "" {
			c.handles.AddToGroup(def.Group, e)
		}
	}

	c.reconcileProps()
	c.publish(Notification{Kind: "entity", Event: "created", Data: map[string]any{
		"guid": uint64(e.GUID()), "entry": e.Entry(),
	}})
}

// OnEntityDestroyed invalidates every handle to e.
func (c *Controller) OnEntityDestroyed(e Entity) {
	defer c.recoverHook("OnEntityDestroyed")

	roles, groups := c.handles.Release(e)
	c.gates.Unregister(e.GUID())
	c.conditional = slices.DeleteFunc(c.conditional, func(cp *conditionalProp) bool {
		return cp.prop.GUID() == e.GUID()
	})
	if len(roles) > 0 || len(groups) > 0 {
		c.reconcileProps()
	}
	c.publish(Notification{Kind: "entity", Event: "destroyed", Data: map[string]any{
		"guid": uint64(e.GUID()), "entry": e.Entry(),
	}})
}

// OnUnitDeath removes a creature from its group and runs its death
// handlers. Its role stays bound until the corpse is destroyed.
func (c *Controller) OnUnitDeath(e Entity) {
	defer c.recoverHook("OnUnitDeath")

	if def, ok := c.Defs.Creatures[e.Entry()]; ok && def.Group != "" {
		c.handles.RemoveFromGroup(def.Group, e)
	}
	key := state.DeathKey(e.Entry())
	c.dispatch(key, effects.Context{Trigger: key, Source: e.GUID()})
}

// OnRaidSizeChanged re-applies every gate and conditional prop after the
// world's raid size changed, since door bindings with a minimum raid size and
// raid_size conditions depend on it.
func (c *Controller) OnRaidSizeChanged() {
	defer c.recoverHook("OnRaidSizeChanged")

	c.gates.ReconcileAll()
	c.reconcileProps()
}

// OnParticipantEnter fixes the instance affiliation on the first
// participant and runs enter handlers.
func (c *Controller) OnParticipantEnter(p types.Participant) {
	defer c.recoverHook("OnParticipantEnter")

	c.participants[p.GUID] = p
	if !c.affFixed && p.Affiliation != "" {
		c.affiliation = p.Affiliation
		c.affFixed = true
		c.log.Info("affiliation fixed", zap.String("affiliation", string(p.Affiliation)))
		c.reconcileProps()
	}
	c.dispatch(state.KeyEnter, effects.Context{Trigger: state.KeyEnter, Invoker: p.GUID})
	c.publish(Notification{Kind: "participant", Event: "enter", Data: map[string]any{
		"guid": uint64(p.GUID), "name": p.Name,
	}})
}

// OnParticipantLeave runs leave handlers.
func (c *Controller) OnParticipantLeave(p types.Participant) {
	defer c.recoverHook("OnParticipantLeave")

	delete(c.participants, p.GUID)
	c.dispatch(state.KeyLeave, effects.Context{Trigger: state.KeyLeave, Invoker: p.GUID})
	c.publish(Notification{Kind: "participant", Event: "leave", Data: map[string]any{
		"guid": uint64(p.GUID), "name": p.Name,
	}})
}

// Tick advances the scheduled event queue while timers are active and
// fires every due timer.
func (c *Controller) Tick(elapsed time.Duration) {
	defer c.recoverHook("Tick")

	if !c.TimersActive() {
		return
	}
	c.queue.Update(elapsed, c.fireTimer)
}

// OnWorldEvent runs the handlers registered for eventID. source and invoker
// may be nil.
func (c *Controller) OnWorldEvent(source Entity, eventID uint32, invoker Entity) {
	defer c.recoverHook("OnWorldEvent")

	ctx := effects.Context{Trigger: state.EventKey(eventID)}
	if source != nil {
		ctx.Source = source.GUID()
	}
	if invoker != nil {
		ctx.Invoker = invoker.GUID()
	}
	c.dispatch(ctx.Trigger, ctx)
}

// --- internals ---------------------------------------------------------------

func (c *Controller) fireTimer(ev schedule.Event) {
	effs, ok := events.Timer(ev.Type, c.Defs, facts{c})
	if !ok {
		c.log.Warn("scheduled event has no timer", zap.String("timer", ev.Type))
		return
	}
	ctx := effects.Context{Trigger: state.TimerKey(ev.Type)}
	if src, ok := ev.Payload["source"].(types.GUID); ok {
		ctx.Source = src
	}
	c.apply(effs, ctx)
}

// dispatch runs the handlers for key, guarding against runaway nesting.
func (c *Controller) dispatch(key string, ctx effects.Context) {
	if c.depth >= maxDepth {
		c.log.Warn("handler nesting limit reached", zap.String("key", key))
		return
	}
	effs := events.Dispatch([]types.Event{{Type: key}}, c.Defs, facts{c})
	if len(effs) == 0 {
		return
	}
	c.apply(effs, ctx)
}

func (c *Controller) apply(effs []types.Effect, ctx effects.Context) {
	c.depth++
	defer func() { c.depth-- }()

	evts, output := effects.Apply(target{c}, effs, ctx)
	c.announcements = append(c.announcements, output...)
	for _, ev := range evts {
		c.publish(Notification{Kind: "event", Event: ev.Type, Data: ev.Data})
	}
}

func (c *Controller) reconcileProps() {
	for _, cp := range c.conditional {
		c.applyConditional(cp)
	}
}

func (c *Controller) applyConditional(cp *conditionalProp) {
	target := cp.def.ClosedAs
	if rules.EvalAllConditions(cp.def.OpenWhen, facts{c}) {
		target = cp.def.OpenAs
	}
	if cp.set && cp.applied == target {
		return
	}
	cp.prop.SetGoState(target)
	cp.applied = target
	cp.set = true
}

func (c *Controller) publish(n Notification) {
	n.Session = c.session.String()
	n.ClockMS = c.queue.Now().Milliseconds()
	c.pub.Publish(n)
}

func (c *Controller) save() {
	if c.persist != nil {
		c.persist(c.Serialize())
	}
}

// persistentNames lists counters written to the blob: special encounters
// first, then declared persistent counters.
func (c *Controller) persistentNames() []string {
	var names []string
	for _, e := range c.Defs.Encounters {
		if e.Kind == types.KindSpecial {
			names = append(names, e.Name)
		}
	}
	for _, cd := range c.Defs.PersistentCounters() {
		names = append(names, cd.Name)
	}
	return names
}

func (c *Controller) persistentCounters() []encounter.CounterValue {
	names := c.persistentNames()
	out := make([]encounter.CounterValue, 0, len(names))
	for _, n := range names {
		out = append(out, encounter.CounterValue{Name: n, Value: c.counters[n]})
	}
	return out
}

func (c *Controller) counterPersists(name string) bool {
	for _, n := range c.persistentNames() {
		if n == name {
			return true
		}
	}
	return false
}

func (c *Controller) defaultCounter(name string) int {
	if cd, ok := c.Defs.Counter(name); ok {
		return cd.Default
	}
	return 0
}

func (c *Controller) recoverHook(hook string) {
	if r := recover(); r != nil {
		c.log.Error("hook panicked", zap.String("hook", hook), zap.Any("panic", r))
	}
}

// --- snapshot ----------------------------------------------------------------

// EncounterStatus is one row of a Snapshot.
type EncounterStatus struct {
	ID         types.EncounterID
	Name       string
	State      types.EncounterState
	CanAttempt bool
}

// Snapshot is a read-only view of the controller for operator surfaces.
type Snapshot struct {
	Instance     string
	Session      string
	Affiliation  types.Affiliation
	Clock        time.Duration
	TimersActive bool
	Participants int
	Encounters   []EncounterStatus
	Counters     map[string]int
	Roles        map[string]types.GUID
	Gates        []gates.Status
	Timers       []types.ScheduledInfo
}

// Snapshot captures the current controller state.
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		Instance:     c.Defs.Instance.Name,
		Session:      c.session.String(),
		Affiliation:  c.Affiliation(),
		Clock:        c.queue.Now(),
		TimersActive: c.TimersActive(),
		Participants: len(c.participants),
		Counters:     make(map[string]int, len(c.counters)),
		Roles:        c.handles.Roles(),
		Gates:        c.gates.Statuses(),
	}
	for _, e := range c.Defs.Encounters {
		s.Encounters = append(s.Encounters, EncounterStatus{
			ID:         e.ID,
			Name:       e.Name,
			State:      c.machine.Get(e.ID),
			CanAttempt: c.deps.CanAttempt(e.ID, types.AttemptContext{}),
		})
	}
	for k, v := range c.counters {
		s.Counters[k] = v
	}
	for _, ev := range c.queue.Pending() {
		s.Timers = append(s.Timers, types.ScheduledInfo{
			Type:   ev.Type,
			FireIn: ev.FireAt - c.queue.Now(),
			Period: ev.Period,
		})
	}
	return s
}

// CounterNames returns counter names in sorted order.
func (s Snapshot) CounterNames() []string {
	names := make([]string, 0, len(s.Counters))
	for k := range s.Counters {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
