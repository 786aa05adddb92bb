// Package sim is an in-memory World for driving a Controller without a game
// server: operator consoles, scripted playback and tests.
package sim

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/nathoo/instancecore/engine"
	"github.com/nathoo/instancecore/types"
)

// Hooks is the part of the controller the world reports to.
type Hooks interface {
	ResolveEntityTemplate(raw uint32) uint32
	ResolvePropTemplate(raw uint32) uint32
	OnEntityCreated(e engine.Entity)
	OnEntityDestroyed(e engine.Entity)
	OnUnitDeath(e engine.Entity)
}

type base struct {
	guid  types.GUID
	entry uint32
	pos   types.Position
}

func (b *base) GUID() types.GUID         { return b.guid }
func (b *base) Entry() uint32            { return b.entry }
func (b *base) Position() types.Position { return b.pos }

// Creature is a simulated unit.
type Creature struct {
	base
	Alive   bool
	Actions []int32
	expires time.Duration // 0 = never
}

func (c *Creature) Kind() types.EntityKind { return types.KindCreature }

func (c *Creature) DoAction(action int32) { c.Actions = append(c.Actions, action) }

// Prop is a simulated game object.
type Prop struct {
	base
	State   types.GoState
	Changes int
}

func (p *Prop) Kind() types.EntityKind { return types.KindProp }

func (p *Prop) SetGoState(s types.GoState) {
	p.State = s
	p.Changes++
}

// World holds the live entities of one simulated instance.
type World struct {
	hooks    Hooks
	log      *zap.Logger
	next     types.GUID
	now      time.Duration
	raidSize int
	entities map[types.GUID]engine.Entity
	groups   map[uint32]bool
}

// New creates an empty world. Attach must be called before anything spawns.
func New(raidSize int, log *zap.Logger) *World {
	if log == nil {
		log = zap.NewNop()
	}
	return &World{
		log:      log,
		next:     1,
		raidSize: raidSize,
		entities: map[types.GUID]engine.Entity{},
		groups:   map[uint32]bool{},
	}
}

// Attach connects the world to the controller it reports to.
func (w *World) Attach(h Hooks) { w.hooks = h }

func (w *World) RaidSize() int { return w.raidSize }

func (w *World) SetRaidSize(n int) { w.raidSize = n }

func (w *World) SetSpawnGroup(group uint32, active bool) {
	w.groups[group] = active
	w.log.Debug("spawn group", zap.Uint32("group", group), zap.Bool("active", active))
}

// SpawnGroups returns the ids of active spawn groups in order.
func (w *World) SpawnGroups() []uint32 {
	var out []uint32
	for g, on := range w.groups {
		if on {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Summon spawns a creature for the controller.
func (w *World) Summon(entry uint32, pos types.Position, lifetime time.Duration) (engine.Entity, bool) {
	c, ok := w.SpawnCreature(entry, pos, lifetime)
	if !ok {
		return nil, false
	}
	return c, true
}

// SpawnCreature resolves raw through the controller's variant table and
// spawns the result. It reports false when the variant is suppressed. A
// positive lifetime despawns the creature after that much Advance time.
func (w *World) SpawnCreature(raw uint32, pos types.Position, lifetime time.Duration) (*Creature, bool) {
	entry := w.hooks.ResolveEntityTemplate(raw)
	if entry == 0 {
		w.log.Debug("spawn suppressed", zap.Uint32("entry", raw))
		return nil, false
	}
	c := &Creature{base: base{guid: w.nextGUID(), entry: entry, pos: pos}, Alive: true}
	if lifetime > 0 {
		c.expires = w.now + lifetime
	}
	w.entities[c.guid] = c
	w.hooks.OnEntityCreated(c)
	return c, true
}

// SpawnProp is SpawnCreature for props.
func (w *World) SpawnProp(raw uint32, pos types.Position) (*Prop, bool) {
	entry := w.hooks.ResolvePropTemplate(raw)
	if entry == 0 {
		w.log.Debug("prop suppressed", zap.Uint32("entry", raw))
		return nil, false
	}
	p := &Prop{base: base{guid: w.nextGUID(), entry: entry, pos: pos}, State: types.GoClosed}
	w.entities[p.guid] = p
	w.hooks.OnEntityCreated(p)
	return p, true
}

// Kill marks a living creature dead. The corpse stays until despawned.
func (w *World) Kill(guid types.GUID) bool {
	c, ok := w.entities[guid].(*Creature)
	if !ok || !c.Alive {
		return false
	}
	c.Alive = false
	w.hooks.OnUnitDeath(c)
	return true
}

// Despawn removes an entity from the world.
func (w *World) Despawn(guid types.GUID) bool {
	e, ok := w.entities[guid]
	if !ok {
		return false
	}
	delete(w.entities, guid)
	w.hooks.OnEntityDestroyed(e)
	return true
}

// Advance moves the world clock and despawns expired summons.
func (w *World) Advance(elapsed time.Duration) {
	w.now += elapsed
	for _, e := range w.Entities() {
		if c, ok := e.(*Creature); ok && c.expires > 0 && c.expires <= w.now {
			w.Despawn(c.guid)
		}
	}
}

// Get returns a live entity.
func (w *World) Get(guid types.GUID) (engine.Entity, bool) {
	e, ok := w.entities[guid]
	return e, ok
}

// Entities returns every live entity ordered by GUID.
func (w *World) Entities() []engine.Entity {
	out := make([]engine.Entity, 0, len(w.entities))
	for _, e := range w.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GUID() < out[j].GUID() })
	return out
}

// FindByEntry returns the live entities of an entry ordered by GUID.
func (w *World) FindByEntry(entry uint32) []engine.Entity {
	var out []engine.Entity
	for _, e := range w.Entities() {
		if e.Entry() == entry {
			out = append(out, e)
		}
	}
	return out
}

func (w *World) nextGUID() types.GUID {
	g := w.next
	w.next++
	return g
}
