package engine

import (
	"time"

	"github.com/nathoo/instancecore/types"
)

// Entity is a live simulation object as seen by the controller.
type Entity interface {
	GUID() types.GUID
	Entry() uint32
	Kind() types.EntityKind
	Position() types.Position
}

// Prop is an entity with a physical open/closed state.
type Prop interface {
	Entity
	SetGoState(types.GoState)
}

// Creature is an entity that can be told to perform a scripted action.
type Creature interface {
	Entity
	DoAction(action int32)
}

// World is the simulation the controller drives. Implementations must call
// the controller's ResolveEntityTemplate/ResolvePropTemplate before they
// materialize a spawn and OnEntityCreated after.
type World interface {
	RaidSize() int
	SetSpawnGroup(group uint32, active bool)
	Summon(entry uint32, pos types.Position, lifetime time.Duration) (Entity, bool)
	Despawn(guid types.GUID) bool
}

// Notification is one observable controller change.
type Notification struct {
	Kind      string         `json:"kind" jsonschema:"enum=state,enum=event,enum=loaded,enum=entity,enum=participant"`
	Session   string         `json:"session"`
	ClockMS   int64          `json:"clock_ms"`
	Encounter string         `json:"encounter,omitempty"`
	From      string         `json:"from,omitempty"`
	To        string         `json:"to,omitempty"`
	Event     string         `json:"event,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Publisher receives notifications. Publish is called on the tick and must
// not block.
type Publisher interface {
	Publish(Notification)
}

type nopPublisher struct{}

func (nopPublisher) Publish(Notification) {}
