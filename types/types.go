// Package types defines the shared data structures for the instancecore controller.
// This package contains only type definitions: no logic, no methods.
package types

import "time"

// EncounterID is the small integer index of an encounter, fixed at load time.
type EncounterID int

// EncounterState is the four-way progression state of an encounter, plus
// Special for counter-valued encounters. The numeric value is the code
// written to the persisted progress blob.
type EncounterState int

const (
	NotStarted EncounterState = 0
	InProgress EncounterState = 1
	Fail       EncounterState = 2
	Done       EncounterState = 3
	Special    EncounterState = 4
)

// EncounterKind distinguishes four-way encounters from counter-valued ones.
type EncounterKind string

const (
	KindFourWay EncounterKind = "four_way"
	KindSpecial EncounterKind = "special"
)

// GateBehavior is the open/close policy of a gate relative to its encounter.
type GateBehavior int

const (
	OpenWhenNotInProgress GateBehavior = iota
	OpenWhenDone
	OpenWhenInProgress
)

// GUID identifies a live simulation entity.
type GUID uint64

// EntityKind classifies a simulation entity.
type EntityKind string

const (
	KindCreature  EntityKind = "creature"
	KindProp      EntityKind = "prop"
	KindTransport EntityKind = "transport"
)

// GoState is the physical state of a prop.
type GoState int

const (
	GoClosed GoState = iota
	GoOpen
	GoDestroyed
)

// Affiliation names a participant group ("alliance", "horde").
type Affiliation string

// Position is a point in the instance with an orientation.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	O float64 `json:"o"`
}

// Participant is a player inside the instance.
type Participant struct {
	GUID        GUID
	Name        string
	Affiliation Affiliation
	Override    bool // administrative bypass of prerequisite checks
}

// AttemptContext carries who is asking to attempt an encounter.
type AttemptContext struct {
	Participant GUID
	Affiliation Affiliation
	Override    bool
}

// Effect is a single atomic side-effect instruction.
type Effect struct {
	Type   string
	Params map[string]any
}

// Event is emitted after effects are applied.
type Event struct {
	Type string
	Data map[string]any
}

// Result is the output of a single console step: operator-facing lines and
// the notifications the controller published while the step ran.
type Result struct {
	Events []Event
	Output []string
}

// Command is the parsed representation of an operator command.
type Command struct {
	Verb string
	Args []string
}

// Condition is a predicate that must be true for a handler to fire.
type Condition struct {
	Type   string         // "state_is", "counter_gt", "affiliation_is", etc.
	Params map[string]any // condition-specific parameters
	Negate bool           // true if wrapped in Not()
	Inner  *Condition     // for Not(): the negated inner condition
	Any    []Condition    // for Any(): at least one must hold
}

// EventHandler is a set of effects triggered by a state transition, a world
// event, a death, a timer or a participant lifecycle notification.
type EventHandler struct {
	Key        string
	Conditions []Condition
	Effects    []Effect
}

// BoundaryDef is a compiled boundary shape before it is turned into a
// predicate. Params hold shape-specific numbers.
type BoundaryDef struct {
	Shape    string // "circle", "rectangle", "ellipse", "parallelogram", "zrange"
	Params   map[string]float64
	Inverted bool
}

// EncounterDef is the static definition of an encounter.
type EncounterDef struct {
	ID          EncounterID
	Name        string
	Kind        EncounterKind
	Requires    []EncounterID
	Boundaries  []BoundaryDef
	DungeonIDs  []int // external encounter ids reported to telemetry
	DisplayName string
}

// DoorBinding ties a gate prop entry to an encounter with a policy.
type DoorBinding struct {
	Encounter   EncounterID
	Behavior    GateBehavior
	MinRaidSize int // 0 = any raid size
}

// CreatureDef is a registration-table entry for a creature entry.
type CreatureDef struct {
	Entry uint32
	Role  string // bound in the handle registry while alive
	Group string // added to a multi-occupant role group while alive
}

// PropDef is a registration-table entry for a prop entry.
type PropDef struct {
	Entry uint32
	Role  string
	Doors []DoorBinding
	// OpenWhen derives the prop state from conditions; empty means the prop
	// is not conditional.
	OpenWhen []Condition
	ClosedAs GoState // state applied when OpenWhen fails (default GoClosed)
	OpenAs   GoState // state applied when OpenWhen holds (default GoOpen)
}

// VariantDef maps a neutral spawn identity to affiliation-specific ones.
type VariantDef struct {
	Neutral       uint32
	Suppressed    bool                   // never spawns
	ByAffiliation map[Affiliation]uint32 // 0 = suppressed for that affiliation
}

// CounterDef declares a generic counter and its initial value.
type CounterDef struct {
	Name    string
	Default int
	Persist bool
}

// TimerDef is a named scheduled-event handler.
type TimerDef struct {
	Name    string
	Handler EventHandler
}

// InstanceDef holds instance metadata from Lua.
type InstanceDef struct {
	Name    string
	Header  string // progress blob marker
	Version string
	MapID   int
	Intro   string
	// Affiliation is used when no participant has fixed it yet.
	DefaultAffiliation Affiliation
}

// ScheduledInfo describes a pending scheduled event for display.
type ScheduledInfo struct {
	Type   string
	FireIn time.Duration
	Period time.Duration
}
