// Package console runs operator commands against a controller driving a
// simulated world. It is the turn orchestrator behind the cli and tui
// front ends.
package console

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nathoo/instancecore/engine"
	"github.com/nathoo/instancecore/engine/encounter"
	"github.com/nathoo/instancecore/engine/gates"
	"github.com/nathoo/instancecore/engine/parser"
	"github.com/nathoo/instancecore/engine/resolve"
	"github.com/nathoo/instancecore/engine/state"
	"github.com/nathoo/instancecore/sim"
	"github.com/nathoo/instancecore/types"
)

// firstParticipant is the GUID handed to the first participant; world
// entities count up from 1 and never reach it.
const firstParticipant types.GUID = 1 << 40

// Session is one operator session: definitions, the controller and the
// simulated world it drives.
type Session struct {
	Defs       *state.Defs
	Controller *engine.Controller
	World      *sim.World
	CommandLog []string

	log          *zap.Logger
	feed         engine.Publisher
	persist      func([]byte)
	raidSize     int
	affiliation  types.Affiliation
	pending      []engine.Notification
	participants map[string]types.Participant
	nextGUID     types.GUID
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger shared by the session, controller and world.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithFeed forwards every controller notification to p as well.
func WithFeed(p engine.Publisher) Option {
	return func(s *Session) { s.feed = p }
}

// WithPersister passes fn to the controller.
func WithPersister(fn func([]byte)) Option {
	return func(s *Session) { s.persist = fn }
}

// WithRaidSize sets the simulated raid size.
func WithRaidSize(n int) Option {
	return func(s *Session) { s.raidSize = n }
}

// WithAffiliation overrides the instance's default affiliation.
func WithAffiliation(a types.Affiliation) Option {
	return func(s *Session) { s.affiliation = a }
}

// New creates a session over a fresh controller and world.
func New(defs *state.Defs, opts ...Option) (*Session, error) {
	s := &Session{
		Defs:         defs,
		log:          zap.NewNop(),
		raidSize:     10,
		participants: map[string]types.Participant{},
		nextGUID:     firstParticipant,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.World = sim.New(s.raidSize, s.log.Named("sim"))
	copts := []engine.Option{engine.WithLogger(s.log.Named("engine")), engine.WithPublisher(s)}
	if s.persist != nil {
		copts = append(copts, engine.WithPersister(s.persist))
	}
	if s.affiliation != "" {
		copts = append(copts, engine.WithDefaultAffiliation(s.affiliation))
	}
	c, err := engine.New(defs, s.World, copts...)
	if err != nil {
		return nil, err
	}
	s.Controller = c
	s.World.Attach(c)
	return s, nil
}

// Publish records a notification for the current step and forwards it.
func (s *Session) Publish(n engine.Notification) {
	s.pending = append(s.pending, n)
	if s.feed != nil {
		s.feed.Publish(n)
	}
}

// Snapshot returns the controller snapshot.
func (s *Session) Snapshot() engine.Snapshot {
	return s.Controller.Snapshot()
}

// Advance moves the world and the controller clock forward outside of a
// command, as the tui's auto tick does.
func (s *Session) Advance(elapsed time.Duration) types.Result {
	s.World.Advance(elapsed)
	s.Controller.Tick(elapsed)
	return s.collect(types.Result{})
}

// Step runs one operator command.
func (s *Session) Step(input string) types.Result {
	var result types.Result

	cmd := parser.Parse(input)
	if cmd.Verb == "" {
		result.Output = append(result.Output, "Enter a command. Type /help for the list.")
		return result
	}
	s.CommandLog = append(s.CommandLog, input)

	var out []string
	var err error
	switch cmd.Verb {
	case "state":
		out = s.cmdState()
	case "set":
		out, err = s.cmdSet(cmd.Args)
	case "attempt":
		out, err = s.cmdAttempt(cmd.Args)
	case "spawn":
		out, err = s.cmdSpawn(cmd.Args)
	case "spawnprop":
		out, err = s.cmdSpawnProp(cmd.Args)
	case "despawn":
		out, err = s.cmdDespawn(cmd.Args)
	case "kill":
		out, err = s.cmdKill(cmd.Args)
	case "enter":
		out, err = s.cmdEnter(cmd.Args)
	case "leave":
		out, err = s.cmdLeave(cmd.Args)
	case "event":
		out, err = s.cmdEvent(cmd.Args)
	case "tick":
		out, err = s.cmdTick(cmd.Args)
	case "counter":
		out, err = s.cmdCounter(cmd.Args)
	case "role":
		out, err = s.cmdRole(cmd.Args)
	case "within":
		out, err = s.cmdWithin(cmd.Args)
	case "props":
		out = s.cmdProps()
	case "entities":
		out = s.cmdEntities()
	case "timers":
		out = s.cmdTimers()
	case "blob":
		out = []string{string(s.Controller.Serialize())}
	case "restore":
		out, err = s.cmdRestore(cmd.Args)
	case "criteria":
		out, err = s.cmdCriteria(cmd.Args)
	case "raid":
		out, err = s.cmdRaid(cmd.Args)
	default:
		err = fmt.Errorf("unknown command %q; type /help for the list", cmd.Verb)
	}

	if err != nil {
		result.Output = append(result.Output, err.Error())
	}
	result.Output = append(result.Output, out...)
	return s.collect(result)
}

// collect appends announcements and the notifications published while the
// step ran.
func (s *Session) collect(result types.Result) types.Result {
	result.Output = append(result.Output, s.Controller.DrainAnnouncements()...)
	for _, n := range s.pending {
		result.Events = append(result.Events, toEvent(n))
	}
	s.pending = nil
	return result
}

func toEvent(n engine.Notification) types.Event {
	data := map[string]any{}
	for k, v := range n.Data {
		data[k] = v
	}
	switch n.Kind {
	case "state":
		data["encounter"] = n.Encounter
		data["from"] = n.From
		data["to"] = n.To
	case "event", "entity", "participant":
		data["event"] = n.Event
	}
	return types.Event{Type: n.Kind, Data: data}
}

// --- commands ----------------------------------------------------------------

func (s *Session) cmdState() []string {
	snap := s.Controller.Snapshot()
	timers := "off"
	if snap.TimersActive {
		timers = "on"
	}
	out := []string{fmt.Sprintf("%s [%s] clock %s, timers %s, %d participant(s)",
		snap.Instance, affiliationLabel(snap.Affiliation), snap.Clock, timers, snap.Participants)}

	for _, e := range snap.Encounters {
		line := fmt.Sprintf("  %2d %-14s %s", e.ID, e.Name, encounter.StateName(e.State))
		switch {
		case e.State == types.Special:
			line += fmt.Sprintf(" %d", snap.Counters[e.Name])
		case !e.CanAttempt:
			if b, ok := s.Controller.Blocker(e.ID); ok {
				line += fmt.Sprintf("  (blocked by %s)", s.Defs.Encounters[b].Name)
			}
		}
		out = append(out, line)
	}

	var counters []string
	for _, name := range snap.CounterNames() {
		if s.isSpecial(name) {
			continue
		}
		counters = append(counters, fmt.Sprintf("%s=%d", name, snap.Counters[name]))
	}
	if len(counters) > 0 {
		out = append(out, "counters: "+strings.Join(counters, " "))
	}
	if groups := s.World.SpawnGroups(); len(groups) > 0 {
		out = append(out, fmt.Sprintf("spawn groups: %v", groups))
	}
	return out
}

func (s *Session) cmdSet(args []string) ([]string, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("usage: set <encounter> <state>")
	}
	id, err := resolve.Encounter(s.Defs, args[0])
	if err != nil {
		return nil, err
	}
	st, err := resolve.State(args[1])
	if err != nil {
		return nil, err
	}
	name := s.Defs.Encounters[id].Name
	from := s.Controller.GetState(id)
	if !s.Controller.SetState(id, st) {
		return nil, fmt.Errorf("rejected: %s %s -> %s", name, encounter.StateName(from), encounter.StateName(st))
	}
	if from == st {
		return []string{fmt.Sprintf("%s already %s", name, encounter.StateName(st))}, nil
	}
	return []string{fmt.Sprintf("%s: %s -> %s", name, encounter.StateName(from), encounter.StateName(st))}, nil
}

func (s *Session) cmdAttempt(args []string) ([]string, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: attempt <encounter> [participant]")
	}
	id, err := resolve.Encounter(s.Defs, args[0])
	if err != nil {
		return nil, err
	}
	ctx := types.AttemptContext{}
	if len(args) > 1 {
		p, ok := s.participants[args[1]]
		if !ok {
			return nil, fmt.Errorf("no participant named %q", args[1])
		}
		ctx = types.AttemptContext{Participant: p.GUID, Affiliation: p.Affiliation, Override: p.Override}
	}
	name := s.Defs.Encounters[id].Name
	if s.Controller.CanAttempt(id, ctx) {
		return []string{fmt.Sprintf("%s can be attempted", name)}, nil
	}
	if b, ok := s.Controller.Blocker(id); ok {
		return []string{fmt.Sprintf("%s is blocked by %s (%s)", name,
			s.Defs.Encounters[b].Name, encounter.StateName(s.Controller.GetState(b)))}, nil
	}
	return []string{fmt.Sprintf("%s cannot be attempted", name)}, nil
}

func (s *Session) cmdSpawn(args []string) ([]string, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: spawn <entry|role|group> [x y z [o]]")
	}
	entry, err := resolve.CreatureEntry(s.Defs, args[0])
	if err != nil {
		return nil, err
	}
	pos, err := parsePosition(args[1:])
	if err != nil {
		return nil, err
	}
	c, ok := s.World.SpawnCreature(entry, pos, 0)
	if !ok {
		return []string{fmt.Sprintf("creature %d is suppressed for %s", entry, affiliationLabel(s.Controller.Affiliation()))}, nil
	}
	return []string{fmt.Sprintf("spawned %s", s.describe(c))}, nil
}

func (s *Session) cmdSpawnProp(args []string) ([]string, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: spawnprop <entry|role> [x y z [o]]")
	}
	entry, err := resolve.PropEntry(s.Defs, args[0])
	if err != nil {
		return nil, err
	}
	pos, err := parsePosition(args[1:])
	if err != nil {
		return nil, err
	}
	p, ok := s.World.SpawnProp(entry, pos)
	if !ok {
		return []string{fmt.Sprintf("prop %d is suppressed for %s", entry, affiliationLabel(s.Controller.Affiliation()))}, nil
	}
	return []string{fmt.Sprintf("spawned %s", s.describe(p))}, nil
}

func (s *Session) cmdDespawn(args []string) ([]string, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: despawn <#guid|entry|role>")
	}
	e, err := s.entity(args[0])
	if err != nil {
		return nil, err
	}
	desc := s.describe(e)
	s.World.Despawn(e.GUID())
	return []string{fmt.Sprintf("despawned %s", desc)}, nil
}

func (s *Session) cmdKill(args []string) ([]string, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: kill <#guid|entry|role>")
	}
	e, err := s.entity(args[0])
	if err != nil {
		return nil, err
	}
	if !s.World.Kill(e.GUID()) {
		return nil, fmt.Errorf("%s cannot die", s.describe(e))
	}
	return []string{fmt.Sprintf("killed %s", s.describe(e))}, nil
}

func (s *Session) cmdEnter(args []string) ([]string, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: enter <name> [affiliation] [override]")
	}
	name := args[0]
	if _, ok := s.participants[name]; ok {
		return nil, fmt.Errorf("%s is already inside", name)
	}
	p := types.Participant{GUID: s.nextGUID, Name: name}
	s.nextGUID++
	for _, a := range args[1:] {
		if strings.EqualFold(a, "override") || strings.EqualFold(a, "gm") {
			p.Override = true
			continue
		}
		p.Affiliation = types.Affiliation(strings.ToLower(a))
	}
	s.participants[name] = p
	s.Controller.OnParticipantEnter(p)
	return []string{fmt.Sprintf("%s entered [%s]", name, affiliationLabel(s.Controller.Affiliation()))}, nil
}

func (s *Session) cmdLeave(args []string) ([]string, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: leave <name>")
	}
	p, ok := s.participants[args[0]]
	if !ok {
		return nil, fmt.Errorf("no participant named %q", args[0])
	}
	delete(s.participants, args[0])
	s.Controller.OnParticipantLeave(p)
	return []string{fmt.Sprintf("%s left", p.Name)}, nil
}

func (s *Session) cmdEvent(args []string) ([]string, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: event <id> [source]")
	}
	id, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("event id %q is not a number", args[0])
	}
	var source engine.Entity
	if len(args) > 1 {
		if source, err = s.entity(args[1]); err != nil {
			return nil, err
		}
	}
	s.Controller.OnWorldEvent(source, uint32(id), nil)
	return []string{fmt.Sprintf("event %d sent", id)}, nil
}

func (s *Session) cmdTick(args []string) ([]string, error) {
	d := time.Second
	if len(args) > 0 {
		var err error
		if d, err = parseDuration(args[0]); err != nil {
			return nil, err
		}
	}
	s.World.Advance(d)
	s.Controller.Tick(d)
	return []string{fmt.Sprintf("clock %s", s.Controller.Clock())}, nil
}

func (s *Session) cmdCounter(args []string) ([]string, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: counter <name> [value]")
	}
	name := args[0]
	if len(args) > 1 {
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("counter value %q is not a number", args[1])
		}
		s.Controller.SetGenericCounter(name, v)
	}
	return []string{fmt.Sprintf("%s = %d", name, s.Controller.GetGenericCounter(name))}, nil
}

func (s *Session) cmdRole(args []string) ([]string, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: role <name>")
	}
	role, err := resolve.Role(s.Defs, strings.Join(args, " "))
	if err != nil {
		return nil, err
	}
	e, ok := s.Controller.GetBoundEntity(role)
	if !ok {
		return []string{fmt.Sprintf("%s is unbound", role)}, nil
	}
	return []string{fmt.Sprintf("%s is %s", role, s.describe(e))}, nil
}

func (s *Session) cmdWithin(args []string) ([]string, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("usage: within <encounter> <x> <y> [z]")
	}
	id, err := resolve.Encounter(s.Defs, args[0])
	if err != nil {
		return nil, err
	}
	pos, err := parsePosition(args[1:])
	if err != nil {
		return nil, err
	}
	name := s.Defs.Encounters[id].Name
	if s.Controller.IsWithinBoundary(id, pos) {
		return []string{fmt.Sprintf("(%g, %g, %g) is inside %s", pos.X, pos.Y, pos.Z, name)}, nil
	}
	return []string{fmt.Sprintf("(%g, %g, %g) is outside %s", pos.X, pos.Y, pos.Z, name)}, nil
}

func (s *Session) cmdProps() []string {
	gateByGUID := map[types.GUID]gates.Status{}
	for _, g := range s.Controller.Snapshot().Gates {
		gateByGUID[g.GUID] = g
	}
	var out []string
	for _, e := range s.World.Entities() {
		p, ok := e.(*sim.Prop)
		if !ok {
			continue
		}
		line := fmt.Sprintf("  %s %s", s.describe(p), gates.GoStateName(p.State))
		if g, ok := gateByGUID[p.GUID()]; ok {
			var binds []string
			for _, b := range g.Bindings {
				bind := fmt.Sprintf("%s/%s", s.Defs.Encounters[b.Encounter].Name, gates.BehaviorName(b.Behavior))
				if b.MinRaidSize > 0 {
					bind += fmt.Sprintf("/raid>=%d", b.MinRaidSize)
				}
				binds = append(binds, bind)
			}
			line += "  gate " + strings.Join(binds, " & ")
		}
		out = append(out, line)
	}
	if len(out) == 0 {
		return []string{"no props spawned"}
	}
	return out
}

func (s *Session) cmdEntities() []string {
	var out []string
	for _, e := range s.World.Entities() {
		line := "  " + s.describe(e)
		if c, ok := e.(*sim.Creature); ok && !c.Alive {
			line += " (dead)"
		}
		out = append(out, line)
	}
	if len(out) == 0 {
		return []string{"the world is empty"}
	}
	return out
}

func (s *Session) cmdTimers() []string {
	snap := s.Controller.Snapshot()
	mode := "running"
	if !snap.TimersActive {
		mode = "frozen"
	}
	out := []string{fmt.Sprintf("clock %s, queue %s", snap.Clock, mode)}
	for _, t := range snap.Timers {
		line := fmt.Sprintf("  %-16s in %s", t.Type, t.FireIn)
		if t.Period > 0 {
			line += fmt.Sprintf(", every %s", t.Period)
		}
		out = append(out, line)
	}
	return out
}

func (s *Session) cmdRestore(args []string) ([]string, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: restore <blob>")
	}
	err := s.Controller.Deserialize([]byte(strings.Join(args, " ")))
	if err != nil {
		return []string{fmt.Sprintf("restored with recovery: %v", err)}, nil
	}
	return []string{"restored"}, nil
}

func (s *Session) cmdCriteria(args []string) ([]string, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("usage: criteria <id>")
	}
	id, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("criteria id %q is not a number", args[0])
	}
	if s.Controller.CheckCriteria(uint32(id)) {
		return []string{fmt.Sprintf("criteria %d met", id)}, nil
	}
	return []string{fmt.Sprintf("criteria %d not met", id)}, nil
}

func (s *Session) cmdRaid(args []string) ([]string, error) {
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("raid size %q is not a positive number", args[0])
		}
		if n != s.World.RaidSize() {
			s.World.SetRaidSize(n)
			s.Controller.OnRaidSizeChanged()
		}
	}
	return []string{fmt.Sprintf("raid size %d", s.World.RaidSize())}, nil
}

// --- helpers -----------------------------------------------------------------

// entity resolves "#guid", an entry number (first live entity of that
// entry) or a bound role.
func (s *Session) entity(arg string) (engine.Entity, error) {
	if strings.HasPrefix(arg, "#") {
		n, err := strconv.ParseUint(arg[1:], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad guid %q", arg)
		}
		e, ok := s.World.Get(types.GUID(n))
		if !ok {
			return nil, fmt.Errorf("nothing with guid %s", arg)
		}
		return e, nil
	}
	if n, err := strconv.ParseUint(arg, 10, 32); err == nil {
		found := s.World.FindByEntry(uint32(n))
		for _, e := range found {
			if c, ok := e.(*sim.Creature); !ok || c.Alive {
				return e, nil
			}
		}
		if len(found) > 0 {
			return found[0], nil
		}
		return nil, fmt.Errorf("no live entity with entry %d", n)
	}
	role, err := resolve.Role(s.Defs, arg)
	if err != nil {
		return nil, err
	}
	e, ok := s.Controller.GetBoundEntity(role)
	if !ok {
		return nil, fmt.Errorf("%s is unbound", role)
	}
	return e, nil
}

func (s *Session) describe(e engine.Entity) string {
	desc := fmt.Sprintf("#%d %s %d", e.GUID(), e.Kind(), e.Entry())
	var label string
	switch e.Kind() {
	case types.KindProp:
		label = s.Defs.Props[e.Entry()].Role
	default:
		d := s.Defs.Creatures[e.Entry()]
		label = d.Role
		if label == "" {
			label = d.Group
		}
	}
	if label != "" {
		desc += " (" + label + ")"
	}
	return desc
}

func (s *Session) isSpecial(name string) bool {
	id, ok := s.Defs.EncounterByName(name)
	return ok && s.Defs.Encounters[id].Kind == types.KindSpecial
}

// Participants returns the names of participants inside, sorted.
func (s *Session) Participants() []string {
	names := make([]string, 0, len(s.participants))
	for n := range s.participants {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func parsePosition(args []string) (types.Position, error) {
	var v [4]float64
	for i, a := range args {
		if i == len(v) {
			break
		}
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return types.Position{}, fmt.Errorf("coordinate %q is not a number", a)
		}
		v[i] = f
	}
	return types.Position{X: v[0], Y: v[1], Z: v[2], O: v[3]}, nil
}

// parseDuration accepts plain milliseconds or a Go duration.
func parseDuration(arg string) (time.Duration, error) {
	if n, err := strconv.Atoi(arg); err == nil && n >= 0 {
		return time.Duration(n) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(arg)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("bad duration %q", arg)
	}
	return d, nil
}

func affiliationLabel(a types.Affiliation) string {
	if a == "" {
		return "neutral"
	}
	return string(a)
}
