// Package loader loads Lua instance content into Go structs at load time.
// The Lua VM is discarded after loading, so there is no Lua at runtime.
package loader

import (
	"fmt"
	"sort"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/instancecore/engine/encounter"
	"github.com/nathoo/instancecore/engine/gates"
	"github.com/nathoo/instancecore/engine/state"
	"github.com/nathoo/instancecore/types"
)

// getString returns a string field from a Lua table, or "" if missing.
func getString(tbl *lua.LTable, key string) string {
	v := tbl.RawGetString(key)
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return ""
}

// getBool returns a bool field from a Lua table, or the default if missing.
func getBool(tbl *lua.LTable, key string, def bool) bool {
	v := tbl.RawGetString(key)
	if b, ok := v.(lua.LBool); ok {
		return bool(b)
	}
	return def
}

// getNumber returns a numeric field from a Lua table, or 0 if missing.
func getNumber(tbl *lua.LTable, key string) float64 {
	v := tbl.RawGetString(key)
	if n, ok := v.(lua.LNumber); ok {
		return float64(n)
	}
	return 0
}

// getInt returns an int field from a Lua table, or 0 if missing.
func getInt(tbl *lua.LTable, key string) int {
	return int(getNumber(tbl, key))
}

// getTable returns a table field from a Lua table, or nil if missing.
func getTable(tbl *lua.LTable, key string) *lua.LTable {
	v := tbl.RawGetString(key)
	if t, ok := v.(*lua.LTable); ok {
		return t
	}
	return nil
}

// toGoValue converts a Lua value to a Go value recursively.
func toGoValue(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		f := float64(val)
		if f == float64(int(f)) {
			return int(f)
		}
		return f
	case *lua.LNilType:
		return nil
	case lua.LString:
		return string(val)
	case *lua.LTable:
		maxN := val.MaxN()
		if maxN > 0 {
			arr := make([]any, 0, maxN)
			for i := 1; i <= maxN; i++ {
				arr = append(arr, toGoValue(val.RawGetInt(i)))
			}
			return arr
		}
		m := map[string]any{}
		val.ForEach(func(k, v lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				m[string(ks)] = toGoValue(v)
			}
		})
		return m
	default:
		return nil
	}
}

// arrayTables returns the table elements of tbl's array part in order.
func arrayTables(tbl *lua.LTable) []*lua.LTable {
	if tbl == nil {
		return nil
	}
	var out []*lua.LTable
	for i := 1; i <= tbl.MaxN(); i++ {
		if t, ok := tbl.RawGetInt(i).(*lua.LTable); ok {
			out = append(out, t)
		}
	}
	return out
}

// compiler turns collected tables into Defs. Name references that cannot be
// resolved are recorded as problems and reported with validation errors.
type compiler struct {
	defs     *state.Defs
	encIDs   map[string]types.EncounterID
	problems []string
}

func (c *compiler) problemf(format string, args ...any) {
	c.problems = append(c.problems, fmt.Sprintf(format, args...))
}

// compile converts all collected Lua data into a Defs struct. The returned
// problems are unresolved references; err is reserved for content that
// cannot be compiled at all.
func compile(coll *collector) (*state.Defs, []string, error) {
	if coll.instance == nil {
		return nil, nil, oops.In("loader").Errorf("no Instance{} definition found")
	}
	c := &compiler{
		defs: &state.Defs{
			Creatures: map[uint32]types.CreatureDef{},
			Props:     map[uint32]types.PropDef{},
			Criteria:  map[uint32]string{},
		},
		encIDs: map[string]types.EncounterID{},
	}
	c.defs.Instance = compileInstance(coll.instance)

	// Encounter ids first, so any definition can reference any encounter.
	var encounters []rawNamed
	for _, raw := range coll.encounters {
		if _, dup := c.encIDs[raw.name]; dup {
			c.problemf("duplicate encounter %q", raw.name)
			continue
		}
		c.encIDs[raw.name] = types.EncounterID(len(encounters))
		encounters = append(encounters, raw)
	}
	for i, raw := range encounters {
		c.defs.Encounters = append(c.defs.Encounters, c.compileEncounter(types.EncounterID(i), raw))
	}

	for _, raw := range coll.creatures {
		if _, dup := c.defs.Creatures[raw.entry]; dup {
			c.problemf("duplicate creature entry %d", raw.entry)
			continue
		}
		c.defs.Creatures[raw.entry] = types.CreatureDef{
			Entry: raw.entry,
			Role:  getString(raw.table, "role"),
			Group: getString(raw.table, "group"),
		}
	}

	for _, raw := range coll.doors {
		c.addProp(raw.entry, c.compileDoor(raw))
	}
	for _, raw := range coll.props {
		c.addProp(raw.entry, c.compileProp(raw))
	}

	c.defs.CreatureVariants = c.compileVariants("creature", coll.variants)
	c.defs.PropVariants = c.compileVariants("prop", coll.propVariants)

	seenCounter := map[string]bool{}
	for _, rc := range coll.counters {
		if seenCounter[rc.name] {
			c.problemf("duplicate counter %q", rc.name)
			continue
		}
		seenCounter[rc.name] = true
		c.defs.Counters = append(c.defs.Counters, types.CounterDef{Name: rc.name, Default: rc.def, Persist: rc.persist})
	}

	for _, rc := range coll.criteria {
		if _, dup := c.defs.Criteria[rc.id]; dup {
			c.problemf("duplicate criteria %d", rc.id)
			continue
		}
		c.defs.Criteria[rc.id] = rc.counter
	}

	for _, raw := range coll.handlers {
		key, ok := c.handlerKey(raw)
		if !ok {
			continue
		}
		h := c.compileHandler(raw.table)
		h.Key = key
		c.defs.Handlers = append(c.defs.Handlers, h)
	}

	seenTimer := map[string]bool{}
	for _, raw := range coll.timers {
		if seenTimer[raw.name] {
			c.problemf("duplicate timer %q", raw.name)
			continue
		}
		seenTimer[raw.name] = true
		h := c.compileHandler(raw.table)
		h.Key = state.TimerKey(raw.name)
		c.defs.Timers = append(c.defs.Timers, types.TimerDef{Name: raw.name, Handler: h})
	}

	if coll.timersActive != nil {
		c.defs.TimersActiveWhen = c.compileConditions(coll.timersActive)
	}

	return c.defs, c.problems, nil
}

func compileInstance(tbl *lua.LTable) types.InstanceDef {
	return types.InstanceDef{
		Name:               getString(tbl, "name"),
		Header:             getString(tbl, "header"),
		Version:            getString(tbl, "version"),
		MapID:              getInt(tbl, "map"),
		Intro:              getString(tbl, "intro"),
		DefaultAffiliation: types.Affiliation(getString(tbl, "default_affiliation")),
	}
}

func (c *compiler) compileEncounter(id types.EncounterID, raw rawNamed) types.EncounterDef {
	tbl := raw.table
	def := types.EncounterDef{
		ID:          id,
		Name:        raw.name,
		Kind:        types.KindFourWay,
		DisplayName: getString(tbl, "display"),
	}
	if getString(tbl, "kind") == string(types.KindSpecial) {
		def.Kind = types.KindSpecial
	}
	if req := getTable(tbl, "requires"); req != nil {
		for i := 1; i <= req.MaxN(); i++ {
			name := lua.LVAsString(req.RawGetInt(i))
			pre, ok := c.encIDs[name]
			if !ok {
				c.problemf("encounter %q requires undefined encounter %q", raw.name, name)
				continue
			}
			def.Requires = append(def.Requires, pre)
		}
	}
	for _, b := range arrayTables(getTable(tbl, "boundaries")) {
		def.Boundaries = append(def.Boundaries, compileBoundary(b))
	}
	if ids := getTable(tbl, "dungeon_ids"); ids != nil {
		for i := 1; i <= ids.MaxN(); i++ {
			if n, ok := ids.RawGetInt(i).(lua.LNumber); ok {
				def.DungeonIDs = append(def.DungeonIDs, int(n))
			}
		}
	}
	return def
}

func compileBoundary(tbl *lua.LTable) types.BoundaryDef {
	b := types.BoundaryDef{
		Shape:    getString(tbl, "shape"),
		Params:   map[string]float64{},
		Inverted: getBool(tbl, "inverted", false),
	}
	tbl.ForEach(func(k, v lua.LValue) {
		ks, ok := k.(lua.LString)
		if !ok {
			return
		}
		if n, ok := v.(lua.LNumber); ok {
			b.Params[string(ks)] = float64(n)
		}
	})
	return b
}

func (c *compiler) addProp(entry uint32, def types.PropDef) {
	if _, dup := c.defs.Props[entry]; dup {
		c.problemf("duplicate prop entry %d", entry)
		return
	}
	c.defs.Props[entry] = def
}

// compileDoor reads a door's bindings from the array part of its table.
func (c *compiler) compileDoor(raw rawEntry) types.PropDef {
	def := types.PropDef{Entry: raw.entry, Role: getString(raw.table, "role")}
	for _, b := range arrayTables(raw.table) {
		name := getString(b, "encounter")
		enc, ok := c.encIDs[name]
		if !ok {
			c.problemf("door %d references undefined encounter %q", raw.entry, name)
			continue
		}
		behavior, ok := gates.ParseBehavior(getString(b, "open"))
		if !ok {
			c.problemf("door %d has unknown open policy %q", raw.entry, getString(b, "open"))
			continue
		}
		def.Doors = append(def.Doors, types.DoorBinding{
			Encounter:   enc,
			Behavior:    behavior,
			MinRaidSize: getInt(b, "min_raid"),
		})
	}
	if len(def.Doors) == 0 {
		c.problemf("door %d has no bindings", raw.entry)
	}
	return def
}

func (c *compiler) compileProp(raw rawEntry) types.PropDef {
	def := types.PropDef{
		Entry:    raw.entry,
		Role:     getString(raw.table, "role"),
		ClosedAs: types.GoClosed,
		OpenAs:   types.GoOpen,
	}
	if cond := getTable(raw.table, "open_when"); cond != nil {
		def.OpenWhen = c.compileConditions(cond)
	}
	def.ClosedAs = c.goState(raw.table.RawGetString("closed_as"), def.ClosedAs, raw.entry)
	def.OpenAs = c.goState(raw.table.RawGetString("open_as"), def.OpenAs, raw.entry)
	return def
}

func (c *compiler) goState(v lua.LValue, def types.GoState, entry uint32) types.GoState {
	switch val := v.(type) {
	case lua.LNumber:
		return types.GoState(int(val))
	case lua.LString:
		st, ok := gates.ParseGoState(string(val))
		if !ok {
			c.problemf("prop %d has unknown state %q", entry, string(val))
			return def
		}
		return st
	}
	return def
}

func (c *compiler) compileVariants(kind string, raws []rawEntry) []types.VariantDef {
	var out []types.VariantDef
	seen := map[uint32]bool{}
	for _, raw := range raws {
		if seen[raw.entry] {
			c.problemf("duplicate %s variant %d", kind, raw.entry)
			continue
		}
		seen[raw.entry] = true
		v := types.VariantDef{
			Neutral:       raw.entry,
			Suppressed:    getBool(raw.table, "suppressed", false),
			ByAffiliation: map[types.Affiliation]uint32{},
		}
		raw.table.ForEach(func(k, val lua.LValue) {
			ks, ok := k.(lua.LString)
			if !ok || ks == "suppressed" {
				return
			}
			if n, ok := val.(lua.LNumber); ok {
				v.ByAffiliation[types.Affiliation(ks)] = uint32(n)
			}
		})
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Neutral < out[j].Neutral })
	return out
}

// handlerKey resolves a handler's trigger.
func (c *compiler) handlerKey(raw rawHandler) (string, bool) {
	switch raw.kind {
	case "state":
		enc, ok := c.encIDs[raw.encounter]
		if !ok {
			c.problemf("OnState references undefined encounter %q", raw.encounter)
			return "", false
		}
		st, ok := encounterState(raw.state)
		if !ok {
			c.problemf("OnState %q has unknown state %q", raw.encounter, raw.state.String())
			return "", false
		}
		return state.StateKey(enc, st), true
	case "event":
		return state.EventKey(raw.id), true
	case "death":
		return state.DeathKey(raw.id), true
	case "enter":
		return state.KeyEnter, true
	case "leave":
		return state.KeyLeave, true
	default:
		return state.KeyLoad, true
	}
}

// encounterState reads a state given by name or numeric code.
func encounterState(v lua.LValue) (types.EncounterState, bool) {
	switch val := v.(type) {
	case lua.LNumber:
		n := int(val)
		return types.EncounterState(n), n >= 0 && n <= int(types.Special)
	case lua.LString:
		return encounter.ParseState(string(val))
	}
	return 0, false
}

// compileHandler reads { conditions = {...}, effects = {...} }, or a bare
// list of effects.
func (c *compiler) compileHandler(tbl *lua.LTable) types.EventHandler {
	var h types.EventHandler
	if cond := getTable(tbl, "conditions"); cond != nil {
		h.Conditions = c.compileConditions(cond)
	}
	if eff := getTable(tbl, "effects"); eff != nil {
		h.Effects = c.compileEffects(eff)
	} else {
		h.Effects = c.compileEffects(tbl)
	}
	return h
}

func (c *compiler) compileConditions(tbl *lua.LTable) []types.Condition {
	var conditions []types.Condition
	for _, t := range arrayTables(tbl) {
		conditions = append(conditions, c.compileCondition(t))
	}
	return conditions
}

func (c *compiler) compileCondition(tbl *lua.LTable) types.Condition {
	condType := getString(tbl, "type")

	switch condType {
	case "not":
		if innerTbl := getTable(tbl, "inner"); innerTbl != nil {
			inner := c.compileCondition(innerTbl)
			return types.Condition{Type: "not", Negate: true, Inner: &inner}
		}
	case "any":
		return types.Condition{Type: "any", Any: c.compileConditions(getTable(tbl, "conditions"))}
	}

	cond := types.Condition{Type: condType, Params: params(tbl)}
	if condType == "state_is" || condType == "state_not" {
		c.resolveEncounterState(cond.Params, condType)
	}
	return cond
}

func (c *compiler) compileEffects(tbl *lua.LTable) []types.Effect {
	var effects []types.Effect
	for _, t := range arrayTables(tbl) {
		effects = append(effects, c.compileEffect(t))
	}
	return effects
}

func (c *compiler) compileEffect(tbl *lua.LTable) types.Effect {
	eff := types.Effect{Type: getString(tbl, "type"), Params: params(tbl)}
	switch eff.Type {
	case "set_state":
		c.resolveEncounterState(eff.Params, eff.Type)
	case "prop_state":
		if name, ok := eff.Params["state"].(string); ok {
			if st, ok := gates.ParseGoState(name); ok {
				eff.Params["state"] = int(st)
			} else {
				c.problemf("prop_state has unknown state %q", name)
			}
		}
	}
	return eff
}

// resolveEncounterState rewrites encounter and state names in params to
// their numeric values.
func (c *compiler) resolveEncounterState(p map[string]any, where string) {
	if name, ok := p["encounter"].(string); ok {
		if id, ok := c.encIDs[name]; ok {
			p["encounter"] = int(id)
		} else {
			c.problemf("%s references undefined encounter %q", where, name)
		}
	}
	if name, ok := p["state"].(string); ok {
		if st, ok := encounter.ParseState(name); ok {
			p["state"] = int(st)
		} else {
			c.problemf("%s has unknown state %q", where, name)
		}
	}
}

// params copies every non-type field of tbl into a Go map.
func params(tbl *lua.LTable) map[string]any {
	p := map[string]any{}
	tbl.ForEach(func(k, v lua.LValue) {
		if ks, ok := k.(lua.LString); ok && ks != "type" {
			p[string(ks)] = toGoValue(v)
		}
	})
	return p
}
