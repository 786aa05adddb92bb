package loader

import (
	lua "github.com/yuin/gopher-lua"
)

// rawNamed holds a named definition table (encounter, timer).
type rawNamed struct {
	name  string
	table *lua.LTable
}

// rawEntry holds a definition table keyed by a template entry.
type rawEntry struct {
	entry uint32
	table *lua.LTable
}

// rawHandler holds a handler before its trigger is resolved to a key.
type rawHandler struct {
	kind      string // "state", "event", "death", "enter", "leave", "load"
	encounter string
	state     lua.LValue
	id        uint32
	table     *lua.LTable
}

type rawCounter struct {
	name    string
	def     int
	persist bool
}

type rawCriteria struct {
	id      uint32
	counter string
}

// registerAPI registers all Lua constructors and helpers as globals.
func registerAPI(L *lua.LState, coll *collector) {
	registerConstructors(L, coll)
	registerHandlers(L, coll)
	registerBoundaryHelpers(L)
	registerConditionHelpers(L)
	registerEffectHelpers(L)
}

// curried returns a constructor of the form Name(key) { ... }.
func curried(L *lua.LState, key func(L *lua.LState) any, store func(key any, tbl *lua.LTable)) *lua.LFunction {
	return L.NewFunction(func(L *lua.LState) int {
		k := key(L)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			store(k, L.CheckTable(1))
			return 0
		}))
		return 1
	})
}

func checkName(L *lua.LState) any { return L.CheckString(1) }

func checkEntry(L *lua.LState) any { return uint32(L.CheckInt(1)) }

func registerConstructors(L *lua.LState, coll *collector) {
	// Instance { name = "...", header = "...", ... }
	L.SetGlobal("Instance", L.NewFunction(func(L *lua.LState) int {
		coll.instance = L.CheckTable(1)
		return 0
	}))

	// Encounter "name" { display = "...", requires = {...}, boundaries = {...} }
	L.SetGlobal("Encounter", curried(L, checkName, func(k any, tbl *lua.LTable) {
		coll.encounters = append(coll.encounters, rawNamed{name: k.(string), table: tbl})
	}))

	// Door(entry) { role = "...", { encounter = "...", open = "done" }, ... }
	L.SetGlobal("Door", curried(L, checkEntry, func(k any, tbl *lua.LTable) {
		coll.doors = append(coll.doors, rawEntry{entry: k.(uint32), table: tbl})
	}))

	// Creature(entry) { role = "...", group = "..." }
	L.SetGlobal("Creature", curried(L, checkEntry, func(k any, tbl *lua.LTable) {
		coll.creatures = append(coll.creatures, rawEntry{entry: k.(uint32), table: tbl})
	}))

	// Prop(entry) { role = "...", open_when = {...}, closed_as = "...", open_as = "..." }
	L.SetGlobal("Prop", curried(L, checkEntry, func(k any, tbl *lua.LTable) {
		coll.props = append(coll.props, rawEntry{entry: k.(uint32), table: tbl})
	}))

	// Variant(entry) { alliance = 1, horde = 2 } or Variant(entry) { suppressed = true }
	L.SetGlobal("Variant", curried(L, checkEntry, func(k any, tbl *lua.LTable) {
		coll.variants = append(coll.variants, rawEntry{entry: k.(uint32), table: tbl})
	}))

	L.SetGlobal("PropVariant", curried(L, checkEntry, func(k any, tbl *lua.LTable) {
		coll.propVariants = append(coll.propVariants, rawEntry{entry: k.(uint32), table: tbl})
	}))

	// Counter("name", default, { persist = true })
	L.SetGlobal("Counter", L.NewFunction(func(L *lua.LState) int {
		rc := rawCounter{name: L.CheckString(1), def: L.OptInt(2, 0)}
		if opts := L.OptTable(3, nil); opts != nil {
			rc.persist = getBool(opts, "persist", false)
		}
		coll.counters = append(coll.counters, rc)
		return 0
	}))

	// Criteria(id, "counter")
	L.SetGlobal("Criteria", L.NewFunction(func(L *lua.LState) int {
		coll.criteria = append(coll.criteria, rawCriteria{
			id:      uint32(L.CheckInt(1)),
			counter: L.CheckString(2),
		})
		return 0
	}))

	// TimersActiveWhen { condition, ... }
	L.SetGlobal("TimersActiveWhen", L.NewFunction(func(L *lua.LState) int {
		coll.timersActive = L.CheckTable(1)
		return 0
	}))

	// Timer("name", { conditions = {...}, effects = {...} })
	L.SetGlobal("Timer", L.NewFunction(func(L *lua.LState) int {
		coll.timers = append(coll.timers, rawNamed{name: L.CheckString(1), table: L.CheckTable(2)})
		return 0
	}))
}

// registerHandlers registers the On* constructors. Each takes a handler
// table with conditions and effects, or a bare list of effects.
func registerHandlers(L *lua.LState, coll *collector) {
	// OnState("encounter", "done", {...})
	L.SetGlobal("OnState", L.NewFunction(func(L *lua.LState) int {
		coll.handlers = append(coll.handlers, rawHandler{
			kind:      "state",
			encounter: L.CheckString(1),
			state:     L.CheckAny(2),
			table:     L.CheckTable(3),
		})
		return 0
	}))

	// OnEvent(id, {...})
	L.SetGlobal("OnEvent", L.NewFunction(func(L *lua.LState) int {
		coll.handlers = append(coll.handlers, rawHandler{
			kind: "event", id: uint32(L.CheckInt(1)), table: L.CheckTable(2),
		})
		return 0
	}))

	// OnDeath(entry, {...})
	L.SetGlobal("OnDeath", L.NewFunction(func(L *lua.LState) int {
		coll.handlers = append(coll.handlers, rawHandler{
			kind: "death", id: uint32(L.CheckInt(1)), table: L.CheckTable(2),
		})
		return 0
	}))

	for name, kind := range map[string]string{"OnEnter": "enter", "OnLeave": "leave", "OnLoad": "load"} {
		kind := kind
		L.SetGlobal(name, L.NewFunction(func(L *lua.LState) int {
			coll.handlers = append(coll.handlers, rawHandler{kind: kind, table: L.CheckTable(1)})
			return 0
		}))
	}
}

// shape builds a boundary table from positional numeric arguments. A
// trailing true inverts the shape.
func shape(name string, keys ...string) lua.LGFunction {
	return func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("shape", lua.LString(name))
		for i, k := range keys {
			tbl.RawSetString(k, L.CheckNumber(i+1))
		}
		if L.OptBool(len(keys)+1, false) {
			tbl.RawSetString("inverted", lua.LTrue)
		}
		L.Push(tbl)
		return 1
	}
}

func registerBoundaryHelpers(L *lua.LState) {
	L.SetGlobal("Circle", L.NewFunction(shape("circle", "x", "y", "r")))
	L.SetGlobal("Rectangle", L.NewFunction(shape("rectangle", "min_x", "min_y", "max_x", "max_y")))
	L.SetGlobal("Ellipse", L.NewFunction(shape("ellipse", "x", "y", "rx", "ry")))
	L.SetGlobal("Parallelogram", L.NewFunction(shape("parallelogram", "ax", "ay", "bx", "by", "dx", "dy")))
	L.SetGlobal("ZRange", L.NewFunction(shape("zrange", "min_z", "max_z")))
}

// typed returns a fresh table with its type field set.
func typed(L *lua.LState, typ string) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("type", lua.LString(typ))
	return tbl
}

func registerConditionHelpers(L *lua.LState) {
	// StateIs("encounter", "done")
	L.SetGlobal("StateIs", L.NewFunction(func(L *lua.LState) int {
		tbl := typed(L, "state_is")
		tbl.RawSetString("encounter", lua.LString(L.CheckString(1)))
		tbl.RawSetString("state", L.CheckAny(2))
		L.Push(tbl)
		return 1
	}))

	// StateNot("encounter", "done")
	L.SetGlobal("StateNot", L.NewFunction(func(L *lua.LState) int {
		tbl := typed(L, "state_not")
		tbl.RawSetString("encounter", lua.LString(L.CheckString(1)))
		tbl.RawSetString("state", L.CheckAny(2))
		L.Push(tbl)
		return 1
	}))

	for name, typ := range map[string]string{"CounterIs": "counter_is", "CounterGt": "counter_gt", "CounterLt": "counter_lt"} {
		typ := typ
		L.SetGlobal(name, L.NewFunction(func(L *lua.LState) int {
			tbl := typed(L, typ)
			tbl.RawSetString("counter", lua.LString(L.CheckString(1)))
			tbl.RawSetString("value", L.CheckNumber(2))
			L.Push(tbl)
			return 1
		}))
	}

	// AffiliationIs("horde")
	L.SetGlobal("AffiliationIs", L.NewFunction(func(L *lua.LState) int {
		tbl := typed(L, "affiliation_is")
		tbl.RawSetString("affiliation", lua.LString(L.CheckString(1)))
		L.Push(tbl)
		return 1
	}))

	// RaidSize(25) holds when at least 25 participants are in the raid.
	L.SetGlobal("RaidSize", L.NewFunction(func(L *lua.LState) int {
		tbl := typed(L, "raid_size")
		tbl.RawSetString("min", L.CheckNumber(1))
		L.Push(tbl)
		return 1
	}))

	// GroupEmpty("group")
	L.SetGlobal("GroupEmpty", L.NewFunction(func(L *lua.LState) int {
		tbl := typed(L, "group_empty")
		tbl.RawSetString("group", lua.LString(L.CheckString(1)))
		L.Push(tbl)
		return 1
	}))

	// RoleBound("role")
	L.SetGlobal("RoleBound", L.NewFunction(func(L *lua.LState) int {
		tbl := typed(L, "role_bound")
		tbl.RawSetString("role", lua.LString(L.CheckString(1)))
		L.Push(tbl)
		return 1
	}))

	// Not(condition)
	L.SetGlobal("Not", L.NewFunction(func(L *lua.LState) int {
		tbl := typed(L, "not")
		tbl.RawSetString("inner", L.CheckTable(1))
		L.Push(tbl)
		return 1
	}))

	// Any(condition, condition, ...)
	L.SetGlobal("Any", L.NewFunction(func(L *lua.LState) int {
		tbl := typed(L, "any")
		alts := L.NewTable()
		for i := 1; i <= L.GetTop(); i++ {
			alts.Append(L.CheckTable(i))
		}
		tbl.RawSetString("conditions", alts)
		L.Push(tbl)
		return 1
	}))
}

func registerEffectHelpers(L *lua.LState) {
	// Say("text")
	L.SetGlobal("Say", L.NewFunction(func(L *lua.LState) int {
		tbl := typed(L, "say")
		tbl.RawSetString("text", lua.LString(L.CheckString(1)))
		L.Push(tbl)
		return 1
	}))

	// SetState("encounter", "done")
	L.SetGlobal("SetState", L.NewFunction(func(L *lua.LState) int {
		tbl := typed(L, "set_state")
		tbl.RawSetString("encounter", lua.LString(L.CheckString(1)))
		tbl.RawSetString("state", L.CheckAny(2))
		L.Push(tbl)
		return 1
	}))

	// SetCounter("counter", value)
	L.SetGlobal("SetCounter", L.NewFunction(func(L *lua.LState) int {
		tbl := typed(L, "set_counter")
		tbl.RawSetString("counter", lua.LString(L.CheckString(1)))
		tbl.RawSetString("value", L.CheckNumber(2))
		L.Push(tbl)
		return 1
	}))

	// IncCounter("counter", amount); amount defaults to 1.
	L.SetGlobal("IncCounter", L.NewFunction(func(L *lua.LState) int {
		tbl := typed(L, "inc_counter")
		tbl.RawSetString("counter", lua.LString(L.CheckString(1)))
		tbl.RawSetString("amount", L.OptNumber(2, 1))
		L.Push(tbl)
		return 1
	}))

	// Schedule("timer", delay_ms, { payload })
	L.SetGlobal("Schedule", L.NewFunction(func(L *lua.LState) int {
		tbl := typed(L, "schedule")
		tbl.RawSetString("timer", lua.LString(L.CheckString(1)))
		tbl.RawSetString("delay_ms", L.CheckNumber(2))
		if p := L.OptTable(3, nil); p != nil {
			tbl.RawSetString("payload", p)
		}
		L.Push(tbl)
		return 1
	}))

	// ScheduleEvery("timer", delay_ms, period_ms, { payload })
	L.SetGlobal("ScheduleEvery", L.NewFunction(func(L *lua.LState) int {
		tbl := typed(L, "schedule_every")
		tbl.RawSetString("timer", lua.LString(L.CheckString(1)))
		tbl.RawSetString("delay_ms", L.CheckNumber(2))
		tbl.RawSetString("period_ms", L.CheckNumber(3))
		if p := L.OptTable(4, nil); p != nil {
			tbl.RawSetString("payload", p)
		}
		L.Push(tbl)
		return 1
	}))

	// Cancel("timer")
	L.SetGlobal("Cancel", L.NewFunction(func(L *lua.LState) int {
		tbl := typed(L, "cancel")
		tbl.RawSetString("timer", lua.LString(L.CheckString(1)))
		L.Push(tbl)
		return 1
	}))

	// PropState("role", "destroyed")
	L.SetGlobal("PropState", L.NewFunction(func(L *lua.LState) int {
		tbl := typed(L, "prop_state")
		tbl.RawSetString("role", lua.LString(L.CheckString(1)))
		tbl.RawSetString("state", L.CheckAny(2))
		L.Push(tbl)
		return 1
	}))

	// RoleAction("role", action)
	L.SetGlobal("RoleAction", L.NewFunction(func(L *lua.LState) int {
		tbl := typed(L, "role_action")
		tbl.RawSetString("role", lua.LString(L.CheckString(1)))
		tbl.RawSetString("action", L.CheckNumber(2))
		L.Push(tbl)
		return 1
	}))

	// GroupAction("group", action)
	L.SetGlobal("GroupAction", L.NewFunction(func(L *lua.LState) int {
		tbl := typed(L, "group_action")
		tbl.RawSetString("group", lua.LString(L.CheckString(1)))
		tbl.RawSetString("action", L.CheckNumber(2))
		L.Push(tbl)
		return 1
	}))

	// SpawnGroup(id, active); active defaults to true.
	L.SetGlobal("SpawnGroup", L.NewFunction(func(L *lua.LState) int {
		tbl := typed(L, "spawn_group")
		tbl.RawSetString("group", L.CheckNumber(1))
		tbl.RawSetString("active", lua.LBool(L.OptBool(2, true)))
		L.Push(tbl)
		return 1
	}))

	// Summon(entry, { x =, y =, z =, o =, lifetime_ms =, unless_bound = })
	L.SetGlobal("Summon", L.NewFunction(func(L *lua.LState) int {
		tbl := typed(L, "summon")
		tbl.RawSetString("entry", L.CheckNumber(1))
		if opts := L.OptTable(2, nil); opts != nil {
			opts.ForEach(func(k, v lua.LValue) {
				if ks, ok := k.(lua.LString); ok && ks != "type" && ks != "entry" {
					tbl.RawSetString(string(ks), v)
				}
			})
		}
		L.Push(tbl)
		return 1
	}))

	// DespawnSource()
	L.SetGlobal("DespawnSource", L.NewFunction(func(L *lua.LState) int {
		L.Push(typed(L, "despawn_source"))
		return 1
	}))

	// Emit("event", { data })
	L.SetGlobal("Emit", L.NewFunction(func(L *lua.LState) int {
		tbl := typed(L, "emit")
		tbl.RawSetString("event", lua.LString(L.CheckString(1)))
		if data := L.OptTable(2, nil); data != nil {
			data.ForEach(func(k, v lua.LValue) {
				if ks, ok := k.(lua.LString); ok && ks != "type" && ks != "event" {
					tbl.RawSetString(string(ks), v)
				}
			})
		}
		L.Push(tbl)
		return 1
	}))

	// Stop()
	L.SetGlobal("Stop", L.NewFunction(func(L *lua.LState) int {
		L.Push(typed(L, "stop"))
		return 1
	}))
}
