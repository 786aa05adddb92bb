// Package effects implements side-effect dispatch via the Apply function.
// Every effect type is one atomic operation against the controller. No logic
// in effects.
package effects

import (
	"time"

	"github.com/nathoo/instancecore/types"
)

// Target is the controller surface effects act on.
type Target interface {
	SetState(types.EncounterID, types.EncounterState) bool
	GetGenericCounter(name string) int
	SetGenericCounter(name string, value int)
	Schedule(timer string, delay time.Duration, payload map[string]any)
	ScheduleEvery(timer string, delay, period time.Duration, payload map[string]any)
	Cancel(timer string) int
	SetPropState(role string, st types.GoState) bool
	RoleAction(role string, action int32) bool
	GroupAction(group string, action int32) int
	SetSpawnGroup(group uint32, active bool)
	Summon(entry uint32, pos types.Position, lifetime time.Duration) bool
	RoleBound(role string) bool
	Despawn(guid types.GUID) bool
}

// Context carries what triggered the handler being applied.
type Context struct {
	Trigger string     // handler key
	Source  types.GUID // entity that raised a world event or died, 0 if none
	Invoker types.GUID
}

// Apply applies a list of effects against the target. Returns events
// emitted and announcement text collected.
func Apply(t Target, effects []types.Effect, ctx Context) ([]types.Event, []string) {
	var events []types.Event
	var output []string

	for _, eff := range effects {
		switch eff.Type {
		case "say":
			text, _ := eff.Params["text"].(string)
			output = append(output, text)

		case "set_state":
			enc := types.EncounterID(toInt(eff.Params["encounter"]))
			st := types.EncounterState(toInt(eff.Params["state"]))
			t.SetState(enc, st)

		case "set_counter":
			counter, _ := eff.Params["counter"].(string)
			value := toInt(eff.Params["value"])
			t.SetGenericCounter(counter, value)
			events = append(events, types.Event{
				Type: "counter_changed",
				Data: map[string]any{"counter": counter, "value": value},
			})

		case "inc_counter":
			counter, _ := eff.Params["counter"].(string)
			amount := toInt(eff.Params["amount"])
			value := t.GetGenericCounter(counter) + amount
			t.SetGenericCounter(counter, value)
			events = append(events, types.Event{
				Type: "counter_changed",
				Data: map[string]any{"counter": counter, "value": value},
			})

		case "schedule":
			timer, _ := eff.Params["timer"].(string)
			t.Schedule(timer, millis(eff.Params["delay_ms"]), payload(eff, ctx))

		case "schedule_every":
			timer, _ := eff.Params["timer"].(string)
			t.ScheduleEvery(timer, millis(eff.Params["delay_ms"]), millis(eff.Params["period_ms"]), payload(eff, ctx))

		case "cancel":
			timer, _ := eff.Params["timer"].(string)
			t.Cancel(timer)

		case "prop_state":
			role, _ := eff.Params["role"].(string)
			st := types.GoState(toInt(eff.Params["state"]))
			t.SetPropState(role, st)

		case "role_action":
			role, _ := eff.Params["role"].(string)
			t.RoleAction(role, int32(toInt(eff.Params["action"])))

		case "group_action":
			group, _ := eff.Params["group"].(string)
			t.GroupAction(group, int32(toInt(eff.Params["action"])))

		case "spawn_group":
			group := uint32(toInt(eff.Params["group"]))
			active, ok := eff.Params["active"].(bool)
			if !ok {
				active = true
			}
			t.SetSpawnGroup(group, active)

		case "summon":
			unless, _ := eff.Params["unless_bound"].(string)
			if unless != "" && t.RoleBound(unless) {
				continue
			}
			entry := uint32(toInt(eff.Params["entry"]))
			pos := types.Position{
				X: toFloat(eff.Params["x"]),
				Y: toFloat(eff.Params["y"]),
				Z: toFloat(eff.Params["z"]),
				O: toFloat(eff.Params["o"]),
			}
			if t.Summon(entry, pos, millis(eff.Params["lifetime_ms"])) {
				events = append(events, types.Event{
					Type: "summoned",
					Data: map[string]any{"entry": entry},
				})
			}

		case "despawn_source":
			if ctx.Source != 0 {
				t.Despawn(ctx.Source)
			}

		case "emit":
			event, _ := eff.Params["event"].(string)
			data := map[string]any{}
			for k, v := range eff.Params {
				if k != "event" {
					data[k] = v
				}
			}
			events = append(events, types.Event{Type: event, Data: data})

		case "stop":
			return events, output

		default:
			// Unknown effect type — ignore silently.
		}
	}

	return events, output
}

// payload carries the effect's extra params plus the trigger's source so a
// timer handler can act on the entity that scheduled it.
func payload(eff types.Effect, ctx Context) map[string]any {
	p := map[string]any{}
	if data, ok := eff.Params["payload"].(map[string]any); ok {
		for k, v := range data {
			p[k] = v
		}
	}
	if ctx.Source != 0 {
		p["source"] = ctx.Source
	}
	return p
}

func millis(v any) time.Duration {
	return time.Duration(toInt(v)) * time.Millisecond
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	case int64:
		return int(n)
	case uint32:
		return int(n)
	case types.EncounterID:
		return int(n)
	case types.EncounterState:
		return int(n)
	case types.GoState:
		return int(n)
	default:
		return 0
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
