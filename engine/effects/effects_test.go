package effects

import (
	"fmt"
	"testing"
	"time"

	"github.com/nathoo/instancecore/types"
)

// recorder is a Target that logs every call.
type recorder struct {
	calls    []string
	counters map[string]int
	bound    map[string]bool
}

func newRecorder() *recorder {
	return &recorder{counters: map[string]int{}, bound: map[string]bool{}}
}

func (r *recorder) log(format string, args ...any) { r.calls = append(r.calls, fmt.Sprintf(format, args...)) }

func (r *recorder) SetState(e types.EncounterID, s types.EncounterState) bool {
	r.log("set_state %d %d", e, s)
	return true
}
func (r *recorder) GetGenericCounter(name string) int { return r.counters[name] }
func (r *recorder) SetGenericCounter(name string, v int) {
	r.counters[name] = v
	r.log("set_counter %s %d", name, v)
}
func (r *recorder) Schedule(timer string, d time.Duration, p map[string]any) {
	r.log("schedule %s %s %v", timer, d, p["source"])
}
func (r *recorder) ScheduleEvery(timer string, d, period time.Duration, p map[string]any) {
	r.log("schedule_every %s %s %s", timer, d, period)
}
func (r *recorder) Cancel(timer string) int {
	r.log("cancel %s", timer)
	return 1
}
func (r *recorder) SetPropState(role string, st types.GoState) bool {
	r.log("prop_state %s %d", role, st)
	return true
}
func (r *recorder) RoleAction(role string, action int32) bool {
	r.log("role_action %s %d", role, action)
	return true
}
func (r *recorder) GroupAction(group string, action int32) int {
	r.log("group_action %s %d", group, action)
	return 2
}
func (r *recorder) SetSpawnGroup(group uint32, active bool) {
	r.log("spawn_group %d %v", group, active)
}
func (r *recorder) Summon(entry uint32, pos types.Position, lifetime time.Duration) bool {
	r.log("summon %d %.0f,%.0f,%.0f %s", entry, pos.X, pos.Y, pos.Z, lifetime)
	return true
}
func (r *recorder) RoleBound(role string) bool { return r.bound[role] }
func (r *recorder) Despawn(guid types.GUID) bool {
	r.log("despawn %d", guid)
	return true
}

func expectCalls(t *testing.T, r *recorder, want ...string) {
	t.Helper()
	if len(r.calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, r.calls)
	}
	for i := range want {
		if r.calls[i] != want[i] {
			t.Errorf("call %d: expected %q, got %q", i, want[i], r.calls[i])
		}
	}
}

func TestApply_Say(t *testing.T) {
	r := newRecorder()
	_, output := Apply(r, []types.Effect{
		{Type: "say", Params: map[string]any{"text": "The spire trembles."}},
	}, Context{})
	if len(output) != 1 || output[0] != "The spire trembles." {
		t.Errorf("expected one announcement, got %v", output)
	}
}

func TestApply_SetState(t *testing.T) {
	r := newRecorder()
	Apply(r, []types.Effect{
		{Type: "set_state", Params: map[string]any{"encounter": float64(2), "state": float64(types.Done)}},
	}, Context{})
	expectCalls(t, r, "set_state 2 3")
}

func TestApply_Counters(t *testing.T) {
	r := newRecorder()
	r.counters["attempts"] = 50
	events, _ := Apply(r, []types.Effect{
		{Type: "inc_counter", Params: map[string]any{"counter": "attempts", "amount": -1}},
		{Type: "set_counter", Params: map[string]any{"counter": "jets", "value": 1}},
	}, Context{})

	if r.counters["attempts"] != 49 {
		t.Errorf("expected attempts=49, got %d", r.counters["attempts"])
	}
	if r.counters["jets"] != 1 {
		t.Errorf("expected jets=1, got %d", r.counters["jets"])
	}
	if len(events) != 2 || events[0].Type != "counter_changed" || events[0].Data["value"] != 49 {
		t.Errorf("expected counter_changed events, got %v", events)
	}
}

func TestApply_ScheduleCarriesSource(t *testing.T) {
	r := newRecorder()
	Apply(r, []types.Effect{
		{Type: "schedule", Params: map[string]any{"timer": "quake", "delay_ms": float64(5000)}},
		{Type: "schedule_every", Params: map[string]any{"timer": "pulse", "delay_ms": 1000, "period_ms": 2000}},
		{Type: "cancel", Params: map[string]any{"timer": "quake"}},
	}, Context{Source: 77})
	expectCalls(t, r, "schedule quake 5s 77", "schedule_every pulse 1s 2s", "cancel quake")
}

func TestApply_WorldCalls(t *testing.T) {
	r := newRecorder()
	Apply(r, []types.Effect{
		{Type: "prop_state", Params: map[string]any{"role": "platform", "state": int(types.GoDestroyed)}},
		{Type: "role_action", Params: map[string]any{"role": "gunship", "action": 3}},
		{Type: "group_action", Params: map[string]any{"group": "adds", "action": 1}},
		{Type: "spawn_group", Params: map[string]any{"group": 201}},
		{Type: "spawn_group", Params: map[string]any{"group": 202, "active": false}},
	}, Context{})
	expectCalls(t, r,
		"prop_state platform 2",
		"role_action gunship 3",
		"group_action adds 1",
		"spawn_group 201 true",
		"spawn_group 202 false",
	)
}

func TestApply_SummonUnlessBound(t *testing.T) {
	r := newRecorder()
	summon := types.Effect{Type: "summon", Params: map[string]any{
		"entry": 500, "x": 10.0, "y": 20.0, "z": 30.0, "unless_bound": "sister",
	}}

	events, _ := Apply(r, []types.Effect{summon}, Context{})
	expectCalls(t, r, "summon 500 10,20,30 0s")
	if len(events) != 1 || events[0].Type != "summoned" {
		t.Errorf("expected summoned event, got %v", events)
	}

	r = newRecorder()
	r.bound["sister"] = true
	events, _ = Apply(r, []types.Effect{summon}, Context{})
	if len(r.calls) != 0 || len(events) != 0 {
		t.Errorf("expected summon skipped while role bound, got %v", r.calls)
	}
}

func TestApply_DespawnSource(t *testing.T) {
	r := newRecorder()
	Apply(r, []types.Effect{{Type: "despawn_source"}}, Context{Source: 12})
	expectCalls(t, r, "despawn 12")

	r = newRecorder()
	Apply(r, []types.Effect{{Type: "despawn_source"}}, Context{})
	expectCalls(t, r)
}

func TestApply_Emit(t *testing.T) {
	r := newRecorder()
	events, _ := Apply(r, []types.Effect{
		{Type: "emit", Params: map[string]any{"event": "platform_shattered", "ring": 2}},
	}, Context{})
	if len(events) != 1 || events[0].Type != "platform_shattered" || events[0].Data["ring"] != 2 {
		t.Errorf("unexpected events %v", events)
	}
}

func TestApply_StopHaltsProcessing(t *testing.T) {
	r := newRecorder()
	Apply(r, []types.Effect{
		{Type: "set_counter", Params: map[string]any{"counter": "a", "value": 1}},
		{Type: "stop"},
		{Type: "set_counter", Params: map[string]any{"counter": "b", "value": 1}},
	}, Context{})
	if _, ok := r.counters["b"]; ok {
		t.Error("expected effects after stop to be skipped")
	}
}

func TestApply_UnknownIgnored(t *testing.T) {
	r := newRecorder()
	events, output := Apply(r, []types.Effect{{Type: "cast_spell"}}, Context{})
	if len(events) != 0 || len(output) != 0 || len(r.calls) != 0 {
		t.Error("expected unknown effect to be ignored")
	}
}
