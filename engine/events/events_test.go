package events

import (
	"testing"

	"github.com/nathoo/instancecore/engine/state"
	"github.com/nathoo/instancecore/types"
)

type facts struct {
	states   map[types.EncounterID]types.EncounterState
	counters map[string]int
}

func (f *facts) State(id types.EncounterID) types.EncounterState { return f.states[id] }
func (f *facts) Counter(name string) int { return f.counters[name] }
func (f *facts) Affiliation() types.Affiliation { return "alliance" }
func (f *facts) RaidSize() int { return 10 }
func (f *facts) GroupSize(string) int { return 0 }
func (f *facts) RoleBound(string) bool { return false }

func newFacts() *facts {
	return &facts{
		states:   map[types.EncounterID]types.EncounterState{},
		counters: map[string]int{},
	}
}

func testDefs() *state.Defs {
	return &state.Defs{
		Encounters: []types.EncounterDef{{ID: 0, Name: "gatekeeper"}},
		Handlers: []types.EventHandler{
			{
				Key: state.StateKey(0, types.Done),
				Effects: []types.Effect{
					{Type: "say", Params: map[string]any{"text": "The gate groans open."}},
				},
			},
			{
				Key: state.EventKey(24341),
				Conditions: []types.Condition{
					{Type: "counter_gt", Params: map[string]any{"counter": "quakes", "value": 0}},
				},
				Effects: []types.Effect{
					{Type: "schedule", Params: map[string]any{"timer": "shatter", "delay_ms": 5000}},
				},
			},
			{
				Key: state.StateKey(0, types.Done),
				Effects: []types.Effect{
					{Type: "inc_counter", Params: map[string]any{"counter": "kills", "amount": 1}},
				},
			},
		},
		Timers: []types.TimerDef{
			{Name: "shatter", Handler: types.EventHandler{
				Effects: []types.Effect{{Type: "prop_state", Params: map[string]any{"role": "platform", "state": 2}}},
			}},
			{Name: "guarded", Handler: types.EventHandler{
				Conditions: []types.Condition{{Type: "counter_is", Params: map[string]any{"counter": "armed", "value": 1}}},
				Effects:    []types.Effect{{Type: "say"}},
			}},
		},
	}
}

func TestDispatch_MatchesKey(t *testing.T) {
	effs := Dispatch([]types.Event{{Type: state.StateKey(0, types.Done)}}, testDefs(), newFacts())
	if len(effs) != 2 {
		t.Fatalf("expected 2 effects from 2 matching handlers, got %d", len(effs))
	}
	if effs[0].Type != "say" {
		t.Errorf("expected say effect, got %q", effs[0].Type)
	}
	if effs[1].Type != "inc_counter" {
		t.Errorf("expected inc_counter effect, got %q", effs[1].Type)
	}
}

func TestDispatch_SkipsNonMatchingKey(t *testing.T) {
	effs := Dispatch([]types.Event{{Type: state.StateKey(0, types.InProgress)}}, testDefs(), newFacts())
	if len(effs) != 0 {
		t.Fatalf("expected 0 effects for non-matching key, got %d", len(effs))
	}
}

func TestDispatch_ConditionFails_Skipped(t *testing.T) {
	effs := Dispatch([]types.Event{{Type: state.EventKey(24341)}}, testDefs(), newFacts())
	if len(effs) != 0 {
		t.Fatalf("expected 0 effects when condition fails, got %d", len(effs))
	}
}

func TestDispatch_ConditionPasses(t *testing.T) {
	f := newFacts()
	f.counters["quakes"] = 1
	effs := Dispatch([]types.Event{{Type: state.EventKey(24341)}}, testDefs(), f)
	if len(effs) != 1 || effs[0].Type != "schedule" {
		t.Fatalf("expected schedule effect, got %v", effs)
	}
}

func TestDispatch_NoHandlers(t *testing.T) {
	effs := Dispatch([]types.Event{{Type: state.KeyEnter}}, &state.Defs{}, newFacts())
	if len(effs) != 0 {
		t.Fatalf("expected 0 effects with no handlers, got %d", len(effs))
	}
}

func TestDispatch_MultipleEvents(t *testing.T) {
	f := newFacts()
	f.counters["quakes"] = 2
	effs := Dispatch([]types.Event{
		{Type: state.StateKey(0, types.Done)},
		{Type: state.EventKey(24341)},
	}, testDefs(), f)
	if len(effs) != 3 {
		t.Fatalf("expected 3 effects from multiple events, got %d", len(effs))
	}
}

func TestTimer(t *testing.T) {
	defs := testDefs()
	f := newFacts()

	effs, ok := Timer("shatter", defs, f)
	if !ok || len(effs) != 1 || effs[0].Type != "prop_state" {
		t.Errorf("expected shatter effects, got %v (ok=%v)", effs, ok)
	}

	effs, ok = Timer("guarded", defs, f)
	if !ok || len(effs) != 0 {
		t.Errorf("expected guarded timer to be known but inert, got %v (ok=%v)", effs, ok)
	}

	if _, ok := Timer("missing", defs, f); ok {
		t.Error("expected unknown timer to report false")
	}
}
