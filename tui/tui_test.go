package tui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/nathoo/instancecore/console"
	"github.com/nathoo/instancecore/engine"
	"github.com/nathoo/instancecore/engine/state"
	"github.com/nathoo/instancecore/types"
)

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		line string
		want lineKind
	}{
		{"  0 gatekeeper     done", kindEncounterRow},
		{"  1 warden         not_started  (blocked by gatekeeper)", kindEncounterRow},
		{"gatekeeper: in_progress -> done", kindTransition},
		{"[Progress saved to test.]", kindSystem},
		{"[trace] Events: 2", kindTrace},
		{"rejected: warden done -> fail", kindError},
		{`no encounter named "nowhere"`, kindError},
		{"usage: set <encounter> <state>", kindError},
		{`counter value "x" is not a number`, kindError},
		{"The bone gate grinds open.", kindPlain},
		{"  #3 prop 201910 (bone_gate) open", kindPlain},
		{"", kindPlain},
	}
	for _, tt := range tests {
		got := classifyLine(tt.line)
		if got != tt.want {
			t.Errorf("classifyLine(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestStateWord(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"  0 gatekeeper     done", "done"},
		{"  9 sigils         special 3", "special"},
		{"  2 skyship        in_progress", "in_progress"},
		{"nothing to see", ""},
	}
	for _, tt := range tests {
		if got := stateWord(tt.line); got != tt.want {
			t.Errorf("stateWord(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestWordWrap(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  string
	}{
		{"short", 80, "short"},
		{"hello world", 5, "hello\nworld"},
		{"Wind howls through the broken gate of the Frozen Spire.", 30,
			"Wind howls through the broken\ngate of the Frozen Spire."},
		{"", 80, ""},
		{"one", 80, "one"},
		{"a b c d e", 3, "a b\nc d\ne"},
		{"  alpha beta gamma", 12, "  alpha beta\ngamma"},
	}
	for _, tt := range tests {
		got := wordWrap(tt.text, tt.width)
		if got != tt.want {
			t.Errorf("wordWrap(%q, %d) =\n  %q\nwant:\n  %q", tt.text, tt.width, got, tt.want)
		}
	}
}

func TestHistory_PushAndPrev(t *testing.T) {
	h := NewHistory(5)
	h.Push("state")
	h.Push("set gatekeeper done")
	h.Push("attempt warden")

	for _, want := range []string{"attempt warden", "set gatekeeper done", "state", "state"} {
		prev, ok := h.Prev()
		if !ok || prev != want {
			t.Errorf("expected %q, got %q (ok=%v)", want, prev, ok)
		}
	}
}

func TestHistory_Next(t *testing.T) {
	h := NewHistory(5)
	h.Push("state")
	h.Push("tick 500")

	h.Prev() // "tick 500"
	h.Prev() // "state"

	next, ok := h.Next()
	if !ok || next != "tick 500" {
		t.Errorf("expected 'tick 500', got %q (ok=%v)", next, ok)
	}

	_, ok = h.Next()
	if ok {
		t.Error("expected false when past newest entry")
	}
}

func TestHistory_Empty(t *testing.T) {
	h := NewHistory(5)
	if _, ok := h.Prev(); ok {
		t.Error("expected false on empty history")
	}
	if _, ok := h.Next(); ok {
		t.Error("expected false on empty history")
	}
}

func TestHistory_MaxSize(t *testing.T) {
	h := NewHistory(2)
	h.Push("a")
	h.Push("b")
	h.Push("c") // "a" evicted

	if h.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", h.Len())
	}
	prev, _ := h.Prev()
	if prev != "c" {
		t.Errorf("expected 'c', got %q", prev)
	}
	prev, _ = h.Prev()
	if prev != "b" {
		t.Errorf("expected 'b', got %q", prev)
	}
	prev, _ = h.Prev()
	if prev != "b" {
		t.Errorf("expected 'b' at boundary, got %q", prev)
	}
}

func TestHistory_NoDuplicates(t *testing.T) {
	h := NewHistory(5)
	h.Push("state")
	h.Push("state")
	h.Push("state")

	if h.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", h.Len())
	}
}

func TestHistory_ResetCursor(t *testing.T) {
	h := NewHistory(5)
	h.Push("state")
	h.Push("blob")

	h.Prev() // "blob"
	h.ResetCursor()

	prev, ok := h.Prev()
	if !ok || prev != "blob" {
		t.Errorf("expected 'blob' after reset, got %q", prev)
	}
}

func TestHistory_WriteScript(t *testing.T) {
	h := NewHistory(10)
	for _, cmd := range []string{"set gatekeeper done", "/save x", "g", "tick 500", "again"} {
		h.Push(cmd)
	}

	var buf bytes.Buffer
	n, err := h.WriteScript(&buf, "Test Spire")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 commands written, got %d", n)
	}
	want := "# Test Spire session\nset gatekeeper done\ntick 500\n"
	if buf.String() != want {
		t.Errorf("script =\n%q\nwant\n%q", buf.String(), want)
	}
}

// testDefs returns minimal instance definitions for TUI testing.
func testDefs() *state.Defs {
	return &state.Defs{
		Instance: types.InstanceDef{
			Name:    "Test Spire",
			Header:  "TS",
			Version: "1.0",
			Intro:   "Welcome to the test.",
		},
		Encounters: []types.EncounterDef{
			{ID: 0, Name: "gatekeeper", Kind: types.KindFourWay},
			{ID: 1, Name: "warden", Kind: types.KindFourWay, Requires: []types.EncounterID{0}},
			{ID: 2, Name: "sigils", Kind: types.KindSpecial},
		},
		Creatures: map[uint32]types.CreatureDef{},
		Props:     map[uint32]types.PropDef{},
		Criteria:  map[uint32]string{},
		Handlers: []types.EventHandler{{
			Key: state.EventKey(1),
			Effects: []types.Effect{{Type: "schedule", Params: map[string]any{
				"timer": "ping", "delay_ms": 100,
			}}},
		}},
		Timers: []types.TimerDef{{
			Name: "ping",
			Handler: types.EventHandler{
				Key:     state.TimerKey("ping"),
				Effects: []types.Effect{{Type: "say", Params: map[string]any{"text": "ping!"}}},
			},
		}},
	}
}

func newModel(t *testing.T, opts Options) Model {
	t.Helper()
	sess, err := console.New(testDefs())
	if err != nil {
		t.Fatalf("console.New: %v", err)
	}
	if opts.SaveDir == "" {
		opts.SaveDir = t.TempDir()
	}
	return New(sess, opts)
}

func containsLine(m Model, text string) bool {
	for _, rl := range m.rawLines {
		if strings.Contains(rl.text, text) {
			return true
		}
	}
	return false
}

func TestProgress(t *testing.T) {
	snap := engine.Snapshot{Encounters: []engine.EncounterStatus{
		{Name: "a", State: types.Done},
		{Name: "b", State: types.InProgress},
		{Name: "c", State: types.NotStarted},
		{Name: "tally", State: types.Special},
	}}
	done, total, active := progress(snap)
	if done != 1 || total != 3 || active != "b" {
		t.Errorf("progress = (%d, %d, %q), want (1, 3, \"b\")", done, total, active)
	}
}

func TestTick_AdvancesClockAndShowsTimers(t *testing.T) {
	m := newModel(t, Options{Tick: 200 * time.Millisecond})
	m.session.Step("event 1")

	next, cmd := m.Update(tickMsg(time.Now()))
	m = next.(Model)
	if cmd == nil {
		t.Error("expected the next tick to be scheduled")
	}
	if got := m.session.Controller.Clock(); got != 200*time.Millisecond {
		t.Errorf("clock = %s, want 200ms", got)
	}
	if !containsLine(m, "ping!") {
		t.Error("expected timer output after tick")
	}
}

func TestTick_Paused(t *testing.T) {
	m := newModel(t, Options{Tick: time.Second})
	m.handleMeta("/pause")

	next, _ := m.Update(tickMsg(time.Now()))
	m = next.(Model)
	if got := m.session.Controller.Clock(); got != 0 {
		t.Errorf("paused clock moved to %s", got)
	}
}

func TestTick_Disabled(t *testing.T) {
	m := newModel(t, Options{})
	if m.scheduleTick() != nil {
		t.Error("expected no tick when the interval is zero")
	}
}

func TestHandleMeta_Quit(t *testing.T) {
	m := newModel(t, Options{})

	if _, quit := m.handleMeta("/quit"); !quit {
		t.Error("expected quit=true for /quit")
	}
	if _, quit := m.handleMeta("/exit"); !quit {
		t.Error("expected quit=true for /exit")
	}
}

func TestHandleMeta_SaveAndLoad(t *testing.T) {
	m := newModel(t, Options{})
	m.session.Step("set gatekeeper done")

	output, quit := m.handleMeta("/save test")
	if quit {
		t.Error("save should not quit")
	}
	if len(output) == 0 || !strings.Contains(output[0], "Progress saved") {
		t.Errorf("expected save confirmation, got %v", output)
	}

	m.session.Step("set gatekeeper not_started")
	output, _ = m.handleMeta("/load test")
	if len(output) == 0 || !strings.Contains(output[0], "Progress loaded") {
		t.Errorf("expected load confirmation, got %v", output)
	}
	if got := m.session.Controller.GetState(0); got != types.Done {
		t.Errorf("expected gatekeeper done after load, got %d", got)
	}
}

func TestHandleMeta_LoadNonexistent(t *testing.T) {
	m := newModel(t, Options{})

	output, quit := m.handleMeta("/load nonexistent")
	if quit {
		t.Error("load should not quit")
	}
	if len(output) == 0 || !strings.Contains(output[0], "Load failed") {
		t.Errorf("expected load failure, got %v", output)
	}
}

func TestHandleMeta_Export(t *testing.T) {
	m := newModel(t, Options{})
	m.history.Push("set gatekeeper done")

	output, _ := m.handleMeta("/export run")
	if len(output) == 0 || !strings.Contains(output[0], "Exported 1 command(s)") {
		t.Errorf("expected export confirmation, got %v", output)
	}
}

func TestHandleMeta_Help(t *testing.T) {
	m := newModel(t, Options{})

	output, quit := m.handleMeta("/help")
	if quit {
		t.Error("help should not quit")
	}

	joined := strings.Join(output, "\n")
	for _, expected := range []string{"/save", "/load", "/pause", "set <encounter> <state>", "spawnprop"} {
		if !strings.Contains(joined, expected) {
			t.Errorf("expected %q in help output", expected)
		}
	}
}

func TestHandleMeta_Trace(t *testing.T) {
	m := newModel(t, Options{})

	output, _ := m.handleMeta("/trace")
	if !m.trace {
		t.Error("expected trace to be enabled")
	}
	if len(output) == 0 || !strings.Contains(output[0], "enabled") {
		t.Errorf("expected enabled message, got %v", output)
	}

	output, _ = m.handleMeta("/trace")
	if m.trace {
		t.Error("expected trace to be disabled")
	}
	if len(output) == 0 || !strings.Contains(output[0], "disabled") {
		t.Errorf("expected disabled message, got %v", output)
	}
}

func TestHandleMeta_Unknown(t *testing.T) {
	m := newModel(t, Options{})

	output, quit := m.handleMeta("/bogus")
	if quit {
		t.Error("unknown command should not quit")
	}
	if len(output) == 0 || !strings.Contains(output[0], "Unknown command") {
		t.Errorf("expected unknown command message, got %v", output)
	}
}

func TestHandleMeta_State(t *testing.T) {
	m := newModel(t, Options{})

	output, quit := m.handleMeta("/state")
	if quit {
		t.Error("state should not quit")
	}

	joined := strings.Join(output, "\n")
	if !strings.Contains(joined, "Blob: TS2 004 sigils=0") {
		t.Errorf("expected progress blob in state output, got:\n%s", joined)
	}
	if !strings.Contains(joined, "Session:") {
		t.Error("expected session in state output")
	}
}
