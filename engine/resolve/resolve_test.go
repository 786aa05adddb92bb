package resolve

import (
	"errors"
	"testing"

	"github.com/nathoo/instancecore/engine/state"
	"github.com/nathoo/instancecore/types"
)

func testDefs() *state.Defs {
	return &state.Defs{
		Encounters: []types.EncounterDef{
			{ID: 0, Name: "gatekeeper", DisplayName: "Bone Gatekeeper"},
			{ID: 1, Name: "warden", DisplayName: "Frost Warden"},
			{ID: 2, Name: "frost_queen", DisplayName: "Frost Queen"},
		},
		Creatures: map[uint32]types.CreatureDef{
			36612: {Entry: 36612, Role: "gatekeeper"},
			37813: {Entry: 37813, Group: "wyrms"},
			37814: {Entry: 37814, Group: "wyrms"},
		},
		Props: map[uint32]types.PropDef{
			201910: {Entry: 201910, Role: "ice_wall"},
			201911: {Entry: 201911, Role: "ice_wall_2"},
		},
	}
}

func TestEncounter_ByID(t *testing.T) {
	id, err := Encounter(testDefs(), "2")
	if err != nil || id != 2 {
		t.Errorf("expected 2, got %d (err=%v)", id, err)
	}
	if _, err := Encounter(testDefs(), "9"); err == nil {
		t.Error("expected out-of-range id to fail")
	}
}

func TestEncounter_ByName(t *testing.T) {
	id, err := Encounter(testDefs(), "warden")
	if err != nil || id != 1 {
		t.Errorf("expected warden=1, got %d (err=%v)", id, err)
	}
}

func TestEncounter_SpaceForUnderscore(t *testing.T) {
	id, err := Encounter(testDefs(), "frost queen")
	if err != nil || id != 2 {
		t.Errorf("expected frost_queen=2, got %d (err=%v)", id, err)
	}
}

func TestEncounter_DisplayWord(t *testing.T) {
	id, err := Encounter(testDefs(), "Bone")
	if err != nil || id != 0 {
		t.Errorf("expected gatekeeper=0, got %d (err=%v)", id, err)
	}
}

func TestEncounter_Ambiguous(t *testing.T) {
	_, err := Encounter(testDefs(), "frost")
	var amb *AmbiguityError
	if !errors.As(err, &amb) {
		t.Fatalf("expected AmbiguityError, got %v", err)
	}
	if len(amb.Candidates) != 2 {
		t.Errorf("expected 2 candidates, got %v", amb.Candidates)
	}
}

func TestEncounter_NotFound(t *testing.T) {
	_, err := Encounter(testDefs(), "dragon")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nf.Error() != `no encounter named "dragon"` {
		t.Errorf("unexpected message %q", nf.Error())
	}
}

func TestState(t *testing.T) {
	cases := map[string]types.EncounterState{
		"done":        types.Done,
		"DONE":        types.Done,
		"in_progress": types.InProgress,
		"wipe":        types.Fail,
		"0":           types.NotStarted,
		"4":           types.Special,
	}
	for in, want := range cases {
		got, err := State(in)
		if err != nil || got != want {
			t.Errorf("%q: expected %d, got %d (err=%v)", in, want, got, err)
		}
	}
	if _, err := State("7"); err == nil {
		t.Error("expected out-of-range code to fail")
	}
}

func TestRole(t *testing.T) {
	defs := testDefs()
	if r, err := Role(defs, "gatekeeper"); err != nil || r != "gatekeeper" {
		t.Errorf("expected gatekeeper, got %q (err=%v)", r, err)
	}
	if r, err := Role(defs, "ice wall 2"); err != nil || r != "ice_wall_2" {
		t.Errorf("expected ice_wall_2, got %q (err=%v)", r, err)
	}
	if r, err := Role(defs, "gate"); err != nil || r != "gatekeeper" {
		t.Errorf("expected prefix match gatekeeper, got %q (err=%v)", r, err)
	}
	if _, err := Role(defs, "ice"); err == nil {
		t.Error("expected ambiguity for ice")
	}
	if _, err := Role(defs, "nobody"); err == nil {
		t.Error("expected not found")
	}
}

func TestCreatureEntry(t *testing.T) {
	defs := testDefs()
	if e, err := CreatureEntry(defs, "36612"); err != nil || e != 36612 {
		t.Errorf("expected numeric entry, got %d (err=%v)", e, err)
	}
	if e, err := CreatureEntry(defs, "gatekeeper"); err != nil || e != 36612 {
		t.Errorf("expected role entry, got %d (err=%v)", e, err)
	}
	_, err := CreatureEntry(defs, "wyrms")
	var amb *AmbiguityError
	if !errors.As(err, &amb) || amb.Candidates[0] != "37813" {
		t.Errorf("expected sorted ambiguity, got %v", err)
	}
}

func TestPropEntry(t *testing.T) {
	defs := testDefs()
	if e, err := PropEntry(defs, "ice_wall"); err != nil || e != 201910 {
		t.Errorf("expected 201910, got %d (err=%v)", e, err)
	}
	if _, err := PropEntry(defs, "gatekeeper"); err == nil {
		t.Error("expected creature role not to resolve as prop")
	}
}
