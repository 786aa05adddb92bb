package encounter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/instancecore/types"
)

func testDefs() []types.EncounterDef {
	return []types.EncounterDef{
		{ID: 0, Name: "marrowgar", Kind: types.KindFourWay},
		{ID: 1, Name: "deathwhisper", Kind: types.KindFourWay},
		{ID: 2, Name: "gunship", Kind: types.KindFourWay},
		{ID: 3, Name: "intro", Kind: types.KindSpecial},
	}
}

func TestNewMachine_InitialStates(t *testing.T) {
	m := NewMachine(testDefs())
	assert.Equal(t, types.NotStarted, m.Get(0))
	assert.Equal(t, types.NotStarted, m.Get(2))
	assert.Equal(t, types.Special, m.Get(3))
	assert.Equal(t, types.NotStarted, m.Get(42), "unknown ids read NotStarted")
}

func TestSet_TransitionTable(t *testing.T) {
	cases := []struct {
		from, to types.EncounterState
		ok       bool
	}{
		{types.NotStarted, types.InProgress, true},
		{types.NotStarted, types.Done, true},
		{types.NotStarted, types.Fail, false},
		{types.InProgress, types.Done, true},
		{types.InProgress, types.Fail, true},
		{types.InProgress, types.NotStarted, true},
		{types.Fail, types.NotStarted, true},
		{types.Fail, types.InProgress, true},
		{types.Fail, types.Done, false},
		{types.Done, types.NotStarted, true},
		{types.Done, types.InProgress, false},
		{types.Done, types.Fail, false},
		{types.NotStarted, types.Special, false},
		{types.Done, types.Special, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, Allowed(tc.from, tc.to), "%s -> %s", StateName(tc.from), StateName(tc.to))
	}
}

func TestSet_AcceptedAndChanged(t *testing.T) {
	m := NewMachine(testDefs())

	accepted, changed := m.Set(0, types.InProgress)
	assert.True(t, accepted)
	assert.True(t, changed)

	accepted, changed = m.Set(0, types.InProgress)
	assert.True(t, accepted, "repeating the current state is accepted")
	assert.False(t, changed)

	accepted, changed = m.Set(0, types.Done)
	assert.True(t, accepted)
	assert.True(t, changed)
	assert.Equal(t, types.Done, m.Get(0))
}

func TestSet_RejectsWithoutMutation(t *testing.T) {
	m := NewMachine(testDefs())
	m.Set(1, types.Done)

	accepted, changed := m.Set(1, types.Fail)
	assert.False(t, accepted)
	assert.False(t, changed)
	assert.Equal(t, types.Done, m.Get(1))

	accepted, _ = m.Set(99, types.Done)
	assert.False(t, accepted, "unknown encounter")

	accepted, _ = m.Set(3, types.Done)
	assert.False(t, accepted, "special encounters are counter-valued")
	assert.Equal(t, types.Special, m.Get(3))
}

func TestRestore_SanitizesCodes(t *testing.T) {
	m := NewMachine(testDefs())
	m.Restore([]types.EncounterState{types.Done, types.Special, types.Fail, types.Done})

	assert.Equal(t, types.Done, m.Get(0))
	assert.Equal(t, types.NotStarted, m.Get(1), "special code on a four-way encounter")
	assert.Equal(t, types.Fail, m.Get(2))
	assert.Equal(t, types.Special, m.Get(3))
}

func TestRestore_Short(t *testing.T) {
	m := NewMachine(testDefs())
	m.Set(2, types.Done)
	m.Restore([]types.EncounterState{types.Done})
	assert.Equal(t, []types.EncounterState{types.Done, types.NotStarted, types.NotStarted, types.Special}, m.States())
}

func TestParseState_Names(t *testing.T) {
	for _, st := range []types.EncounterState{types.NotStarted, types.InProgress, types.Fail, types.Done, types.Special} {
		got, ok := ParseState(StateName(st))
		require.True(t, ok)
		assert.Equal(t, st, got)
	}
	_, ok := ParseState("bogus")
	assert.False(t, ok)
}
