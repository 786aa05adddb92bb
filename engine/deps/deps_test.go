package deps

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/instancecore/types"
)

const (
	a types.EncounterID = iota
	b
	c
)

type states map[types.EncounterID]types.EncounterState

func (s states) get(id types.EncounterID) types.EncounterState { return s[id] }

var none = types.AttemptContext{}

func chainABC(t *testing.T, st states) *Resolver {
	t.Helper()
	r, err := New([][]types.EncounterID{
		a: nil,
		b: {a},
		c: {b},
	}, st.get)
	require.NoError(t, err)
	return r
}

func TestScenario_ChainABC(t *testing.T) {
	st := states{}
	r := chainABC(t, st)

	assert.True(t, r.CanAttempt(a, none), "root has no prerequisites")
	assert.False(t, r.CanAttempt(c, none))

	st[a] = types.Done
	assert.True(t, r.CanAttempt(b, none))
	assert.False(t, r.CanAttempt(c, none))

	st[b] = types.Done
	assert.True(t, r.CanAttempt(c, none))
}

func TestMonotonicity_FlipAnyAncestor(t *testing.T) {
	st := states{a: types.Done, b: types.Done}
	r := chainABC(t, st)
	require.True(t, r.CanAttempt(c, none))

	for _, p := range []types.EncounterID{a, b} {
		for _, other := range []types.EncounterState{types.NotStarted, types.InProgress, types.Fail} {
			st[p] = other
			assert.False(t, r.CanAttempt(c, none), "ancestor %d in state %d", p, other)
			st[p] = types.Done
		}
	}
}

func TestOverride_ShortCircuits(t *testing.T) {
	called := 0
	r, err := New([][]types.EncounterID{nil, {0}}, func(types.EncounterID) types.EncounterState {
		called++
		return types.NotStarted
	})
	require.NoError(t, err)

	assert.True(t, r.CanAttempt(1, types.AttemptContext{Override: true}))
	assert.Equal(t, 0, called, "override must skip the walk")
}

func TestBlocker_FirstNotDoneInDeclaredOrder(t *testing.T) {
	// final requires three wings; wing 2 has its own chain
	requires := [][]types.EncounterID{
		0: nil,
		1: nil,
		2: {1},
		3: nil,
		4: {0, 2, 3},
	}
	st := states{0: types.Done, 1: types.NotStarted, 2: types.NotStarted, 3: types.NotStarted}
	r, err := New(requires, st.get)
	require.NoError(t, err)

	got, blocked := r.Blocker(4)
	require.True(t, blocked)
	assert.Equal(t, types.EncounterID(2), got)

	st[2] = types.Done
	got, _ = r.Blocker(4)
	assert.Equal(t, types.EncounterID(1), got, "parent's ancestors are walked before the next direct parent")

	assert.Equal(t, []types.EncounterID{0, 2, 1, 3}, r.Chain(4))
}

func TestChain_SharedAncestorVisitedOnce(t *testing.T) {
	requires := [][]types.EncounterID{nil, {0}, {0}, {1, 2}}
	r, err := New(requires, states{}.get)
	require.NoError(t, err)
	assert.Equal(t, []types.EncounterID{1, 0, 2}, r.Chain(3))
}

func TestNew_Validation(t *testing.T) {
	_, err := New([][]types.EncounterID{{0}}, states{}.get)
	assert.True(t, errors.Is(err, ErrSelfDependency))

	_, err = New([][]types.EncounterID{nil, {5}}, states{}.get)
	assert.True(t, errors.Is(err, ErrUnknownPrerequisite))

	_, err = New([][]types.EncounterID{{2}, {0}, {1}}, states{}.get)
	assert.True(t, errors.Is(err, ErrCycleDetected))
}

func TestOrder_PrerequisitesFirst(t *testing.T) {
	r, err := New([][]types.EncounterID{{1}, nil, {0}}, states{}.get)
	require.NoError(t, err)
	assert.Equal(t, []types.EncounterID{1, 0, 2}, r.Order())
}

func TestCanAttempt_UnknownID(t *testing.T) {
	r := chainABC(t, states{})
	assert.False(t, r.CanAttempt(17, none))
	assert.Nil(t, r.Chain(17))
}
