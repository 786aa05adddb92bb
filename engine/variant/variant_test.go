package variant

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nathoo/instancecore/types"
)

const (
	alliance types.Affiliation = "alliance"
	horde    types.Affiliation = "horde"
)

func testTable() *Table {
	return New([]types.VariantDef{
		// quartermaster: each side gets its own
		{Neutral: 100, ByAffiliation: map[types.Affiliation]uint32{alliance: 101, horde: 102}},
		// alliance-only guard: suppressed for horde
		{Neutral: 200, ByAffiliation: map[types.Affiliation]uint32{alliance: 200, horde: 0}},
		// retired spawn
		{Neutral: 300, Suppressed: true},
		// only the horde side differs
		{Neutral: 400, ByAffiliation: map[types.Affiliation]uint32{horde: 401}},
	})
}

func TestResolveSpawn(t *testing.T) {
	tab := testTable()
	cases := []struct {
		neutral uint32
		aff     types.Affiliation
		want    uint32
	}{
		{100, alliance, 101},
		{100, horde, 102},
		{200, alliance, 200},
		{200, horde, Suppressed},
		{300, alliance, Suppressed},
		{300, horde, Suppressed},
		{400, alliance, 400},
		{400, horde, 401},
		{999, horde, 999},
		{100, "", 100},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tab.ResolveSpawn(tc.neutral, tc.aff), "%d/%s", tc.neutral, tc.aff)
	}
}

func TestResolveSpawn_Pure(t *testing.T) {
	tab := testTable()
	first := tab.ResolveSpawn(100, horde)
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, tab.ResolveSpawn(100, horde))
	}
	assert.Equal(t, 4, tab.Len())
}

func TestResolver_SeparateTables(t *testing.T) {
	r := NewResolver(
		[]types.VariantDef{{Neutral: 1, Suppressed: true}},
		[]types.VariantDef{{Neutral: 1, ByAffiliation: map[types.Affiliation]uint32{horde: 2}}},
	)
	assert.Equal(t, Suppressed, r.Creatures.ResolveSpawn(1, horde))
	assert.Equal(t, uint32(2), r.Props.ResolveSpawn(1, horde))
}
