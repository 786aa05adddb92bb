package handles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathoo/instancecore/types"
)

type fakeEntity struct {
	guid  types.GUID
	entry uint32
}

func (f *fakeEntity) GUID() types.GUID { return f.guid }

func TestResolve_Absent(t *testing.T) {
	r := New[*fakeEntity]()
	_, ok := r.Resolve("boss")
	assert.False(t, ok)
}

func TestStaleHandleSafety(t *testing.T) {
	r := New[*fakeEntity]()
	a := &fakeEntity{guid: 1, entry: 100}
	b := &fakeEntity{guid: 2, entry: 100} // same type, never bound

	r.Bind("boss", a)
	got, ok := r.Resolve("boss")
	require.True(t, ok)
	assert.Same(t, a, got)

	r.Release(a)
	_, ok = r.Resolve("boss")
	assert.False(t, ok, "destroyed occupant must read absent")
	_ = b
}

func TestUnbind_IdentityMatch(t *testing.T) {
	r := New[*fakeEntity]()
	old := &fakeEntity{guid: 1}
	replacement := &fakeEntity{guid: 2}

	r.Bind("door", old)
	r.Bind("door", replacement)

	assert.False(t, r.Unbind("door", old), "stale destroy must not clear the new occupant")
	got, ok := r.Resolve("door")
	require.True(t, ok)
	assert.Same(t, replacement, got)

	assert.True(t, r.Unbind("door", replacement))
	_, ok = r.Resolve("door")
	assert.False(t, ok)
}

func TestRelease_MultipleRoles(t *testing.T) {
	r := New[*fakeEntity]()
	e := &fakeEntity{guid: 7}
	other := &fakeEntity{guid: 8}
	r.Bind("lift", e)
	r.Bind("lift_alias", e)
	r.Bind("captain", other)
	r.AddToGroup("crew", e)
	r.AddToGroup("crew", other)

	roles, groups := r.Release(e)
	assert.ElementsMatch(t, []string{"lift", "lift_alias"}, roles)
	assert.Equal(t, []string{"crew"}, groups)

	_, ok := r.Resolve("captain")
	assert.True(t, ok)
	assert.Equal(t, 1, r.GroupSize("crew"))
}

func TestGroups(t *testing.T) {
	r := New[*fakeEntity]()
	a, b := &fakeEntity{guid: 1}, &fakeEntity{guid: 2}

	r.AddToGroup("adds", a)
	r.AddToGroup("adds", a)
	r.AddToGroup("adds", b)
	assert.Equal(t, 2, r.GroupSize("adds"))
	assert.Equal(t, []*fakeEntity{a, b}, r.Group("adds"))

	assert.True(t, r.RemoveFromGroup("adds", a))
	assert.False(t, r.RemoveFromGroup("adds", a))
	assert.True(t, r.RemoveFromGroup("adds", b))
	assert.Equal(t, 0, r.GroupSize("adds"))
	assert.Empty(t, r.Group("adds"))
}

func TestRoles_Snapshot(t *testing.T) {
	r := New[*fakeEntity]()
	r.Bind("a", &fakeEntity{guid: 10})
	r.Bind("b", &fakeEntity{guid: 11})
	assert.Equal(t, map[string]types.GUID{"a": 10, "b": 11}, r.Roles())
}
