// Package handles maps logical roles to the live entities currently filling
// them. Entries are non-owning: the registry never keeps an entity alive,
// and a role reads absent as soon as its occupant is released.
package handles

import "github.com/nathoo/instancecore/types"

// Entity is the minimal identity the registry needs.
type Entity interface {
	GUID() types.GUID
}

// Registry holds single-occupant roles and multi-occupant groups.
type Registry[E Entity] struct {
	roles  map[string]E
	groups map[string][]E
}

// New returns an empty registry.
func New[E Entity]() *Registry[E] {
	return &Registry[E]{
		roles:  make(map[string]E),
		groups: make(map[string][]E),
	}
}

// Bind makes e the occupant of role, replacing any previous occupant.
func (r *Registry[E]) Bind(role string, e E) {
	r.roles[role] = e
}

// Unbind clears role only if e is its current occupant. A late destroy
// notification for a replaced occupant leaves the new one bound.
func (r *Registry[E]) Unbind(role string, e E) bool {
	cur, ok := r.roles[role]
	if !ok || cur.GUID() != e.GUID() {
		return false
	}
	delete(r.roles, role)
	return true
}

// Resolve returns the current occupant of role. Callers must not keep the
// result across calls that can destroy entities.
func (r *Registry[E]) Resolve(role string) (E, bool) {
	e, ok := r.roles[role]
	return e, ok
}

// AddToGroup adds e to a multi-occupant group. Adding twice is a no-op.
func (r *Registry[E]) AddToGroup(group string, e E) {
	for _, m := range r.groups[group] {
		if m.GUID() == e.GUID() {
			return
		}
	}
	r.groups[group] = append(r.groups[group], e)
}

// RemoveFromGroup drops e from group and reports whether it was a member.
func (r *Registry[E]) RemoveFromGroup(group string, e E) bool {
	members := r.groups[group]
	for i, m := range members {
		if m.GUID() == e.GUID() {
			r.groups[group] = append(members[:i:i], members[i+1:]...)
			if len(r.groups[group]) == 0 {
				delete(r.groups, group)
			}
			return true
		}
	}
	return false
}

// Group returns a copy of the group's members in insertion order.
func (r *Registry[E]) Group(group string) []E {
	members := r.groups[group]
	out := make([]E, len(members))
	copy(out, members)
	return out
}

// GroupSize returns the number of live members of group.
func (r *Registry[E]) GroupSize(group string) int {
	return len(r.groups[group])
}

// Release drops e from every role and group it occupies and returns the
// roles and groups it was removed from.
func (r *Registry[E]) Release(e E) (roles, groups []string) {
	for role, cur := range r.roles {
		if cur.GUID() == e.GUID() {
			delete(r.roles, role)
			roles = append(roles, role)
		}
	}
	for group := range r.groups {
		if r.RemoveFromGroup(group, e) {
			groups = append(groups, group)
		}
	}
	return roles, groups
}

// Roles returns a snapshot of role → occupant GUID.
func (r *Registry[E]) Roles() map[string]types.GUID {
	out := make(map[string]types.GUID, len(r.roles))
	for role, e := range r.roles {
		out[role] = e.GUID()
	}
	return out
}
