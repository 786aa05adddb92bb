package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/nathoo/instancecore/types"
)

// facts is the rules.Facts view of a controller.
type facts struct{ c *Controller }

func (f facts) State(id types.EncounterID) types.EncounterState { return f.c.machine.Get(id) }

func (f facts) Counter(name string) int { return f.c.counters[name] }

func (f facts) Affiliation() types.Affiliation { return f.c.Affiliation() }

func (f facts) RaidSize() int { return f.c.world.RaidSize() }

func (f facts) GroupSize(group string) int { return f.c.handles.GroupSize(group) }

func (f facts) RoleBound(role string) bool {
	_, ok := f.c.handles.Resolve(role)
	return ok
}

// target is the effects.Target view of a controller.
type target struct{ c *Controller }

func (t target) SetState(id types.EncounterID, st types.EncounterState) bool {
	return t.c.SetState(id, st)
}

func (t target) GetGenericCounter(name string) int { return t.c.GetGenericCounter(name) }

func (t target) SetGenericCounter(name string, value int) { t.c.SetGenericCounter(name, value) }

func (t target) Schedule(timer string, delay time.Duration, payload map[string]any) {
	t.c.queue.Schedule(timer, delay, payload)
}

func (t target) ScheduleEvery(timer string, delay, period time.Duration, payload map[string]any) {
	t.c.queue.ScheduleEvery(timer, delay, period, payload)
}

func (t target) Cancel(timer string) int { return t.c.queue.Cancel(timer) }

func (t target) SetPropState(role string, st types.GoState) bool {
	e, ok := t.c.handles.Resolve(role)
	if !ok {
		return false
	}
	p, ok := e.(Prop)
	if !ok {
		t.c.log.Warn("role is not a prop", zap.String("role", role))
		return false
	}
	p.SetGoState(st)
	return true
}

func (t target) RoleAction(role string, action int32) bool {
	e, ok := t.c.handles.Resolve(role)
	if !ok {
		return false
	}
	cr, ok := e.(Creature)
	if !ok {
		t.c.log.Warn("role is not a creature", zap.String("role", role))
		return false
	}
	cr.DoAction(action)
	return true
}

func (t target) GroupAction(group string, action int32) int {
	n := 0
	for _, e := range t.c.handles.Group(group) {
		if cr, ok := e.(Creature); ok {
			cr.DoAction(action)
			n++
		}
	}
	return n
}

func (t target) SetSpawnGroup(group uint32, active bool) { t.c.world.SetSpawnGroup(group, active) }

func (t target) Summon(entry uint32, pos types.Position, lifetime time.Duration) bool {
	_, ok := t.c.world.Summon(entry, pos, lifetime)
	return ok
}

func (t target) RoleBound(role string) bool { return facts(t).RoleBound(role) }

func (t target) Despawn(guid types.GUID) bool { return t.c.world.Despawn(guid) }
