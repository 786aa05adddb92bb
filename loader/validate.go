package loader

import (
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/nathoo/instancecore/engine/boundary"
	"github.com/nathoo/instancecore/engine/deps"
	"github.com/nathoo/instancecore/engine/encounter"
	"github.com/nathoo/instancecore/engine/state"
	"github.com/nathoo/instancecore/types"
)

// ValidationError collects all validation errors and warnings.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed with %d error(s):\n  %s",
		len(e.Errors), strings.Join(e.Errors, "\n  "))
}

func (e *ValidationError) errorf(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

func (e *ValidationError) warnf(format string, args ...any) {
	e.Warnings = append(e.Warnings, fmt.Sprintf(format, args...))
}

// Known effect types.
var validEffectTypes = map[string]bool{
	"say":            true,
	"set_state":      true,
	"set_counter":    true,
	"inc_counter":    true,
	"schedule":       true,
	"schedule_every": true,
	"cancel":         true,
	"prop_state":     true,
	"role_action":    true,
	"group_action":   true,
	"spawn_group":    true,
	"summon":         true,
	"despawn_source": true,
	"emit":           true,
	"stop":           true,
}

// Known condition types.
var validConditionTypes = map[string]bool{
	"state_is":       true,
	"state_not":      true,
	"counter_is":     true,
	"counter_gt":     true,
	"counter_lt":     true,
	"affiliation_is": true,
	"raid_size":      true,
	"group_empty":    true,
	"role_bound":     true,
	"not":            true,
	"any":            true,
}

// validator checks compiled defs for referential integrity.
type validator struct {
	defs     *state.Defs
	ve       *ValidationError
	roles    map[string]bool
	groups   map[string]bool
	timers   map[string]bool
	counters map[string]bool
}

// validate checks the compiled defs and returns a *ValidationError listing
// every problem, or nil. Warnings are logged.
func validate(defs *state.Defs, log *zap.Logger, pre ...string) error {
	v := &validator{
		defs:     defs,
		ve:       &ValidationError{Errors: append([]string(nil), pre...)},
		roles:    defs.Roles(),
		groups:   defs.Groups(),
		timers:   map[string]bool{},
		counters: map[string]bool{},
	}
	for _, t := range defs.Timers {
		v.timers[t.Name] = true
	}
	for name := range state.NewCounters(defs) {
		v.counters[name] = true
	}

	v.instance()
	v.encounters()
	for _, c := range defs.Counters {
		if c.Persist && !encounter.ValidCounterName(c.Name) {
			v.ve.errorf("persistent counter %q must not contain spaces, ',' or '='", c.Name)
		}
	}

	for _, h := range defs.Handlers {
		v.conditions(h.Key, h.Conditions)
		v.effects(h.Key, h.Effects)
	}
	for _, t := range defs.Timers {
		v.conditions(t.Handler.Key, t.Handler.Conditions)
		v.effects(t.Handler.Key, t.Handler.Effects)
	}
	for entry, p := range defs.Props {
		v.conditions(fmt.Sprintf("prop %d", entry), p.OpenWhen)
	}
	v.conditions("timers_active_when", defs.TimersActiveWhen)

	for id, counter := range defs.Criteria {
		if !v.counters[counter] {
			v.ve.errorf("criteria %d references undeclared counter %q", id, counter)
		}
	}
	for _, vd := range defs.CreatureVariants {
		if _, ok := defs.Creatures[vd.Neutral]; ok && vd.Suppressed {
			v.ve.warnf("creature %d is registered but always suppressed", vd.Neutral)
		}
	}

	if log != nil {
		for _, w := range v.ve.Warnings {
			log.Warn("instance content", zap.String("warning", w))
		}
	}
	if len(v.ve.Errors) > 0 {
		return v.ve
	}
	return nil
}

func (v *validator) instance() {
	inst := v.defs.Instance
	if inst.Name == "" {
		v.ve.errorf("Instance.name is required")
	}
	switch {
	case inst.Header == "":
		v.ve.errorf("Instance.header is required")
	case strings.IndexFunc(inst.Header, unicode.IsSpace) >= 0:
		v.ve.errorf("Instance.header %q must not contain spaces", inst.Header)
	case unicode.IsDigit(rune(inst.Header[len(inst.Header)-1])):
		v.ve.errorf("Instance.header %q must not end with a digit", inst.Header)
	}
}

func (v *validator) encounters() {
	if len(v.defs.Encounters) == 0 {
		v.ve.errorf("at least one Encounter is required")
		return
	}
	if _, err := deps.New(v.defs.Requires(), nil); err != nil {
		v.ve.errorf("dependency graph: %v", err)
	}
	if _, err := boundary.New(v.defs.Encounters); err != nil {
		v.ve.errorf("%v", err)
	}
	for _, e := range v.defs.Encounters {
		if e.Kind == types.KindSpecial && !encounter.ValidCounterName(e.Name) {
			v.ve.errorf("special encounter %q is persisted as a counter; its name must not contain spaces, ',' or '='", e.Name)
		}
		if e.Kind == types.KindSpecial && len(e.Requires) > 0 {
			v.ve.warnf("special encounter %q has prerequisites that are never checked against its counter", e.Name)
		}
	}
	for entry, p := range v.defs.Props {
		for _, d := range p.Doors {
			if v.isSpecial(d.Encounter) {
				v.ve.errorf("door %d is bound to special encounter %q", entry, v.defs.Encounters[d.Encounter].Name)
			}
		}
	}
}

func (v *validator) knownEncounter(id types.EncounterID) bool {
	return id >= 0 && int(id) < len(v.defs.Encounters)
}

func (v *validator) isSpecial(id types.EncounterID) bool {
	return v.knownEncounter(id) && v.defs.Encounters[id].Kind == types.KindSpecial
}

func (v *validator) conditions(where string, conds []types.Condition) {
	for _, cond := range conds {
		if !validConditionTypes[cond.Type] {
			v.ve.errorf("%s: unknown condition type %q", where, cond.Type)
			continue
		}
		switch cond.Type {
		case "state_is", "state_not":
			v.encounterParam(where, cond.Type, cond.Params)
			v.stateParam(where, cond.Type, cond.Params, types.Special)
		case "counter_is", "counter_gt", "counter_lt":
			v.counterParam(where, cond.Type, cond.Params)
		case "role_bound":
			v.nameParam(where, cond.Type, cond.Params, "role", v.roles)
		case "group_empty":
			v.nameParam(where, cond.Type, cond.Params, "group", v.groups)
		case "affiliation_is":
			if a, _ := cond.Params["affiliation"].(string); a == "" {
				v.ve.errorf("%s: affiliation_is needs an affiliation", where)
			}
		case "not":
			if cond.Inner != nil {
				v.conditions(where, []types.Condition{*cond.Inner})
			}
		case "any":
			if len(cond.Any) == 0 {
				v.ve.warnf("%s: any() with no alternatives never holds", where)
			}
			v.conditions(where, cond.Any)
		}
	}
}

func (v *validator) effects(where string, effs []types.Effect) {
	for _, eff := range effs {
		if !validEffectTypes[eff.Type] {
			v.ve.errorf("%s: unknown effect type %q", where, eff.Type)
			continue
		}
		switch eff.Type {
		case "set_state":
			if v.encounterParam(where, eff.Type, eff.Params) {
				id := types.EncounterID(eff.Params["encounter"].(int))
				if v.isSpecial(id) {
					v.ve.errorf("%s: set_state targets special encounter %q; use set_counter", where, v.defs.Encounters[id].Name)
				}
			}
			v.stateParam(where, eff.Type, eff.Params, types.Done)
		case "set_counter", "inc_counter":
			v.counterParam(where, eff.Type, eff.Params)
		case "schedule", "schedule_every", "cancel":
			v.nameParam(where, eff.Type, eff.Params, "timer", v.timers)
		case "prop_state":
			v.nameParam(where, eff.Type, eff.Params, "role", v.roles)
			if _, ok := eff.Params["state"].(int); !ok {
				v.ve.errorf("%s: prop_state needs a state", where)
			}
		case "role_action":
			v.nameParam(where, eff.Type, eff.Params, "role", v.roles)
		case "group_action":
			v.nameParam(where, eff.Type, eff.Params, "group", v.groups)
		case "summon":
			if n, _ := eff.Params["entry"].(int); n <= 0 {
				v.ve.errorf("%s: summon needs a positive entry", where)
			}
			if role, ok := eff.Params["unless_bound"].(string); ok && !v.roles[role] {
				v.ve.errorf("%s: summon unless_bound references undefined role %q", where, role)
			}
		case "emit":
			if ev, _ := eff.Params["event"].(string); ev == "" {
				v.ve.errorf("%s: emit needs an event name", where)
			}
		}
	}
}

// encounterParam reports whether params carries a resolved encounter id.
// Unresolved names were already reported during compilation.
func (v *validator) encounterParam(where, typ string, p map[string]any) bool {
	switch val := p["encounter"].(type) {
	case int:
		if !v.knownEncounter(types.EncounterID(val)) {
			v.ve.errorf("%s: %s references unknown encounter id %d", where, typ, val)
			return false
		}
		return true
	case string:
		return false
	default:
		v.ve.errorf("%s: %s needs an encounter", where, typ)
		return false
	}
}

func (v *validator) stateParam(where, typ string, p map[string]any, limit types.EncounterState) {
	switch val := p["state"].(type) {
	case int:
		if val < 0 || val > int(limit) {
			v.ve.errorf("%s: %s state %d out of range", where, typ, val)
		}
	case string:
		// reported during compilation
	default:
		v.ve.errorf("%s: %s needs a state", where, typ)
	}
}

func (v *validator) counterParam(where, typ string, p map[string]any) {
	name, _ := p["counter"].(string)
	if name == "" {
		v.ve.errorf("%s: %s needs a counter", where, typ)
		return
	}
	if !v.counters[name] {
		v.ve.warnf("%s: %s uses undeclared counter %q (starts at 0)", where, typ, name)
	}
}

func (v *validator) nameParam(where, typ string, p map[string]any, key string, known map[string]bool) {
	name, _ := p[key].(string)
	if name == "" {
		v.ve.errorf("%s: %s needs a %s", where, typ, key)
		return
	}
	if !known[name] {
		v.ve.errorf("%s: %s references undefined %s %q", where, typ, key, name)
	}
}
