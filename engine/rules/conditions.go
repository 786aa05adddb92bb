// Package rules evaluates handler and prop conditions against live
// controller facts.
package rules

import "github.com/nathoo/instancecore/types"

// Facts is the read-only view of the controller that conditions test.
type Facts interface {
	State(types.EncounterID) types.EncounterState
	Counter(name string) int
	Affiliation() types.Affiliation
	RaidSize() int
	GroupSize(group string) int
	RoleBound(role string) bool
}

// EvalCondition evaluates a single condition.
func EvalCondition(c types.Condition, f Facts) bool {
	switch c.Type {
	case "state_is":
		enc := types.EncounterID(toInt(c.Params["encounter"]))
		return f.State(enc) == types.EncounterState(toInt(c.Params["state"]))

	case "state_not":
		enc := types.EncounterID(toInt(c.Params["encounter"]))
		return f.State(enc) != types.EncounterState(toInt(c.Params["state"]))

	case "counter_is":
		counter, _ := c.Params["counter"].(string)
		return f.Counter(counter) == toInt(c.Params["value"])

	case "counter_gt":
		counter, _ := c.Params["counter"].(string)
		return f.Counter(counter) > toInt(c.Params["value"])

	case "counter_lt":
		counter, _ := c.Params["counter"].(string)
		return f.Counter(counter) < toInt(c.Params["value"])

	case "affiliation_is":
		aff, _ := c.Params["affiliation"].(string)
		return string(f.Affiliation()) == aff

	case "raid_size":
		return f.RaidSize() >= toInt(c.Params["min"])

	case "group_empty":
		group, _ := c.Params["group"].(string)
		return f.GroupSize(group) == 0

	case "role_bound":
		role, _ := c.Params["role"].(string)
		return f.RoleBound(role)

	case "not":
		if c.Inner == nil {
			return true
		}
		return !EvalCondition(*c.Inner, f)

	case "any":
		for _, alt := range c.Any {
			if EvalCondition(alt, f) {
				return true
			}
		}
		return false

	default:
		return false
	}
}

// EvalAllConditions returns true if all conditions pass (AND logic).
// An empty condition list is vacuously true.
func EvalAllConditions(conditions []types.Condition, f Facts) bool {
	for _, c := range conditions {
		if !EvalCondition(c, f) {
			return false
		}
	}
	return true
}

// toInt converts an any value to int, handling float64 from Lua.
func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	case int64:
		return int(n)
	case types.EncounterID:
		return int(n)
	case types.EncounterState:
		return int(n)
	default:
		return 0
	}
}
