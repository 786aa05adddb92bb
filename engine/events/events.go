// Package events implements single-pass handler dispatch. Handlers are
// matched by key and produce effects; they do not recurse here. Further
// transitions caused by those effects are dispatched by the controller.
package events

import (
	"github.com/nathoo/instancecore/engine/rules"
	"github.com/nathoo/instancecore/engine/state"
	"github.com/nathoo/instancecore/types"
)

// Dispatch runs handlers against the triggering events. Single pass — no
// recursion. Returns the effects of every matching handler, in handler
// declaration order per event.
func Dispatch(events []types.Event, defs *state.Defs, f rules.Facts) []types.Effect {
	var result []types.Effect

	for _, event := range events {
		for _, handler := range defs.Handlers {
			if handler.Key != event.Type {
				continue
			}
			if !rules.EvalAllConditions(handler.Conditions, f) {
				continue
			}
			result = append(result, handler.Effects...)
		}
	}

	return result
}

// Timer returns the effects of a named timer whose conditions hold.
func Timer(name string, defs *state.Defs, f rules.Facts) ([]types.Effect, bool) {
	for _, t := range defs.Timers {
		if t.Name != name {
			continue
		}
		if !rules.EvalAllConditions(t.Handler.Conditions, f) {
			return nil, true
		}
		return t.Handler.Effects, true
	}
	return nil, false
}
