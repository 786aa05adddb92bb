// Package parser converts operator command lines into Command structs.
// Intentionally dumb: a verb, aliases, and whitespace-separated arguments.
package parser

import (
	"strings"

	"github.com/nathoo/instancecore/types"
)

var verbAliases = map[string]string{
	// Inspection
	"status": "state",
	"show":   "state",
	"ls":     "state",
	"st":     "state",

	// Transitions
	"setstate": "set",
	"mark":     "set",

	// Dependencies
	"can":   "attempt",
	"try":   "attempt",
	"check": "attempt",

	// Spawning
	"summon":  "spawn",
	"object":  "spawnprop",
	"go":      "spawnprop",
	"rm":      "despawn",
	"remove":  "despawn",
	"destroy": "despawn",
	"slay":    "kill",
	"die":     "kill",

	// Participants
	"join": "enter",
	"part": "leave",
	"exit": "leave",

	// World
	"ev":      "event",
	"fire":    "event",
	"t":       "tick",
	"wait":    "tick",
	"advance": "tick",

	// Lookups
	"ctr":     "counter",
	"who":     "role",
	"bound":   "role",
	"in":      "within",
	"bounds":  "within",
	"doors":   "props",
	"gates":   "props",
	"queue":   "timers",
	"dump":    "blob",
	"load":    "restore",
	"achieve": "criteria",
}

// Parse converts a raw command line into a Command. The verb is lower-cased;
// arguments keep their case.
func Parse(input string) types.Command {
	input = strings.TrimSpace(input)
	if input == "" {
		return types.Command{}
	}

	words := strings.Fields(input)
	words[0] = strings.ToLower(words[0])

	// Handle multi-word verb phrases before alias lookup.
	words = expandMultiWordVerbs(words)

	if alias, ok := verbAliases[words[0]]; ok {
		words[0] = alias
	}

	return types.Command{
		Verb: words[0],
		Args: words[1:],
	}
}

// expandMultiWordVerbs handles "can attempt", "spawn prop", "world event".
func expandMultiWordVerbs(words []string) []string {
	if len(words) < 2 {
		return words
	}
	second := strings.ToLower(words[1])

	switch words[0] {
	case "can":
		if second == "attempt" {
			return append([]string{"attempt"}, words[2:]...)
		}
	case "spawn":
		if second == "prop" || second == "object" {
			return append([]string{"spawnprop"}, words[2:]...)
		}
	case "world":
		if second == "event" {
			return append([]string{"event"}, words[2:]...)
		}
	case "set":
		if second == "counter" {
			return append([]string{"counter"}, words[2:]...)
		}
	}

	return words
}
