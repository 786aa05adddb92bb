// Package resolve maps operator-typed names to encounter ids, states, roles
// and template entries.
package resolve

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nathoo/instancecore/engine/encounter"
	"github.com/nathoo/instancecore/engine/state"
	"github.com/nathoo/instancecore/types"
)

// AmbiguityError indicates multiple candidates matched a name.
type AmbiguityError struct {
	Name       string
	Candidates []string
}

func (e *AmbiguityError) Error() string {
	names := strings.Join(e.Candidates, ", ")
	return fmt.Sprintf("which %s? (%s)", e.Name, names)
}

// NotFoundError indicates nothing matched a name.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s named %q", e.Kind, e.Name)
}

// Encounter resolves an encounter by numeric id, name, display name or a
// word of its display name.
func Encounter(defs *state.Defs, name string) (types.EncounterID, error) {
	// 1. Numeric id.
	if n, err := strconv.Atoi(name); err == nil {
		if n >= 0 && n < len(defs.Encounters) {
			return types.EncounterID(n), nil
		}
		return 0, &NotFoundError{Kind: "encounter", Name: name}
	}

	// 2. Exact name.
	if id, ok := defs.EncounterByName(name); ok {
		return id, nil
	}

	// 3. Display name, whole or by word.
	nameLower := strings.ToLower(name)
	var matches []types.EncounterID
	for _, e := range defs.Encounters {
		if matchesName(e.Name, e.DisplayName, nameLower) {
			matches = append(matches, e.ID)
		}
	}

	switch len(matches) {
	case 0:
		return 0, &NotFoundError{Kind: "encounter", Name: name}
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, id := range matches {
			names[i] = defs.Encounters[id].Name
		}
		return 0, &AmbiguityError{Name: name, Candidates: names}
	}
}

// State resolves a state name or numeric code.
func State(name string) (types.EncounterState, error) {
	if n, err := strconv.Atoi(name); err == nil && n >= 0 && n <= int(types.Special) {
		return types.EncounterState(n), nil
	}
	if st, ok := encounter.ParseState(strings.ToLower(name)); ok {
		return st, nil
	}
	return 0, &NotFoundError{Kind: "state", Name: name}
}

// Role resolves a role name, tolerating spaces for underscores.
func Role(defs *state.Defs, name string) (string, error) {
	roles := defs.Roles()
	if roles[name] {
		return name, nil
	}
	norm := strings.ReplaceAll(strings.ToLower(name), " ", "_")
	if roles[norm] {
		return norm, nil
	}
	var matches []string
	for r := range roles {
		if strings.HasPrefix(r, norm) {
			matches = append(matches, r)
		}
	}
	sort.Strings(matches)
	switch len(matches) {
	case 0:
		return "", &NotFoundError{Kind: "role", Name: name}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguityError{Name: name, Candidates: matches}
	}
}

// CreatureEntry resolves a creature entry number, or the entry registered
// for a role or group name.
func CreatureEntry(defs *state.Defs, name string) (uint32, error) {
	if n, err := strconv.ParseUint(name, 10, 32); err == nil {
		return uint32(n), nil
	}
	var matches []uint32
	for entry, d := range defs.Creatures {
		if d.Role == name || d.Group == name {
			matches = append(matches, entry)
		}
	}
	return pickEntry("creature", name, matches)
}

// PropEntry resolves a prop entry number, or the entry registered for a role.
func PropEntry(defs *state.Defs, name string) (uint32, error) {
	if n, err := strconv.ParseUint(name, 10, 32); err == nil {
		return uint32(n), nil
	}
	var matches []uint32
	for entry, d := range defs.Props {
		if d.Role == name {
			matches = append(matches, entry)
		}
	}
	return pickEntry("prop", name, matches)
}

func pickEntry(kind, name string, matches []uint32) (uint32, error) {
	sort.Slice(matches, func(i, j int) bool { return matches[i] < matches[j] })
	switch len(matches) {
	case 0:
		return 0, &NotFoundError{Kind: kind, Name: name}
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = strconv.FormatUint(uint64(m), 10)
		}
		return 0, &AmbiguityError{Name: name, Candidates: names}
	}
}

// matchesName checks a query against an encounter's id-style name and its
// display name (case-insensitive). Supports whole-name match, word match and
// underscore normalization.
func matchesName(id, display, nameLower string) bool {
	if strings.ToLower(id) == nameLower {
		return true
	}
	if strings.ReplaceAll(nameLower, " ", "_") == strings.ToLower(id) {
		return true
	}
	displayLower := strings.ToLower(display)
	if displayLower == "" {
		return false
	}
	if displayLower == nameLower {
		return true
	}
	for _, word := range strings.Fields(displayLower) {
		if word == nameLower {
			return true
		}
	}
	return false
}
