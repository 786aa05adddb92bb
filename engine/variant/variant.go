// Package variant resolves affiliation-specific substitutions for spawn and
// prop identities. Resolution is a pure function of the table and the
// affiliation.
package variant

import "github.com/nathoo/instancecore/types"

// Suppressed is returned when an identity must not spawn.
const Suppressed uint32 = 0

// Table maps neutral identities to their variant rules.
type Table struct {
	rules map[uint32]types.VariantDef
}

// New builds a table. Later definitions for the same neutral id win.
func New(defs []types.VariantDef) *Table {
	t := &Table{rules: make(map[uint32]types.VariantDef, len(defs))}
	for _, d := range defs {
		t.rules[d.Neutral] = d
	}
	return t
}

// ResolveSpawn returns the concrete id to spawn for neutral under aff, or
// Suppressed. Ids without a rule, and affiliations a rule does not list,
// keep the neutral id.
func (t *Table) ResolveSpawn(neutral uint32, aff types.Affiliation) uint32 {
	rule, ok := t.rules[neutral]
	if !ok {
		return neutral
	}
	if rule.Suppressed {
		return Suppressed
	}
	if id, ok := rule.ByAffiliation[aff]; ok {
		return id
	}
	return neutral
}

// Len returns the number of rules.
func (t *Table) Len() int {
	return len(t.rules)
}

// Resolver holds the creature and prop tables of one instance.
type Resolver struct {
	Creatures *Table
	Props     *Table
}

// NewResolver builds both tables.
func NewResolver(creatures, props []types.VariantDef) *Resolver {
	return &Resolver{Creatures: New(creatures), Props: New(props)}
}
