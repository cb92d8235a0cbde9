// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package bind

// MutationKind identifies one write operation for the invalidation table.
type MutationKind int

const (
	MutationCreateMachine MutationKind = iota
	MutationUpdateMachine
	MutationDeleteMachine
	MutationSetStates
	MutationPatchStates
	MutationSetAlphabets
	MutationPatchAlphabets
	MutationAddTransition
	MutationDeleteTransition
	MutationUpdateTransition
)

// String returns the mutation name for logging.
func (k MutationKind) String() string {
	switch k {
	case MutationCreateMachine:
		return "create_machine"
	case MutationUpdateMachine:
		return "update_machine"
	case MutationDeleteMachine:
		return "delete_machine"
	case MutationSetStates:
		return "set_states"
	case MutationPatchStates:
		return "patch_states"
	case MutationSetAlphabets:
		return "set_alphabets"
	case MutationPatchAlphabets:
		return "patch_alphabets"
	case MutationAddTransition:
		return "add_transition"
	case MutationDeleteTransition:
		return "delete_transition"
	case MutationUpdateTransition:
		return "update_transition"
	default:
		return "unknown"
	}
}

// KeyTemplate names one cache key relative to a machine id. Templates are
// plain data so the invalidation graph can be inspected and tested
// without touching fetch mechanics.
type KeyTemplate struct {
	// Literal, when non-empty, is the resolved key itself (entity-list).
	Literal string

	// Suffix is appended to the machine scope. Empty Suffix with empty
	// Literal resolves to the machine detail key.
	Suffix string
}

// Resolve produces the concrete cache key for a machine id.
func (t KeyTemplate) Resolve(id string) string {
	if t.Literal != "" {
		return t.Literal
	}
	return Scope(id) + t.Suffix
}

// Convenience templates.
var (
	tmplList        = KeyTemplate{Literal: KeyMachineList}
	tmplDetail      = KeyTemplate{}
	tmplStates      = KeyTemplate{Suffix: suffixStates}
	tmplAlphabets   = KeyTemplate{Suffix: suffixAlphabets}
	tmplTransitions = KeyTemplate{Suffix: suffixTransitions}
)

// Rule is the declared cache side effect of one successful mutation.
// Failed mutations apply nothing; the cache stays exactly as it was.
type Rule struct {
	// Stale lists the key templates marked stale on success.
	Stale []KeyTemplate

	// PurgeEntityScope removes (not merely marks) every key under the
	// machine's scope. Set only by entity deletion.
	PurgeEntityScope bool
}

// invalidationRules is the invalidation graph, one entry per mutation.
//
// Transition writes always stale the whole list: the remote store
// addresses transitions by position among siblings, and positions shift
// on any insert or delete, so a patched cache entry could silently point
// at the wrong rule. The list read is the sole authority for current
// positions. Every config or transition write also stales the entity
// detail because the derived validity flag may have changed.
var invalidationRules = map[MutationKind]Rule{
	MutationCreateMachine:    {Stale: []KeyTemplate{tmplList}},
	MutationUpdateMachine:    {Stale: []KeyTemplate{tmplDetail, tmplList}},
	MutationDeleteMachine:    {Stale: []KeyTemplate{tmplList}, PurgeEntityScope: true},
	MutationSetStates:        {Stale: []KeyTemplate{tmplDetail, tmplStates}},
	MutationPatchStates:      {Stale: []KeyTemplate{tmplDetail, tmplStates}},
	MutationSetAlphabets:     {Stale: []KeyTemplate{tmplDetail, tmplAlphabets}},
	MutationPatchAlphabets:   {Stale: []KeyTemplate{tmplDetail, tmplAlphabets}},
	MutationAddTransition:    {Stale: []KeyTemplate{tmplTransitions, tmplDetail}},
	MutationDeleteTransition: {Stale: []KeyTemplate{tmplTransitions, tmplDetail}},
	MutationUpdateTransition: {Stale: []KeyTemplate{tmplTransitions, tmplDetail}},
}

// RuleFor exposes one rule for inspection and tests.
func RuleFor(kind MutationKind) (Rule, bool) {
	r, ok := invalidationRules[kind]
	return r, ok
}
