// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package bind wires the typed DPDA client to the resource cache through
// declarative query and mutation bindings.
//
// Each resource type has a cache-key shape, a staleness window, and an
// enablement condition; each mutation declares the set of keys it marks
// stale on success. The invalidation rules live in a first-class table
// (rules.go) so the dependency graph is testable in isolation from any
// fetch mechanics.
package bind

// Cache key grammar. A machine's scope is "dpda:<id>"; every sub-resource
// key lives under it, which is what lets a delete purge the whole family
// with one prefix sweep. The list key sits outside the scope namespace
// ("!" never appears in a machine id) so no id can alias it.
const (
	// KeyMachineList is the entity list key.
	KeyMachineList = "dpda!list"

	suffixStates      = ":states"
	suffixAlphabets   = ":alphabets"
	suffixTransitions = ":transitions"
	suffixValidate    = ":validate"
	suffixCompute     = ":compute:"
	suffixVisualize   = ":viz"
)

// Scope returns the cache scope owning every key of one machine.
func Scope(id string) string { return "dpda:" + id }

// KeyMachine is the entity detail key.
func KeyMachine(id string) string { return Scope(id) }

// KeyStates is the states config key.
func KeyStates(id string) string { return Scope(id) + suffixStates }

// KeyAlphabets is the alphabets config key.
func KeyAlphabets(id string) string { return Scope(id) + suffixAlphabets }

// KeyTransitions is the whole-list transitions key. There is deliberately
// no per-index key: a transition's position is meaningless across fetches.
func KeyTransitions(id string) string { return Scope(id) + suffixTransitions }

// KeyValidate is the validation result key.
func KeyValidate(id string) string { return Scope(id) + suffixValidate }

// KeyCompute keys a computed run by its declared dependency: the machine
// id and the exact input string.
func KeyCompute(id, input string) string { return Scope(id) + suffixCompute + input }

// KeyVisualize is the visualization snapshot key.
func KeyVisualize(id string) string { return Scope(id) + suffixVisualize }
