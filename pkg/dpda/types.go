// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dpda is the typed wire surface of the DPDA designer service.
//
// The structs here mirror the remote API exactly; all field names match
// the service's JSON. The authoritative simulation and validation
// algorithms run server-side — nothing in this package re-validates
// automaton semantics beyond required-field checks on request payloads.
package dpda

// Machine is the automaton entity, root of the resource graph.
type Machine struct {
	// ID is the server-assigned unique identifier.
	ID string `json:"id"`

	// Name is the display name.
	Name string `json:"name"`

	// Description is optional free text.
	Description string `json:"description,omitempty"`

	// IsValid is the derived determinism flag. Nil when the machine has
	// not been validated yet (e.g. nothing configured).
	IsValid *bool `json:"is_valid,omitempty"`

	// CreatedAt is the server-side creation timestamp, RFC 3339.
	CreatedAt string `json:"created_at,omitempty"`

	// Optional sub-resources, present on detail reads when configured.
	States      *StatesConfig    `json:"states,omitempty"`
	Alphabets   *AlphabetsConfig `json:"alphabets,omitempty"`
	Transitions []Transition     `json:"transitions,omitempty"`
}

// MachineList is the entity list response.
type MachineList struct {
	DPDAs []Machine `json:"dpdas"`
	Total int       `json:"total"`
}

// StatesConfig is the state set of a machine.
//
// Invariants (enforced server-side): InitialState ∈ States;
// AcceptStates ⊆ States.
type StatesConfig struct {
	States       []string `json:"states" validate:"required,min=1"`
	InitialState string   `json:"initial_state" validate:"required"`
	AcceptStates []string `json:"accept_states"`
}

// StatesPatch is a partial update of StatesConfig. Nil fields are left
// unchanged by the server.
type StatesPatch struct {
	States       *[]string `json:"states,omitempty"`
	InitialState *string   `json:"initial_state,omitempty"`
	AcceptStates *[]string `json:"accept_states,omitempty"`
}

// AlphabetsConfig is the input and stack alphabets of a machine.
//
// The input alphabet may be empty (epsilon-only machines are legal); the
// stack alphabet may not. InitialStackSymbol ∈ StackAlphabet,
// enforced server-side.
type AlphabetsConfig struct {
	InputAlphabet      []string `json:"input_alphabet"`
	StackAlphabet      []string `json:"stack_alphabet" validate:"required,min=1"`
	InitialStackSymbol string   `json:"initial_stack_symbol" validate:"required"`
}

// AlphabetsPatch is a partial update of AlphabetsConfig.
type AlphabetsPatch struct {
	InputAlphabet      *[]string `json:"input_alphabet,omitempty"`
	StackAlphabet      *[]string `json:"stack_alphabet,omitempty"`
	InitialStackSymbol *string   `json:"initial_stack_symbol,omitempty"`
}

// Transition is one transition rule.
//
// The remote store addresses transitions by zero-based position, and that
// position is not stable: any insertion or deletion shifts every
// subsequent index. Transitions therefore carry no identifier here.
type Transition struct {
	FromState string `json:"from_state" validate:"required"`

	// InputSymbol is nil for epsilon transitions.
	InputSymbol *string `json:"input_symbol"`

	// StackTop is nil when the rule reads no stack symbol.
	StackTop *string `json:"stack_top"`

	ToState string `json:"to_state" validate:"required"`

	// StackPush is the push sequence. The first listed symbol is pushed
	// last and therefore ends on top.
	StackPush []string `json:"stack_push"`
}

// TransitionList is the full ordered transition list. The list is the
// only safe unit of caching: individual entries must never be cached by
// index across fetches.
type TransitionList struct {
	Transitions []Transition `json:"transitions"`
	Total       int          `json:"total"`
}

// CreateRequest creates a machine.
type CreateRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
}

// UpdateRequest partially updates machine metadata.
type UpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// ChangesResponse is the generic partial-update response.
type ChangesResponse struct {
	Changes map[string]any `json:"changes"`
}

// DeleteResponse is the entity delete response.
type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DeleteTransitionResponse is the positional transition delete response.
type DeleteTransitionResponse struct {
	Success              bool   `json:"success"`
	Message              string `json:"message"`
	RemainingTransitions *int   `json:"remaining_transitions,omitempty"`
}

// ComputeRequest runs an input string on a machine.
type ComputeRequest struct {
	InputString string `json:"input_string"`
	MaxSteps    int    `json:"max_steps,omitempty"`
	ShowTrace   bool   `json:"show_trace,omitempty"`
}

// TraceStep is one step of an execution trace.
type TraceStep struct {
	Step        int      `json:"step"`
	State       string   `json:"state"`
	InputSymbol *string  `json:"input_symbol"`
	Stack       []string `json:"stack"`
}

// ComputeResult is the outcome of a server-side run.
type ComputeResult struct {
	Accepted   bool        `json:"accepted"`
	FinalState string      `json:"final_state"`
	FinalStack []string    `json:"final_stack"`
	StepsTaken int         `json:"steps_taken"`
	Trace      []TraceStep `json:"trace,omitempty"`
	Reason     string      `json:"reason,omitempty"`
}

// Violation is one determinism violation record.
type Violation struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ValidationResult is the determinism check response.
type ValidationResult struct {
	IsValid    bool        `json:"is_valid"`
	Violations []Violation `json:"violations"`
	Message    string      `json:"message"`
}

// ExportFormat selects the export serialization.
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportYAML ExportFormat = "yaml"
	ExportXML  ExportFormat = "xml"
)

// VizFormat selects the visualization payload flavor.
type VizFormat string

const (
	VizCytoscape VizFormat = "cytoscape"
	VizDOT       VizFormat = "dot"
	VizD3        VizFormat = "d3"
)

// Node is one vertex of a visualization snapshot.
type Node struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Initial   bool   `json:"initial,omitempty"`
	Accepting bool   `json:"accepting,omitempty"`
}

// Edge is one labeled directed edge of a visualization snapshot.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

// Snapshot is the render-engine-agnostic graph payload (d3 flavor).
// Element identity is NOT stable across snapshots: the server may reorder
// or renumber freely, so consumers must rebuild rather than diff.
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// IsEmpty reports whether the snapshot has nothing to render.
func (s *Snapshot) IsEmpty() bool {
	return s == nil || len(s.Nodes) == 0
}

// Equal reports structural equality with other. Order matters: the
// underlying model guarantees no stable identity, so a reordered payload
// counts as a different snapshot.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.Nodes) != len(other.Nodes) || len(s.Edges) != len(other.Edges) {
		return false
	}
	for i := range s.Nodes {
		if s.Nodes[i] != other.Nodes[i] {
			return false
		}
	}
	for i := range s.Edges {
		if s.Edges[i] != other.Edges[i] {
			return false
		}
	}
	return true
}
