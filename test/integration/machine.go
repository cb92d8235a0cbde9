// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package integration

import (
	"fmt"

	"github.com/AleutianAI/pdasync/pkg/dpda"
)

// runMachine interprets a configured machine on an input string.
//
// The stack is modeled with the top at index 0. A push sequence is
// written stack-downward: the first listed symbol ends on top. Input
// symbols are single characters. Transitions are tried in table order
// and the first applicable one fires; on a deterministic machine at
// most one applies.
func runMachine(m *dpda.Machine, req dpda.ComputeRequest) dpda.ComputeResult {
	maxSteps := req.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}

	accepting := make(map[string]bool, len(m.States.AcceptStates))
	for _, st := range m.States.AcceptStates {
		accepting[st] = true
	}

	state := m.States.InitialState
	stack := []string{m.Alphabets.InitialStackSymbol}
	input := []rune(req.InputString)
	pos := 0
	steps := 0

	var trace []dpda.TraceStep
	if req.ShowTrace {
		trace = append(trace, dpda.TraceStep{Step: 0, State: state, Stack: copyStack(stack)})
	}

	result := func(accepted bool, reason string) dpda.ComputeResult {
		return dpda.ComputeResult{
			Accepted:   accepted,
			FinalState: state,
			FinalStack: copyStack(stack),
			StepsTaken: steps,
			Trace:      trace,
			Reason:     reason,
		}
	}

	for {
		if pos == len(input) && accepting[state] {
			return result(true, "")
		}
		if steps >= maxSteps {
			return result(false, fmt.Sprintf("step limit of %d exceeded", maxSteps))
		}

		tr, ok := applicableTransition(m, state, input, pos, stack)
		if !ok {
			if pos < len(input) {
				return result(false, "input not fully consumed")
			}
			return result(false, "halted in a non-accepting state")
		}

		var consumed *string
		if tr.InputSymbol != nil {
			consumed = tr.InputSymbol
			pos++
		}
		if tr.StackTop != nil {
			stack = stack[1:]
		}
		stack = append(copyStack(tr.StackPush), stack...)
		state = tr.ToState
		steps++

		if req.ShowTrace {
			trace = append(trace, dpda.TraceStep{
				Step:        steps,
				State:       state,
				InputSymbol: consumed,
				Stack:       copyStack(stack),
			})
		}
	}
}

// applicableTransition finds the first rule that fires in the current
// configuration.
func applicableTransition(m *dpda.Machine, state string, input []rune, pos int, stack []string) (dpda.Transition, bool) {
	for _, tr := range m.Transitions {
		if tr.FromState != state {
			continue
		}
		if tr.InputSymbol != nil {
			if pos >= len(input) || string(input[pos]) != *tr.InputSymbol {
				continue
			}
		}
		if tr.StackTop != nil {
			if len(stack) == 0 || stack[0] != *tr.StackTop {
				continue
			}
		}
		return tr, true
	}
	return dpda.Transition{}, false
}

func copyStack(stack []string) []string {
	out := make([]string, len(stack))
	copy(out, stack)
	return out
}

// validateMachine runs the determinism and referential checks the real
// service performs.
func validateMachine(m *dpda.Machine) dpda.ValidationResult {
	var violations []dpda.Violation
	add := func(kind, format string, args ...any) {
		violations = append(violations, dpda.Violation{
			Type:        kind,
			Description: fmt.Sprintf(format, args...),
		})
	}

	if m.States == nil {
		add("missing_config", "no states configured")
	}
	if m.Alphabets == nil {
		add("missing_config", "no alphabets configured")
	}

	states := map[string]bool{}
	inputSyms := map[string]bool{}
	stackSyms := map[string]bool{}
	if m.States != nil {
		for _, st := range m.States.States {
			states[st] = true
		}
	}
	if m.Alphabets != nil {
		for _, sym := range m.Alphabets.InputAlphabet {
			inputSyms[sym] = true
		}
		for _, sym := range m.Alphabets.StackAlphabet {
			stackSyms[sym] = true
		}
	}

	for i, tr := range m.Transitions {
		if m.States != nil {
			if !states[tr.FromState] {
				add("unknown_state", "transition %d references unknown state %q", i, tr.FromState)
			}
			if !states[tr.ToState] {
				add("unknown_state", "transition %d references unknown state %q", i, tr.ToState)
			}
		}
		if m.Alphabets != nil {
			if tr.InputSymbol != nil && !inputSyms[*tr.InputSymbol] {
				add("unknown_symbol", "transition %d reads %q outside the input alphabet", i, *tr.InputSymbol)
			}
			if tr.StackTop != nil && !stackSyms[*tr.StackTop] {
				add("unknown_symbol", "transition %d expects stack top %q outside the stack alphabet", i, *tr.StackTop)
			}
			for _, sym := range tr.StackPush {
				if !stackSyms[sym] {
					add("unknown_symbol", "transition %d pushes %q outside the stack alphabet", i, sym)
				}
			}
		}
	}

	// Two rules conflict when some configuration satisfies both: equal
	// source states and overlapping input/stack conditions, where a nil
	// condition overlaps everything.
	for i := 0; i < len(m.Transitions); i++ {
		for j := i + 1; j < len(m.Transitions); j++ {
			a, b := m.Transitions[i], m.Transitions[j]
			if a.FromState != b.FromState {
				continue
			}
			if symbolsOverlap(a.InputSymbol, b.InputSymbol) && symbolsOverlap(a.StackTop, b.StackTop) {
				add("nondeterminism", "transitions %d and %d can fire in the same configuration", i, j)
			}
		}
	}

	result := dpda.ValidationResult{
		IsValid:    len(violations) == 0,
		Violations: violations,
	}
	if result.IsValid {
		result.Violations = []dpda.Violation{}
		result.Message = "machine is deterministic"
	} else {
		result.Message = fmt.Sprintf("%d violation(s) found", len(violations))
	}
	return result
}

func symbolsOverlap(a, b *string) bool {
	if a == nil || b == nil {
		return true
	}
	return *a == *b
}
