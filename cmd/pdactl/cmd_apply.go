// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/pdasync/pkg/dpda"
)

// machineSpec is the YAML shape consumed by `pdactl apply -f`.
type machineSpec struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	States *struct {
		States       []string `yaml:"states"`
		InitialState string   `yaml:"initial_state"`
		AcceptStates []string `yaml:"accept_states"`
	} `yaml:"states"`

	Alphabets *struct {
		InputAlphabet      []string `yaml:"input_alphabet"`
		StackAlphabet      []string `yaml:"stack_alphabet"`
		InitialStackSymbol string   `yaml:"initial_stack_symbol"`
	} `yaml:"alphabets"`

	Transitions []struct {
		FromState   string   `yaml:"from_state"`
		InputSymbol *string  `yaml:"input_symbol"`
		StackTop    *string  `yaml:"stack_top"`
		ToState     string   `yaml:"to_state"`
		StackPush   []string `yaml:"stack_push"`
	} `yaml:"transitions"`
}

// runApply creates and configures a machine from a declarative file.
// Steps run in dependency order; a failure aborts with the machine left
// in its partial state so the user can inspect and continue by hand.
func runApply(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(applyFile)
	if err != nil {
		return err
	}
	var spec machineSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return fmt.Errorf("parsing %s: %w", applyFile, err)
	}

	ctx := cmd.Context()
	m, err := app.bindings.CreateMachine(ctx, dpda.CreateRequest{
		Name:        spec.Name,
		Description: spec.Description,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Created %q with id %s\n", m.Name, m.ID)

	if spec.States != nil {
		err := app.bindings.SetStates(ctx, m.ID, dpda.StatesConfig{
			States:       spec.States.States,
			InitialState: spec.States.InitialState,
			AcceptStates: spec.States.AcceptStates,
		})
		if err != nil {
			return fmt.Errorf("applying states to %s: %w", m.ID, err)
		}
	}

	if spec.Alphabets != nil {
		err := app.bindings.SetAlphabets(ctx, m.ID, dpda.AlphabetsConfig{
			InputAlphabet:      spec.Alphabets.InputAlphabet,
			StackAlphabet:      spec.Alphabets.StackAlphabet,
			InitialStackSymbol: spec.Alphabets.InitialStackSymbol,
		})
		if err != nil {
			return fmt.Errorf("applying alphabets to %s: %w", m.ID, err)
		}
	}

	for i, tr := range spec.Transitions {
		push := tr.StackPush
		if push == nil {
			push = []string{}
		}
		err := app.bindings.AddTransition(ctx, m.ID, dpda.Transition{
			FromState:   tr.FromState,
			InputSymbol: tr.InputSymbol,
			StackTop:    tr.StackTop,
			ToState:     tr.ToState,
			StackPush:   push,
		})
		if err != nil {
			return fmt.Errorf("adding transition %d to %s: %w", i, m.ID, err)
		}
	}
	fmt.Printf("Applied %d transition(s)\n", len(spec.Transitions))

	result, err := app.bindings.Validate(ctx, m.ID)
	if err != nil {
		return fmt.Errorf("validating %s: %w", m.ID, err)
	}
	if result.IsValid {
		fmt.Println("Machine is deterministic.")
	} else {
		fmt.Printf("Machine has %d determinism violation(s); run `pdactl validate %s`.\n",
			len(result.Violations), m.ID)
	}
	return nil
}
