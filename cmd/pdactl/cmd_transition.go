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
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/pdasync/pkg/dpda"
)

func runTransitionList(cmd *cobra.Command, args []string) error {
	list, err := app.bindings.Transitions(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return OutputJSON(list)
	}

	heading(fmt.Sprintf("Transitions of %s (%d)", args[0], list.Total))
	rows := make([][]string, 0, len(list.Transitions))
	for i, tr := range list.Transitions {
		push := "ε"
		if len(tr.StackPush) > 0 {
			push = strings.Join(tr.StackPush, " ")
		}
		rows = append(rows, []string{
			strconv.Itoa(i),
			tr.FromState,
			symbolOrEpsilon(tr.InputSymbol),
			symbolOrEpsilon(tr.StackTop),
			tr.ToState,
			push,
		})
	}
	printTable([]string{"POS", "FROM", "INPUT", "TOP", "TO", "PUSH"}, rows)
	fmt.Println("Positions are only stable until the next edit.")
	return nil
}

// transitionFromFlags assembles a Transition from the shared flag set.
// An omitted --push pops the matched symbol.
func transitionFromFlags(cmd *cobra.Command) (dpda.Transition, error) {
	tr := dpda.Transition{
		FromState: fromState,
		ToState:   toState,
		StackPush: pushSymbols,
	}
	if tr.StackPush == nil {
		tr.StackPush = []string{}
	}

	switch {
	case epsilonInput && cmd.Flags().Changed("input"):
		return tr, fmt.Errorf("--input and --epsilon are mutually exclusive")
	case !epsilonInput && !cmd.Flags().Changed("input"):
		return tr, fmt.Errorf("pass --input or --epsilon")
	case !epsilonInput:
		tr.InputSymbol = &inputSymbol
	}

	switch {
	case anyStackTop && cmd.Flags().Changed("stack-top"):
		return tr, fmt.Errorf("--stack-top and --any-top are mutually exclusive")
	case !anyStackTop && !cmd.Flags().Changed("stack-top"):
		return tr, fmt.Errorf("pass --stack-top or --any-top")
	case !anyStackTop:
		tr.StackTop = &stackTop
	}

	return tr, nil
}

func runTransitionAdd(cmd *cobra.Command, args []string) error {
	tr, err := transitionFromFlags(cmd)
	if err != nil {
		return err
	}
	if err := app.bindings.AddTransition(cmd.Context(), args[0], tr); err != nil {
		return err
	}
	fmt.Printf("Transition added to %s\n", args[0])
	return nil
}

func runTransitionDelete(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("position must be an integer: %w", err)
	}

	resp, err := app.bindings.DeleteTransitionAt(cmd.Context(), args[0], index)
	if err != nil {
		return err
	}
	if jsonOutput {
		return OutputJSON(resp)
	}
	if resp.RemainingTransitions != nil {
		fmt.Printf("Deleted position %d, %d transition(s) remain\n", index, *resp.RemainingTransitions)
	} else {
		fmt.Printf("Deleted position %d\n", index)
	}
	return nil
}

func runTransitionUpdate(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("position must be an integer: %w", err)
	}
	tr, err := transitionFromFlags(cmd)
	if err != nil {
		return err
	}

	if _, err := app.bindings.UpdateTransitionAt(cmd.Context(), args[0], index, tr); err != nil {
		return err
	}
	fmt.Printf("Replaced transition at position %d\n", index)
	return nil
}
