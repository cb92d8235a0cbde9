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
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/pdasync/pkg/dpda"
)

func runStatesShow(cmd *cobra.Command, args []string) error {
	cfg, err := app.bindings.States(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return OutputJSON(cfg)
	}
	if cfg == nil {
		fmt.Printf("Machine %s has no states configured yet\n", args[0])
		return nil
	}
	printKV([][2]string{
		{"States", strings.Join(cfg.States, ", ")},
		{"Initial", cfg.InitialState},
		{"Accepting", strings.Join(cfg.AcceptStates, ", ")},
	})
	return nil
}

func runStatesSet(cmd *cobra.Command, args []string) error {
	err := app.bindings.SetStates(cmd.Context(), args[0], dpda.StatesConfig{
		States:       stateNames,
		InitialState: initialState,
		AcceptStates: acceptingStates,
	})
	if err != nil {
		return err
	}
	fmt.Printf("States of %s replaced (%d states)\n", args[0], len(stateNames))
	return nil
}

func runAlphabetsShow(cmd *cobra.Command, args []string) error {
	cfg, err := app.bindings.Alphabets(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return OutputJSON(cfg)
	}
	if cfg == nil {
		fmt.Printf("Machine %s has no alphabets configured yet\n", args[0])
		return nil
	}
	printKV([][2]string{
		{"Input alphabet", strings.Join(cfg.InputAlphabet, ", ")},
		{"Stack alphabet", strings.Join(cfg.StackAlphabet, ", ")},
		{"Initial stack", cfg.InitialStackSymbol},
	})
	return nil
}

func runAlphabetsSet(cmd *cobra.Command, args []string) error {
	err := app.bindings.SetAlphabets(cmd.Context(), args[0], dpda.AlphabetsConfig{
		InputAlphabet:      inputSymbols,
		StackAlphabet:      stackSymbols,
		InitialStackSymbol: initialStack,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Alphabets of %s replaced\n", args[0])
	return nil
}
