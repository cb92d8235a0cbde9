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

func runMachineList(cmd *cobra.Command, args []string) error {
	list, err := app.bindings.Machines(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput {
		return OutputJSON(list)
	}

	heading(fmt.Sprintf("Automata (%d)", list.Total))
	rows := make([][]string, 0, len(list.DPDAs))
	for _, m := range list.DPDAs {
		valid := "unknown"
		if m.IsValid != nil {
			valid = fmt.Sprintf("%t", *m.IsValid)
		}
		rows = append(rows, []string{m.ID, m.Name, valid})
	}
	printTable([]string{"ID", "NAME", "VALID"}, rows)
	return nil
}

func runMachineGet(cmd *cobra.Command, args []string) error {
	m, err := app.bindings.Machine(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return OutputJSON(m)
	}

	heading(m.Name)
	rows := [][2]string{
		{"ID", m.ID},
		{"Description", m.Description},
	}
	if m.States != nil {
		rows = append(rows,
			[2]string{"States", strings.Join(m.States.States, ", ")},
			[2]string{"Initial state", m.States.InitialState},
			[2]string{"Accepting", strings.Join(m.States.AcceptStates, ", ")},
		)
	}
	if m.Alphabets != nil {
		rows = append(rows,
			[2]string{"Input alphabet", strings.Join(m.Alphabets.InputAlphabet, ", ")},
			[2]string{"Stack alphabet", strings.Join(m.Alphabets.StackAlphabet, ", ")},
			[2]string{"Initial stack", m.Alphabets.InitialStackSymbol},
		)
	}
	rows = append(rows, [2]string{"Transitions", fmt.Sprintf("%d", len(m.Transitions))})
	printKV(rows)
	return nil
}

func runMachineCreate(cmd *cobra.Command, args []string) error {
	m, err := app.bindings.CreateMachine(cmd.Context(), dpda.CreateRequest{
		Name:        args[0],
		Description: machineDesc,
	})
	if err != nil {
		return err
	}
	if jsonOutput {
		return OutputJSON(m)
	}
	fmt.Printf("Created %q with id %s\n", m.Name, m.ID)
	return nil
}

func runMachineRename(cmd *cobra.Command, args []string) error {
	req := dpda.UpdateRequest{}
	if cmd.Flags().Changed("name") {
		req.Name = &machineName
	}
	if cmd.Flags().Changed("description") {
		req.Description = &machineDesc
	}
	if req.Name == nil && req.Description == nil {
		return fmt.Errorf("nothing to change: pass --name or --description")
	}

	changes, err := app.bindings.UpdateMachine(cmd.Context(), args[0], req)
	if err != nil {
		return err
	}
	if jsonOutput {
		return OutputJSON(changes)
	}
	fmt.Printf("Updated %s (%d field(s) changed)\n", args[0], len(changes.Changes))
	return nil
}

func runMachineDelete(cmd *cobra.Command, args []string) error {
	resp, err := app.bindings.DeleteMachine(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return OutputJSON(resp)
	}
	fmt.Printf("Deleted %s\n", args[0])
	return nil
}
