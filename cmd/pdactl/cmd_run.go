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
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/pdasync/pkg/dpda"
	"github.com/AleutianAI/pdasync/pkg/viz"
)

func runCompute(cmd *cobra.Command, args []string) error {
	req := dpda.ComputeRequest{InputString: args[1], MaxSteps: maxSteps, ShowTrace: showTrace}

	result, err := app.bindings.Compute(cmd.Context(), args[0], req)
	if err != nil {
		return err
	}
	if jsonOutput {
		return OutputJSON(result)
	}

	verdict := "REJECTED"
	if result.Accepted {
		verdict = "ACCEPTED"
	}
	heading(fmt.Sprintf("%s in %d step(s)", verdict, result.StepsTaken))
	rows := [][2]string{
		{"Final state", result.FinalState},
		{"Final stack", strings.Join(result.FinalStack, " ")},
	}
	if result.Reason != "" {
		rows = append(rows, [2]string{"Reason", result.Reason})
	}
	printKV(rows)

	if showTrace {
		fmt.Println()
		trRows := make([][]string, 0, len(result.Trace))
		for _, step := range result.Trace {
			trRows = append(trRows, []string{
				fmt.Sprintf("%d", step.Step),
				step.State,
				symbolOrEpsilon(step.InputSymbol),
				strings.Join(step.Stack, " "),
			})
		}
		printTable([]string{"STEP", "STATE", "READ", "STACK"}, trRows)
	}
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	result, err := app.bindings.Validate(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return OutputJSON(result)
	}

	if result.IsValid {
		fmt.Println("Deterministic: no violations.")
		return nil
	}
	heading(fmt.Sprintf("%d violation(s)", len(result.Violations)))
	rows := make([][]string, 0, len(result.Violations))
	for _, v := range result.Violations {
		rows = append(rows, []string{v.Type, v.Description})
	}
	printTable([]string{"TYPE", "DESCRIPTION"}, rows)
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	data, err := app.api.Export(cmd.Context(), args[0], dpda.ExportFormat(exportFormat))
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func runVisualize(cmd *cobra.Command, args []string) error {
	if vizFormat != string(dpda.VizD3) && !showLayout {
		raw, err := app.api.VisualizeRaw(cmd.Context(), args[0], dpda.VizFormat(vizFormat))
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(raw)
		return err
	}

	snap, err := app.bindings.Visualize(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !showLayout {
		return OutputJSON(snap)
	}

	// Drive the graph through the rendering lifecycle so positions come
	// from the same engine an embedding view would use.
	controller := viz.NewController(viz.NewForceEngine,
		viz.WithControllerLogger(app.logger.Slog()))
	defer controller.Close()

	controller.Begin()
	if err := controller.Apply(snap); err != nil {
		return err
	}

	engine, ok := controller.Engine().(*viz.ForceEngine)
	if !ok {
		return fmt.Errorf("no rendered graph for %s", args[0])
	}
	positions := engine.Positions()

	heading(fmt.Sprintf("Layout for %s (%d nodes, %d edges)", args[0], len(snap.Nodes), len(snap.Edges)))
	rows := make([][]string, 0, len(snap.Nodes))
	for _, node := range snap.Nodes {
		p := positions[node.ID]
		marks := ""
		if node.Initial {
			marks += ">"
		}
		if node.Accepting {
			marks += "*"
		}
		rows = append(rows, []string{
			node.ID, node.Label, marks,
			fmt.Sprintf("%.1f", p.X), fmt.Sprintf("%.1f", p.Y),
		})
	}
	printTable([]string{"NODE", "LABEL", "", "X", "Y"}, rows)
	return nil
}
