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
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath string
	jsonOutput bool

	machineName string
	machineDesc string

	stateNames      []string
	initialState    string
	acceptingStates []string

	inputSymbols []string
	stackSymbols []string
	initialStack string

	fromState    string
	inputSymbol  string
	epsilonInput bool
	stackTop     string
	anyStackTop  bool
	toState      string
	pushSymbols  []string

	maxSteps     int
	showTrace    bool
	exportFormat string
	vizFormat    string
	showLayout   bool

	applyFile string

	rootCmd = &cobra.Command{
		Use:   "pdactl",
		Short: "A cli for designing and running deterministic pushdown automata remotely",
		Long: `pdactl talks to a DPDA designer service. It maintains an anonymous
session identity, caches reads locally, and refetches after every write
instead of patching cached state.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			app = newApp(cfg)
			return nil
		},
	}

	// --- Machines ---
	machineCmd = &cobra.Command{
		Use:   "machine",
		Short: "Manage automaton definitions",
	}
	machineListCmd = &cobra.Command{
		Use:   "list",
		Short: "List all automata",
		RunE:  runMachineList, // Defined in cmd_machine.go
	}
	machineGetCmd = &cobra.Command{
		Use:   "get [id]",
		Short: "Show one automaton in full",
		Args:  cobra.ExactArgs(1),
		RunE:  runMachineGet, // Defined in cmd_machine.go
	}
	machineCreateCmd = &cobra.Command{
		Use:   "create [name]",
		Short: "Create a new automaton",
		Args:  cobra.ExactArgs(1),
		RunE:  runMachineCreate, // Defined in cmd_machine.go
	}
	machineRenameCmd = &cobra.Command{
		Use:   "rename [id]",
		Short: "Rename an automaton or change its description",
		Args:  cobra.ExactArgs(1),
		RunE:  runMachineRename, // Defined in cmd_machine.go
	}
	machineDeleteCmd = &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete an automaton and everything cached under it",
		Args:  cobra.ExactArgs(1),
		RunE:  runMachineDelete, // Defined in cmd_machine.go
	}

	// --- Configuration ---
	statesCmd = &cobra.Command{
		Use:   "states",
		Short: "Manage the state set of an automaton",
	}
	statesShowCmd = &cobra.Command{
		Use:   "show [id]",
		Short: "Show the configured states",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatesShow, // Defined in cmd_config.go
	}
	statesSetCmd = &cobra.Command{
		Use:   "set [id]",
		Short: "Replace the state configuration",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatesSet, // Defined in cmd_config.go
	}
	alphabetsCmd = &cobra.Command{
		Use:   "alphabets",
		Short: "Manage the input and stack alphabets of an automaton",
	}
	alphabetsShowCmd = &cobra.Command{
		Use:   "show [id]",
		Short: "Show the configured alphabets",
		Args:  cobra.ExactArgs(1),
		RunE:  runAlphabetsShow, // Defined in cmd_config.go
	}
	alphabetsSetCmd = &cobra.Command{
		Use:   "set [id]",
		Short: "Replace the alphabet configuration",
		Args:  cobra.ExactArgs(1),
		RunE:  runAlphabetsSet, // Defined in cmd_config.go
	}

	// --- Transitions ---
	transitionCmd = &cobra.Command{
		Use:   "transition",
		Short: "Manage the transition table of an automaton",
	}
	transitionListCmd = &cobra.Command{
		Use:   "list [id]",
		Short: "List transitions with their current positions",
		Args:  cobra.ExactArgs(1),
		RunE:  runTransitionList, // Defined in cmd_transition.go
	}
	transitionAddCmd = &cobra.Command{
		Use:   "add [id]",
		Short: "Add a transition",
		Args:  cobra.ExactArgs(1),
		RunE:  runTransitionAdd, // Defined in cmd_transition.go
	}
	transitionDeleteCmd = &cobra.Command{
		Use:   "delete [id] [position]",
		Short: "Delete the transition at a position (positions shift afterward)",
		Args:  cobra.ExactArgs(2),
		RunE:  runTransitionDelete, // Defined in cmd_transition.go
	}
	transitionUpdateCmd = &cobra.Command{
		Use:   "update [id] [position]",
		Short: "Replace the transition at a position",
		Args:  cobra.ExactArgs(2),
		RunE:  runTransitionUpdate, // Defined in cmd_transition.go
	}

	// --- Execution ---
	computeCmd = &cobra.Command{
		Use:   "compute [id] [input]",
		Short: "Run the automaton on an input string",
		Args:  cobra.ExactArgs(2),
		RunE:  runCompute, // Defined in cmd_run.go
	}
	validateCmd = &cobra.Command{
		Use:   "validate [id]",
		Short: "Check the automaton for determinism violations",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate, // Defined in cmd_run.go
	}
	exportCmd = &cobra.Command{
		Use:   "export [id]",
		Short: "Export the automaton definition",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport, // Defined in cmd_run.go
	}
	visualizeCmd = &cobra.Command{
		Use:   "visualize [id]",
		Short: "Fetch the automaton graph and lay it out locally",
		Args:  cobra.ExactArgs(1),
		RunE:  runVisualize, // Defined in cmd_run.go
	}

	// --- Session ---
	sessionCmd = &cobra.Command{
		Use:   "session",
		Short: "Manage the anonymous session identity",
	}
	sessionShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Show whether a session identity exists, without creating one",
		RunE:  runSessionShow, // Defined in cmd_session.go
	}
	sessionResetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Discard the current identity and mint a fresh one",
		RunE:  runSessionReset, // Defined in cmd_session.go
	}
	sessionImportCmd = &cobra.Command{
		Use:   "import [token]",
		Short: "Adopt an externally supplied session token",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionImport, // Defined in cmd_session.go
	}

	// --- Utilities ---
	applyCmd = &cobra.Command{
		Use:   "apply",
		Short: "Create and fully configure an automaton from a YAML file",
		RunE:  runApply, // Defined in cmd_apply.go
	}
	cacheStatsCmd = &cobra.Command{
		Use:   "cache-stats",
		Short: "Show resource cache counters for this invocation",
		RunE:  runCacheStats, // Defined in cmd_session.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "pdactl.yaml",
		"Path to the configuration file (missing file means defaults)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Emit machine-readable JSON instead of tables")

	rootCmd.AddCommand(machineCmd)
	machineCmd.AddCommand(machineListCmd)
	machineCmd.AddCommand(machineGetCmd)
	machineCmd.AddCommand(machineCreateCmd)
	machineCmd.AddCommand(machineRenameCmd)
	machineCmd.AddCommand(machineDeleteCmd)
	machineCreateCmd.Flags().StringVar(&machineDesc, "description", "", "Optional description")
	machineRenameCmd.Flags().StringVar(&machineName, "name", "", "New name")
	machineRenameCmd.Flags().StringVar(&machineDesc, "description", "", "New description")

	rootCmd.AddCommand(statesCmd)
	statesCmd.AddCommand(statesShowCmd)
	statesCmd.AddCommand(statesSetCmd)
	statesSetCmd.Flags().StringSliceVar(&stateNames, "states", nil, "Comma separated state names")
	statesSetCmd.Flags().StringVar(&initialState, "initial", "", "Initial state")
	statesSetCmd.Flags().StringSliceVar(&acceptingStates, "accepting", nil, "Comma separated accepting states")

	rootCmd.AddCommand(alphabetsCmd)
	alphabetsCmd.AddCommand(alphabetsShowCmd)
	alphabetsCmd.AddCommand(alphabetsSetCmd)
	alphabetsSetCmd.Flags().StringSliceVar(&inputSymbols, "input", nil, "Comma separated input symbols")
	alphabetsSetCmd.Flags().StringSliceVar(&stackSymbols, "stack", nil, "Comma separated stack symbols")
	alphabetsSetCmd.Flags().StringVar(&initialStack, "initial-stack", "", "Initial stack symbol")

	rootCmd.AddCommand(transitionCmd)
	transitionCmd.AddCommand(transitionListCmd)
	transitionCmd.AddCommand(transitionAddCmd)
	transitionCmd.AddCommand(transitionDeleteCmd)
	transitionCmd.AddCommand(transitionUpdateCmd)
	for _, cmd := range []*cobra.Command{transitionAddCmd, transitionUpdateCmd} {
		cmd.Flags().StringVar(&fromState, "from", "", "Source state")
		cmd.Flags().StringVar(&inputSymbol, "input", "", "Input symbol consumed")
		cmd.Flags().BoolVar(&epsilonInput, "epsilon", false, "Consume no input (epsilon move)")
		cmd.Flags().StringVar(&stackTop, "stack-top", "", "Required stack top symbol")
		cmd.Flags().BoolVar(&anyStackTop, "any-top", false, "Do not inspect the stack top")
		cmd.Flags().StringVar(&toState, "to", "", "Destination state")
		cmd.Flags().StringSliceVar(&pushSymbols, "push", nil,
			"Symbols to push, first listed ends on top; empty pops")
	}

	rootCmd.AddCommand(computeCmd)
	computeCmd.Flags().IntVar(&maxSteps, "max-steps", 0, "Step limit (0 uses the server default)")
	computeCmd.Flags().BoolVar(&showTrace, "trace", false, "Include the execution trace")
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Export format: json, yaml, or xml")
	rootCmd.AddCommand(visualizeCmd)
	visualizeCmd.Flags().StringVar(&vizFormat, "format", "d3", "Graph payload flavor: d3, dot, or cytoscape")
	visualizeCmd.Flags().BoolVar(&showLayout, "layout", false, "Run the local layout engine and print positions")

	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionResetCmd)
	sessionCmd.AddCommand(sessionImportCmd)

	rootCmd.AddCommand(applyCmd)
	applyCmd.Flags().StringVarP(&applyFile, "file", "f", "", "YAML definition to apply")
	applyCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(cacheStatsCmd)
}
