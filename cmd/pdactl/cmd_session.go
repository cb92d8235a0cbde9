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

	"github.com/spf13/cobra"
)

func runSessionShow(cmd *cobra.Command, args []string) error {
	token, ok := app.provider.Peek()
	if jsonOutput {
		return OutputJSON(map[string]any{"present": ok, "token": token})
	}
	if !ok {
		fmt.Println("No session identity yet; one is created on the first request.")
		return nil
	}
	fmt.Printf("Session identity: %s\n", token)
	return nil
}

func runSessionReset(cmd *cobra.Command, args []string) error {
	token := app.provider.Reset()
	// Everything cached belongs to the old identity's view of the world.
	app.bindings.Cache().Clear()
	if jsonOutput {
		return OutputJSON(map[string]any{"token": token})
	}
	fmt.Printf("New session identity: %s\n", token)
	return nil
}

func runSessionImport(cmd *cobra.Command, args []string) error {
	if err := app.provider.Import(args[0]); err != nil {
		return err
	}
	app.bindings.Cache().Clear()
	fmt.Println("Session identity imported.")
	return nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	stats := app.bindings.Cache().Snapshot()
	if jsonOutput {
		return OutputJSON(stats)
	}
	printKV([][2]string{
		{"Entries", fmt.Sprintf("%d", stats.Entries)},
		{"Hits", fmt.Sprintf("%d", stats.Hits)},
		{"Misses", fmt.Sprintf("%d", stats.Misses)},
		{"Invalidations", fmt.Sprintf("%d", stats.Invalidations)},
		{"Scope purges", fmt.Sprintf("%d", stats.Purges)},
	})
	return nil
}
