// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// pdactl is the command line client for a remote DPDA designer service.
// It keeps a durable anonymous session, caches reads with per-resource
// staleness windows, and invalidates instead of patching after writes.
package main

import (
	"errors"
	"os"

	"github.com/AleutianAI/pdasync/pkg/transport"
)

func main() {
	err := rootCmd.Execute()
	if app != nil {
		app.Close()
	}
	if err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode distinguishes remote rejections from local failures so
// scripts can branch on them.
func exitCode(err error) int {
	var apiErr *transport.APIError
	if errors.As(err, &apiErr) {
		return CLIExitFindings
	}
	return CLIExitError
}
