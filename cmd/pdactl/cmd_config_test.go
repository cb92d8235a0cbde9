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
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/pdasync/pkg/bind"
	"github.com/AleutianAI/pdasync/pkg/cache"
	"github.com/AleutianAI/pdasync/pkg/dpda"
	"github.com/AleutianAI/pdasync/pkg/session"
	"github.com/AleutianAI/pdasync/pkg/transport"
)

// installTestApp points the command globals at a fake server for the
// duration of one test.
func installTestApp(t *testing.T, handler http.Handler) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	provider := session.NewProvider(session.WithStore(session.NewMemoryStore()))
	api := dpda.NewClient(transport.New(srv.URL, provider))

	prev := app
	app = &App{
		api:      api,
		provider: provider,
		bindings: bind.New(api, cache.New()),
	}
	t.Cleanup(func() { app = prev })
}

// A freshly created machine has neither states nor alphabets; showing
// them must report that instead of dereferencing a missing config.
func TestShowUnconfiguredMachine(t *testing.T) {
	installTestApp(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"m-1","name":"E"}`))
	}))
	jsonOutput = false

	// The run functions are invoked directly rather than through
	// Execute, so the commands have no context of their own.
	statesShowCmd.SetContext(context.Background())
	alphabetsShowCmd.SetContext(context.Background())

	require.NotPanics(t, func() {
		require.NoError(t, runStatesShow(statesShowCmd, []string{"m-1"}))
	})
	require.NotPanics(t, func() {
		require.NoError(t, runAlphabetsShow(alphabetsShowCmd, []string{"m-1"}))
	})
}
