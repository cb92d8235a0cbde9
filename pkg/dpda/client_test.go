// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dpda

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/pdasync/pkg/transport"
)

// ids is a fixed-token session source for tests.
type ids struct{}

func (ids) GetOrCreate() string { return "9f2c6dd0-0b3f-4a3e-8c1d-55a0b2f4c6e1" }

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(transport.New(srv.URL, ids{})), srv
}

func strp(s string) *string { return &s }

func TestCreateValidatesBeforeNetwork(t *testing.T) {
	var hits int
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))

	_, err := c.Create(context.Background(), CreateRequest{Name: ""})
	require.Error(t, err)
	assert.Zero(t, hits, "invalid payloads must not reach the network")
}

func TestCreateAndGet(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/dpda/create":
			var req CreateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			json.NewEncoder(w).Encode(Machine{ID: "m-1", Name: req.Name, Description: req.Description})
		case r.Method == http.MethodGet && r.URL.Path == "/api/dpda/m-1":
			valid := true
			json.NewEncoder(w).Encode(Machine{ID: "m-1", Name: "even-zeroes", IsValid: &valid})
		default:
			http.NotFound(w, r)
		}
	}))

	m, err := c.Create(context.Background(), CreateRequest{Name: "even-zeroes", Description: "demo"})
	require.NoError(t, err)
	assert.Equal(t, "m-1", m.ID)

	got, err := c.Get(context.Background(), "m-1")
	require.NoError(t, err)
	require.NotNil(t, got.IsValid)
	assert.True(t, *got.IsValid)
}

func TestTransitionWireShape(t *testing.T) {
	var body map[string]any
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{}`))
	}))

	// Epsilon transition: input_symbol must serialize as an explicit null,
	// not be omitted.
	err := c.AddTransition(context.Background(), "m-1", Transition{
		FromState: "q0",
		StackTop:  strp("$"),
		ToState:   "q1",
		StackPush: []string{"A", "$"},
	})
	require.NoError(t, err)

	val, present := body["input_symbol"]
	assert.True(t, present, "input_symbol must be present on the wire")
	assert.Nil(t, val, "epsilon is an explicit null")
	assert.Equal(t, "$", body["stack_top"])
	assert.Equal(t, []any{"A", "$"}, body["stack_push"])
}

func TestPositionalOperationsBuildIndexPaths(t *testing.T) {
	var gotPath, gotMethod string
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		json.NewEncoder(w).Encode(DeleteTransitionResponse{Success: true})
	}))

	_, err := c.DeleteTransitionAt(context.Background(), "m-1", 3)
	require.NoError(t, err)
	assert.Equal(t, "/api/dpda/m-1/transition/3", gotPath)
	assert.Equal(t, http.MethodDelete, gotMethod)

	_, err = c.DeleteTransitionAt(context.Background(), "m-1", -1)
	assert.Error(t, err, "negative positions are rejected locally")
}

func TestMissingIDShortCircuits(t *testing.T) {
	var hits int
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))

	ctx := context.Background()
	_, err := c.Get(ctx, "")
	assert.ErrorIs(t, err, ErrMissingID)
	_, err = c.Transitions(ctx, "")
	assert.ErrorIs(t, err, ErrMissingID)
	_, err = c.Validate(ctx, "")
	assert.ErrorIs(t, err, ErrMissingID)
	assert.Zero(t, hits)
}

func TestSnapshotEqual(t *testing.T) {
	a := &Snapshot{
		Nodes: []Node{{ID: "q0", Label: "q0", Initial: true}, {ID: "q1", Label: "q1"}},
		Edges: []Edge{{Source: "q0", Target: "q1", Label: "0, $ / A$"}},
	}
	b := &Snapshot{
		Nodes: []Node{{ID: "q0", Label: "q0", Initial: true}, {ID: "q1", Label: "q1"}},
		Edges: []Edge{{Source: "q0", Target: "q1", Label: "0, $ / A$"}},
	}
	assert.True(t, a.Equal(b))

	// Reordering counts as a structural change: element identity is not
	// stable across snapshots.
	c := &Snapshot{
		Nodes: []Node{{ID: "q1", Label: "q1"}, {ID: "q0", Label: "q0", Initial: true}},
		Edges: b.Edges,
	}
	assert.False(t, a.Equal(c))

	assert.False(t, a.Equal(nil))
	var nilSnap *Snapshot
	assert.True(t, nilSnap.Equal(nil))
	assert.True(t, nilSnap.IsEmpty())
	assert.False(t, a.IsEmpty())
}
