// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package viz

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/pdasync/pkg/dpda"
)

// recordingFactory counts engine constructions and destructions across
// all instances it has produced.
type recordingFactory struct {
	constructs int
	destroys   int
	mountErr   error

	// stateAtConstruct records the controller state observed at each
	// construction, for asserting construction never happens out of a
	// resolving fetch.
	stateAtConstruct []State
	controller       *Controller
}

type recordingEngine struct {
	factory   *recordingFactory
	mounted   *dpda.Snapshot
	destroyed int
}

func (f *recordingFactory) new() Engine {
	f.constructs++
	if f.controller != nil {
		f.stateAtConstruct = append(f.stateAtConstruct, f.controller.state)
	}
	return &recordingEngine{factory: f}
}

func (e *recordingEngine) Mount(snap *dpda.Snapshot) error {
	if err := e.factory.mountErr; err != nil {
		return err
	}
	e.mounted = snap
	return nil
}

func (e *recordingEngine) Destroy() {
	e.destroyed++
	e.factory.destroys++
}

func snapshot(nodes, edges int) *dpda.Snapshot {
	s := &dpda.Snapshot{}
	for i := 0; i < nodes; i++ {
		s.Nodes = append(s.Nodes, dpda.Node{ID: string(rune('a' + i)), Label: "q"})
	}
	for i := 0; i < edges; i++ {
		s.Edges = append(s.Edges, dpda.Edge{
			Source: string(rune('a' + i)),
			Target: string(rune('a' + i + 1)),
			Label:  "0, $ -> A$",
		})
	}
	return s
}

func newRecordedController() (*Controller, *recordingFactory) {
	f := &recordingFactory{}
	c := NewController(f.new)
	f.controller = c
	return c, f
}

func TestSnapshotSequenceLifecycle(t *testing.T) {
	c, f := newRecordedController()

	// S0: absent.
	c.Begin()
	assert.Equal(t, StateLoading, c.State())
	require.NoError(t, c.Apply(nil))
	assert.Equal(t, StateIdle, c.State())
	assert.Zero(t, f.constructs)

	// S1: 3 nodes, 2 edges.
	c.Begin()
	require.NoError(t, c.Apply(snapshot(3, 2)))
	assert.Equal(t, StateRendered, c.State())
	assert.Equal(t, 1, f.constructs)
	assert.Zero(t, f.destroys)

	// S2: 4 nodes, 3 edges — structural change, rebuild.
	c.Begin()
	require.NoError(t, c.Apply(snapshot(4, 3)))
	assert.Equal(t, StateRendered, c.State())
	assert.Equal(t, 2, f.constructs)
	assert.Equal(t, 1, f.destroys)

	// Absent again: tear down to Idle.
	c.Begin()
	require.NoError(t, c.Apply(&dpda.Snapshot{}))
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, 2, f.constructs)
	assert.Equal(t, 2, f.destroys)

	// Every construction happened while a fetch was resolving, never
	// out of Loading-at-rest or ErrorState.
	for _, st := range f.stateAtConstruct {
		assert.NotEqual(t, StateError, st)
	}
}

func TestEqualSnapshotDoesNotRebuild(t *testing.T) {
	c, f := newRecordedController()

	c.Begin()
	require.NoError(t, c.Apply(snapshot(3, 2)))
	require.NoError(t, c.Apply(snapshot(3, 2)))

	assert.Equal(t, 1, f.constructs)
	assert.Zero(t, f.destroys)
	assert.Equal(t, StateRendered, c.State())
}

func TestReorderedSnapshotRebuilds(t *testing.T) {
	c, f := newRecordedController()

	s1 := &dpda.Snapshot{Nodes: []dpda.Node{{ID: "q0"}, {ID: "q1"}}}
	s2 := &dpda.Snapshot{Nodes: []dpda.Node{{ID: "q1"}, {ID: "q0"}}}

	c.Begin()
	require.NoError(t, c.Apply(s1))
	require.NoError(t, c.Apply(s2))

	// No stable identity across snapshots: a reorder is a rebuild.
	assert.Equal(t, 2, f.constructs)
	assert.Equal(t, 1, f.destroys)
}

func TestFetchFailure(t *testing.T) {
	c, f := newRecordedController()

	c.Begin()
	c.Fail(errors.New("dpda not found"))

	assert.Equal(t, StateError, c.State())
	assert.EqualError(t, c.Err(), "dpda not found")
	assert.Zero(t, f.constructs, "no engine may exist in ErrorState")
	assert.Nil(t, c.Engine())

	// No automatic retry: the controller stays put until the caller
	// explicitly begins a new fetch.
	assert.Equal(t, StateError, c.State())
	c.Begin()
	assert.Equal(t, StateLoading, c.State())
	assert.NoError(t, c.Err())
}

func TestFailedRefreshKeepsRender(t *testing.T) {
	c, f := newRecordedController()

	c.Begin()
	require.NoError(t, c.Apply(snapshot(3, 2)))

	c.Begin()
	c.Fail(errors.New("transient"))

	assert.Equal(t, StateRendered, c.State())
	assert.Equal(t, 1, f.constructs)
	assert.Zero(t, f.destroys)
}

func TestCloseDestroysExactlyOnce(t *testing.T) {
	c, f := newRecordedController()

	c.Begin()
	require.NoError(t, c.Apply(snapshot(3, 2)))

	c.Close()
	c.Close()
	c.Close()

	assert.Equal(t, 1, f.destroys)
	assert.Equal(t, StateIdle, c.State())
	assert.Nil(t, c.Engine())
}

func TestCloseDuringFetchSkipsConstruction(t *testing.T) {
	c, f := newRecordedController()

	c.Begin()
	c.Close()
	require.NoError(t, c.Apply(snapshot(3, 2)))

	assert.Zero(t, f.constructs, "a resolution after Close must construct nothing")
	assert.Nil(t, c.Engine())
	assert.Equal(t, StateIdle, c.State())
}

func TestMountFailureReleasesInstance(t *testing.T) {
	c, f := newRecordedController()
	f.mountErr = errors.New("canvas unavailable")

	c.Begin()
	err := c.Apply(snapshot(3, 2))

	require.Error(t, err)
	assert.Equal(t, StateError, c.State())
	assert.Equal(t, 1, f.constructs)
	assert.Equal(t, 1, f.destroys, "a half-mounted instance must still be released")
	assert.Nil(t, c.Engine())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Idle", StateIdle.String())
	assert.Equal(t, "Loading", StateLoading.String())
	assert.Equal(t, "ErrorState", StateError.String())
	assert.Equal(t, "Rendered", StateRendered.String())
	assert.Equal(t, "State(42)", State(42).String())
}

func TestForceEngineDeterministic(t *testing.T) {
	snap := snapshot(4, 3)

	a := NewForceEngine().(*ForceEngine)
	b := NewForceEngine().(*ForceEngine)
	require.NoError(t, a.Mount(snap))
	require.NoError(t, b.Mount(snap))

	pa, pb := a.Positions(), b.Positions()
	require.Len(t, pa, 4)
	assert.Equal(t, pa, pb, "same snapshot must yield the same layout")

	// Distinct nodes end up at distinct positions.
	seen := make(map[Point]bool)
	for _, p := range pa {
		assert.False(t, seen[p])
		seen[p] = true
	}
}

func TestForceEngineDestroy(t *testing.T) {
	e := NewForceEngine().(*ForceEngine)
	require.NoError(t, e.Mount(snapshot(2, 1)))
	require.NotNil(t, e.Positions())

	e.Destroy()
	assert.Nil(t, e.Positions())
	assert.ErrorIs(t, e.Mount(snapshot(2, 1)), ErrEngineDestroyed)
}
