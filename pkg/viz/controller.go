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
	"fmt"
	"log/slog"
	"sync"

	"github.com/AleutianAI/pdasync/pkg/dpda"
)

// State is the controller lifecycle state.
type State int

const (
	// StateIdle has no data and no engine instance.
	StateIdle State = iota

	// StateLoading has a fetch in flight and no engine instance.
	StateLoading

	// StateError holds the failure of the last fetch. No engine
	// instance exists and no automatic retry happens; the next Begin is
	// an explicit caller decision.
	StateError

	// StateRendered has a live engine instance reflecting the current
	// snapshot.
	StateRendered
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateLoading:
		return "Loading"
	case StateError:
		return "ErrorState"
	case StateRendered:
		return "Rendered"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Controller owns a single engine instance and drives it from snapshot
// updates.
//
// # Behavior
//
//   - An engine exists only in Rendered. Construction happens when a
//     fetch resolves with a non-empty snapshot, never while Loading or
//     ErrorState persists.
//   - A structural change while Rendered destroys the live instance
//     completely and constructs a fresh one. Incremental update is
//     disallowed: element identity is not stable across snapshots.
//   - Close destroys the live instance exactly once on any path,
//     including while a fetch is still in flight; a resolution arriving
//     after Close constructs nothing.
//
// # Thread Safety
//
// Safe for concurrent use.
type Controller struct {
	mu      sync.Mutex
	state   State
	engine  Engine
	factory EngineFactory
	current *dpda.Snapshot
	lastErr error
	closed  bool
	logger  *slog.Logger
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithControllerLogger sets the lifecycle logger.
func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = logger }
}

// NewController creates an Idle controller that builds engine instances
// with factory.
func NewController(factory EngineFactory, opts ...ControllerOption) *Controller {
	c := &Controller{
		state:   StateIdle,
		factory: factory,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Begin marks a visualization fetch as in flight. From Rendered the live
// instance stays mounted (the refresh resolves through Apply); from Idle
// or ErrorState the controller moves to Loading.
func (c *Controller) Begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state == StateRendered {
		return
	}
	c.lastErr = nil
	c.setState(StateLoading)
}

// Fail records a fetch failure. Only a Loading fetch moves to
// ErrorState; a failed refresh of a Rendered view keeps the last good
// render and is just logged.
func (c *Controller) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.state != StateLoading {
		c.logger.Warn("visualization refresh failed", "state", c.state.String(), "error", err)
		return
	}
	c.lastErr = err
	c.setState(StateError)
}

// Apply resolves a fetch with snap. An absent snapshot tears down to
// Idle; a structurally different snapshot while Rendered destroys the
// instance and constructs a fresh one; an equal snapshot is a no-op.
func (c *Controller) Apply(snap *dpda.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		// The owning view went away while the fetch was in flight.
		return nil
	}

	if snap.IsEmpty() {
		c.destroyLocked()
		c.current = nil
		c.setState(StateIdle)
		return nil
	}

	if c.state == StateRendered {
		if snap.Equal(c.current) {
			return nil
		}
		c.destroyLocked()
	}
	return c.constructLocked(snap)
}

// Close tears the controller down. The live engine instance, if any, is
// destroyed exactly once; every later call is a no-op.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.destroyLocked()
	c.current = nil
	c.setState(StateIdle)
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the failure that produced ErrorState, or nil.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Snapshot returns the snapshot the live engine reflects, or nil when
// nothing is rendered.
func (c *Controller) Snapshot() *dpda.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Engine returns the live engine instance, or nil outside Rendered.
func (c *Controller) Engine() Engine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine
}

// constructLocked builds and mounts a fresh instance. Caller must hold
// c.mu and have destroyed any previous instance.
func (c *Controller) constructLocked(snap *dpda.Snapshot) error {
	engine := c.factory()
	if err := engine.Mount(snap); err != nil {
		// Release whatever the half-mounted instance acquired.
		engine.Destroy()
		c.lastErr = err
		c.setState(StateError)
		return err
	}
	c.engine = engine
	c.current = snap
	c.setState(StateRendered)
	return nil
}

// destroyLocked releases the live instance, if any. Caller must hold
// c.mu. Clearing c.engine is what makes the exactly-once guarantee hold
// across Close, teardown-to-Idle, and reconstruct paths.
func (c *Controller) destroyLocked() {
	if c.engine == nil {
		return
	}
	c.engine.Destroy()
	c.engine = nil
}

func (c *Controller) setState(next State) {
	if c.state == next {
		return
	}
	c.logger.Debug("visualization state change",
		"from", c.state.String(), "to", next.String())
	c.state = next
}
