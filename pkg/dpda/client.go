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
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/pdasync/pkg/transport"
)

// ErrMissingID is returned when an operation requires a machine id and
// none was supplied.
var ErrMissingID = errors.New("machine id is required")

// Client is the low-level typed client for the DPDA service. It performs
// no caching; the bind package layers the resource cache on top.
//
// # Thread Safety
//
// Safe for concurrent use.
type Client struct {
	t        *transport.Client
	validate *validator.Validate
}

// NewClient wraps a transport client.
func NewClient(t *transport.Client) *Client {
	return &Client{
		t:        t,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Create creates a machine and returns the server's representation.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*Machine, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	var m Machine
	if err := c.t.PostJSON(ctx, "/api/dpda/create", req, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// List returns all machines.
func (c *Client) List(ctx context.Context) (*MachineList, error) {
	var list MachineList
	if err := c.t.GetJSON(ctx, "/api/dpda/list", &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// Get returns one machine's detail, including configured sub-resources.
func (c *Client) Get(ctx context.Context, id string) (*Machine, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	var m Machine
	if err := c.t.GetJSON(ctx, c.machinePath(id), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Update partially updates machine metadata.
func (c *Client) Update(ctx context.Context, id string, req UpdateRequest) (*ChangesResponse, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	var resp ChangesResponse
	if err := c.t.PatchJSON(ctx, c.machinePath(id), req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Delete destroys a machine and all its sub-resources server-side.
func (c *Client) Delete(ctx context.Context, id string) (*DeleteResponse, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	var resp DeleteResponse
	if err := c.t.DeleteJSON(ctx, c.machinePath(id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetStates fully replaces the states config. All fields are required.
func (c *Client) SetStates(ctx context.Context, id string, cfg StatesConfig) error {
	if id == "" {
		return ErrMissingID
	}
	if err := c.validate.Struct(cfg); err != nil {
		return fmt.Errorf("states config: %w", err)
	}
	return c.t.PutJSON(ctx, c.machinePath(id)+"/states", cfg, nil)
}

// PatchStates partially updates the states config; nil fields are kept.
func (c *Client) PatchStates(ctx context.Context, id string, patch StatesPatch) (*ChangesResponse, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	var resp ChangesResponse
	if err := c.t.PatchJSON(ctx, c.machinePath(id)+"/states", patch, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetAlphabets fully replaces the alphabets config.
func (c *Client) SetAlphabets(ctx context.Context, id string, cfg AlphabetsConfig) error {
	if id == "" {
		return ErrMissingID
	}
	if err := c.validate.Struct(cfg); err != nil {
		return fmt.Errorf("alphabets config: %w", err)
	}
	return c.t.PutJSON(ctx, c.machinePath(id)+"/alphabets", cfg, nil)
}

// PatchAlphabets partially updates the alphabets config.
func (c *Client) PatchAlphabets(ctx context.Context, id string, patch AlphabetsPatch) (*ChangesResponse, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	var resp ChangesResponse
	if err := c.t.PatchJSON(ctx, c.machinePath(id)+"/alphabets", patch, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Transitions returns the full ordered transition list.
func (c *Client) Transitions(ctx context.Context, id string) (*TransitionList, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	var list TransitionList
	if err := c.t.GetJSON(ctx, c.machinePath(id)+"/transitions", &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// AddTransition appends a transition rule.
func (c *Client) AddTransition(ctx context.Context, id string, tr Transition) error {
	if id == "" {
		return ErrMissingID
	}
	if err := c.validate.Struct(tr); err != nil {
		return fmt.Errorf("transition: %w", err)
	}
	return c.t.PostJSON(ctx, c.machinePath(id)+"/transition", tr, nil)
}

// DeleteTransitionAt removes the transition at the given zero-based
// position. The index is meaningful only at the moment of the write: any
// earlier insertion or deletion shifts it. Callers holding a stale index
// get a remote 4xx and should refetch the list before retrying.
func (c *Client) DeleteTransitionAt(ctx context.Context, id string, index int) (*DeleteTransitionResponse, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	if index < 0 {
		return nil, fmt.Errorf("transition index %d out of range", index)
	}
	var resp DeleteTransitionResponse
	path := c.machinePath(id) + "/transition/" + strconv.Itoa(index)
	if err := c.t.DeleteJSON(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateTransitionAt replaces the transition at the given zero-based
// position. Same positional caveat as DeleteTransitionAt.
func (c *Client) UpdateTransitionAt(ctx context.Context, id string, index int, tr Transition) (*ChangesResponse, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	if index < 0 {
		return nil, fmt.Errorf("transition index %d out of range", index)
	}
	if err := c.validate.Struct(tr); err != nil {
		return nil, fmt.Errorf("transition: %w", err)
	}
	var resp ChangesResponse
	path := c.machinePath(id) + "/transition/" + strconv.Itoa(index)
	if err := c.t.PutJSON(ctx, path, tr, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Compute runs an input string on the machine server-side.
func (c *Client) Compute(ctx context.Context, id string, req ComputeRequest) (*ComputeResult, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	var result ComputeResult
	if err := c.t.PostJSON(ctx, c.machinePath(id)+"/compute", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Validate runs the server-side determinism check.
func (c *Client) Validate(ctx context.Context, id string) (*ValidationResult, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	var result ValidationResult
	if err := c.t.PostJSON(ctx, c.machinePath(id)+"/validate", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Export returns the serialized machine definition in the given format.
func (c *Client) Export(ctx context.Context, id string, format ExportFormat) ([]byte, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	return c.t.GetRaw(ctx, c.machinePath(id)+"/export?format="+string(format))
}

// Visualize returns the graph payload as a Snapshot. Only the d3 flavor
// decodes into Snapshot; use VisualizeRaw for cytoscape or dot payloads.
func (c *Client) Visualize(ctx context.Context, id string) (*Snapshot, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	var snap Snapshot
	if err := c.t.GetJSON(ctx, c.machinePath(id)+"/visualize?format="+string(VizD3), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// VisualizeRaw returns the graph payload bytes in any supported format.
func (c *Client) VisualizeRaw(ctx context.Context, id string, format VizFormat) ([]byte, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	return c.t.GetRaw(ctx, c.machinePath(id)+"/visualize?format="+string(format))
}

func (c *Client) machinePath(id string) string {
	return "/api/dpda/" + transport.EscapePath(id)
}
