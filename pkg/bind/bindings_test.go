// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package bind

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/pdasync/pkg/cache"
	"github.com/AleutianAI/pdasync/pkg/dpda"
)

// fakeAPI is an in-memory API double that counts network-equivalent calls.
type fakeAPI struct {
	machines    map[string]*dpda.Machine
	transitions map[string][]dpda.Transition
	nextID      int

	listCalls        int
	getCalls         int
	transitionsCalls int
	validateCalls    int

	failNext error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		machines:    make(map[string]*dpda.Machine),
		transitions: make(map[string][]dpda.Transition),
	}
}

func (f *fakeAPI) fail() error {
	if err := f.failNext; err != nil {
		f.failNext = nil
		return err
	}
	return nil
}

func (f *fakeAPI) Create(ctx context.Context, req dpda.CreateRequest) (*dpda.Machine, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	f.nextID++
	m := &dpda.Machine{ID: fmt.Sprintf("m-%d", f.nextID), Name: req.Name, Description: req.Description}
	f.machines[m.ID] = m
	return m, nil
}

func (f *fakeAPI) List(ctx context.Context) (*dpda.MachineList, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	f.listCalls++
	list := &dpda.MachineList{}
	for _, m := range f.machines {
		list.DPDAs = append(list.DPDAs, *m)
	}
	list.Total = len(list.DPDAs)
	return list, nil
}

func (f *fakeAPI) Get(ctx context.Context, id string) (*dpda.Machine, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	f.getCalls++
	m, ok := f.machines[id]
	if !ok {
		return nil, errors.New("not found")
	}
	copied := *m
	return &copied, nil
}

func (f *fakeAPI) Update(ctx context.Context, id string, req dpda.UpdateRequest) (*dpda.ChangesResponse, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	m := f.machines[id]
	if req.Name != nil {
		m.Name = *req.Name
	}
	if req.Description != nil {
		m.Description = *req.Description
	}
	return &dpda.ChangesResponse{Changes: map[string]any{}}, nil
}

func (f *fakeAPI) Delete(ctx context.Context, id string) (*dpda.DeleteResponse, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	delete(f.machines, id)
	delete(f.transitions, id)
	return &dpda.DeleteResponse{Success: true}, nil
}

func (f *fakeAPI) SetStates(ctx context.Context, id string, cfg dpda.StatesConfig) error {
	if err := f.fail(); err != nil {
		return err
	}
	f.machines[id].States = &cfg
	return nil
}

func (f *fakeAPI) PatchStates(ctx context.Context, id string, patch dpda.StatesPatch) (*dpda.ChangesResponse, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return &dpda.ChangesResponse{}, nil
}

func (f *fakeAPI) SetAlphabets(ctx context.Context, id string, cfg dpda.AlphabetsConfig) error {
	if err := f.fail(); err != nil {
		return err
	}
	f.machines[id].Alphabets = &cfg
	return nil
}

func (f *fakeAPI) PatchAlphabets(ctx context.Context, id string, patch dpda.AlphabetsPatch) (*dpda.ChangesResponse, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return &dpda.ChangesResponse{}, nil
}

func (f *fakeAPI) Transitions(ctx context.Context, id string) (*dpda.TransitionList, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	f.transitionsCalls++
	trs := append([]dpda.Transition(nil), f.transitions[id]...)
	return &dpda.TransitionList{Transitions: trs, Total: len(trs)}, nil
}

func (f *fakeAPI) AddTransition(ctx context.Context, id string, tr dpda.Transition) error {
	if err := f.fail(); err != nil {
		return err
	}
	f.transitions[id] = append(f.transitions[id], tr)
	return nil
}

func (f *fakeAPI) DeleteTransitionAt(ctx context.Context, id string, index int) (*dpda.DeleteTransitionResponse, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	trs := f.transitions[id]
	if index < 0 || index >= len(trs) {
		return nil, errors.New("index out of range")
	}
	f.transitions[id] = append(trs[:index], trs[index+1:]...)
	remaining := len(f.transitions[id])
	return &dpda.DeleteTransitionResponse{Success: true, RemainingTransitions: &remaining}, nil
}

func (f *fakeAPI) UpdateTransitionAt(ctx context.Context, id string, index int, tr dpda.Transition) (*dpda.ChangesResponse, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	f.transitions[id][index] = tr
	return &dpda.ChangesResponse{}, nil
}

func (f *fakeAPI) Compute(ctx context.Context, id string, req dpda.ComputeRequest) (*dpda.ComputeResult, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return &dpda.ComputeResult{Accepted: true, FinalState: "q2"}, nil
}

func (f *fakeAPI) Validate(ctx context.Context, id string) (*dpda.ValidationResult, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	f.validateCalls++
	return &dpda.ValidationResult{IsValid: true}, nil
}

func (f *fakeAPI) Visualize(ctx context.Context, id string) (*dpda.Snapshot, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return &dpda.Snapshot{Nodes: []dpda.Node{{ID: "q0"}}}, nil
}

func newTestBindings() (*Bindings, *fakeAPI) {
	api := newFakeAPI()
	return New(api, cache.New()), api
}

func TestInvalidationTable(t *testing.T) {
	tests := []struct {
		kind      MutationKind
		wantKeys  []string
		wantPurge bool
	}{
		{MutationCreateMachine, []string{"dpda!list"}, false},
		{MutationUpdateMachine, []string{"dpda:m-7", "dpda!list"}, false},
		{MutationDeleteMachine, []string{"dpda!list"}, true},
		{MutationSetStates, []string{"dpda:m-7", "dpda:m-7:states"}, false},
		{MutationPatchStates, []string{"dpda:m-7", "dpda:m-7:states"}, false},
		{MutationSetAlphabets, []string{"dpda:m-7", "dpda:m-7:alphabets"}, false},
		{MutationPatchAlphabets, []string{"dpda:m-7", "dpda:m-7:alphabets"}, false},
		{MutationAddTransition, []string{"dpda:m-7:transitions", "dpda:m-7"}, false},
		{MutationDeleteTransition, []string{"dpda:m-7:transitions", "dpda:m-7"}, false},
		{MutationUpdateTransition, []string{"dpda:m-7:transitions", "dpda:m-7"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			rule, ok := RuleFor(tt.kind)
			require.True(t, ok, "every mutation needs a rule")

			var got []string
			for _, tmpl := range rule.Stale {
				got = append(got, tmpl.Resolve("m-7"))
			}
			assert.Equal(t, tt.wantKeys, got)
			assert.Equal(t, tt.wantPurge, rule.PurgeEntityScope)
		})
	}
}

func TestListKeyOutsideMachineScopes(t *testing.T) {
	// Ids are server-assigned and opaque; even one literally named
	// "list" must not alias the entity list key or own it as scope.
	assert.NotEqual(t, KeyMachineList, KeyMachine("list"))

	store := cache.New()
	store.Put(KeyMachineList, "machines", time.Minute)
	store.PurgeScope(Scope("list"))
	_, ok := store.Peek(KeyMachineList)
	assert.True(t, ok, "purging a machine scope must never remove the list")
}

func TestListStaleAfterCreate(t *testing.T) {
	b, api := newTestBindings()
	ctx := context.Background()

	_, err := b.Machines(ctx)
	require.NoError(t, err)
	_, err = b.Machines(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, api.listCalls, "second read within window is a cache hit")

	_, err = b.CreateMachine(ctx, dpda.CreateRequest{Name: "E"})
	require.NoError(t, err)

	list, err := b.Machines(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, api.listCalls, "create must stale the list key")
	assert.Equal(t, 1, list.Total)
}

func TestCreateSeedsDetail(t *testing.T) {
	b, api := newTestBindings()
	ctx := context.Background()

	m, err := b.CreateMachine(ctx, dpda.CreateRequest{Name: "E"})
	require.NoError(t, err)

	got, err := b.Machine(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Zero(t, api.getCalls, "detail after create must come from the seeded entry")
}

func TestPrefetchMachineWarmsDetail(t *testing.T) {
	b, api := newTestBindings()
	ctx := context.Background()

	m, err := b.CreateMachine(ctx, dpda.CreateRequest{Name: "E"})
	require.NoError(t, err)
	b.Cache().Invalidate(KeyMachine(m.ID))

	b.PrefetchMachine(ctx, m.ID)
	require.Equal(t, 1, api.getCalls)

	got, err := b.Machine(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, 1, api.getCalls, "read after prefetch must be a cache hit")

	// A disabled (empty-id) prefetch never reaches the API.
	b.PrefetchMachine(ctx, "")
	assert.Equal(t, 1, api.getCalls)
}

func TestDeletePurgesEntityScope(t *testing.T) {
	b, _ := newTestBindings()
	ctx := context.Background()

	m, err := b.CreateMachine(ctx, dpda.CreateRequest{Name: "E"})
	require.NoError(t, err)
	require.NoError(t, b.SetStates(ctx, m.ID, dpda.StatesConfig{
		States: []string{"q0"}, InitialState: "q0",
	}))

	// Warm list, detail, states, and transitions keys.
	_, err = b.Machines(ctx)
	require.NoError(t, err)
	_, err = b.Machine(ctx, m.ID)
	require.NoError(t, err)
	_, err = b.States(ctx, m.ID)
	require.NoError(t, err)
	_, err = b.Transitions(ctx, m.ID)
	require.NoError(t, err)

	_, err = b.DeleteMachine(ctx, m.ID)
	require.NoError(t, err)

	store := b.Cache()
	for _, key := range []string{KeyMachine(m.ID), KeyStates(m.ID), KeyTransitions(m.ID)} {
		_, ok := store.Status(key)
		assert.False(t, ok, "key %s must be removed, not merely staled", key)
	}

	// The list is staled, not purged.
	assert.True(t, store.IsStale(KeyMachineList))
}

func TestTransitionDeleteForcesFullRefetch(t *testing.T) {
	b, api := newTestBindings()
	ctx := context.Background()

	m, err := b.CreateMachine(ctx, dpda.CreateRequest{Name: "E"})
	require.NoError(t, err)

	zero, one := "0", "1"
	dollar := "$"
	require.NoError(t, b.AddTransition(ctx, m.ID, dpda.Transition{
		FromState: "q0", InputSymbol: &zero, StackTop: &dollar, ToState: "q1", StackPush: []string{"A", "$"},
	}))
	require.NoError(t, b.AddTransition(ctx, m.ID, dpda.Transition{
		FromState: "q1", InputSymbol: &one, ToState: "q2", StackPush: []string{},
	}))

	first, err := b.Transitions(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, first.Transitions, 2)
	callsBefore := api.transitionsCalls

	_, err = b.DeleteTransitionAt(ctx, m.ID, 0)
	require.NoError(t, err)

	second, err := b.Transitions(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, callsBefore+1, api.transitionsCalls,
		"post-delete read must be a fresh network response, never a patched cache entry")
	require.Len(t, second.Transitions, 1)
	assert.Equal(t, "q1", second.Transitions[0].FromState)
}

func TestFailedMutationLeavesCacheUntouched(t *testing.T) {
	b, api := newTestBindings()
	ctx := context.Background()

	m, err := b.CreateMachine(ctx, dpda.CreateRequest{Name: "E"})
	require.NoError(t, err)

	_, err = b.Machine(ctx, m.ID) // seeded, no call
	require.NoError(t, err)
	_, err = b.Transitions(ctx, m.ID)
	require.NoError(t, err)
	callsBefore := api.transitionsCalls

	api.failNext = errors.New("non-deterministic transition already exists")
	err = b.AddTransition(ctx, m.ID, dpda.Transition{FromState: "q0", ToState: "q0"})
	require.Error(t, err)

	// No invalidation applied: both keys still cache-hit.
	_, err = b.Transitions(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, callsBefore, api.transitionsCalls)
	assert.False(t, b.Cache().IsStale(KeyMachine(m.ID)))
}

func TestDisabledQueries(t *testing.T) {
	b, api := newTestBindings()
	ctx := context.Background()

	_, err := b.Machine(ctx, "")
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = b.Transitions(ctx, "")
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = b.Validate(ctx, "")
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = b.Compute(ctx, "", dpda.ComputeRequest{InputString: "01"})
	assert.ErrorIs(t, err, ErrDisabled)

	assert.Zero(t, api.getCalls)
	assert.Zero(t, api.transitionsCalls)
	assert.Equal(t, 0, b.Cache().Snapshot().Entries, "disabled queries must not mark anything loading")
}

func TestDerivedQueriesRefetchEveryRead(t *testing.T) {
	api := newFakeAPI()
	b := New(api, cache.New(), WithWindows(Windows{
		Config:      5 * time.Minute,
		Transitions: 30 * time.Second,
		Derived:     0,
	}))
	ctx := context.Background()

	m, err := b.CreateMachine(ctx, dpda.CreateRequest{Name: "E"})
	require.NoError(t, err)

	r1, err := b.Validate(ctx, m.ID)
	require.NoError(t, err)
	r2, err := b.Validate(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, r1.IsValid)
	assert.True(t, r2.IsValid)
	assert.Equal(t, 2, api.validateCalls, "zero-window results are never served from cache")
}

func TestUpdateStalesDetailAndList(t *testing.T) {
	b, api := newTestBindings()
	ctx := context.Background()

	m, err := b.CreateMachine(ctx, dpda.CreateRequest{Name: "E"})
	require.NoError(t, err)
	_, err = b.Machines(ctx)
	require.NoError(t, err)

	name := "renamed"
	_, err = b.UpdateMachine(ctx, m.ID, dpda.UpdateRequest{Name: &name})
	require.NoError(t, err)

	got, err := b.Machine(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, 1, api.getCalls, "staled detail must refetch")

	listBefore := api.listCalls
	_, err = b.Machines(ctx)
	require.NoError(t, err)
	assert.Equal(t, listBefore+1, api.listCalls, "staled list must refetch")
}
