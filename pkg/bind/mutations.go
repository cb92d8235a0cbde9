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

	"github.com/AleutianAI/pdasync/pkg/dpda"
)

// CreateMachine creates a machine, stales the entity list, and seeds the
// detail key with the server's response directly — the create response is
// authoritative, so a follow-up detail read needs no round-trip.
func (b *Bindings) CreateMachine(ctx context.Context, req dpda.CreateRequest) (*dpda.Machine, error) {
	m, err := b.api.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	b.apply(MutationCreateMachine, m.ID)
	b.cache.Put(KeyMachine(m.ID), m, b.windows.Config)
	return m, nil
}

// UpdateMachine partially updates metadata.
func (b *Bindings) UpdateMachine(ctx context.Context, id string, req dpda.UpdateRequest) (*dpda.ChangesResponse, error) {
	resp, err := b.api.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	b.apply(MutationUpdateMachine, id)
	return resp, nil
}

// DeleteMachine destroys a machine. Beyond staling the list, every cached
// key scoped to the id is purged outright: stale sub-resources of a dead
// entity must not linger even as refetch candidates.
func (b *Bindings) DeleteMachine(ctx context.Context, id string) (*dpda.DeleteResponse, error) {
	resp, err := b.api.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	b.apply(MutationDeleteMachine, id)
	return resp, nil
}

// SetStates fully replaces the states config.
func (b *Bindings) SetStates(ctx context.Context, id string, cfg dpda.StatesConfig) error {
	if err := b.api.SetStates(ctx, id, cfg); err != nil {
		return err
	}
	b.apply(MutationSetStates, id)
	return nil
}

// PatchStates partially updates the states config.
func (b *Bindings) PatchStates(ctx context.Context, id string, patch dpda.StatesPatch) (*dpda.ChangesResponse, error) {
	resp, err := b.api.PatchStates(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	b.apply(MutationPatchStates, id)
	return resp, nil
}

// SetAlphabets fully replaces the alphabets config.
func (b *Bindings) SetAlphabets(ctx context.Context, id string, cfg dpda.AlphabetsConfig) error {
	if err := b.api.SetAlphabets(ctx, id, cfg); err != nil {
		return err
	}
	b.apply(MutationSetAlphabets, id)
	return nil
}

// PatchAlphabets partially updates the alphabets config.
func (b *Bindings) PatchAlphabets(ctx context.Context, id string, patch dpda.AlphabetsPatch) (*dpda.ChangesResponse, error) {
	resp, err := b.api.PatchAlphabets(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	b.apply(MutationPatchAlphabets, id)
	return resp, nil
}

// AddTransition appends a rule and stales the whole transition list.
func (b *Bindings) AddTransition(ctx context.Context, id string, tr dpda.Transition) error {
	if err := b.api.AddTransition(ctx, id, tr); err != nil {
		return err
	}
	b.apply(MutationAddTransition, id)
	return nil
}

// DeleteTransitionAt removes the rule at a position valid at the moment
// of the write. The cached list is never patched to reflect the removal;
// the next read refetches the authoritative ordering.
func (b *Bindings) DeleteTransitionAt(ctx context.Context, id string, index int) (*dpda.DeleteTransitionResponse, error) {
	resp, err := b.api.DeleteTransitionAt(ctx, id, index)
	if err != nil {
		return nil, err
	}
	b.apply(MutationDeleteTransition, id)
	return resp, nil
}

// UpdateTransitionAt replaces the rule at a position valid at the moment
// of the write. Same no-patch discipline as DeleteTransitionAt.
func (b *Bindings) UpdateTransitionAt(ctx context.Context, id string, index int, tr dpda.Transition) (*dpda.ChangesResponse, error) {
	resp, err := b.api.UpdateTransitionAt(ctx, id, index, tr)
	if err != nil {
		return nil, err
	}
	b.apply(MutationUpdateTransition, id)
	return resp, nil
}
