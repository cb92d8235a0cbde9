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
	"log/slog"
	"time"

	"github.com/AleutianAI/pdasync/pkg/cache"
	"github.com/AleutianAI/pdasync/pkg/dpda"
)

// ErrDisabled is returned by queries whose required key components are
// absent (no machine id yet). A disabled query performs no fetch and
// marks nothing loading.
var ErrDisabled = errors.New("query disabled: missing machine id")

// API is the slice of the DPDA client the bindings consume. Satisfied by
// *dpda.Client; tests substitute fakes.
type API interface {
	Create(ctx context.Context, req dpda.CreateRequest) (*dpda.Machine, error)
	List(ctx context.Context) (*dpda.MachineList, error)
	Get(ctx context.Context, id string) (*dpda.Machine, error)
	Update(ctx context.Context, id string, req dpda.UpdateRequest) (*dpda.ChangesResponse, error)
	Delete(ctx context.Context, id string) (*dpda.DeleteResponse, error)
	SetStates(ctx context.Context, id string, cfg dpda.StatesConfig) error
	PatchStates(ctx context.Context, id string, patch dpda.StatesPatch) (*dpda.ChangesResponse, error)
	SetAlphabets(ctx context.Context, id string, cfg dpda.AlphabetsConfig) error
	PatchAlphabets(ctx context.Context, id string, patch dpda.AlphabetsPatch) (*dpda.ChangesResponse, error)
	Transitions(ctx context.Context, id string) (*dpda.TransitionList, error)
	AddTransition(ctx context.Context, id string, tr dpda.Transition) error
	DeleteTransitionAt(ctx context.Context, id string, index int) (*dpda.DeleteTransitionResponse, error)
	UpdateTransitionAt(ctx context.Context, id string, index int, tr dpda.Transition) (*dpda.ChangesResponse, error)
	Compute(ctx context.Context, id string, req dpda.ComputeRequest) (*dpda.ComputeResult, error)
	Validate(ctx context.Context, id string) (*dpda.ValidationResult, error)
	Visualize(ctx context.Context, id string) (*dpda.Snapshot, error)
}

// Windows holds the staleness windows per resource class, reflecting
// volatility: configs change rarely relative to how often they are
// viewed; transitions are edited frequently during authoring; derived
// results are refetched whenever their dependency changes.
type Windows struct {
	// Config covers the entity list, entity detail, and both configs.
	Config time.Duration

	// Transitions covers the transition list.
	Transitions time.Duration

	// Derived covers validation, computed runs, and visualization.
	// Zero means never fresh on a later read.
	Derived time.Duration
}

// DefaultWindows returns the production staleness windows.
func DefaultWindows() Windows {
	return Windows{
		Config:      5 * time.Minute,
		Transitions: 30 * time.Second,
		Derived:     0,
	}
}

// Bindings is the query/mutation surface over one cache store and one
// API client.
//
// # Thread Safety
//
// Safe for concurrent use; safety is inherited from the cache store.
type Bindings struct {
	cache   *cache.Store
	api     API
	windows Windows
	logger  *slog.Logger
}

// Option configures Bindings.
type Option func(*Bindings)

// WithWindows overrides the staleness windows.
func WithWindows(w Windows) Option {
	return func(b *Bindings) { b.windows = w }
}

// WithLogger sets the logger for mutation side-effect logging.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bindings) { b.logger = logger }
}

// New creates Bindings over the given API and store.
func New(api API, store *cache.Store, opts ...Option) *Bindings {
	b := &Bindings{
		cache:   store,
		api:     api,
		windows: DefaultWindows(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Cache exposes the underlying store (stats, teardown).
func (b *Bindings) Cache() *cache.Store { return b.cache }

// fetchAs adapts a typed fetch to the untyped cache store.
func fetchAs[T any](ctx context.Context, b *Bindings, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	v, err := b.cache.GetOrFetch(ctx, key, ttl, func(ctx context.Context) (any, error) {
		data, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Machines reads the entity list.
func (b *Bindings) Machines(ctx context.Context) (*dpda.MachineList, error) {
	return fetchAs(ctx, b, KeyMachineList, b.windows.Config, b.api.List)
}

// Machine reads one entity's detail.
func (b *Bindings) Machine(ctx context.Context, id string) (*dpda.Machine, error) {
	if id == "" {
		return nil, ErrDisabled
	}
	return fetchAs(ctx, b, KeyMachine(id), b.windows.Config, func(ctx context.Context) (*dpda.Machine, error) {
		return b.api.Get(ctx, id)
	})
}

// States reads the states config. Returns nil data when the machine has
// no states configured yet.
func (b *Bindings) States(ctx context.Context, id string) (*dpda.StatesConfig, error) {
	if id == "" {
		return nil, ErrDisabled
	}
	return fetchAs(ctx, b, KeyStates(id), b.windows.Config, func(ctx context.Context) (*dpda.StatesConfig, error) {
		m, err := b.api.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return m.States, nil
	})
}

// Alphabets reads the alphabets config.
func (b *Bindings) Alphabets(ctx context.Context, id string) (*dpda.AlphabetsConfig, error) {
	if id == "" {
		return nil, ErrDisabled
	}
	return fetchAs(ctx, b, KeyAlphabets(id), b.windows.Config, func(ctx context.Context) (*dpda.AlphabetsConfig, error) {
		m, err := b.api.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return m.Alphabets, nil
	})
}

// Transitions reads the full ordered transition list.
func (b *Bindings) Transitions(ctx context.Context, id string) (*dpda.TransitionList, error) {
	if id == "" {
		return nil, ErrDisabled
	}
	return fetchAs(ctx, b, KeyTransitions(id), b.windows.Transitions, func(ctx context.Context) (*dpda.TransitionList, error) {
		return b.api.Transitions(ctx, id)
	})
}

// Validate reads the derived validation result.
func (b *Bindings) Validate(ctx context.Context, id string) (*dpda.ValidationResult, error) {
	if id == "" {
		return nil, ErrDisabled
	}
	return fetchAs(ctx, b, KeyValidate(id), b.windows.Derived, func(ctx context.Context) (*dpda.ValidationResult, error) {
		return b.api.Validate(ctx, id)
	})
}

// Compute reads a computed run, keyed by (machine id, input string).
func (b *Bindings) Compute(ctx context.Context, id string, req dpda.ComputeRequest) (*dpda.ComputeResult, error) {
	if id == "" {
		return nil, ErrDisabled
	}
	return fetchAs(ctx, b, KeyCompute(id, req.InputString), b.windows.Derived, func(ctx context.Context) (*dpda.ComputeResult, error) {
		return b.api.Compute(ctx, id, req)
	})
}

// Visualize reads the derived visualization snapshot.
func (b *Bindings) Visualize(ctx context.Context, id string) (*dpda.Snapshot, error) {
	if id == "" {
		return nil, ErrDisabled
	}
	return fetchAs(ctx, b, KeyVisualize(id), b.windows.Derived, func(ctx context.Context) (*dpda.Snapshot, error) {
		return b.api.Visualize(ctx, id)
	})
}

// PrefetchMachine warms the detail key ahead of likely navigation.
func (b *Bindings) PrefetchMachine(ctx context.Context, id string) {
	if id == "" {
		return
	}
	b.cache.Prefetch(ctx, KeyMachine(id), b.windows.Config, func(ctx context.Context) (any, error) {
		m, err := b.api.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return m, nil
	})
}

// apply executes a mutation's declared invalidation rule. Called only on
// success; failed mutations leave the cache exactly as it was.
func (b *Bindings) apply(kind MutationKind, id string) {
	rule, ok := RuleFor(kind)
	if !ok {
		return
	}
	for _, tmpl := range rule.Stale {
		b.cache.Invalidate(tmpl.Resolve(id))
	}
	if rule.PurgeEntityScope {
		b.cache.PurgeScope(Scope(id))
	}
	b.logger.Debug("applied invalidation rule", "mutation", kind.String(), "machine_id", id)
}
