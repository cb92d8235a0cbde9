// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache is the keyed resource cache behind the query bindings.
//
// Each entry maps a resolved resource key to {data, fetch status,
// staleness window}. The cache is an explicit, injectable object with a
// defined lifecycle (empty at New, emptied by Clear) — never a hidden
// module-level singleton.
//
// The correctness discipline is "invalidate, don't patch": writes never
// modify cached data in place; they mark keys stale (or purge them) so the
// next read goes to the network. Two mutations racing on the same resource
// therefore converge on whatever the server's final state is, observed via
// a subsequent refetch.
package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Status is the fetch status of a cache entry.
type Status int

const (
	// StatusLoading means a fetch for this key is in flight and no
	// earlier data exists.
	StatusLoading Status = iota

	// StatusReady means the entry holds data from a successful fetch.
	StatusReady

	// StatusError means the most recent fetch failed. Data from an
	// earlier successful fetch, if any, is retained.
	StatusError
)

// String returns "loading", "ready", "error", or "unknown".
func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// FetchFunc produces the value for a key. It runs at most once per key
// across concurrent readers (singleflight).
type FetchFunc func(ctx context.Context) (any, error)

// entry is one cached resource.
type entry struct {
	data          any
	status        Status
	fetchedAtMill int64
	ttl           time.Duration
	stale         bool
	lastErr       error

	// gen counts invalidations of this key. A fetch records the
	// generation when it starts; if an Invalidate lands while the fetch
	// is in flight, the result is stored already stale so the next read
	// still goes to the network.
	gen uint64
}

// Store is the keyed resource cache.
//
// # Thread Safety
//
// Safe for concurrent use. Distinct keys are fully independent; there is
// no shared mutable buffer across keys.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	flight  singleflight.Group

	// Stats
	hits          int64
	misses        int64
	invalidations int64
	purges        int64
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// New creates an empty Store.
func New(opts ...StoreOption) *Store {
	s := &Store{entries: make(map[string]*entry)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrFetch returns the value for key.
//
// # Description
//
// A fresh cached entry is returned synchronously with no network call.
// Otherwise the entry is marked loading, fetch runs (deduplicated across
// concurrent callers of the same key), the result populates the cache,
// and the value is returned. A failed fetch marks the entry StatusError
// and surfaces the error without touching previously cached data.
//
// # Inputs
//
//   - ctx: Context for cancellation; reaches the fetch function.
//   - key: The fully resolved resource key.
//   - ttl: Staleness window. ttl <= 0 means the entry is never considered
//     fresh on a later read (derived resources).
//   - fetch: Fetch function delegating to the request pipeline.
//
// # Behavior
//
// A late-arriving fetch result still populates the cache even if every
// consumer has moved on: a populated entry nobody reads is harmless,
// whereas cancelling mid-flight would force the next reader to start over.
func (s *Store) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) (any, error) {
	ctx, span := startCacheSpan(ctx, "GetOrFetch", key)
	defer span.End()

	if data, ok := s.lookupFresh(key); ok {
		atomic.AddInt64(&s.hits, 1)
		recordHit(ctx)
		setCacheSpanHit(span, true)
		return data, nil
	}

	atomic.AddInt64(&s.misses, 1)
	recordMiss(ctx)
	setCacheSpanHit(span, false)

	data, err, _ := s.flight.Do(key, func() (any, error) {
		// Re-check under the flight: a concurrent caller may have
		// populated the key while this one waited its turn.
		if data, ok := s.lookupFresh(key); ok {
			return data, nil
		}

		gen := s.markLoading(key, ttl)

		data, err := fetch(ctx)
		if err != nil {
			s.markError(key, err)
			return nil, err
		}

		s.populate(key, data, ttl, gen)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Prefetch warms the cache for key without requiring a consumer. Fetch
// errors are swallowed: a failed prefetch just means the eventual read
// pays for its own fetch.
func (s *Store) Prefetch(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) {
	_, _ = s.GetOrFetch(ctx, key, ttl, fetch)
}

// Peek returns the cached value for key if it is fresh. Never fetches.
func (s *Store) Peek(key string) (any, bool) {
	return s.lookupFresh(key)
}

// Status returns the fetch status for key and whether the key exists.
func (s *Store) Status(key string) (Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return 0, false
	}
	return e.status, true
}

// LastErr returns the error recorded by the most recent failed fetch of
// key, or nil. Cleared by the next successful fetch or seed.
func (s *Store) LastErr(key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[key]; ok {
		return e.lastErr
	}
	return nil
}

// IsStale reports whether key exists but will refetch on next read.
func (s *Store) IsStale(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return false
	}
	return !s.freshLocked(e)
}

// Put seeds the cache with data for key, marking it fresh as of now.
// Used by mutations that already hold the authoritative value (e.g. the
// create-entity response), avoiding an unnecessary round-trip.
func (s *Store) Put(key string, data any, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var gen uint64
	if e, ok := s.entries[key]; ok {
		gen = e.gen
	}
	s.entries[key] = &entry{
		data:          data,
		status:        StatusReady,
		fetchedAtMill: time.Now().UnixMilli(),
		ttl:           ttl,
		gen:           gen,
	}
}

// Invalidate marks key stale. The next read of key always goes to the
// network, even when a fetch for the key is already in flight: that
// fetch may have left before the mutation resolved, so its result cannot
// be trusted as post-mutation state. Unknown keys are a no-op.
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok {
		e.stale = true
		e.gen++
		atomic.AddInt64(&s.invalidations, 1)
	}
}

// PurgeScope removes (not merely marks stale) every entry whose key is
// scope itself or lives under "scope:". Used when the owning entity is
// deleted and its sub-resources must not survive even as stale data.
func (s *Store) PurgeScope(scope string) {
	prefix := scope + ":"

	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.entries {
		if key == scope || strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
			atomic.AddInt64(&s.purges, 1)
		}
	}
}

// Clear removes every entry. Defined teardown for the injectable store.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*entry)
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Entries       int
	Hits          int64
	Misses        int64
	Invalidations int64
	Purges        int64
}

// Snapshot returns current cache statistics.
func (s *Store) Snapshot() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Entries:       len(s.entries),
		Hits:          atomic.LoadInt64(&s.hits),
		Misses:        atomic.LoadInt64(&s.misses),
		Invalidations: atomic.LoadInt64(&s.invalidations),
		Purges:        atomic.LoadInt64(&s.purges),
	}
}

// lookupFresh returns the data for key if the entry is fresh.
func (s *Store) lookupFresh(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || !s.freshLocked(e) {
		return nil, false
	}
	return e.data, true
}

// freshLocked reports entry freshness. Caller must hold at least a read
// lock. A non-positive ttl means never fresh: derived resources are
// refetched on every read.
func (s *Store) freshLocked(e *entry) bool {
	if e.status != StatusReady || e.stale {
		return false
	}
	if e.ttl <= 0 {
		return false
	}
	age := time.Since(time.UnixMilli(e.fetchedAtMill))
	return age <= e.ttl
}

// markLoading transitions key to StatusLoading, preserving earlier data,
// and returns the key's invalidation generation at fetch start.
func (s *Store) markLoading(key string, ttl time.Duration) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		s.entries[key] = &entry{status: StatusLoading, ttl: ttl}
		return 0
	}
	if e.status != StatusReady {
		// A Ready entry keeps showing the old data while the refetch runs.
		e.status = StatusLoading
	}
	return e.gen
}

// markError records a failed fetch. Earlier data, if any, is retained.
func (s *Store) markError(key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	e.status = StatusError
	e.lastErr = err
}

// populate stores a successful fetch result as of now. startGen is the
// generation markLoading observed: if an Invalidate moved it while the
// fetch was in flight the result is stored stale, so the next read
// refetches rather than trusting pre-mutation data. A key purged or
// cleared mid-flight stays gone.
func (s *Store) populate(key string, data any, ttl time.Duration, startGen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return
	}
	s.entries[key] = &entry{
		data:          data,
		status:        StatusReady,
		fetchedAtMill: time.Now().UnixMilli(),
		ttl:           ttl,
		stale:         e.gen != startGen,
		gen:           e.gen,
	}
}
