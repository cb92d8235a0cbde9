// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session provides the anonymous session identity for pdasync.
//
// Every outbound request carries an opaque session token so the remote
// side can scope data without authentication. The token lives in a small
// durable store when one is available, and in process memory otherwise:
//
//	Durable (BadgerDB) → probed once at construction
//	Volatile (memory)  → fallback, survives for the process lifetime only
//
// The Provider never surfaces storage failures to callers; a broken
// durable backend silently degrades to the volatile store.
package session

import (
	"sync"
)

// Store persists a single session token.
//
// Implementations must be safe for concurrent use. Load must never create
// a token as a side effect.
type Store interface {
	// Load returns the persisted token and whether one exists.
	Load() (string, bool, error)

	// Save overwrites the persisted token.
	Save(token string) error

	// Close releases backing resources.
	Close() error
}

// MemoryStore is the volatile Store. Contents are lost when the process
// exits.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
	set   bool
}

// NewMemoryStore creates an empty volatile store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the stored token, if any. Never fails.
func (s *MemoryStore) Load() (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.set, nil
}

// Save overwrites the stored token. Never fails.
func (s *MemoryStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.set = true
	return nil
}

// Close is a no-op for the volatile store.
func (s *MemoryStore) Close() error { return nil }
