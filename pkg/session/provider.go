// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/AleutianAI/pdasync/pkg/validation"
)

// Provider owns the process-wide anonymous session identity.
//
// # Description
//
// Provider wraps a Store and implements the identity lifecycle: lazy
// creation, reset, validated import, and side-effect-free peek. Storage
// failures never reach callers: any Load/Save error permanently degrades
// the Provider to an in-process volatile store seeded with whatever token
// was current at the time.
//
// All operations are synchronous and scoped to the Provider's own storage.
// The Provider never touches the resource cache.
//
// # Thread Safety
//
// Safe for concurrent use.
type Provider struct {
	mu       sync.Mutex
	store    Store
	fallback *MemoryStore
	degraded bool
	logger   *slog.Logger
}

// ProviderOption configures a Provider.
type ProviderOption func(*providerConfig)

type providerConfig struct {
	store  Store
	path   string
	logger *slog.Logger
}

// WithStore injects a pre-built Store, bypassing the durable-backend probe.
// Mainly for tests.
func WithStore(s Store) ProviderOption {
	return func(c *providerConfig) { c.store = s }
}

// WithPath sets the directory for the durable store.
// Default: $PDA_HOME/session or ~/.pdasync/session.
func WithPath(path string) ProviderOption {
	return func(c *providerConfig) { c.path = path }
}

// WithLogger sets the logger for fallback diagnostics.
func WithLogger(logger *slog.Logger) ProviderOption {
	return func(c *providerConfig) { c.logger = logger }
}

// NewProvider constructs a Provider, probing the durable backend once.
//
// # Behavior
//
//  1. If WithStore was given, that store is used as the primary.
//  2. Otherwise a BadgerStore is opened at the configured path. An open
//     failure (restricted directory, disk full, another process holding
//     the lock) is logged once and the Provider starts on the volatile
//     store instead.
//  3. A probing Load is issued against the primary; a failure here also
//     selects the volatile store.
//
// NewProvider never fails; the worst case is a volatile identity whose
// lifetime is the running process.
func NewProvider(opts ...ProviderOption) *Provider {
	cfg := providerConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.path == "" {
		cfg.path = defaultStorePath()
	}

	p := &Provider{
		fallback: NewMemoryStore(),
		logger:   cfg.logger,
	}

	store := cfg.store
	if store == nil {
		bs, err := OpenBadgerStore(cfg.path, nil)
		if err != nil {
			cfg.logger.Warn("durable session store unavailable, using volatile identity",
				"path", cfg.path, "error", err)
			p.store = p.fallback
			p.degraded = true
			return p
		}
		store = bs
	}

	// Probe once. A store that cannot load now is not trusted later.
	if _, _, err := store.Load(); err != nil {
		cfg.logger.Warn("durable session store failed probe, using volatile identity",
			"error", err)
		_ = store.Close()
		p.store = p.fallback
		p.degraded = true
		return p
	}

	p.store = store
	return p
}

// GetOrCreate returns the persisted session token, creating and persisting
// a fresh one if none exists. Never fails.
func (p *Provider) GetOrCreate() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if token, ok := p.load(); ok {
		return token
	}

	token := validation.NewSessionToken()
	p.save(token)
	return token
}

// Reset unconditionally replaces the session token with a fresh one and
// returns it. The previous identity is discarded.
func (p *Provider) Reset() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	token := validation.NewSessionToken()
	p.save(token)
	return token
}

// Import replaces the session token with an externally supplied value.
//
// The value is format-validated first; an invalid token returns an error
// wrapping validation.ErrInvalidToken and leaves the stored value
// untouched.
func (p *Provider) Import(token string) error {
	if err := validation.ValidateSessionToken(token); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.save(token)
	return nil
}

// Peek returns the current session token without creating one.
func (p *Provider) Peek() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.load()
}

// Close releases the backing store.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.store.Close()
}

// load reads the current token, degrading to the volatile store on error.
// Successful reads are mirrored into the volatile store so a later
// degradation does not lose the identity. Caller must hold p.mu.
func (p *Provider) load() (string, bool) {
	token, ok, err := p.store.Load()
	if err != nil {
		p.degrade(err)
		token, ok, _ = p.store.Load()
	} else if ok && !p.degraded {
		_ = p.fallback.Save(token)
	}
	return token, ok
}

// save writes the token, degrading to the volatile store on error. The
// token is never lost: the volatile store always receives it too.
// Caller must hold p.mu.
func (p *Provider) save(token string) {
	if !p.degraded {
		_ = p.fallback.Save(token)
	}
	if err := p.store.Save(token); err != nil {
		p.degrade(err)
		_ = p.store.Save(token)
	}
}

// degrade switches to the volatile store after a runtime storage failure.
// The volatile store already holds the last token observed, if any.
func (p *Provider) degrade(cause error) {
	if p.degraded {
		return
	}
	p.logger.Warn("session store failed, degrading to volatile identity", "error", cause)

	_ = p.store.Close()
	p.store = p.fallback
	p.degraded = true
}

// defaultStorePath resolves the durable store directory.
func defaultStorePath() string {
	if home := os.Getenv("PDA_HOME"); home != "" {
		return filepath.Join(home, "session")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "pdasync", "session")
	}
	return filepath.Join(home, ".pdasync", "session")
}
