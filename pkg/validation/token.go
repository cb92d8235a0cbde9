// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for values that
// cross a trust boundary.
//
// This package contains validators for user-provided inputs that end up in
// request headers or durable storage. Using these validators prevents header
// injection and keeps the session store free of malformed identifiers.
package validation

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidToken is returned when a session token does not match the
// versioned UUID format. Use errors.Is to detect it.
var ErrInvalidToken = errors.New("invalid session token format")

// SessionTokenLength is the canonical length of a session token
// (UUID string form: 32 hex digits plus 4 hyphens).
const SessionTokenLength = 36

// ValidateSessionToken validates an anonymous session identifier.
//
// Valid tokens:
//   - Exactly 36 characters in canonical 8-4-4-4-12 form
//   - A parseable RFC 4122 UUID
//   - Version 4 (randomly generated)
//
// Returns an error wrapping ErrInvalidToken if the token is invalid.
//
// Example:
//
//	if err := validation.ValidateSessionToken(token); err != nil {
//	    return fmt.Errorf("rejecting imported session: %w", err)
//	}
//	// Safe to persist and attach as a header value
func ValidateSessionToken(token string) error {
	if token == "" {
		return fmt.Errorf("%w: token is empty", ErrInvalidToken)
	}

	if len(token) != SessionTokenLength {
		return fmt.Errorf("%w: length %d, want %d", ErrInvalidToken, len(token), SessionTokenLength)
	}

	id, err := uuid.Parse(token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	// uuid.Parse accepts urn: and braced forms; the length check above
	// already pinned us to the canonical form. Version is still open.
	if id.Version() != 4 {
		return fmt.Errorf("%w: version %d, want 4", ErrInvalidToken, id.Version())
	}

	return nil
}

// NewSessionToken generates a fresh version 4 session token.
// The result always passes ValidateSessionToken.
func NewSessionToken() string {
	return uuid.NewString()
}
