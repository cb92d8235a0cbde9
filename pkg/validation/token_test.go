// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"errors"
	"testing"
)

func TestValidateSessionToken(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		// Valid tokens
		{"canonical v4", "9f2c6dd0-0b3f-4a3e-8c1d-55a0b2f4c6e1", false},
		{"another v4", "a6e0cf11-4f7d-4b6e-9c0a-3d2f1e8b7a54", false},

		// Invalid tokens
		{"empty", "", true},
		{"too short", "9f2c6dd0-0b3f-4a3e-8c1d", true},
		{"too long", "9f2c6dd0-0b3f-4a3e-8c1d-55a0b2f4c6e1ff", true},
		{"not hex", "zzzzzzzz-0b3f-4a3e-8c1d-55a0b2f4c6e1", true},
		{"wrong version", "9f2c6dd0-0b3f-1a3e-8c1d-55a0b2f4c6e1", true},
		{"header injection", "9f2c6dd0-0b3f-4a3e-8c1d-55a0b2f\r\nX:", true},
		{"not a valid token", "not-a-valid-token", true},
		{"braced form rejected by length", "{9f2c6dd0-0b3f-4a3e-8c1d-55a0b2f4c6}", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSessionToken(tt.token)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSessionToken(%q) error = %v, wantErr %v", tt.token, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidToken) {
				t.Errorf("ValidateSessionToken(%q) error = %v, want ErrInvalidToken chain", tt.token, err)
			}
		})
	}
}

func TestNewSessionToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token := NewSessionToken()
		if err := ValidateSessionToken(token); err != nil {
			t.Fatalf("generated token %q failed validation: %v", token, err)
		}
		if seen[token] {
			t.Fatalf("generated token %q twice", token)
		}
		seen[token] = true
	}
}
