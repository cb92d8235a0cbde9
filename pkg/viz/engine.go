// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package viz owns the rendering-engine lifecycle for automaton graphs.
//
// An Engine instance is bound to exactly one snapshot. Snapshots carry no
// stable element identity, so the Controller never updates a live engine
// incrementally: a structural change destroys the instance and constructs
// a fresh one from the new snapshot.
package viz

import (
	"errors"

	"github.com/AleutianAI/pdasync/pkg/dpda"
)

// ErrEngineDestroyed is returned by Mount after Destroy has run.
var ErrEngineDestroyed = errors.New("viz: engine already destroyed")

// Engine renders one snapshot. Mount is called at most once per instance;
// Destroy releases whatever Mount acquired and must be safe to call even
// when Mount failed or never ran.
type Engine interface {
	Mount(snap *dpda.Snapshot) error
	Destroy()
}

// EngineFactory constructs a fresh, unmounted engine instance.
type EngineFactory func() Engine
