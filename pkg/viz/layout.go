// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package viz

import (
	"math"
	"sync"

	"github.com/AleutianAI/pdasync/pkg/dpda"
)

const (
	layoutIterations = 60
	layoutArea       = 400.0
	layoutCooling    = 0.95
)

// Point is a node position in layout space.
type Point struct {
	X float64
	Y float64
}

// ForceEngine is a local Engine running a Fruchterman-Reingold style
// force-directed pass. Initial positions are seeded from node index on a
// circle and the iteration count is fixed, so the same snapshot always
// yields the same layout.
//
// # Thread Safety
//
// Safe for concurrent use.
type ForceEngine struct {
	mu        sync.Mutex
	positions map[string]Point
	destroyed bool
}

// NewForceEngine returns an unmounted force-layout engine. Use it as an
// EngineFactory: viz.NewController(viz.NewForceEngine).
func NewForceEngine() Engine {
	return &ForceEngine{}
}

// Mount computes positions for every node in snap.
func (e *ForceEngine) Mount(snap *dpda.Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return ErrEngineDestroyed
	}
	e.positions = computeLayout(snap)
	return nil
}

// Destroy releases the computed layout. Idempotent.
func (e *ForceEngine) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroyed = true
	e.positions = nil
}

// Positions returns a copy of the node positions, or nil when unmounted
// or destroyed.
func (e *ForceEngine) Positions() map[string]Point {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.positions == nil {
		return nil
	}
	out := make(map[string]Point, len(e.positions))
	for id, p := range e.positions {
		out[id] = p
	}
	return out
}

// computeLayout runs the deterministic force pass. Repulsion between all
// node pairs, attraction along edges, displacement capped by a cooling
// temperature.
func computeLayout(snap *dpda.Snapshot) map[string]Point {
	n := len(snap.Nodes)
	if n == 0 {
		return map[string]Point{}
	}

	index := make(map[string]int, n)
	pos := make([]Point, n)
	for i, node := range snap.Nodes {
		index[node.ID] = i
		// Circle seeding keeps the layout independent of map iteration
		// order.
		angle := 2 * math.Pi * float64(i) / float64(n)
		r := layoutArea / 4
		pos[i] = Point{X: r * math.Cos(angle), Y: r * math.Sin(angle)}
	}

	k := math.Sqrt(layoutArea * layoutArea / float64(n))
	temp := layoutArea / 10

	disp := make([]Point, n)
	for iter := 0; iter < layoutIterations; iter++ {
		for i := range disp {
			disp[i] = Point{}
		}

		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				dx, dy := pos[i].X-pos[j].X, pos[i].Y-pos[j].Y
				d := math.Hypot(dx, dy)
				if d < 1e-6 {
					// Coincident seeds only happen for n==1, but keep the
					// divisor sane.
					d, dx = 1e-6, 1e-6
				}
				f := k * k / d
				disp[i].X += dx / d * f
				disp[i].Y += dy / d * f
				disp[j].X -= dx / d * f
				disp[j].Y -= dy / d * f
			}
		}

		for _, edge := range snap.Edges {
			si, sok := index[edge.Source]
			ti, tok := index[edge.Target]
			if !sok || !tok || si == ti {
				continue
			}
			dx, dy := pos[si].X-pos[ti].X, pos[si].Y-pos[ti].Y
			d := math.Hypot(dx, dy)
			if d < 1e-6 {
				continue
			}
			f := d * d / k
			disp[si].X -= dx / d * f
			disp[si].Y -= dy / d * f
			disp[ti].X += dx / d * f
			disp[ti].Y += dy / d * f
		}

		for i := 0; i < n; i++ {
			d := math.Hypot(disp[i].X, disp[i].Y)
			if d < 1e-6 {
				continue
			}
			step := math.Min(d, temp)
			pos[i].X += disp[i].X / d * step
			pos[i].Y += disp[i].Y / d * step
		}
		temp *= layoutCooling
	}

	out := make(map[string]Point, n)
	for i, node := range snap.Nodes {
		out[node.ID] = pos[i]
	}
	return out
}
