/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import "math"

// Position bounds. Overlays may be parked partly outside the visible
// [0,100] area of a panel.
const (
	PositionMin = -20.0
	PositionMax = 120.0
	ScaleMin    = 0.2
	ScaleMax    = 5.0
	ScaleStep   = 0.1
)

// Position is a percentage offset within a panel's bounding box.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p shifted by d.
func (p Position) Add(d Position) Position { return Position{X: p.X + d.X, Y: p.Y + d.Y} }

// Size is a rendered container size in device pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PixelDeltaToPercent converts a pointer delta in device pixels into panel
// percentage space, per axis. A non-positive container dimension yields 0
// on that axis.
func PixelDeltaToPercent(dx, dy float64, container Size) Position {
	var out Position
	if container.Width > 0 {
		out.X = dx / container.Width * 100
	}
	if container.Height > 0 {
		out.Y = dy / container.Height * 100
	}
	return out
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampPosition bounds both axes to [PositionMin, PositionMax].
func ClampPosition(p Position) Position {
	return Position{X: Clamp(p.X, PositionMin, PositionMax), Y: Clamp(p.Y, PositionMin, PositionMax)}
}

// ClampScale bounds s to [ScaleMin, ScaleMax].
func ClampScale(s float64) float64 { return Clamp(s, ScaleMin, ScaleMax) }

// StepScale applies one wheel step: a positive deltaY shrinks, a negative
// one grows, zero leaves the scale alone. The result is clamped and rounded
// to suppress float drift over many steps.
func StepScale(s, deltaY float64) float64 {
	switch {
	case deltaY > 0:
		s -= ScaleStep
	case deltaY < 0:
		s += ScaleStep
	}
	return ClampScale(math.Round(s*1e6) / 1e6)
}
