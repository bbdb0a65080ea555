/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import "sceneboard/internal/geom"

// Zoom limits and step for the viewport.
const (
	MinZoom  = 0.25
	MaxZoom  = 4.0
	ZoomStep = 0.25
)

// Viewport maps between scene coordinates and screen pixels. Zoom lives here,
// not on the Scene: item geometry is always stored in scene units and stays
// untouched by zooming or panning.
type Viewport struct {
	Zoom    float64
	ScrollX float64
	ScrollY float64
	// ViewW/ViewH is the visible widget size in screen pixels.
	ViewW float64
	ViewH float64
}

// NewViewport returns a viewport at 1:1 zoom centered on the scene.
func NewViewport(viewW, viewH float64) *Viewport {
	v := &Viewport{Zoom: 1, ViewW: viewW, ViewH: viewH}
	v.Reset()
	return v
}

// SetZoom clamps z into [MinZoom, MaxZoom] and rounds to two decimals so
// repeated stepping never accumulates float drift.
func (v *Viewport) SetZoom(z float64) {
	v.Zoom = geom.FloatRound(geom.Clamp(z, MinZoom, MaxZoom), 2)
}

// ZoomIn increases zoom by one step, keeping the view center fixed.
func (v *Viewport) ZoomIn() { v.zoomAround(v.Zoom + ZoomStep) }

// ZoomOut decreases zoom by one step, keeping the view center fixed.
func (v *Viewport) ZoomOut() { v.zoomAround(v.Zoom - ZoomStep) }

func (v *Viewport) zoomAround(z float64) {
	// Scene point currently at the view center stays there after the change.
	cx := (v.ScrollX + v.ViewW/2) / v.Zoom
	cy := (v.ScrollY + v.ViewH/2) / v.Zoom
	v.SetZoom(z)
	v.ScrollX = cx*v.Zoom - v.ViewW/2
	v.ScrollY = cy*v.Zoom - v.ViewH/2
}

// Reset restores 1:1 zoom and recenters the scene extent.
func (v *Viewport) Reset() {
	v.Zoom = 1
	v.CenterOn(geom.Pt{X: SceneExtent / 2, Y: SceneExtent / 2})
}

// CenterOn scrolls so that scene point p sits at the view center.
func (v *Viewport) CenterOn(p geom.Pt) {
	v.ScrollX = p.X*v.Zoom - v.ViewW/2
	v.ScrollY = p.Y*v.Zoom - v.ViewH/2
}

// FocusItem centers the given item at the current zoom.
func (v *Viewport) FocusItem(it *Item) {
	if it == nil {
		return
	}
	v.CenterOn(it.Rect().Center())
}

// Pan shifts the scroll offset by screen-pixel deltas.
func (v *Viewport) Pan(dx, dy float64) {
	v.ScrollX += dx
	v.ScrollY += dy
}

// ToScene converts a screen position to scene coordinates.
func (v *Viewport) ToScene(px, py float64) geom.Pt {
	return geom.Pt{X: (px + v.ScrollX) / v.Zoom, Y: (py + v.ScrollY) / v.Zoom}
}

// ToScreen converts a scene position to screen pixels.
func (v *Viewport) ToScreen(p geom.Pt) (float64, float64) {
	return p.X*v.Zoom - v.ScrollX, p.Y*v.Zoom - v.ScrollY
}

// Resize updates the visible size, keeping the view center fixed.
func (v *Viewport) Resize(viewW, viewH float64) {
	cx := (v.ScrollX + v.ViewW/2) / v.Zoom
	cy := (v.ScrollY + v.ViewH/2) / v.Zoom
	v.ViewW, v.ViewH = viewW, viewH
	v.CenterOn(geom.Pt{X: cx, Y: cy})
}
