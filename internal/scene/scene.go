/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package scene holds the editor's model: placed image items in a fixed-size
// virtual coordinate space, plus the pointer-interaction session and the
// viewport that maps between screen and scene coordinates. All stored
// geometry is zoom-independent.
package scene

import (
	"encoding/json"
	"log/slog"
	"sort"

	"sceneboard/internal/geom"
	applog "sceneboard/internal/log"
)

const (
	// SceneExtent is the side length of the square virtual scene.
	SceneExtent = 4096.0
	// MinItemSize is the smallest width/height an item may have.
	MinItemSize = 20.0
	// MaxInitialWidth caps the display width of freshly placed images.
	MaxInitialWidth = 480.0
)

// Item is one placed image. Geometry is in virtual scene coordinates and is
// always fully confined to [0, SceneExtent] on both axes.
type Item struct {
	ID   int64
	Name string

	X, Y float64
	W, H float64
	Z    int64

	// Intrinsic pixel dimensions of the source, used for aspect-preserving export.
	NaturalW, NaturalH int

	src *Source
}

// Rect returns the item's bounding rectangle in scene coordinates.
func (it *Item) Rect() geom.Rect { return geom.R(it.X, it.Y, it.W, it.H) }

// Source returns the owned image handle backing the item.
func (it *Item) Source() *Source { return it.src }

// ImageFile is one candidate image for placement: the original file name and
// its raw bytes.
type ImageFile struct {
	Name string
	Data []byte
}

// Scene is the authoritative, insertion-ordered set of items with at most one
// selection. It owns every item's image source via its SourceStore. All
// mutation happens on the UI event loop; the Scene itself is not locked.
type Scene struct {
	log     *slog.Logger
	sources *SourceStore
	items   []*Item
	// selected is the id of the selected item, 0 when nothing is selected.
	selected int64
	nextID   int64
}

func New() *Scene {
	return &Scene{
		log:     applog.WithComponent("scene"),
		sources: NewSourceStore(),
	}
}

// Len returns the number of live items.
func (s *Scene) Len() int { return len(s.items) }

// Items returns the items in insertion order. The slice is a copy; the items
// are not.
func (s *Scene) Items() []*Item {
	return append([]*Item(nil), s.items...)
}

// ItemsByZ returns the items sorted by ascending stacking order.
func (s *Scene) ItemsByZ() []*Item {
	out := s.Items()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Z < out[j].Z })
	return out
}

// Find returns the item with the given id, or nil.
func (s *Scene) Find(id int64) *Item {
	for _, it := range s.items {
		if it.ID == id {
			return it
		}
	}
	return nil
}

// AddImages decodes and places the given files. Files that fail to decode are
// skipped (logged, excluded from the result); they never abort the batch.
// New items are stacked above everything already present, centered, with
// their display width capped and aspect ratio preserved. The last item added
// becomes the selection.
func (s *Scene) AddImages(files []ImageFile) []*Item {
	var added []*Item
	z := s.maxZ()
	for _, f := range files {
		src, err := s.sources.Acquire(f.Data)
		if err != nil {
			s.log.Warn("skipping image", slog.String("name", f.Name), slog.Any("err", err))
			continue
		}
		b := src.Image().Bounds()
		natW, natH := b.Dx(), b.Dy()

		w := float64(natW)
		h := float64(natH)
		if w > MaxInitialWidth {
			scale := MaxInitialWidth / w
			w = MaxInitialWidth
			h = h * scale
		}
		w = geom.Clamp(w, MinItemSize, SceneExtent)
		h = geom.Clamp(h, MinItemSize, SceneExtent)

		z++
		s.nextID++
		it := &Item{
			ID:       s.nextID,
			Name:     f.Name,
			X:        (SceneExtent - w) / 2,
			Y:        (SceneExtent - h) / 2,
			W:        w,
			H:        h,
			Z:        z,
			NaturalW: natW,
			NaturalH: natH,
			src:      src,
		}
		s.items = append(s.items, it)
		added = append(added, it)
	}
	if len(added) > 0 {
		s.selected = added[len(added)-1].ID
		s.log.Info("items added", slog.Int("count", len(added)), slog.Int("total", len(s.items)))
	}
	return added
}

// Move translates an item, clamped so it stays inside the scene.
// Unknown ids are ignored.
func (s *Scene) Move(id int64, dx, dy float64) {
	it := s.Find(id)
	if it == nil {
		return
	}
	it.X = geom.Clamp(it.X+dx, 0, SceneExtent-it.W)
	it.Y = geom.Clamp(it.Y+dy, 0, SceneExtent-it.H)
}

// Resize sets an item's display size, clamped to [MinItemSize, remaining
// scene extent] per axis. Unknown ids are ignored.
func (s *Scene) Resize(id int64, w, h float64) {
	it := s.Find(id)
	if it == nil {
		return
	}
	it.W = geom.Clamp(w, MinItemSize, SceneExtent-it.X)
	it.H = geom.Clamp(h, MinItemSize, SceneExtent-it.Y)
}

// BringToFront stacks the item above all others. Unknown ids are ignored.
func (s *Scene) BringToFront(id int64) {
	it := s.Find(id)
	if it == nil {
		return
	}
	it.Z = s.maxZ() + 1
}

// SendToBack stacks the item below all others. Unknown ids are ignored.
func (s *Scene) SendToBack(id int64) {
	it := s.Find(id)
	if it == nil {
		return
	}
	it.Z = s.minZ() - 1
}

// Remove deletes an item and releases its image source. Removing the selected
// item clears the selection. Unknown ids are ignored.
func (s *Scene) Remove(id int64) {
	for i, it := range s.items {
		if it.ID != id {
			continue
		}
		s.sources.Release(it.src)
		it.src = nil
		s.items = append(s.items[:i], s.items[i+1:]...)
		if s.selected == id {
			s.selected = 0
		}
		return
	}
}

// Select marks the item as selected; id 0 clears the selection.
// Unknown non-zero ids are ignored.
func (s *Scene) Select(id int64) {
	if id == 0 {
		s.selected = 0
		return
	}
	if s.Find(id) != nil {
		s.selected = id
	}
}

// Selected returns the selected item's id, 0 when nothing is selected.
func (s *Scene) Selected() int64 { return s.selected }

// SelectedItem returns the selected item, or nil.
func (s *Scene) SelectedItem() *Item { return s.Find(s.selected) }

// HitTest returns the topmost item under the given scene point, or nil.
func (s *Scene) HitTest(p geom.Pt) *Item {
	byZ := s.ItemsByZ()
	for i := len(byZ) - 1; i >= 0; i-- {
		if byZ[i].Rect().Contains(p) {
			return byZ[i]
		}
	}
	return nil
}

// Bounds returns the union of all item rectangles; ok is false when the scene
// is empty.
func (s *Scene) Bounds() (r geom.Rect, ok bool) {
	for i, it := range s.items {
		if i == 0 {
			r = it.Rect()
			continue
		}
		r = r.Union(it.Rect())
	}
	return r, len(s.items) > 0
}

// Close releases every image source. The scene must not be used afterwards.
func (s *Scene) Close() {
	for _, it := range s.items {
		it.src = nil
	}
	s.items = nil
	s.selected = 0
	s.sources.Close()
}

func (s *Scene) maxZ() int64 {
	var z int64
	for i, it := range s.items {
		if i == 0 || it.Z > z {
			z = it.Z
		}
	}
	return z
}

func (s *Scene) minZ() int64 {
	var z int64
	for i, it := range s.items {
		if i == 0 || it.Z < z {
			z = it.Z
		}
	}
	return z
}

// ItemLayout is the geometry of one item in a layout snapshot.
type ItemLayout struct {
	ID   int64   `json:"id"`
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	W    float64 `json:"w"`
	H    float64 `json:"h"`
	Z    int64   `json:"z"`
}

// Layout is a geometry-only snapshot of the scene. It carries no image data;
// it backs undo history and crash dumps, not a save format.
type Layout struct {
	Items    []ItemLayout `json:"items"`
	Selected int64        `json:"selected,omitempty"`
}

// Layout captures the current geometry snapshot.
func (s *Scene) Layout() Layout {
	l := Layout{Selected: s.selected}
	for _, it := range s.items {
		l.Items = append(l.Items, ItemLayout{ID: it.ID, Name: it.Name, X: it.X, Y: it.Y, W: it.W, H: it.H, Z: it.Z})
	}
	return l
}

// LayoutJSON returns the snapshot serialized as JSON.
func (s *Scene) LayoutJSON() ([]byte, error) {
	return json.Marshal(s.Layout())
}

// ApplyLayout restores geometry, stacking and selection for items that still
// exist. Snapshot entries whose id is no longer live are ignored, as are live
// items absent from the snapshot.
func (s *Scene) ApplyLayout(l Layout) {
	for _, il := range l.Items {
		it := s.Find(il.ID)
		if it == nil {
			continue
		}
		it.X, it.Y, it.W, it.H, it.Z = il.X, il.Y, il.W, il.H, il.Z
	}
	if l.Selected == 0 || s.Find(l.Selected) != nil {
		s.selected = l.Selected
	}
}
