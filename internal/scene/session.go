/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import "sceneboard/internal/geom"

// Phase is the state of the pointer interaction machine.
type Phase int

const (
	Idle Phase = iota
	Dragging
	Resizing
)

// Session is the mutable state of one pointer gesture. It lives outside the
// rendered widget state; the UI owns exactly one Session and feeds it
// scene-coordinate pointer positions. Only one gesture is active at a time
// (single-pointer assumption); pointer-up always returns to Idle.
type Session struct {
	phase  Phase
	itemID int64
	// grab is pointer minus item origin at drag start, so the item does not
	// jump under the cursor.
	grab geom.Pt
	// anchor is the pointer's scene position at resize start; start is the
	// item size at that moment.
	anchor geom.Pt
	start  geom.Size
}

// Phase returns the current state.
func (ss *Session) Phase() Phase { return ss.phase }

// Active reports whether a gesture is in progress.
func (ss *Session) Active() bool { return ss.phase != Idle }

// Item returns the id of the item under manipulation, 0 when Idle.
func (ss *Session) Item() int64 {
	if ss.phase == Idle {
		return 0
	}
	return ss.itemID
}

// BeginDrag starts a drag of the item's body at scene position p.
// Returns false (and stays Idle) when the item does not exist.
func (ss *Session) BeginDrag(sc *Scene, id int64, p geom.Pt) bool {
	it := sc.Find(id)
	if it == nil {
		return false
	}
	ss.phase = Dragging
	ss.itemID = id
	ss.grab = geom.Pt{X: p.X - it.X, Y: p.Y - it.Y}
	return true
}

// BeginResize starts a resize from the item's handle at scene position p.
// Returns false (and stays Idle) when the item does not exist.
func (ss *Session) BeginResize(sc *Scene, id int64, p geom.Pt) bool {
	it := sc.Find(id)
	if it == nil {
		return false
	}
	ss.phase = Resizing
	ss.itemID = id
	ss.anchor = p
	ss.start = geom.Size{W: it.W, H: it.H}
	return true
}

// Update applies a pointer move at scene position p. The target item may have
// been removed mid-gesture; the session then ends quietly.
func (ss *Session) Update(sc *Scene, p geom.Pt) {
	switch ss.phase {
	case Dragging:
		it := sc.Find(ss.itemID)
		if it == nil {
			ss.End()
			return
		}
		// New top-left is pointer minus grab offset; Move clamps to bounds.
		sc.Move(ss.itemID, p.X-ss.grab.X-it.X, p.Y-ss.grab.Y-it.Y)
	case Resizing:
		if sc.Find(ss.itemID) == nil {
			ss.End()
			return
		}
		sc.Resize(ss.itemID, ss.start.W+(p.X-ss.anchor.X), ss.start.H+(p.Y-ss.anchor.Y))
	}
}

// End returns the session to Idle unconditionally.
func (ss *Session) End() {
	ss.phase = Idle
	ss.itemID = 0
}
