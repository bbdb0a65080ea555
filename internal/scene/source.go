/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package scene

import (
	"bytes"
	"fmt"
	"image"

	// Register the decoders the editor accepts.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Source is an owned handle to one image's raw bytes and decoded pixels.
// Handles are created and released exclusively through a SourceStore so
// their lifetime is tied 1:1 to the item (or store) that owns them.
type Source struct {
	id       int64
	data     []byte
	img      image.Image
	released bool
}

// Image returns the decoded pixels, or nil after release.
func (s *Source) Image() image.Image {
	if s == nil || s.released {
		return nil
	}
	return s.img
}

// Bytes returns the raw encoded bytes, or nil after release.
func (s *Source) Bytes() []byte {
	if s == nil || s.released {
		return nil
	}
	return s.data
}

// Released reports whether the handle has been given back to its store.
func (s *Source) Released() bool { return s == nil || s.released }

// SourceStore owns every live Source. It exists to make image-byte ownership
// explicit: acquire on item creation, release on item removal, close on
// editor teardown. Nothing outside the store keeps image bytes alive.
type SourceStore struct {
	nextID int64
	live   map[int64]*Source
}

func NewSourceStore() *SourceStore {
	return &SourceStore{live: make(map[int64]*Source)}
}

// Acquire decodes data and registers an owned handle for it.
// Undecodable data or images with zero natural dimensions are rejected.
func (st *SourceStore) Acquire(data []byte) (*Source, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("decode image: %s has zero dimensions", format)
	}
	st.nextID++
	s := &Source{id: st.nextID, data: data, img: img}
	st.live[s.id] = s
	return s, nil
}

// Release gives a handle back; its bytes and pixels become unreachable.
// Releasing an already-released handle is a no-op.
func (st *SourceStore) Release(s *Source) {
	if s == nil || s.released {
		return
	}
	s.released = true
	s.data = nil
	s.img = nil
	delete(st.live, s.id)
}

// Len returns the number of live handles.
func (st *SourceStore) Len() int { return len(st.live) }

// Close releases every outstanding handle.
func (st *SourceStore) Close() {
	for _, s := range st.live {
		s.released = true
		s.data = nil
		s.img = nil
	}
	st.live = make(map[int64]*Source)
}
