/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"testing"
	"time"
)

func TestClearAndStats(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1024, MaxDepth: 10, MinInterval: time.Millisecond})
	m.PushSnapshot(Snapshot{Blob: []byte("abcdef"), TS: time.Now()})
	tb, total := m.Stats()
	if tb == 0 || total != 1 {
		t.Fatalf("unexpected stats before clear: tb=%d total=%d", tb, total)
	}
	m.Clear()
	tb2, total2 := m.Stats()
	if tb2 != 0 || total2 != 0 {
		t.Fatalf("expected cleared stats to be zero, got tb=%d total=%d", tb2, total2)
	}
}

func TestByteCapPrunesOldest(t *testing.T) {
	// Very small MaxBytes so pruning triggers
	m := NewManager(Config{MaxBytes: 8, MaxDepth: 0, MinInterval: time.Millisecond})
	t0 := time.Now()
	m.PushSnapshot(Snapshot{Blob: []byte("xxxx"), TS: t0})
	m.PushSnapshot(Snapshot{Blob: []byte("yyyy"), TS: t0.Add(time.Second)})

	// Exceed the cap and force pruning of the oldest entry
	m.PushSnapshot(Snapshot{Blob: []byte("zzzz"), TS: t0.Add(2 * time.Second)})

	tb, total := m.Stats()
	if total != 2 || tb > 8 {
		t.Fatalf("expected oldest snapshot pruned, got tb=%d total=%d", tb, total)
	}
	// The remaining history should unwind newest-first
	cur := Snapshot{Blob: []byte("now"), TS: t0.Add(3 * time.Second)}
	s, ok := m.Undo(cur)
	if !ok || string(s.Blob) != "zzzz" {
		t.Fatalf("expected 'zzzz' on top, got ok=%v blob=%q", ok, string(s.Blob))
	}
	s, ok = m.Undo(s)
	if !ok || string(s.Blob) != "yyyy" {
		t.Fatalf("expected 'yyyy' next, got ok=%v blob=%q", ok, string(s.Blob))
	}
	if _, ok := m.Undo(s); ok {
		t.Fatalf("expected 'xxxx' to have been pruned")
	}
}
