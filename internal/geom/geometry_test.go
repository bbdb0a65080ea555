/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package geom

import "testing"

func TestRectContainsAndInset(t *testing.T) {
	r := R(10, 20, 100, 50)
	if !r.Contains(Pt{10, 20}) || !r.Contains(Pt{110, 70}) {
		t.Fatalf("expected edge points to be contained")
	}
	in := r.Inset(5, 5)
	if in.X != 15 || in.Y != 25 || in.W != 90 || in.H != 40 {
		t.Fatalf("unexpected inset: %+v", in)
	}
}

func TestRectUnion(t *testing.T) {
	u := R(0, 0, 10, 10).Union(R(5, 5, 20, 20))
	if u.X != 0 || u.Y != 0 || u.W != 25 || u.H != 25 {
		t.Fatalf("unexpected union: %+v", u)
	}
}

func TestRectCenter(t *testing.T) {
	c := R(100, 100, 200, 200).Center()
	if c.X != 200 || c.Y != 200 {
		t.Fatalf("unexpected center: %+v", c)
	}
}

func TestClamp(t *testing.T) {
	if Clamp(-1, 0, 10) != 0 || Clamp(11, 0, 10) != 10 || Clamp(5, 0, 10) != 5 {
		t.Fatalf("clamp misbehaved")
	}
}

func TestFloatRound(t *testing.T) {
	if v := FloatRound(1.2345, 2); v != 1.23 {
		t.Fatalf("unexpected round: %v", v)
	}
	if v := FloatRound(0.30000000000000004, 2); v != 0.3 {
		t.Fatalf("expected 0.3, got %v", v)
	}
	if v := FloatRound(1.2345, -1); v != 1.2345 {
		t.Fatalf("negative places should be identity, got %v", v)
	}
}
