//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// These tests validate the Fyne-based UI components. They are gated behind the
// "fyne" build tag so CI (which is headless) does not need Fyne or a display.
// To run locally:
//
//	go test -tags fyne ./internal/ui
//
// Ensure you have the Fyne dependencies installed and a working OS driver.
package ui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"fyne.io/fyne/v2"

	"sceneboard/internal/geom"
	"sceneboard/internal/scene"
)

func almostEqual(a, b, eps float32) bool {
	if a > b {
		return a-b <= eps
	}
	return b-a <= eps
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestSceneCanvas_Defaults(t *testing.T) {
	sc := scene.New()
	defer sc.Close()
	c := NewSceneCanvas(sc)
	if c.vp.Zoom != 1 {
		t.Fatalf("expected default zoom 1, got %v", c.vp.Zoom)
	}
	sz := c.PreferredSize()
	if sz.Width != 800 || sz.Height != 600 {
		t.Fatalf("unexpected PreferredSize: %v", sz)
	}
}

func TestSceneCanvas_LayoutGeometry(t *testing.T) {
	sc := scene.New()
	defer sc.Close()
	added := sc.AddImages([]scene.ImageFile{{Name: "a.png", Data: testPNG(t, 200, 100)}})
	if len(added) != 1 {
		t.Fatalf("expected one item, got %d", len(added))
	}
	it := added[0]

	c := NewSceneCanvas(sc)
	r, ok := c.CreateRenderer().(*sceneCanvasRenderer)
	if !ok {
		t.Fatalf("expected sceneCanvasRenderer, got %T", c.CreateRenderer())
	}

	containerSize := fyne.NewSize(1000, 800)
	r.Layout(containerSize)

	// The white board covers the whole scene extent at the current zoom.
	wantBoard := float32(scene.SceneExtent * c.vp.Zoom)
	if !almostEqual(r.board.Size().Width, wantBoard, 0.2) || !almostEqual(r.board.Size().Height, wantBoard, 0.2) {
		t.Fatalf("unexpected board size: got %v, want %v square", r.board.Size(), wantBoard)
	}

	if len(r.imgs) != 1 {
		t.Fatalf("expected one image visual, got %d", len(r.imgs))
	}
	im := r.imgs[0]
	if !im.Visible() {
		t.Fatal("item visual should be shown")
	}
	wantW := float32(it.W * c.vp.Zoom)
	wantH := float32(it.H * c.vp.Zoom)
	if !almostEqual(im.Size().Width, wantW, 0.2) || !almostEqual(im.Size().Height, wantH, 0.2) {
		t.Fatalf("unexpected item visual size: got %v, want (%v x %v)", im.Size(), wantW, wantH)
	}

	// AddImages selects the new item, so the selection overlay tracks it.
	if !r.bbox.Visible() || !r.handle.Visible() {
		t.Fatal("selection overlay should be visible for the selected item")
	}
	if !almostEqual(r.bbox.Position().X, im.Position().X, 0.2) ||
		!almostEqual(r.bbox.Position().Y, im.Position().Y, 0.2) {
		t.Fatalf("bbox should cover the item: bbox %v vs item %v", r.bbox.Position(), im.Position())
	}

	// Panning shifts everything on screen in the opposite direction.
	oldX := im.Position().X
	oldY := im.Position().Y
	c.vp.Pan(100, 50)
	r.Layout(containerSize)
	newX := im.Position().X
	newY := im.Position().Y
	if newX >= oldX-80 || newY >= oldY-30 { // allow for minor rounding
		t.Fatalf("expected item visual to move against the pan; before (%v,%v), after (%v,%v)", oldX, oldY, newX, newY)
	}
}

func TestSceneCanvas_GrowsVisualsBeforeOverlay(t *testing.T) {
	sc := scene.New()
	defer sc.Close()
	sc.AddImages([]scene.ImageFile{
		{Name: "a.png", Data: testPNG(t, 40, 40)},
		{Name: "b.png", Data: testPNG(t, 40, 40)},
	})

	c := NewSceneCanvas(sc)
	r := c.CreateRenderer().(*sceneCanvasRenderer)
	r.Layout(fyne.NewSize(800, 600))

	if len(r.imgs) != 2 {
		t.Fatalf("expected two image visuals, got %d", len(r.imgs))
	}
	// The selection overlay stays last in draw order.
	objs := r.Objects()
	if objs[len(objs)-1] != fyne.CanvasObject(r.handle) || objs[len(objs)-2] != fyne.CanvasObject(r.bbox) {
		t.Fatal("selection overlay should draw above item visuals")
	}

	sc.AddImages([]scene.ImageFile{{Name: "c.png", Data: testPNG(t, 40, 40)}})
	r.Layout(fyne.NewSize(800, 600))
	if len(r.imgs) != 3 {
		t.Fatalf("expected three image visuals after growth, got %d", len(r.imgs))
	}
	objs = r.Objects()
	if objs[len(objs)-1] != fyne.CanvasObject(r.handle) {
		t.Fatal("overlay must remain on top after growing the visual slice")
	}
}

// The edit callback must deliver the layout as it stood before the gesture
// moved anything, otherwise undo restores the post-drag arrangement.
func TestDragReportsEditBeforeFirstMove(t *testing.T) {
	sc := scene.New()
	defer sc.Close()
	added := sc.AddImages([]scene.ImageFile{{Name: "a.png", Data: testPNG(t, 60, 60)}})
	if len(added) != 1 {
		t.Fatalf("expected one item, got %d", len(added))
	}
	it := added[0]
	origX, origY := it.X, it.Y

	c := NewSceneCanvas(sc)
	c.Resize(fyne.NewSize(800, 600))

	fired := 0
	var seenX, seenY float64
	c.OnEdit = func() {
		fired++
		seenX, seenY = it.X, it.Y
	}

	sx, sy := c.vp.ToScreen(geom.Pt{X: it.X + 5, Y: it.Y + 5})
	at := func(x, y float64) *fyne.DragEvent {
		return &fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(float32(x), float32(y))}}
	}
	c.Dragged(at(sx, sy))
	c.Dragged(at(sx+40, sy+25))
	c.DragEnd()

	if fired != 1 {
		t.Fatalf("edit callback fired %d times, want 1", fired)
	}
	if seenX != origX || seenY != origY {
		t.Fatalf("callback saw (%v,%v), want pre-drag (%v,%v)", seenX, seenY, origX, origY)
	}
	if it.X != origX+40 || it.Y != origY+25 {
		t.Fatalf("item at (%v,%v) after drag, want (%v,%v)", it.X, it.Y, origX+40, origY+25)
	}

	// A second gesture reports a fresh edit.
	c.Dragged(at(sx+40, sy+25))
	c.Dragged(at(sx+50, sy+25))
	c.DragEnd()
	if fired != 2 {
		t.Fatalf("edit callback fired %d times after two gestures, want 2", fired)
	}
}
