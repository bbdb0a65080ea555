/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sceneboard/internal/scene"
)

var (
	red   = color.RGBA{R: 255, A: 255}
	green = color.RGBA{G: 255, A: 255}
	blue  = color.RGBA{B: 255, A: 255}
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

func solidPNG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

// place adds a solid image and forces its geometry.
func place(t *testing.T, sc *scene.Scene, name string, natW, natH int, c color.RGBA, x, y, w, h float64) *scene.Item {
	t.Helper()
	added := sc.AddImages([]scene.ImageFile{{Name: name, Data: solidPNG(t, natW, natH, c)}})
	if len(added) != 1 {
		t.Fatalf("AddImages returned %d items", len(added))
	}
	it := added[0]
	sc.Resize(it.ID, w, h)
	sc.Move(it.ID, x-it.X, y-it.Y)
	return it
}

func pixel(img *image.RGBA, x, y int) color.RGBA {
	return img.RGBAAt(x, y)
}

func TestComposeEmptySceneIsNoOp(t *testing.T) {
	sc := scene.New()
	defer sc.Close()

	img, err := Compose(sc, Options{})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if img != nil {
		t.Fatalf("Compose of empty scene produced an image")
	}

	path, err := ExportPNG(sc, t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("ExportPNG: %v", err)
	}
	if path != "" {
		t.Fatalf("ExportPNG of empty scene wrote %q", path)
	}
}

func TestComposeCanvasSizeAndBackground(t *testing.T) {
	sc := scene.New()
	defer sc.Close()
	place(t, sc, "a.png", 50, 50, red, 100, 100, 50, 50)

	img, err := Compose(sc, Options{Padding: 10})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if got := img.Bounds().Size(); got.X != 70 || got.Y != 70 {
		t.Fatalf("canvas = %v, want 70x70", got)
	}
	if got := pixel(img, 2, 2); got != white {
		t.Fatalf("padding pixel = %v, want white", got)
	}
	if got := pixel(img, 35, 35); got != red {
		t.Fatalf("item pixel = %v, want red", got)
	}
}

func TestComposeStackingOrderDecidesOcclusion(t *testing.T) {
	sc := scene.New()
	defer sc.Close()
	a := place(t, sc, "red.png", 40, 40, red, 0, 0, 40, 40)
	place(t, sc, "blue.png", 40, 40, blue, 0, 0, 40, 40)

	img, err := Compose(sc, Options{Padding: 0})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if got := pixel(img, 20, 20); got != blue {
		t.Fatalf("top pixel = %v, want blue (added last)", got)
	}

	sc.BringToFront(a.ID)
	img, err = Compose(sc, Options{Padding: 0})
	if err != nil {
		t.Fatalf("Compose after raise: %v", err)
	}
	if got := pixel(img, 20, 20); got != red {
		t.Fatalf("top pixel after raise = %v, want red", got)
	}
}

func TestComposeLetterboxesWideSourceInSquareItem(t *testing.T) {
	sc := scene.New()
	defer sc.Close()
	// 400x200 source displayed in a 200x200 rectangle: contain fit scales by
	// 0.5 into a 200x100 band, vertically centered, background showing above
	// and below.
	place(t, sc, "wide.png", 400, 200, green, 100, 100, 200, 200)

	img, err := Compose(sc, Options{Padding: 10})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if got := img.Bounds().Size(); got.X != 220 || got.Y != 220 {
		t.Fatalf("canvas = %v, want 220x220", got)
	}
	// Band occupies y in [60, 160) at full item width.
	if got := pixel(img, 110, 110); got != green {
		t.Fatalf("band center = %v, want green", got)
	}
	if got := pixel(img, 110, 30); got != white {
		t.Fatalf("above band = %v, want white", got)
	}
	if got := pixel(img, 110, 190); got != white {
		t.Fatalf("below band = %v, want white", got)
	}
	if got := pixel(img, 15, 110); got != green {
		t.Fatalf("band left edge region = %v, want green", got)
	}
}

func TestComposeAfterRemoveShrinksToSurvivors(t *testing.T) {
	sc := scene.New()
	defer sc.Close()
	place(t, sc, "a.png", 40, 40, red, 0, 0, 40, 40)
	b := place(t, sc, "b.png", 40, 40, blue, 100, 0, 40, 40)

	sc.Remove(b.ID)

	img, err := Compose(sc, Options{Padding: 0})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	// Only a remains, so the canvas shrinks to its rectangle.
	if got := img.Bounds().Size(); got.X != 40 || got.Y != 40 {
		t.Fatalf("canvas = %v, want 40x40", got)
	}
	if got := pixel(img, 20, 20); got != red {
		t.Fatalf("pixel = %v, want red", got)
	}
}

func TestComposePixelScale(t *testing.T) {
	sc := scene.New()
	defer sc.Close()
	place(t, sc, "a.png", 50, 50, red, 0, 0, 50, 50)

	img, err := Compose(sc, Options{Padding: 5, PixelScale: 2})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if got := img.Bounds().Size(); got.X != 120 || got.Y != 120 {
		t.Fatalf("canvas = %v, want 120x120", got)
	}
	if got := pixel(img, 60, 60); got != red {
		t.Fatalf("pixel = %v, want red", got)
	}
}

func TestExportPNGWritesDecodableFile(t *testing.T) {
	sc := scene.New()
	defer sc.Close()
	place(t, sc, "a.png", 40, 40, blue, 0, 0, 40, 40)

	dir := t.TempDir()
	path, err := ExportPNG(sc, dir, Options{Padding: 0})
	if err != nil {
		t.Fatalf("ExportPNG: %v", err)
	}
	if filepath.Dir(path) != dir || !strings.HasPrefix(filepath.Base(path), "sceneboard-") {
		t.Fatalf("unexpected output path %q", path)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if got := decoded.Bounds().Size(); got.X != 40 || got.Y != 40 {
		t.Fatalf("output size = %v, want 40x40", got)
	}
}

// A composed raster must be a detached copy: later scene mutations on the
// event thread cannot bleed into an image already handed to the file writer.
func TestComposedImageDetachedFromLaterMutations(t *testing.T) {
	sc := scene.New()
	defer sc.Close()
	it := place(t, sc, "a.png", 40, 40, red, 100, 100, 40, 40)

	img, err := Compose(sc, Options{Padding: 0})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if got := pixel(img, 20, 20); got != red {
		t.Fatalf("pixel = %v, want red", got)
	}

	sc.Move(it.ID, 500, 500)
	sc.Remove(it.ID)

	if got := pixel(img, 20, 20); got != red {
		t.Fatalf("pixel after mutations = %v, want red", got)
	}
	path, err := WritePNG(img, t.TempDir())
	if err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	decoded, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if got := decoded.Bounds().Size(); got.X != 40 || got.Y != 40 {
		t.Fatalf("output size = %v, want 40x40", got)
	}
}

func TestWritePNGNilImageIsNoOp(t *testing.T) {
	path, err := WritePNG(nil, t.TempDir())
	if err != nil || path != "" {
		t.Fatalf("WritePNG(nil) = (%q, %v), want no-op", path, err)
	}
}

func TestExportNamesDoNotCollideWithinSameSecond(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	dir := t.TempDir()

	seen := map[string]bool{}
	for i := 0; i < 3; i++ {
		path, err := WritePNG(img, dir)
		if err != nil {
			t.Fatalf("WritePNG #%d: %v", i+1, err)
		}
		if seen[path] {
			t.Fatalf("path %q reused", path)
		}
		seen[path] = true
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("stat %q: %v", path, err)
		}
	}
}
