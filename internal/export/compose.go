/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export flattens a scene into raster output: a single PNG or PDF of
// all placed items composited in stacking order. Export works on the scene's
// virtual coordinates and is independent of the viewport's zoom and scroll.
package export

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"time"

	xdraw "golang.org/x/image/draw"

	"sceneboard/internal/scene"
)

// DefaultPadding is the margin in scene units added around the item bounding
// box before rasterizing.
const DefaultPadding = 32.0

// Options controls compositing.
// - Padding: margin around the item bounding box; DefaultPadding when < 0.
// - Background: canvas fill; opaque white when zero.
// - PixelScale: scene-unit to output-pixel factor; 1 when <= 0.
type Options struct {
	Padding    float64
	Background color.RGBA
	PixelScale float64
}

func (o Options) padding() float64 {
	if o.Padding < 0 {
		return DefaultPadding
	}
	return o.Padding
}

func (o Options) background() color.RGBA {
	if o.Background == (color.RGBA{}) {
		return color.RGBA{R: 255, G: 255, B: 255, A: 255}
	}
	return o.Background
}

func (o Options) pixelScale() float64 {
	if o.PixelScale <= 0 {
		return 1
	}
	return o.PixelScale
}

// Compose renders the items onto a fresh canvas sized to their joint bounding
// box plus padding. Items are drawn bottom to top; inside its display
// rectangle each image is fitted "contain" style, aspect preserved and
// letterboxed against the background. Items whose source has been released
// are skipped. A scene with no drawable items yields (nil, nil).
func Compose(sc *scene.Scene, opt Options) (*image.RGBA, error) {
	items := drawable(sc.ItemsByZ())
	if len(items) == 0 {
		return nil, nil
	}

	bounds := items[0].Rect()
	for _, it := range items[1:] {
		bounds = bounds.Union(it.Rect())
	}
	pad := opt.padding()
	ps := opt.pixelScale()
	pixW := int(math.Round((bounds.W + 2*pad) * ps))
	pixH := int(math.Round((bounds.H + 2*pad) * ps))
	if pixW <= 0 || pixH <= 0 {
		return nil, fmt.Errorf("degenerate canvas %dx%d", pixW, pixH)
	}

	out := image.NewRGBA(image.Rect(0, 0, pixW, pixH))
	draw.Draw(out, out.Bounds(), &image.Uniform{C: opt.background()}, image.Point{}, draw.Src)

	for _, it := range items {
		src := it.Source().Image()
		natW := float64(it.NaturalW)
		natH := float64(it.NaturalH)
		if natW <= 0 || natH <= 0 {
			continue
		}

		// Contain fit: one uniform scale, the smaller of the per-axis ratios.
		fit := math.Min(it.W/natW, it.H/natH)
		drawW := natW * fit
		drawH := natH * fit
		// Center the fitted image inside the display rectangle.
		x := (it.X - bounds.X + pad + (it.W-drawW)/2) * ps
		y := (it.Y - bounds.Y + pad + (it.H-drawH)/2) * ps

		dst := image.Rect(
			int(math.Round(x)), int(math.Round(y)),
			int(math.Round(x+drawW*ps)), int(math.Round(y+drawH*ps)),
		)
		xdraw.CatmullRom.Scale(out, dst, src, src.Bounds(), xdraw.Over, nil)
	}
	return out, nil
}

// ExportPNG composites the scene and writes it as a timestamped PNG under
// outDir, creating the directory if needed. It returns the written path, or
// ("", nil) when the scene has nothing to export.
func ExportPNG(sc *scene.Scene, outDir string, opt Options) (string, error) {
	img, err := Compose(sc, opt)
	if err != nil {
		return "", err
	}
	return WritePNG(img, outDir)
}

// WritePNG encodes an already-composed raster to a timestamped PNG under
// outDir. Taking the finished image keeps scene access out of this call, so
// encoding and file I/O can run off the event thread while the scene keeps
// mutating. A nil image is a no-op, returning ("", nil).
func WritePNG(img *image.RGBA, outDir string) (string, error) {
	if img == nil {
		return "", nil
	}
	f, path, err := createOutputFile(outDir, ".png")
	if err != nil {
		return "", err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close png: %w", err)
	}
	return path, nil
}

// createOutputFile claims a fresh timestamped output file under outDir.
// A sequence suffix disambiguates exports landing within the same second.
func createOutputFile(outDir, ext string) (*os.File, string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, "", fmt.Errorf("ensure out dir: %w", err)
	}
	stamp := time.Now().Format("20060102-150405")
	for seq := 1; ; seq++ {
		name := fmt.Sprintf("sceneboard-%s%s", stamp, ext)
		if seq > 1 {
			name = fmt.Sprintf("sceneboard-%s-%d%s", stamp, seq, ext)
		}
		path := filepath.Join(outDir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !os.IsExist(err) {
			return nil, "", fmt.Errorf("create %s: %w", name, err)
		}
	}
}

func drawable(items []*scene.Item) []*scene.Item {
	out := items[:0]
	for _, it := range items {
		if it.Source() != nil && !it.Source().Released() && it.Source().Image() != nil {
			out = append(out, it)
		}
	}
	return out
}
