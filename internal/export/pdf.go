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
	"fmt"
	"image"
	"image/png"

	"github.com/jung-kurt/gofpdf"

	"sceneboard/internal/scene"
)

// ExportPDF composites the scene and writes it as a single-page PDF under
// outDir. The page size matches the composite at 1pt per pixel, so the
// output prints at 72 DPI without any reflow. Returns the written path, or
// ("", nil) when the scene has nothing to export.
func ExportPDF(sc *scene.Scene, outDir string, opt Options) (string, error) {
	img, err := Compose(sc, opt)
	if err != nil {
		return "", err
	}
	return WritePDF(img, outDir)
}

// WritePDF wraps an already-composed raster in a single-page PDF under
// outDir. Like WritePNG it touches no scene state, so it is safe to run off
// the event thread. A nil image is a no-op, returning ("", nil).
func WritePDF(img *image.RGBA, outDir string) (string, error) {
	if img == nil {
		return "", nil
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode composite: %w", err)
	}

	w := float64(img.Bounds().Dx())
	h := float64(img.Bounds().Dy())
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: w, Ht: h},
		OrientationStr: "",
	})
	pdf.SetTitle("Scene Board Export", false)
	pdf.SetAuthor("Scene Board", false)
	pdf.AddPageFormat("", gofpdf.SizeType{Wd: w, Ht: h})

	imgOpt := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("composite", imgOpt, &buf)
	pdf.ImageOptions("composite", 0, 0, w, h, false, imgOpt, 0, "")

	f, path, err := createOutputFile(outDir, ".pdf")
	if err != nil {
		return "", err
	}
	if err := pdf.Output(f); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write pdf: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close pdf: %w", err)
	}
	return path, nil
}
