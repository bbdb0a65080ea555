//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
	xdraw "golang.org/x/image/draw"

	"sceneboard/internal/backend"
	"sceneboard/internal/config"
	"sceneboard/internal/crash"
	"sceneboard/internal/export"
	"sceneboard/internal/geom"
	"sceneboard/internal/library"
	applog "sceneboard/internal/log"
	"sceneboard/internal/scene"
	"sceneboard/internal/telemetry"
	"sceneboard/internal/undo"
	"sceneboard/internal/version"
)

// Run starts the Fyne-based desktop shell. imagePaths are placed into the
// scene at startup.
func Run(imagePaths []string) error {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("ui")
	l.Info("starting UI")

	cfg, token, err := config.Load()
	if err != nil {
		l.Warn("config load failed, using defaults", slog.Any("err", err))
		cfg = config.Defaults()
	}

	// Claim the default client before the first Event call can, so the
	// config opt-in is not lost to the env-only initialization.
	telemetry.InitDefault()
	tcfg := telemetry.FromEnv()
	if cfg.General.TelemetryOptIn {
		tcfg.OptIn = true
	}
	telemetry.NewDefault(tcfg)

	sc := scene.New()
	defer sc.Close()
	defer func() { crash.Recover(sc) }()

	// The library is optional bookkeeping; the editor works without it.
	var lib *library.Library
	if libPath, lerr := config.LibraryPath(cfg); lerr == nil {
		if lib, lerr = library.Open(libPath, cfg.Library.ThumbCapBytes); lerr != nil {
			l.Warn("library unavailable", slog.Any("err", lerr))
		} else {
			defer lib.Close()
		}
	}

	trainer := backend.NewClient(cfg.Trainer.BaseURL, token,
		time.Duration(cfg.Trainer.TimeoutMs)*time.Millisecond, cfg.Trainer.TLSInsecure)

	fyneApp := app.NewWithID("sceneboard")
	w := fyneApp.NewWindow("Scene Board")
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 1200)
	winH := prefs.IntWithFallback("window.height", 800)
	if winW < 800 {
		winW = 800
	}
	if winH < 600 {
		winH = 600
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	status := widget.NewLabel("Ready")
	canvasWidget := NewSceneCanvas(sc)

	undoMgr := undo.NewManager(undo.Config{
		MaxBytes:    16 * 1024 * 1024,
		MaxDepth:    50,
		MinInterval: 250 * time.Millisecond,
	})

	captureSnapshot := func() {
		blob, err := sc.LayoutJSON()
		if err != nil {
			l.Error("layout snapshot failed", slog.Any("err", err))
			return
		}
		undoMgr.PushSnapshot(undo.Snapshot{Blob: blob, TS: time.Now()})
	}
	applySnapshot := func(blob []byte) error {
		var layout scene.Layout
		if err := json.Unmarshal(blob, &layout); err != nil {
			return err
		}
		sc.ApplyLayout(layout)
		canvasWidget.Refresh()
		return nil
	}

	// Layer list (right): topmost item first.
	layerNames := []string{}
	layerIDs := []int64{}
	var layerList *widget.List
	refreshLayers := func() {
		layerNames = layerNames[:0]
		layerIDs = layerIDs[:0]
		byZ := sc.ItemsByZ()
		for i := len(byZ) - 1; i >= 0; i-- {
			layerNames = append(layerNames, byZ[i].Name)
			layerIDs = append(layerIDs, byZ[i].ID)
		}
		layerList.Refresh()
		sel := -1
		for i, id := range layerIDs {
			if id == sc.Selected() {
				sel = i
				break
			}
		}
		if sel >= 0 {
			layerList.Select(sel)
		} else {
			layerList.UnselectAll()
		}
	}
	layerList = widget.NewList(
		func() int { return len(layerNames) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			if i >= 0 && int(i) < len(layerNames) {
				o.(*widget.Label).SetText(layerNames[i])
			} else {
				o.(*widget.Label).SetText("")
			}
		},
	)
	layerList.OnSelected = func(id widget.ListItemID) {
		if id < 0 || int(id) >= len(layerIDs) {
			return
		}
		itemID := layerIDs[id]
		if sc.Selected() == itemID {
			return
		}
		sc.Select(itemID)
		if it := sc.Find(itemID); it != nil {
			canvasWidget.vp.FocusItem(it)
		}
		canvasWidget.Refresh()
		l.Info("layer selected", slog.Int64("item", itemID))
	}
	canvasWidget.OnSelectionChanged = func() { refreshLayers() }
	canvasWidget.OnEdit = func() { captureSnapshot() }

	addFiles := func(files []scene.ImageFile, paths []string) {
		if len(files) == 0 {
			return
		}
		captureSnapshot()
		added := sc.AddImages(files)
		if len(added) < len(files) {
			status.SetText(fmt.Sprintf("Added %d of %d images (some could not be decoded)", len(added), len(files)))
		} else {
			status.SetText(fmt.Sprintf("Added %d images", len(added)))
		}
		if len(added) > 0 {
			canvasWidget.vp.FocusItem(added[len(added)-1])
			telemetry.Event("images_added", map[string]any{"count": len(added)})
		}
		canvasWidget.Refresh()
		refreshLayers()
		// Catalog bookkeeping off the UI thread. Decoded images are captured
		// here, on the event thread, so the goroutine never reads live
		// source handles that a concurrent Remove could release.
		if lib != nil && len(paths) > 0 {
			imgs := make([]image.Image, len(paths))
			for i := range paths {
				if i < len(added) {
					if src := added[i].Source(); src != nil {
						imgs[i] = src.Image()
					}
				}
			}
			go func(paths []string, imgs []image.Image) {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				for i, p := range paths {
					if p == "" {
						continue
					}
					if err := lib.RecordUse(ctx, p); err != nil {
						l.Warn("record use failed", slog.String("path", p), slog.Any("err", err))
						continue
					}
					if imgs[i] != nil {
						storeThumb(ctx, lib, p, imgs[i])
					}
				}
			}(append([]string(nil), paths...), imgs)
		}
	}

	addFromPaths := func(paths []string) {
		var files []scene.ImageFile
		var ok []string
		for _, p := range paths {
			data, err := os.ReadFile(p)
			if err != nil {
				l.Warn("read image failed", slog.String("path", p), slog.Any("err", err))
				continue
			}
			files = append(files, scene.ImageFile{Name: filepath.Base(p), Data: data})
			ok = append(ok, p)
		}
		addFiles(files, ok)
	}

	addImagesAction := func() {
		open := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if rc == nil {
				return
			}
			defer rc.Close()
			path := rc.URI().Path()
			var buf bytes.Buffer
			if _, err := buf.ReadFrom(rc); err != nil {
				dialog.ShowError(err, w)
				return
			}
			addFiles([]scene.ImageFile{{Name: filepath.Base(path), Data: buf.Bytes()}}, []string{path})
		}, w)
		open.SetFilter(fstorage.NewExtensionFileFilter([]string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tiff", ".webp"}))
		open.Show()
	}

	// Dropping files onto the window places them like Add Images does.
	w.SetOnDropped(func(_ fyne.Position, uris []fyne.URI) {
		var paths []string
		for _, u := range uris {
			if u.Scheme() == "file" {
				paths = append(paths, u.Path())
			}
		}
		addFromPaths(paths)
	})

	// Export runs off the UI thread; a single-flight guard keeps a second
	// click from racing the first.
	isExporting := false
	exportAction := func(format string) {
		if isExporting {
			status.SetText("Export already running…")
			return
		}
		if sc.Len() == 0 {
			dialog.ShowInformation("Export", "The scene is empty.", w)
			return
		}
		// Compose on the event thread so the raster is a settled snapshot;
		// any mutation after this point cannot reach the export.
		img, err := export.Compose(sc, export.Options{Padding: export.DefaultPadding})
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		if img == nil {
			status.SetText("Nothing to export.")
			return
		}
		isExporting = true
		status.SetText("Exporting…")
		outDir := prefs.StringWithFallback("export.dir", "")
		if outDir == "" {
			home, _ := os.UserHomeDir()
			outDir = filepath.Join(home, "SceneBoard")
		}
		go func() {
			var path string
			var err error
			switch format {
			case "pdf":
				path, err = export.WritePDF(img, outDir)
			default:
				path, err = export.WritePNG(img, outDir)
			}
			fyne.Do(func() {
				isExporting = false
				if err != nil {
					l.Error("export failed", slog.String("format", format), slog.Any("err", err))
					dialog.ShowError(err, w)
					status.SetText("Export failed.")
					return
				}
				status.SetText("Exported to " + path)
				telemetry.Event("export", map[string]any{"format": format})
				dialog.ShowInformation("Export", "Exported to "+path, w)
			})
		}()
	}

	withSelection := func(name string, fn func(it *scene.Item)) func() {
		return func() {
			it := sc.SelectedItem()
			if it == nil {
				dialog.ShowInformation(name, "Nothing is selected.", w)
				return
			}
			fn(it)
			canvasWidget.Refresh()
			refreshLayers()
		}
	}

	bringFront := withSelection("Bring to Front", func(it *scene.Item) {
		captureSnapshot()
		sc.BringToFront(it.ID)
	})
	sendBack := withSelection("Send to Back", func(it *scene.Item) {
		captureSnapshot()
		sc.SendToBack(it.ID)
	})
	deleteSelected := withSelection("Delete", func(it *scene.Item) {
		captureSnapshot()
		sc.Remove(it.ID)
		status.SetText("Deleted " + it.Name)
	})

	// Toolbar
	toolbar := container.NewHBox(
		widget.NewButton("Add Images…", addImagesAction),
		widget.NewSeparator(),
		widget.NewButton("Zoom In", func() { canvasWidget.vp.ZoomIn(); canvasWidget.Refresh(); status.SetText(zoomText(canvasWidget.vp)) }),
		widget.NewButton("Zoom Out", func() { canvasWidget.vp.ZoomOut(); canvasWidget.Refresh(); status.SetText(zoomText(canvasWidget.vp)) }),
		widget.NewButton("Reset View", func() { canvasWidget.vp.Reset(); canvasWidget.Refresh(); status.SetText(zoomText(canvasWidget.vp)) }),
		widget.NewSeparator(),
		widget.NewButton("Front", func() { bringFront() }),
		widget.NewButton("Back", func() { sendBack() }),
		widget.NewButton("Delete", func() { deleteSelected() }),
	)

	right := container.NewBorder(widget.NewLabel("Layers"), nil, nil, nil, layerList)
	root := container.NewBorder(toolbar, status, nil, right, canvasWidget)
	w.SetContent(root)

	// Menus
	addImagesItem := fyne.NewMenuItem("Add Images…", addImagesAction)
	recentItem := fyne.NewMenuItem("Add Recent…", func() {
		if lib == nil {
			dialog.ShowInformation("Recent Images", "The image library is unavailable.", w)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		entries, err := lib.Recent(ctx, 15)
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		if len(entries) == 0 {
			dialog.ShowInformation("Recent Images", "No recently used images yet.", w)
			return
		}
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name
		}
		list := widget.NewList(
			func() int { return len(names) },
			func() fyne.CanvasObject { return widget.NewLabel("") },
			func(i widget.ListItemID, o fyne.CanvasObject) { o.(*widget.Label).SetText(names[i]) },
		)
		d := dialog.NewCustom("Recent Images", "Close", container.NewStack(list), w)
		list.OnSelected = func(id widget.ListItemID) {
			if id < 0 || int(id) >= len(entries) {
				return
			}
			addFromPaths([]string{entries[id].Path})
			d.Hide()
		}
		d.Resize(fyne.NewSize(400, 400))
		d.Show()
	})
	exportPNGItem := fyne.NewMenuItem("Export as PNG", func() { exportAction("png") })
	exportPDFItem := fyne.NewMenuItem("Export as PDF", func() { exportAction("pdf") })
	fileMenu := fyne.NewMenu("File", addImagesItem, recentItem, fyne.NewMenuItemSeparator(), exportPNGItem, exportPDFItem)

	currentSnapshot := func() (undo.Snapshot, bool) {
		blob, err := sc.LayoutJSON()
		if err != nil {
			dialog.ShowError(err, w)
			return undo.Snapshot{}, false
		}
		return undo.Snapshot{Blob: blob, TS: time.Now()}, true
	}
	undoItem := fyne.NewMenuItem("Undo", func() {
		cur, ok := currentSnapshot()
		if !ok {
			return
		}
		if s, ok := undoMgr.Undo(cur); ok {
			if err := applySnapshot(s.Blob); err != nil {
				dialog.ShowError(err, w)
				return
			}
			refreshLayers()
			status.SetText("Undid last action")
		} else {
			status.SetText("Nothing to undo.")
		}
	})
	redoItem := fyne.NewMenuItem("Redo", func() {
		cur, ok := currentSnapshot()
		if !ok {
			return
		}
		if s, ok := undoMgr.Redo(cur); ok {
			if err := applySnapshot(s.Blob); err != nil {
				dialog.ShowError(err, w)
				return
			}
			refreshLayers()
			status.SetText("Redid last action")
		} else {
			status.SetText("Nothing to redo.")
		}
	})
	editMenu := fyne.NewMenu("Edit", undoItem, redoItem, fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Bring to Front", func() { bringFront() }),
		fyne.NewMenuItem("Send to Back", func() { sendBack() }),
		fyne.NewMenuItem("Delete", func() { deleteSelected() }),
	)

	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("Zoom In", func() { canvasWidget.vp.ZoomIn(); canvasWidget.Refresh() }),
		fyne.NewMenuItem("Zoom Out", func() { canvasWidget.vp.ZoomOut(); canvasWidget.Refresh() }),
		fyne.NewMenuItem("Reset View", func() { canvasWidget.vp.Reset(); canvasWidget.Refresh() }),
		fyne.NewMenuItem("Focus Selection", func() {
			if it := sc.SelectedItem(); it != nil {
				canvasWidget.vp.FocusItem(it)
				canvasWidget.Refresh()
			}
		}),
	)

	trainerMenu := buildTrainerMenu(w, l, status, sc, trainer, cfg)

	aboutItem := fyne.NewMenuItem("About Scene Board", func() {
		exe, _ := os.Executable()
		info := fmt.Sprintf("Scene Board\nVersion: %s\nOS: %s\nArch: %s\nGo: %s\nExecutable: %s\nTrainer: %s",
			version.String(), runtime.GOOS, runtime.GOARCH, runtime.Version(), exe, cfg.Trainer.BaseURL)
		dialog.ShowInformation("About", info, w)
	})
	aboutMenu := fyne.NewMenu("About", aboutItem)

	w.SetMainMenu(fyne.NewMainMenu(fileMenu, editMenu, viewMenu, trainerMenu, aboutMenu))

	w.SetCloseIntercept(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
		w.Close()
	})

	if len(imagePaths) > 0 {
		addFromPaths(imagePaths)
	}
	refreshLayers()

	w.ShowAndRun()
	return nil
}

func zoomText(vp *scene.Viewport) string {
	return fmt.Sprintf("Zoom %d%%", int(vp.Zoom*100))
}

// storeThumb renders a small PNG of an already-decoded image into the
// library cache. img must be captured on the event thread; decoded images
// are never mutated, so reading one here is safe.
func storeThumb(ctx context.Context, lib *library.Library, path string, img image.Image) {
	const edge = 128
	_, err := lib.GetOrCreateThumb(ctx, path, edge, edge, func(context.Context) ([]byte, error) {
		b := img.Bounds()
		fit := float64(edge) / float64(max(b.Dx(), b.Dy()))
		tw := int(float64(b.Dx()) * fit)
		th := int(float64(b.Dy()) * fit)
		if tw < 1 {
			tw = 1
		}
		if th < 1 {
			th = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, tw, th))
		xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
		var buf bytes.Buffer
		if err := png.Encode(&buf, dst); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
	if err != nil {
		applog.WithComponent("ui").Warn("thumb cache failed", slog.String("path", path), slog.Any("err", err))
	}
}

// buildTrainerMenu wires the trainer service actions: connectivity checks,
// job control using the scene's images, and model management.
func buildTrainerMenu(w fyne.Window, l *slog.Logger, status *widget.Label, sc *scene.Scene, trainer *backend.Client, cfg config.AppConfig) *fyne.Menu {
	checkItem := fyne.NewMenuItem("Check Connection", func() {
		status.SetText("Checking trainer…")
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := trainer.Health(ctx)
			var acc backend.StatusMessage
			if err == nil {
				acc, _ = trainer.CheckAccelerator(ctx)
			}
			fyne.Do(func() {
				if err != nil {
					l.Error("trainer unreachable", slog.Any("err", err))
					dialog.ShowError(fmt.Errorf("trainer at %s: %w", trainer.BaseURL, err), w)
					status.SetText("Trainer unreachable.")
					return
				}
				status.SetText("Trainer reachable.")
				msg := "Trainer is reachable."
				if acc.Message != "" {
					msg += "\n" + acc.Message
				}
				dialog.ShowInformation("Trainer", msg, w)
			})
		}()
	})

	statusItem := fyne.NewMenuItem("Training Status", func() {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			st, err := trainer.TrainingStatus(ctx)
			fyne.Do(func() {
				if err != nil {
					dialog.ShowError(err, w)
					return
				}
				dialog.ShowInformation("Training Status",
					fmt.Sprintf("Status: %s\nProgress: %.1f%%\n%s", st.Status, st.Progress, st.Message), w)
			})
		}()
	})

	trainItem := fyne.NewMenuItem("Train from Scene…", func() {
		items := sc.Items()
		if len(items) == 0 {
			dialog.ShowInformation("Train", "Add images to the scene first.", w)
			return
		}
		promptEntry := widget.NewEntry()
		promptEntry.SetPlaceHolder("a photo of sks dog")
		modelEntry := widget.NewEntry()
		modelEntry.SetText("runwayml/stable-diffusion-v1-5")
		stepsEntry := widget.NewEntry()
		stepsEntry.SetText("800")
		form := dialog.NewForm("Train from Scene", "Start", "Cancel", []*widget.FormItem{
			widget.NewFormItem("Instance Prompt", promptEntry),
			widget.NewFormItem("Base Model", modelEntry),
			widget.NewFormItem("Steps", stepsEntry),
		}, func(ok bool) {
			if !ok {
				return
			}
			steps, err := strconv.Atoi(strings.TrimSpace(stepsEntry.Text))
			if err != nil || steps <= 0 {
				dialog.ShowError(fmt.Errorf("invalid step count %q", stepsEntry.Text), w)
				return
			}
			req := backend.TrainRequest{
				BaseModel:      strings.TrimSpace(modelEntry.Text),
				InstancePrompt: strings.TrimSpace(promptEntry.Text),
				Steps:          steps,
				LearningRate:   1e-4,
				Resolution:     512,
				TrainBatchSize: 1,
			}
			for _, it := range items {
				src := it.Source()
				if src == nil || src.Released() {
					continue
				}
				req.Images = append(req.Images, backend.ImageUpload{Name: it.Name, Data: src.Bytes()})
			}
			status.SetText("Submitting training job…")
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
				defer cancel()
				m, err := trainer.StartTraining(ctx, req)
				fyne.Do(func() {
					if err != nil {
						l.Error("start training failed", slog.Any("err", err))
						dialog.ShowError(err, w)
						status.SetText("Training submit failed.")
						return
					}
					status.SetText("Trainer: " + m.Message)
					dialog.ShowInformation("Train", m.Message, w)
				})
			}()
		}, w)
		form.Resize(fyne.NewSize(480, 260))
		form.Show()
	})

	terminateItem := fyne.NewMenuItem("Terminate Training", func() {
		dialog.ShowConfirm("Terminate Training", "Signal the running job to stop?", func(ok bool) {
			if !ok {
				return
			}
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				m, err := trainer.TerminateTraining(ctx)
				fyne.Do(func() {
					if err != nil {
						dialog.ShowError(err, w)
						return
					}
					status.SetText("Trainer: " + m.Message)
				})
			}()
		}, w)
	})

	modelsItem := fyne.NewMenuItem("Models…", func() {
		status.SetText("Loading models…")
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			models, err := listModels(ctx, trainer, cfg.Trainer.ModelsDSN)
			fyne.Do(func() {
				if err != nil {
					l.Error("list models failed", slog.Any("err", err))
					dialog.ShowError(err, w)
					status.SetText("Model list failed.")
					return
				}
				status.SetText(fmt.Sprintf("%d models", len(models)))
				if len(models) == 0 {
					dialog.ShowInformation("Models", "No trained models yet.", w)
					return
				}
				lines := make([]string, len(models))
				for i, m := range models {
					lines[i] = fmt.Sprintf("%s — %s", m.Name, m.CreatedAt.Format("2006-01-02 15:04"))
				}
				list := widget.NewList(
					func() int { return len(lines) },
					func() fyne.CanvasObject { return widget.NewLabel("") },
					func(i widget.ListItemID, o fyne.CanvasObject) { o.(*widget.Label).SetText(lines[i]) },
				)
				d := dialog.NewCustom("Trained Models", "Close", container.NewStack(list), w)
				d.Resize(fyne.NewSize(480, 400))
				d.Show()
			})
		}()
	})

	return fyne.NewMenu("Trainer", checkItem, statusItem, fyne.NewMenuItemSeparator(), trainItem, terminateItem, fyne.NewMenuItemSeparator(), modelsItem)
}

// listModels prefers the direct Postgres catalog when configured, falling
// back to the REST endpoint.
func listModels(ctx context.Context, trainer *backend.Client, dsn string) ([]backend.Model, error) {
	if dsn != "" {
		cat, err := backend.OpenModelCatalog(ctx, dsn)
		if err == nil {
			defer cat.Close()
			return cat.List(ctx)
		}
		applog.WithComponent("ui").Warn("model catalog unavailable, using REST", slog.Any("err", err))
	}
	return trainer.ListModels(ctx)
}

// SceneCanvas renders the scene and routes pointer gestures into the
// interaction session. All stored geometry stays in scene units; only the
// renderer applies zoom and scroll.
type SceneCanvas struct {
	widget.BaseWidget

	sc      *scene.Scene
	vp      *scene.Viewport
	session scene.Session
	panning bool
	// captured marks that OnEdit already fired for the current gesture.
	captured bool

	// OnSelectionChanged fires after taps or drags change the selection.
	OnSelectionChanged func()
	// OnEdit fires once per move/resize gesture, before its first mutation,
	// so the handler can snapshot the pre-gesture layout.
	OnEdit func()
}

func NewSceneCanvas(sc *scene.Scene) *SceneCanvas {
	c := &SceneCanvas{
		sc: sc,
		vp: scene.NewViewport(800, 600),
	}
	c.ExtendBaseWidget(c)
	return c
}

// PreferredSize sets a decent default size for the widget.
func (c *SceneCanvas) PreferredSize() fyne.Size { return fyne.NewSize(800, 600) }

const handleSize = 10

// handleRects returns the selection bbox and the resize handle in screen
// coordinates.
func (c *SceneCanvas) handleRects() (bbox, handle geom.Rect, ok bool) {
	it := c.sc.SelectedItem()
	if it == nil {
		return geom.Rect{}, geom.Rect{}, false
	}
	x0, y0 := c.vp.ToScreen(geom.Pt{X: it.X, Y: it.Y})
	x1, y1 := c.vp.ToScreen(geom.Pt{X: it.X + it.W, Y: it.Y + it.H})
	bbox = geom.R(x0, y0, x1-x0, y1-y0)
	handle = geom.R(x1-handleSize/2, y1-handleSize/2, handleSize, handleSize)
	return bbox, handle, true
}

// Tapped selects the topmost item under the pointer; tapping empty space
// clears the selection.
func (c *SceneCanvas) Tapped(e *fyne.PointEvent) {
	p := c.vp.ToScene(float64(e.Position.X), float64(e.Position.Y))
	if it := c.sc.HitTest(p); it != nil {
		c.sc.Select(it.ID)
	} else {
		c.sc.Select(0)
	}
	c.Refresh()
	if c.OnSelectionChanged != nil {
		c.OnSelectionChanged()
	}
}

// Dragged routes the gesture: resize when it starts on the selection handle,
// move when it starts on an item, pan otherwise. The decision is made on the
// first event and held until DragEnd.
func (c *SceneCanvas) Dragged(e *fyne.DragEvent) {
	pos := e.Position
	p := c.vp.ToScene(float64(pos.X), float64(pos.Y))

	if !c.session.Active() && !c.panning {
		if _, handle, ok := c.handleRects(); ok &&
			handle.Contains(geom.Pt{X: float64(pos.X), Y: float64(pos.Y)}) {
			c.session.BeginResize(c.sc, c.sc.Selected(), p)
		} else if it := c.sc.HitTest(p); it != nil {
			changed := c.sc.Selected() != it.ID
			c.sc.Select(it.ID)
			c.session.BeginDrag(c.sc, it.ID, p)
			if changed && c.OnSelectionChanged != nil {
				c.OnSelectionChanged()
			}
		} else {
			c.panning = true
		}
	}

	if c.panning {
		c.vp.Pan(-float64(e.Dragged.DX), -float64(e.Dragged.DY))
	} else if c.session.Active() {
		// The edit callback runs before the first mutation so undo gets the
		// layout as it stood when the gesture began.
		if !c.captured {
			if c.OnEdit != nil {
				c.OnEdit()
			}
			c.captured = true
		}
		c.session.Update(c.sc, p)
	}
	c.Refresh()
}

// DragEnd closes the gesture.
func (c *SceneCanvas) DragEnd() {
	c.session.End()
	c.panning = false
	c.captured = false
}

// Scrolled steps the zoom around the current view center.
func (c *SceneCanvas) Scrolled(e *fyne.ScrollEvent) {
	if e.Scrolled.DY > 0 {
		c.vp.ZoomIn()
	} else if e.Scrolled.DY < 0 {
		c.vp.ZoomOut()
	}
	c.Refresh()
}

func (c *SceneCanvas) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 30, G: 30, B: 34, A: 255})

	board := canvas.NewRectangle(color.White)
	board.StrokeColor = color.RGBA{R: 20, G: 20, B: 20, A: 255}
	board.StrokeWidth = 2

	bbox := canvas.NewRectangle(color.RGBA{})
	bbox.StrokeColor = color.RGBA{R: 0, G: 170, B: 255, A: 255}
	bbox.StrokeWidth = 1
	bbox.Hide()

	handle := canvas.NewRectangle(color.RGBA{R: 0, G: 170, B: 255, A: 255})
	handle.Hide()

	objs := []fyne.CanvasObject{bg, board, bbox, handle}
	return &sceneCanvasRenderer{c: c, objects: objs, bg: bg, board: board, bbox: bbox, handle: handle}
}

// sceneCanvasRenderer positions one canvas.Image per item by zoom and scroll.
type sceneCanvasRenderer struct {
	c       *SceneCanvas
	objects []fyne.CanvasObject
	bg      *canvas.Rectangle
	board   *canvas.Rectangle
	imgs    []*canvas.Image
	bbox    *canvas.Rectangle
	handle  *canvas.Rectangle
}

func (r *sceneCanvasRenderer) Destroy()                     {}
func (r *sceneCanvasRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *sceneCanvasRenderer) MinSize() fyne.Size           { return fyne.NewSize(400, 300) }
func (r *sceneCanvasRenderer) Refresh()                     { r.Layout(r.c.Size()); canvas.Refresh(r.c) }

func (r *sceneCanvasRenderer) Layout(size fyne.Size) {
	vp := r.c.vp
	if float64(size.Width) != vp.ViewW || float64(size.Height) != vp.ViewH {
		vp.Resize(float64(size.Width), float64(size.Height))
	}

	r.bg.Resize(size)
	r.bg.Move(fyne.NewPos(0, 0))

	// White board covering the scene extent.
	bx, by := vp.ToScreen(geom.Pt{})
	bw := scene.SceneExtent * vp.Zoom
	r.board.Resize(fyne.NewSize(float32(bw), float32(bw)))
	r.board.Move(fyne.NewPos(float32(bx), float32(by)))

	items := r.c.sc.ItemsByZ()
	// Grow image visuals as needed, inserting before the selection overlay.
	if need := len(items); need > len(r.imgs) {
		ins := -1
		for i, obj := range r.objects {
			if obj == r.bbox {
				ins = i
				break
			}
		}
		if ins < 0 {
			ins = len(r.objects)
		}
		add := need - len(r.imgs)
		newImgs := make([]*canvas.Image, 0, add)
		for j := 0; j < add; j++ {
			im := canvas.NewImageFromImage(nil)
			im.FillMode = canvas.ImageFillContain
			im.ScaleMode = canvas.ImageScaleSmooth
			newImgs = append(newImgs, im)
		}
		objs := make([]fyne.CanvasObject, 0, len(r.objects)+add)
		objs = append(objs, r.objects[:ins]...)
		for _, im := range newImgs {
			objs = append(objs, im)
		}
		objs = append(objs, r.objects[ins:]...)
		r.objects = objs
		r.imgs = append(r.imgs, newImgs...)
	}

	for i, it := range items {
		im := r.imgs[i]
		src := it.Source()
		if src == nil || src.Released() {
			im.Hide()
			continue
		}
		if im.Image != src.Image() {
			im.Image = src.Image()
			im.Refresh()
		}
		x0, y0 := vp.ToScreen(geom.Pt{X: it.X, Y: it.Y})
		im.Show()
		im.Resize(fyne.NewSize(float32(it.W*vp.Zoom), float32(it.H*vp.Zoom)))
		im.Move(fyne.NewPos(float32(x0), float32(y0)))
	}
	for j := len(items); j < len(r.imgs); j++ {
		r.imgs[j].Hide()
	}

	if bbox, handle, ok := r.c.handleRects(); ok {
		r.bbox.Show()
		r.bbox.Resize(fyne.NewSize(float32(bbox.W), float32(bbox.H)))
		r.bbox.Move(fyne.NewPos(float32(bbox.X), float32(bbox.Y)))
		r.handle.Show()
		r.handle.Resize(fyne.NewSize(float32(handle.W), float32(handle.H)))
		r.handle.Move(fyne.NewPos(float32(handle.X), float32(handle.Y)))
	} else {
		r.bbox.Hide()
		r.handle.Hide()
	}
}
