/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"sceneboard/internal/backend"
	"sceneboard/internal/config"
	"sceneboard/internal/crash"
	"sceneboard/internal/export"
	"sceneboard/internal/library"
	applog "sceneboard/internal/log"
	"sceneboard/internal/scene"
	"sceneboard/internal/ui"
	"sceneboard/internal/version"
)

func usage() {
	fmt.Println("Scene Board — image scene editor")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  sceneboard version|-v|--version                Show version")
	fmt.Println("  sceneboard ui [images...]                      Launch desktop UI (build with -tags fyne for full UI)")
	fmt.Println("  sceneboard compose <out-dir> <images...>       Place images into a scene and export a PNG")
	fmt.Println("  sceneboard compose -preset <name> <out-dir> <images...>")
	fmt.Println("                                                 Export with a named preset (png or pdf)")
	fmt.Println("  sceneboard recent                              List recently used images from the library")
	fmt.Println("  sceneboard models                              List trained models from the trainer service")
}

func main() {
	// initialize structured logging using environment defaults
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("cli")

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) > 1 {
		switch args[1] {
		case "version", "--version", "-v":
			fmt.Println("Scene Board — image scene editor")
			fmt.Println(version.String())
			return
		case "ui":
			if err := ui.Run(args[2:]); err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			return
		case "compose":
			rest := args[2:]
			presetName := ""
			if len(rest) >= 2 && rest[0] == "-preset" {
				presetName = rest[1]
				rest = rest[2:]
			}
			if len(rest) < 2 {
				fmt.Println("compose requires <out-dir> and at least one image")
				usage()
				os.Exit(2)
			}
			if err := compose(l, presetName, rest[0], rest[1:]); err != nil {
				l.Error("compose failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			return
		case "recent":
			if err := listRecent(l); err != nil {
				l.Error("recent failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			return
		case "models":
			if err := listModels(l); err != nil {
				l.Error("models failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			return
		}
	}

	usage()
}

// compose places the given images into a fresh scene the same way the UI
// does, then exports the composite without needing a display.
func compose(l *slog.Logger, presetName, outDir string, paths []string) error {
	sc := scene.New()
	defer sc.Close()
	defer func() { crash.Recover(sc) }()

	var files []scene.ImageFile
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", p, err)
		}
		files = append(files, scene.ImageFile{Name: filepath.Base(p), Data: data})
	}
	added := sc.AddImages(files)
	if len(added) == 0 {
		return fmt.Errorf("none of the %d inputs could be decoded", len(files))
	}
	if len(added) < len(files) {
		l.Warn("some inputs skipped", slog.Int("added", len(added)), slog.Int("given", len(files)))
	}

	preset := export.Preset{Name: "quick", Format: "png", Padding: export.DefaultPadding, PixelScale: 1}
	if presetName != "" {
		p, ok := export.FindPreset(presetName, nil)
		if !ok {
			return fmt.Errorf("unknown preset %q", presetName)
		}
		preset = p
	}
	opt, err := preset.Options()
	if err != nil {
		return err
	}

	abs, _ := filepath.Abs(outDir)
	var path string
	if preset.Format == "pdf" {
		path, err = export.ExportPDF(sc, abs, opt)
	} else {
		path, err = export.ExportPNG(sc, abs, opt)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Composed %d images into %s\n", len(added), path)

	// Best-effort usage bookkeeping so the UI's recent list stays current.
	if cfg, _, cerr := config.Load(); cerr == nil {
		if libPath, lerr := config.LibraryPath(cfg); lerr == nil {
			if lib, lerr := library.Open(libPath, cfg.Library.ThumbCapBytes); lerr == nil {
				defer lib.Close()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				for _, p := range paths {
					if abs, aerr := filepath.Abs(p); aerr == nil {
						if uerr := lib.RecordUse(ctx, abs); uerr != nil {
							l.Warn("record use failed", slog.String("path", abs), slog.Any("err", uerr))
						}
					}
				}
			}
		}
	}
	return nil
}

func listRecent(l *slog.Logger) error {
	cfg, _, err := config.Load()
	if err != nil {
		return err
	}
	libPath, err := config.LibraryPath(cfg)
	if err != nil {
		return err
	}
	lib, err := library.Open(libPath, cfg.Library.ThumbCapBytes)
	if err != nil {
		return err
	}
	defer lib.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	entries, err := lib.Recent(ctx, 20)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No recently used images.")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%-30s  used %dx  last %s\n", e.Name, e.UseCount, e.LastUsed.Format("2006-01-02 15:04"))
	}
	l.Info("recent listed", slog.Int("count", len(entries)))
	return nil
}

func listModels(l *slog.Logger) error {
	cfg, token, err := config.Load()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var models []backend.Model
	if dsn := cfg.Trainer.ModelsDSN; dsn != "" {
		cat, cerr := backend.OpenModelCatalog(ctx, dsn)
		if cerr != nil {
			return fmt.Errorf("model catalog: %w", cerr)
		}
		defer cat.Close()
		models, err = cat.List(ctx)
	} else {
		client := backend.NewClient(cfg.Trainer.BaseURL, token,
			time.Duration(cfg.Trainer.TimeoutMs)*time.Millisecond, cfg.Trainer.TLSInsecure)
		models, err = client.ListModels(ctx)
	}
	if err != nil {
		return err
	}
	if len(models) == 0 {
		fmt.Println("No trained models.")
		return nil
	}
	for _, m := range models {
		fmt.Printf("%-30s  %s  %d bytes\n", m.Name, m.CreatedAt.Format("2006-01-02 15:04"), m.SizeBytes)
	}
	l.Info("models listed", slog.Int("count", len(models)))
	return nil
}
