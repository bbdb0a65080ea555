/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0
 */

package export

import (
	"encoding/json"
	"fmt"
	"image/color"
	"os"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

// Preset is a named export configuration. Users can ship their own preset
// files; see LoadPresets.
type Preset struct {
	Name       string  `json:"name"`
	Format     string  `json:"format"`               // "png" or "pdf"
	Padding    float64 `json:"padding"`              // scene units around the bounding box
	Background string  `json:"background,omitempty"` // "#RRGGBB", white when empty
	PixelScale float64 `json:"pixelScale,omitempty"` // output pixels per scene unit, 1 when 0
}

// presetSchema validates user preset files before they are applied.
const presetSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["name", "format"],
    "additionalProperties": false,
    "properties": {
      "name": {"type": "string", "minLength": 1},
      "format": {"type": "string", "enum": ["png", "pdf"]},
      "padding": {"type": "number", "minimum": 0},
      "background": {"type": "string", "pattern": "^#[0-9a-fA-F]{6}$"},
      "pixelScale": {"type": "number", "exclusiveMinimum": 0}
    }
  }
}`

// BuiltinPresets returns the presets available without any preset file.
func BuiltinPresets() []Preset {
	return []Preset{
		{Name: "quick", Format: "png", Padding: DefaultPadding},
		{Name: "print", Format: "pdf", Padding: DefaultPadding, PixelScale: 2},
		{Name: "tight", Format: "png", Padding: 0},
	}
}

// LoadPresets reads and validates a user preset file (a JSON array of
// presets). Invalid files are rejected as a whole; structural errors are
// reported with the schema's messages.
func LoadPresets(path string) ([]Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(presetSchema), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("validate presets: %w", err)
	}
	if !result.Valid() {
		msg := "invalid preset file"
		for _, e := range result.Errors() {
			msg += "; " + e.String()
		}
		return nil, fmt.Errorf("%s", msg)
	}

	var presets []Preset
	if err := json.Unmarshal(data, &presets); err != nil {
		return nil, fmt.Errorf("decode presets: %w", err)
	}
	return presets, nil
}

// FindPreset looks up a preset by name in the given list, falling back to the
// built-ins. Returns false when no preset matches.
func FindPreset(name string, extra []Preset) (Preset, bool) {
	for _, p := range extra {
		if p.Name == name {
			return p, true
		}
	}
	for _, p := range BuiltinPresets() {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}

// Options converts the preset into compositing options.
func (p Preset) Options() (Options, error) {
	opt := Options{Padding: p.Padding, PixelScale: p.PixelScale}
	if p.Background != "" {
		c, err := parseHexColor(p.Background)
		if err != nil {
			return Options{}, err
		}
		opt.Background = c
	}
	return opt, nil
}

func parseHexColor(s string) (color.RGBA, error) {
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, fmt.Errorf("parse color %q: %w", s, err)
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}
