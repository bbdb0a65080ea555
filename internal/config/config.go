/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	keyring "github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// Unknown fields are ignored on unmarshal, so older builds tolerate newer files.

// TrainerConfig points the app at the local LoRA training/inference service.
type TrainerConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	TLSInsecure bool   `yaml:"tls_insecure"`
	// ModelsDSN optionally enables direct Postgres listing of the model
	// catalog instead of going through the REST endpoint.
	ModelsDSN string `yaml:"models_dsn,omitempty"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	Theme          string `yaml:"theme"` // "system" | "light" | "dark" (informational for now)
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

// LibraryConfig controls the local recent-images catalog.
type LibraryConfig struct {
	Path          string `yaml:"path,omitempty"` // defaults to <config dir>/library.sqlite
	ThumbCapBytes int64  `yaml:"thumb_cap_bytes,omitempty"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Trainer       TrainerConfig `yaml:"trainer"`
	Logging       LoggingConfig `yaml:"logging"`
	Library       LibraryConfig `yaml:"library"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false, Theme: "system"},
		Trainer:       TrainerConfig{BaseURL: "http://localhost:8000", TimeoutMs: 15000, TLSInsecure: false},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
		Library:       LibraryConfig{ThumbCapBytes: 32 * 1024 * 1024},
	}
}

// Env var names used as overrides.
const (
	EnvTrainerURL       = "SB_TRAINER_URL"
	EnvTrainerTimeoutMs = "SB_TRAINER_TIMEOUT_MS"
	EnvTrainerTLSInsec  = "SB_TLS_INSECURE"
	EnvModelsDSN        = "SB_MODELS_DSN"
	EnvTelemetryOptIn   = "SB_TELEMETRY_OPT_IN"
	EnvLibraryPath      = "SB_LIBRARY_PATH"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "SB_LOG_LEVEL"
	EnvLogFormat = "SB_LOG_FORMAT"
	EnvLogSource = "SB_LOG_SOURCE"
	EnvLogFile   = "SB_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService = "SceneBoard"
	keyringToken   = "trainer_token"
)

// tokenStore abstracts the keyring, so tests can stub it.
var tokenStore TokenStore = &osKeyring{}

type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements TokenStore using the OS keyring via github.com/zalando/go-keyring.
type osKeyring struct{}

func (k *osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (k *osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (k *osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

// ConfigDir returns the per-user configuration directory.
func ConfigDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "SceneBoard")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "SceneBoard")
	default: // linux and others
		base = filepath.Join(os.Getenv("HOME"), ".config", "sceneboard")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// LibraryPath resolves the recent-images database path, honoring config and env.
func LibraryPath(cfg AppConfig) (string, error) {
	if strings.TrimSpace(cfg.Library.Path) != "" {
		return cfg.Library.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "library.sqlite"), nil
}

// Load reads the user config file (if present), applies defaults, and merges environment overrides.
// It also loads the trainer token from the keyring (returned separately, never stored in the struct).
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	// token from keyring
	tok, _ := tokenStore.Get(keyringService, keyringToken)
	return cfg, tok, nil
}

// Save writes the user config YAML and persists the token into the OS keyring (if non-empty).
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if token != "" {
		if err := tokenStore.Set(keyringService, keyringToken, token); err != nil {
			return err
		}
	}
	return nil
}

// ForgetToken removes the trainer token from the keyring.
func ForgetToken() error { return tokenStore.Delete(keyringService, keyringToken) }

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.General.Theme != "" {
		dst.General.Theme = src.General.Theme
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if src.Trainer.BaseURL != "" {
		dst.Trainer.BaseURL = src.Trainer.BaseURL
	}
	if src.Trainer.TimeoutMs != 0 {
		dst.Trainer.TimeoutMs = src.Trainer.TimeoutMs
	}
	dst.Trainer.TLSInsecure = src.Trainer.TLSInsecure
	if strings.TrimSpace(src.Trainer.ModelsDSN) != "" {
		dst.Trainer.ModelsDSN = strings.TrimSpace(src.Trainer.ModelsDSN)
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
	// library
	if strings.TrimSpace(src.Library.Path) != "" {
		dst.Library.Path = strings.TrimSpace(src.Library.Path)
	}
	if src.Library.ThumbCapBytes > 0 {
		dst.Library.ThumbCapBytes = src.Library.ThumbCapBytes
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvTrainerURL)); v != "" {
		cfg.Trainer.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTrainerTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Trainer.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvTrainerTLSInsec)); v != "" {
		cfg.Trainer.TLSInsecure = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvModelsDSN)); v != "" {
		cfg.Trainer.ModelsDSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLibraryPath)); v != "" {
		cfg.Library.Path = v
	}
}

func parseBool(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}
