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
	"path/filepath"
	"testing"
)

// fakeStore avoids touching the real OS keyring in tests.
type fakeStore struct{ vals map[string]string }

func (f *fakeStore) Get(service, key string) (string, error) { return f.vals[service+"/"+key], nil }
func (f *fakeStore) Set(service, key, value string) error {
	f.vals[service+"/"+key] = value
	return nil
}
func (f *fakeStore) Delete(service, key string) error {
	delete(f.vals, service+"/"+key)
	return nil
}

func withFakeStore(t *testing.T) *fakeStore {
	t.Helper()
	old := tokenStore
	fs := &fakeStore{vals: map[string]string{}}
	tokenStore = fs
	t.Cleanup(func() { tokenStore = old })
	return fs
}

func TestEnvOverridesTrainerURL(t *testing.T) {
	withFakeStore(t)
	t.Setenv(EnvTrainerURL, "https://example.test:8443")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got, want := cfg.Trainer.BaseURL, "https://example.test:8443"; got != want {
		t.Fatalf("Trainer.BaseURL = %q, want %q", got, want)
	}
}

func TestEnvOverridesTelemetry(t *testing.T) {
	withFakeStore(t)
	t.Setenv(EnvTelemetryOptIn, "true")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.General.TelemetryOptIn {
		t.Fatalf("General.TelemetryOptIn expected true from env override")
	}
}

func TestMergeIncludesModelsDSN(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Trainer.ModelsDSN = "postgres://localhost/models"
	mergeInto(&dst, &src)
	if dst.Trainer.ModelsDSN != "postgres://localhost/models" {
		t.Fatalf("ModelsDSN was not merged from file config")
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "debug"
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "C:/tmp/sb.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "C:/tmp/sb.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	withFakeStore(t)
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "X:/sb.log")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "X:/sb.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
}

func TestLibraryPathDefaultsUnderConfigDir(t *testing.T) {
	cfg := Defaults()
	p, err := LibraryPath(cfg)
	if err != nil {
		t.Fatalf("LibraryPath error: %v", err)
	}
	if filepath.Base(p) != "library.sqlite" {
		t.Fatalf("unexpected library path: %q", p)
	}

	cfg.Library.Path = "/data/lib.sqlite"
	p, err = LibraryPath(cfg)
	if err != nil {
		t.Fatalf("LibraryPath error: %v", err)
	}
	if p != "/data/lib.sqlite" {
		t.Fatalf("explicit path not honored: %q", p)
	}
}

func TestSaveAndTokenRoundTrip(t *testing.T) {
	fs := withFakeStore(t)
	if err := tokenStore.Set(keyringService, keyringToken, "secret"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	_, tok, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if tok != "secret" {
		t.Fatalf("token = %q, want %q", tok, "secret")
	}
	if err := ForgetToken(); err != nil {
		t.Fatalf("ForgetToken: %v", err)
	}
	if len(fs.vals) != 0 {
		t.Fatalf("token not deleted: %#v", fs.vals)
	}
}
