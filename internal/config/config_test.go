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
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

func isolate(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(EnvConfigFile, p)
	return p
}

func TestEnvOverridesServerAddr(t *testing.T) {
	isolate(t)
	t.Setenv(EnvServerAddr, "0.0.0.0:9999")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got, want := cfg.Server.Addr, "0.0.0.0:9999"; got != want {
		t.Fatalf("Server.Addr = %q, want %q", got, want)
	}
	if env, ok := EnvOverrideFor("server.addr"); !ok || env != EnvServerAddr {
		t.Fatalf("EnvOverrideFor(server.addr) = %q,%v", env, ok)
	}
	t.Setenv(EnvScriptModel, "")
	got := EnvOverrides()
	if got["server.addr"] != EnvServerAddr {
		t.Fatalf("EnvOverrides = %v", got)
	}
	if _, ok := got["ai.script_model"]; ok {
		t.Fatalf("empty variable reported as override: %v", got)
	}
}

func TestEnvOverridesTelemetry(t *testing.T) {
	isolate(t)
	t.Setenv(EnvTelemetryOptIn, "true")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.General.TelemetryOptIn {
		t.Fatalf("General.TelemetryOptIn expected true from env override")
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "debug"
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "/tmp/gcs.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "/tmp/gcs.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestSaveThenLoadRoundTripsFile(t *testing.T) {
	p := isolate(t)
	cfg := Defaults()
	cfg.Storage.Driver = "sqlite"
	cfg.Storage.Path = "studio.db"
	cfg.AI.TimeoutMs = 45000
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(p); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	got, path, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if path != p {
		t.Fatalf("path = %q, want %q", path, p)
	}
	if got.Storage.Driver != "sqlite" || got.Storage.Path != "studio.db" {
		t.Fatalf("storage not loaded: %#v", got.Storage)
	}
	if got.AI.Timeout() != 45*time.Second {
		t.Fatalf("timeout = %v", got.AI.Timeout())
	}
	// untouched fields keep defaults
	if got.AI.ScriptModel != "gemini-2.5-flash" {
		t.Fatalf("script model = %q", got.AI.ScriptModel)
	}
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	p := isolate(t)
	if err := os.WriteFile(p, []byte("storage: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	cfg.Storage.Driver = "postgres"
	if err := cfg.Validate(); !errors.Is(err, ErrMissingDSN) {
		t.Fatalf("want ErrMissingDSN, got %v", err)
	}
	cfg.Storage.Driver = "bolt"
	if err := cfg.Validate(); !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("want ErrUnknownDriver, got %v", err)
	}
}

func TestStoragePathRelativeToDataDir(t *testing.T) {
	cfg := Defaults()
	cfg.General.DataDir = "/var/lib/gcs"
	p, err := cfg.StoragePath()
	if err != nil {
		t.Fatal(err)
	}
	if p != filepath.Join("/var/lib/gcs", "sessions") {
		t.Fatalf("StoragePath = %q", p)
	}
	cfg.Storage.Driver = "sqlite"
	if p, _ := cfg.StoragePath(); p != filepath.Join("/var/lib/gcs", "studio.db") {
		t.Fatalf("sqlite StoragePath = %q", p)
	}
	if cfg.AI.Timeout() != 0 {
		t.Fatalf("default timeout should be disabled")
	}
}

func TestKeyringCredentialLifecycle(t *testing.T) {
	keyring.MockInit()
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvGeminiAPIKey, "")
	k := NewKeyring()
	if _, err := k.Get(); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("want ErrNoCredential, got %v", err)
	}
	if err := k.Set("  secret  "); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, err := k.Get(); err != nil || v != "secret" {
		t.Fatalf("Get = %q, %v", v, err)
	}
	if err := k.Delete(); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := k.Delete(); err != nil {
		t.Fatalf("second Delete should be a no-op: %v", err)
	}
	if err := k.Set(""); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("empty Set should fail, got %v", err)
	}
}

func TestKeyringEnvOverride(t *testing.T) {
	keyring.MockInit()
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvGeminiAPIKey, "from-env")
	k := NewKeyring()
	if v, err := k.Get(); err != nil || v != "from-env" {
		t.Fatalf("Get = %q, %v", v, err)
	}
	k.IgnoreEnv = true
	if _, err := k.Get(); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("IgnoreEnv should bypass env, got %v", err)
	}
}
