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
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.
// The generative-AI credential is never part of this struct; it lives in the OS keychain.

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	DataDir        string `yaml:"data_dir"`
}

type AIConfig struct {
	ScriptModel string `yaml:"script_model"`
	ImageModel  string `yaml:"image_model"`
	AspectRatio string `yaml:"aspect_ratio"`
	ImageSize   string `yaml:"image_size"`
	// TimeoutMs bounds a single AI call; 0 disables the timeout.
	TimeoutMs int `yaml:"timeout_ms"`
	// ImagesPerMinute spaces artwork calls; 0 disables limiting.
	ImagesPerMinute int `yaml:"images_per_minute"`
	ImageBurst      int `yaml:"image_burst"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // "file" | "sqlite" | "postgres"
	Path   string `yaml:"path"`   // store directory (file) or database file (sqlite); relative to data_dir
	DSN    string `yaml:"dsn"`    // postgres only
	// HistoryKeep is how many saved snapshots the sqlite store retains.
	HistoryKeep int `yaml:"history_keep"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	AI            AIConfig      `yaml:"ai"`
	Storage       StorageConfig `yaml:"storage"`
	Server        ServerConfig  `yaml:"server"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false, DataDir: ""},
		AI: AIConfig{
			ScriptModel:     "gemini-2.5-flash",
			ImageModel:      "gemini-3-pro-image-preview",
			AspectRatio:     "4:3",
			ImageSize:       "1K",
			TimeoutMs:       0,
			ImagesPerMinute: 30,
			ImageBurst:      2,
		},
		Storage: StorageConfig{Driver: "file", Path: "", HistoryKeep: 20},
		Server:  ServerConfig{Addr: "127.0.0.1:8080"},
		Logging: LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvConfigFile      = "GCS_CONFIG"
	EnvTelemetryOptIn  = "GCS_TELEMETRY_OPT_IN"
	EnvDataDir         = "GCS_DATA_DIR"
	EnvScriptModel     = "GCS_SCRIPT_MODEL"
	EnvImageModel      = "GCS_IMAGE_MODEL"
	EnvAITimeoutMs     = "GCS_AI_TIMEOUT_MS"
	EnvImagesPerMinute = "GCS_IMAGES_PER_MINUTE"
	EnvStorageDriver   = "GCS_STORAGE_DRIVER"
	EnvStoragePath     = "GCS_STORAGE_PATH"
	EnvStorageDSN      = "GCS_STORAGE_DSN"
	EnvServerAddr      = "GCS_SERVER_ADDR"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "GCS_LOG_LEVEL"
	EnvLogFormat = "GCS_LOG_FORMAT"
	EnvLogSource = "GCS_LOG_SOURCE"
	EnvLogFile   = "GCS_LOG_FILE"
)

var (
	ErrUnknownDriver = errors.New("unknown storage driver")
	ErrMissingDSN    = errors.New("postgres storage requires a dsn")
)

// ConfigPath returns the per-user config file path. GCS_CONFIG wins when set.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigFile)); p != "" {
		return p, nil
	}
	base, err := appDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "config.yaml"), nil
}

func appDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" { // fallback
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "GoComicStudio")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "GoComicStudio")
	default: // linux and others
		base = filepath.Join(os.Getenv("HOME"), ".config", "gocomicstudio")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// Load reads the user config file (if present), applies defaults, merges environment
// overrides and returns the config together with the path it was read from.
// A missing file is not an error; an unparsable one is.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, path, fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	}
	applyEnvOverrides(&cfg)
	return cfg, path, nil
}

// Save writes the user config YAML.
func Save(cfg AppConfig) error {
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
	return os.WriteFile(path, data, 0o600)
}

// Validate reports configuration the rest of the app cannot work with.
func (c AppConfig) Validate() error {
	switch c.Storage.Driver {
	case "file", "sqlite":
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return ErrMissingDSN
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Storage.Driver)
	}
	return nil
}

// ResolvedDataDir returns the data directory, defaulting to the per-user app dir.
func (c AppConfig) ResolvedDataDir() (string, error) {
	if d := strings.TrimSpace(c.General.DataDir); d != "" {
		return d, nil
	}
	base, err := appDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "data"), nil
}

// StoragePath resolves Storage.Path against the data directory. An empty
// path means "sessions" for the file store and "studio.db" for sqlite.
func (c AppConfig) StoragePath() (string, error) {
	p := strings.TrimSpace(c.Storage.Path)
	if p == "" {
		p = "sessions"
		if c.Storage.Driver == "sqlite" {
			p = "studio.db"
		}
	}
	if filepath.IsAbs(p) {
		return p, nil
	}
	dir, err := c.ResolvedDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, p), nil
}

// Timeout returns the per-call AI timeout; zero means none.
func (a AIConfig) Timeout() time.Duration {
	if a.TimeoutMs <= 0 {
		return 0
	}
	return time.Duration(a.TimeoutMs) * time.Millisecond
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// booleans: copy directly from src (file) so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if strings.TrimSpace(src.General.DataDir) != "" {
		dst.General.DataDir = strings.TrimSpace(src.General.DataDir)
	}
	// ai
	if src.AI.ScriptModel != "" {
		dst.AI.ScriptModel = src.AI.ScriptModel
	}
	if src.AI.ImageModel != "" {
		dst.AI.ImageModel = src.AI.ImageModel
	}
	if src.AI.AspectRatio != "" {
		dst.AI.AspectRatio = src.AI.AspectRatio
	}
	if src.AI.ImageSize != "" {
		dst.AI.ImageSize = src.AI.ImageSize
	}
	if src.AI.TimeoutMs != 0 {
		dst.AI.TimeoutMs = src.AI.TimeoutMs
	}
	if src.AI.ImagesPerMinute != 0 {
		dst.AI.ImagesPerMinute = src.AI.ImagesPerMinute
	}
	if src.AI.ImageBurst != 0 {
		dst.AI.ImageBurst = src.AI.ImageBurst
	}
	// storage
	if strings.TrimSpace(src.Storage.Driver) != "" {
		dst.Storage.Driver = strings.ToLower(strings.TrimSpace(src.Storage.Driver))
	}
	if strings.TrimSpace(src.Storage.Path) != "" {
		dst.Storage.Path = strings.TrimSpace(src.Storage.Path)
	}
	if strings.TrimSpace(src.Storage.DSN) != "" {
		dst.Storage.DSN = strings.TrimSpace(src.Storage.DSN)
	}
	if src.Storage.HistoryKeep != 0 {
		dst.Storage.HistoryKeep = src.Storage.HistoryKeep
	}
	if strings.TrimSpace(src.Server.Addr) != "" {
		dst.Server.Addr = strings.TrimSpace(src.Server.Addr)
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
}

func truthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvDataDir)); v != "" {
		cfg.General.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvScriptModel)); v != "" {
		cfg.AI.ScriptModel = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvImageModel)); v != "" {
		cfg.AI.ImageModel = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAITimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AI.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvImagesPerMinute)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AI.ImagesPerMinute = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvStorageDriver)); v != "" {
		cfg.Storage.Driver = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvStoragePath)); v != "" {
		cfg.Storage.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvStorageDSN)); v != "" {
		cfg.Storage.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvServerAddr)); v != "" {
		cfg.Server.Addr = v
	}
	// logging overrides
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = truthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var overrideKeys = map[string]string{
	"general.telemetry_opt_in": EnvTelemetryOptIn,
	"general.data_dir":         EnvDataDir,
	"ai.script_model":          EnvScriptModel,
	"ai.image_model":           EnvImageModel,
	"ai.timeout_ms":            EnvAITimeoutMs,
	"ai.images_per_minute":     EnvImagesPerMinute,
	"storage.driver":           EnvStorageDriver,
	"storage.path":             EnvStoragePath,
	"storage.dsn":              EnvStorageDSN,
	"server.addr":              EnvServerAddr,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	env, ok := overrideKeys[key]
	if !ok || os.Getenv(env) == "" {
		return "", false
	}
	return env, true
}

// EnvOverrides maps every config key currently overridden by the
// environment to its variable name.
func EnvOverrides() map[string]string {
	out := make(map[string]string)
	for key := range overrideKeys {
		if env, ok := EnvOverrideFor(key); ok {
			out[key] = env
		}
	}
	return out
}
