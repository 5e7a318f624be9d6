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
	"path/filepath"

	"gocomicstudio/internal/ai"
	"gocomicstudio/internal/config"
	applog "gocomicstudio/internal/log"
	"gocomicstudio/internal/notify"
	"gocomicstudio/internal/session"
	"gocomicstudio/internal/storage"
	"gocomicstudio/internal/telemetry"
)

// app is the wired object graph shared by the commands.
type app struct {
	cfg     config.AppConfig
	dataDir string
	creds   config.CredentialStore
	store   storage.KV
	bus     *notify.Bus
	sess    *session.Session
	tel     *telemetry.Client
	prevTel *telemetry.Client
	log     *slog.Logger
}

// services lets tests replace the Gemini collaborators.
var services = func(cfg config.AIConfig) (ai.ScriptService, ai.ArtworkService) {
	g := ai.NewGemini(cfg)
	return g, g
}

// newCredentials is swapped in tests.
var newCredentials = func() config.CredentialStore { return config.NewKeyring() }

func loadConfig() (config.AppConfig, error) {
	cfg, path, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func initLogging(cfg config.AppConfig) {
	opts := applog.FromEnv()
	if cfg.Logging.Level != "" {
		opts.Level = cfg.Logging.Level
	}
	if cfg.Logging.Format != "" {
		opts.Format = cfg.Logging.Format
	}
	opts.AddSource = opts.AddSource || cfg.Logging.Source
	if cfg.Logging.File != "" {
		opts.File = cfg.Logging.File
	}
	applog.Init(opts)
}

// openApp wires config, store, credential store, bus, AI services and
// session for the named command.
func openApp(ctx context.Context, cfg config.AppConfig, cmd string) (*app, error) {
	dataDir, err := cfg.ResolvedDataDir()
	if err != nil {
		return nil, err
	}
	path, err := cfg.StoragePath()
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(ctx, storage.Options{
		Driver:      cfg.Storage.Driver,
		Path:        path,
		DSN:         cfg.Storage.DSN,
		HistoryKeep: cfg.Storage.HistoryKeep,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &app{
		cfg:     cfg,
		dataDir: dataDir,
		creds:   newCredentials(),
		store:   store,
		bus:     notify.NewBus(),
		log:     applog.WithComponent("cli"),
	}
	scripts, artwork := services(cfg.AI)
	a.sess, err = session.New(session.Deps{
		Scripts:     scripts,
		Artwork:     artwork,
		Credentials: a.creds,
		Store:       store,
		Notifier:    a.bus,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	tcfg := telemetry.FromEnv()
	tcfg.OptIn = tcfg.OptIn || cfg.General.TelemetryOptIn
	a.tel = telemetry.New(tcfg)
	a.prevTel = telemetry.SetDefault(a.tel)
	if telemetry.Enabled() {
		events, _ := a.bus.Subscribe(64)
		go a.tel.Forward(ctx, events)
	}
	telemetry.Event("cli.command", map[string]any{"cmd": cmd})
	for key, env := range config.EnvOverrides() {
		a.log.Debug("setting overridden by environment", slog.String("key", key), slog.String("env", env))
	}
	a.log.Debug("app ready",
		slog.String("driver", cfg.Storage.Driver),
		slog.String("store", filepath.Clean(path)),
		slog.String("session", a.sess.ID()))
	return a, nil
}

// snapshot encodes the live session for crash autosave.
func (a *app) snapshot() ([]byte, error) {
	return storage.EncodeSnapshot(a.sess.Snapshot())
}

func (a *app) Close() {
	_ = a.sess.Close()
	a.bus.Close()
	a.tel.Flush(context.Background())
	a.tel.Close()
	telemetry.SetDefault(a.prevTel)
	if err := a.store.Close(); err != nil {
		a.log.Warn("close store", slog.Any("err", err))
	}
}
