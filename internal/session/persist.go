/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gocomicstudio/internal/config"
	"gocomicstudio/internal/domain"
	applog "gocomicstudio/internal/log"
	"gocomicstudio/internal/notify"
	"gocomicstudio/internal/storage"
)

// Save writes the whole session snapshot under storage.SessionKey.
func (s *Session) Save(ctx context.Context) error {
	if s.store == nil {
		return ErrNoStore
	}
	snap := s.Snapshot()
	data, err := storage.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, storage.SessionKey, data); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.log.InfoContext(ctx, "session saved", slog.Int("panels", snap.Script.Len()), slog.Int("bytes", len(data)))
	s.emit(notify.Saved, 0, "")
	return nil
}

// Load replaces the session state with the saved snapshot. Loading is
// all-or-nothing: on any error the current state is left untouched and a
// load-failed notification is published.
func (s *Session) Load(ctx context.Context) error {
	if s.store == nil {
		return ErrNoStore
	}
	data, err := s.store.Get(ctx, storage.SessionKey)
	if err == nil {
		var snap storage.Snapshot
		snap, err = storage.DecodeSnapshot(data)
		if err == nil {
			s.apply(snap)
			s.log.InfoContext(ctx, "session loaded", slog.Int("panels", snap.Script.Len()), slog.String("step", string(snap.Step)))
			s.emit(notify.Loaded, 0, "")
			return nil
		}
	}
	msg := err.Error()
	if errors.Is(err, storage.ErrNotFound) {
		msg = "no saved story"
	}
	s.log.WarnContext(ctx, "session load failed", slog.Any("err", err))
	s.emit(notify.LoadFailed, 0, msg)
	return fmt.Errorf("load session: %w", err)
}

func (s *Session) apply(snap storage.Snapshot) {
	s.AbandonDrags()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.character = snap.Character
	s.roster = snap.SideCharacters
	s.story = snap.Story
	s.script = snap.Script
	s.step = snap.Step
	s.lastErr = ""
	s.epoch++
	s.history.Reset()
}

// Reset cancels in-flight requests, deletes the saved story and the
// stored credential, and returns the session to a fresh configuring step.
func (s *Session) Reset(ctx context.Context) error {
	s.AbandonDrags()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.cancel()
	s.base, s.cancel = context.WithCancel(applog.WithSession(context.Background(), s.id))
	s.epoch++
	s.character = domain.DefaultCharacter()
	s.roster = []domain.SideCharacter{}
	s.story = domain.DefaultStorySettings()
	s.script = domain.Script{}
	s.step = domain.StepConfiguring
	s.lastErr = ""
	s.history.Reset()
	s.mu.Unlock()

	var errs []error
	if s.store != nil {
		if err := s.store.Delete(ctx, storage.SessionKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
			errs = append(errs, fmt.Errorf("delete saved session: %w", err))
		}
	}
	if err := s.creds.Delete(); err != nil && !errors.Is(err, config.ErrNoCredential) {
		errs = append(errs, fmt.Errorf("delete credential: %w", err))
	}
	s.emit(notify.Reset, 0, "")
	s.log.InfoContext(ctx, "session reset")
	return errors.Join(errs...)
}
