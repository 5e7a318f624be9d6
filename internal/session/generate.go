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
	"slices"
	"time"

	"gocomicstudio/internal/ai"
	"gocomicstudio/internal/config"
	"gocomicstudio/internal/domain"
	"gocomicstudio/internal/notify"
)

func (s *Session) apiKey() (string, error) {
	key, err := s.creds.Get()
	if err != nil {
		if errors.Is(err, config.ErrNoCredential) {
			s.mu.Lock()
			s.lastErr = "no API key configured"
			s.mu.Unlock()
		}
		return "", fmt.Errorf("read credential: %w", err)
	}
	return key, nil
}

// GenerateScript asks the script service for exactly one script and, on
// success, replaces the script and moves to the editing step. On failure
// the script is unchanged and a dismissible error is set.
func (s *Session) GenerateScript(ctx context.Context) error {
	key, err := s.apiKey()
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.step != domain.StepConfiguring {
		s.mu.Unlock()
		return ErrWrongStep
	}
	if s.scripting {
		s.mu.Unlock()
		return ErrBusy
	}
	s.scripting = true
	req := ai.ScriptRequest{
		Character:      s.character,
		SideCharacters: slices.Clone(s.roster),
		Topic:          s.story.Topic,
		Length:         s.story.Length,
	}
	epoch := s.epoch
	rctx, cancel := s.requestContext(ctx)
	s.mu.Unlock()
	defer cancel()

	start := time.Now()
	recs, err := s.scripts.GenerateScript(rctx, key, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripting = false
	if s.epoch != epoch {
		// Loaded, reset or closed meanwhile; the result belongs to a story
		// that no longer exists.
		s.log.InfoContext(ctx, "script result dropped", slog.Bool("failed", err != nil))
		if s.closed {
			return ErrClosed
		}
		return ErrSuperseded
	}
	var script domain.Script
	if err == nil {
		script, err = domain.NewScript(recs, req.Length, s.roster)
	}
	if err != nil {
		s.lastErr = "script generation failed: " + err.Error()
		s.log.WarnContext(ctx, "script generation failed", slog.Any("err", err))
		s.emit(notify.ScriptFailed, 0, err.Error())
		return fmt.Errorf("generate script: %w", err)
	}
	s.script = script
	s.epoch++
	s.history.Reset()
	s.lastErr = ""
	s.step = domain.StepEditingScript
	s.log.InfoContext(ctx, "script generated", slog.Int("panels", script.Len()), slog.Duration("took", time.Since(start)))
	s.emit(notify.ScriptGenerated, 0, fmt.Sprintf("%d panels", script.Len()))
	s.emit(notify.StepChanged, 0, string(s.step))
	return nil
}

// Compose moves from editing to composing and starts artwork generation
// for every panel at once. Requests run independently and complete in any
// order; Wait blocks until they are done.
func (s *Session) Compose(ctx context.Context) error {
	key, err := s.apiKey()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.step != domain.StepEditingScript {
		return ErrWrongStep
	}
	if s.script.Empty() {
		return ErrNoScript
	}
	s.step = domain.StepComposing
	s.emit(notify.StepChanged, 0, string(s.step))
	for _, p := range s.script.Panels {
		s.startArtworkLocked(ctx, key, p.Sequence)
	}
	return nil
}

// RegeneratePanel starts a new artwork request for one panel. It is
// always permitted; a pending earlier request for the same panel becomes
// stale and its result is discarded.
func (s *Session) RegeneratePanel(ctx context.Context, seq int) error {
	key, err := s.apiKey()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.script.Empty() {
		return ErrNoScript
	}
	if _, err := s.script.Panel(seq); err != nil {
		return err
	}
	s.startArtworkLocked(ctx, key, seq)
	return nil
}

func (s *Session) startArtworkLocked(ctx context.Context, key string, seq int) {
	p := s.script.Panels[seq-1].Clone()
	attempt := p.BeginArtworkGeneration()
	s.script.Panels[seq-1] = p
	req := ai.ArtworkRequest{Character: s.character, Roster: slices.Clone(s.roster), Panel: p.Clone()}
	epoch := s.epoch
	rctx, cancel := s.requestContext(ctx)
	s.wg.Add(1)
	s.emit(notify.ArtworkStarted, seq, "")
	go func() {
		defer s.wg.Done()
		defer cancel()
		img, err := s.artwork.GenerateArtwork(rctx, key, req)
		s.finishArtwork(rctx, epoch, seq, attempt, img, err)
	}()
}

func (s *Session) finishArtwork(ctx context.Context, epoch, seq, attempt int, img string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || seq > s.script.Len() {
		s.log.DebugContext(ctx, "dropping artwork for replaced script", slog.Int("panel", seq))
		return
	}
	p := s.script.Panels[seq-1].Clone()
	if p.Artwork.Attempt != attempt {
		s.log.DebugContext(ctx, "dropping stale artwork", slog.Int("panel", seq), slog.Int("attempt", attempt))
		return
	}
	if err == nil && img == "" {
		err = ai.ErrNoImage
	}
	if err != nil {
		p.FailArtworkGeneration(err)
		s.script.Panels[seq-1] = p
		s.log.WarnContext(ctx, "artwork failed", slog.Int("panel", seq), slog.Any("err", err))
		s.emit(notify.ArtworkFailed, seq, err.Error())
		return
	}
	p.SetArtwork(img)
	s.script.Panels[seq-1] = p
	s.emit(notify.ArtworkReady, seq, "")
}
