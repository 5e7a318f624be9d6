/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package session is the editing session of one comic: character and story
// configuration, the generated script, per-panel artwork generation, overlay
// editing with undo, and persistence. A Session is safe for concurrent use;
// every panel mutation replaces the whole panel value under the session lock.
package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"gocomicstudio/internal/ai"
	"gocomicstudio/internal/config"
	"gocomicstudio/internal/domain"
	applog "gocomicstudio/internal/log"
	"gocomicstudio/internal/notify"
	"gocomicstudio/internal/overlay"
	"gocomicstudio/internal/storage"
	"gocomicstudio/internal/undo"
)

var (
	ErrWrongStep      = errors.New("operation not allowed in the current step")
	ErrNoScript       = errors.New("no script generated yet")
	ErrUnknownOverlay = errors.New("unknown overlay")
	ErrBusy           = errors.New("script generation already running")
	ErrClosed         = errors.New("session closed")
	ErrSuperseded     = errors.New("session replaced while the request was running")
	ErrNoStore        = errors.New("no persistence configured")
)

// Deps are the collaborators of a session. Scripts, Artwork and
// Credentials are required; the rest fall back to in-process defaults.
// Notifier.Publish must not block.
type Deps struct {
	Scripts     ai.ScriptService
	Artwork     ai.ArtworkService
	Credentials config.CredentialStore
	Store       storage.KV
	Notifier    notify.Notifier
	Logger      *slog.Logger
	Pointers    *overlay.Hub
	Undo        *undo.Manager
}

// Session is one editing session.
type Session struct {
	mu sync.Mutex

	id        string
	character domain.CharacterConfig
	roster    []domain.SideCharacter
	story     domain.StorySettings
	script    domain.Script
	step      domain.Step
	lastErr   string
	scripting bool
	closed    bool

	// epoch changes whenever the script is replaced; artwork completions
	// from an older epoch are dropped.
	epoch  int
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	drags map[string]*overlay.Element

	scripts  ai.ScriptService
	artwork  ai.ArtworkService
	creds    config.CredentialStore
	store    storage.KV
	notifier notify.Notifier
	log      *slog.Logger
	pointers *overlay.Hub
	history  *undo.Manager
}

// New creates a session in the configuring step with default settings.
func New(deps Deps) (*Session, error) {
	if deps.Scripts == nil || deps.Artwork == nil {
		return nil, errors.New("script and artwork services are required")
	}
	if deps.Credentials == nil {
		return nil, errors.New("credential store is required")
	}
	s := &Session{
		id:        uuid.NewString(),
		character: domain.DefaultCharacter(),
		roster:    []domain.SideCharacter{},
		story:     domain.DefaultStorySettings(),
		step:      domain.StepConfiguring,
		drags:     make(map[string]*overlay.Element),
		scripts:   deps.Scripts,
		artwork:   deps.Artwork,
		creds:     deps.Credentials,
		store:     deps.Store,
		notifier:  deps.Notifier,
		log:       deps.Logger,
		pointers:  deps.Pointers,
		history:   deps.Undo,
	}
	if s.notifier == nil {
		s.notifier = notify.Discard
	}
	if s.log == nil {
		s.log = applog.WithComponent("session")
	}
	if s.pointers == nil {
		s.pointers = overlay.NewHub()
	}
	if s.history == nil {
		s.history = undo.NewManager(undo.Config{MaxPerPanel: 50})
	}
	s.base, s.cancel = context.WithCancel(applog.WithSession(context.Background(), s.id))
	return s, nil
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// Pointers is the pointer channel drags subscribe to.
func (s *Session) Pointers() *overlay.Hub { return s.pointers }

func (s *Session) emit(kind notify.Kind, panel int, msg string) {
	s.notifier.Publish(notify.Event{Kind: kind, Panel: panel, Message: msg, Time: time.Now()})
}

// Step returns the current step.
func (s *Session) Step() domain.Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Error returns the dismissible session error, if any.
func (s *Session) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) DismissError() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
}

// View is a read-only copy of the session state.
type View struct {
	ID string `json:"id"`
	storage.Snapshot
	Error            string                     `json:"error,omitempty"`
	GeneratingScript bool                       `json:"generatingScript"`
	Dragging         map[string]domain.Position `json:"dragging,omitempty"`
	CanUndo          []int                      `json:"canUndo"`
	CanRedo          []int                      `json:"canRedo"`
}

// Snapshot returns a deep copy of the persistable state.
func (s *Session) Snapshot() storage.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() storage.Snapshot {
	return storage.Snapshot{
		Version:        storage.SnapshotVersion,
		Character:      s.character,
		SideCharacters: slices.Clone(s.roster),
		Story:          s.story,
		Script:         s.script.Clone(),
		Step:           s.step,
		Timestamp:      time.Now().UTC(),
	}
}

// View returns the state a front end renders, including live drag
// positions.
func (s *Session) View() View {
	s.mu.Lock()
	v := View{
		ID:               s.id,
		Snapshot:         s.snapshotLocked(),
		Error:            s.lastErr,
		GeneratingScript: s.scripting,
		CanUndo:          []int{},
		CanRedo:          []int{},
	}
	drags := make([]*overlay.Element, 0, len(s.drags))
	for _, e := range s.drags {
		drags = append(drags, e)
	}
	s.mu.Unlock()
	for _, p := range v.Script.Panels {
		if s.history.CanUndo(p.Sequence) {
			v.CanUndo = append(v.CanUndo, p.Sequence)
		}
		if s.history.CanRedo(p.Sequence) {
			v.CanRedo = append(v.CanRedo, p.Sequence)
		}
	}
	for _, e := range drags {
		if e.State() == overlay.Dragging {
			if v.Dragging == nil {
				v.Dragging = make(map[string]domain.Position)
			}
			v.Dragging[e.ID()] = e.Position()
		}
	}
	return v
}

// SetCharacter replaces the main character configuration.
func (s *Session) SetCharacter(c domain.CharacterConfig) error {
	if c.Name == "" {
		return domain.ErrEmptyName
	}
	s.mu.Lock()
	s.character = c
	s.mu.Unlock()
	return nil
}

// SetStory replaces the story settings after validating them. A length
// change takes effect with the next generated script.
func (s *Session) SetStory(st domain.StorySettings) error {
	if err := st.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.story = st
	s.mu.Unlock()
	return nil
}

// AddSideCharacter appends a new roster entry with a fresh id.
func (s *Session) AddSideCharacter(name, description string) (domain.SideCharacter, error) {
	sc, err := domain.NewSideCharacter(name, description)
	if err != nil {
		return domain.SideCharacter{}, err
	}
	s.mu.Lock()
	s.roster = append(slices.Clone(s.roster), sc)
	s.mu.Unlock()
	return sc, nil
}

// RemoveSideCharacter drops a roster entry and its presence in every
// panel. It reports whether the id existed.
func (s *Session) RemoveSideCharacter(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.roster, func(sc domain.SideCharacter) bool { return sc.ID == id })
	if i < 0 {
		return false
	}
	s.roster = slices.Delete(slices.Clone(s.roster), i, i+1)
	s.script = s.script.Clone()
	s.script.DropCharacter(id)
	return true
}

// Back moves one step backwards. Artwork and edits are kept and in-flight
// artwork requests keep running.
func (s *Session) Back() (domain.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.step {
	case domain.StepComposing:
		s.step = domain.StepEditingScript
	case domain.StepEditingScript:
		s.step = domain.StepConfiguring
	default:
		return s.step, ErrWrongStep
	}
	s.emit(notify.StepChanged, 0, string(s.step))
	return s.step, nil
}

// Panel returns a copy of the panel with sequence seq.
func (s *Session) Panel(seq int) (domain.Panel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.script.Panel(seq)
}

// Pages groups the script into pages of the configured size.
func (s *Session) Pages() ([][]domain.Panel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.script.Empty() {
		return nil, ErrNoScript
	}
	return s.script.Pages(s.story.PanelsPerPage)
}

// Wait blocks until every artwork request started so far has finished.
func (s *Session) Wait() { s.wg.Wait() }

// Close cancels in-flight artwork requests, ends drags and waits for the
// request goroutines. The session rejects AI calls afterwards.
func (s *Session) Close() error {
	s.AbandonDrags()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.epoch++
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
	size, panels, snaps := s.history.Stats()
	s.log.Info("session closed", slog.String("session", s.id),
		slog.Int("undo_bytes", size), slog.Int("undo_panels", panels), slog.Int("undo_snapshots", snaps))
	return nil
}

// requestContext keeps the values of ctx but ties cancellation to the
// session lifetime, so artwork outlives the HTTP request that started it.
func (s *Session) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	c, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(s.base, cancel)
	return c, func() {
		stop()
		cancel()
	}
}
