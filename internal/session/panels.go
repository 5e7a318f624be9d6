/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"gocomicstudio/internal/domain"
	"gocomicstudio/internal/notify"
	"gocomicstudio/internal/undo"
)

var (
	ErrUnknownCharacter = errors.New("unknown character")
	ErrNoArtwork        = errors.New("no panel has artwork yet")
)

// PanelEdit carries the text fields to change; nil fields are left alone.
type PanelEdit struct {
	Description       *string `json:"description,omitempty"`
	VisualPrompt      *string `json:"visualPrompt,omitempty"`
	DialogueCharacter *string `json:"dialogueCharacter,omitempty"`
	DialogueText      *string `json:"dialogueText,omitempty"`
	ThoughtText       *string `json:"thoughtText,omitempty"`
}

// overlays is what undo records for a panel.
type overlays struct {
	Speech   *domain.Overlay  `json:"speech,omitempty"`
	Thought  *domain.Overlay  `json:"thought,omitempty"`
	Stickers []domain.Overlay `json:"stickers"`
}

func captureOverlays(p domain.Panel) []byte {
	c := p.Clone()
	b, _ := json.Marshal(overlays{Speech: c.SpeechBubble, Thought: c.ThoughtBubble, Stickers: c.Stickers})
	return b
}

func restoreOverlays(p *domain.Panel, blob []byte) error {
	var o overlays
	if err := json.Unmarshal(blob, &o); err != nil {
		return fmt.Errorf("decode overlay history: %w", err)
	}
	if o.Stickers == nil {
		o.Stickers = []domain.Overlay{}
	}
	p.SpeechBubble, p.ThoughtBubble, p.Stickers = o.Speech, o.Thought, o.Stickers
	return nil
}

// mutatePanel applies fn to a copy of panel seq and swaps the copy in when
// fn reports a change. With record set, the overlay state before the
// change is pushed onto the undo history of the panel.
func (s *Session) mutatePanel(seq int, record bool, fn func(p *domain.Panel) (bool, error)) (domain.Panel, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutatePanelLocked(seq, record, fn)
}

func (s *Session) mutatePanelLocked(seq int, record bool, fn func(p *domain.Panel) (bool, error)) (domain.Panel, bool, error) {
	if s.script.Empty() {
		return domain.Panel{}, false, ErrNoScript
	}
	p, err := s.script.Panel(seq)
	if err != nil {
		return domain.Panel{}, false, err
	}
	before := captureOverlays(p)
	changed, err := fn(&p)
	if err != nil || !changed {
		cur, _ := s.script.Panel(seq)
		return cur, false, err
	}
	if record {
		s.history.PushSnapshot(undo.Snapshot{Panel: seq, Blob: before, TS: time.Now()})
	}
	s.script.Panels[seq-1] = p
	return p.Clone(), true, nil
}

// EditPanel updates the text fields of a panel. Entering dialogue or
// thought text for the first time creates the matching bubble.
func (s *Session) EditPanel(seq int, e PanelEdit) (domain.Panel, error) {
	p, _, err := s.mutatePanel(seq, false, func(p *domain.Panel) (bool, error) {
		if e.Description != nil {
			p.SetDescription(*e.Description)
		}
		if e.VisualPrompt != nil {
			p.SetVisualPrompt(*e.VisualPrompt)
		}
		if e.DialogueCharacter != nil {
			p.SetDialogueCharacter(*e.DialogueCharacter)
		}
		if e.DialogueText != nil {
			p.SetDialogueText(*e.DialogueText)
		}
		if e.ThoughtText != nil {
			p.SetThoughtText(*e.ThoughtText)
		}
		return true, nil
	})
	return p, err
}

// ToggleCharacter flips presence of the main character
// (domain.MainCharacterID) or a roster member in a panel and returns the
// new membership.
func (s *Session) ToggleCharacter(seq int, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != domain.MainCharacterID && !slices.ContainsFunc(s.roster, func(sc domain.SideCharacter) bool { return sc.ID == id }) {
		return false, fmt.Errorf("%w: %s", ErrUnknownCharacter, id)
	}
	var present bool
	_, _, err := s.mutatePanelLocked(seq, false, func(p *domain.Panel) (bool, error) {
		present = p.ToggleCharacterPresence(id)
		return true, nil
	})
	return present, err
}

// SetBubblePosition places the speech or thought bubble of a panel.
func (s *Session) SetBubblePosition(seq int, kind domain.OverlayKind, pos domain.Position) (domain.Overlay, error) {
	var out domain.Overlay
	_, _, err := s.mutatePanel(seq, true, func(p *domain.Panel) (bool, error) {
		o, err := p.SetBubblePosition(kind, pos)
		out = o
		return err == nil, err
	})
	return out, err
}

// AddSticker adds a sticker to an explicit panel.
func (s *Session) AddSticker(seq int, kind domain.OverlayKind, content string) (domain.Overlay, error) {
	var out domain.Overlay
	_, _, err := s.mutatePanel(seq, true, func(p *domain.Panel) (bool, error) {
		o, err := p.AddSticker(kind, content)
		out = o
		return err == nil, err
	})
	if err == nil {
		s.emit(notify.StickerAdded, seq, out.ID)
	}
	return out, err
}

// AddStickerToFirstReady adds a sticker to the first panel that has
// artwork and returns that panel's sequence number.
func (s *Session) AddStickerToFirstReady(kind domain.OverlayKind, content string) (int, domain.Overlay, error) {
	s.mu.Lock()
	seq := s.script.FirstReady()
	s.mu.Unlock()
	if seq == 0 {
		return 0, domain.Overlay{}, ErrNoArtwork
	}
	o, err := s.AddSticker(seq, kind, content)
	return seq, o, err
}

// UpdateSticker moves and scales a sticker. A missing id is reported as
// false without error.
func (s *Session) UpdateSticker(seq int, id string, pos domain.Position, scale float64) (bool, error) {
	_, found, err := s.mutatePanel(seq, true, func(p *domain.Panel) (bool, error) {
		return p.UpdateSticker(id, pos, scale), nil
	})
	return found, err
}

// RemoveSticker deletes a sticker. Removing a missing id is a no-op
// reported as false.
func (s *Session) RemoveSticker(seq int, id string) (bool, error) {
	_, found, err := s.mutatePanel(seq, true, func(p *domain.Panel) (bool, error) {
		return p.RemoveSticker(id), nil
	})
	if found {
		s.emit(notify.StickerRemoved, seq, id)
	}
	return found, err
}

// applyOverlay runs one overlay commit against the panel's current record.
// A missing id reports found=false without error: the overlay was removed
// while it was under interaction.
func (s *Session) applyOverlay(seq int, fn func(p *domain.Panel) (domain.Overlay, bool)) (domain.Overlay, bool, error) {
	var out domain.Overlay
	_, found, err := s.mutatePanel(seq, true, func(p *domain.Panel) (bool, error) {
		o, ok := fn(p)
		out = o
		return ok, nil
	})
	return out, found, err
}

// UndoOverlays restores the overlay placement of a panel before its last
// recorded edit. It reports false when there is nothing to undo.
func (s *Session) UndoOverlays(seq int) (bool, error) {
	return s.travel(seq, s.history.Undo)
}

// RedoOverlays re-applies an undone overlay edit.
func (s *Session) RedoOverlays(seq int) (bool, error) {
	return s.travel(seq, s.history.Redo)
}

func (s *Session) travel(seq int, step func(undo.Snapshot) (undo.Snapshot, bool)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.script.Empty() {
		return false, ErrNoScript
	}
	p, err := s.script.Panel(seq)
	if err != nil {
		return false, err
	}
	target, ok := step(undo.Snapshot{Panel: seq, Blob: captureOverlays(p), TS: time.Now()})
	if !ok {
		return false, nil
	}
	if err := restoreOverlays(&p, target.Blob); err != nil {
		return false, err
	}
	s.script.Panels[seq-1] = p
	return true, nil
}
