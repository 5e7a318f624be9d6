/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"slices"
	"strings"
)

// Panel is one comic frame. Methods mutate the receiver; callers that
// share panels work on a Clone and swap the whole value back in.
type Panel struct {
	Sequence          int       `json:"sequence"`
	Description       string    `json:"description"`
	VisualPrompt      string    `json:"visualPrompt"`
	DialogueCharacter string    `json:"dialogueCharacter"`
	DialogueText      string    `json:"dialogueText"`
	ThoughtText       string    `json:"thoughtText"`
	Artwork           Artwork   `json:"artwork"`
	ShowMainCharacter bool      `json:"showMainCharacter"`
	CharacterIDs      []string  `json:"additionalCharacterIds"`
	SpeechBubble      *Overlay  `json:"speechBubble,omitempty"`
	ThoughtBubble     *Overlay  `json:"thoughtBubble,omitempty"`
	Stickers          []Overlay `json:"stickers"`
}

// NewPanel returns a pending panel built from one script record.
func NewPanel(seq int, rec ScriptRecord) Panel {
	p := Panel{
		Sequence:          seq,
		Description:       rec.Description,
		VisualPrompt:      rec.VisualPrompt,
		DialogueCharacter: rec.DialogueCharacter,
		Artwork:           Artwork{State: ArtworkPending},
		ShowMainCharacter: true,
		CharacterIDs:      []string{},
		Stickers:          []Overlay{},
	}
	p.SetDialogueText(rec.DialogueText)
	return p
}

// Clone returns a deep copy.
func (p Panel) Clone() Panel {
	c := p
	c.CharacterIDs = slices.Clone(p.CharacterIDs)
	c.Stickers = slices.Clone(p.Stickers)
	if p.SpeechBubble != nil {
		b := *p.SpeechBubble
		c.SpeechBubble = &b
	}
	if p.ThoughtBubble != nil {
		b := *p.ThoughtBubble
		c.ThoughtBubble = &b
	}
	return c
}

// SetArtwork marks the artwork ready with the given image reference.
func (p *Panel) SetArtwork(image string) {
	p.Artwork.State = ArtworkReady
	p.Artwork.Image = image
	p.Artwork.Error = ""
}

// BeginArtworkGeneration moves to generating and returns the new attempt
// number. Always permitted, whatever the current state.
func (p *Panel) BeginArtworkGeneration() int {
	p.Artwork.Attempt++
	p.Artwork.State = ArtworkGenerating
	p.Artwork.Error = ""
	return p.Artwork.Attempt
}

// FailArtworkGeneration marks the artwork failed. The last image is kept.
func (p *Panel) FailArtworkGeneration(err error) {
	p.Artwork.State = ArtworkFailed
	if err != nil {
		p.Artwork.Error = err.Error()
	} else {
		p.Artwork.Error = "artwork generation failed"
	}
}

func (p *Panel) SetDescription(s string) { p.Description = s }
func (p *Panel) SetVisualPrompt(s string) { p.VisualPrompt = s }
func (p *Panel) SetDialogueCharacter(s string) { p.DialogueCharacter = s }

// SetDialogueText updates the speech text and creates the speech bubble at
// its default position the first time the text becomes non-empty. Clearing
// the text keeps the bubble record so its placement survives.
func (p *Panel) SetDialogueText(s string) {
	p.DialogueText = s
	if p.SpeechBubble == nil && strings.TrimSpace(s) != "" {
		p.SpeechBubble = newBubble(KindSpeech, DefaultSpeechPosition)
	}
}

// SetThoughtText is SetDialogueText for the thought bubble.
func (p *Panel) SetThoughtText(s string) {
	p.ThoughtText = s
	if p.ThoughtBubble == nil && strings.TrimSpace(s) != "" {
		p.ThoughtBubble = newBubble(KindThought, DefaultThoughtPosition)
	}
}

func newBubble(kind OverlayKind, pos Position) *Overlay {
	return &Overlay{ID: newID(), Kind: kind, Position: pos, Scale: 1}
}

// SpeechVisible reports whether the speech bubble should be rendered.
func (p Panel) SpeechVisible() bool {
	return p.SpeechBubble != nil && strings.TrimSpace(p.DialogueText) != ""
}

// ThoughtVisible reports whether the thought bubble should be rendered.
func (p Panel) ThoughtVisible() bool {
	return p.ThoughtBubble != nil && strings.TrimSpace(p.ThoughtText) != ""
}

// SetBubblePosition places the speech or thought bubble, creating it if
// absent. A panel never holds more than one bubble of each kind.
func (p *Panel) SetBubblePosition(kind OverlayKind, pos Position) (Overlay, error) {
	slot, err := p.bubbleSlot(kind)
	if err != nil {
		return Overlay{}, err
	}
	pos = ClampPosition(pos)
	if *slot == nil {
		*slot = newBubble(kind, pos)
	} else {
		b := **slot
		b.Position = pos
		*slot = &b
	}
	return **slot, nil
}

func (p *Panel) bubbleSlot(kind OverlayKind) (**Overlay, error) {
	switch kind {
	case KindSpeech:
		return &p.SpeechBubble, nil
	case KindThought:
		return &p.ThoughtBubble, nil
	default:
		return nil, ErrNotBubble
	}
}

// AddSticker appends a sticker at the default position with scale 1 and a
// fresh id.
func (p *Panel) AddSticker(kind OverlayKind, content string) (Overlay, error) {
	if !kind.IsSticker() {
		return Overlay{}, ErrNotSticker
	}
	s := Overlay{ID: newID(), Kind: kind, Content: content, Position: DefaultStickerPosition, Scale: 1}
	for p.hasOverlayID(s.ID) {
		s.ID = newID()
	}
	p.Stickers = append(p.Stickers, s)
	return s, nil
}

func (p *Panel) hasOverlayID(id string) bool {
	_, ok := p.Overlay(id)
	return ok
}

// UpdateSticker replaces position and scale of the sticker with the given
// id. It reports false when the id is absent.
func (p *Panel) UpdateSticker(id string, pos Position, scale float64) bool {
	for i := range p.Stickers {
		if p.Stickers[i].ID == id {
			s := p.Stickers[i]
			s.Position = ClampPosition(pos)
			s.Scale = ClampScale(scale)
			p.Stickers[i] = s
			return true
		}
	}
	return false
}

// RemoveSticker deletes the sticker with the given id. Removing a missing
// id is a no-op reported as false.
func (p *Panel) RemoveSticker(id string) bool {
	for i := range p.Stickers {
		if p.Stickers[i].ID == id {
			p.Stickers = slices.Delete(p.Stickers, i, i+1)
			return true
		}
	}
	return false
}

// Overlay finds any overlay (bubble or sticker) by id.
func (p Panel) Overlay(id string) (Overlay, bool) {
	if p.SpeechBubble != nil && p.SpeechBubble.ID == id {
		return *p.SpeechBubble, true
	}
	if p.ThoughtBubble != nil && p.ThoughtBubble.ID == id {
		return *p.ThoughtBubble, true
	}
	for _, s := range p.Stickers {
		if s.ID == id {
			return s, true
		}
	}
	return Overlay{}, false
}

// MoveOverlay replaces the position of the bubble or sticker with the
// given id and keeps everything else, scale included. It returns the
// resulting record and false when the id is absent.
func (p *Panel) MoveOverlay(id string, pos Position) (Overlay, bool) {
	switch {
	case p.SpeechBubble != nil && p.SpeechBubble.ID == id:
		o, _ := p.SetBubblePosition(KindSpeech, pos)
		return o, true
	case p.ThoughtBubble != nil && p.ThoughtBubble.ID == id:
		o, _ := p.SetBubblePosition(KindThought, pos)
		return o, true
	}
	for i, s := range p.Stickers {
		if s.ID == id {
			s.Position = ClampPosition(pos)
			p.Stickers[i] = s
			return s, true
		}
	}
	return Overlay{}, false
}

// ScaleSticker replaces the scale of a sticker and keeps its position.
// Bubbles are never scaled and report false, as do absent ids.
func (p *Panel) ScaleSticker(id string, scale float64) (Overlay, bool) {
	for i, s := range p.Stickers {
		if s.ID == id {
			s.Scale = ClampScale(scale)
			p.Stickers[i] = s
			return s, true
		}
	}
	return Overlay{}, false
}

// ToggleCharacterPresence flips the main character flag (MainCharacterID)
// or membership of a side character id. It returns the new membership.
func (p *Panel) ToggleCharacterPresence(id string) bool {
	if id == MainCharacterID {
		p.ShowMainCharacter = !p.ShowMainCharacter
		return p.ShowMainCharacter
	}
	if i := slices.Index(p.CharacterIDs, id); i >= 0 {
		p.CharacterIDs = slices.Delete(slices.Clone(p.CharacterIDs), i, i+1)
		return false
	}
	p.CharacterIDs = append(slices.Clone(p.CharacterIDs), id)
	return true
}

// HasCharacter reports presence of MainCharacterID or a side character id.
func (p Panel) HasCharacter(id string) bool {
	if id == MainCharacterID {
		return p.ShowMainCharacter
	}
	return slices.Contains(p.CharacterIDs, id)
}

// dropCharacter removes a side character id, used when the roster shrinks.
func (p *Panel) dropCharacter(id string) bool {
	if i := slices.Index(p.CharacterIDs, id); i >= 0 {
		p.CharacterIDs = slices.Delete(slices.Clone(p.CharacterIDs), i, i+1)
		return true
	}
	return false
}
