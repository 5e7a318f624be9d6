/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the data model of a comic session: overlays placed on
// panels, the panel artwork lifecycle, the script and the character roster.
// Everything here serializes to the JSON session snapshot.

import (
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotBubble     = errors.New("overlay kind is not a bubble")
	ErrNotSticker    = errors.New("overlay kind is not a sticker")
	ErrUnknownKind   = errors.New("unknown overlay kind")
	ErrUnknownPanel  = errors.New("unknown panel")
	ErrInvalidLength = errors.New("story length must be 4 or 8")
	ErrShortScript   = errors.New("script has fewer panels than requested")
	ErrPanelsPerPage = errors.New("panels per page must be 2, 3 or 4")
	ErrInvalidColor  = errors.New("color must be #rrggbb")
	ErrEmptyName     = errors.New("name must not be empty")
)

// newID is swapped in tests that need deterministic ids.
var newID = uuid.NewString

// OverlayKind discriminates overlay elements.
type OverlayKind string

const (
	KindSpeech       OverlayKind = "speech"
	KindThought      OverlayKind = "thought"
	KindStickerEmoji OverlayKind = "sticker-emoji"
	KindStickerImage OverlayKind = "sticker-image"
)

func (k OverlayKind) IsBubble() bool { return k == KindSpeech || k == KindThought }
func (k OverlayKind) IsSticker() bool { return k == KindStickerEmoji || k == KindStickerImage }
func (k OverlayKind) Valid() bool { return k.IsBubble() || k.IsSticker() }

// ParseOverlayKind validates a kind string coming from a request.
func ParseOverlayKind(s string) (OverlayKind, error) {
	k := OverlayKind(s)
	if !k.Valid() {
		return "", ErrUnknownKind
	}
	return k, nil
}

// Overlay is a speech bubble, thought bubble or sticker placed on a panel.
// Bubbles take their text from the owning panel; Content is used by
// stickers only (an emoji glyph or an image data URI). Scale is fixed at 1
// for bubbles.
type Overlay struct {
	ID       string      `json:"id"`
	Kind     OverlayKind `json:"kind"`
	Content  string      `json:"content,omitempty"`
	Position Position    `json:"position"`
	Scale    float64     `json:"scale"`
}

// Default bubble placements.
var (
	DefaultSpeechPosition  = Position{X: 50, Y: 85}
	DefaultThoughtPosition = Position{X: 50, Y: 20}
	DefaultStickerPosition = Position{X: 50, Y: 50}
)

// ArtworkState tracks the asynchronous artwork fetch of one panel.
type ArtworkState string

const (
	ArtworkPending    ArtworkState = "pending"
	ArtworkGenerating ArtworkState = "generating"
	ArtworkReady      ArtworkState = "ready"
	ArtworkFailed     ArtworkState = "failed"
)

// Artwork is the artwork lifecycle of a panel. Image survives a failed
// regeneration so the previous picture stays visible. Attempt counts
// generation requests; a completion carrying an older attempt is stale.
type Artwork struct {
	State   ArtworkState `json:"state"`
	Image   string       `json:"image,omitempty"`
	Error   string       `json:"error,omitempty"`
	Attempt int          `json:"attempt"`
}

// MainCharacterID addresses the main character in presence toggles.
const MainCharacterID = "main"

// SideCharacter is a supporting character in the roster.
type SideCharacter struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// NewSideCharacter returns a roster entry with a fresh id.
func NewSideCharacter(name, description string) (SideCharacter, error) {
	if name == "" {
		return SideCharacter{}, ErrEmptyName
	}
	if description == "" {
		description = "No special description"
	}
	return SideCharacter{ID: newID(), Name: name, Description: description}, nil
}

// Step is the editing session step.
type Step string

const (
	StepConfiguring   Step = "configuring"
	StepEditingScript Step = "editingScript"
	StepComposing     Step = "composing"
)

// StorySettings holds the story configuration.
type StorySettings struct {
	Length          int    `json:"length"`
	Topic           string `json:"topic"`
	PanelsPerPage   int    `json:"panelsPerPage"`
	BackgroundColor string `json:"backgroundColor"`
}

// DefaultStorySettings returns the settings of a fresh session.
func DefaultStorySettings() StorySettings {
	return StorySettings{
		Length:          4,
		Topic:           "A kid finds a magic door that leads to a world made of candy.",
		PanelsPerPage:   4,
		BackgroundColor: "#ffffff",
	}
}

// Validate checks length, panels per page and background color.
func (s StorySettings) Validate() error {
	if !ValidStoryLength(s.Length) {
		return ErrInvalidLength
	}
	if !ValidPanelsPerPage(s.PanelsPerPage) {
		return ErrPanelsPerPage
	}
	if !ValidColor(s.BackgroundColor) {
		return ErrInvalidColor
	}
	return nil
}

func ValidStoryLength(n int) bool { return n == 4 || n == 8 }
func ValidPanelsPerPage(n int) bool { return n >= 2 && n <= 4 }

// ValidColor accepts #rrggbb.
func ValidColor(c string) bool {
	if len(c) != 7 || c[0] != '#' {
		return false
	}
	for _, r := range c[1:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
