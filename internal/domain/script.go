/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"fmt"
	"strings"
)

// ScriptRecord is one panel as returned by the script generator.
type ScriptRecord struct {
	PanelNumber       int    `json:"panelNumber"`
	Description       string `json:"description"`
	DialogueCharacter string `json:"dialogue_character"`
	DialogueText      string `json:"dialogue_text"`
	VisualPrompt      string `json:"visual_prompt"`
}

// Script is the ordered, fixed-length panel sequence of a story.
type Script struct {
	Panels []Panel `json:"panels"`
}

// NewScript builds a script of exactly length panels numbered 1..length in
// receipt order. Extra records are dropped; too few records is an error.
// Side characters whose name appears in a panel's description or visual
// prompt are marked present in that panel.
func NewScript(records []ScriptRecord, length int, roster []SideCharacter) (Script, error) {
	if !ValidStoryLength(length) {
		return Script{}, ErrInvalidLength
	}
	if len(records) < length {
		return Script{}, fmt.Errorf("%w: got %d, want %d", ErrShortScript, len(records), length)
	}
	s := Script{Panels: make([]Panel, 0, length)}
	for i, rec := range records[:length] {
		p := NewPanel(i+1, rec)
		p.CharacterIDs = DetectCharacters(rec, roster)
		s.Panels = append(s.Panels, p)
	}
	return s, nil
}

// DetectCharacters returns the ids of roster entries whose name occurs
// (case-insensitively) in the record's description or visual prompt.
func DetectCharacters(rec ScriptRecord, roster []SideCharacter) []string {
	desc := strings.ToLower(rec.Description)
	vis := strings.ToLower(rec.VisualPrompt)
	ids := []string{}
	for _, sc := range roster {
		name := strings.ToLower(strings.TrimSpace(sc.Name))
		if name == "" {
			continue
		}
		if strings.Contains(desc, name) || strings.Contains(vis, name) {
			ids = append(ids, sc.ID)
		}
	}
	return ids
}

// Len returns the number of panels.
func (s Script) Len() int { return len(s.Panels) }

// Empty reports whether no script has been generated yet.
func (s Script) Empty() bool { return len(s.Panels) == 0 }

// Panel returns a copy of the panel with the given sequence number.
func (s Script) Panel(seq int) (Panel, error) {
	if seq < 1 || seq > len(s.Panels) {
		return Panel{}, fmt.Errorf("%w: %d", ErrUnknownPanel, seq)
	}
	return s.Panels[seq-1].Clone(), nil
}

// Replace swaps in p at its sequence number.
func (s *Script) Replace(p Panel) error {
	if p.Sequence < 1 || p.Sequence > len(s.Panels) {
		return fmt.Errorf("%w: %d", ErrUnknownPanel, p.Sequence)
	}
	s.Panels[p.Sequence-1] = p
	return nil
}

// Clone returns a deep copy.
func (s Script) Clone() Script {
	if s.Panels == nil {
		return Script{}
	}
	c := Script{Panels: make([]Panel, len(s.Panels))}
	for i, p := range s.Panels {
		c.Panels[i] = p.Clone()
	}
	return c
}

// FirstReady returns the sequence number of the first panel that has an
// image, or 0.
func (s Script) FirstReady() int {
	for _, p := range s.Panels {
		if p.Artwork.Image != "" {
			return p.Sequence
		}
	}
	return 0
}

// DropCharacter removes a side character id from every panel.
func (s *Script) DropCharacter(id string) {
	for i := range s.Panels {
		s.Panels[i].dropCharacter(id)
	}
}

// Pages groups panels into consecutive chunks of perPage. The last page may
// be shorter. Order and identity of panels are untouched.
func (s Script) Pages(perPage int) ([][]Panel, error) {
	if !ValidPanelsPerPage(perPage) {
		return nil, ErrPanelsPerPage
	}
	var pages [][]Panel
	for i := 0; i < len(s.Panels); i += perPage {
		end := min(i+perPage, len(s.Panels))
		page := make([]Panel, 0, end-i)
		for _, p := range s.Panels[i:end] {
			page = append(page, p.Clone())
		}
		pages = append(pages, page)
	}
	return pages, nil
}
