/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gocomicstudio/internal/domain"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

// SessionKey is the key the editing session is saved under.
const SessionKey = "session"

// SnapshotVersion is written into every encoded snapshot.
const SnapshotVersion = 1

// ErrInvalidSnapshot wraps every decode failure.
var ErrInvalidSnapshot = errors.New("invalid session snapshot")

//go:embed snapshot.schema.json
var snapshotSchema []byte

var compiledSchema *gojsonschema.Schema

func init() {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(snapshotSchema))
	if err != nil {
		panic(fmt.Sprintf("snapshot schema: %v", err))
	}
	compiledSchema = s
}

// Snapshot is the persisted form of an editing session.
type Snapshot struct {
	Version        int                    `json:"version"`
	Character      domain.CharacterConfig `json:"character"`
	SideCharacters []domain.SideCharacter `json:"sideCharacters"`
	Story          domain.StorySettings   `json:"story"`
	Script         domain.Script          `json:"script"`
	Step           domain.Step            `json:"step"`
	Timestamp      time.Time              `json:"timestamp"`
}

// EncodeSnapshot marshals s in human-readable form.
func EncodeSnapshot(s Snapshot) ([]byte, error) {
	s.Version = SnapshotVersion
	if s.SideCharacters == nil {
		s.SideCharacters = []domain.SideCharacter{}
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now().UTC()
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return append(b, '\n'), nil
}

// DecodeSnapshot validates data against the snapshot schema and the model
// invariants and returns the snapshot. Any failure wraps ErrInvalidSnapshot.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	res, err := compiledSchema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return Snapshot{}, fmt.Errorf("%w: %s", ErrInvalidSnapshot, strings.Join(msgs, "; "))
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if s.Version > SnapshotVersion {
		return Snapshot{}, fmt.Errorf("%w: version %d is newer than supported %d", ErrInvalidSnapshot, s.Version, SnapshotVersion)
	}
	if err := checkInvariants(s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	normalize(&s)
	return s, nil
}

func checkInvariants(s Snapshot) error {
	if s.Step != domain.StepConfiguring && s.Script.Empty() {
		return fmt.Errorf("step %s without a script", s.Step)
	}
	for i, p := range s.Script.Panels {
		if p.Sequence != i+1 {
			return fmt.Errorf("panel %d has sequence %d", i+1, p.Sequence)
		}
		if p.SpeechBubble != nil && p.SpeechBubble.Kind != domain.KindSpeech {
			return fmt.Errorf("panel %d: speech bubble has kind %s", p.Sequence, p.SpeechBubble.Kind)
		}
		if p.ThoughtBubble != nil && p.ThoughtBubble.Kind != domain.KindThought {
			return fmt.Errorf("panel %d: thought bubble has kind %s", p.Sequence, p.ThoughtBubble.Kind)
		}
		ids := map[string]bool{}
		for _, b := range []*domain.Overlay{p.SpeechBubble, p.ThoughtBubble} {
			if b != nil {
				ids[b.ID] = true
			}
		}
		for _, st := range p.Stickers {
			if !st.Kind.IsSticker() {
				return fmt.Errorf("panel %d: sticker %s has kind %s", p.Sequence, st.ID, st.Kind)
			}
			if ids[st.ID] {
				return fmt.Errorf("panel %d: duplicate overlay id %s", p.Sequence, st.ID)
			}
			ids[st.ID] = true
		}
	}
	return nil
}

// normalize fills fields older snapshots may lack.
func normalize(s *Snapshot) {
	if s.SideCharacters == nil {
		s.SideCharacters = []domain.SideCharacter{}
	}
	if s.Story.BackgroundColor == "" {
		s.Story.BackgroundColor = domain.DefaultStorySettings().BackgroundColor
	}
	for i := range s.Script.Panels {
		p := &s.Script.Panels[i]
		if p.CharacterIDs == nil {
			p.CharacterIDs = []string{}
		}
		if p.Stickers == nil {
			p.Stickers = []domain.Overlay{}
		}
		// an in-flight request does not survive a save; let the user regenerate
		if p.Artwork.State == domain.ArtworkGenerating {
			if p.Artwork.Image != "" {
				p.Artwork.State = domain.ArtworkReady
			} else {
				p.Artwork.State = domain.ArtworkPending
			}
		}
	}
}
