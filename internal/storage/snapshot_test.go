/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"gocomicstudio/internal/domain"
)

func sampleSnapshot(t *testing.T) Snapshot {
	t.Helper()
	recs := make([]domain.ScriptRecord, 4)
	for i := range recs {
		recs[i] = domain.ScriptRecord{PanelNumber: i + 1, Description: "scene", VisualPrompt: "a candy shop"}
	}
	recs[0].DialogueText = "Hello!"
	sc, err := domain.NewScript(recs, 4, nil)
	if err != nil {
		t.Fatalf("NewScript: %v", err)
	}
	p := sc.Panels[0]
	if _, err := p.SetBubblePosition(domain.KindSpeech, domain.Position{X: 40, Y: 88}); err != nil {
		t.Fatal(err)
	}
	if _, err := p.AddSticker(domain.KindStickerEmoji, "⭐"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.AddSticker(domain.KindStickerImage, "data:image/png;base64,AAAA"); err != nil {
		t.Fatal(err)
	}
	p.SetArtwork("data:image/png;base64,BBBB")
	if err := sc.Replace(p); err != nil {
		t.Fatal(err)
	}
	return Snapshot{
		Character: domain.DefaultCharacter(),
		Story:     domain.DefaultStorySettings(),
		Script:    sc,
		Step:      domain.StepComposing,
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	in := sampleSnapshot(t)
	b, err := EncodeSnapshot(in)
	if err != nil {
		t.Fatalf("EncodeSnapshot: %v", err)
	}
	out, err := DecodeSnapshot(b)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if out.Step != domain.StepComposing || out.Script.Len() != 4 {
		t.Fatalf("unexpected decode: step=%s len=%d", out.Step, out.Script.Len())
	}
	p := out.Script.Panels[0]
	if p.SpeechBubble == nil || p.SpeechBubble.Position != (domain.Position{X: 40, Y: 88}) {
		t.Fatalf("speech bubble not restored: %+v", p.SpeechBubble)
	}
	if len(p.Stickers) != 2 || p.Stickers[0].Content != "⭐" {
		t.Fatalf("stickers not restored: %+v", p.Stickers)
	}
	if p.Stickers[0].ID != in.Script.Panels[0].Stickers[0].ID {
		t.Fatalf("sticker id changed")
	}
	if p.Artwork.State != domain.ArtworkReady {
		t.Fatalf("artwork state = %s", p.Artwork.State)
	}
}

func TestDecodeSnapshotRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":      "{",
		"missing step":  `{"version":1,"character":{"name":"A"},"sideCharacters":[],"story":{"length":4,"panelsPerPage":4},"script":{"panels":[]}}`,
		"bad length":    `{"version":1,"character":{"name":"A"},"sideCharacters":[],"story":{"length":5,"panelsPerPage":4},"script":{"panels":[]},"step":"configuring"}`,
		"future format": `{"version":99,"character":{"name":"A"},"sideCharacters":[],"story":{"length":4,"panelsPerPage":4},"script":{"panels":[]},"step":"configuring"}`,
		"no script":     `{"version":1,"character":{"name":"A"},"sideCharacters":[],"story":{"length":4,"panelsPerPage":4},"script":{"panels":[]},"step":"composing"}`,
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeSnapshot([]byte(data)); !errors.Is(err, ErrInvalidSnapshot) {
				t.Fatalf("want ErrInvalidSnapshot, got %v", err)
			}
		})
	}
}

func TestDecodeSnapshotRejectsOutOfRangeOverlay(t *testing.T) {
	b, _ := EncodeSnapshot(sampleSnapshot(t))
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatal(err)
	}
	panels := raw["script"].(map[string]any)["panels"].([]any)
	st := panels[0].(map[string]any)["stickers"].([]any)[0].(map[string]any)
	st["scale"] = 9.0
	bad, _ := json.Marshal(raw)
	if _, err := DecodeSnapshot(bad); !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("want ErrInvalidSnapshot, got %v", err)
	}
}

func TestDecodeSnapshotRejectsDuplicateOverlayIDs(t *testing.T) {
	s := sampleSnapshot(t)
	s.Script.Panels[0].Stickers[1].ID = s.Script.Panels[0].Stickers[0].ID
	b, _ := EncodeSnapshot(s)
	_, err := DecodeSnapshot(b)
	if !errors.Is(err, ErrInvalidSnapshot) || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("want duplicate id error, got %v", err)
	}
}

func TestDecodeSnapshotNormalizesGenerating(t *testing.T) {
	s := sampleSnapshot(t)
	s.Script.Panels[0].BeginArtworkGeneration()
	s.Script.Panels[1].BeginArtworkGeneration()
	b, _ := EncodeSnapshot(s)
	out, err := DecodeSnapshot(b)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.Script.Panels[0].Artwork.State; got != domain.ArtworkReady {
		t.Fatalf("panel with image should be ready, got %s", got)
	}
	if got := out.Script.Panels[1].Artwork.State; got != domain.ArtworkPending {
		t.Fatalf("panel without image should be pending, got %s", got)
	}
}
