/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	"gocomicstudio/internal/domain"
	"gocomicstudio/internal/storage"
)

func pngURI(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: 120, B: uint8(y * 10), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func sampleSnapshot(t *testing.T, length, perPage int) storage.Snapshot {
	t.Helper()
	recs := make([]domain.ScriptRecord, length)
	for i := range recs {
		recs[i] = domain.ScriptRecord{
			PanelNumber:       i + 1,
			Description:       fmt.Sprintf("scene %d", i+1),
			DialogueCharacter: "Ti",
			DialogueText:      fmt.Sprintf("Look at this amazing gadget number %d!", i+1),
			VisualPrompt:      "a kid in a candy world",
		}
	}
	script, err := domain.NewScript(recs, length, nil)
	if err != nil {
		t.Fatalf("new script: %v", err)
	}
	art := pngURI(t, 16, 12)
	for i := range script.Panels {
		p := &script.Panels[i]
		if i%2 == 0 {
			p.SetArtwork(art)
		}
		p.SetThoughtText("hmm")
		if _, err := p.AddSticker(domain.KindStickerEmoji, "✨"); err != nil {
			t.Fatalf("emoji: %v", err)
		}
	}
	if _, err := script.Panels[0].AddSticker(domain.KindStickerImage, pngURI(t, 8, 8)); err != nil {
		t.Fatalf("image sticker: %v", err)
	}
	// Cleared text hides the bubble.
	script.Panels[1].SetDialogueText("")

	story := domain.DefaultStorySettings()
	story.Length = length
	story.PanelsPerPage = perPage
	story.BackgroundColor = "#fff4d6"
	return storage.Snapshot{
		Version:   storage.SnapshotVersion,
		Character: domain.DefaultCharacter(),
		Story:     story,
		Script:    script,
		Step:      domain.StepComposing,
	}
}

func pageCount(pdf []byte) int {
	return bytes.Count(pdf, []byte("<</Type /Page\n"))
}

func TestWritePDF_Paginates(t *testing.T) {
	cases := []struct {
		length, perPage, pages int
	}{
		{8, 3, 3},
		{8, 4, 2},
		{4, 2, 2},
		{4, 4, 1},
	}
	for _, c := range cases {
		var buf bytes.Buffer
		snap := sampleSnapshot(t, c.length, c.perPage)
		if err := WritePDF(context.Background(), &buf, snap, PDFOptions{}); err != nil {
			t.Fatalf("write pdf %d/%d: %v", c.length, c.perPage, err)
		}
		out := buf.Bytes()
		if !bytes.HasPrefix(out, []byte("%PDF")) {
			t.Fatalf("not a pdf")
		}
		// title page plus content pages
		if got := pageCount(out); got != c.pages+1 {
			t.Fatalf("%d/%d: pages=%d want %d", c.length, c.perPage, got, c.pages+1)
		}
	}
}

func TestWritePDF_EmptyScript(t *testing.T) {
	snap := sampleSnapshot(t, 4, 4)
	snap.Script = domain.Script{}
	err := WritePDF(context.Background(), &bytes.Buffer{}, snap, PDFOptions{})
	if !errors.Is(err, ErrEmptyScript) {
		t.Fatalf("want ErrEmptyScript, got %v", err)
	}
}

func TestWritePDF_StrictImages(t *testing.T) {
	snap := sampleSnapshot(t, 4, 2)
	snap.Script.Panels[3].SetArtwork("data:image/png;base64,AAAA")

	if err := WritePDF(context.Background(), &bytes.Buffer{}, snap, PDFOptions{Strict: true}); err == nil {
		t.Fatalf("expected strict export to fail on a broken image")
	}
	var buf bytes.Buffer
	if err := WritePDF(context.Background(), &buf, snap, PDFOptions{}); err != nil {
		t.Fatalf("lenient export: %v", err)
	}
	if pageCount(buf.Bytes()) != 3 {
		t.Fatalf("pages=%d", pageCount(buf.Bytes()))
	}
}

func TestWritePDF_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := WritePDF(ctx, &bytes.Buffer{}, sampleSnapshot(t, 4, 2), PDFOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestPanelRects(t *testing.T) {
	w, h := PageSize("A4")
	for n := 2; n <= 4; n++ {
		rects := PanelRects(w, h, n)
		if len(rects) != n {
			t.Fatalf("n=%d: got %d rects", n, len(rects))
		}
		for i, r := range rects {
			if r.X < margin-0.001 || r.X+r.W > w-margin+0.001 {
				t.Fatalf("n=%d rect %d outside margins: %+v", n, i, r)
			}
			if r.Y+r.H > h-margin-footerH+0.001 {
				t.Fatalf("n=%d rect %d overlaps footer: %+v", n, i, r)
			}
			if d := r.W*3 - r.H*4; d > 0.001 || d < -0.001 {
				t.Fatalf("n=%d rect %d not 4:3: %+v", n, i, r)
			}
			if i > 0 && r.Y < rects[i-1].Y+rects[i-1].H {
				t.Fatalf("n=%d rect %d overlaps previous", n, i)
			}
		}
	}
	if PanelRects(w, h, 0) != nil {
		t.Fatalf("expected nil for n=0")
	}
}

func TestShortenAndParseHex(t *testing.T) {
	if got := shorten("short", 40); got != "short" {
		t.Fatalf("shorten=%q", got)
	}
	long := "A kid finds a magic door that leads to a world made of candy."
	if got := shorten(long, 40); got != long[:40]+"..." {
		t.Fatalf("shorten=%q", got)
	}
	if got := parseHex("#ff8000"); got != (rgb{255, 128, 0}) {
		t.Fatalf("parseHex=%v", got)
	}
	if got := parseHex("orange"); got != white {
		t.Fatalf("invalid color should give white, got %v", got)
	}
}
