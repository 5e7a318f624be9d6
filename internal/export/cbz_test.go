/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"archive/zip"
	"context"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/font/gofont/goregular"
)

func TestRenderPages(t *testing.T) {
	snap := sampleSnapshot(t, 8, 3)
	imgs, err := RenderPages(context.Background(), snap, RasterOptions{DPI: 72})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(imgs) != 3 {
		t.Fatalf("pages=%d", len(imgs))
	}
	b := imgs[0].Bounds()
	if b.Dx() != 595 || b.Dy() != 842 {
		t.Fatalf("size=%v", b)
	}
	// Page corner carries the background color.
	if c := imgs[0].RGBAAt(1, 1); c.R != 0xff || c.G != 0xf4 || c.B != 0xd6 {
		t.Fatalf("background=%v", c)
	}
}

func TestRenderPagesWithTTF(t *testing.T) {
	dir := t.TempDir()
	ttf := filepath.Join(dir, "go.ttf")
	if err := os.WriteFile(ttf, goregular.TTF, 0o644); err != nil {
		t.Fatalf("write font: %v", err)
	}
	snap := sampleSnapshot(t, 4, 4)
	imgs, err := RenderPages(context.Background(), snap, RasterOptions{DPI: 72, Font: ttf, FontSize: 11})
	if err != nil || len(imgs) != 1 {
		t.Fatalf("render: %v (%d pages)", err, len(imgs))
	}

	if _, err := RenderPages(context.Background(), snap, RasterOptions{Font: filepath.Join(dir, "none.ttf")}); err == nil {
		t.Fatalf("expected error for a missing font file")
	}
	bogus := filepath.Join(dir, "bogus.ttf")
	_ = os.WriteFile(bogus, []byte("not a font"), 0o644)
	if _, err := RenderPages(context.Background(), snap, RasterOptions{Font: bogus}); err == nil || !strings.Contains(err.Error(), "parse font") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestExportPNGPages(t *testing.T) {
	dir := t.TempDir()
	paths, err := ExportPNGPages(context.Background(), dir, sampleSnapshot(t, 4, 2), RasterOptions{DPI: 72, PageSize: "Letter"})
	if err != nil {
		t.Fatalf("export png: %v", err)
	}
	if len(paths) != 2 || filepath.Base(paths[1]) != "page-2.png" {
		t.Fatalf("paths=%v", paths)
	}
	f, err := os.Open(paths[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = f.Close() }()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Width != 612 || cfg.Height != 792 {
		t.Fatalf("letter page=%dx%d", cfg.Width, cfg.Height)
	}
}

func TestExportCBZ(t *testing.T) {
	out := filepath.Join(t.TempDir(), "exports", "comic")
	if err := ExportCBZ(context.Background(), out, sampleSnapshot(t, 8, 4), RasterOptions{DPI: 50}); err != nil {
		t.Fatalf("export cbz: %v", err)
	}
	rd, err := zip.OpenReader(out + ".cbz")
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer func() { _ = rd.Close() }()

	names := map[string]*zip.File{}
	for _, f := range rd.File {
		names[f.Name] = f
	}
	for _, want := range []string{"1.png", "2.png", "ComicInfo.xml"} {
		if names[want] == nil {
			t.Fatalf("%s missing from archive: %v", want, names)
		}
	}
	r, err := names["ComicInfo.xml"].Open()
	if err != nil {
		t.Fatalf("open manifest: %v", err)
	}
	data, err := io.ReadAll(r)
	_ = r.Close()
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	text := string(data)
	for _, want := range []string{"<PageCount>2</PageCount>", "<Characters>Ti</Characters>", "<Series>Go Comic Studio</Series>"} {
		if !strings.Contains(text, want) {
			t.Fatalf("manifest missing %s: %s", want, text)
		}
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText(faceForTest(), "one two three four five six", 60)
	if len(lines) < 2 {
		t.Fatalf("expected wrapping, got %v", lines)
	}
	if got := strings.Join(lines, " "); got != "one two three four five six" {
		t.Fatalf("words lost: %q", got)
	}
	if lines := wrapText(faceForTest(), "", 60); len(lines) != 1 || lines[0] != "" {
		t.Fatalf("empty text=%v", lines)
	}
}
