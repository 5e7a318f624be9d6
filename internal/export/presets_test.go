/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"gocomicstudio/internal/domain"
)

func faceForTest() font.Face { return basicfont.Face7x13 }

func TestBatchExport_WebPreset(t *testing.T) {
	dir := t.TempDir()
	paths, err := BatchExport(context.Background(), sampleSnapshot(t, 4, 2), BatchOptions{Preset: PresetWeb, OutDir: dir, Raster: RasterOptions{DPI: 36}})
	if err != nil {
		t.Fatalf("batch export web: %v", err)
	}
	checks := []string{
		filepath.Join(dir, "png", "page-1.png"),
		filepath.Join(dir, "png", "page-2.png"),
		filepath.Join(dir, "comic.cbz"),
	}
	if len(paths) != len(checks) {
		t.Fatalf("paths=%v", paths)
	}
	for _, p := range checks {
		st, err := os.Stat(p)
		if err != nil {
			t.Fatalf("missing %s: %v", p, err)
		}
		if st.Size() <= 0 {
			t.Fatalf("empty file: %s", p)
		}
	}
}

func TestBatchExport_PrintPreset(t *testing.T) {
	dir := t.TempDir()
	paths, err := BatchExport(context.Background(), sampleSnapshot(t, 4, 4), BatchOptions{Preset: PresetPrint, OutDir: dir, Stem: "candy"})
	if err != nil {
		t.Fatalf("batch export print: %v", err)
	}
	if len(paths) != 1 || paths[0] != filepath.Join(dir, "candy.pdf") {
		t.Fatalf("paths=%v", paths)
	}
	if _, err := os.Stat(paths[0]); err != nil {
		t.Fatalf("stat: %v", err)
	}
}

func TestBatchExport_Errors(t *testing.T) {
	snap := sampleSnapshot(t, 4, 2)
	if _, err := BatchExport(context.Background(), snap, BatchOptions{Formats: []string{"epub"}, OutDir: t.TempDir()}); err == nil {
		t.Fatalf("expected unknown format error")
	}
	snap.Script = domain.Script{}
	if _, err := BatchExport(context.Background(), snap, BatchOptions{OutDir: t.TempDir()}); !errors.Is(err, ErrEmptyScript) {
		t.Fatalf("want ErrEmptyScript, got %v", err)
	}
}
