/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package imports

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func solid(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	return img
}

func TestFromReaderDownscalesToMaxEdge(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(400, 200)); err != nil {
		t.Fatal(err)
	}
	uri, err := New(100).FromReader(&buf)
	if err != nil {
		t.Fatalf("FromReader: %v", err)
	}
	if !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Fatalf("unexpected prefix: %.40s", uri)
	}
	img, err := DecodeDataURI(uri)
	if err != nil {
		t.Fatalf("DecodeDataURI: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Fatalf("size = %dx%d, want 100x50", b.Dx(), b.Dy())
	}
}

func TestFromFileConvertsJPEG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sticker.jpg")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := jpeg.Encode(f, solid(30, 60), nil); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()
	uri, err := New(0).FromFile(path)
	if err != nil {
		t.Fatalf("FromFile: %v", err)
	}
	mime, _, err := SplitDataURI(uri)
	if err != nil || mime != "image/png" {
		t.Fatalf("mime = %q, %v", mime, err)
	}
	img, _ := DecodeDataURI(uri)
	if b := img.Bounds(); b.Dx() != 30 || b.Dy() != 60 {
		t.Fatalf("small image must keep its size, got %v", b)
	}
}

func TestFromReaderRejectsUnknownFormat(t *testing.T) {
	if _, err := New(0).FromReader(strings.NewReader("plain text")); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("want ErrUnsupported, got %v", err)
	}
}

func TestFromReaderCachesByContent(t *testing.T) {
	var buf bytes.Buffer
	_ = png.Encode(&buf, solid(10, 10))
	raw := buf.Bytes()
	im := New(0)
	a, err := im.FromReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if im.cache.ItemCount() != 1 {
		t.Fatalf("expected one cached item, got %d", im.cache.ItemCount())
	}
	b, _ := im.FromReader(bytes.NewReader(raw))
	if a != b {
		t.Fatalf("cached result differs")
	}
}

func TestSplitDataURIRejectsPlainURL(t *testing.T) {
	if _, _, err := SplitDataURI("https://example.com/a.png"); !errors.Is(err, ErrNotDataURI) {
		t.Fatalf("want ErrNotDataURI, got %v", err)
	}
}
