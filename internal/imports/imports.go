/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package imports turns user supplied pictures into the data URIs stored on
// sticker overlays. Inputs are decoded, shrunk to a bounded edge and
// re-encoded as PNG so every stored image has one predictable format.
package imports

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// DefaultMaxEdge bounds width and height of imported images.
	DefaultMaxEdge = 512
	// MaxInputBytes rejects oversized uploads before decoding.
	MaxInputBytes = 20 << 20
)

var (
	ErrUnsupported = errors.New("unsupported image format")
	ErrTooLarge    = errors.New("image exceeds upload limit")
	ErrNotDataURI  = errors.New("not a base64 image data URI")
)

// Importer converts images to PNG data URIs. Results are cached by content
// hash so re-uploading the same file is free.
type Importer struct {
	MaxEdge int
	cache   *cache.Cache
}

// New returns an importer; maxEdge <= 0 selects DefaultMaxEdge.
func New(maxEdge int) *Importer {
	if maxEdge <= 0 {
		maxEdge = DefaultMaxEdge
	}
	return &Importer{MaxEdge: maxEdge, cache: cache.New(time.Hour, 2*time.Hour)}
}

// FromFile imports the image at path.
func (im *Importer) FromFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	return im.FromReader(f)
}

// FromReader imports an image stream (PNG, JPEG, GIF or WebP).
func (im *Importer) FromReader(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxInputBytes+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(data) > MaxInputBytes {
		return "", ErrTooLarge
	}
	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:])
	if v, ok := im.cache.Get(key); ok {
		return v.(string), nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return "", ErrUnsupported
		}
		return "", fmt.Errorf("decode image: %w", err)
	}
	uri, err := EncodePNG(Fit(img, im.MaxEdge))
	if err != nil {
		return "", err
	}
	im.cache.Set(key, uri, cache.DefaultExpiration)
	return uri, nil
}

// Fit scales img down so neither edge exceeds maxEdge, keeping the aspect
// ratio. Smaller images are returned unchanged.
func Fit(img image.Image, maxEdge int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return img
	}
	nw, nh := maxEdge, maxEdge
	if w >= h {
		nh = max(1, h*maxEdge/w)
	} else {
		nw = max(1, w*maxEdge/h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// EncodePNG returns img as a PNG data URI.
func EncodePNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// IsDataURI reports whether s looks like an inline base64 image.
func IsDataURI(s string) bool {
	return strings.HasPrefix(s, "data:image/") && strings.Contains(s, ";base64,")
}

// SplitDataURI returns the MIME type and raw bytes of a base64 data URI.
func SplitDataURI(uri string) (string, []byte, error) {
	if !IsDataURI(uri) {
		return "", nil, ErrNotDataURI
	}
	head, payload, _ := strings.Cut(strings.TrimPrefix(uri, "data:"), ";base64,")
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrNotDataURI, err)
	}
	return head, raw, nil
}

// DecodeDataURI decodes the image carried by a data URI.
func DecodeDataURI(uri string) (image.Image, error) {
	_, raw, err := SplitDataURI(uri)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupported
		}
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}
