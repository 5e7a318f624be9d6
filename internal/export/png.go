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
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"gocomicstudio/internal/domain"
	"gocomicstudio/internal/storage"
)

// RasterOptions controls PNG page rendering, shared by the PNG and CBZ
// exporters.
//
//nolint:revive // clarity is preferred
type RasterOptions struct {
	PageSize string
	DPI      int // default 150
	Strict   bool
	Workers  int
	// Font is a TTF/OTF file for page text. Empty uses a 7x13 bitmap font.
	Font     string
	FontSize float64 // points, default 9
}

func (o RasterOptions) scale() float64 {
	dpi := o.DPI
	if dpi <= 0 {
		dpi = 150
	}
	return float64(dpi) / 72.0
}

// RenderPages rasterizes every page of the snapshot. No title page is
// produced; raster pages are meant for readers and sharing.
func RenderPages(ctx context.Context, snap storage.Snapshot, opt RasterOptions) ([]*image.RGBA, error) {
	if snap.Script.Empty() {
		return nil, ErrEmptyScript
	}
	pages, err := snap.Script.Pages(snap.Story.PanelsPerPage)
	if err != nil {
		return nil, err
	}
	images, err := decodeImages(ctx, snap.Script, opt.Workers, opt.Strict)
	if err != nil {
		return nil, err
	}
	face, err := loadFace(opt.Font, opt.FontSize, opt.scale()*72)
	if err != nil {
		return nil, err
	}
	defer func() { _ = face.Close() }()
	bg := parseHex(snap.Story.BackgroundColor)
	out := make([]*image.RGBA, 0, len(pages))
	for _, pg := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, renderPage(pg, snap.Story.PanelsPerPage, bg, images, face, opt))
	}
	return out, nil
}

// ExportPNGPages writes page-<n>.png files into outDir.
func ExportPNGPages(ctx context.Context, outDir string, snap storage.Snapshot, opt RasterOptions) ([]string, error) {
	imgs, err := RenderPages(ctx, snap, opt)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure out dir: %w", err)
	}
	paths := make([]string, 0, len(imgs))
	for i, img := range imgs {
		name := filepath.Join(outDir, fmt.Sprintf("page-%d.png", i+1))
		f, err := os.Create(name)
		if err != nil {
			return nil, fmt.Errorf("create png: %w", err)
		}
		if err := png.Encode(f, img); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("encode png: %w", err)
		}
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("close png: %w", err)
		}
		paths = append(paths, name)
	}
	return paths, nil
}

func toRGBA(c rgb) color.RGBA {
	return color.RGBA{R: uint8(c.r), G: uint8(c.g), B: uint8(c.b), A: 255}
}

func renderPage(panels []domain.Panel, perPage int, bg rgb, images map[string]decoded, face font.Face, opt RasterOptions) *image.RGBA {
	pw, ph := PageSize(opt.PageSize)
	k := opt.scale()
	img := image.NewRGBA(image.Rect(0, 0, int(math.Round(pw*k)), int(math.Round(ph*k))))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: toRGBA(bg)}, image.Point{}, draw.Src)

	for i, box := range PanelRects(pw, ph, perPage)[:len(panels)] {
		p := panels[i]
		r := image.Rect(int(box.X*k), int(box.Y*k), int((box.X+box.W)*k), int((box.Y+box.H)*k))
		if d, ok := images[imageName(p.Artwork.Image)]; ok && p.Artwork.Image != "" {
			draw.CatmullRom.Scale(img, r, d.img, d.img.Bounds(), draw.Over, nil)
		} else {
			fillRect(img, r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1, toRGBA(lightGrey))
			drawText(img, face, fmt.Sprintf("Panel %d", p.Sequence), r.Min.X+r.Dx()/2, r.Min.Y+r.Dy()/2, toRGBA(grey))
		}
		strokeRect(img, r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1, toRGBA(black), int(math.Max(1, 2*k)))

		if p.SpeechVisible() {
			rasterBubble(img, face, r, *p.SpeechBubble, p.DialogueText, p.DialogueCharacter)
		}
		if p.ThoughtVisible() {
			rasterBubble(img, face, r, *p.ThoughtBubble, p.ThoughtText, "")
		}
		for _, st := range p.Stickers {
			rasterSticker(img, face, r, st, images, k)
		}
	}
	return img
}

func pointIn(r image.Rectangle, pos domain.Position) (int, int) {
	return r.Min.X + int(pos.X/100*float64(r.Dx())), r.Min.Y + int(pos.Y/100*float64(r.Dy()))
}

func rasterBubble(img *image.RGBA, face font.Face, box image.Rectangle, o domain.Overlay, text, label string) {
	const pad = 6
	lineH := face.Metrics().Height.Ceil() + 2
	tagH := lineH
	lines := wrapText(face, text, box.Dx()*6/10-2*pad)
	w := 0
	for _, ln := range lines {
		w = max(w, font.MeasureString(face, ln).Ceil())
	}
	w += 2 * pad
	h := len(lines)*lineH + 2*pad
	cx, cy := pointIn(box, o.Position)
	x0, y0 := cx-w/2, cy-h/2

	border := toRGBA(black)
	ink := toRGBA(black)
	if o.Kind == domain.KindThought {
		border, ink = toRGBA(grey), toRGBA(grey)
	}
	fillRect(img, x0, y0, x0+w, y0+h, toRGBA(white))
	strokeRect(img, x0, y0, x0+w, y0+h, border, 2)
	for i, ln := range lines {
		drawText(img, face, ln, cx, y0+pad+i*lineH+lineH/2, ink)
	}
	if label != "" {
		lw := font.MeasureString(face, label).Ceil() + 8
		fillRect(img, x0-4, y0-tagH+4, x0-4+lw, y0+4, toRGBA(tagBlue))
		drawText(img, face, label, x0-4+lw/2, y0+4-tagH/2, toRGBA(white))
	}
}

func rasterSticker(img *image.RGBA, face font.Face, box image.Rectangle, o domain.Overlay, images map[string]decoded, k float64) {
	cx, cy := pointIn(box, o.Position)
	scale := domain.ClampScale(o.Scale)
	switch o.Kind {
	case domain.KindStickerImage:
		d, ok := images[imageName(o.Content)]
		if !ok || d.img.Bounds().Dx() == 0 {
			return
		}
		b := d.img.Bounds()
		w := int(stickerBase * scale * k)
		h := w * b.Dy() / b.Dx()
		draw.CatmullRom.Scale(img, image.Rect(cx-w/2, cy-h/2, cx+w/2, cy+h/2), d.img, b, draw.Over, nil)
	case domain.KindStickerEmoji:
		text := o.Content
		if name, ok := domain.GlyphName(o.Content); ok {
			text = name
		}
		w := font.MeasureString(face, text).Ceil() + 12
		h := face.Metrics().Height.Ceil()/2 + 4
		fillRect(img, cx-w/2, cy-h, cx+w/2, cy+h, toRGBA(white))
		strokeRect(img, cx-w/2, cy-h, cx+w/2, cy+h, toRGBA(black), 1)
		drawText(img, face, text, cx, cy, toRGBA(black))
	}
}

// drawText draws s centered on (cx, cy).
func drawText(img *image.RGBA, face font.Face, s string, cx, cy int, col color.RGBA) {
	w := font.MeasureString(face, s).Ceil()
	m := face.Metrics()
	base := cy + (m.Ascent.Ceil()-m.Descent.Ceil())/2
	d := font.Drawer{Dst: img, Src: image.NewUniform(col), Face: face, Dot: fixed.P(cx-w/2, base)}
	d.DrawString(s)
}

// wrapText breaks s into lines no wider than maxW pixels. A single word
// wider than maxW gets a line of its own.
func wrapText(face font.Face, s string, maxW int) []string {
	var lines []string
	for _, para := range strings.Split(s, "\n") {
		line := ""
		for _, word := range strings.Fields(para) {
			next := word
			if line != "" {
				next = line + " " + word
			}
			if line != "" && font.MeasureString(face, next).Ceil() > maxW {
				lines = append(lines, line)
				next = word
			}
			line = next
		}
		lines = append(lines, line)
	}
	return lines
}

// strokeRect draws an axis-aligned rectangle border of the given width,
// inclusive of endpoints.
func strokeRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA, width int) {
	for i := 0; i < width; i++ {
		for x := x0; x <= x1; x++ {
			img.SetRGBA(x, y0+i, col)
			img.SetRGBA(x, y1-i, col)
		}
		for y := y0; y <= y1; y++ {
			img.SetRGBA(x0+i, y, col)
			img.SetRGBA(x1-i, y, col)
		}
	}
}

func fillRect(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			img.SetRGBA(x, y, col)
		}
	}
}
