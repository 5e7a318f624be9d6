/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders the composed comic into print formats.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"gocomicstudio/internal/domain"
	applog "gocomicstudio/internal/log"
	"gocomicstudio/internal/storage"
)

var ErrEmptyScript = errors.New("nothing to export: script is empty")

// PDFOptions controls PDF export behavior.
// Units are points (pt). Page origin is top-left.
type PDFOptions struct {
	PageSize string // "A4" (default) or "Letter"
	Title    string // defaults to the story topic
	// UnicodeFont is an optional TTF used for all text. Without it the
	// built-in Helvetica is used and text is mapped to cp1252.
	UnicodeFont string
	// Strict fails the export on an undecodable image instead of drawing
	// a placeholder.
	Strict  bool
	Workers int
}

const (
	margin      = 36.0
	footerH     = 24.0
	panelGap    = 18.0
	stickerBase = 72.0 // sticker width at scale 1
	titleMaxLen = 40
)

type rgb struct{ r, g, b int }

var (
	black     = rgb{0, 0, 0}
	white     = rgb{255, 255, 255}
	grey      = rgb{120, 120, 120}
	lightGrey = rgb{225, 225, 225}
	tagBlue   = rgb{0, 150, 231}
)

// Rect is a box in page coordinates.
type Rect struct{ X, Y, W, H float64 }

// ExportPDF writes the snapshot to path, creating parent directories.
func ExportPDF(ctx context.Context, path string, snap storage.Snapshot, opt PDFOptions) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	if err := WritePDF(ctx, f, snap, opt); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

// WritePDF renders a title page followed by one page per chunk of
// panelsPerPage panels. Hidden bubbles (empty text) are skipped.
func WritePDF(ctx context.Context, w io.Writer, snap storage.Snapshot, opt PDFOptions) error {
	l := applog.WithOperation(applog.WithComponent("export"), "pdf")
	if snap.Script.Empty() {
		return ErrEmptyScript
	}
	pages, err := snap.Script.Pages(snap.Story.PanelsPerPage)
	if err != nil {
		return err
	}
	images, err := decodeImages(ctx, snap.Script, opt.Workers, opt.Strict)
	if err != nil {
		return err
	}

	pw, ph := PageSize(opt.PageSize)
	size := gofpdf.SizeType{Wd: pw, Ht: ph}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "pt", Size: size})
	pdf.SetAutoPageBreak(false, 0)
	title := opt.Title
	if title == "" {
		title = shorten(snap.Story.Topic, titleMaxLen)
	}
	pdf.SetTitle(title, true)
	pdf.SetAuthor("Go Comic Studio", false)

	r := &renderer{pdf: pdf, images: images, bg: parseHex(snap.Story.BackgroundColor), family: "Helvetica"}
	r.tr = pdf.UnicodeTranslatorFromDescriptor("")
	if opt.UnicodeFont != "" {
		pdf.AddUTF8Font("comic", "", opt.UnicodeFont)
		pdf.AddUTF8Font("comic", "B", opt.UnicodeFont)
		pdf.AddUTF8Font("comic", "I", opt.UnicodeFont)
		r.family = "comic"
		r.tr = func(s string) string { return s }
	}
	for name, d := range images {
		pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(d.png))
	}

	r.titlePage(size, title)
	for i, page := range pages {
		r.page(size, page, snap.Story.PanelsPerPage, i+1, len(pages))
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	l.Info("pdf exported", slog.Int("pages", len(pages)+1), slog.Int("images", len(images)))
	return nil
}

type renderer struct {
	pdf    *gofpdf.Fpdf
	images map[string]decoded
	bg     rgb
	family string
	tr     func(string) string
}

func (r *renderer) fill(c rgb)  { r.pdf.SetFillColor(c.r, c.g, c.b) }
func (r *renderer) draw(c rgb)  { r.pdf.SetDrawColor(c.r, c.g, c.b) }
func (r *renderer) color(c rgb) { r.pdf.SetTextColor(c.r, c.g, c.b) }

func (r *renderer) background(size gofpdf.SizeType) {
	r.fill(r.bg)
	r.pdf.Rect(0, 0, size.Wd, size.Ht, "F")
}

func (r *renderer) titlePage(size gofpdf.SizeType, title string) {
	r.pdf.AddPage()
	r.background(size)
	r.pdf.SetFont(r.family, "B", 36)
	r.color(tagBlue)
	r.pdf.SetXY(margin, size.Ht/3)
	r.pdf.MultiCell(size.Wd-2*margin, 44, r.tr(strings.ToUpper(title)), "", "C", false)
}

func (r *renderer) page(size gofpdf.SizeType, panels []domain.Panel, perPage, no, total int) {
	r.pdf.AddPage()
	r.background(size)
	for i, box := range PanelRects(size.Wd, size.Ht, perPage)[:len(panels)] {
		r.panel(box, panels[i])
	}
	r.draw(lightGrey)
	r.pdf.SetLineWidth(0.5)
	r.pdf.Line(margin, size.Ht-margin-footerH+6, size.Wd-margin, size.Ht-margin-footerH+6)
	r.pdf.SetFont("Courier", "", 8)
	r.color(grey)
	r.pdf.SetXY(margin, size.Ht-margin-footerH+8)
	r.pdf.CellFormat(size.Wd-2*margin, footerH-8, fmt.Sprintf("Page %d / %d - Go Comic Studio", no, total), "", 0, "C", false, 0, "")
}

// PanelRects lays out n stacked 4:3 panel boxes centered on the page.
func PanelRects(pageW, pageH float64, n int) []Rect {
	if n <= 0 {
		return nil
	}
	availW := pageW - 2*margin
	availH := pageH - 2*margin - footerH
	slotH := (availH - panelGap*float64(n-1)) / float64(n)
	w := min(availW, slotH*4/3)
	h := w * 3 / 4
	out := make([]Rect, n)
	for i := range out {
		out[i] = Rect{X: (pageW - w) / 2, Y: margin + float64(i)*(slotH+panelGap) + (slotH-h)/2, W: w, H: h}
	}
	return out
}

// at maps a percentage position inside box to page coordinates.
func at(box Rect, pos domain.Position) (float64, float64) {
	return box.X + pos.X/100*box.W, box.Y + pos.Y/100*box.H
}

func (r *renderer) panel(box Rect, p domain.Panel) {
	pdf := r.pdf
	name := imageName(p.Artwork.Image)
	if _, ok := r.images[name]; ok && p.Artwork.Image != "" {
		pdf.ImageOptions(name, box.X, box.Y, box.W, box.H, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	} else {
		r.fill(lightGrey)
		pdf.Rect(box.X, box.Y, box.W, box.H, "F")
		pdf.SetFont(r.family, "I", 12)
		r.color(grey)
		pdf.SetXY(box.X, box.Y+box.H/2-6)
		pdf.CellFormat(box.W, 12, fmt.Sprintf("Panel %d", p.Sequence), "", 0, "C", false, 0, "")
	}
	r.draw(black)
	pdf.SetLineWidth(2)
	pdf.Rect(box.X, box.Y, box.W, box.H, "D")

	if p.SpeechVisible() {
		r.bubble(box, *p.SpeechBubble, p.DialogueText, p.DialogueCharacter)
	}
	if p.ThoughtVisible() {
		r.bubble(box, *p.ThoughtBubble, p.ThoughtText, "")
	}
	for _, st := range p.Stickers {
		r.sticker(box, st)
	}
}

func (r *renderer) bubble(box Rect, o domain.Overlay, text, label string) {
	pdf := r.pdf
	thought := o.Kind == domain.KindThought
	style := "B"
	if thought {
		style = "I"
	}
	const fontSize, lineH, pad = 11.0, 13.0, 8.0
	pdf.SetFont(r.family, style, fontSize)
	maxW := box.W * 0.6
	text = r.tr(text)
	lines := pdf.SplitLines([]byte(text), maxW-2*pad)
	textW := 0.0
	for _, ln := range lines {
		textW = max(textW, pdf.GetStringWidth(string(ln)))
	}
	bw := max(textW+2*pad, 60)
	bh := float64(len(lines))*lineH + 2*pad
	cx, cy := at(box, o.Position)
	x, y := cx-bw/2, cy-bh/2

	r.fill(white)
	pdf.SetLineWidth(2)
	if thought {
		r.draw(grey)
		pdf.SetDashPattern([]float64{4, 3}, 0)
		pdf.Ellipse(cx, cy, bw/2+pad, bh/2+pad/2, 0, "FD")
		pdf.SetDashPattern([]float64{}, 0)
	} else {
		r.draw(black)
		pdf.Rect(x, y, bw, bh, "FD")
	}
	r.color(black)
	if thought {
		r.color(grey)
	}
	pdf.SetXY(x+pad, y+pad)
	pdf.MultiCell(bw-2*pad, lineH, text, "", "C", false)

	if label != "" {
		pdf.SetFont(r.family, "B", 8)
		label = r.tr(label)
		lw := pdf.GetStringWidth(label) + 8
		r.fill(tagBlue)
		r.draw(black)
		pdf.SetLineWidth(1)
		pdf.Rect(x-4, y-8, lw, 12, "FD")
		r.color(white)
		pdf.SetXY(x-4, y-8)
		pdf.CellFormat(lw, 12, label, "", 0, "C", false, 0, "")
	}
}

func (r *renderer) sticker(box Rect, o domain.Overlay) {
	pdf := r.pdf
	cx, cy := at(box, o.Position)
	scale := domain.ClampScale(o.Scale)
	switch o.Kind {
	case domain.KindStickerImage:
		name := imageName(o.Content)
		d, ok := r.images[name]
		if !ok {
			return
		}
		b := d.img.Bounds()
		if b.Dx() == 0 {
			return
		}
		w := stickerBase * scale
		h := w * float64(b.Dy()) / float64(b.Dx())
		pdf.ImageOptions(name, cx-w/2, cy-h/2, w, h, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	case domain.KindStickerEmoji:
		text := o.Content
		if name, ok := domain.GlyphName(o.Content); ok && r.family == "Helvetica" {
			text = name
		}
		text = r.tr(text)
		size := 14 * scale
		pdf.SetFont(r.family, "B", size)
		tw := pdf.GetStringWidth(text) + size
		th := size * 1.6
		r.fill(white)
		r.draw(black)
		pdf.SetLineWidth(1)
		pdf.Ellipse(cx, cy, tw/2, th/2, 0, "FD")
		r.color(black)
		pdf.SetXY(cx-tw/2, cy-th/2)
		pdf.CellFormat(tw, th, text, "", 0, "C", false, 0, "")
	}
}

func shorten(s string, n int) string {
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n]) + "..."
}

// parseHex reads #rrggbb; anything else yields white.
func parseHex(c string) rgb {
	if !domain.ValidColor(c) {
		return white
	}
	var v rgb
	if _, err := fmt.Sscanf(c, "#%02x%02x%02x", &v.r, &v.g, &v.b); err != nil {
		return white
	}
	return v
}
