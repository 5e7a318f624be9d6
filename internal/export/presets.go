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
	"path/filepath"
	"strings"

	"gocomicstudio/internal/storage"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// BatchOptions controls a multi-format export of one snapshot.
//
// Outputs land in OutDir as <stem>.pdf, <stem>.cbz and png/page-<n>.png.
type BatchOptions struct {
	Preset  PresetName
	Formats []string // allowed: pdf, png, cbz; empty means preset defaults
	OutDir  string
	Stem    string // defaults to "comic"
	PDF     PDFOptions
	Raster  RasterOptions
}

// BatchExport runs exports according to the given preset and returns the
// written paths.
func BatchExport(ctx context.Context, snap storage.Snapshot, opt BatchOptions) ([]string, error) {
	if snap.Script.Empty() {
		return nil, ErrEmptyScript
	}
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	stem := opt.Stem
	if stem == "" {
		stem = "comic"
	}
	raster := opt.Raster
	if raster.DPI == 0 {
		raster.DPI = presetDPI(opt.Preset)
	}
	if raster.PageSize == "" {
		raster.PageSize = opt.PDF.PageSize
	}

	var written []string
	for _, f := range formats {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "pdf":
			out := filepath.Join(opt.OutDir, stem+".pdf")
			if err := ExportPDF(ctx, out, snap, opt.PDF); err != nil {
				return written, fmt.Errorf("pdf: %w", err)
			}
			written = append(written, out)
		case "cbz":
			out := filepath.Join(opt.OutDir, stem+".cbz")
			if err := ExportCBZ(ctx, out, snap, raster); err != nil {
				return written, fmt.Errorf("cbz: %w", err)
			}
			written = append(written, out)
		case "png":
			paths, err := ExportPNGPages(ctx, filepath.Join(opt.OutDir, "png"), snap, raster)
			if err != nil {
				return written, fmt.Errorf("png: %w", err)
			}
			written = append(written, paths...)
		default:
			return written, fmt.Errorf("unknown format: %s", f)
		}
	}
	return written, nil
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{"png", "cbz"}
	case PresetPrint:
		return []string{"pdf"}
	default:
		return []string{"pdf"}
	}
}

func presetDPI(p PresetName) int {
	if p == PresetPrint {
		return 300
	}
	return 150
}
