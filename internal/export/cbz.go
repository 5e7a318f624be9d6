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
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gocomicstudio/internal/storage"
)

// ExportCBZ writes the CBZ archive to outPath, adding the .cbz extension
// when missing.
func ExportCBZ(ctx context.Context, outPath string, snap storage.Snapshot, opt RasterOptions) error {
	if !strings.HasSuffix(strings.ToLower(outPath), ".cbz") {
		outPath += ".cbz"
	}
	f, err := createFile(outPath)
	if err != nil {
		return err
	}
	if err := WriteCBZ(ctx, f, snap, opt); err != nil {
		_ = f.Close()
		_ = os.Remove(outPath)
		return err
	}
	return f.Close()
}

// WriteCBZ packages the rendered pages as PNG images into a CBZ (ZIP)
// archive and adds a ComicInfo.xml metadata manifest for reader
// compatibility.
func WriteCBZ(ctx context.Context, w io.Writer, snap storage.Snapshot, opt RasterOptions) error {
	imgs, err := RenderPages(ctx, snap, opt)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(w)
	pad := len(fmt.Sprint(len(imgs)))
	buf := &bytes.Buffer{}
	for i, img := range imgs {
		buf.Reset()
		if err := png.Encode(buf, img); err != nil {
			return fmt.Errorf("encode png: %w", err)
		}
		if err := addZipFile(zw, fmt.Sprintf("%0*d.png", pad, i+1), buf.Bytes()); err != nil {
			return fmt.Errorf("zip add image: %w", err)
		}
	}
	manifest, err := buildComicInfoXML(snap, len(imgs))
	if err != nil {
		return fmt.Errorf("build manifest: %w", err)
	}
	if err := addZipFile(zw, "ComicInfo.xml", manifest); err != nil {
		return fmt.Errorf("zip add manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

func createFile(outPath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", filepath.Ext(outPath), err)
	}
	return f, nil
}

func addZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

type comicInfo struct {
	XMLName    xml.Name `xml:"ComicInfo"`
	Series     string   `xml:"Series"`
	Title      string   `xml:"Title"`
	Number     int      `xml:"Number"`
	PageCount  int      `xml:"PageCount"`
	Writer     string   `xml:"Writer,omitempty"`
	Summary    string   `xml:"Summary,omitempty"`
	Characters string   `xml:"Characters,omitempty"`
	Manga      string   `xml:"Manga"`
}

func buildComicInfoXML(snap storage.Snapshot, pageCount int) ([]byte, error) {
	names := []string{snap.Character.Name}
	for _, sc := range snap.SideCharacters {
		names = append(names, sc.Name)
	}
	info := comicInfo{
		Series:     "Go Comic Studio",
		Title:      shorten(snap.Story.Topic, titleMaxLen),
		Number:     1,
		PageCount:  pageCount,
		Writer:     "Go Comic Studio",
		Summary:    snap.Story.Topic,
		Characters: strings.Join(names, ", "),
		Manga:      "No",
	}
	out, err := xml.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}
