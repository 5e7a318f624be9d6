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
	"fmt"
	"hash/fnv"
	"image"
	"image/png"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"gocomicstudio/internal/domain"
	"gocomicstudio/internal/imports"
	applog "gocomicstudio/internal/log"
)

// decoded is one artwork or sticker image ready for layout.
type decoded struct {
	img image.Image
	png []byte
}

// PageSize returns the page dimensions in points. Unknown names give A4.
func PageSize(name string) (w, h float64) {
	if strings.EqualFold(name, "letter") {
		return 612, 792
	}
	return 595.28, 841.89
}

// decodeImages decodes every distinct artwork and sticker image in
// parallel, keyed by imageName. In strict mode the first undecodable
// image aborts; otherwise it is logged and left out.
func decodeImages(ctx context.Context, script domain.Script, workers int, strict bool) (map[string]decoded, error) {
	uris := map[string]string{}
	for _, p := range script.Panels {
		if p.Artwork.Image != "" {
			uris[imageName(p.Artwork.Image)] = p.Artwork.Image
		}
		for _, st := range p.Stickers {
			if st.Kind == domain.KindStickerImage && st.Content != "" {
				uris[imageName(st.Content)] = st.Content
			}
		}
	}
	if workers <= 0 {
		workers = 4
	}
	var mu sync.Mutex
	out := make(map[string]decoded, len(uris))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for name, uri := range uris {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := imports.DecodeDataURI(uri)
			if err == nil {
				var buf bytes.Buffer
				if err = png.Encode(&buf, img); err == nil {
					mu.Lock()
					out[name] = decoded{img: img, png: buf.Bytes()}
					mu.Unlock()
					return nil
				}
			}
			if strict {
				return fmt.Errorf("image %s: %w", name, err)
			}
			applog.WithComponent("export").Warn("skipping undecodable image", slog.String("image", name), slog.Any("err", err))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// imageName is a short stable name for an image reference.
func imageName(uri string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(uri))
	return fmt.Sprintf("img%016x", h.Sum64())
}
