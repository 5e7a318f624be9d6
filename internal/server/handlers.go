/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"gocomicstudio/internal/config"
	"gocomicstudio/internal/domain"
	"gocomicstudio/internal/export"
	"gocomicstudio/internal/imports"
	"gocomicstudio/internal/overlay"
	"gocomicstudio/internal/session"
)

const maxBody = 1 << 20

func decode(r *http.Request, v any) error {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	_ = r.Body.Close()
	if err != nil {
		return fmt.Errorf("%w: read body: %v", errBadRequest, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func pathSeq(r *http.Request) (int, error) {
	seq, err := strconv.Atoi(r.PathValue("seq"))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid panel sequence %q", errBadRequest, r.PathValue("seq"))
	}
	return seq, nil
}

func (srv *Server) handleView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, srv.s.View())
}

func (srv *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"presets": domain.Presets(),
		"gadgets": domain.Gadgets(),
		"effects": domain.Effects(),
	})
}

func (srv *Server) handleCharacter(w http.ResponseWriter, r *http.Request) {
	var c domain.CharacterConfig
	if err := decode(r, &c); err != nil {
		srv.fail(w, r, err)
		return
	}
	if err := srv.s.SetCharacter(c); err != nil {
		srv.fail(w, r, err)
		return
	}
	srv.handleView(w, r)
}

func (srv *Server) handleStory(w http.ResponseWriter, r *http.Request) {
	var st domain.StorySettings
	if err := decode(r, &st); err != nil {
		srv.fail(w, r, err)
		return
	}
	if err := srv.s.SetStory(st); err != nil {
		srv.fail(w, r, err)
		return
	}
	srv.handleView(w, r)
}

func (srv *Server) handleAddSideCharacter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := decode(r, &req); err != nil {
		srv.fail(w, r, err)
		return
	}
	sc, err := srv.s.AddSideCharacter(strings.TrimSpace(req.Name), strings.TrimSpace(req.Description))
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sc)
}

func (srv *Server) handleRemoveSideCharacter(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"removed": srv.s.RemoveSideCharacter(r.PathValue("id"))})
}

// handleGenerateScript blocks until the script service answers. A failed
// generation is reported both as an error response and in the view.
func (srv *Server) handleGenerateScript(w http.ResponseWriter, r *http.Request) {
	if err := srv.s.GenerateScript(r.Context()); err != nil {
		srv.fail(w, r, err)
		return
	}
	srv.handleView(w, r)
}

func (srv *Server) handleDismissError(w http.ResponseWriter, r *http.Request) {
	srv.s.DismissError()
	srv.handleView(w, r)
}

func (srv *Server) handleCompose(w http.ResponseWriter, r *http.Request) {
	if err := srv.s.Compose(r.Context()); err != nil {
		srv.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, srv.s.View())
}

func (srv *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	if _, err := srv.s.Back(); err != nil {
		srv.fail(w, r, err)
		return
	}
	srv.handleView(w, r)
}

func (srv *Server) handlePages(w http.ResponseWriter, r *http.Request) {
	pages, err := srv.s.Pages()
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pages)
}

func (srv *Server) handleEditPanel(w http.ResponseWriter, r *http.Request) {
	seq, err := pathSeq(r)
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	var e session.PanelEdit
	if err := decode(r, &e); err != nil {
		srv.fail(w, r, err)
		return
	}
	p, err := srv.s.EditPanel(seq, e)
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (srv *Server) handleToggleCharacter(w http.ResponseWriter, r *http.Request) {
	seq, err := pathSeq(r)
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	present, err := srv.s.ToggleCharacter(seq, r.PathValue("id"))
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"present": present})
}

func (srv *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	seq, err := pathSeq(r)
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	if err := srv.s.RegeneratePanel(r.Context(), seq); err != nil {
		srv.fail(w, r, err)
		return
	}
	p, err := srv.s.Panel(seq)
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, p)
}

func (srv *Server) handleBubble(w http.ResponseWriter, r *http.Request) {
	seq, err := pathSeq(r)
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	kind, err := domain.ParseOverlayKind(r.PathValue("kind"))
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	var pos domain.Position
	if err := decode(r, &pos); err != nil {
		srv.fail(w, r, err)
		return
	}
	o, err := srv.s.SetBubblePosition(seq, kind, pos)
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type stickerRequest struct {
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

func (req stickerRequest) parse() (domain.OverlayKind, error) {
	kind, err := domain.ParseOverlayKind(req.Kind)
	if err != nil {
		return "", err
	}
	if kind == domain.KindStickerImage && !imports.IsDataURI(req.Content) {
		return "", fmt.Errorf("%w: image stickers take a data URI", imports.ErrNotDataURI)
	}
	if strings.TrimSpace(req.Content) == "" {
		return "", fmt.Errorf("%w: empty sticker content", errBadRequest)
	}
	return kind, nil
}

func (srv *Server) handleAddSticker(w http.ResponseWriter, r *http.Request) {
	seq, err := pathSeq(r)
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	var req stickerRequest
	if err := decode(r, &req); err != nil {
		srv.fail(w, r, err)
		return
	}
	kind, err := req.parse()
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	o, err := srv.s.AddSticker(seq, kind, req.Content)
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

type placedSticker struct {
	Panel   int            `json:"panel"`
	Sticker domain.Overlay `json:"sticker"`
}

func (srv *Server) handleAddStickerFirstReady(w http.ResponseWriter, r *http.Request) {
	var req stickerRequest
	if err := decode(r, &req); err != nil {
		srv.fail(w, r, err)
		return
	}
	kind, err := req.parse()
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	seq, o, err := srv.s.AddStickerToFirstReady(kind, req.Content)
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, placedSticker{Panel: seq, Sticker: o})
}

// handleUploadSticker imports a raw image body as an image sticker, on
// ?panel=<seq> or on the first panel with artwork.
func (srv *Server) handleUploadSticker(w http.ResponseWriter, r *http.Request) {
	uri, err := srv.importer.FromReader(http.MaxBytesReader(w, r.Body, imports.MaxInputBytes+1))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			err = imports.ErrTooLarge
		}
		srv.fail(w, r, err)
		return
	}
	if p := r.URL.Query().Get("panel"); p != "" {
		seq, err := strconv.Atoi(p)
		if err != nil {
			srv.fail(w, r, fmt.Errorf("%w: invalid panel %q", errBadRequest, p))
			return
		}
		o, err := srv.s.AddSticker(seq, domain.KindStickerImage, uri)
		if err != nil {
			srv.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, placedSticker{Panel: seq, Sticker: o})
		return
	}
	seq, o, err := srv.s.AddStickerToFirstReady(domain.KindStickerImage, uri)
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, placedSticker{Panel: seq, Sticker: o})
}

func (srv *Server) handleUpdateSticker(w http.ResponseWriter, r *http.Request) {
	seq, err := pathSeq(r)
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	var req struct {
		Position domain.Position `json:"position"`
		Scale    float64         `json:"scale"`
	}
	if err := decode(r, &req); err != nil {
		srv.fail(w, r, err)
		return
	}
	ok, err := srv.s.UpdateSticker(seq, r.PathValue("id"), req.Position, req.Scale)
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": ok})
}

func (srv *Server) handleRemoveSticker(w http.ResponseWriter, r *http.Request) {
	seq, err := pathSeq(r)
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	ok, err := srv.s.RemoveSticker(seq, r.PathValue("id"))
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": ok})
}

func (srv *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	srv.travel(w, r, srv.s.UndoOverlays)
}

func (srv *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	srv.travel(w, r, srv.s.RedoOverlays)
}

func (srv *Server) travel(w http.ResponseWriter, r *http.Request, fn func(int) (bool, error)) {
	seq, err := pathSeq(r)
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	ok, err := fn(seq)
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"applied": ok})
}

// PressRequest starts a drag on an overlay.
type PressRequest struct {
	overlay.PointerEvent
	Container domain.Size `json:"container"`
}

func (srv *Server) handlePress(w http.ResponseWriter, r *http.Request) {
	seq, err := pathSeq(r)
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	var req PressRequest
	if err := decode(r, &req); err != nil {
		srv.fail(w, r, err)
		return
	}
	started, err := srv.s.PressOverlay(seq, r.PathValue("id"), req.PointerEvent, req.Container)
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"dragging": started})
}

func (srv *Server) handlePointerMove(w http.ResponseWriter, r *http.Request) {
	var ev overlay.PointerEvent
	if err := decode(r, &ev); err != nil {
		srv.fail(w, r, err)
		return
	}
	srv.s.PointerMove(ev)
	w.WriteHeader(http.StatusNoContent)
}

func (srv *Server) handlePointerUp(w http.ResponseWriter, r *http.Request) {
	var ev overlay.PointerEvent
	if err := decode(r, &ev); err != nil {
		srv.fail(w, r, err)
		return
	}
	if err := srv.s.PointerUp(ev); err != nil {
		srv.fail(w, r, err)
		return
	}
	srv.handleView(w, r)
}

func (srv *Server) handlePointerCancel(w http.ResponseWriter, r *http.Request) {
	srv.s.AbandonDrags()
	w.WriteHeader(http.StatusNoContent)
}

func (srv *Server) handleWheel(w http.ResponseWriter, r *http.Request) {
	seq, err := pathSeq(r)
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	var req struct {
		DeltaY float64 `json:"deltaY"`
	}
	if err := decode(r, &req); err != nil {
		srv.fail(w, r, err)
		return
	}
	o, err := srv.s.WheelOverlay(seq, r.PathValue("id"), req.DeltaY)
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (srv *Server) handleDoubleClick(w http.ResponseWriter, r *http.Request) {
	seq, err := pathSeq(r)
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	removed, err := srv.s.DoubleClickOverlay(seq, r.PathValue("id"))
	if err != nil {
		srv.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (srv *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if err := srv.s.Save(r.Context()); err != nil {
		srv.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (srv *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if err := srv.s.Load(r.Context()); err != nil {
		srv.fail(w, r, err)
		return
	}
	srv.handleView(w, r)
}

func (srv *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := srv.s.Reset(r.Context()); err != nil {
		srv.fail(w, r, err)
		return
	}
	srv.handleView(w, r)
}

func (srv *Server) handleCredentialStatus(w http.ResponseWriter, r *http.Request) {
	_, err := srv.creds.Get()
	switch {
	case errors.Is(err, config.ErrNoCredential):
		writeJSON(w, http.StatusOK, map[string]bool{"configured": false})
	case err != nil:
		srv.fail(w, r, err)
	default:
		writeJSON(w, http.StatusOK, map[string]bool{"configured": true})
	}
}

func (srv *Server) handleSetCredential(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key string `json:"key"`
	}
	if err := decode(r, &req); err != nil {
		srv.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.Key) == "" {
		srv.fail(w, r, fmt.Errorf("%w: key must not be empty", errBadRequest))
		return
	}
	if err := srv.creds.Set(req.Key); err != nil {
		srv.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (srv *Server) handleClearCredential(w http.ResponseWriter, r *http.Request) {
	if err := srv.creds.Delete(); err != nil {
		srv.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Exports render into memory first so a failure still gets a JSON error.
func (srv *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opt := export.PDFOptions{PageSize: q.Get("pageSize"), Strict: q.Get("strict") == "true"}
	var buf bytes.Buffer
	if err := export.WritePDF(r.Context(), &buf, srv.s.Snapshot(), opt); err != nil {
		srv.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="comic.pdf"`)
	_, _ = w.Write(buf.Bytes())
}

func (srv *Server) handleExportCBZ(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dpi, _ := strconv.Atoi(q.Get("dpi"))
	opt := export.RasterOptions{PageSize: q.Get("pageSize"), DPI: dpi}
	var buf bytes.Buffer
	if err := export.WriteCBZ(r.Context(), &buf, srv.s.Snapshot(), opt); err != nil {
		srv.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.comicbook+zip")
	w.Header().Set("Content-Disposition", `attachment; filename="comic.cbz"`)
	_, _ = w.Write(buf.Bytes())
}
