/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package server exposes the editing session over a JSON HTTP API with a
// server-sent event stream of session notifications.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"gocomicstudio/internal/config"
	"gocomicstudio/internal/domain"
	"gocomicstudio/internal/export"
	"gocomicstudio/internal/imports"
	applog "gocomicstudio/internal/log"
	"gocomicstudio/internal/notify"
	"gocomicstudio/internal/session"
	"gocomicstudio/internal/storage"
	"gocomicstudio/internal/version"
)

// Options wires the server to its collaborators. Session, Credentials and
// Bus are required.
type Options struct {
	Session     *session.Session
	Credentials config.CredentialStore
	Bus         *notify.Bus
	Store       storage.KV // optional; used by /readyz
	Importer    *imports.Importer
	Logger      *slog.Logger
	// KeepAlive is the SSE comment interval; default 15s.
	KeepAlive time.Duration
}

// Server serves one editing session.
type Server struct {
	s         *session.Session
	creds     config.CredentialStore
	bus       *notify.Bus
	store     storage.KV
	importer  *imports.Importer
	log       *slog.Logger
	keepAlive time.Duration
	mux       *http.ServeMux
}

// New builds the server and its routes.
func New(opt Options) (*Server, error) {
	if opt.Session == nil || opt.Credentials == nil || opt.Bus == nil {
		return nil, errors.New("session, credentials and bus are required")
	}
	srv := &Server{
		s:         opt.Session,
		creds:     opt.Credentials,
		bus:       opt.Bus,
		store:     opt.Store,
		importer:  opt.Importer,
		log:       opt.Logger,
		keepAlive: opt.KeepAlive,
		mux:       http.NewServeMux(),
	}
	if srv.importer == nil {
		srv.importer = imports.New(0)
	}
	if srv.log == nil {
		srv.log = applog.WithComponent("server")
	}
	if srv.keepAlive <= 0 {
		srv.keepAlive = 15 * time.Second
	}
	srv.routes()
	return srv, nil
}

// Handler returns the root handler with request logging.
func (srv *Server) Handler() http.Handler { return srv.logRequests(srv.mux) }

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (srv *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return srv.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (srv *Server) Serve(ctx context.Context, ln net.Listener) error {
	hs := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return applog.WithSession(ctx, srv.s.ID()) },
	}
	errCh := make(chan error, 1)
	go func() { errCh <- hs.Serve(ln) }()
	srv.log.Info("listening", slog.String("addr", ln.Addr().String()), slog.String("version", version.String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (srv *Server) routes() {
	m := srv.mux
	m.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	m.HandleFunc("GET /readyz", srv.handleReady)
	m.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(version.String()))
	})

	m.HandleFunc("GET /api/session", srv.handleView)
	m.HandleFunc("GET /api/catalog", srv.handleCatalog)
	m.HandleFunc("GET /api/events", srv.handleEvents)
	m.HandleFunc("PUT /api/character", srv.handleCharacter)
	m.HandleFunc("PUT /api/story", srv.handleStory)
	m.HandleFunc("POST /api/side-characters", srv.handleAddSideCharacter)
	m.HandleFunc("DELETE /api/side-characters/{id}", srv.handleRemoveSideCharacter)

	m.HandleFunc("POST /api/script", srv.handleGenerateScript)
	m.HandleFunc("POST /api/error/dismiss", srv.handleDismissError)
	m.HandleFunc("POST /api/compose", srv.handleCompose)
	m.HandleFunc("POST /api/back", srv.handleBack)
	m.HandleFunc("GET /api/pages", srv.handlePages)

	m.HandleFunc("PATCH /api/panels/{seq}", srv.handleEditPanel)
	m.HandleFunc("POST /api/panels/{seq}/characters/{id}/toggle", srv.handleToggleCharacter)
	m.HandleFunc("POST /api/panels/{seq}/regenerate", srv.handleRegenerate)
	m.HandleFunc("PUT /api/panels/{seq}/bubbles/{kind}", srv.handleBubble)
	m.HandleFunc("POST /api/panels/{seq}/stickers", srv.handleAddSticker)
	m.HandleFunc("PUT /api/panels/{seq}/stickers/{id}", srv.handleUpdateSticker)
	m.HandleFunc("DELETE /api/panels/{seq}/stickers/{id}", srv.handleRemoveSticker)
	m.HandleFunc("POST /api/stickers", srv.handleAddStickerFirstReady)
	m.HandleFunc("POST /api/stickers/upload", srv.handleUploadSticker)
	m.HandleFunc("POST /api/panels/{seq}/undo", srv.handleUndo)
	m.HandleFunc("POST /api/panels/{seq}/redo", srv.handleRedo)

	m.HandleFunc("POST /api/panels/{seq}/overlays/{id}/press", srv.handlePress)
	m.HandleFunc("POST /api/panels/{seq}/overlays/{id}/wheel", srv.handleWheel)
	m.HandleFunc("POST /api/panels/{seq}/overlays/{id}/dblclick", srv.handleDoubleClick)
	m.HandleFunc("POST /api/pointer/move", srv.handlePointerMove)
	m.HandleFunc("POST /api/pointer/up", srv.handlePointerUp)
	m.HandleFunc("POST /api/pointer/cancel", srv.handlePointerCancel)

	m.HandleFunc("POST /api/save", srv.handleSave)
	m.HandleFunc("POST /api/load", srv.handleLoad)
	m.HandleFunc("POST /api/reset", srv.handleReset)

	m.HandleFunc("GET /api/credential", srv.handleCredentialStatus)
	m.HandleFunc("PUT /api/credential", srv.handleSetCredential)
	m.HandleFunc("DELETE /api/credential", srv.handleClearCredential)

	m.HandleFunc("GET /api/export.pdf", srv.handleExportPDF)
	m.HandleFunc("GET /api/export.cbz", srv.handleExportCBZ)
}

func (srv *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if srv.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if _, err := srv.store.Get(ctx, storage.SessionKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("store not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// statusFor maps domain and session errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrWrongStep), errors.Is(err, session.ErrBusy), errors.Is(err, session.ErrNoScript),
		errors.Is(err, session.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, config.ErrNoCredential):
		return http.StatusPreconditionFailed
	case errors.Is(err, domain.ErrUnknownPanel), errors.Is(err, session.ErrUnknownOverlay),
		errors.Is(err, session.ErrUnknownCharacter), errors.Is(err, storage.ErrNotFound),
		errors.Is(err, session.ErrNoArtwork):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrInvalidSnapshot):
		return http.StatusUnprocessableEntity
	case errors.Is(err, imports.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, imports.ErrUnsupported):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrInvalidLength), errors.Is(err, domain.ErrPanelsPerPage),
		errors.Is(err, domain.ErrInvalidColor), errors.Is(err, domain.ErrEmptyName),
		errors.Is(err, domain.ErrUnknownKind), errors.Is(err, domain.ErrNotBubble),
		errors.Is(err, domain.ErrNotSticker), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, export.ErrEmptyScript):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func (srv *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		srv.log.Error("request failed", slog.String("method", r.Method), slog.String("path", r.URL.Path), slog.Any("err", err))
	}
	writeError(w, status, err)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE working through the recorder.
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (srv *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		srv.log.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("dur", time.Since(start)))
	})
}
