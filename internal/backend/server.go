/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package backend holds both ends of the designer's remote store protocol:
// the Client used by the persistence controller and the Server that stores
// diagrams on disk or in Postgres and serves the static transform artifacts.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"sqldesigner/internal/domain"
	applog "sqldesigner/internal/log"
	"sqldesigner/internal/storage"
	"sqldesigner/internal/version"
	"sqldesigner/internal/xmldoc"
)

// DiagramStore persists diagrams by sanitised name.
type DiagramStore interface {
	Save(ctx context.Context, name string, content []byte) (bool, error)
	Load(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context) ([]string, error)
}

// Importer builds a diagram from a live database.
type Importer interface {
	Import(ctx context.Context, database string) ([]byte, error)
}

// ServerConfig wires the server's collaborators. Store is required.
type ServerConfig struct {
	Addr       string
	StaticDir  string
	AuthSecret string
	Store      DiagramStore
	Importer   Importer
	// Ready backs /readyz; nil means always ready.
	Ready func(ctx context.Context) error
}

type Server struct {
	cfg ServerConfig
	mux *http.ServeMux
}

const maxDiagramBytes = 32 << 20

func NewServer(cfg ServerConfig) *Server {
	s := &Server{cfg: cfg, mux: http.NewServeMux()}
	s.routes()
	return s
}

// Seed stores content under name the way a client save would, snapshotting any different
// content already there.
func (s *Server) Seed(ctx context.Context, name string, content []byte) error {
	xml, err := compactXML(content)
	if err != nil {
		return err
	}
	_, err = s.cfg.Store.Save(ctx, name, []byte(xml))
	return err
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := s.cfg.Ready(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("store not ready"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	s.mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(version.String()))
	})

	if s.cfg.AuthSecret != "" {
		s.mux.HandleFunc("/api/auth/token", tokenHandler(s.cfg.AuthSecret))
		s.mux.HandleFunc("/backend", withAuth(s.cfg.AuthSecret, func(w http.ResponseWriter, r *http.Request, _ string) {
			s.handleBackend(w, r)
		}))
	} else {
		s.mux.HandleFunc("/backend", s.handleBackend)
	}
	s.mux.Handle("/", http.FileServerFS(s.staticFS()))
}

// staticFS serves StaticDir with the embedded artifacts underneath it.
func (s *Server) staticFS() fs.FS {
	if s.cfg.StaticDir == "" {
		return xmldoc.Artifacts()
	}
	return overlayFS{os.DirFS(s.cfg.StaticDir), xmldoc.Artifacts()}
}

type overlayFS []fs.FS

func (o overlayFS) Open(name string) (fs.File, error) {
	var first error
	for _, f := range o {
		file, err := f.Open(name)
		if err == nil {
			return file, nil
		}
		if first == nil {
			first = err
		}
	}
	return nil, first
}

// badRequest marks failures caused by the request itself.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func (s *Server) handleBackend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	action := q.Get("action")
	l := applog.WithOperation(applog.WithComponent("server"), action).With(
		slog.String("req_id", uuid.NewString()),
	)
	var err error
	switch action {
	case "list":
		err = s.doList(w, r)
	case "save":
		err = s.doSave(w, r, l)
	case "load":
		err = s.doLoad(w, r)
	case "import":
		if s.cfg.Importer == nil {
			w.WriteHeader(http.StatusNotImplemented)
			return
		}
		err = s.doImport(w, r)
	default:
		w.WriteHeader(http.StatusNotImplemented)
		return
	}
	if err == nil {
		return
	}
	status := http.StatusInternalServerError
	var br badRequest
	switch {
	case errors.As(err, &br):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		l.Error("backend request failed", slog.Any("err", err))
	} else {
		l.Info("backend request rejected", slog.Int("status", status), slog.Any("err", err))
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(err.Error()))
}

func keyword(r *http.Request) (string, error) {
	raw, ok := r.URL.Query()["keyword"]
	if !ok {
		return "", badRequest{"query param 'keyword' is required"}
	}
	name := domain.SanitizeName(raw[0])
	if name == "" {
		return "", badRequest{fmt.Sprintf("invalid keyword %q", raw[0])}
	}
	return name, nil
}

func (s *Server) doList(w http.ResponseWriter, r *http.Request) error {
	names, err := s.cfg.Store.List(r.Context())
	if err != nil {
		return err
	}
	var b strings.Builder
	for _, n := range names {
		b.WriteString(n)
		b.WriteByte('\n')
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(b.String()))
	return nil
}

func (s *Server) doSave(w http.ResponseWriter, r *http.Request, l *slog.Logger) error {
	name, err := keyword(r)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxDiagramBytes))
	if err != nil {
		return err
	}
	xml, err := compactXML(body)
	if err != nil {
		return err
	}
	changed, err := s.cfg.Store.Save(r.Context(), name, []byte(xml))
	if err != nil {
		return err
	}
	l.Info("diagram stored", slog.String("name", name), slog.Bool("changed", changed))
	w.WriteHeader(http.StatusOK)
	return nil
}

func (s *Server) doLoad(w http.ResponseWriter, r *http.Request) error {
	name, err := keyword(r)
	if err != nil {
		return err
	}
	b, err := s.cfg.Store.Load(r.Context(), name)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
	return nil
}

func (s *Server) doImport(w http.ResponseWriter, r *http.Request) error {
	db := strings.TrimSpace(r.URL.Query().Get("database"))
	if db == "" {
		return badRequest{"query param 'database' is required"}
	}
	b, err := s.cfg.Importer.Import(r.Context(), db)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
	return nil
}

// compactXML checks that body is well-formed and drops line structure: every line is
// trimmed and empty lines vanish.
func compactXML(body []byte) (string, error) {
	if _, err := xmldoc.Parse(string(body)); err != nil {
		return "", err
	}
	var b strings.Builder
	for _, line := range strings.Split(string(body), "\n") {
		if t := strings.TrimSpace(line); t != "" {
			b.WriteString(t)
		}
	}
	return b.String(), nil
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	l := applog.WithComponent("server")
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	l.Info("listening", slog.String("addr", s.cfg.Addr), slog.Bool("auth", s.cfg.AuthSecret != ""))
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		l.Info("shutting down")
		return srv.Shutdown(sctx)
	}
}
