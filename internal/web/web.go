package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"dayplan/internal/config"
	appLog "dayplan/internal/log"
	"dayplan/internal/model"
)

// Snapshot is the output of one planning run.
type Snapshot struct {
	Document model.Document
	HTML     []byte
	PDF      []byte
	PNG      []byte
}

// Store holds the latest snapshot. The zero value is empty and ready.
type Store struct {
	mu   sync.RWMutex
	snap *Snapshot
}

// Set replaces the current snapshot.
func (s *Store) Set(snap *Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

// Latest returns the current snapshot, or false before the first run.
func (s *Store) Latest() (*Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, s.snap != nil
}

// RefreshFunc runs one planning cycle on demand.
type RefreshFunc func(ctx context.Context) error

// Server serves previews of the latest planning document.
type Server struct {
	listen  string
	auth    *config.BasicAuthConfig
	store   *Store
	refresh RefreshFunc
	router  chi.Router
}

// NewServer constructs a new Server. refresh may be nil, in which case
// POST /api/refresh is not mounted.
func NewServer(listen string, auth *config.BasicAuthConfig, store *Store, refresh RefreshFunc) *Server {
	s := &Server{
		listen:  listen,
		auth:    auth,
		store:   store,
		refresh: refresh,
	}
	s.registerRoutes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	// /health is always unauthenticated.
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.basicAuthEnabled() {
			r.Use(basicAuth(s.auth.Username, s.auth.Password))
		}
		r.Get("/api/document", s.handleDocument)
		r.Get("/preview", s.handlePreviewHTML)
		r.Get("/document.pdf", s.handlePDF)
		r.Get("/preview.png", s.handlePNG)
		if s.refresh != nil {
			r.Post("/api/refresh", s.handleRefresh)
		}
	})

	s.router = r
}

// Run serves on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.listen, "basic_auth", s.basicAuthEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP server shutdown error", err)
		return err
	}
	return <-errCh
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.auth == nil {
		return false
	}
	// Empty credentials disable auth rather than lock everyone out.
	return s.auth.Username != "" && s.auth.Password != ""
}

func basicAuth(username, password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, p, ok := r.BasicAuth()
			if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
				w.Header().Set("WWW-Authenticate", `Basic realm="dayplan", charset="UTF-8"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleDocument(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.latest(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap.Document)
}

func (s *Server) handlePreviewHTML(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.latest(w)
	if !ok {
		return
	}
	writeBytes(w, "text/html; charset=utf-8", snap.HTML)
}

func (s *Server) handlePDF(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.latest(w)
	if !ok {
		return
	}
	if len(snap.PDF) == 0 {
		writeError(w, http.StatusNotFound, "pdf not available")
		return
	}
	w.Header().Set("Content-Disposition", `inline; filename="`+snap.Document.Name+`.pdf"`)
	writeBytes(w, "application/pdf", snap.PDF)
}

func (s *Server) handlePNG(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.latest(w)
	if !ok {
		return
	}
	if len(snap.PNG) == 0 {
		writeError(w, http.StatusNotFound, "preview not available")
		return
	}
	writeBytes(w, "image/png", snap.PNG)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.refresh(r.Context()); err != nil {
		appLog.Error("refresh failed", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) latest(w http.ResponseWriter) (*Snapshot, bool) {
	snap, ok := s.store.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no document rendered yet")
		return nil, false
	}
	return snap, true
}

func writeBytes(w http.ResponseWriter, contentType string, b []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
