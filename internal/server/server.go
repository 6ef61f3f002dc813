// Package server is the interactive display surface: a single page that talks
// to the InteractiveRunner over a websocket.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"browser-pilot/internal/agent"
	"browser-pilot/internal/entity"
)

//go:embed static
var staticFS embed.FS

// Runner is the part of agent.InteractiveRunner the surface drives.
type Runner interface {
	SubmitURL(ctx context.Context, url string) (agent.Snapshot, error)
	SubmitInstruction(ctx context.Context, instruction, url string, display agent.Display) (agent.Outcome, error)
	ExecuteCode(ctx context.Context, instruction, code string, display agent.Display) (agent.Outcome, error)
	Session() entity.SessionState
}

// Options configure the surface.
type Options struct {
	BaseURL  string
	Examples []string
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

type Server struct {
	runner Runner
	opts   Options
	logger *zap.Logger
}

func New(runner Runner, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{runner: runner, opts: opts, logger: logger}
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("server: embedded static dir missing: " + err.Error())
	}
	r.Handle("/", http.FileServer(http.FS(static)))

	r.Route("/api", func(r chi.Router) {
		r.Get("/config", s.handleConfig)
		r.Get("/session", s.handleSession)
		r.Post("/url", s.handleURL)
	})

	r.Get("/ws", s.handleWebSocket)

	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics)
	}
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // websocket connections stay open while code streams
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

type configResponse struct {
	BaseURL  string   `json:"base_url"`
	Examples []string `json:"examples"`
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	examples := s.opts.Examples
	if examples == nil {
		examples = []string{}
	}
	writeJSON(w, http.StatusOK, configResponse{BaseURL: s.opts.BaseURL, Examples: examples})
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	st := s.runner.Session()
	writeJSON(w, http.StatusOK, map[string]string{
		"base_url":  st.BaseURL,
		"full_code": st.FullCode,
	})
}

func (s *Server) handleURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "url is required"})
		return
	}

	snap, err := s.runner.SubmitURL(r.Context(), req.URL)
	if err != nil {
		writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func statusFor(err error) int {
	if errors.Is(err, agent.ErrBusy) {
		return http.StatusConflict
	}
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
