package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/0xmhha/quota-meter/pkg/activity"
	"github.com/0xmhha/quota-meter/pkg/credwatch"
	"github.com/0xmhha/quota-meter/pkg/logger"
	"github.com/0xmhha/quota-meter/pkg/metrics"
	"github.com/0xmhha/quota-meter/pkg/usage"
)

// Server is the HTTP API.
type Server struct {
	config   Config
	service  *usage.Service
	history  History
	activity activity.Scanner
	metrics  *metrics.Metrics
	logger   logger.Logger
	router   chi.Router

	credMu     sync.Mutex
	credValid  bool
	credExists bool
}

// Option configures a Server.
type Option func(*Server)

// WithHistory records each successful fetch and enables the history route.
func WithHistory(h History) Option {
	return func(s *Server) { s.history = h }
}

// WithActivity enables the local log activity route.
func WithActivity(sc activity.Scanner) Option {
	return func(s *Server) { s.activity = sc }
}

// WithMetrics serves m on /metrics and instruments every route.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates an HTTP API server.
func New(cfg Config, service *usage.Service, log logger.Logger, opts ...Option) *Server {
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.ReadHeaderTimeout == 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 90 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		config:  cfg,
		service: service,
		logger:  log.With("component", "server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogger(s.logger))
	if s.metrics != nil {
		r.Use(s.metrics.Middleware())
	}

	r.Route("/api/claude", func(r chi.Router) {
		r.Get("/usage", s.handleUsage)
		r.Post("/key", s.handleSaveKey)
		r.Get("/key/check", s.handleKeyCheck)
		if s.history != nil {
			r.Get("/history", s.handleHistory)
		}
		if s.activity != nil {
			r.Get("/activity", s.handleActivity)
		}
	})

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleUsage handles GET /api/claude/usage.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.FetchUsageData(r.Context())
	if err != nil {
		kind := usage.KindOf(err)
		if kind == usage.KindNoCredential || kind.RequiresReauth() {
			s.InvalidateCredential()
		}

		status := statusForKind(kind)
		if status == http.StatusInternalServerError {
			s.logger.Error("usage fetch failed", "kind", kind, "error", err)
		} else {
			s.logger.Warn("usage fetch rejected", "kind", kind)
		}
		writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
		return
	}

	if s.history != nil {
		if _, recErr := s.history.Record(snap); recErr != nil {
			s.logger.Warn("failed to record snapshot", "error", recErr)
		}
	}

	writeJSON(w, http.StatusOK, snap)
}

// handleSaveKey handles POST /api/claude/key.
func (s *Server) handleSaveKey(w http.ResponseWriter, r *http.Request) {
	var req keyRequest
	body := http.MaxBytesReader(w, r.Body, maxKeyBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Key) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: usage.ErrEmptyCredential.Error()})
		return
	}

	result := s.service.SaveCredential(req.Key)
	s.InvalidateCredential()
	if !result.Success {
		s.logger.Error("failed to save credential", "error", result.Error)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: result.Error})
		return
	}

	s.logger.Info("credential saved")
	writeJSON(w, http.StatusOK, result)
}

// handleKeyCheck handles GET /api/claude/key/check.
func (s *Server) handleKeyCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, keyCheckResponse{Exists: s.credentialExists()})
}

// handleActivity handles GET /api/claude/activity?since=session|week|<duration>.
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	window, err := activity.ParseWindow(r.URL.Query().Get("since"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	sum, err := s.activity.Scan(r.Context(), time.Now().Add(-window))
	if err != nil {
		s.logger.Error("activity scan failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleHistory handles GET /api/claude/history?limit=N.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Error: fmt.Sprintf("limit must be between 1 and %d", maxHistoryLimit),
			})
			return
		}
		limit = n
	}

	entries, err := s.history.List(limit)
	if err != nil {
		s.logger.Error("failed to list history", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// InvalidateCredential drops the cached "credential exists" answer.
func (s *Server) InvalidateCredential() {
	s.credMu.Lock()
	s.credValid = false
	s.credMu.Unlock()
}

func (s *Server) credentialExists() bool {
	s.credMu.Lock()
	defer s.credMu.Unlock()
	if !s.credValid {
		s.credExists = s.service.CheckCredential()
		s.credValid = true
	}
	return s.credExists
}

// WatchCredential invalidates the cache on every event until ctx is
// done or events is closed.
func (s *Server) WatchCredential(ctx context.Context, events <-chan credwatch.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.logger.Debug("credential file changed", "op", ev.Op)
			s.InvalidateCredential()
		}
	}
}

// ListenAndServe serves until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.config.ReadHeaderTimeout,
		WriteTimeout:      s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("error during shutdown", "error", err)
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// statusForKind maps credential problems to 401 and everything else to 500.
func statusForKind(kind usage.Kind) int {
	switch kind {
	case usage.KindNoCredential, usage.KindInvalidCredentialFormat, usage.KindAuthenticationFailed:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
