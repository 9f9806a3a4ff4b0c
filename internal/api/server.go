package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/pyq-crawler/internal/cleanup"
	"github.com/JakeFAU/pyq-crawler/internal/dedup"
	"github.com/JakeFAU/pyq-crawler/internal/logging"
	"github.com/JakeFAU/pyq-crawler/internal/metrics"
	"github.com/JakeFAU/pyq-crawler/internal/runs"
)

// DefaultJobTimeout bounds a single admin job request.
const DefaultJobTimeout = 15 * time.Minute

// DedupRunner runs the dedup job.
type DedupRunner interface {
	Run(ctx context.Context, opts dedup.Options) (dedup.Stats, error)
}

// CleanupRunner runs the cleanup job.
type CleanupRunner interface {
	Run(ctx context.Context, opts cleanup.Options) (cleanup.Stats, error)
}

// Config controls the admin surface.
type Config struct {
	AdminKey    string
	JobTimeout  time.Duration
	Cleanup     cleanup.Options
	DedupPrefix int
}

// Deps are the collaborators behind the routes. Ready may be nil.
type Deps struct {
	Dedup    DedupRunner
	Cleanup  CleanupRunner
	Recorder *runs.Recorder
	Ready    func(ctx context.Context) error
}

// Server wires HTTP handlers to the batch jobs.
type Server struct {
	router chi.Router
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, cfg Config, logger *zap.Logger) *Server {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultJobTimeout
	}
	if cfg.Cleanup.BatchSize <= 0 {
		cfg.Cleanup = cleanup.DefaultOptions()
	}
	if deps.Recorder == nil {
		deps.Recorder = runs.NewRecorder(runs.Options{}, logger)
	}
	s := &Server{deps: deps, cfg: cfg, logger: logging.OrNop(logger).Named("api")}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1/admin", func(r chi.Router) {
		r.Use(adminKeyMiddleware(cfg.AdminKey))
		r.Use(timeoutMiddleware(cfg.JobTimeout))
		r.Post("/dedup", s.runDedup)
		r.Post("/cleanup", s.runCleanup)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type jobRequest struct {
	DryRun     *bool `json:"dryRun"`
	BatchSize  *int  `json:"batchSize"`
	Aggressive *bool `json:"aggressive"`
}

type jobResponse struct {
	RunID   string `json:"runId,omitempty"`
	Stats   any    `json:"stats"`
	Message string `json:"message"`
}

func (s *Server) runDedup(w http.ResponseWriter, r *http.Request) {
	if s.deps.Dedup == nil {
		writeError(w, http.StatusServiceUnavailable, "dedup job not configured")
		return
	}
	req, err := decodeJobRequest(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts := dedup.Options{DryRun: valueOrDefault(req.DryRun, true), PrefixLen: s.cfg.DedupPrefix}

	run := s.deps.Recorder.Begin(runs.KindDedup, opts)
	stats, err := s.deps.Dedup.Run(r.Context(), opts)
	s.deps.Recorder.Finish(r.Context(), run, stats, err)
	if err != nil {
		s.logger.Error("dedup run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, jobResponse{RunID: run.ID(), Stats: stats, Message: stats.Summary()})
}

func (s *Server) runCleanup(w http.ResponseWriter, r *http.Request) {
	if s.deps.Cleanup == nil {
		writeError(w, http.StatusServiceUnavailable, "cleanup job not configured")
		return
	}
	req, err := decodeJobRequest(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts := s.cfg.Cleanup
	opts.DryRun = valueOrDefault(req.DryRun, true)
	opts.Aggressive = valueOrDefault(req.Aggressive, false)
	opts.BatchSize = valueOrDefault(req.BatchSize, cleanup.DefaultBatchSize)
	if opts.BatchSize <= 0 || opts.BatchSize > 1000 {
		writeError(w, http.StatusBadRequest, "batchSize must be between 1 and 1000")
		return
	}

	run := s.deps.Recorder.Begin(runs.KindCleanup, opts)
	stats, err := s.deps.Cleanup.Run(r.Context(), opts)
	s.deps.Recorder.Finish(r.Context(), run, stats, err)
	if err != nil {
		s.logger.Error("cleanup run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, jobResponse{RunID: run.ID(), Stats: stats, Message: stats.Summary()})
}

func decodeJobRequest(body io.Reader) (jobRequest, error) {
	var req jobRequest
	err := json.NewDecoder(body).Decode(&req)
	switch {
	case errors.Is(err, io.EOF):
		return jobRequest{}, nil
	case err != nil:
		return jobRequest{}, errors.New("invalid JSON")
	}
	return req, nil
}

func valueOrDefault[T any](ptr *T, def T) T {
	if ptr == nil {
		return def
	}
	return *ptr
}

func adminKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expected == "" {
				writeError(w, http.StatusForbidden, "admin access is not configured")
				return
			}
			key := r.Header.Get("X-Admin-Key")
			if key == "" {
				if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
					key = strings.TrimSpace(token)
				}
			}
			if subtle.ConstantTimeCompare([]byte(key), []byte(expected)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		reqID, _ := r.Context().Value(requestIDKey{}).(string)
		s.logger.Debug("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.String("request_id", reqID),
			zap.Duration("duration", time.Since(start)))
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (rw *statusWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
