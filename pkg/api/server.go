// Package api serves the interview HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"interviewer/pkg/interview"
	"interviewer/pkg/journal"
	"interviewer/pkg/logx"
	"interviewer/pkg/metrics"
	"interviewer/pkg/store"
)

const (
	maxUploadBytes  = 32 << 20
	maxLogEntries   = 1000
	shutdownTimeout = 5 * time.Second
)

// JournalReader lists the journaled mutations of a session.
type JournalReader interface {
	ListBySession(ctx context.Context, sessionKey string) ([]journal.Entry, error)
}

// UsageSource reports aggregated provider usage.
type UsageSource interface {
	UsageByProvider(ctx context.Context) ([]metrics.ProviderUsage, error)
}

// InFlighter reports running background evaluations.
type InFlighter interface {
	InFlight() int
}

// Deps wires a Server. Journal, Usage and Gatherer may be nil; their routes then answer 404.
type Deps struct {
	Interview *interview.Service
	Store     store.Store
	Scheduler InFlighter
	Journal   JournalReader
	Usage     UsageSource
	Gatherer  prometheus.Gatherer
	Providers []string
}

// Server is the HTTP front of the interview service.
type Server struct {
	interview *interview.Service
	store     store.Store
	scheduler InFlighter
	journal   JournalReader
	usage     UsageSource
	gatherer  prometheus.Gatherer
	providers []string
	logger    *logx.Logger
}

// NewServer creates a new API server.
func NewServer(deps Deps) *Server {
	return &Server{
		interview: deps.Interview,
		store:     deps.Store,
		scheduler: deps.Scheduler,
		journal:   deps.Journal,
		usage:     deps.Usage,
		gatherer:  deps.Gatherer,
		providers: deps.Providers,
		logger:    logx.NewLogger("api"),
	}
}

// RegisterRoutes registers all HTTP routes.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/analyze-resume", s.handleAnalyzeResume)
	mux.HandleFunc("POST /api/upload-resume", s.handleUploadResume)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/plan-status/{session_key}", s.handlePlanStatus)
	mux.HandleFunc("GET /api/sessions/{session_key}/journal", s.handleJournal)

	mux.HandleFunc("GET /api/scenarios", s.handleScenarios)
	mux.HandleFunc("GET /api/difficulties", s.handleDifficulties)
	mux.HandleFunc("GET /api/question-packs", s.handleQuestionPacks)

	mux.HandleFunc("GET /api/healthz", s.handleHealth)
	mux.HandleFunc("GET /api/logs", s.handleLogs)
	mux.HandleFunc("GET /api/usage", s.handleUsage)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.logRequests(mux)
}

// Run serves on addr until ctx is cancelled, then shuts the listener down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Starting API server on %s", ln.Addr())
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	// The parent context is already cancelled; shutdown needs a fresh one.
	s.logger.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	//nolint:contextcheck // parent context is cancelled
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logx.Debug(r.Context(), "http", "%s %s -> %d in %s",
			r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response: %v", err)
	}
}

// writeError answers with {"detail": msg}.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"detail": msg})
}
