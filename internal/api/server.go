// Package api exposes the performance aggregator over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"signal-analytics-go/internal/observability"
	"signal-analytics-go/internal/performance"
	"signal-analytics-go/internal/random"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 10 << 20

// APIServer provides an HTTP interface for the performance aggregator.
type APIServer struct {
	server     *http.Server
	aggregator *performance.Aggregator
	metrics    *observability.Metrics
	defaults   Defaults
	rng        random.Source
	logger     *zap.Logger
}

// NewAPIServer creates a new APIServer listening on port.
func NewAPIServer(port int, aggregator *performance.Aggregator, defaults Defaults, metrics *observability.Metrics, logger *zap.Logger) *APIServer {
	src := random.NewTimeSeeded()
	if defaults.Seed != 0 {
		src = random.New(defaults.Seed)
	}

	s := &APIServer{
		aggregator: aggregator,
		metrics:    metrics,
		defaults:   defaults,
		rng:        random.Locked(src),
		logger:     logger.Named("api-server"),
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler, e.g. for httptest.
func (s *APIServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *APIServer) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.Handle("GET /metrics", s.metrics.Handler())

	mux.HandleFunc("POST /api/trades", s.recordTradeHandler)
	mux.HandleFunc("GET /api/trades", s.listTradesHandler)
	mux.HandleFunc("DELETE /api/trades/{id}", s.deleteTradeHandler)
	mux.HandleFunc("GET /api/trades/{id}/similar", s.similarHandler)

	mux.HandleFunc("GET /api/signals", s.rankedSignalsHandler)
	mux.HandleFunc("GET /api/signals/{type}", s.performanceHandler)
	mux.HandleFunc("GET /api/signals/{type}/mae-mfe", s.maeMFEHandler)
	mux.HandleFunc("GET /api/signals/{type}/montecarlo", s.monteCarloHandler)
	mux.HandleFunc("GET /api/signals/{type}/forecast", s.forecastHandler)
	mux.HandleFunc("GET /api/signals/{type}/confidence", s.confidenceHandler)
	mux.HandleFunc("GET /api/signals/{type}/walkforward", s.walkForwardHandler)
	mux.HandleFunc("GET /api/instances/{id}", s.instanceHandler)

	mux.HandleFunc("GET /api/compare", s.compareHandler)
	mux.HandleFunc("GET /api/patterns", s.patternsHandler)
	mux.HandleFunc("GET /api/clusters", s.clustersHandler)
	mux.HandleFunc("GET /api/portfolio", s.portfolioHandler)
	mux.HandleFunc("POST /api/backtest", s.backtestHandler)

	mux.HandleFunc("GET /api/export", s.exportHandler)
	mux.HandleFunc("POST /api/import", s.importHandler)

	return s.withLogging(mux)
}

// Start runs the HTTP server in a new goroutine.
func (s *APIServer) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *APIServer) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *APIServer) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("Handled request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *APIServer) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		s.logger.Warn("Failed to write response", zap.Error(err))
	}
}

func (s *APIServer) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", zap.Error(err))
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
