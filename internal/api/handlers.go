package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"signal-analytics-go/internal/features"
	"signal-analytics-go/internal/forecast"
	"signal-analytics-go/internal/models"
	"signal-analytics-go/internal/performance"
	"signal-analytics-go/internal/reporting"
	"signal-analytics-go/internal/stats"
)

func (s *APIServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// recordTradeHandler ingests one completed trade.
func (s *APIServer) recordTradeHandler(w http.ResponseWriter, r *http.Request) {
	var raw models.TradeRecord
	if err := decodeJSON(w, r, &raw); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	trade, err := s.aggregator.RecordTrade(r.Context(), raw)
	switch {
	case errors.Is(err, models.ErrInvalidTrade):
		s.writeError(w, http.StatusBadRequest, err)
		return
	case errors.Is(err, performance.ErrDuplicateTrade):
		s.writeError(w, http.StatusConflict, err)
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, trade)
}

// listTradesHandler returns recorded trades, optionally of one signal type.
func (s *APIServer) listTradesHandler(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("signalType")
	if name == "" {
		s.writeJSON(w, http.StatusOK, s.aggregator.AllTrades())
		return
	}
	st, err := models.ParseSignalType(name)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.aggregator.Trades(st))
}

func (s *APIServer) deleteTradeHandler(w http.ResponseWriter, r *http.Request) {
	err := s.aggregator.DeleteTrade(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, performance.ErrTradeNotFound):
		s.writeError(w, http.StatusNotFound, err)
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *APIServer) similarHandler(w http.ResponseWriter, r *http.Request) {
	k, err := intParam(r, "k", features.DefaultTopK)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	similar, err := s.aggregator.SimilarTrades(r.PathValue("id"), k)
	if errors.Is(err, performance.ErrTradeNotFound) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, similar)
}

func (s *APIServer) rankedSignalsHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.aggregator.RankedSignals())
}

// signalType parses the {type} path segment, answering 400 when it is not a
// known signal type.
func (s *APIServer) signalType(w http.ResponseWriter, r *http.Request) (models.SignalType, bool) {
	st, err := models.ParseSignalType(r.PathValue("type"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return 0, false
	}
	return st, true
}

func (s *APIServer) performanceHandler(w http.ResponseWriter, r *http.Request) {
	st, ok := s.signalType(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, s.aggregator.Performance(st))
}

func (s *APIServer) maeMFEHandler(w http.ResponseWriter, r *http.Request) {
	st, ok := s.signalType(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, s.aggregator.MAEMFEAnalysis(st))
}

func (s *APIServer) monteCarloHandler(w http.ResponseWriter, r *http.Request) {
	st, ok := s.signalType(w, r)
	if !ok {
		return
	}
	opts := s.defaults.MonteCarlo
	var err error
	if opts.NumPaths, err = intParam(r, "paths", opts.NumPaths); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if opts.NumTrades, err = intParam(r, "trades", opts.NumTrades); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if opts.KeepPaths, err = intParam(r, "keep", opts.KeepPaths); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.aggregator.RunMonteCarloSimulation(st, opts))
}

func (s *APIServer) forecastHandler(w http.ResponseWriter, r *http.Request) {
	st, ok := s.signalType(w, r)
	if !ok {
		return
	}
	opts := s.defaults.Forecast
	if m := r.URL.Query().Get("method"); m != "" {
		opts.Method = forecast.Method(m)
	}
	var err error
	if opts.Window, err = intParam(r, "window", opts.Window); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if opts.Horizon, err = intParam(r, "horizon", opts.Horizon); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if opts.Horizon > forecast.MaxHorizon {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("parameter horizon: at most %d", forecast.MaxHorizon))
		return
	}

	res, err := s.aggregator.ForecastPerformance(st, opts)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *APIServer) confidenceHandler(w http.ResponseWriter, r *http.Request) {
	st, ok := s.signalType(w, r)
	if !ok {
		return
	}
	metric := stats.MetricSharpe
	if m := r.URL.Query().Get("metric"); m != "" {
		parsed, err := stats.ParseMetric(m)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		metric = parsed
	}
	opts := s.defaults.Bootstrap
	var err error
	if opts.Iterations, err = intParam(r, "iterations", opts.Iterations); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if opts.Confidence, err = floatParam(r, "confidence", opts.Confidence); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	interval, err := s.aggregator.ConfidenceInterval(st, metric, opts)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, interval)
}

func (s *APIServer) walkForwardHandler(w http.ResponseWriter, r *http.Request) {
	st, ok := s.signalType(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, s.aggregator.WalkForward(st, s.defaults.WalkForward))
}

func (s *APIServer) instanceHandler(w http.ResponseWriter, r *http.Request) {
	report, err := s.aggregator.InstancePerformance(r.PathValue("id"))
	if errors.Is(err, performance.ErrSignalNotFound) {
		s.writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

// compareHandler runs a Bayesian A/B test between ?a= and ?b=.
func (s *APIServer) compareHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a, err := models.ParseSignalType(q.Get("a"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("parameter a: %w", err))
		return
	}
	b, err := models.ParseSignalType(q.Get("b"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("parameter b: %w", err))
		return
	}
	iterations, err := intParam(r, "iterations", s.defaults.ABIterations)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.aggregator.CompareSignalTypes(a, b, iterations))
}

func (s *APIServer) patternsHandler(w http.ResponseWriter, r *http.Request) {
	minOccurrences, err := intParam(r, "min", 1)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.aggregator.Patterns(minOccurrences))
}

func (s *APIServer) clustersHandler(w http.ResponseWriter, r *http.Request) {
	opts := s.defaults.Cluster
	var err error
	if opts.K, err = intParam(r, "k", opts.K); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.aggregator.Clusters(opts))
}

func (s *APIServer) portfolioHandler(w http.ResponseWriter, r *http.Request) {
	method := reporting.WeightMethod(r.URL.Query().Get("method"))
	if method == "" {
		method = reporting.WeightEqual
	}
	weights, err := s.aggregator.PortfolioWeights(method)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, weights)
}

// BacktestRequest is the body of POST /api/backtest.
type BacktestRequest struct {
	Trades  []models.TradeRecord    `json:"trades"`
	Options reporting.ReportOptions `json:"options"`
}

// backtestHandler builds a backtest report over the posted trades without
// recording them.
func (s *APIServer) backtestHandler(w http.ResponseWriter, r *http.Request) {
	var req BacktestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	trades := make([]models.TradeRecord, 0, len(req.Trades))
	for i, raw := range req.Trades {
		t, err := models.NewTradeRecord(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("trade %d: %w", i, err))
			return
		}
		trades = append(trades, t)
	}

	report := reporting.GenerateBacktestReport(trades, req.Options, s.rng)
	s.writeJSON(w, http.StatusOK, report)
}

func (s *APIServer) exportHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.aggregator.Export())
}

type importResponse struct {
	Trades int `json:"trades"`
}

// importHandler replaces the aggregator state with a posted snapshot.
func (s *APIServer) importHandler(w http.ResponseWriter, r *http.Request) {
	var snap performance.Snapshot
	if err := decodeJSON(w, r, &snap); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.aggregator.Import(r.Context(), snap); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.logger.Info("Imported snapshot over HTTP", zap.String("version", snap.Version))
	s.writeJSON(w, http.StatusOK, importResponse{Trades: s.aggregator.Len()})
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("parameter %s: want a non-negative integer, got %q", name, raw)
	}
	return v, nil
}

func floatParam(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || !stats.IsFinite(v) {
		return 0, fmt.Errorf("parameter %s: want a number, got %q", name, raw)
	}
	return v, nil
}
