package performance

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"signal-analytics-go/internal/bayes"
	"signal-analytics-go/internal/features"
	"signal-analytics-go/internal/forecast"
	"signal-analytics-go/internal/models"
	"signal-analytics-go/internal/montecarlo"
	"signal-analytics-go/internal/reporting"
	"signal-analytics-go/internal/stats"
	"signal-analytics-go/internal/walkforward"
)

// Performance reports on every trade of one signal type. A type with no
// trades yields models.EmptyReport.
func (a *Aggregator) Performance(t models.SignalType) models.PerformanceReport {
	defer a.metrics.ObserveQuery("performance", time.Now())
	return buildReport(t, a.Trades(t))
}

// InstancePerformance reports on the trades of one signal instance.
func (a *Aggregator) InstancePerformance(signalID string) (models.PerformanceReport, error) {
	defer a.metrics.ObserveQuery("instance_performance", time.Now())

	a.mu.RLock()
	trades := a.state.tradesOfSignal(signalID)
	a.mu.RUnlock()

	if len(trades) == 0 {
		return models.PerformanceReport{}, fmt.Errorf("%w: %s", ErrSignalNotFound, signalID)
	}
	return buildReport(trades[0].SignalType, trades), nil
}

// RankedSignals reports on every signal type that has trades, best quality
// score first. Ties keep the signal type order.
func (a *Aggregator) RankedSignals() []models.PerformanceReport {
	defer a.metrics.ObserveQuery("ranked_signals", time.Now())

	a.mu.RLock()
	groups := make(map[models.SignalType][]models.TradeRecord)
	for _, t := range a.state.trades {
		groups[t.SignalType] = append(groups[t.SignalType], t)
	}
	a.mu.RUnlock()

	var wg sync.WaitGroup
	reports := make(chan models.PerformanceReport, len(groups))

	for st, trades := range groups {
		wg.Add(1)
		go func(st models.SignalType, trades []models.TradeRecord) {
			defer wg.Done()
			reports <- buildReport(st, trades)
		}(st, trades)
	}

	go func() {
		wg.Wait()
		close(reports)
	}()

	out := make([]models.PerformanceReport, 0, len(groups))
	for r := range reports {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].QualityScore != out[j].QualityScore {
			return out[i].QualityScore > out[j].QualityScore
		}
		return out[i].SignalType < out[j].SignalType
	})
	return out
}

// CompareSignalTypes estimates the probability that type a has the higher
// win rate, using Monte Carlo draws from both Beta posteriors.
func (a *Aggregator) CompareSignalTypes(sa, sb models.SignalType, iterations int) bayes.ABResult {
	defer a.metrics.ObserveQuery("compare", time.Now())

	a.mu.RLock()
	ca, cb := a.countsLocked(sa), a.countsLocked(sb)
	a.mu.RUnlock()

	return bayes.ABTest(ca, cb, iterations, a.rng)
}

func (a *Aggregator) countsLocked(t models.SignalType) bayes.Counts {
	ts, ok := a.state.types[t]
	if !ok {
		return bayes.Counts{}
	}
	return bayes.Counts{Wins: ts.Wins, Losses: ts.Losses}
}

// MAEMFEReport summarizes how far trades of one type moved against and in
// favour of the position.
type MAEMFEReport struct {
	SignalType    models.SignalType `json:"signalType"`
	SampleSize    int               `json:"sampleSize"`
	AverageMAE    float64           `json:"averageMae"`
	AverageMFE    float64           `json:"averageMfe"`
	MedianMAE     float64           `json:"medianMae"`
	MedianMFE     float64           `json:"medianMfe"`
	WinnersAvgMAE float64           `json:"winnersAvgMae"`
	WinnersAvgMFE float64           `json:"winnersAvgMfe"`
	LosersAvgMAE  float64           `json:"losersAvgMae"`
	LosersAvgMFE  float64           `json:"losersAvgMfe"`
	// EdgeRatio is AverageMFE / AverageMAE.
	EdgeRatio models.Ratio `json:"edgeRatio"`
	// SuggestedStopLoss is the 90th percentile of winners' MAE.
	SuggestedStopLoss float64 `json:"suggestedStopLoss"`
	// SuggestedTakeProfit is the median of winners' MFE.
	SuggestedTakeProfit float64 `json:"suggestedTakeProfit"`
	Insufficient        bool    `json:"insufficient,omitempty"`
	Reason              string  `json:"reason,omitempty"`
}

// MAEMFEAnalysis analyses excursions for one signal type.
func (a *Aggregator) MAEMFEAnalysis(t models.SignalType) MAEMFEReport {
	defer a.metrics.ObserveQuery("mae_mfe", time.Now())

	trades := a.Trades(t)
	r := MAEMFEReport{SignalType: t, SampleSize: len(trades)}
	if len(trades) == 0 {
		r.Insufficient = true
		r.Reason = "no trades recorded for signal type"
		return r
	}

	var mae, mfe, winMAE, winMFE, lossMAE, lossMFE []float64
	for _, tr := range trades {
		mae = append(mae, tr.MAE)
		mfe = append(mfe, tr.MFE)
		if tr.IsWin() {
			winMAE = append(winMAE, tr.MAE)
			winMFE = append(winMFE, tr.MFE)
		} else {
			lossMAE = append(lossMAE, tr.MAE)
			lossMFE = append(lossMFE, tr.MFE)
		}
	}

	r.AverageMAE = stats.Mean(mae)
	r.AverageMFE = stats.Mean(mfe)
	r.MedianMAE = stats.Median(mae)
	r.MedianMFE = stats.Median(mfe)
	r.WinnersAvgMAE = stats.Mean(winMAE)
	r.WinnersAvgMFE = stats.Mean(winMFE)
	r.LosersAvgMAE = stats.Mean(lossMAE)
	r.LosersAvgMFE = stats.Mean(lossMFE)
	r.EdgeRatio = edgeRatio(r.AverageMFE, r.AverageMAE)

	if len(winMAE) > 0 {
		r.SuggestedStopLoss = stats.Percentile(winMAE, 0.9)
		r.SuggestedTakeProfit = stats.Median(winMFE)
	}
	return r
}

func edgeRatio(mfe, mae float64) models.Ratio {
	if mae == 0 {
		if mfe > 0 {
			return models.Ratio(math.Inf(1))
		}
		return 0
	}
	return models.Ratio(mfe / mae)
}

// RunMonteCarloSimulation resamples the realized returns of one type into
// simulated equity paths.
func (a *Aggregator) RunMonteCarloSimulation(t models.SignalType, opts montecarlo.EquityOptions) montecarlo.EquitySimulation {
	defer a.metrics.ObserveQuery("monte_carlo", time.Now())
	return montecarlo.EquityCurve(models.Returns(a.Trades(t)), opts, a.rng)
}

// ForecastOptions selects the forecaster used by ForecastPerformance.
type ForecastOptions struct {
	Method  forecast.Method `json:"method"`
	Window  int             `json:"window"`
	Horizon int             `json:"horizon"`
}

// ForecastPerformance projects the cumulative return curve of one type.
func (a *Aggregator) ForecastPerformance(t models.SignalType, opts ForecastOptions) (forecast.Result, error) {
	defer a.metrics.ObserveQuery("forecast", time.Now())

	f, err := forecast.New(opts.Method, opts.Window)
	if err != nil {
		return forecast.Result{}, err
	}
	horizon := opts.Horizon
	if horizon <= 0 {
		horizon = forecast.DefaultHorizon
	}
	series := forecast.Cumulative(models.Returns(a.Trades(t)))
	return f.Forecast(series, horizon), nil
}

// ConfidenceInterval bootstraps a confidence interval for metric over the
// returns of one type. Profit factor is rejected since resamples without a
// losing trade make it infinite.
func (a *Aggregator) ConfidenceInterval(t models.SignalType, metric stats.Metric, opts montecarlo.BootstrapOptions) (montecarlo.Interval, error) {
	defer a.metrics.ObserveQuery("confidence_interval", time.Now())

	if _, err := stats.ParseMetric(string(metric)); err != nil || metric == stats.MetricProfitFactor {
		return montecarlo.Interval{}, fmt.Errorf("%w: %q", ErrUnsupportedStat, metric)
	}
	returns := models.Returns(a.Trades(t))
	return montecarlo.BootstrapConfidenceInterval(returns, metric.Compute, opts, a.rng), nil
}

// WalkForward runs rolling out-of-sample validation over one type's trades.
func (a *Aggregator) WalkForward(t models.SignalType, opts walkforward.Options) walkforward.Result {
	defer a.metrics.ObserveQuery("walk_forward", time.Now())
	return walkforward.RunTrades(a.Trades(t), opts)
}

// Patterns detects recurring high and low performing signal types.
func (a *Aggregator) Patterns(minOccurrences int) []features.Pattern {
	defer a.metrics.ObserveQuery("patterns", time.Now())
	return features.DetectPatterns(a.AllTrades(), minOccurrences)
}

// Clusters groups every recorded trade by feature similarity.
func (a *Aggregator) Clusters(opts features.ClusterOptions) features.ClusterResult {
	defer a.metrics.ObserveQuery("clusters", time.Now())
	return features.Cluster(a.AllTrades(), opts, a.rng)
}

// SimilarTrades finds the topK recorded trades closest to trade id.
func (a *Aggregator) SimilarTrades(id string, topK int) ([]features.Similar, error) {
	defer a.metrics.ObserveQuery("similar", time.Now())

	target, err := a.Trade(id)
	if err != nil {
		return nil, err
	}
	return features.FindSimilar(target, a.AllTrades(), topK, features.MarketData{}), nil
}

// PortfolioWeights allocates across every signal type with trades.
func (a *Aggregator) PortfolioWeights(method reporting.WeightMethod) ([]reporting.PortfolioWeight, error) {
	defer a.metrics.ObserveQuery("portfolio", time.Now())

	a.mu.RLock()
	signals := make([]reporting.SignalReturns, 0, len(a.state.types))
	for _, st := range models.AllSignalTypes() {
		if _, ok := a.state.types[st]; ok {
			signals = append(signals, reporting.SignalReturns{
				Name:    st.String(),
				Returns: models.Returns(a.state.tradesOfType(st)),
			})
		}
	}
	a.mu.RUnlock()

	return reporting.CalculatePortfolioWeights(signals, method)
}
