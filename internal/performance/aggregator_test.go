package performance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"signal-analytics-go/internal/features"
	"signal-analytics-go/internal/forecast"
	"signal-analytics-go/internal/models"
	"signal-analytics-go/internal/montecarlo"
	"signal-analytics-go/internal/observability"
	"signal-analytics-go/internal/random"
	"signal-analytics-go/internal/reporting"
	"signal-analytics-go/internal/stats"
	"signal-analytics-go/internal/store"
	"signal-analytics-go/internal/walkforward"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return epoch }

func newTestAggregator(opts ...Option) *Aggregator {
	base := []Option{WithRandom(random.New(42)), WithClock(fixedClock)}
	return New(zap.NewNop(), append(base, opts...)...)
}

func rawTrade(i int, st models.SignalType, signalID string, ret float64) models.TradeRecord {
	return models.TradeRecord{
		ID:         fmt.Sprintf("%s-%d", signalID, i),
		SignalID:   signalID,
		SignalType: st,
		EntryPrice: 100,
		ExitPrice:  100 + 100*ret,
		EntryTime:  epoch.Add(time.Duration(i) * time.Hour),
		ExitTime:   epoch.Add(time.Duration(i)*time.Hour + 45*time.Minute),
	}
}

func record(t *testing.T, a *Aggregator, st models.SignalType, signalID string, returns ...float64) {
	t.Helper()
	for _, r := range returns {
		_, err := a.RecordTrade(context.Background(), rawTrade(a.Len(), st, signalID, r))
		require.NoError(t, err)
	}
}

func TestAggregator_BreakoutScenario(t *testing.T) {
	// Arrange
	a := newTestAggregator()
	returns := []float64{0.02, 0.02, -0.01, 0.02, 0.02, -0.01, 0.02, 0.02, -0.01, 0.02}

	// Act
	record(t, a, models.SignalBreakout, "brk-1", returns...)
	report := a.Performance(models.SignalBreakout)

	// Assert
	assert.Equal(t, 10, report.SampleSize)
	assert.Equal(t, 7, report.Wins)
	assert.Equal(t, 3, report.Losses)
	assert.InDelta(t, 0.7, report.WinRate, 1e-12)
	assert.InDelta(t, 0.14/0.03, float64(report.ProfitFactor), 1e-9)
	assert.InDelta(t, 11.0, report.TotalPnL, 1e-9)
	assert.InDelta(t, 0.011, report.AverageReturn, 1e-12)
	assert.InDelta(t, 0.02, report.AverageWin, 1e-12)
	assert.InDelta(t, -0.01, report.AverageLoss, 1e-12)
	assert.InDelta(t, 0.011, report.Expectancy, 1e-12)
	assert.Greater(t, report.SharpeRatio, 2.0)

	assert.Equal(t, 8.0, report.Posterior.Alpha)
	assert.Equal(t, 4.0, report.Posterior.Beta)
	assert.InDelta(t, 2.0/3.0, report.Posterior.Mean, 1e-12)
	assert.Equal(t, "fixed_band", report.Posterior.Method)

	assert.InDelta(t, 27.5, report.QualityScore, 1e-9)
	assert.Equal(t, models.RatingPoor, report.Rating)

	_, err := json.Marshal(report)
	assert.NoError(t, err)
}

func TestAggregator_EmptyReport(t *testing.T) {
	a := newTestAggregator()
	record(t, a, models.SignalBreakout, "brk-1", 0.01)

	report := a.Performance(models.SignalMomentum)

	assert.Equal(t, models.EmptyReport(models.SignalMomentum), report)
	assert.Equal(t, 0.0, report.QualityScore)
	assert.Equal(t, models.RatingPoor, report.Rating)
}

func TestAggregator_RejectedTradeLeavesStateUnchanged(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*models.TradeRecord)
	}{
		{name: "Missing signal id", mutate: func(r *models.TradeRecord) { r.SignalID = "  " }},
		{name: "Unknown signal type", mutate: func(r *models.TradeRecord) { r.SignalType = models.SignalTypeUnknown }},
		{name: "Zero entry price", mutate: func(r *models.TradeRecord) { r.EntryPrice = 0 }},
		{name: "NaN exit price", mutate: func(r *models.TradeRecord) { r.ExitPrice = math.NaN() }},
		{name: "Exit before entry", mutate: func(r *models.TradeRecord) { r.ExitTime = r.EntryTime.Add(-time.Minute) }},
		{name: "Overflowing pnl", mutate: func(r *models.TradeRecord) {
			r.EntryPrice, r.ExitPrice, r.Quantity = 1e200, 1e300, 1e10
		}},
		{name: "Infinite fees", mutate: func(r *models.TradeRecord) { r.Fees = math.Inf(1) }},
		{name: "Supplied NaN pnl percent", mutate: func(r *models.TradeRecord) { r.PnLPercent = math.NaN() }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			metrics := observability.NewMetrics("test")
			a := newTestAggregator(WithMetrics(metrics))
			record(t, a, models.SignalReversal, "rev-1", 0.01, -0.02)
			before := a.Export()
			raw := rawTrade(99, models.SignalReversal, "rev-1", 0.03)
			tc.mutate(&raw)

			// Act
			_, err := a.RecordTrade(context.Background(), raw)

			// Assert
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrInvalidTrade))
			assert.Equal(t, before, a.Export())
			assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TradesRejected))
		})
	}
}

func TestAggregator_DuplicateTrade(t *testing.T) {
	a := newTestAggregator()
	record(t, a, models.SignalMomentum, "mom-1", 0.01)

	_, err := a.RecordTrade(context.Background(), rawTrade(0, models.SignalMomentum, "mom-1", 0.05))

	assert.ErrorIs(t, err, ErrDuplicateTrade)
	assert.Equal(t, 1, a.Len())
}

func TestAggregator_DeleteTrade(t *testing.T) {
	// Arrange
	a := newTestAggregator()
	record(t, a, models.SignalMomentum, "mom-1", 0.01, -0.02, 0.03)

	// Act
	err := a.DeleteTrade(context.Background(), "mom-1-1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, a.Len())
	ts := a.TypeStats()
	require.Len(t, ts, 1)
	assert.Equal(t, 2, ts[0].Wins)
	assert.Equal(t, 0, ts[0].Losses)
	assert.Equal(t, 1.0, a.Performance(models.SignalMomentum).WinRate)

	_, err = a.Trade("mom-1-1")
	assert.ErrorIs(t, err, ErrTradeNotFound)
	assert.ErrorIs(t, a.DeleteTrade(context.Background(), "missing"), ErrTradeNotFound)
}

func TestAggregator_Tallies(t *testing.T) {
	a := newTestAggregator()
	record(t, a, models.SignalBreakout, "brk-2", 0.02)
	record(t, a, models.SignalBreakout, "brk-1", -0.01, 0.03)
	record(t, a, models.SignalDivergence, "div-1", 0.01)

	signals := a.Signals()
	types := a.TypeStats()

	require.Len(t, signals, 3)
	assert.Equal(t, []string{"brk-1", "brk-2", "div-1"}, []string{signals[0].SignalID, signals[1].SignalID, signals[2].SignalID})
	assert.Equal(t, 2, signals[0].Trades)
	assert.Equal(t, 1, signals[0].Wins)
	assert.Equal(t, epoch.Add(time.Hour), signals[0].FirstEntry)
	assert.Equal(t, epoch.Add(2*time.Hour+45*time.Minute), signals[0].LastExit)

	require.Len(t, types, 2)
	assert.Equal(t, models.SignalBreakout, types[0].SignalType)
	assert.InDelta(t, 5.0, types[0].GrossProfit, 1e-9)
	assert.InDelta(t, 1.0, types[0].GrossLoss, 1e-9)
	assert.Equal(t, models.SignalDivergence, types[1].SignalType)
}

func TestAggregator_InstancePerformance(t *testing.T) {
	a := newTestAggregator()
	record(t, a, models.SignalPattern, "pat-1", 0.01, 0.02)
	record(t, a, models.SignalPattern, "pat-2", -0.01)

	report, err := a.InstancePerformance("pat-1")
	require.NoError(t, err)
	assert.Equal(t, 2, report.SampleSize)
	assert.Equal(t, models.SignalPattern, report.SignalType)
	assert.Equal(t, 1.0, report.WinRate)

	_, err = a.InstancePerformance("nope")
	assert.ErrorIs(t, err, ErrSignalNotFound)
}

func TestAggregator_RankedSignals(t *testing.T) {
	a := newTestAggregator()
	for i := 0; i < 12; i++ {
		record(t, a, models.SignalBreakout, "brk", 0.02, 0.02, -0.01)
		record(t, a, models.SignalReversal, "rev", -0.02, 0.01, -0.01)
		record(t, a, models.SignalMomentum, "mom", 0.01, -0.01, 0.01)
	}

	ranked := a.RankedSignals()

	require.Len(t, ranked, 3)
	assert.Equal(t, models.SignalBreakout, ranked[0].SignalType)
	assert.Equal(t, models.SignalReversal, ranked[2].SignalType)
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].QualityScore, ranked[i].QualityScore)
	}
}

func TestAggregator_CompareSignalTypes(t *testing.T) {
	a := newTestAggregator()
	for i := 0; i < 10; i++ {
		record(t, a, models.SignalBreakout, "brk", 0.01, 0.01, 0.01, 0.01, -0.01)
		record(t, a, models.SignalReversal, "rev", -0.01, -0.01, -0.01, -0.01, 0.01)
	}

	result := a.CompareSignalTypes(models.SignalBreakout, models.SignalReversal, 2000)

	assert.Greater(t, result.ProbabilityABetter, 0.95)
	assert.True(t, result.Significant)
	assert.Equal(t, 2000, result.Iterations)
	assert.Equal(t, 41.0, result.PosteriorA.Alpha)
}

func TestAggregator_MAEMFEAnalysis(t *testing.T) {
	// Arrange
	a := newTestAggregator()
	highs := []float64{104, 103, 101, 106}
	lows := []float64{98, 99, 95, 97}
	exits := []float64{103, 102, 96, 105}
	for i := range highs {
		raw := rawTrade(i, models.SignalTrendFollowing, "tf", 0)
		raw.ExitPrice = exits[i]
		raw.HighPrice = &highs[i]
		raw.LowPrice = &lows[i]
		_, err := a.RecordTrade(context.Background(), raw)
		require.NoError(t, err)
	}

	// Act
	r := a.MAEMFEAnalysis(models.SignalTrendFollowing)

	// Assert
	assert.Equal(t, 4, r.SampleSize)
	assert.InDelta(t, (0.02+0.01+0.05+0.03)/4, r.AverageMAE, 1e-12)
	assert.InDelta(t, (0.04+0.03+0.01+0.06)/4, r.AverageMFE, 1e-12)
	assert.InDelta(t, 0.05, r.LosersAvgMAE, 1e-12)
	assert.InDelta(t, 0.01, r.LosersAvgMFE, 1e-12)
	assert.InDelta(t, stats.Percentile([]float64{0.02, 0.01, 0.03}, 0.9), r.SuggestedStopLoss, 1e-12)
	assert.InDelta(t, 0.04, r.SuggestedTakeProfit, 1e-12)
	assert.InDelta(t, 0.14/0.11, float64(r.EdgeRatio), 1e-9)

	empty := a.MAEMFEAnalysis(models.SignalDivergence)
	assert.True(t, empty.Insufficient)
}

func TestAggregator_Simulations(t *testing.T) {
	a := newTestAggregator()
	record(t, a, models.SignalVolumeSpike, "vs", 0.02, -0.01, 0.015, 0.01, -0.005, 0.02, 0.01, -0.01)

	t.Run("Monte Carlo", func(t *testing.T) {
		sim := a.RunMonteCarloSimulation(models.SignalVolumeSpike, montecarlo.EquityOptions{NumPaths: 200})
		assert.False(t, sim.Insufficient)
		assert.Greater(t, sim.ProbabilityOfProfit, 0.5)
	})

	t.Run("Forecast", func(t *testing.T) {
		res, err := a.ForecastPerformance(models.SignalVolumeSpike, ForecastOptions{Method: forecast.MethodLinear, Horizon: 3})
		require.NoError(t, err)
		assert.Len(t, res.Values, 3)

		_, err = a.ForecastPerformance(models.SignalVolumeSpike, ForecastOptions{Method: "prophet"})
		assert.Error(t, err)
	})

	t.Run("Confidence interval", func(t *testing.T) {
		ci, err := a.ConfidenceInterval(models.SignalVolumeSpike, stats.MetricMeanReturn, montecarlo.BootstrapOptions{Iterations: 300})
		require.NoError(t, err)
		assert.LessOrEqual(t, ci.Lower, ci.Estimate)
		assert.GreaterOrEqual(t, ci.Upper, ci.Estimate)

		_, err = a.ConfidenceInterval(models.SignalVolumeSpike, stats.MetricProfitFactor, montecarlo.BootstrapOptions{})
		assert.ErrorIs(t, err, ErrUnsupportedStat)
	})

	t.Run("Walk forward", func(t *testing.T) {
		res := a.WalkForward(models.SignalVolumeSpike, walkforward.Options{})
		assert.True(t, res.Insufficient)
	})
}

func TestAggregator_FeatureQueries(t *testing.T) {
	a := newTestAggregator()
	record(t, a, models.SignalBreakout, "brk", 0.03, 0.025, 0.02, 0.03)
	record(t, a, models.SignalReversal, "rev", -0.02, -0.025, -0.03, 0.001)

	patterns := a.Patterns(3)
	require.Len(t, patterns, 2)
	assert.Equal(t, features.PatternHighPerforming, patterns[0].Kind)

	clusters := a.Clusters(features.ClusterOptions{K: 2})
	assert.Len(t, clusters.Assignments, 8)

	similar, err := a.SimilarTrades("brk-0", 2)
	require.NoError(t, err)
	require.Len(t, similar, 2)
	assert.Equal(t, models.SignalBreakout, similar[0].SignalType)

	_, err = a.SimilarTrades("missing", 2)
	assert.ErrorIs(t, err, ErrTradeNotFound)

	weights, err := a.PortfolioWeights(reporting.WeightEqual)
	require.NoError(t, err)
	assert.Len(t, weights, 2)
}

func TestAggregator_ConcurrentAccess(t *testing.T) {
	a := newTestAggregator(WithStore(store.NewMemoryStore(), ""), WithAutoPersist(true))
	const writers, perWriter = 8, 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				raw := rawTrade(i, models.AllSignalTypes()[w%3], fmt.Sprintf("sig-%d", w), 0.01*float64(i%3-1))
				_, err := a.RecordTrade(context.Background(), raw)
				assert.NoError(t, err)
			}
		}(w)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_ = a.RankedSignals()
				_ = a.Performance(models.SignalBreakout)
				_ = a.Export()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, writers*perWriter, a.Len())
	total := 0
	for _, ts := range a.TypeStats() {
		total += ts.Trades
	}
	assert.Equal(t, writers*perWriter, total)
	assert.False(t, a.Dirty())
}

func TestQualityScore(t *testing.T) {
	testCases := []struct {
		name     string
		in       ScoreInputs
		expected float64
	}{
		{name: "No trades", in: ScoreInputs{WinRate: 1, SampleSize: 0}, expected: 0},
		{
			name:     "Saturated large sample",
			in:       ScoreInputs{WinRate: 1, ProfitFactor: math.Inf(1), Sharpe: 5, Sortino: 5, Calmar: 5, Omega: math.Inf(1), SampleSize: 50},
			expected: 95,
		},
		{
			name:     "Small sample is scaled down",
			in:       ScoreInputs{WinRate: 0.7, ProfitFactor: 4, Sharpe: 3, Sortino: 4, Calmar: 4, Omega: 4, SampleSize: 10},
			expected: 27.5,
		},
		{
			name:     "Negative ratios contribute nothing",
			in:       ScoreInputs{WinRate: 0.2, ProfitFactor: 0.5, Sharpe: -1, Sortino: -1, Calmar: -2, Omega: 0.3, SampleSize: 30},
			expected: 100 * (0.25*0.2 + 0.20*0.5/3 + 0.05*0.1 + 0.10),
		},
		{
			name:     "NaN inputs",
			in:       ScoreInputs{WinRate: math.NaN(), Sharpe: math.NaN(), SampleSize: 30},
			expected: 10,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, QualityScore(tc.in), 1e-9)
		})
	}
}

func TestQualityScore_BoundedOverGeneratedTradeSets(t *testing.T) {
	src := random.New(2024)

	for set := 0; set < 200; set++ {
		a := newTestAggregator()
		n := 1 + src.Intn(60)
		mode := src.Intn(4)
		returns := make([]float64, n)
		for i := range returns {
			r := (src.Float64() - 0.45) * 0.2
			switch mode {
			case 0:
				r = math.Abs(r) + 0.001
			case 1:
				r = -math.Abs(r) - 0.001
			}
			returns[i] = r
		}
		record(t, a, models.SignalMomentum, fmt.Sprintf("gen-%d", set), returns...)

		report := a.Performance(models.SignalMomentum)

		require.False(t, math.IsNaN(report.QualityScore), "set %d", set)
		assert.GreaterOrEqual(t, report.QualityScore, 0.0, "set %d", set)
		assert.LessOrEqual(t, report.QualityScore, 100.0, "set %d", set)
		assert.Equal(t, models.RatingForScore(report.QualityScore), report.Rating, "set %d", set)
		_, err := json.Marshal(report)
		assert.NoError(t, err, "set %d", set)
	}
}
