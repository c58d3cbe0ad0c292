package reporting

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-analytics-go/internal/models"
	"signal-analytics-go/internal/montecarlo"
	"signal-analytics-go/internal/random"
	"signal-analytics-go/internal/walkforward"
)

func tradesFromReturns(t *testing.T, returns ...float64) []models.TradeRecord {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.TradeRecord, 0, len(returns))
	for i, r := range returns {
		tr, err := models.NewTradeRecord(models.TradeRecord{
			SignalID:   "s",
			SignalType: models.SignalBreakout,
			EntryPrice: 100,
			ExitPrice:  100 + 100*r,
			EntryTime:  start.Add(time.Duration(i) * time.Hour),
			ExitTime:   start.Add(time.Duration(i)*time.Hour + 30*time.Minute),
		})
		require.NoError(t, err)
		out = append(out, tr)
	}
	return out
}

func repeat(pattern []float64, times int) []float64 {
	out := make([]float64, 0, len(pattern)*times)
	for i := 0; i < times; i++ {
		out = append(out, pattern...)
	}
	return out
}

func TestRatingRubric(t *testing.T) {
	testCases := []struct {
		name     string
		sharpe   float64
		winRate  float64
		pf       float64
		trades   int
		points   int
		expected Rating
	}{
		{name: "Everything maxed", sharpe: 2.5, winRate: 0.7, pf: 3, trades: 150, points: 9, expected: RatingExcellent},
		{name: "Solid", sharpe: 1.2, winRate: 0.55, pf: 1.6, trades: 40, points: 5, expected: RatingFair},
		{name: "Good", sharpe: 1.0, winRate: 0.6, pf: 2.0, trades: 10, points: 6, expected: RatingGood},
		{name: "Poor", sharpe: 0.6, winRate: 0.5, pf: 1.0, trades: 5, points: 2, expected: RatingPoor},
		{name: "Very poor", sharpe: -1, winRate: 0.3, pf: 0.5, trades: 5, points: 0, expected: RatingVeryPoor},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			points := ratingPoints(tc.sharpe, tc.winRate, tc.pf, tc.trades)

			assert.Equal(t, tc.points, points)
			assert.Equal(t, tc.expected, ratingFor(points))
		})
	}
}

func TestGenerateBacktestReport(t *testing.T) {
	returns := repeat([]float64{0.02, 0.02, -0.01}, 40)
	trades := tradesFromReturns(t, returns...)

	report := GenerateBacktestReport(trades, ReportOptions{
		WalkForward: &walkforward.Options{WindowSize: 30, StepSize: 15},
		Costs:       &CostModel{PercentCommission: 0.001},
		Permutation: &montecarlo.PermutationOptions{Iterations: 100},
	}, random.New(1))

	assert.Equal(t, 120, report.Trading.TotalTrades)
	assert.Equal(t, 80, report.Trading.Wins)
	assert.Equal(t, 40, report.Trading.Losses)
	assert.InDelta(t, 2.0/3.0, report.Trading.WinRate, 1e-12)
	assert.InDelta(t, 4.0, float64(report.Trading.ProfitFactor), 1e-9)
	assert.Equal(t, 2, report.Trading.MaxConsecutiveWins)
	assert.Equal(t, 1, report.Trading.MaxConsecutiveLosses)
	assert.Equal(t, 30*time.Minute, report.Trading.AverageHoldingPeriod)
	assert.InDelta(t, 0.02, report.Trading.LargestWin, 1e-12)
	assert.InDelta(t, -0.01, report.Trading.LargestLoss, 1e-12)
	assert.Greater(t, report.Performance.Sharpe, 2.0)
	assert.Greater(t, report.Performance.TotalReturn, 0.0)

	assert.Equal(t, 9, report.RatingPoints)
	assert.Equal(t, RatingExcellent, report.OverallRating)
	require.NotNil(t, report.WalkForward)
	assert.False(t, report.WalkForward.Overfit)
	require.NotNil(t, report.TransactionCosts)
	assert.False(t, report.TransactionCosts.EdgeErased)
	require.NotNil(t, report.Permutation)

	assert.NotEmpty(t, report.Strengths)
	assert.NotEmpty(t, report.Recommendations)

	_, err := json.Marshal(report)
	assert.NoError(t, err)
}

func TestGenerateBacktestReport_Deterministic(t *testing.T) {
	trades := tradesFromReturns(t, 0.01, -0.02, 0.015)
	opts := ReportOptions{Permutation: &montecarlo.PermutationOptions{Iterations: 50}}

	first := GenerateBacktestReport(trades, opts, random.New(4))
	second := GenerateBacktestReport(trades, opts, random.New(4))

	assert.Equal(t, first, second)
	assert.Contains(t, first.Weaknesses, "Small sample (3 trades)")
	assert.Contains(t, first.Recommendations, "Collect at least 30 trades before trusting these metrics")
}

func TestGenerateBacktestReport_Empty(t *testing.T) {
	report := GenerateBacktestReport(nil, ReportOptions{}, nil)

	assert.Equal(t, RatingVeryPoor, report.OverallRating)
	assert.Equal(t, []string{"No trades to evaluate"}, report.Weaknesses)
	assert.Equal(t, DefaultInitialCapital, report.Performance.FinalEquity)
	assert.Nil(t, report.WalkForward)
}

func TestCalculatePortfolioWeights(t *testing.T) {
	signals := []SignalReturns{
		{Name: "steady", Returns: []float64{0.01, 0.02, 0.01, 0.02}},
		{Name: "wild", Returns: []float64{0.04, -0.02, 0.04, -0.02}},
		{Name: "losing", Returns: []float64{-0.01, -0.02, -0.01, -0.02}},
	}

	t.Run("Equal", func(t *testing.T) {
		w, err := CalculatePortfolioWeights(signals, WeightEqual)
		require.NoError(t, err)
		for _, pw := range w {
			assert.InDelta(t, 1.0/3.0, pw.Weight, 1e-12)
		}
	})

	t.Run("Sharpe floors negative ratios", func(t *testing.T) {
		w, err := CalculatePortfolioWeights(signals, WeightSharpe)
		require.NoError(t, err)
		assert.Equal(t, 0.0, w[2].Weight)
		assert.Greater(t, w[0].Weight, w[1].Weight)
		assert.InDelta(t, 1.0, w[0].Weight+w[1].Weight, 1e-12)
	})

	t.Run("Sharpe falls back to equal", func(t *testing.T) {
		w, err := CalculatePortfolioWeights(signals[2:], WeightSharpe)
		require.NoError(t, err)
		assert.Equal(t, 1.0, w[0].Weight)
	})

	t.Run("Risk parity is inverse volatility", func(t *testing.T) {
		w, err := CalculatePortfolioWeights(signals[:2], WeightRiskParity)
		require.NoError(t, err)
		// wild is six times as volatile as steady.
		assert.InDelta(t, 6.0/7.0, w[0].Weight, 1e-9)
		assert.InDelta(t, 1.0/7.0, w[1].Weight, 1e-9)
	})

	t.Run("Max diversification is equal weight", func(t *testing.T) {
		w, err := CalculatePortfolioWeights(signals[:2], WeightMaxDiversification)
		require.NoError(t, err)
		assert.Equal(t, 0.5, w[0].Weight)
	})

	t.Run("Unknown method", func(t *testing.T) {
		_, err := CalculatePortfolioWeights(signals, "kelly")
		assert.Error(t, err)
	})

	t.Run("No signals", func(t *testing.T) {
		w, err := CalculatePortfolioWeights(nil, WeightSharpe)
		require.NoError(t, err)
		assert.Empty(t, w)
	})
}

func TestAnalyzeTransactionCosts(t *testing.T) {
	trades := tradesFromReturns(t, 0.02, -0.01)

	t.Run("Percentage commission and slippage", func(t *testing.T) {
		ca := AnalyzeTransactionCosts(trades, CostModel{PercentCommission: 0.001, SlippageBps: 5})

		// Commission: 0.1% of (100+102) and (100+99); slippage: 5bps of the same.
		assert.InDelta(t, 0.401, ca.TotalCommission, 1e-9)
		assert.InDelta(t, 0.2005, ca.TotalSlippage, 1e-9)
		assert.InDelta(t, 0.6015, ca.TotalCosts, 1e-9)
		assert.InDelta(t, 1.0, ca.GrossPnL, 1e-9)
		assert.InDelta(t, 0.3985, ca.NetPnL, 1e-9)
		assert.InDelta(t, 0.6015, ca.CostDrag, 1e-9)
		assert.False(t, ca.EdgeErased)
		assert.Equal(t, 0.5, ca.NetWinRate)
	})

	t.Run("Min and max caps", func(t *testing.T) {
		floor := AnalyzeTransactionCosts(trades[:1], CostModel{FixedCommission: 0.01, MinCommission: 1})
		assert.InDelta(t, 2.0, floor.TotalCommission, 1e-9)
		assert.True(t, floor.EdgeErased)
		assert.Equal(t, 0.0, floor.NetWinRate)

		capped := AnalyzeTransactionCosts(trades[:1], CostModel{PercentCommission: 0.5, MaxCommission: 0.25})
		assert.InDelta(t, 0.5, capped.TotalCommission, 1e-9)
	})

	t.Run("No trades", func(t *testing.T) {
		ca := AnalyzeTransactionCosts(nil, CostModel{FixedCommission: 1})
		assert.Equal(t, 0.0, ca.TotalCosts)
		assert.Equal(t, 0.0, ca.CostPerTrade)
	})
}
