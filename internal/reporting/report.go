// Package reporting assembles backtest reports and cross-signal allocations.
package reporting

import (
	"fmt"
	"math"
	"time"

	"signal-analytics-go/internal/models"
	"signal-analytics-go/internal/montecarlo"
	"signal-analytics-go/internal/random"
	"signal-analytics-go/internal/stats"
	"signal-analytics-go/internal/walkforward"
)

const DefaultInitialCapital = 10000.0

// Rating is the qualitative verdict of a backtest.
type Rating string

const (
	RatingExcellent Rating = "Excellent"
	RatingGood      Rating = "Good"
	RatingFair      Rating = "Fair"
	RatingPoor      Rating = "Poor"
	RatingVeryPoor  Rating = "Very Poor"
)

// ReportOptions enables the optional sub-analyses. Nil pointers skip them.
type ReportOptions struct {
	InitialCapital float64                        `json:"initialCapital"`
	RiskFreeRate   float64                        `json:"riskFreeRate"`
	WalkForward    *walkforward.Options           `json:"walkForward,omitempty"`
	Costs          *CostModel                     `json:"costs,omitempty"`
	Permutation    *montecarlo.PermutationOptions `json:"permutation,omitempty"`
}

type PerformanceMetrics struct {
	TotalReturn      float64      `json:"totalReturn"`
	AnnualizedReturn float64      `json:"annualizedReturn"`
	TotalPnL         float64      `json:"totalPnl"`
	FinalEquity      float64      `json:"finalEquity"`
	Sharpe           float64      `json:"sharpe"`
	Sortino          float64      `json:"sortino"`
	Calmar           float64      `json:"calmar"`
	Omega            models.Ratio `json:"omega"`
}

type RiskMetrics struct {
	MaxDrawdown         float64 `json:"maxDrawdown"`
	MaxDrawdownPercent  float64 `json:"maxDrawdownPercent"`
	MaxDrawdownDuration int     `json:"maxDrawdownDuration"`
	Volatility          float64 `json:"volatility"`
	VaR95               float64 `json:"var95"`
	CVaR95              float64 `json:"cvar95"`
	Skewness            float64 `json:"skewness"`
	Kurtosis            float64 `json:"kurtosis"`
}

type TradingMetrics struct {
	TotalTrades          int           `json:"totalTrades"`
	Wins                 int           `json:"wins"`
	Losses               int           `json:"losses"`
	WinRate              float64       `json:"winRate"`
	ProfitFactor         models.Ratio  `json:"profitFactor"`
	AverageWin           float64       `json:"averageWin"`
	AverageLoss          float64       `json:"averageLoss"`
	LargestWin           float64       `json:"largestWin"`
	LargestLoss          float64       `json:"largestLoss"`
	Expectancy           float64       `json:"expectancy"`
	MaxConsecutiveWins   int           `json:"maxConsecutiveWins"`
	MaxConsecutiveLosses int           `json:"maxConsecutiveLosses"`
	AverageHoldingPeriod time.Duration `json:"averageHoldingPeriod"`
}

// BacktestReport is the assembled result of GenerateBacktestReport.
type BacktestReport struct {
	Performance      PerformanceMetrics            `json:"performance"`
	Risk             RiskMetrics                   `json:"risk"`
	Trading          TradingMetrics                `json:"trading"`
	WalkForward      *walkforward.Result           `json:"walkForward,omitempty"`
	TransactionCosts *CostAnalysis                 `json:"transactionCosts,omitempty"`
	Permutation      *montecarlo.PermutationResult `json:"permutation,omitempty"`
	RatingPoints     int                           `json:"ratingPoints"`
	OverallRating    Rating                        `json:"overallRating"`
	Strengths        []string                      `json:"strengths"`
	Weaknesses       []string                      `json:"weaknesses"`
	Recommendations  []string                      `json:"recommendations"`
}

// GenerateBacktestReport computes performance, risk and trading metrics for
// trades in the given order and runs whichever sub-analyses opts enables.
func GenerateBacktestReport(trades []models.TradeRecord, opts ReportOptions, src random.Source) BacktestReport {
	if opts.InitialCapital <= 0 {
		opts.InitialCapital = DefaultInitialCapital
	}
	returns := models.Returns(trades)

	var r BacktestReport
	r.Performance, r.Risk = performanceAndRisk(trades, returns, opts)
	r.Trading = tradingMetrics(trades, returns)

	if opts.WalkForward != nil {
		wf := walkforward.Run(returns, *opts.WalkForward)
		r.WalkForward = &wf
	}
	if opts.Costs != nil {
		ca := AnalyzeTransactionCosts(trades, *opts.Costs)
		r.TransactionCosts = &ca
	}
	if opts.Permutation != nil {
		pt := montecarlo.PermutationTest(returns, *opts.Permutation, src)
		r.Permutation = &pt
	}

	r.RatingPoints = ratingPoints(r.Performance.Sharpe, r.Trading.WinRate, float64(r.Trading.ProfitFactor), r.Trading.TotalTrades)
	r.OverallRating = ratingFor(r.RatingPoints)
	r.Strengths, r.Weaknesses, r.Recommendations = assess(r)
	return r
}

func performanceAndRisk(trades []models.TradeRecord, returns []float64, opts ReportOptions) (PerformanceMetrics, RiskMetrics) {
	curve := stats.EquityCurve(returns, opts.InitialCapital)
	dd := stats.MaxDrawdown(curve)
	final := curve[len(curve)-1]

	var pnl float64
	for _, t := range trades {
		pnl += t.PnL
	}

	perf := PerformanceMetrics{
		TotalReturn:      final/opts.InitialCapital - 1,
		AnnualizedReturn: stats.Mean(returns) * stats.PeriodsPerYear,
		TotalPnL:         pnl,
		FinalEquity:      final,
		Sharpe:           stats.SharpeRatio(returns, opts.RiskFreeRate),
		Sortino:          stats.SortinoRatio(returns, 0),
		Calmar:           stats.CalmarRatio(returns, dd.Percent),
		Omega:            models.Ratio(stats.OmegaRatio(returns, 0)),
	}
	risk := RiskMetrics{
		MaxDrawdown:         dd.Amount,
		MaxDrawdownPercent:  dd.Percent,
		MaxDrawdownDuration: dd.Duration,
		Volatility:          stats.StdDev(returns) * math.Sqrt(stats.PeriodsPerYear),
		VaR95:               stats.ValueAtRisk(returns, 0.95),
		CVaR95:              stats.ConditionalValueAtRisk(returns, 0.95),
		Skewness:            stats.Skewness(returns),
		Kurtosis:            stats.Kurtosis(returns),
	}
	return perf, risk
}

func tradingMetrics(trades []models.TradeRecord, returns []float64) TradingMetrics {
	m := TradingMetrics{
		TotalTrades:  len(trades),
		WinRate:      stats.WinRate(returns),
		ProfitFactor: models.Ratio(stats.ProfitFactor(returns)),
		Expectancy:   stats.Mean(returns),
	}

	var wins, losses []float64
	var holding time.Duration
	var held int
	for _, t := range trades {
		r := t.Return()
		switch {
		case r > 0:
			wins = append(wins, r)
		case r < 0:
			losses = append(losses, r)
		}
		m.LargestWin = math.Max(m.LargestWin, r)
		m.LargestLoss = math.Min(m.LargestLoss, r)
		if t.HoldingPeriod > 0 {
			holding += t.HoldingPeriod
			held++
		}
	}
	m.Wins, m.Losses = len(wins), len(losses)
	m.AverageWin = stats.Mean(wins)
	m.AverageLoss = stats.Mean(losses)
	if held > 0 {
		m.AverageHoldingPeriod = holding / time.Duration(held)
	}

	streaks := stats.MaxConsecutive(returns)
	m.MaxConsecutiveWins, m.MaxConsecutiveLosses = streaks.MaxWins, streaks.MaxLosses
	return m
}

// ratingPoints scores Sharpe (0-3), win rate (0-2), profit factor (0-2) and
// sample size (0-2).
func ratingPoints(sharpe, winRate, profitFactor float64, trades int) int {
	points := 0
	switch {
	case sharpe >= 2:
		points += 3
	case sharpe >= 1:
		points += 2
	case sharpe >= 0.5:
		points++
	}
	switch {
	case winRate >= 0.6:
		points += 2
	case winRate >= 0.5:
		points++
	}
	switch {
	case profitFactor >= 2:
		points += 2
	case profitFactor >= 1.5:
		points++
	}
	switch {
	case trades >= 100:
		points += 2
	case trades >= 30:
		points++
	}
	return points
}

func ratingFor(points int) Rating {
	switch {
	case points >= 8:
		return RatingExcellent
	case points >= 6:
		return RatingGood
	case points >= 4:
		return RatingFair
	case points >= 2:
		return RatingPoor
	default:
		return RatingVeryPoor
	}
}

func assess(r BacktestReport) (strengths, weaknesses, recommendations []string) {
	strengths, weaknesses, recommendations = []string{}, []string{}, []string{}
	perf, risk, tr := r.Performance, r.Risk, r.Trading
	pf := float64(tr.ProfitFactor)

	if tr.TotalTrades == 0 {
		weaknesses = append(weaknesses, "No trades to evaluate")
		recommendations = append(recommendations, "Record trades before evaluating this strategy")
		return
	}

	if perf.Sharpe >= 1.5 {
		strengths = append(strengths, fmt.Sprintf("Strong risk-adjusted returns (Sharpe %.2f)", perf.Sharpe))
	}
	if tr.WinRate >= 0.6 {
		strengths = append(strengths, fmt.Sprintf("High win rate (%.1f%%)", tr.WinRate*100))
	}
	if pf >= 2 {
		strengths = append(strengths, "Winners outweigh losers at least two to one")
	}
	if risk.MaxDrawdownPercent < 0.1 {
		strengths = append(strengths, fmt.Sprintf("Shallow maximum drawdown (%.1f%%)", risk.MaxDrawdownPercent*100))
	}

	if perf.Sharpe < 0.5 {
		weaknesses = append(weaknesses, fmt.Sprintf("Weak risk-adjusted returns (Sharpe %.2f)", perf.Sharpe))
		recommendations = append(recommendations, "Improve risk-adjusted return before allocating capital")
	}
	if tr.WinRate < 0.4 {
		weaknesses = append(weaknesses, fmt.Sprintf("Low win rate (%.1f%%)", tr.WinRate*100))
	}
	if pf < 1 {
		weaknesses = append(weaknesses, "Losing trades outweigh winners")
	}
	if tr.WinRate < 0.4 && pf < 1.5 {
		recommendations = append(recommendations, "Review entry criteria; losing trades dominate")
	}
	if risk.MaxDrawdownPercent > 0.25 {
		weaknesses = append(weaknesses, fmt.Sprintf("Deep maximum drawdown (%.1f%%)", risk.MaxDrawdownPercent*100))
		recommendations = append(recommendations, "Reduce position size or tighten stops to limit drawdown")
	}
	if tr.TotalTrades < 30 {
		weaknesses = append(weaknesses, fmt.Sprintf("Small sample (%d trades)", tr.TotalTrades))
		recommendations = append(recommendations, "Collect at least 30 trades before trusting these metrics")
	}

	if wf := r.WalkForward; wf != nil && !wf.Insufficient {
		if wf.Overfit {
			weaknesses = append(weaknesses, fmt.Sprintf("Walk-forward efficiency %.2f suggests overfitting", wf.MeanEfficiency))
			recommendations = append(recommendations, "Simplify the strategy parameters and re-validate out of sample")
		} else {
			strengths = append(strengths, fmt.Sprintf("Performance holds out of sample (robustness %.0f)", wf.RobustnessScore))
		}
	}
	if ca := r.TransactionCosts; ca != nil && ca.EdgeErased {
		weaknesses = append(weaknesses, "Transaction costs erase the gross edge")
		recommendations = append(recommendations, "Trade less frequently or use cheaper execution")
	}
	if pt := r.Permutation; pt != nil && !pt.Insufficient {
		if pt.Significant {
			strengths = append(strengths, fmt.Sprintf("Edge is significant against shuffled trade order (p=%.3f)", pt.PValue))
		} else {
			weaknesses = append(weaknesses, fmt.Sprintf("Result is not distinguishable from shuffled trade order (p=%.3f)", pt.PValue))
		}
	}

	if len(recommendations) == 0 {
		recommendations = append(recommendations, "Keep current parameters and continue monitoring live performance")
	}
	return
}
