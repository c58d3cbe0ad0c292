package performance

import (
	"math"

	"signal-analytics-go/internal/bayes"
	"signal-analytics-go/internal/models"
	"signal-analytics-go/internal/stats"
)

// MinReliableTrades is the sample size below which scores are scaled down.
const MinReliableTrades = 30

// Quality score weights; they sum to 0.95.
const (
	weightWinRate      = 0.25
	weightProfitFactor = 0.20
	weightSharpe       = 0.15
	weightSortino      = 0.10
	weightCalmar       = 0.10
	weightOmega        = 0.05
	weightSample       = 0.10
)

// ScoreInputs are the statistics the quality score is built from.
type ScoreInputs struct {
	WinRate      float64
	ProfitFactor float64
	Sharpe       float64
	Sortino      float64
	Calmar       float64
	Omega        float64
	SampleSize   int
}

// QualityScore combines the inputs into a 0-100 score. Each component is
// normalized into [0,1], weighted, and the total is scaled down linearly
// while the sample is smaller than MinReliableTrades.
func QualityScore(in ScoreInputs) float64 {
	if in.SampleSize <= 0 {
		return 0
	}

	sample := 0.5
	if in.SampleSize >= MinReliableTrades {
		sample = 1
	}

	score := weightWinRate*unit(in.WinRate) +
		weightProfitFactor*unit(in.ProfitFactor/3) +
		weightSharpe*unit(in.Sharpe/2) +
		weightSortino*unit(in.Sortino/3) +
		weightCalmar*unit(in.Calmar/3) +
		weightOmega*unit(in.Omega/3) +
		weightSample*sample

	scale := math.Min(1, float64(in.SampleSize)/MinReliableTrades)
	return stats.Clamp(score*100*scale, 0, 100)
}

// unit clamps v into [0,1]; +Inf saturates at 1 and NaN counts as 0.
func unit(v float64) float64 {
	return stats.Clamp(v, 0, 1)
}

// buildReport computes the full report for a set of trades of one type.
func buildReport(t models.SignalType, trades []models.TradeRecord) models.PerformanceReport {
	if len(trades) == 0 {
		return models.EmptyReport(t)
	}

	returns := models.Returns(trades)
	n := len(trades)

	r := models.PerformanceReport{SignalType: t, SampleSize: n}

	var wins, losses []float64
	var mae, mfe float64
	for i, tr := range trades {
		r.TotalPnL += tr.PnL
		mae += tr.MAE
		mfe += tr.MFE
		if tr.IsWin() {
			r.Wins++
		}
		switch {
		case returns[i] > 0:
			wins = append(wins, returns[i])
		case returns[i] < 0:
			losses = append(losses, returns[i])
		}
	}
	r.Losses = n - r.Wins
	r.WinRate = float64(r.Wins) / float64(n)
	r.AverageMAE = mae / float64(n)
	r.AverageMFE = mfe / float64(n)

	curve := stats.EquityCurve(returns, 1)
	dd := stats.MaxDrawdown(curve)

	r.TotalReturn = curve[len(curve)-1] - 1
	r.AverageReturn = stats.Mean(returns)
	r.AverageWin = stats.Mean(wins)
	r.AverageLoss = stats.Mean(losses)
	r.Expectancy = r.WinRate*r.AverageWin + (1-r.WinRate)*r.AverageLoss

	r.ProfitFactor = models.Ratio(stats.ProfitFactor(returns))
	r.SharpeRatio = stats.SharpeRatio(returns, 0)
	r.SortinoRatio = stats.SortinoRatio(returns, 0)
	r.CalmarRatio = stats.CalmarRatio(returns, dd.Percent)
	r.OmegaRatio = models.Ratio(stats.OmegaRatio(returns, 0))
	r.MaxDrawdown = dd.Amount
	r.MaxDrawdownPercent = dd.Percent

	r.Posterior = bayes.WinProbability(r.Wins, r.Losses)
	r.QualityScore = QualityScore(ScoreInputs{
		WinRate:      r.WinRate,
		ProfitFactor: float64(r.ProfitFactor),
		Sharpe:       r.SharpeRatio,
		Sortino:      r.SortinoRatio,
		Calmar:       r.CalmarRatio,
		Omega:        float64(r.OmegaRatio),
		SampleSize:   n,
	})
	r.Rating = models.RatingForScore(r.QualityScore)
	return r
}
