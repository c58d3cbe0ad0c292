// Package walkforward slides train/test windows across a trade sequence and
// scores how well in-sample performance carries out of sample.
package walkforward

import (
	"fmt"

	"signal-analytics-go/internal/models"
	"signal-analytics-go/internal/stats"
)

const (
	DefaultWindowSize = 30
	DefaultStepSize   = 10
	DefaultMinTrades  = 10

	// OverfitThreshold is the mean efficiency below which a strategy is
	// flagged as possibly overfit.
	OverfitThreshold = 0.7
)

// Options configures Run. TestSize defaults to StepSize.
type Options struct {
	WindowSize int          `json:"windowSize"`
	StepSize   int          `json:"stepSize"`
	TestSize   int          `json:"testSize"`
	MinTrades  int          `json:"minTrades"`
	Metric     stats.Metric `json:"metric"`
}

func (o Options) withDefaults() Options {
	if o.WindowSize <= 0 {
		o.WindowSize = DefaultWindowSize
	}
	if o.StepSize <= 0 {
		o.StepSize = DefaultStepSize
	}
	if o.TestSize <= 0 {
		o.TestSize = o.StepSize
	}
	if o.MinTrades <= 0 {
		o.MinTrades = DefaultMinTrades
	}
	if o.Metric == "" {
		o.Metric = stats.MetricSharpe
	}
	return o
}

// WindowCount is the number of windows Run produces for n trades:
// floor((n - window - test) / step) + 1, or 0 when a single window does not fit.
func WindowCount(n int, opts Options) int {
	opts = opts.withDefaults()
	span := opts.WindowSize + opts.TestSize
	if n < span {
		return 0
	}
	return (n-span)/opts.StepSize + 1
}

// WindowMetrics summarizes one side of a window.
type WindowMetrics struct {
	Trades       int          `json:"trades"`
	WinRate      float64      `json:"winRate"`
	Sharpe       float64      `json:"sharpe"`
	Sortino      float64      `json:"sortino"`
	ProfitFactor models.Ratio `json:"profitFactor"`
	MeanReturn   float64      `json:"meanReturn"`
	// Metric is +Inf for profit factor over a loss-free side.
	Metric       models.Ratio `json:"metric"`
}

func measure(returns []float64, metric stats.Metric) WindowMetrics {
	return WindowMetrics{
		Trades:       len(returns),
		WinRate:      stats.WinRate(returns),
		Sharpe:       stats.SharpeRatio(returns, 0),
		Sortino:      stats.SortinoRatio(returns, 0),
		ProfitFactor: models.Ratio(stats.ProfitFactor(returns)),
		MeanReturn:   stats.Mean(returns),
		Metric:       models.Ratio(metric.Compute(returns)),
	}
}

// Window is one train/test split. Index ranges are half-open.
type Window struct {
	Index      int           `json:"index"`
	TrainStart int           `json:"trainStart"`
	TrainEnd   int           `json:"trainEnd"`
	TestStart  int           `json:"testStart"`
	TestEnd    int           `json:"testEnd"`
	Train      WindowMetrics `json:"train"`
	Test       WindowMetrics `json:"test"`
	// Efficiency is test/train for the chosen metric; zero when not Valid.
	Efficiency float64 `json:"efficiency"`
	Valid      bool    `json:"valid"`
}

// Result aggregates every window.
type Result struct {
	Options          Options  `json:"options"`
	Windows          []Window `json:"windows"`
	ValidWindows     int      `json:"validWindows"`
	MeanEfficiency   float64  `json:"meanEfficiency"`
	EfficiencyStdDev float64  `json:"efficiencyStdDev"`
	// Consistency is the fraction of valid windows whose test metric was positive.
	Consistency     float64 `json:"consistency"`
	RobustnessScore float64 `json:"robustnessScore"`
	Overfit         bool    `json:"overfit"`
	Insufficient    bool    `json:"insufficient,omitempty"`
	Reason          string  `json:"reason,omitempty"`
}

// Run walks the return series. Windows whose training side has fewer than
// MinTrades trades, or whose efficiency is not finite, are kept in Windows
// but excluded from the aggregates.
func Run(returns []float64, opts Options) Result {
	opts = opts.withDefaults()
	res := Result{Options: opts}

	count := WindowCount(len(returns), opts)
	if count == 0 {
		res.Insufficient = true
		res.Reason = fmt.Sprintf("need at least %d trades, have %d", opts.WindowSize+opts.TestSize, len(returns))
		return res
	}

	res.Windows = make([]Window, 0, count)
	efficiencies := make([]float64, 0, count)
	var positive int
	for i := 0; i < count; i++ {
		start := i * opts.StepSize
		w := Window{
			Index:      i,
			TrainStart: start,
			TrainEnd:   start + opts.WindowSize,
			TestStart:  start + opts.WindowSize,
			TestEnd:    start + opts.WindowSize + opts.TestSize,
		}
		w.Train = measure(returns[w.TrainStart:w.TrainEnd], opts.Metric)
		w.Test = measure(returns[w.TestStart:w.TestEnd], opts.Metric)

		if w.Train.Trades >= opts.MinTrades && w.Train.Metric != 0 {
			eff := float64(w.Test.Metric) / float64(w.Train.Metric)
			if stats.IsFinite(eff) {
				w.Efficiency = eff
				w.Valid = true
				efficiencies = append(efficiencies, eff)
				if w.Test.Metric > 0 {
					positive++
				}
			}
		}
		res.Windows = append(res.Windows, w)
	}

	res.ValidWindows = len(efficiencies)
	if res.ValidWindows == 0 {
		res.Insufficient = true
		res.Reason = "no window produced a finite efficiency"
		return res
	}

	res.MeanEfficiency = stats.Mean(efficiencies)
	res.EfficiencyStdDev = stats.StdDev(efficiencies)
	res.Consistency = float64(positive) / float64(res.ValidWindows)
	res.RobustnessScore = stats.Clamp(100*res.MeanEfficiency, 0, 100)
	res.Overfit = res.MeanEfficiency < OverfitThreshold
	return res
}

// RunTrades runs the validator over the trades' returns in the given order.
func RunTrades(trades []models.TradeRecord, opts Options) Result {
	return Run(models.Returns(trades), opts)
}
