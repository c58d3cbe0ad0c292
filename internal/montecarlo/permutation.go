package montecarlo

import (
	"signal-analytics-go/internal/models"
	"signal-analytics-go/internal/random"
	"signal-analytics-go/internal/stats"
)

const (
	DefaultPermutationIterations = 1000
	SignificanceLevel            = 0.05

	tieEpsilon = 1e-12
)

// PermutationOptions configures PermutationTest. Metric defaults to Calmar:
// most of the other metrics do not depend on trade order and would yield
// p = 1 under every shuffle.
type PermutationOptions struct {
	Iterations int          `json:"iterations"`
	Metric     stats.Metric `json:"metric"`
}

func (o PermutationOptions) withDefaults() PermutationOptions {
	if o.Iterations <= 0 {
		o.Iterations = DefaultPermutationIterations
	}
	if o.Metric == "" {
		o.Metric = stats.MetricCalmar
	}
	return o
}

// PermutationResult reports the observed metric against its shuffled null.
// Observed and NullMean are +Inf for profit factor on loss-free returns.
type PermutationResult struct {
	Metric       stats.Metric `json:"metric"`
	Observed     models.Ratio `json:"observed"`
	PValue       float64      `json:"pValue"`
	NullMean     models.Ratio `json:"nullMean"`
	Iterations   int          `json:"iterations"`
	Significant  bool         `json:"significant"`
	Insufficient bool         `json:"insufficient,omitempty"`
	Reason       string       `json:"reason,omitempty"`
}

// PermutationTest shuffles the realized returns Iterations times and reports
// the fraction of shuffles whose metric is at least the observed one.
func PermutationTest(returns []float64, opts PermutationOptions, src random.Source) PermutationResult {
	opts = opts.withDefaults()
	res := PermutationResult{Metric: opts.Metric, Iterations: opts.Iterations, PValue: 1}

	if len(returns) < 2 {
		res.Insufficient = true
		res.Reason = "need at least two returns"
		return res
	}
	if src == nil {
		src = random.NewTimeSeeded()
	}

	observed := opts.Metric.Compute(returns)
	res.Observed = models.Ratio(observed)

	shuffled := make([]float64, len(returns))
	copy(shuffled, returns)
	var atLeast int
	var sum float64
	for i := 0; i < opts.Iterations; i++ {
		random.Shuffle(src, shuffled)
		v := opts.Metric.Compute(shuffled)
		sum += v
		if v >= observed-tieEpsilon {
			atLeast++
		}
	}

	res.PValue = float64(atLeast) / float64(opts.Iterations)
	res.NullMean = models.Ratio(sum / float64(opts.Iterations))
	res.Significant = res.PValue < SignificanceLevel
	return res
}
