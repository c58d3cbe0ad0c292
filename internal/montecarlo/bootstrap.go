// Package montecarlo contains the resampling engines: bootstrap confidence
// intervals, equity-path simulation and permutation significance tests.
package montecarlo

import (
	"math"
	"sort"

	"signal-analytics-go/internal/random"
	"signal-analytics-go/internal/stats"
)

const (
	DefaultBootstrapIterations = 1000
	DefaultConfidence          = 0.95
)

// Statistic maps a sample onto a scalar.
type Statistic func([]float64) float64

// BootstrapOptions configures BootstrapConfidenceInterval. Zero values take
// the package defaults.
type BootstrapOptions struct {
	Iterations int     `json:"iterations"`
	Confidence float64 `json:"confidence"`
}

func (o BootstrapOptions) withDefaults() BootstrapOptions {
	if o.Iterations <= 0 {
		o.Iterations = DefaultBootstrapIterations
	}
	if o.Confidence <= 0 || o.Confidence >= 1 || math.IsNaN(o.Confidence) {
		o.Confidence = DefaultConfidence
	}
	return o
}

// Interval is a bootstrap percentile interval around a point estimate.
type Interval struct {
	Estimate     float64 `json:"estimate"`
	Lower        float64 `json:"lower"`
	Upper        float64 `json:"upper"`
	Confidence   float64 `json:"confidence"`
	Iterations   int     `json:"iterations"`
	StdError     float64 `json:"stdError"`
	Insufficient bool    `json:"insufficient,omitempty"`
	Reason       string  `json:"reason,omitempty"`
}

// BootstrapConfidenceInterval resamples data with replacement, evaluates fn
// on every resample and returns the (1-c)/2 and 1-(1-c)/2 order statistics.
// Non-finite resample statistics are dropped before the interval is taken.
func BootstrapConfidenceInterval(data []float64, fn Statistic, opts BootstrapOptions, src random.Source) Interval {
	opts = opts.withDefaults()
	res := Interval{Confidence: opts.Confidence, Iterations: opts.Iterations}

	if len(data) == 0 {
		res.Insufficient = true
		res.Reason = "no data"
		return res
	}
	if src == nil {
		src = random.NewTimeSeeded()
	}

	res.Estimate = fn(data)
	if len(data) == 1 {
		res.Lower, res.Upper = res.Estimate, res.Estimate
		res.Insufficient = true
		res.Reason = "single observation"
		return res
	}

	sample := make([]float64, len(data))
	values := make([]float64, 0, opts.Iterations)
	for i := 0; i < opts.Iterations; i++ {
		for j := range sample {
			sample[j] = data[src.Intn(len(data))]
		}
		if v := fn(sample); stats.IsFinite(v) {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		res.Lower, res.Upper = res.Estimate, res.Estimate
		res.Insufficient = true
		res.Reason = "statistic was not finite on any resample"
		return res
	}

	sort.Float64s(values)
	alpha := (1 - opts.Confidence) / 2
	res.Lower = orderStatistic(values, alpha)
	res.Upper = orderStatistic(values, 1-alpha)
	res.StdError = stats.StdDev(values)
	return res
}

// orderStatistic picks sorted[floor(q*n)], clamped to the slice.
func orderStatistic(sorted []float64, q float64) float64 {
	idx := int(math.Floor(q * float64(len(sorted))))
	idx = min(max(idx, 0), len(sorted)-1)
	return sorted[idx]
}
