// Package stats contains the numeric primitives used by every analytics component.
// All functions are pure and deterministic; none of them panic on empty input.
package stats

import (
	"math"
	"sort"
)

// PeriodsPerYear is the annualization factor applied to per-trade returns.
const PeriodsPerYear = 252

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

// Variance returns the sample variance (n-1 denominator).
// Fewer than two samples or a constant series yield exactly 0, so that
// rounding noise in the mean never turns into a tiny spurious deviation.
func Variance(data []float64) float64 {
	n := len(data)
	if n < 2 || isConstant(data) {
		return 0
	}
	m := Mean(data)
	sumSq := 0.0
	for _, v := range data {
		d := v - m
		sumSq += d * d
	}
	return sumSq / float64(n-1)
}

// StdDev returns the Bessel-corrected sample standard deviation.
func StdDev(data []float64) float64 {
	return math.Sqrt(Variance(data))
}

// Median returns the 50th percentile.
func Median(data []float64) float64 {
	return Percentile(data, 0.5)
}

// Percentile returns the p-quantile (p in [0,1]) using linear interpolation
// between the closest order statistics. p is clamped into [0,1].
func Percentile(data []float64, p float64) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, data)
	sort.Float64s(sorted)
	return PercentileSorted(sorted, p)
}

// PercentileSorted is Percentile for input already sorted ascending.
func PercentileSorted(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	p = clamp(p, 0, 1)

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// Correlation returns the Pearson correlation of two equally sized series.
// Mismatched lengths, fewer than two points or a zero-variance side yield 0.
func Correlation(x, y []float64) float64 {
	n := len(x)
	if n != len(y) || n < 2 {
		return 0
	}
	mx, my := Mean(x), Mean(y)
	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx := x[i] - mx
		dy := y[i] - my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0
	}
	return sxy / math.Sqrt(sxx*syy)
}

// Skewness returns the sample skewness (Fisher-Pearson, bias-adjusted).
func Skewness(data []float64) float64 {
	n := len(data)
	if n < 3 {
		return 0
	}
	m := Mean(data)
	sd := StdDev(data)
	if sd == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		z := (v - m) / sd
		sum += z * z * z
	}
	fn := float64(n)
	return fn / ((fn - 1) * (fn - 2)) * sum
}

// Kurtosis returns the sample excess kurtosis.
func Kurtosis(data []float64) float64 {
	n := len(data)
	if n < 4 {
		return 0
	}
	m := Mean(data)
	sd := StdDev(data)
	if sd == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range data {
		z := (v - m) / sd
		sum += z * z * z * z
	}
	fn := float64(n)
	a := fn * (fn + 1) / ((fn - 1) * (fn - 2) * (fn - 3))
	b := 3 * (fn - 1) * (fn - 1) / ((fn - 2) * (fn - 3))
	return a*sum - b
}

// WinRate returns the fraction of strictly positive returns.
func WinRate(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	wins := 0
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(returns))
}

// Sum adds up the series.
func Sum(data []float64) float64 {
	total := 0.0
	for _, v := range data {
		total += v
	}
	return total
}

// ValueAtRisk returns the historical loss at the given confidence, as a
// positive number (0.95 -> the magnitude of the 5th percentile return).
func ValueAtRisk(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	q := Percentile(returns, 1-confidence)
	return math.Max(0, -q)
}

// ConditionalValueAtRisk returns the mean loss of the returns at or beyond
// the VaR quantile, as a positive number.
func ConditionalValueAtRisk(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	q := Percentile(returns, 1-confidence)
	var tail []float64
	for _, r := range returns {
		if r <= q {
			tail = append(tail, r)
		}
	}
	return math.Max(0, -Mean(tail))
}

// Streaks holds the longest winning and losing runs of a return series.
type Streaks struct {
	MaxWins   int `json:"maxConsecutiveWins"`
	MaxLosses int `json:"maxConsecutiveLosses"`
}

// MaxConsecutive finds the longest runs of wins (r > 0) and losses (r <= 0).
func MaxConsecutive(returns []float64) Streaks {
	var s Streaks
	wins, losses := 0, 0
	for _, r := range returns {
		if r > 0 {
			wins++
			losses = 0
		} else {
			losses++
			wins = 0
		}
		s.MaxWins = max(s.MaxWins, wins)
		s.MaxLosses = max(s.MaxLosses, losses)
	}
	return s
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Finite drops NaN and infinite values.
func Finite(data []float64) []float64 {
	out := make([]float64, 0, len(data))
	for _, v := range data {
		if IsFinite(v) {
			out = append(out, v)
		}
	}
	return out
}

func isConstant(data []float64) bool {
	for _, v := range data[1:] {
		if v != data[0] {
			return false
		}
	}
	return true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp limits v to [lo, hi]. NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return clamp(v, lo, hi)
}
