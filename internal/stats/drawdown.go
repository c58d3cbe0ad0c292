package stats

import "math"

// Drawdown describes the deepest peak-to-trough decline of an equity curve.
type Drawdown struct {
	Amount      float64 `json:"amount"`
	Percent     float64 `json:"percent"`
	Peak        float64 `json:"peak"`
	Trough      float64 `json:"trough"`
	PeakIndex   int     `json:"peakIndex"`
	TroughIndex int     `json:"troughIndex"`
	Duration    int     `json:"duration"`
}

// MaxDrawdown walks the curve once, tracking the running peak.
// The deepest decline is chosen by percent of peak; Duration is the number
// of samples between that peak and its trough.
func MaxDrawdown(curve []float64) Drawdown {
	if len(curve) == 0 {
		return Drawdown{}
	}

	var dd Drawdown
	peak := curve[0]
	peakIdx := 0
	dd.Peak = peak
	dd.Trough = peak

	for i, v := range curve {
		if v > peak {
			peak = v
			peakIdx = i
		}
		amount := peak - v
		pct := 0.0
		if peak > 0 {
			pct = amount / peak
		}
		if pct > dd.Percent || (peak <= 0 && amount > dd.Amount) {
			dd = Drawdown{
				Amount:      amount,
				Percent:     pct,
				Peak:        peak,
				Trough:      v,
				PeakIndex:   peakIdx,
				TroughIndex: i,
				Duration:    i - peakIdx,
			}
		}
	}
	return dd
}

// EquityCurve compounds returns onto a starting equity. The result has
// len(returns)+1 points and never goes below zero.
func EquityCurve(returns []float64, start float64) []float64 {
	curve := make([]float64, 0, len(returns)+1)
	equity := start
	curve = append(curve, equity)
	for _, r := range returns {
		equity *= 1 + r
		if equity < 0 {
			equity = 0
		}
		curve = append(curve, equity)
	}
	return curve
}

// AdverseExcursion is the worst unrealized move against the position, as a
// fraction of entry, floored at 0. high/low are the extreme prices seen
// while the trade was open.
func AdverseExcursion(entry, high, low float64, long bool) float64 {
	if entry <= 0 {
		return 0
	}
	if long {
		return math.Max(0, (entry-low)/entry)
	}
	return math.Max(0, (high-entry)/entry)
}

// FavorableExcursion is the best unrealized move in favour of the position.
func FavorableExcursion(entry, high, low float64, long bool) float64 {
	if entry <= 0 {
		return 0
	}
	if long {
		return math.Max(0, (high-entry)/entry)
	}
	return math.Max(0, (entry-low)/entry)
}
