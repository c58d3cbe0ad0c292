package features

import (
	"math"

	"signal-analytics-go/internal/models"
	"signal-analytics-go/internal/stats"
)

const (
	maPeriod     = 20
	rsiPeriod    = 14
	volumeWindow = 20
	trendWindow  = 5
)

func closes(bars []models.PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func volumes(bars []models.PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Volume
	}
	return out
}

func tail(data []float64, n int) []float64 {
	if n >= len(data) {
		return data
	}
	return data[len(data)-n:]
}

// RealizedVolatility is the sample standard deviation of the last period
// close-to-close returns.
func RealizedVolatility(closes []float64, period int) float64 {
	c := tail(closes, period+1)
	if len(c) < 3 {
		return 0
	}
	rets := make([]float64, 0, len(c)-1)
	for i := 1; i < len(c); i++ {
		if c[i-1] > 0 {
			rets = append(rets, c[i]/c[i-1]-1)
		}
	}
	return stats.StdDev(rets)
}

// SMA is the mean of the last period values, or of all of them when fewer.
func SMA(data []float64, period int) float64 {
	return stats.Mean(tail(data, period))
}

// EMA seeds with the first value and smooths with alpha = 2/(period+1).
func EMA(data []float64, period int) float64 {
	if len(data) == 0 {
		return 0
	}
	alpha := 2 / float64(period+1)
	ema := data[0]
	for _, v := range data[1:] {
		ema = alpha*v + (1-alpha)*ema
	}
	return ema
}

// Deviation is (price-ref)/ref, or 0 when ref is not positive.
func Deviation(price, ref float64) float64 {
	if ref <= 0 {
		return 0
	}
	return (price - ref) / ref
}

// Momentum is the fractional change over the last lookback bars, 0 when the
// history is too short.
func Momentum(closes []float64, lookback int) float64 {
	if lookback <= 0 || len(closes) <= lookback {
		return 0
	}
	return Deviation(closes[len(closes)-1], closes[len(closes)-1-lookback])
}

// RSI is Wilder's relative strength index in [0, 100]. It needs period+1
// closes and returns 0 otherwise.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 0
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	gain /= float64(period)
	loss /= float64(period)

	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		g, l := math.Max(d, 0), math.Max(-d, 0)
		gain = (gain*float64(period-1) + g) / float64(period)
		loss = (loss*float64(period-1) + l) / float64(period)
	}

	if loss == 0 {
		if gain == 0 {
			return 50
		}
		return 100
	}
	rs := gain / loss
	return 100 - 100/(1+rs)
}

// RelativeVolume compares the last volume with the mean of the preceding
// window.
func RelativeVolume(volumes []float64, window int) float64 {
	if len(volumes) < 2 {
		return 0
	}
	prior := tail(volumes[:len(volumes)-1], window)
	avg := stats.Mean(prior)
	if avg <= 0 {
		return 0
	}
	return volumes[len(volumes)-1] / avg
}

// VolumeTrend is the change of the mean volume of the last n bars against
// the n bars before them.
func VolumeTrend(volumes []float64, n int) float64 {
	if n <= 0 || len(volumes) < 2*n {
		return 0
	}
	recent := stats.Mean(volumes[len(volumes)-n:])
	before := stats.Mean(volumes[len(volumes)-2*n : len(volumes)-n])
	return Deviation(recent, before)
}
