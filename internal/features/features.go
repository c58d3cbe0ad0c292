// Package features turns trades into fixed-schema numeric vectors and groups
// them by similarity.
package features

import (
	"signal-analytics-go/internal/models"
	"signal-analytics-go/internal/stats"
)

// MaxExcursionRatio caps the MFE/MAE feature.
const MaxExcursionRatio = 10.0

// Vector is one trade's features in Schema order.
type Vector []float64

// Context carries optional market context for a trade.
type Context struct {
	Regime models.Regime
}

// MarketData holds optional per-trade context keyed by trade id.
type MarketData struct {
	Bars    map[string][]models.PriceBar
	Regimes map[string]models.Regime
}

func (m MarketData) vector(t models.TradeRecord) Vector {
	return Extract(t, m.Bars[t.ID], Context{Regime: m.Regimes[t.ID]})
}

var baseFeatures = []string{
	"holding_period_hours",
	"entry_hour",
	"entry_weekday",
	"direction",
	"volatility",
	"price_vs_sma20",
	"price_vs_ema20",
	"momentum_5",
	"momentum_10",
	"rsi_14",
	"relative_volume",
	"volume_trend",
}

var excursionFeatures = []string{"mae", "mfe", "mfe_mae_ratio"}

// Schema lists feature names in vector order. The one-hot blocks follow
// models.AllSignalTypes and models.AllRegimes.
func Schema() []string {
	names := make([]string, 0, Len())
	names = append(names, baseFeatures...)
	for _, st := range models.AllSignalTypes() {
		names = append(names, "signal_"+st.String())
	}
	names = append(names, excursionFeatures...)
	for _, r := range models.AllRegimes() {
		names = append(names, "regime_"+r.String())
	}
	return names
}

// Len is the vector length.
func Len() int {
	return len(baseFeatures) + len(models.AllSignalTypes()) + len(excursionFeatures) + len(models.AllRegimes())
}

// Named pairs a vector with the schema.
func Named(v Vector) map[string]float64 {
	out := make(map[string]float64, len(v))
	for i, name := range Schema() {
		if i < len(v) {
			out[name] = v[i]
		}
	}
	return out
}

// Extract builds the feature vector for a trade. Bars are optional market
// context; only bars at or before the entry are used when the entry time is
// known. Missing context yields zeros, never a shorter vector.
func Extract(t models.TradeRecord, bars []models.PriceBar, ctx Context) Vector {
	v := make(Vector, 0, Len())

	var hour, weekday float64
	if !t.EntryTime.IsZero() {
		hour = float64(t.EntryTime.UTC().Hour())
		weekday = float64(t.EntryTime.UTC().Weekday())
	}
	v = append(v, t.HoldingPeriod.Hours(), hour, weekday, t.Direction.Sign())

	v = append(v, marketFeatures(priorBars(bars, t))...)

	for _, st := range models.AllSignalTypes() {
		v = append(v, flag(t.SignalType == st))
	}

	v = append(v, t.MAE, t.MFE, excursionRatio(t.MAE, t.MFE))

	for _, r := range models.AllRegimes() {
		v = append(v, flag(ctx.Regime == r))
	}
	return v
}

func priorBars(bars []models.PriceBar, t models.TradeRecord) []models.PriceBar {
	if t.EntryTime.IsZero() {
		return bars
	}
	out := bars[:0:0]
	for _, b := range bars {
		if b.Time.IsZero() || !b.Time.After(t.EntryTime) {
			out = append(out, b)
		}
	}
	return out
}

func marketFeatures(bars []models.PriceBar) []float64 {
	out := make([]float64, 8)
	if len(bars) == 0 {
		return out
	}
	c := closes(bars)
	vol := volumes(bars)
	last := c[len(c)-1]

	out[0] = RealizedVolatility(c, maPeriod)
	out[1] = Deviation(last, SMA(c, maPeriod))
	out[2] = Deviation(last, EMA(tail(c, maPeriod), maPeriod))
	out[3] = Momentum(c, 5)
	out[4] = Momentum(c, 10)
	out[5] = RSI(c, rsiPeriod) / 100
	out[6] = RelativeVolume(vol, volumeWindow)
	out[7] = VolumeTrend(vol, trendWindow)
	for i, f := range out {
		if !stats.IsFinite(f) {
			out[i] = 0
		}
	}
	return out
}

func excursionRatio(mae, mfe float64) float64 {
	if mae <= 0 {
		if mfe > 0 {
			return MaxExcursionRatio
		}
		return 0
	}
	return min(mfe/mae, MaxExcursionRatio)
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Scaler holds the column statistics used by Normalize.
type Scaler struct {
	Means   []float64 `json:"means"`
	StdDevs []float64 `json:"stdDevs"`
}

// Transform z-scores a row with the fitted statistics. Zero-variance
// columns map to 0.
func (s Scaler) Transform(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		if j >= len(s.Means) || s.StdDevs[j] == 0 {
			continue
		}
		out[j] = (v - s.Means[j]) / s.StdDevs[j]
	}
	return out
}

// Normalize z-scores every column of matrix. Rows may not be ragged.
func Normalize(matrix [][]float64) ([][]float64, Scaler) {
	if len(matrix) == 0 {
		return nil, Scaler{}
	}
	cols := len(matrix[0])
	s := Scaler{Means: make([]float64, cols), StdDevs: make([]float64, cols)}
	column := make([]float64, len(matrix))
	for j := 0; j < cols; j++ {
		for i, row := range matrix {
			column[i] = row[j]
		}
		s.Means[j] = stats.Mean(column)
		s.StdDevs[j] = stats.StdDev(column)
	}

	out := make([][]float64, len(matrix))
	for i, row := range matrix {
		out[i] = s.Transform(row)
	}
	return out, s
}

func matrix(trades []models.TradeRecord, md MarketData) [][]float64 {
	out := make([][]float64, len(trades))
	for i, t := range trades {
		out[i] = md.vector(t)
	}
	return out
}
