// Package forecast provides small extrapolators over cumulative-return series.
package forecast

import (
	"fmt"
	"math"
	"strings"

	"signal-analytics-go/internal/stats"
)

// Method names a forecasting model.
type Method string

const (
	MethodSMA    Method = "sma"
	MethodEMA    Method = "ema"
	MethodLinear Method = "linear"
	MethodAR1    Method = "ar1"
)

const (
	DefaultWindow  = 10
	DefaultHorizon = 5
	// MaxHorizon bounds how far any forecaster projects.
	MaxHorizon = 250

	z95 = 1.96
)

// Forecaster defines the interface for a forecasting model.
type Forecaster interface {
	// Name returns the method implemented by the forecaster.
	Name() Method

	// MinSamples is the shortest series the model can fit.
	MinSamples() int

	// Forecast fits the series and extrapolates horizon steps ahead.
	Forecast(series []float64, horizon int) Result
}

// TrendFit is the fitted OLS line y = Intercept + Slope*t.
type TrendFit struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"rSquared"`
}

// ARFit is the fitted AR(1) model y_t = Constant + Phi*y_{t-1}.
type ARFit struct {
	Constant float64 `json:"constant"`
	Phi      float64 `json:"phi"`
}

// Result holds a point forecast per step with a 95% band around it.
type Result struct {
	Method       Method    `json:"method"`
	Horizon      int       `json:"horizon"`
	Values       []float64 `json:"values"`
	Lower        []float64 `json:"lower"`
	Upper        []float64 `json:"upper"`
	Residual     float64   `json:"residualStdDev"`
	Insufficient bool      `json:"insufficient,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Trend        *TrendFit `json:"trend,omitempty"`
	AR           *ARFit    `json:"ar,omitempty"`
}

// New returns the forecaster for a method. Window applies to SMA and EMA.
func New(method Method, window int) (Forecaster, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	switch Method(strings.ToLower(string(method))) {
	case MethodSMA, "":
		return SMA{Window: window}, nil
	case MethodEMA:
		return EMA{Window: window}, nil
	case MethodLinear:
		return LinearTrend{}, nil
	case MethodAR1:
		return AR1{}, nil
	default:
		return nil, fmt.Errorf("unknown forecast method %q", method)
	}
}

// Cumulative compounds per-trade returns into a cumulative-return series.
func Cumulative(returns []float64) []float64 {
	out := make([]float64, len(returns))
	equity := 1.0
	for i, r := range returns {
		equity *= 1 + r
		out[i] = equity - 1
	}
	return out
}

func prepare(method Method, minSamples int, series []float64, horizon int) ([]float64, Result, bool) {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	horizon = min(horizon, MaxHorizon)
	res := Result{Method: method, Horizon: horizon}
	clean := stats.Finite(series)
	if len(clean) < minSamples {
		res.Insufficient = true
		res.Reason = fmt.Sprintf("need at least %d observations, have %d", minSamples, len(clean))
		return nil, res, false
	}
	return clean, res, true
}

// band fills Lower/Upper as value +/- 1.96*sigma*sqrt(h). A projection that
// leaves the finite range is dropped and reported as Insufficient.
func (r *Result) band(sigma float64) {
	r.Residual = sigma
	r.Lower = make([]float64, len(r.Values))
	r.Upper = make([]float64, len(r.Values))
	for i, v := range r.Values {
		w := z95 * sigma * math.Sqrt(float64(i+1))
		r.Lower[i] = v - w
		r.Upper[i] = v + w
		if !stats.IsFinite(r.Lower[i]) || !stats.IsFinite(r.Upper[i]) {
			r.Values, r.Lower, r.Upper = nil, nil, nil
			r.Insufficient = true
			r.Reason = fmt.Sprintf("projection diverged at step %d", i+1)
			return
		}
	}
}

func constant(v float64, horizon int) []float64 {
	out := make([]float64, horizon)
	for i := range out {
		out[i] = v
	}
	return out
}

// SMA forecasts the mean of the most recent Window observations.
type SMA struct {
	Window int
}

func (SMA) Name() Method    { return MethodSMA }
func (SMA) MinSamples() int { return 1 }

func (s SMA) Forecast(series []float64, horizon int) Result {
	clean, res, ok := prepare(MethodSMA, s.MinSamples(), series, horizon)
	if !ok {
		return res
	}
	w := min(max(s.Window, 1), len(clean))
	recent := clean[len(clean)-w:]
	res.Values = constant(stats.Mean(recent), res.Horizon)
	res.band(stats.StdDev(recent))
	return res
}

// EMA forecasts the current exponential average, alpha = 2/(Window+1).
type EMA struct {
	Window int
}

func (EMA) Name() Method    { return MethodEMA }
func (EMA) MinSamples() int { return 1 }

func (e EMA) Forecast(series []float64, horizon int) Result {
	clean, res, ok := prepare(MethodEMA, e.MinSamples(), series, horizon)
	if !ok {
		return res
	}
	w := min(max(e.Window, 1), len(clean))
	alpha := 2 / float64(w+1)

	ema := clean[0]
	errs := make([]float64, 0, len(clean)-1)
	for _, v := range clean[1:] {
		errs = append(errs, v-ema)
		ema = alpha*v + (1-alpha)*ema
	}
	res.Values = constant(ema, res.Horizon)
	res.band(rms(errs))
	return res
}

// LinearTrend fits an OLS line against the observation index.
type LinearTrend struct{}

func (LinearTrend) Name() Method    { return MethodLinear }
func (LinearTrend) MinSamples() int { return 3 }

func (l LinearTrend) Forecast(series []float64, horizon int) Result {
	clean, res, ok := prepare(MethodLinear, l.MinSamples(), series, horizon)
	if !ok {
		return res
	}
	x := make([]float64, len(clean))
	for i := range x {
		x[i] = float64(i)
	}
	slope, intercept := ols(x, clean)

	var ssRes, ssTot float64
	mean := stats.Mean(clean)
	for i, y := range clean {
		e := y - (intercept + slope*x[i])
		ssRes += e * e
		ssTot += (y - mean) * (y - mean)
	}
	r2 := 1.0
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}
	res.Trend = &TrendFit{Slope: slope, Intercept: intercept, RSquared: r2}

	n := float64(len(clean))
	res.Values = make([]float64, res.Horizon)
	for h := range res.Values {
		res.Values[h] = intercept + slope*(n-1+float64(h+1))
	}
	res.band(math.Sqrt(ssRes / (n - 2)))
	return res
}

// AR1 fits y_t = c + phi*y_{t-1} by OLS on lag pairs and iterates forward.
type AR1 struct{}

func (AR1) Name() Method    { return MethodAR1 }
func (AR1) MinSamples() int { return 3 }

func (a AR1) Forecast(series []float64, horizon int) Result {
	clean, res, ok := prepare(MethodAR1, a.MinSamples(), series, horizon)
	if !ok {
		return res
	}
	prev := clean[:len(clean)-1]
	next := clean[1:]
	phi, c := ols(prev, next)
	res.AR = &ARFit{Constant: c, Phi: phi}

	errs := make([]float64, len(next))
	for i := range next {
		errs[i] = next[i] - (c + phi*prev[i])
	}

	res.Values = make([]float64, res.Horizon)
	y := clean[len(clean)-1]
	for h := range res.Values {
		y = c + phi*y
		res.Values[h] = y
	}
	res.band(rms(errs))
	return res
}

// ols regresses y on x and returns slope and intercept. A constant x yields
// slope 0 and the mean of y.
func ols(x, y []float64) (slope, intercept float64) {
	mx, my := stats.Mean(x), stats.Mean(y)
	var sxy, sxx float64
	for i := range x {
		dx := x[i] - mx
		sxy += dx * (y[i] - my)
		sxx += dx * dx
	}
	if sxx == 0 {
		return 0, my
	}
	slope = sxy / sxx
	return slope, my - slope*mx
}

func rms(errs []float64) float64 {
	if len(errs) == 0 {
		return 0
	}
	var s float64
	for _, e := range errs {
		s += e * e
	}
	return math.Sqrt(s / float64(len(errs)))
}
