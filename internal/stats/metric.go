package stats

import "fmt"

// Metric names a scalar statistic of a return series.
type Metric string

const (
	MetricWinRate      Metric = "win_rate"
	MetricMeanReturn   Metric = "mean_return"
	MetricTotalReturn  Metric = "total_return"
	MetricSharpe       Metric = "sharpe"
	MetricSortino      Metric = "sortino"
	MetricProfitFactor Metric = "profit_factor"
	MetricCalmar       Metric = "calmar"
)

// Metrics lists every supported metric.
func Metrics() []Metric {
	return []Metric{
		MetricWinRate, MetricMeanReturn, MetricTotalReturn,
		MetricSharpe, MetricSortino, MetricProfitFactor, MetricCalmar,
	}
}

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	for _, m := range Metrics() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

// Compute evaluates the metric on a return series. Unknown metrics yield 0.
func (m Metric) Compute(returns []float64) float64 {
	switch m {
	case MetricWinRate:
		return WinRate(returns)
	case MetricMeanReturn:
		return Mean(returns)
	case MetricTotalReturn:
		return Sum(returns)
	case MetricSharpe:
		return SharpeRatio(returns, 0)
	case MetricSortino:
		return SortinoRatio(returns, 0)
	case MetricProfitFactor:
		return ProfitFactor(returns)
	case MetricCalmar:
		dd := MaxDrawdown(EquityCurve(returns, 1))
		return CalmarRatio(returns, dd.Percent)
	default:
		return 0
	}
}
