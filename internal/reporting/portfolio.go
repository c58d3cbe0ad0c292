package reporting

import (
	"fmt"

	"signal-analytics-go/internal/stats"
)

// WeightMethod selects how CalculatePortfolioWeights allocates.
type WeightMethod string

const (
	WeightEqual              WeightMethod = "equal"
	WeightSharpe             WeightMethod = "sharpe"
	WeightRiskParity         WeightMethod = "risk_parity"
	WeightMaxDiversification WeightMethod = "max_diversification"
)

// SignalReturns is one allocation candidate.
type SignalReturns struct {
	Name    string    `json:"name"`
	Returns []float64 `json:"returns"`
}

// PortfolioWeight is the allocation for one signal. Weights sum to 1.
type PortfolioWeight struct {
	Name       string  `json:"name"`
	Weight     float64 `json:"weight"`
	Sharpe     float64 `json:"sharpe"`
	Volatility float64 `json:"volatility"`
}

// CalculatePortfolioWeights allocates across signals in input order.
//
// Sharpe weighting floors negative ratios at zero. Risk parity is the
// simplified inverse-volatility form; zero-volatility signals get no
// weight. Max diversification currently allocates equally until a
// covariance optimizer exists. Every method falls back to equal weights when
// nothing scores above zero.
func CalculatePortfolioWeights(signals []SignalReturns, method WeightMethod) ([]PortfolioWeight, error) {
	out := make([]PortfolioWeight, len(signals))
	if len(signals) == 0 {
		return out, nil
	}

	scores := make([]float64, len(signals))
	for i, s := range signals {
		out[i] = PortfolioWeight{
			Name:       s.Name,
			Sharpe:     stats.SharpeRatio(s.Returns, 0),
			Volatility: stats.StdDev(s.Returns),
		}
		switch method {
		case WeightEqual, WeightMaxDiversification, "":
			scores[i] = 1
		case WeightSharpe:
			scores[i] = max(out[i].Sharpe, 0)
		case WeightRiskParity:
			if out[i].Volatility > 0 {
				scores[i] = 1 / out[i].Volatility
			}
		default:
			return nil, fmt.Errorf("unknown weight method %q", method)
		}
	}

	total := stats.Sum(scores)
	for i := range out {
		if total > 0 && stats.IsFinite(total) {
			out[i].Weight = scores[i] / total
		} else {
			out[i].Weight = 1 / float64(len(out))
		}
	}
	return out, nil
}
