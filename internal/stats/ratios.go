package stats

import "math"

// SharpeRatio annualizes the mean excess return over its volatility.
// riskFreeRate is an annual rate, converted to a per-period rate.
// Returns 0 with fewer than two samples or zero standard deviation.
func SharpeRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	sd := StdDev(returns)
	if sd == 0 {
		return 0
	}
	excess := Mean(returns) - riskFreeRate/PeriodsPerYear
	return excess / sd * math.Sqrt(PeriodsPerYear)
}

// SortinoRatio is the Sharpe analogue that only penalizes returns below target.
// The downside deviation is computed over the below-target observations only.
// Returns 0 when there is no downside observation, fewer than two samples,
// or the series has zero variance.
func SortinoRatio(returns []float64, target float64) float64 {
	if len(returns) < 2 || StdDev(returns) == 0 {
		return 0
	}
	sumSq := 0.0
	count := 0
	for _, r := range returns {
		if r < target {
			d := r - target
			sumSq += d * d
			count++
		}
	}
	if count == 0 {
		return 0
	}
	downside := math.Sqrt(sumSq / float64(count))
	if downside == 0 {
		return 0
	}
	return (Mean(returns) - target) / downside * math.Sqrt(PeriodsPerYear)
}

// CalmarRatio divides the annualized mean return by the absolute max drawdown
// (a fraction, 0.2 == 20%). Returns 0 when the drawdown is 0, or when the
// series has fewer than two samples or zero variance.
func CalmarRatio(returns []float64, maxDrawdownPercent float64) float64 {
	if len(returns) < 2 || StdDev(returns) == 0 {
		return 0
	}
	dd := math.Abs(maxDrawdownPercent)
	if dd == 0 || !IsFinite(dd) {
		return 0
	}
	return Mean(returns) * PeriodsPerYear / dd
}

// OmegaRatio is the ratio of threshold-excess gains to threshold-shortfall losses.
// With no losses it returns +Inf when there are gains, else 0.
func OmegaRatio(returns []float64, threshold float64) float64 {
	gains, losses := 0.0, 0.0
	for _, r := range returns {
		if r > threshold {
			gains += r - threshold
		} else {
			losses += threshold - r
		}
	}
	if losses == 0 {
		if gains > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return gains / losses
}

// ProfitFactor divides gross gains by gross losses.
// With no losses it returns +Inf when there are gains, else 0.
func ProfitFactor(returns []float64) float64 {
	gains, losses := 0.0, 0.0
	for _, r := range returns {
		if r > 0 {
			gains += r
		} else {
			losses -= r
		}
	}
	if losses == 0 {
		if gains > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return gains / losses
}
