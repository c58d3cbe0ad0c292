// Package bayes implements Beta-Binomial inference over signal win rates.
package bayes

import (
	"math"

	"signal-analytics-go/internal/models"
	"signal-analytics-go/internal/random"
	"signal-analytics-go/internal/stats"
)

const (
	// NormalApproxMinTrials is the trial count above which the interval uses
	// the normal approximation to the Beta posterior.
	NormalApproxMinTrials = 30
	// SmallSampleBand is the half-width of the interval used at or below
	// NormalApproxMinTrials. It is an approximation, not a credible interval.
	SmallSampleBand = 0.15

	DefaultABIterations = 10000

	z95 = 1.96
)

// Interval construction methods reported in models.Posterior.Method.
const (
	MethodNormal    = "normal"
	MethodFixedBand = "fixed_band"
	MethodPrior     = "prior"
)

// Counts is a win/loss tally.
type Counts struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
}

// Trials is wins plus losses.
func (c Counts) Trials() int { return c.Wins + c.Losses }

// WinProbability returns the posterior under a uniform Beta(1,1) prior.
func WinProbability(wins, losses int) models.Posterior {
	return WinProbabilityWithPrior(wins, losses, 1, 1)
}

// WinProbabilityWithPrior returns the Beta(priorAlpha+wins, priorBeta+losses)
// posterior with its mean, mode and a 95% interval. Non-positive priors fall
// back to 1.
func WinProbabilityWithPrior(wins, losses int, priorAlpha, priorBeta float64) models.Posterior {
	if priorAlpha <= 0 || math.IsNaN(priorAlpha) {
		priorAlpha = 1
	}
	if priorBeta <= 0 || math.IsNaN(priorBeta) {
		priorBeta = 1
	}
	wins = max(wins, 0)
	losses = max(losses, 0)

	a := priorAlpha + float64(wins)
	b := priorBeta + float64(losses)
	mean := a / (a + b)

	mode := mean
	if a > 1 && b > 1 {
		mode = (a - 1) / (a + b - 2)
	}

	p := models.Posterior{
		Alpha:  a,
		Beta:   b,
		Mean:   mean,
		Mode:   mode,
		Trials: wins + losses,
	}

	switch {
	case p.Trials == 0:
		p.Lower, p.Upper, p.Method = 0, 1, MethodPrior
	case p.Trials > NormalApproxMinTrials:
		sd := math.Sqrt(a * b / ((a + b) * (a + b) * (a + b + 1)))
		p.Lower = stats.Clamp(mean-z95*sd, 0, 1)
		p.Upper = stats.Clamp(mean+z95*sd, 0, 1)
		p.Method = MethodNormal
	default:
		p.Lower = stats.Clamp(mean-SmallSampleBand, 0, 1)
		p.Upper = stats.Clamp(mean+SmallSampleBand, 0, 1)
		p.Method = MethodFixedBand
	}
	return p
}

// ABResult is the outcome of a Monte Carlo comparison of two posteriors.
type ABResult struct {
	ProbabilityABetter float64          `json:"probabilityABetter"`
	ExpectedLift       float64          `json:"expectedLift"`
	Significant        bool             `json:"significant"`
	Iterations         int              `json:"iterations"`
	PosteriorA         models.Posterior `json:"posteriorA"`
	PosteriorB         models.Posterior `json:"posteriorB"`
}

// ABTest draws iterations samples from each uniform-prior posterior and
// reports how often A's win probability exceeds B's. ExpectedLift is the mean
// of (pA-pB)/pB over the draws where A won. The result is significant when
// the probability falls outside [0.05, 0.95].
func ABTest(a, b Counts, iterations int, src random.Source) ABResult {
	if iterations <= 0 {
		iterations = DefaultABIterations
	}
	if src == nil {
		src = random.NewTimeSeeded()
	}

	postA := WinProbability(a.Wins, a.Losses)
	postB := WinProbability(b.Wins, b.Losses)

	var aWins int
	var liftSum float64
	var liftN int
	for i := 0; i < iterations; i++ {
		pa := random.Beta(src, postA.Alpha, postA.Beta)
		pb := random.Beta(src, postB.Alpha, postB.Beta)
		if pa > pb {
			aWins++
			if pb > 0 {
				liftSum += (pa - pb) / pb
				liftN++
			}
		}
	}

	prob := float64(aWins) / float64(iterations)
	res := ABResult{
		ProbabilityABetter: prob,
		Significant:        prob < 0.05 || prob > 0.95,
		Iterations:         iterations,
		PosteriorA:         postA,
		PosteriorB:         postB,
	}
	if liftN > 0 {
		res.ExpectedLift = liftSum / float64(liftN)
	}
	return res
}
