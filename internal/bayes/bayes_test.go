package bayes

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"signal-analytics-go/internal/random"
)

func TestWinProbability(t *testing.T) {
	testCases := []struct {
		name      string
		wins      int
		losses    int
		mean      float64
		mode      float64
		lower     float64
		upper     float64
		method    string
		tolerance float64
	}{
		{
			name: "Uniform prior with no data", wins: 0, losses: 0,
			mean: 0.5, mode: 0.5, lower: 0, upper: 1, method: MethodPrior, tolerance: 1e-12,
		},
		{
			name: "Small sample uses fixed band", wins: 7, losses: 3,
			mean: 8.0 / 12.0, mode: 0.7, lower: 8.0/12.0 - 0.15, upper: 8.0/12.0 + 0.15,
			method: MethodFixedBand, tolerance: 1e-12,
		},
		{
			name: "Band is clamped at one", wins: 10, losses: 0,
			mean: 11.0 / 12.0, mode: 11.0 / 12.0, lower: 11.0/12.0 - 0.15, upper: 1,
			method: MethodFixedBand, tolerance: 1e-12,
		},
		{
			name: "Large sample uses normal approximation", wins: 60, losses: 40,
			mean: 61.0 / 102.0, mode: 0.6, lower: 0.5030, upper: 0.6931,
			method: MethodNormal, tolerance: 1e-3,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := WinProbability(tc.wins, tc.losses)

			assert.InDelta(t, tc.mean, p.Mean, tc.tolerance)
			assert.InDelta(t, tc.mode, p.Mode, tc.tolerance)
			assert.InDelta(t, tc.lower, p.Lower, tc.tolerance)
			assert.InDelta(t, tc.upper, p.Upper, tc.tolerance)
			assert.Equal(t, tc.method, p.Method)
			assert.Equal(t, tc.wins+tc.losses, p.Trials)
			assert.LessOrEqual(t, p.Lower, p.Mean)
			assert.GreaterOrEqual(t, p.Upper, p.Mean)
		})
	}
}

func TestWinProbabilityWithPrior(t *testing.T) {
	p := WinProbabilityWithPrior(3, 1, 2, 2)
	assert.Equal(t, 5.0, p.Alpha)
	assert.Equal(t, 3.0, p.Beta)
	assert.InDelta(t, 5.0/8.0, p.Mean, 1e-12)
	assert.InDelta(t, 4.0/6.0, p.Mode, 1e-12)

	fallback := WinProbabilityWithPrior(0, 0, -1, 0)
	assert.Equal(t, 1.0, fallback.Alpha)
	assert.Equal(t, 1.0, fallback.Beta)
}

func TestABTest(t *testing.T) {
	t.Run("Clearly better signal is significant", func(t *testing.T) {
		res := ABTest(Counts{Wins: 80, Losses: 20}, Counts{Wins: 40, Losses: 60}, 5000, random.New(7))

		assert.Greater(t, res.ProbabilityABetter, 0.99)
		assert.True(t, res.Significant)
		assert.Greater(t, res.ExpectedLift, 0.5)
		assert.Equal(t, 5000, res.Iterations)
	})

	t.Run("Identical signals are not significant", func(t *testing.T) {
		res := ABTest(Counts{Wins: 20, Losses: 20}, Counts{Wins: 20, Losses: 20}, 5000, random.New(11))

		assert.InDelta(t, 0.5, res.ProbabilityABetter, 0.05)
		assert.False(t, res.Significant)
	})

	t.Run("Deterministic with the same seed", func(t *testing.T) {
		a, b := Counts{Wins: 5, Losses: 3}, Counts{Wins: 4, Losses: 4}
		first := ABTest(a, b, 1000, random.New(3))
		second := ABTest(a, b, 1000, random.New(3))

		assert.Equal(t, first, second)
	})

	t.Run("Defaults iterations", func(t *testing.T) {
		res := ABTest(Counts{}, Counts{}, 0, random.New(1))
		assert.Equal(t, DefaultABIterations, res.Iterations)
	})
}
