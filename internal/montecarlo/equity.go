package montecarlo

import (
	"math"
	"sort"

	"signal-analytics-go/internal/random"
	"signal-analytics-go/internal/stats"
)

const (
	DefaultStartingEquity = 10000.0
	DefaultNumPaths       = 1000
	DefaultRuinDrawdown   = 0.5
)

// EquityOptions configures EquityCurve. Zero values take the defaults;
// NumTrades defaults to the length of the historical sample.
type EquityOptions struct {
	StartingEquity float64 `json:"startingEquity"`
	NumTrades      int     `json:"numTrades"`
	NumPaths       int     `json:"numPaths"`
	// RuinDrawdown is the drawdown fraction that counts a path as ruined.
	RuinDrawdown float64 `json:"ruinDrawdown"`
	// KeepPaths is how many simulated equity paths to return verbatim.
	KeepPaths int `json:"keepPaths"`
}

func (o EquityOptions) withDefaults(n int) EquityOptions {
	if o.StartingEquity <= 0 || !stats.IsFinite(o.StartingEquity) {
		o.StartingEquity = DefaultStartingEquity
	}
	if o.NumTrades <= 0 {
		o.NumTrades = n
	}
	if o.NumPaths <= 0 {
		o.NumPaths = DefaultNumPaths
	}
	if o.RuinDrawdown <= 0 || o.RuinDrawdown > 1 {
		o.RuinDrawdown = DefaultRuinDrawdown
	}
	o.KeepPaths = min(max(o.KeepPaths, 0), o.NumPaths)
	return o
}

// EquitySimulation aggregates the simulated paths.
type EquitySimulation struct {
	StartingEquity float64 `json:"startingEquity"`
	NumTrades      int     `json:"numTrades"`
	NumPaths       int     `json:"numPaths"`

	MeanFinalEquity   float64 `json:"meanFinalEquity"`
	MedianFinalEquity float64 `json:"medianFinalEquity"`
	Percentile5       float64 `json:"percentile5"`
	Percentile25      float64 `json:"percentile25"`
	Percentile75      float64 `json:"percentile75"`
	Percentile95      float64 `json:"percentile95"`

	ProbabilityOfProfit float64 `json:"probabilityOfProfit"`
	ProbabilityOfRuin   float64 `json:"probabilityOfRuin"`

	MeanMaxDrawdown   float64 `json:"meanMaxDrawdown"`
	MedianMaxDrawdown float64 `json:"medianMaxDrawdown"`
	MaxDrawdownP95    float64 `json:"maxDrawdownP95"`
	WorstMaxDrawdown  float64 `json:"worstMaxDrawdown"`

	Paths [][]float64 `json:"paths,omitempty"`

	Insufficient bool   `json:"insufficient,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// EquityCurve simulates NumPaths equity paths of NumTrades returns each,
// drawn i.i.d. with replacement from the historical returns, and compounds
// them from StartingEquity. Drawdowns are reported as fractions.
func EquityCurve(returns []float64, opts EquityOptions, src random.Source) EquitySimulation {
	returns = stats.Finite(returns)
	opts = opts.withDefaults(len(returns))
	sim := EquitySimulation{
		StartingEquity: opts.StartingEquity,
		NumTrades:      opts.NumTrades,
		NumPaths:       opts.NumPaths,
	}
	if len(returns) == 0 {
		sim.Insufficient = true
		sim.Reason = "no returns to resample"
		sim.NumTrades = 0
		return sim
	}
	if src == nil {
		src = random.NewTimeSeeded()
	}

	finals := make([]float64, opts.NumPaths)
	drawdowns := make([]float64, opts.NumPaths)
	var profitable, ruined int
	if opts.KeepPaths > 0 {
		sim.Paths = make([][]float64, 0, opts.KeepPaths)
	}

	for p := 0; p < opts.NumPaths; p++ {
		var path []float64
		if p < opts.KeepPaths {
			path = make([]float64, 0, opts.NumTrades+1)
			path = append(path, opts.StartingEquity)
		}

		equity, peak, maxDD := opts.StartingEquity, opts.StartingEquity, 0.0
		for i := 0; i < opts.NumTrades; i++ {
			equity *= 1 + returns[src.Intn(len(returns))]
			if equity < 0 {
				equity = 0
			}
			if equity > peak {
				peak = equity
			} else if peak > 0 {
				maxDD = math.Max(maxDD, (peak-equity)/peak)
			}
			if path != nil {
				path = append(path, equity)
			}
		}

		finals[p] = equity
		drawdowns[p] = maxDD
		if equity > opts.StartingEquity {
			profitable++
		}
		if maxDD >= opts.RuinDrawdown {
			ruined++
		}
		if path != nil {
			sim.Paths = append(sim.Paths, path)
		}
	}

	sim.MeanFinalEquity = stats.Mean(finals)
	sort.Float64s(finals)
	sim.MedianFinalEquity = stats.PercentileSorted(finals, 0.5)
	sim.Percentile5 = stats.PercentileSorted(finals, 0.05)
	sim.Percentile25 = stats.PercentileSorted(finals, 0.25)
	sim.Percentile75 = stats.PercentileSorted(finals, 0.75)
	sim.Percentile95 = stats.PercentileSorted(finals, 0.95)

	sim.ProbabilityOfProfit = float64(profitable) / float64(opts.NumPaths)
	sim.ProbabilityOfRuin = float64(ruined) / float64(opts.NumPaths)

	sim.MeanMaxDrawdown = stats.Mean(drawdowns)
	sort.Float64s(drawdowns)
	sim.MedianMaxDrawdown = stats.PercentileSorted(drawdowns, 0.5)
	sim.MaxDrawdownP95 = stats.PercentileSorted(drawdowns, 0.95)
	sim.WorstMaxDrawdown = drawdowns[len(drawdowns)-1]
	return sim
}
