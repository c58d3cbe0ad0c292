package api

import (
	"signal-analytics-go/internal/config"
	"signal-analytics-go/internal/features"
	"signal-analytics-go/internal/forecast"
	"signal-analytics-go/internal/montecarlo"
	"signal-analytics-go/internal/performance"
	"signal-analytics-go/internal/reporting"
	"signal-analytics-go/internal/stats"
	"signal-analytics-go/internal/walkforward"
)

// Defaults are the analysis options used when a request does not override
// them.
type Defaults struct {
	Seed         int64
	MonteCarlo   montecarlo.EquityOptions
	Bootstrap    montecarlo.BootstrapOptions
	Permutation  montecarlo.PermutationOptions
	ABIterations int
	WalkForward  walkforward.Options
	Cluster      features.ClusterOptions
	Forecast     performance.ForecastOptions
	Costs        reporting.CostModel
}

// DefaultsFromConfig translates the analytics config section.
func DefaultsFromConfig(cfg config.Analytics) Defaults {
	return Defaults{
		Seed: cfg.Seed,
		MonteCarlo: montecarlo.EquityOptions{
			StartingEquity: cfg.MonteCarlo.StartingEquity,
			NumPaths:       cfg.MonteCarlo.Paths,
			RuinDrawdown:   cfg.MonteCarlo.RuinDrawdown,
		},
		Bootstrap: montecarlo.BootstrapOptions{
			Iterations: cfg.MonteCarlo.Bootstrap,
			Confidence: cfg.MonteCarlo.Confidence,
		},
		Permutation: montecarlo.PermutationOptions{
			Iterations: cfg.MonteCarlo.Permutations,
		},
		ABIterations: cfg.Bayes.ABIterations,
		WalkForward: walkforward.Options{
			WindowSize: cfg.WalkForward.WindowSize,
			StepSize:   cfg.WalkForward.StepSize,
			MinTrades:  cfg.WalkForward.MinTrades,
			Metric:     stats.Metric(cfg.WalkForward.Metric),
		},
		Cluster: features.ClusterOptions{
			K:             cfg.Cluster.K,
			MaxIterations: cfg.Cluster.MaxIterations,
			Tolerance:     cfg.Cluster.Tolerance,
		},
		Forecast: performance.ForecastOptions{
			Method:  forecast.Method(cfg.Forecast.Method),
			Window:  cfg.Forecast.Window,
			Horizon: cfg.Forecast.Horizon,
		},
		Costs: reporting.CostModel{
			FixedCommission:   cfg.Costs.FixedCommission,
			PercentCommission: cfg.Costs.PercentCommission,
			MinCommission:     cfg.Costs.MinCommission,
			MaxCommission:     cfg.Costs.MaxCommission,
			SlippageBps:       cfg.Costs.SlippageBps,
		},
	}
}
