package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Logger    Logger    `mapstructure:"logger"`
	Server    Server    `mapstructure:"server"`
	Database  Database  `mapstructure:"database"`
	Store     Store     `mapstructure:"store"`
	Analytics Analytics `mapstructure:"analytics"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Store selects where the aggregator snapshot is persisted.
type Store struct {
	// Backend is one of "sqlite", "http" or "memory".
	Backend        string        `mapstructure:"backend"`
	Key            string        `mapstructure:"key"`
	URL            string        `mapstructure:"url"`
	APIKey         string        `mapstructure:"api_key"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// Analytics holds the engine tunables. They are translated into explicit
// option structs by the binaries.
type Analytics struct {
	// Seed makes every simulation reproducible; 0 seeds from the clock.
	Seed            int64         `mapstructure:"seed"`
	AutoPersist     bool          `mapstructure:"auto_persist"`
	PersistInterval time.Duration `mapstructure:"persist_interval"`

	MonteCarlo  MonteCarlo  `mapstructure:"monte_carlo"`
	Bayes       Bayes       `mapstructure:"bayes"`
	WalkForward WalkForward `mapstructure:"walk_forward"`
	Cluster     Cluster     `mapstructure:"cluster"`
	Forecast    Forecast    `mapstructure:"forecast"`
	Costs       Costs       `mapstructure:"costs"`
}

type MonteCarlo struct {
	Paths          int     `mapstructure:"paths"`
	StartingEquity float64 `mapstructure:"starting_equity"`
	RuinDrawdown   float64 `mapstructure:"ruin_drawdown"`
	Bootstrap      int     `mapstructure:"bootstrap_iterations"`
	Confidence     float64 `mapstructure:"confidence"`
	Permutations   int     `mapstructure:"permutation_iterations"`
}

type Bayes struct {
	ABIterations int `mapstructure:"ab_iterations"`
}

type WalkForward struct {
	WindowSize int    `mapstructure:"window_size"`
	StepSize   int    `mapstructure:"step_size"`
	MinTrades  int    `mapstructure:"min_trades"`
	Metric     string `mapstructure:"metric"`
}

type Cluster struct {
	K             int     `mapstructure:"k"`
	MaxIterations int     `mapstructure:"max_iterations"`
	Tolerance     float64 `mapstructure:"tolerance"`
}

type Forecast struct {
	Method  string `mapstructure:"method"`
	Window  int    `mapstructure:"window"`
	Horizon int    `mapstructure:"horizon"`
}

type Costs struct {
	FixedCommission   float64 `mapstructure:"fixed_commission"`
	PercentCommission float64 `mapstructure:"percent_commission"`
	MinCommission     float64 `mapstructure:"min_commission"`
	MaxCommission     float64 `mapstructure:"max_commission"`
	SlippageBps       float64 `mapstructure:"slippage_bps"`
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults and environment apply.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.dsn", "signals.db")

	v.SetDefault("store.backend", "sqlite")
	v.SetDefault("store.key", "signal-performance")
	v.SetDefault("store.rate_limit", 20)      // requests per second
	v.SetDefault("store.rate_limit_burst", 5) // burst size
	v.SetDefault("store.timeout", 10*time.Second)

	v.SetDefault("analytics.auto_persist", true)
	v.SetDefault("analytics.persist_interval", time.Minute)
	v.SetDefault("analytics.monte_carlo.paths", 1000)
	v.SetDefault("analytics.monte_carlo.starting_equity", 10000)
	v.SetDefault("analytics.monte_carlo.ruin_drawdown", 0.5)
	v.SetDefault("analytics.monte_carlo.bootstrap_iterations", 1000)
	v.SetDefault("analytics.monte_carlo.confidence", 0.95)
	v.SetDefault("analytics.monte_carlo.permutation_iterations", 1000)
	v.SetDefault("analytics.bayes.ab_iterations", 10000)
	v.SetDefault("analytics.walk_forward.window_size", 30)
	v.SetDefault("analytics.walk_forward.step_size", 10)
	v.SetDefault("analytics.walk_forward.min_trades", 10)
	v.SetDefault("analytics.walk_forward.metric", "sharpe")
	v.SetDefault("analytics.cluster.k", 3)
	v.SetDefault("analytics.cluster.max_iterations", 100)
	v.SetDefault("analytics.cluster.tolerance", 0.01)
	v.SetDefault("analytics.forecast.method", "linear")
	v.SetDefault("analytics.forecast.window", 10)
	v.SetDefault("analytics.forecast.horizon", 5)
}
