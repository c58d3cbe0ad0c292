package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"signal-analytics-go/internal/api"
	"signal-analytics-go/internal/config"
	"signal-analytics-go/internal/logger"
	"signal-analytics-go/internal/models"
	"signal-analytics-go/internal/random"
	"signal-analytics-go/internal/reporting"
)

func main() {
	configPath := flag.String("config", "./configs", "directory holding config.yml")
	capital := flag.Float64("capital", 10000, "initial capital")
	riskFree := flag.Float64("risk-free", 0, "per-trade risk-free rate")
	withCosts := flag.Bool("costs", true, "apply the configured transaction cost model")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [trades.json]\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "Reads a JSON array of trades from the file or stdin and prints a backtest report.")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(fmt.Sprintf("could not load config: %v", err))
	}
	log, err := logger.FromConfig(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	in := io.Reader(os.Stdin)
	if flag.NArg() > 0 {
		f, err := os.Open(flag.Arg(0))
		if err != nil {
			log.Fatal("Failed to open trades file", zap.Error(err))
		}
		defer f.Close()
		in = f
	}

	trades, err := readTrades(in)
	if err != nil {
		log.Fatal("Failed to read trades", zap.Error(err))
	}
	log.Info("Trades loaded", zap.Int("count", len(trades)))

	defaults := api.DefaultsFromConfig(cfg.Analytics)
	opts := reporting.ReportOptions{
		InitialCapital: *capital,
		RiskFreeRate:   *riskFree,
		WalkForward:    &defaults.WalkForward,
		Permutation:    &defaults.Permutation,
	}
	if *withCosts {
		opts.Costs = &defaults.Costs
	}

	src := random.NewTimeSeeded()
	if defaults.Seed != 0 {
		src = random.New(defaults.Seed)
	}
	report := reporting.GenerateBacktestReport(trades, opts, src)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Fatal("Failed to write report", zap.Error(err))
	}
}

// readTrades decodes and validates a JSON array of trades.
func readTrades(r io.Reader) ([]models.TradeRecord, error) {
	var raw []models.TradeRecord
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode trades: %w", err)
	}
	trades := make([]models.TradeRecord, 0, len(raw))
	for i, t := range raw {
		valid, err := models.NewTradeRecord(t)
		if err != nil {
			return nil, fmt.Errorf("trade %d: %w", i, err)
		}
		trades = append(trades, valid)
	}
	return trades, nil
}
