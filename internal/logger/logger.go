package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"signal-analytics-go/internal/config"
)

// ServiceName is attached to every log line.
const ServiceName = "signal-analytics"

// NewLogger creates a new zap.Logger. Format is "json" for production
// encoding or "console" (the default) for development output.
func NewLogger(level string, format string) (*zap.Logger, error) {
	logLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var cfg zap.Config
	switch strings.ToLower(format) {
	case "json":
		cfg = zap.NewProductionConfig()
	case "console", "":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	cfg.Level = zap.NewAtomicLevelAt(logLevel)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.InitialFields = map[string]interface{}{"service": ServiceName}

	return cfg.Build()
}

// FromConfig builds the logger described by the logger config section.
func FromConfig(cfg config.Logger) (*zap.Logger, error) {
	return NewLogger(cfg.Level, cfg.Format)
}
