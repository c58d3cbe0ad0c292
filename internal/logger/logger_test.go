package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"signal-analytics-go/internal/config"
)

func TestNewLogger(t *testing.T) {
	testCases := []struct {
		name    string
		level   string
		format  string
		wantErr bool
		enabled zapcore.Level
	}{
		{name: "JSON info", level: "info", format: "json", enabled: zapcore.InfoLevel},
		{name: "Console debug", level: "debug", format: "console", enabled: zapcore.DebugLevel},
		{name: "Default format", level: "warn", format: "", enabled: zapcore.WarnLevel},
		{name: "Bad level", level: "loud", format: "json", wantErr: true},
		{name: "Bad format", level: "info", format: "xml", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l, err := NewLogger(tc.level, tc.format)

			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, l.Core().Enabled(tc.enabled))
			assert.False(t, l.Core().Enabled(tc.enabled-1))
		})
	}
}

func TestFromConfig(t *testing.T) {
	l, err := FromConfig(config.Logger{Level: "error", Format: "json"})

	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.WarnLevel))
}
