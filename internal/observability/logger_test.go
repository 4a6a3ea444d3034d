package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		format    string
		wantLevel zapcore.Level
		wantErr   bool
	}{
		{name: "default json logger", level: "info", format: "json", wantLevel: zapcore.InfoLevel},
		{name: "development text logger", level: "debug", format: "text", wantLevel: zapcore.DebugLevel},
		{name: "upper-case level", level: "WARN", format: "json", wantLevel: zapcore.WarnLevel},
		{name: "defaults when not set", wantLevel: zapcore.InfoLevel},
		{name: "invalid log level", level: "loud", format: "json", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.level, tt.format)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, logger)
				assert.Contains(t, err.Error(), "invalid log level")
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
			defer func() { _ = logger.Sync() }()

			assert.True(t, logger.Core().Enabled(tt.wantLevel))
			assert.False(t, logger.Core().Enabled(tt.wantLevel-1))
		})
	}
}
