package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{" warn ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"trace", zerolog.TraceLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	root := New(&buf, "debug", false)

	ticker := Component(root, "Ticker")
	ticker.Info().Int("tps", 60).Msg("started")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "Ticker", entry["component"])
	assert.Equal(t, "started", entry["message"])
	assert.Equal(t, float64(60), entry["tps"])
}

func TestLevelFiltersOutput(t *testing.T) {
	var buf bytes.Buffer
	root := New(&buf, "warn", false)

	root.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	root.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}
