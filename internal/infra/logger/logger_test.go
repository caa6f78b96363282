package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{in: "", want: zerolog.InfoLevel},
		{in: "debug", want: zerolog.DebugLevel},
		{in: "DEBUG", want: zerolog.DebugLevel},
		{in: "trace", want: zerolog.TraceLevel},
		{in: "warn", want: zerolog.WarnLevel},
		{in: "warning", want: zerolog.WarnLevel},
		{in: "error", want: zerolog.ErrorLevel},
		{in: "loud", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Config{Level: "info", Format: FormatJSON, Writer: &buf})
	require.NoError(t, err)
	defer closer.Close()

	logger.Debug().Msg("hidden")
	logger.Info().Msgf("playback: voice started: sample=%s", "bird")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "playback: voice started: sample=bird", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestNew_ConsoleDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Config{Level: "debug", Format: FormatConsole, Writer: &buf})
	require.NoError(t, err)

	logger.Debug().Msg("registry: cleared")

	out := buf.String()
	assert.Contains(t, out, "DBG")
	assert.Contains(t, out, "registry: cleared")
	assert.Contains(t, out, "logger/logger_test.go")
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "raveforest.log")
	logger, closer, err := New(Config{Output: path, Level: "info"})
	require.NoError(t, err)

	logger.Warn().Msg("osc: queue full")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"osc: queue full"`)
	assert.Contains(t, string(data), `"level":"warn"`)
}
