package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/front-init/message-relay/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}

	for name, expected := range tests {
		assert.Equal(t, expected, ParseLevel(name), "level %q", name)
	}
}

func TestNewWritesJSONToRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "relay.log")

	logger, closer := New(config.LoggingConfig{
		Level:     "warn",
		Format:    "json",
		Output:    path,
		MaxSizeMB: 1,
	})

	logger.Info("below threshold")
	logger.Warn("listener restarted", slog.Int("attempt", 2))
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "listener restarted", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, float64(2), entry["attempt"])
}

func TestNewStandardStreams(t *testing.T) {
	for _, output := range []string{"stdout", "stderr", ""} {
		logger, closer := New(config.LoggingConfig{Level: "info", Format: "text", Output: output})
		require.NotNil(t, logger)
		assert.NoError(t, closer.Close())
	}
}
