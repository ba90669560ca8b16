package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := New("debug", "json", buf)
	logger.Debug("intake.test", "session_id", "s1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "intake.test", line["msg"])
	assert.Equal(t, "s1", line["session_id"])
}

func TestLevelFiltering(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := New("warn", "text", buf)
	logger.Info("hidden")
	assert.Empty(t, buf.String())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelError, ParseLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}
