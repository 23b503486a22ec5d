package logging

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/moffa90/go-hidboot/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"DEBUG":   zapcore.DebugLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := newLogger(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("programmed", zap.Int("blocks", 3))
	require.NoError(t, l.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1, "debug is below the configured level")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "programmed", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.EqualValues(t, 3, entry["blocks"])
	assert.Contains(t, entry, "ts")
	assert.Contains(t, entry, "caller")
}

func TestNewWithFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "hidboot.log")
	l, err := newLogger(config.LoggingConfig{
		Level:  "debug",
		Format: "console",
		File:   config.LumberjackConfig{Filename: path, MaxSizeMB: 1},
	}, &buf)
	require.NoError(t, err)

	l.Debug("erase started")
	_ = l.Sync()

	assert.Contains(t, buf.String(), "erase started")
	assert.FileExists(t, path)
}

func TestProgrammerAdapter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	p := Programmer(zap.New(core))

	p.Debug("chunk", "address", 0x1200)
	p.Info("done", "blocks", 2)
	p.Error("failed", "error", "timeout")

	entries := logs.AllUntimed()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "chunk", entries[0].Message)
	assert.EqualValues(t, 0x1200, entries[0].ContextMap()["address"])
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "timeout", entries[2].ContextMap()["error"])
}
