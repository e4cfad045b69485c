package logging

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"trace", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"Warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"fatal", slog.LevelError},
		{" Error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLogLevel(tt.input))
		})
	}
}

func TestSetup_ConsoleOnly(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var console bytes.Buffer
	closeFn, err := Setup(Options{Level: "warn", Console: &console})
	require.NoError(t, err)
	require.NoError(t, closeFn())

	slog.Info("hidden")
	slog.Warn("shown", "name", "hello.txt")

	out := console.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "hello.txt")
}

func TestSetup_WithLogFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	dir := filepath.Join(t.TempDir(), "logs")

	var console bytes.Buffer
	closeFn, err := Setup(Options{Level: "info", Dir: dir, Console: &console})
	require.NoError(t, err)
	assert.Contains(t, console.String(), "Logging to file: ")

	slog.Info("read directory", "entry_count", 3)
	require.NoError(t, closeFn())

	matches, err := filepath.Glob(filepath.Join(dir, "mpak_*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	b, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	line := strings.TrimSpace(string(b))
	assert.Contains(t, line, `"msg":"read directory"`)
	assert.Contains(t, line, `"entry_count":3`)
	assert.Contains(t, console.String(), "read directory")
}

func TestSetup_BadLogDir(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	notADir := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(notADir, nil, 0o644))

	closeFn, err := Setup(Options{Dir: notADir, Console: io.Discard})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create log output directory")
	assert.NoError(t, closeFn())
	assert.Same(t, prev, slog.Default())
}
