package logutil

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLoggerEmitsTraceLabel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelTrace)
	prev := slog.Default()
	slog.SetDefault(logger)
	defer slog.SetDefault(prev)

	Trace("hello", "key", "value")

	out := buf.String()
	require.Contains(t, out, "TRACE")
	require.Contains(t, out, "hello")
	require.Contains(t, out, "key=value")
}

func TestNewLoggerSuppressesBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)
	prev := slog.Default()
	slog.SetDefault(logger)
	defer slog.SetDefault(prev)

	Trace("should not appear")

	require.Empty(t, buf.String())
}
