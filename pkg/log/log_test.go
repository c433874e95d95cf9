package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	out := &bytes.Buffer{}
	logger := NewLogger(out, LevelInfo)

	logger.Info().Src("avi").Msg("hello")

	line := strings.TrimSpace(out.String())
	require.Regexp(t, `^\d{2}:\d{2}:\d{2} \[info\] avi: hello$`, line)
}

func TestLoggerNoSource(t *testing.T) {
	out := &bytes.Buffer{}
	logger := NewLogger(out, LevelInfo)

	logger.Warn().Msgf("count=%d", 7)
	require.Contains(t, out.String(), "[warning] count=7")
	require.NotContains(t, out.String(), ": count")
}

func TestLoggerMinLevel(t *testing.T) {
	out := &bytes.Buffer{}
	logger := NewLogger(out, LevelWarning)

	logger.Debug().Msg("a")
	logger.Info().Msg("b")
	require.Empty(t, out.String())

	logger.Warn().Msg("c")
	logger.Error().Msg("d")
	require.Contains(t, out.String(), "[warning] c")
	require.Contains(t, out.String(), "[error] d")
}

func TestLevelString(t *testing.T) {
	require.Equal(t, "error", LevelError.String())
	require.Equal(t, "warning", LevelWarning.String())
	require.Equal(t, "info", LevelInfo.String())
	require.Equal(t, "debug", LevelDebug.String())
	require.Equal(t, "unknown", Level(1).String())
}
