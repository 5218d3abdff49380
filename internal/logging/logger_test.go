package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info")
	require.NotNil(t, log)

	log.Info().Msg("test message")
	assert.Contains(t, buf.String(), "test message")
}

func TestNewDefaultWriter(t *testing.T) {
	// nil writer should default to stderr console writer
	log := New(nil, "info")
	require.NotNil(t, log)
}

func TestSub(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug")
	sub := log.Sub("mymodule")
	require.NotNil(t, sub)

	sub.Info().Msg("sub message")
	output := buf.String()
	assert.Contains(t, output, "sub message")
	assert.Contains(t, output, "mymodule")
}

func TestSubChain(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug")
	sub1 := log.Sub("level1")
	sub2 := sub1.Sub("level2")

	sub2.Info().Msg("deep message")
	output := buf.String()
	assert.Contains(t, output, "deep message")
	assert.Contains(t, output, "level2")
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn")

	log.Debug().Msg("debug msg")
	log.Info().Msg("info msg")
	assert.Empty(t, buf.String(), "debug and info should be filtered at warn level")

	log.Warn().Msg("warn msg")
	assert.Contains(t, buf.String(), "warn msg")

	buf.Reset()
	log.Error().Msg("error msg")
	assert.Contains(t, buf.String(), "error msg")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"silent", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"unknown", zerolog.InfoLevel},
		{"INFO", zerolog.InfoLevel}, // case-sensitive, defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestSilentLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "silent")

	log.Debug().Msg("should not appear")
	log.Info().Msg("should not appear")
	log.Warn().Msg("should not appear")
	log.Error().Msg("should not appear")

	assert.Empty(t, buf.String())
}

func TestNewWithOptions_ConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "play.log")

	log, closer, err := NewWithOptions(Options{
		Console:      &console,
		ConsoleLevel: "warn",
		ConsoleStyle: "json",
		File:         path,
		FileLevel:    "debug",
	})
	require.NoError(t, err)

	log.Debug().Msg("debug only in file")
	log.Warn().Msg("warn in both")
	require.NoError(t, closer.Close())

	assert.NotContains(t, console.String(), "debug only in file")
	assert.Contains(t, console.String(), "warn in both")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "debug only in file")
	assert.Contains(t, string(data), "warn in both")
}

func TestNewWithOptions_NoFile(t *testing.T) {
	var console bytes.Buffer
	log, closer, err := NewWithOptions(Options{Console: &console, ConsoleLevel: "info", ConsoleStyle: "json"})
	require.NoError(t, err)
	defer closer.Close()

	log.Info().Msg("hello")
	log.Debug().Msg("hidden")
	assert.Contains(t, console.String(), "hello")
	assert.NotContains(t, console.String(), "hidden")
}

func TestNewWithOptions_SilentConsole(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "play.log")
	log, closer, err := NewWithOptions(Options{
		Console:      &console,
		ConsoleLevel: "silent",
		File:         path,
		FileLevel:    "info",
	})
	require.NoError(t, err)

	log.Error().Msg("file only")
	require.NoError(t, closer.Close())
	assert.Empty(t, console.String())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "file only")
}

func TestMinLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, minLevel(zerolog.WarnLevel, zerolog.DebugLevel))
	assert.Equal(t, zerolog.InfoLevel, minLevel(zerolog.Disabled, zerolog.InfoLevel))
	assert.Equal(t, zerolog.WarnLevel, minLevel(zerolog.WarnLevel, zerolog.Disabled))
	assert.Equal(t, zerolog.Disabled, minLevel(zerolog.Disabled, zerolog.Disabled))
}
