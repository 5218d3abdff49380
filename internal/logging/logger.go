package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps zerolog to provide subsystem-scoped child loggers.
type Logger struct {
	zl zerolog.Logger
}

// New creates a root logger writing to the given writer at the specified level.
// If w is nil, defaults to pretty console output on stderr.
func New(w io.Writer, level string) *Logger {
	if w == nil {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(w).With().Timestamp().Logger()
	zl = zl.Level(parseLevel(level))
	return &Logger{zl: zl}
}

// Options configures a logger that tees a console stream and a rotating
// JSON log file, each at its own level.
type Options struct {
	Console      io.Writer // defaults to stderr
	ConsoleLevel string
	ConsoleStyle string // "pretty" | "json"
	File         string // empty disables the file sink
	FileLevel    string
	MaxSizeMB    int
	MaxBackups   int
}

// NewWithOptions builds a root logger from Options. The returned closer
// flushes and closes the file sink; it is a no-op when no file is used.
func NewWithOptions(opts Options) (*Logger, io.Closer, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	if opts.ConsoleStyle != "json" {
		console = zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}
	}

	writers := []io.Writer{levelWriter{w: console, min: parseLevel(opts.ConsoleLevel)}}
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		fw, err := NewFileWriter(opts.File, opts.MaxSizeMB, opts.MaxBackups)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, levelWriter{w: fw, min: parseLevel(opts.FileLevel)})
		closer = fw
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	zl = zl.Level(minLevel(parseLevel(opts.ConsoleLevel), fileLevel(opts)))
	return &Logger{zl: zl}, closer, nil
}

// NewFileWriter opens a size-rotated, append-only log file.
func NewFileWriter(path string, maxSizeMB, maxBackups int) (*lumberjack.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}, nil
}

func fileLevel(opts Options) zerolog.Level {
	if opts.File == "" {
		return zerolog.Disabled
	}
	return parseLevel(opts.FileLevel)
}

func minLevel(a, b zerolog.Level) zerolog.Level {
	if a == zerolog.Disabled {
		return b
	}
	if b == zerolog.Disabled || a < b {
		return a
	}
	return b
}

// levelWriter drops events below min for one sink of a MultiLevelWriter.
type levelWriter struct {
	w   io.Writer
	min zerolog.Level
}

func (lw levelWriter) Write(p []byte) (int, error) { return lw.w.Write(p) }

func (lw levelWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if lw.min == zerolog.Disabled || l < lw.min {
		return len(p), nil
	}
	return lw.w.Write(p)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Sub returns a child logger tagged with a subsystem name.
func (l *Logger) Sub(subsystem string) *Logger {
	return &Logger{zl: l.zl.With().Str("subsystem", subsystem).Logger()}
}

// Debug logs at debug level.
func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }

// Info logs at info level.
func (l *Logger) Info() *zerolog.Event { return l.zl.Info() }

// Warn logs at warn level.
func (l *Logger) Warn() *zerolog.Event { return l.zl.Warn() }

// Error logs at error level.
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }

func parseLevel(s string) zerolog.Level {
	switch s {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "silent":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
