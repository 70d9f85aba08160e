package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	slogmulti "github.com/samber/slog-multi"

	"github.com/nerrad567/virtuaplant-core/internal/infrastructure/config"
)

// serviceName is attached to every record.
const serviceName = "virtuaplant"

// redacted replaces the value of secret-looking attributes.
const redacted = "[redacted]"

// secretKeys are attribute keys whose values never reach a sink.
var secretKeys = map[string]bool{
	"password": true,
	"token":    true,
	"secret":   true,
}

// Logger is the process logger: a *slog.Logger plus an optional file sink.
// Packages take narrow Logger interfaces that *Logger satisfies.
type Logger struct {
	*slog.Logger

	file io.Closer
}

// New builds the logger described by the logging config section.
//
// Console output goes to stdout or stderr as JSON or text. When
// cfg.File.Path is set, records are also written to that file as JSON
// (fanned out with slog-multi) at cfg.File.Level, defaulting to cfg.Level.
// A file that cannot be opened is reported once and otherwise ignored.
func New(cfg config.LoggingConfig, version string) *Logger {
	out := io.Writer(os.Stdout)
	if strings.EqualFold(cfg.Output, "stderr") {
		out = os.Stderr
	}
	return newLogger(cfg, version, out)
}

func newLogger(cfg config.LoggingConfig, version string, console io.Writer) *Logger {
	handler := newHandler(console, cfg.Format, parseLevel(cfg.Level))

	l := &Logger{}
	var fileErr error
	if cfg.File.Path != "" {
		var f *os.File
		if f, fileErr = openLogFile(cfg.File.Path); fileErr == nil {
			level := cfg.File.Level
			if level == "" {
				level = cfg.Level
			}
			handler = slogmulti.Fanout(handler, newHandler(f, "json", parseLevel(level)))
			l.file = f
		}
	}

	l.Logger = slog.New(handler.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	}))
	if fileErr != nil {
		l.Warn("log file unavailable, logging to console only", "path", cfg.File.Path, "error", fileErr)
	}
	return l
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: redact}
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// redact hides the values of secretKeys.
func redact(_ []string, a slog.Attr) slog.Attr {
	if secretKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, redacted)
	}
	return a
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640) //nolint:gosec // operator-supplied path
}

// parseLevel maps debug, info, warn(ing) and error; anything else is info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child logger carrying args on every record. Children share
// the parent's file; only the parent should be closed.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Close closes the file sink, if one was opened.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Default is the JSON stdout logger used until the config is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}
