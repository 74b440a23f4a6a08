// Package logging builds the process-wide slog logger. Output format
// and level come from LOG_FORMAT and LOG_LEVEL; when LOG_FORMAT is
// unset, a terminal on stdout gets text and everything else gets JSON.
package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// New builds a logger honoring LOG_FORMAT and LOG_LEVEL.
func New() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLogLevel(os.Getenv("LOG_LEVEL")),
		AddSource:   true,
		ReplaceAttr: trimSourcePath(),
	}

	var handler slog.Handler
	if textOutput() {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// SetDefault builds a logger and installs it as the slog default.
func SetDefault() *slog.Logger {
	logger := New()
	slog.SetDefault(logger)
	return logger
}

// textOutput decides between the text and JSON handlers. An explicit
// LOG_FORMAT wins; otherwise logs aimed at a terminal stay readable.
func textOutput() bool {
	switch os.Getenv("LOG_FORMAT") {
	case "text":
		return true
	case "json":
		return false
	}
	return isatty(os.Stdout)
}

// trimSourcePath returns a ReplaceAttr func that rewrites source file
// paths relative to the working directory, so log lines carry
// internal/worker/pipeline.go rather than an absolute build path.
func trimSourcePath() func([]string, slog.Attr) slog.Attr {
	wd, _ := os.Getwd()
	return func(groups []string, a slog.Attr) slog.Attr {
		if a.Key != slog.SourceKey {
			return a
		}
		src, ok := a.Value.Any().(*slog.Source)
		if !ok {
			return a
		}
		if rel, err := filepath.Rel(wd, src.File); err == nil {
			src.File = rel
		} else {
			src.File = filepath.Base(src.File)
		}
		return a
	}
}

// parseLogLevel maps a LOG_LEVEL value to a slog.Level, defaulting to
// info for anything it does not recognize.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

func isatty(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
