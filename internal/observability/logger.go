package observability

import (
	"io"
	"log/slog"
	"os"

	"github.com/majindogo/field-survey-etl/internal/config"
)

// NewLogger builds the process logger from the configured verbosity and
// format. The logger is passed to every component explicitly; nothing in
// this module touches the global slog default. A "disabled" level routes
// the handler to io.Discard so callers never need nil checks.
func NewLogger(cfg *config.Config) *slog.Logger {
	var w io.Writer = os.Stderr
	level := slog.LevelInfo

	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "disabled":
		w = io.Discard
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}
