// Package observability provides the service logger and Prometheus metrics.
package observability

import (
	"log/slog"
	"os"

	"github.com/curbdata/parking-aggregator/internal/config"
)

// NewLogger builds the service logger from config. Format "text" is for
// local development; anything else gets JSON for log shipping. Unknown
// levels fall back to info.
func NewLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
