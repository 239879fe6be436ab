// Package logger builds the forecaster's slog logger from configuration.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/epicast/epicast/cmd/forecaster/config"
)

// New returns a logger writing to stderr in cfg.LogFormat at cfg.LogLevel.
// Unknown formats fall back to text and unknown levels to info.
func New(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.LogLevel)}

	var h slog.Handler
	if strings.EqualFold(cfg.LogFormat, "json") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(h).With("service", "epicast-forecaster")
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
