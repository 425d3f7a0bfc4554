package app

import (
	"log/slog"
	"os"
)

// NewLogger returns the application logger: JSON output when LOG_FORMAT=json
// (the production default), text otherwise. Every record carries the app name
// so the server and the worker are distinguishable in shared log streams.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler).With(slog.String("app", "miftah"))
}
