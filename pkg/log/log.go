// Package log configures the process-wide slog logger shared by the
// dealflow services.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs the default logger. Level accepts debug, info, warn or
// error; format accepts text or json. Unknown values fall back to info
// and text.
func Setup(logLevel, format string) {
	opts := &slog.HandlerOptions{Level: ParseLevel(logLevel)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// ParseLevel maps a level name to its slog.Level, defaulting to info.
func ParseLevel(logLevel string) slog.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithModule returns the default logger tagged with the service module
// name. Engine, sweeper and API logs are told apart by this attribute.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
