// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above. Skipped records show up here.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"

	// LevelDisabled turns logging off.
	LevelDisabled LogLevel = "disabled"
)

// Config holds logger configuration.
type Config struct {
	Level LogLevel

	// Pretty enables human-readable console output instead of JSON.
	Pretty bool

	// Output defaults to os.Stderr. Stdout carries the message stream.
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: "15:04:05"}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level. Unknown levels mean info.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a child of the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// ForSite creates a component logger that also carries the site category.
func ForSite(component, category string) zerolog.Logger {
	return log.With().
		Str("component", component).
		Str("category", category).
		Logger()
}

// Log Level Guidelines:
//
// Debug: per-page and per-record detail
//   - page requested/decoded (cursor, page_records)
//   - record skipped (reason)
//   - cache hit, stale revalidation, cache write
//
// Info: run lifecycle
//   - enumeration complete (emitted, skipped)
//   - request succeeded after retry
//   - metrics server started
//
// Warn: degraded but continuing
//   - API status errors before retry
//   - cache errors (request goes upstream)
//   - retries exhausted
//
// Error: the run stops
//   - enumeration aborted (transport or decode error)
//   - network failures
//
// Context Fields:
//   - component: emitting package (booru-client, page-fetcher, extractor, cli)
//   - category: site category
//   - tags: search query
//   - url: full request URL
//   - cursor: cursor parameter and value, e.g. "pid=3"
//   - page_records: records decoded from one page
//   - status: HTTP status code
//   - error_class: client, server, rate_limit or network
//   - emitted / skipped: per-run item counters
//   - etag, ttl: cache entry details
