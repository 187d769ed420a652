// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
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
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
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

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(string(level))) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
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

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// NewServerLogger creates a component logger that also names the server
// it talks to. Userinfo in server is dropped.
func NewServerLogger(component, server string) zerolog.Logger {
	if u, err := url.Parse(server); err == nil && u.User != nil {
		u.User = nil
		server = u.String()
	}
	return log.With().Str("component", component).Str("server", server).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Request flow (method, endpoint, query)
//   - Scraped page progress (label, page index)
//   - Throttle waits
//
// Info: Normal operation events
//   - Mutating admin calls that succeeded (plan deleted, build queued)
//   - Password stored in the keyring
//
// Warn: Warning conditions that don't prevent operation
//   - Non-2xx responses
//   - Server back-off after a 429
//   - Keyring unavailable (CLI continues without a password)
//
// Error: Error conditions requiring attention
//   - Transport failures (connection refused, TLS, timeouts)
//   - Server back-off longer than the maximum wait
//
// Context Fields:
//   - component: bamboo-client, bitbucket-client, atlctl
//   - server: base URL of the server
//   - method: HTTP method
//   - endpoint: request path
//   - status: HTTP status code
//   - error_class: client, server, rate_limit, network
//   - duration: request duration
//   - label / page_index: label scrape progress
