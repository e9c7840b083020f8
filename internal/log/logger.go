// Package log configures the process-wide zerolog logger for the setup
// tools. Console output is human-readable on a terminal and JSON
// otherwise; an optional log file always receives JSON so installations
// started from a desktop leave a trace.
package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Config captures options for configuring the global logger.
type Config struct {
	Level   string    // optional log level ("debug", "info", etc.)
	Console io.Writer // optional console writer (defaults to os.Stderr)
	File    string    // optional log file appended to alongside the console
	Service string    // optional service name attached to every log entry
}

var (
	once sync.Once
	base zerolog.Logger
)

// Configure initialises the global zerolog logger exactly once. Later calls
// are no-ops, so commands should configure before logging anything.
func Configure(cfg Config) {
	once.Do(func() {
		level := zerolog.InfoLevel
		if cfg.Level != "" {
			if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
				level = parsed
			}
		} else if env := os.Getenv("LOG_LEVEL"); env != "" {
			if parsed, err := zerolog.ParseLevel(env); err == nil {
				level = parsed
			}
		}
		zerolog.SetGlobalLevel(level)
		zerolog.TimeFieldFormat = time.RFC3339

		console := cfg.Console
		if console == nil {
			console = os.Stderr
		}
		if f, ok := console.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			console = zerolog.ConsoleWriter{Out: f, TimeFormat: "15:04:05"}
		}

		writer := console
		if cfg.File != "" {
			if f, err := os.OpenFile(cfg.File, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644); err == nil {
				writer = zerolog.MultiLevelWriter(console, f)
			}
		}

		service := cfg.Service
		if service == "" {
			service = "flowsetup"
		}

		base = zerolog.New(writer).With().
			Timestamp().
			Str("service", service).
			Logger()
	})
}

func logger() zerolog.Logger {
	Configure(Config{})
	return base
}

// Base returns the configured base logger instance.
func Base() zerolog.Logger {
	return logger()
}

// WithComponent returns a child logger annotated with the given component name.
func WithComponent(component string) zerolog.Logger {
	return logger().With().Str("component", component).Logger()
}
