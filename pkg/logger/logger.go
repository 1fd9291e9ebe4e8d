// Package logger provides the process-wide structured logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Config for the default logger.
type Config struct {
	Level   string // debug, info, warn, error
	Service string
	Output  io.Writer
	Pretty  bool // console writer for local development
}

var (
	mu  sync.RWMutex
	log = zerolog.New(os.Stdout).With().Timestamp().Logger()
)

// Init initializes the default logger. Safe to call once at startup.
func Init(cfg Config) {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	ctx := zerolog.New(out).Level(level).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}

	mu.Lock()
	log = ctx.Logger()
	mu.Unlock()
}

// Base returns the underlying zerolog logger for components that carry their
// own contextual logger.
func Base() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// With returns a component-scoped logger.
func With(component string) zerolog.Logger {
	return Base().With().Str("component", component).Logger()
}

func Debug(format string, args ...any) { l := Base(); l.Debug().Msg(fmt.Sprintf(format, args...)) }
func Info(format string, args ...any)  { l := Base(); l.Info().Msg(fmt.Sprintf(format, args...)) }
func Warn(format string, args ...any)  { l := Base(); l.Warn().Msg(fmt.Sprintf(format, args...)) }
func Error(format string, args ...any) { l := Base(); l.Error().Msg(fmt.Sprintf(format, args...)) }

// Fatal logs and exits the process.
func Fatal(format string, args ...any) {
	l := Base()
	l.Fatal().Msg(fmt.Sprintf(format, args...))
}
