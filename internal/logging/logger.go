// Package logging configures zerolog for skillchat. Packages log through
// Component or WithThread loggers derived from the global Logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Logger is the process-wide base logger.
var Logger zerolog.Logger

// Config controls the base logger.
type Config struct {
	// Level is the minimum level: trace, debug, info, warn, error or disabled.
	Level string

	// Format is console or json.
	Format string

	// Output defaults to stderr.
	Output io.Writer

	// EnableCaller adds file:line to every entry.
	EnableCaller bool
}

// DefaultConfig logs info and above to stderr in console format.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "console",
		Output: os.Stderr,
	}
}

// Init rebuilds Logger. Loggers taken from Component earlier keep writing
// to the previous output.
func Init(cfg Config) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
			NoColor:    !isTerminal(out),
		}
	}

	zctx := zerolog.New(out).With().Timestamp()
	if cfg.EnableCaller {
		zctx = zctx.Caller()
	}
	Logger = zctx.Logger()
}

// ParseLevel maps a config level name to a zerolog level. Empty means info.
func ParseLevel(level string) (zerolog.Level, error) {
	switch name := strings.ToLower(strings.TrimSpace(level)); name {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	case "off":
		return zerolog.Disabled, nil
	default:
		parsed, err := zerolog.ParseLevel(name)
		if err != nil {
			return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
		}
		return parsed, nil
	}
}

// OpenFile opens path for appending, creating its directory. The interface
// logs there so entries do not draw over the screen.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// Component returns a child logger tagged with component.
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// WithThread returns a component logger scoped to one conversation thread.
func WithThread(component, threadID string) zerolog.Logger {
	return Logger.With().Str("component", component).Str("thread_id", threadID).Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func init() {
	Init(DefaultConfig())
}
