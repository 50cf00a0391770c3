// Package logging wraps slog with engine-specific context helpers,
// secret redaction, and a colorized console handler for interactive
// runs.
package logging

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/scscodes/conductor/internal/core"
)

// Logger wraps slog.Logger with redaction and domain context helpers.
type Logger struct {
	*slog.Logger
	sanitizer *Sanitizer
}

// Config configures the logger.
type Config struct {
	Level     string
	Format    string // auto, text, json
	Output    io.Writer
	AddSource bool
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: "auto",
		Output: os.Stdout,
	}
}

// New creates a logger. Format auto picks the console handler on a
// terminal and JSON otherwise.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	level := parseLevel(cfg.Level)
	sanitizer := NewSanitizer()

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(cfg.Output, &slog.HandlerOptions{
			Level:     level,
			AddSource: cfg.AddSource,
		})
	case "text":
		handler = slog.NewTextHandler(cfg.Output, &slog.HandlerOptions{
			Level:     level,
			AddSource: cfg.AddSource,
		})
	default:
		if isTerminal(cfg.Output) {
			handler = NewConsoleHandler(cfg.Output, level)
		} else {
			handler = slog.NewJSONHandler(cfg.Output, &slog.HandlerOptions{
				Level:     level,
				AddSource: cfg.AddSource,
			})
		}
	}

	handler = NewSanitizingHandler(handler, sanitizer)

	return &Logger{
		Logger:    slog.New(handler),
		sanitizer: sanitizer,
	}
}

// NewNop creates a no-op logger for testing.
func NewNop() *Logger {
	return &Logger{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		sanitizer: NewSanitizer(),
	}
}

func parseLevel(s string) slog.Level {
	switch s {
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

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// WithExecution returns a logger bound to an execution.
func (l *Logger) WithExecution(id core.ExecutionID) *Logger {
	return l.With("execution_id", string(id))
}

// WithStep returns a logger bound to a step.
func (l *Logger) WithStep(id core.StepID, stepName string) *Logger {
	return l.With("step_id", string(id), "step", stepName)
}

// WithAgent returns a logger bound to an agent capability.
func (l *Logger) WithAgent(agent string) *Logger {
	return l.With("agent", agent)
}

// WithWorkflow returns a logger bound to a workflow name.
func (l *Logger) WithWorkflow(workflowName string) *Logger {
	return l.With("workflow", workflowName)
}

// With returns a logger with custom fields.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:    l.Logger.With(args...),
		sanitizer: l.sanitizer,
	}
}

// Sanitize redacts sensitive content from a string.
func (l *Logger) Sanitize(input string) string {
	return l.sanitizer.Sanitize(input)
}
