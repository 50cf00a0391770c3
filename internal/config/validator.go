package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/scscodes/conductor/internal/core"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{errors: make(ValidationErrors, 0)}
}

// Validate checks the full configuration and returns the collected
// errors, or nil when the configuration is usable.
func (v *Validator) Validate(cfg *Config) error {
	v.validateLog(&cfg.Log)
	v.validateStore(&cfg.Store)
	v.validateEngine(&cfg.Engine)
	v.validateServer(&cfg.Server)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

// Errors returns the collected validation errors.
func (v *Validator) Errors() ValidationErrors {
	return v.errors
}

func (v *Validator) addError(field string, value interface{}, msg string) {
	v.errors = append(v.errors, ValidationError{Field: field, Value: value, Message: msg})
}

func (v *Validator) validateLog(cfg *LogConfig) {
	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		v.addError("log.level", cfg.Level, "must be one of debug, info, warn, error")
	}
	switch cfg.Format {
	case "auto", "text", "json":
	default:
		v.addError("log.format", cfg.Format, "must be one of auto, text, json")
	}
}

func (v *Validator) validateStore(cfg *StoreConfig) {
	if cfg.Path == "" {
		v.addError("store.path", cfg.Path, "cannot be empty")
	}
}

func (v *Validator) validateEngine(cfg *EngineConfig) {
	if !core.ValidComplexity(core.Complexity(cfg.DefaultComplexity)) {
		v.addError("engine.default_complexity", cfg.DefaultComplexity,
			"must be one of simple, moderate, high")
	}
	if cfg.SweepInterval != "" {
		if d, err := time.ParseDuration(cfg.SweepInterval); err != nil {
			v.addError("engine.sweep_interval", cfg.SweepInterval, "must be a duration like 30s or 1m")
		} else if d <= 0 {
			v.addError("engine.sweep_interval", cfg.SweepInterval, "must be positive")
		}
	}
	if cfg.EventBufferSize < 0 {
		v.addError("engine.event_buffer_size", cfg.EventBufferSize, "cannot be negative")
	}
}

func (v *Validator) validateServer(cfg *ServerConfig) {
	if cfg.Addr == "" {
		v.addError("server.addr", cfg.Addr, "cannot be empty")
	}
}

// SweepIntervalDuration parses the configured sweep interval, falling
// back to one minute on an empty or invalid value.
func (c *EngineConfig) SweepIntervalDuration() time.Duration {
	if c.SweepInterval == "" {
		return time.Minute
	}
	d, err := time.ParseDuration(c.SweepInterval)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}
