package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "auto", cfg.Log.Format)
	assert.Equal(t, ".conductor/conductor.db", cfg.Store.Path)
	assert.Equal(t, "moderate", cfg.Engine.DefaultComplexity)
	assert.Equal(t, "1m", cfg.Engine.SweepInterval)
	assert.Equal(t, 256, cfg.Engine.EventBufferSize)
	assert.Equal(t, ".conductor/workflows", cfg.Templates.Dir)
	assert.True(t, cfg.Templates.Watch)
	assert.Equal(t, "127.0.0.1:8431", cfg.Server.Addr)
	assert.Equal(t, []string{"generalist"}, cfg.Agents.Stubs)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conductor.yaml")
	content := []byte(`
log:
  level: debug
  format: json
store:
  path: /tmp/test.db
engine:
  default_complexity: high
  sweep_interval: 30s
server:
  addr: 0.0.0.0:9000
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := NewLoader().WithConfigFile(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "/tmp/test.db", cfg.Store.Path)
	assert.Equal(t, "high", cfg.Engine.DefaultComplexity)
	assert.Equal(t, "30s", cfg.Engine.SweepInterval)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	// Values absent from the file keep their defaults.
	assert.Equal(t, 256, cfg.Engine.EventBufferSize)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CONDUCTOR_LOG_LEVEL", "warn")
	t.Setenv("CONDUCTOR_STORE_PATH", "/var/lib/conductor.db")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "/var/lib/conductor.db", cfg.Store.Path)
}

func TestValidateDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	require.NoError(t, NewValidator().Validate(cfg))
}

func TestValidateErrors(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	cfg.Log.Level = "verbose"
	cfg.Log.Format = "xml"
	cfg.Store.Path = ""
	cfg.Engine.DefaultComplexity = "extreme"
	cfg.Engine.SweepInterval = "soon"
	cfg.Engine.EventBufferSize = -1
	cfg.Server.Addr = ""

	verr := NewValidator().Validate(cfg)
	require.Error(t, verr)

	var errs ValidationErrors
	require.ErrorAs(t, verr, &errs)
	assert.Len(t, errs, 7)

	fields := make(map[string]bool)
	for _, e := range errs {
		fields[e.Field] = true
	}
	assert.True(t, fields["log.level"])
	assert.True(t, fields["engine.sweep_interval"])
	assert.True(t, fields["server.addr"])
}

func TestValidationErrorMessage(t *testing.T) {
	e := ValidationError{Field: "log.level", Value: "verbose", Message: "must be one of debug, info, warn, error"}
	assert.Contains(t, e.Error(), "log.level")
	assert.Contains(t, e.Error(), "verbose")
}

func TestSweepIntervalDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"", time.Minute},
		{"30s", 30 * time.Second},
		{"2m", 2 * time.Minute},
		{"garbage", time.Minute},
		{"-5s", time.Minute},
	}
	for _, tc := range cases {
		cfg := EngineConfig{SweepInterval: tc.in}
		assert.Equal(t, tc.want, cfg.SweepIntervalDuration(), "interval %q", tc.in)
	}
}
