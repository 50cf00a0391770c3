// Package config loads and validates the conductor configuration from
// files, environment variables and flags.
package config

// Config holds all application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Store     StoreConfig     `mapstructure:"store"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Templates TemplatesConfig `mapstructure:"templates"`
	Server    ServerConfig    `mapstructure:"server"`
	Agents    AgentsConfig    `mapstructure:"agents"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StoreConfig configures the persistence layer.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// EngineConfig configures execution behavior.
type EngineConfig struct {
	DefaultComplexity string `mapstructure:"default_complexity"`
	SweepInterval     string `mapstructure:"sweep_interval"`
	EventBufferSize   int    `mapstructure:"event_buffer_size"`
}

// TemplatesConfig configures the workflow template provider.
type TemplatesConfig struct {
	Dir   string `mapstructure:"dir"`
	Watch bool   `mapstructure:"watch"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// AgentsConfig configures registered agent capabilities.
type AgentsConfig struct {
	// Stubs lists capability names served by the built-in stub agent.
	Stubs []string `mapstructure:"stubs"`
}
