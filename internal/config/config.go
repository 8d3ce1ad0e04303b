// Package config loads the runtime's YAML configuration, generalizing
// the teacher's Config/ServerConfig/OllamaConfig shape into this
// runtime's own sections.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for coreruntime.
type Config struct {
	Server  ServerConfig  `yaml:"server" json:"server"`
	Storage StorageConfig `yaml:"storage" json:"storage"`
	NATS    NATSConfig    `yaml:"nats" json:"nats"`
	Oracle  OracleConfig  `yaml:"oracle" json:"oracle"`
	Cache   CacheConfig   `yaml:"cache" json:"cache"`
	Critic  CriticConfig  `yaml:"critic" json:"critic"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port" json:"port"`
}

// StorageConfig holds the on-disk data directory for the sqlite store,
// the contract ledger, and telemetry rows.
type StorageConfig struct {
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// NATSConfig holds the embedded-NATS settings used for the event bus.
type NATSConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// OracleConfig points at the generic chat-completions-compatible oracle
// backing both compression and critique. BaseURL/Model are pure
// configuration, matching SPEC_FULL.md's requirement that no vendor
// name or model string appears in code.
type OracleConfig struct {
	BaseURL string        `yaml:"base_url" json:"base_url"`
	APIKey  string        `yaml:"api_key" json:"api_key"`
	Model   string        `yaml:"model" json:"model"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// CacheConfig holds the Redis GutMirror endpoint. An empty URL disables
// the mirror entirely (internal/cache.NewGutMirror treats "" as a
// no-op sink).
type CacheConfig struct {
	RedisURL string `yaml:"redis_url" json:"redis_url"`
}

// CriticConfig holds the valuation-engine settings. IdleReapInterval is
// passed to the maintenance sweeper as the idle-critic threshold.
// MaxEvents, Decay and MinDwell are validated here but not applied:
// gut.NewManager builds every Critic with the package defaults.
type CriticConfig struct {
	MaxEvents        int           `yaml:"max_events" json:"max_events"`
	Decay            float64       `yaml:"decay" json:"decay"`
	MinDwell         time.Duration `yaml:"min_dwell" json:"min_dwell"`
	IdleReapInterval time.Duration `yaml:"idle_reap_interval" json:"idle_reap_interval"`
}

// DefaultConfig returns sensible defaults for a local development run.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
		},
		Storage: StorageConfig{
			DataDir: "./data",
		},
		NATS: NATSConfig{
			Host: "127.0.0.1",
			Port: 4222,
		},
		Oracle: OracleConfig{
			BaseURL: "http://localhost:11434/v1",
			Model:   "default",
			Timeout: 60 * time.Second,
		},
		Cache: CacheConfig{
			RedisURL: "",
		},
		Critic: CriticConfig{
			MaxEvents:        100,
			Decay:            0.95,
			MinDwell:         2 * time.Second,
			IdleReapInterval: 10 * time.Minute,
		},
	}
}

// LoadConfig loads configuration from a YAML file, filling unset fields
// from DefaultConfig before validating.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks that the config is internally consistent.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.NATS.Port <= 0 || c.NATS.Port > 65535 {
		return fmt.Errorf("invalid nats port: %d", c.NATS.Port)
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage data_dir is required")
	}
	if c.Oracle.BaseURL == "" {
		return fmt.Errorf("oracle base_url is required")
	}
	if c.Oracle.Model == "" {
		return fmt.Errorf("oracle model is required")
	}
	if c.Critic.MaxEvents <= 0 {
		return fmt.Errorf("critic max_events must be positive")
	}
	if c.Critic.Decay <= 0 || c.Critic.Decay > 1 {
		return fmt.Errorf("critic decay must be in (0, 1]")
	}
	return nil
}
