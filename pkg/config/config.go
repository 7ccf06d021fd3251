// Package config loads service configuration from YAML with environment
// variable overrides.
package config

import (
	"fmt"
	"time"
)

// Default configuration values exported for documentation and validation
const (
	DefaultLLMBaseURL        = "http://127.0.0.1:11434/v1"
	DefaultLLMModel          = "llama3.1"
	DefaultLLMTimeoutSeconds = 60
	DefaultMaxToolIterations = 5

	DefaultCollectorIntervalSeconds = 10

	DefaultDatabasePath = "metricsqa.db"
	DefaultBindAddress  = ":8080"

	DefaultRateLimitPerSecond = 5
	DefaultRateLimitBurst     = 10
)

// Config represents the complete service configuration
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Collector CollectorConfig `yaml:"collector"`
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LLMConfig configures the OpenAI-compatible chat completions endpoint.
type LLMConfig struct {
	BaseURL           string `yaml:"base_url"`
	APIKey            string `yaml:"api_key"`
	Model             string `yaml:"model"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
	MaxToolIterations int    `yaml:"max_tool_iterations"`
	NetworkLogs       bool   `yaml:"network_logs"`
}

// Timeout returns the request timeout as a duration.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CollectorConfig configures the periodic metrics collector.
type CollectorConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalSeconds int  `yaml:"interval_seconds"`
}

// Interval returns the collection interval as a duration.
func (c CollectorConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// DatabaseConfig configures the SQLite metrics store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Bind               string  `yaml:"bind"`
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
	RateLimitBurst     int     `yaml:"rate_limit_burst"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

// Default returns a configuration populated with default values.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL:           DefaultLLMBaseURL,
			Model:             DefaultLLMModel,
			TimeoutSeconds:    DefaultLLMTimeoutSeconds,
			MaxToolIterations: DefaultMaxToolIterations,
		},
		Collector: CollectorConfig{
			Enabled:         true,
			IntervalSeconds: DefaultCollectorIntervalSeconds,
		},
		Database: DatabaseConfig{
			Path: DefaultDatabasePath,
		},
		Server: ServerConfig{
			Bind:               DefaultBindAddress,
			RateLimitPerSecond: DefaultRateLimitPerSecond,
			RateLimitBurst:     DefaultRateLimitBurst,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks configuration bounds.
func (c *Config) Validate() error {
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url must not be empty")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model must not be empty")
	}
	if c.LLM.TimeoutSeconds <= 0 {
		return fmt.Errorf("llm.timeout_seconds must be positive, got %d", c.LLM.TimeoutSeconds)
	}
	if c.LLM.MaxToolIterations <= 0 {
		return fmt.Errorf("llm.max_tool_iterations must be positive, got %d", c.LLM.MaxToolIterations)
	}
	if c.Collector.IntervalSeconds <= 0 {
		return fmt.Errorf("collector.interval_seconds must be positive, got %d", c.Collector.IntervalSeconds)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Server.Bind == "" {
		return fmt.Errorf("server.bind must not be empty")
	}
	return nil
}
