package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load builds the configuration from defaults, an optional YAML file, and
// environment variable overrides, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadAndMerge(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadAndMerge loads a YAML file and merges it into the config.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}
	return nil
}

// applyEnvOverrides overlays METRICSQA_* environment variables.
func applyEnvOverrides(cfg *Config) {
	setString(&cfg.LLM.BaseURL, "METRICSQA_LLM_BASE_URL")
	setString(&cfg.LLM.APIKey, "METRICSQA_LLM_API_KEY")
	setString(&cfg.LLM.Model, "METRICSQA_LLM_MODEL")
	setInt(&cfg.LLM.TimeoutSeconds, "METRICSQA_LLM_TIMEOUT_SECONDS")
	setInt(&cfg.LLM.MaxToolIterations, "METRICSQA_LLM_MAX_TOOL_ITERATIONS")
	setBool(&cfg.LLM.NetworkLogs, "METRICSQA_LLM_NETWORK_LOGS")

	setBool(&cfg.Collector.Enabled, "METRICSQA_COLLECTOR_ENABLED")
	setInt(&cfg.Collector.IntervalSeconds, "METRICSQA_COLLECTOR_INTERVAL_SECONDS")

	setString(&cfg.Database.Path, "METRICSQA_DATABASE_PATH")
	setString(&cfg.Server.Bind, "METRICSQA_SERVER_BIND")
	setString(&cfg.Logging.Dir, "METRICSQA_LOG_DIR")
	setString(&cfg.Logging.Level, "METRICSQA_LOG_LEVEL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
