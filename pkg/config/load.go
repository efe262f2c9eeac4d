package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML configuration and applies defaults. It does not
// validate.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention ARBOR_SECTION_FIELD (e.g., ARBOR_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// An empty path loads the defaults.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if path == "" {
		cfg = NewDefault()
	} else if cfg, err = LoadConfig(path); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Engine overrides
	if val := os.Getenv("ARBOR_ENGINE_DEFAULT_BACKEND"); val != "" {
		cfg.Engine.DefaultBackend = val
	}
	if val := os.Getenv("ARBOR_ENGINE_PROTECT_CONFLICTS"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Engine.ProtectConflicts = Bool(b)
		}
	}
	if val := os.Getenv("ARBOR_ENGINE_PRIORITY"); val != "" {
		var ids []string
		for _, id := range strings.Split(val, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		if len(ids) > 0 {
			cfg.Engine.Priority = ids
		}
	}

	// Cache overrides
	if val := os.Getenv("ARBOR_CACHE_SIZE"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Cache.Size = i
		}
	}
	if val := os.Getenv("ARBOR_CACHE_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Cache.TTL = d
		}
	}

	// Journal overrides
	if val := os.Getenv("ARBOR_JOURNAL_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Journal.Enabled = b
		}
	}
	if val := os.Getenv("ARBOR_JOURNAL_DRIVER"); val != "" {
		cfg.Journal.Driver = val
	}
	if val := os.Getenv("ARBOR_JOURNAL_PATH"); val != "" {
		cfg.Journal.Path = val
	}
	if val := os.Getenv("ARBOR_JOURNAL_RETENTION_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Journal.RetentionDays = i
		}
	}

	// Server overrides
	if val := os.Getenv("ARBOR_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("ARBOR_SERVER_MAX_SOURCE_BYTES"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Server.MaxSourceBytes = i
		}
	}

	// Telemetry overrides
	if val := os.Getenv("ARBOR_LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("ARBOR_LOG_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("ARBOR_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = Bool(b)
		}
	}
	if val := os.Getenv("ARBOR_TRACING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Tracing.Enabled = b
		}
	}
	if val := os.Getenv("ARBOR_TRACING_ENDPOINT"); val != "" {
		cfg.Telemetry.Tracing.Endpoint = val
	}
	if val := os.Getenv("ARBOR_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}
