package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// ScheduleOff disables a cron schedule setting.
const ScheduleOff = "off"

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
//
// Backend ids are checked for shape only; whether they name a registered
// backend is checked when the engine is assembled.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateEngine(&cfg.Engine)...)
	errs = append(errs, validateBackends(cfg.Backends)...)
	errs = append(errs, validateResources(cfg.Resources)...)
	errs = append(errs, validateCache(&cfg.Cache)...)
	errs = append(errs, validateJournal(&cfg.Journal)...)
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateEngine(cfg *EngineConfig) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(cfg.DefaultBackend) == "" {
		errs = append(errs, FieldError{
			Field:   "engine.default_backend",
			Message: "default backend is required (use \"auto\" for auto selection)",
		})
	}

	seen := make(map[string]bool, len(cfg.Priority))
	for i, id := range cfg.Priority {
		id = strings.ToLower(strings.TrimSpace(id))
		field := fmt.Sprintf("engine.priority[%d]", i)
		switch {
		case id == "":
			errs = append(errs, FieldError{Field: field, Message: "backend id is empty"})
		case id == "auto":
			errs = append(errs, FieldError{Field: field, Message: "\"auto\" cannot appear in the priority order"})
		case seen[id]:
			errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("duplicate backend %q", id)})
		}
		seen[id] = true
	}

	errs = append(errs, validateSchedule("engine.availability_refresh", cfg.AvailabilityRefresh)...)

	return errs
}

func validateBackends(backends map[string]BackendConfig) []FieldError {
	var errs []FieldError

	for id, b := range backends {
		if strings.TrimSpace(id) == "" {
			errs = append(errs, FieldError{Field: "backends", Message: "backend id is empty"})
			continue
		}
		for i, blocked := range b.BlockedBy {
			field := fmt.Sprintf("backends.%s.blocked_by[%d]", id, i)
			if strings.TrimSpace(blocked) == "" {
				errs = append(errs, FieldError{Field: field, Message: "backend id is empty"})
			} else if strings.EqualFold(strings.TrimSpace(blocked), strings.TrimSpace(id)) {
				errs = append(errs, FieldError{Field: field, Message: "a backend cannot block itself"})
			}
		}
	}

	return errs
}

func validateResources(resources map[string]map[string]ResourceConfig) []FieldError {
	var errs []FieldError

	for name, keys := range resources {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, FieldError{Field: "resources", Message: "resource id is empty"})
			continue
		}
		if len(keys) == 0 {
			errs = append(errs, FieldError{
				Field:   "resources." + name,
				Message: "resource must declare at least one implementation key",
			})
		}
		for key := range keys {
			if strings.TrimSpace(key) == "" {
				errs = append(errs, FieldError{Field: "resources." + name, Message: "implementation key is empty"})
			}
		}
	}

	return errs
}

func validateCache(cfg *CacheConfig) []FieldError {
	var errs []FieldError

	if cfg.Size < 0 {
		errs = append(errs, FieldError{Field: "cache.size", Message: "cache size cannot be negative"})
	}
	if cfg.TTL < 0 {
		errs = append(errs, FieldError{Field: "cache.ttl", Message: "cache ttl cannot be negative"})
	}

	return errs
}

func validateJournal(cfg *JournalConfig) []FieldError {
	var errs []FieldError

	if cfg.Driver != "sqlite" && cfg.Driver != "sqlite3" {
		errs = append(errs, FieldError{
			Field:   "journal.driver",
			Message: fmt.Sprintf("invalid driver %q: must be 'sqlite' or 'sqlite3'", cfg.Driver),
		})
	}
	if cfg.Enabled && cfg.Path == "" {
		errs = append(errs, FieldError{Field: "journal.path", Message: "path is required when the journal is enabled"})
	}
	if cfg.BufferSize < 0 {
		errs = append(errs, FieldError{Field: "journal.buffer_size", Message: "buffer size cannot be negative"})
	}
	if cfg.RetentionDays < 0 {
		errs = append(errs, FieldError{Field: "journal.retention_days", Message: "retention days cannot be negative"})
	}

	errs = append(errs, validateSchedule("journal.prune_schedule", cfg.PruneSchedule)...)

	return errs
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: %v", cfg.ListenAddress, err),
		})
	}
	if cfg.MaxSourceBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_source_bytes", Message: "cannot be negative"})
	}
	if cfg.MaxTreeDepth < 0 {
		errs = append(errs, FieldError{Field: "server.max_tree_depth", Message: "cannot be negative"})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.IsEnabled() && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with '/'",
		})
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.endpoint",
			Message: "tracing endpoint is required when tracing is enabled",
		})
	}
	switch cfg.Tracing.Sampler {
	case SamplerAlways, SamplerNever, SamplerRatio:
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sampler",
			Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
		})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.sample_ratio",
			Message: "sample ratio must be between 0.0 and 1.0",
		})
	}

	if cfg.Health.MinAvailableBackends < 0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.health.min_available_backends",
			Message: "cannot be negative",
		})
	}

	return errs
}

func validateSchedule(field, spec string) []FieldError {
	if spec == "" || spec == ScheduleOff {
		return nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return []FieldError{{
			Field:   field,
			Message: fmt.Sprintf("invalid cron schedule %q: %v", spec, err),
		}}
	}
	return nil
}
