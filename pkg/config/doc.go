// Package config provides configuration management for arbor.
//
// Configuration is loaded from YAML, completed with defaults, overridden
// from the environment and validated:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("arbor.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention ARBOR_SECTION_FIELD:
//
//   - ARBOR_ENGINE_DEFAULT_BACKEND overrides engine.default_backend
//   - ARBOR_ENGINE_PROTECT_CONFLICTS overrides engine.protect_conflicts
//   - ARBOR_JOURNAL_PATH overrides journal.path
//   - ARBOR_LOG_LEVEL overrides telemetry.logging.level
//
// # Singleton Pattern
//
//	if err := config.Initialize("arbor.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//	cfg := config.GetConfig()
//
// For testing, prefer explicit Config instances over the singleton.
//
// # Example Configuration
//
//	engine:
//	  default_backend: auto
//	  protect_conflicts: true
//	  priority: [gotoml, yamlv3, hcl, text]
//
//	backends:
//	  gotoml:
//	    blocked_by: [burntsushi]
//	  goyaml:
//	    enabled: false
//
//	resources:
//	  ini:
//	    fallback:
//	      options:
//	        comment_prefix: ";"
//
//	journal:
//	  enabled: true
//	  driver: sqlite
//	  path: data/journal.db
package config
