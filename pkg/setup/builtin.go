package setup

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"mercator-hq/arbor/pkg/backend"
	"mercator-hq/arbor/pkg/backends/burntsushi"
	"mercator-hq/arbor/pkg/backends/goast"
	"mercator-hq/arbor/pkg/backends/gotoml"
	"mercator-hq/arbor/pkg/backends/goyaml"
	"mercator-hq/arbor/pkg/backends/hcl"
	"mercator-hq/arbor/pkg/backends/text"
	"mercator-hq/arbor/pkg/backends/yamlv3"
	"mercator-hq/arbor/pkg/config"
	"mercator-hq/arbor/pkg/registry"
	"mercator-hq/arbor/pkg/tree"
)

// DisabledReason is reported for backends switched off in configuration.
const DisabledReason = "disabled by configuration"

// Builtin pairs a backend descriptor with its normalization adapter.
type Builtin struct {
	Descriptor backend.Descriptor
	Adapter    tree.Adapter
}

// Builtins returns the built-in backends.
func Builtins() []Builtin {
	return []Builtin{
		{Descriptor: gotoml.Descriptor(), Adapter: gotoml.Adapter()},
		{Descriptor: burntsushi.Descriptor(), Adapter: burntsushi.Adapter()},
		{Descriptor: yamlv3.Descriptor(), Adapter: yamlv3.Adapter()},
		{Descriptor: goyaml.Descriptor(), Adapter: goyaml.Adapter()},
		{Descriptor: hcl.Descriptor(), Adapter: hcl.Adapter()},
		{Descriptor: goast.Descriptor(), Adapter: goast.Adapter()},
		{Descriptor: text.Descriptor(), Adapter: text.Adapter()},
	}
}

// DefaultResources lists the implementation keys registered for each
// built-in resource.
var DefaultResources = map[string][]string{
	"toml": {backend.KeyNative, backend.KeyFallback},
	"yaml": {backend.KeyNative, backend.KeyFallback},
	"hcl":  {backend.KeyNative, backend.KeyFallback},
	"go":   {backend.KeyNative, backend.KeyFallback},
	"text": {backend.KeyFallback},
}

// Extensions maps file extensions to built-in resources.
var Extensions = map[string]string{
	".toml": "toml",
	".yaml": "yaml",
	".yml":  "yaml",
	".hcl":  "hcl",
	".tf":   "hcl",
	".go":   "go",
}

// ResourceForPath returns the built-in resource for a file name by its
// extension. Files with other extensions are text.
func ResourceForPath(path string) string {
	if r, ok := Extensions[strings.ToLower(filepath.Ext(path))]; ok {
		return r
	}
	return "text"
}

// Backends builds the implementation registry and the adapter table from
// builtins, applying the per-backend settings of cfg. Settings naming an
// unknown backend are rejected.
func Backends(builtins []Builtin, cfg map[string]config.BackendConfig) (*backend.Registry, *tree.Table, error) {
	known := make(map[string]bool, len(builtins))
	for _, b := range builtins {
		known[b.Descriptor.ID] = true
	}
	for id := range cfg {
		if !known[backend.NormalizeID(id)] {
			return nil, nil, &backend.InvalidConfigurationError{
				Reason: fmt.Sprintf("backends.%s: unknown backend", id),
			}
		}
	}

	settings := make(map[string]config.BackendConfig, len(cfg))
	for id, bc := range cfg {
		settings[backend.NormalizeID(id)] = bc
	}

	reg, err := backend.NewRegistry()
	if err != nil {
		return nil, nil, err
	}
	adapters := tree.NewTable()

	for _, b := range builtins {
		desc := b.Descriptor
		if bc, ok := settings[desc.ID]; ok {
			desc = desc.WithBlockedBy(bc.BlockedBy...)
			if !bc.IsEnabled() {
				desc = desc.Disabled(DisabledReason)
			}
		}
		if err := reg.Register(desc); err != nil {
			return nil, nil, fmt.Errorf("failed to register backend %s: %w", desc.ID, err)
		}
		adapters.Register(desc.ID, b.Adapter)
	}

	return reg, adapters, nil
}

// Resources registers DefaultResources and then the resource table of cfg,
// which adds entries or merges options into existing ones.
func Resources(reg *registry.Registry, cfg map[string]map[string]config.ResourceConfig) error {
	for _, name := range sortedKeys(DefaultResources) {
		for _, key := range DefaultResources[name] {
			if err := reg.Register(name, key, backend.Config{}); err != nil {
				return err
			}
		}
	}
	return ConfigResources(reg, cfg)
}

// ConfigResources registers the resource table of cfg.
func ConfigResources(reg *registry.Registry, cfg map[string]map[string]config.ResourceConfig) error {
	for _, name := range sortedKeys(cfg) {
		keys := cfg[name]
		for _, key := range sortedKeys(keys) {
			rc := keys[key]
			if err := reg.Register(name, key, backend.Config{Options: rc.Options}); err != nil {
				return fmt.Errorf("resources.%s.%s: %w", name, key, err)
			}
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
