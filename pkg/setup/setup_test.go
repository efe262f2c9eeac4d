package setup

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"mercator-hq/arbor/pkg/backend"
	"mercator-hq/arbor/pkg/config"
	"mercator-hq/arbor/pkg/journal"
	"mercator-hq/arbor/pkg/parse"
	"mercator-hq/arbor/pkg/tree"

	"github.com/google/go-cmp/cmp"
)

func newRuntime(t *testing.T, edit func(cfg *config.Config)) *Runtime {
	t.Helper()

	cfg := config.NewDefault()
	cfg.Engine.AvailabilityRefresh = "off"
	if edit != nil {
		edit(cfg)
	}
	rt, err := New(cfg, WithLogWriter(io.Discard))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { rt.Close(context.Background()) })
	return rt
}

func TestBackends_Builtins(t *testing.T) {
	reg, adapters, err := Backends(Builtins(), nil)
	if err != nil {
		t.Fatalf("Backends() failed: %v", err)
	}

	want := []string{"burntsushi", "goast", "gotoml", "goyaml", "hcl", "text", "yamlv3"}
	if diff := cmp.Diff(want, reg.IDs()); diff != "" {
		t.Errorf("backend ids mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, adapters.IDs()); diff != "" {
		t.Errorf("adapter ids mismatch (-want +got):\n%s", diff)
	}
	if got := reg.ServingKey(backend.KeyFallback); len(got) != 1 || got[0] != "text" {
		t.Errorf("fallback backends = %v, want [text]", got)
	}
}

func TestBackends_Settings(t *testing.T) {
	reg, _, err := Backends(Builtins(), map[string]config.BackendConfig{
		"BurntSushi": {Enabled: config.Bool(false)},
		"gotoml":     {BlockedBy: []string{"burntsushi"}},
	})
	if err != nil {
		t.Fatalf("Backends() failed: %v", err)
	}

	bs, _ := reg.Lookup("burntsushi")
	if bs.IsAvailable() || bs.Unavailable != DisabledReason {
		t.Errorf("burntsushi available = %v, reason %q", bs.IsAvailable(), bs.Unavailable)
	}
	gt, _ := reg.Lookup("gotoml")
	if !gt.Blocks("burntsushi") {
		t.Error("gotoml should block burntsushi")
	}
}

func TestBackends_UnknownID(t *testing.T) {
	_, _, err := Backends(Builtins(), map[string]config.BackendConfig{"tree-sitter": {}})
	if !errors.Is(err, backend.ErrInvalidConfiguration) {
		t.Errorf("Backends() error = %v, want ErrInvalidConfiguration", err)
	}
}

func TestNew_ParsesEveryResource(t *testing.T) {
	rt := newRuntime(t, nil)
	ctx := context.Background()

	tests := []struct {
		resource string
		src      string
		want     string
	}{
		{resource: "toml", src: "[server]\nport = 8080\n", want: "gotoml"},
		{resource: "yaml", src: "server:\n  port: 8080\n", want: "yamlv3"},
		{resource: "hcl", src: "server \"api\" {\n  port = 8080\n}\n", want: "hcl"},
		{resource: "go", src: "package main\n\nfunc main() {}\n", want: "goast"},
		{resource: "text", src: "hello\n", want: "text"},
	}
	for _, tt := range tests {
		t.Run(tt.resource, func(t *testing.T) {
			tr, err := rt.Parser.Parse(ctx, tree.NewLanguage(tt.resource), []byte(tt.src))
			if err != nil {
				t.Fatalf("Parse() failed: %v", err)
			}
			if tr.Backend() != tt.want {
				t.Errorf("Backend() = %s, want %s", tr.Backend(), tt.want)
			}
			if tr.HasErrors() {
				t.Errorf("unexpected tree errors: %v", tr.Errors())
			}
		})
	}
}

func TestNew_ExplicitBackendForOtherResource(t *testing.T) {
	rt := newRuntime(t, nil)

	_, err := rt.Parser.Parse(context.Background(), tree.NewLanguage("yaml"), []byte("a: 1\n"), parse.WithBackend("gotoml"))
	if !errors.Is(err, backend.ErrNotAvailable) {
		t.Fatalf("Parse() error = %v, want ErrNotAvailable", err)
	}
	if rt.Engine.Tracker().WasUsed("gotoml") {
		t.Error("a rejected backend must not be recorded as used")
	}
}

func TestNew_DisabledBackend(t *testing.T) {
	rt := newRuntime(t, func(cfg *config.Config) {
		cfg.Backends["gotoml"] = config.BackendConfig{Enabled: config.Bool(false)}
	})
	ctx := context.Background()
	lang := tree.NewLanguage("toml")

	tr, err := rt.Parser.Parse(ctx, lang, []byte("a = 1\n"))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if tr.Backend() != "burntsushi" {
		t.Errorf("Backend() = %s, want burntsushi", tr.Backend())
	}

	_, err = rt.Parser.Parse(ctx, lang, []byte("a = 1\n"), parse.WithBackend("gotoml"))
	if !errors.Is(err, backend.ErrNotAvailable) || !strings.Contains(err.Error(), DisabledReason) {
		t.Errorf("Parse(gotoml) error = %v, want NotAvailable %q", err, DisabledReason)
	}
}

func TestNew_ConfiguredConflict(t *testing.T) {
	rt := newRuntime(t, func(cfg *config.Config) {
		cfg.Backends["gotoml"] = config.BackendConfig{BlockedBy: []string{"burntsushi"}}
	})
	ctx := context.Background()
	lang := tree.NewLanguage("toml")
	src := []byte("a = 1\n")

	if _, err := rt.Parser.Parse(ctx, lang, src, parse.WithBackend("burntsushi")); err != nil {
		t.Fatalf("Parse(burntsushi) failed: %v", err)
	}

	tr, err := rt.Parser.Parse(ctx, lang, src)
	if err != nil {
		t.Fatalf("Parse(auto) failed: %v", err)
	}
	if tr.Backend() != "burntsushi" {
		t.Errorf("auto Backend() = %s, want burntsushi once gotoml conflicts", tr.Backend())
	}

	_, err = rt.Parser.Parse(ctx, lang, src, parse.WithBackend("gotoml"))
	if !errors.Is(err, backend.ErrConflict) {
		t.Errorf("Parse(gotoml) error = %v, want ErrConflict", err)
	}
}

func TestNew_UnknownDefault(t *testing.T) {
	cfg := config.NewDefault()
	cfg.Engine.DefaultBackend = "tree-sitter"

	_, err := New(cfg, WithLogWriter(io.Discard))
	if !errors.Is(err, backend.ErrUnknownImplementation) {
		t.Errorf("New() error = %v, want ErrUnknownImplementation", err)
	}
}

func TestNew_Journal(t *testing.T) {
	rt := newRuntime(t, func(cfg *config.Config) {
		cfg.Journal.Enabled = true
		cfg.Journal.Path = journal.MemoryPath
	})
	ctx := context.Background()

	if _, err := rt.Parser.Parse(ctx, tree.NewLanguage("yaml"), []byte("a: 1\n")); err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if err := rt.Recorder.Close(ctx); err != nil {
		t.Fatalf("Recorder.Close() failed: %v", err)
	}

	recs, err := rt.Store.Query(ctx, journal.Filter{Resource: "yaml"})
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(recs) != 1 || recs[0].Selected != "yamlv3" || recs[0].Outcome != journal.OutcomeSelected {
		t.Errorf("records = %+v, want one yamlv3 selection", recs)
	}

	status := rt.Health.CheckReadiness(ctx)
	if !status.Ready() {
		t.Errorf("readiness = %+v, want ready", status)
	}
	if _, ok := status.Checks["journal"]; !ok {
		t.Error("readiness should include the journal check")
	}
}

func TestRuntime_Apply(t *testing.T) {
	rt := newRuntime(t, nil)
	ctx := context.Background()

	next := config.NewDefault()
	next.Engine.DefaultBackend = "burntsushi"
	next.Engine.ProtectConflicts = config.Bool(false)
	next.Resources = map[string]map[string]config.ResourceConfig{
		"ini": {backend.KeyFallback: {Options: map[string]string{"comment_prefix": ";"}}},
	}
	if err := rt.Apply(next); err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}

	if got := rt.Engine.ResolveEffective(ctx, ""); got != "burntsushi" {
		t.Errorf("effective = %s, want burntsushi", got)
	}
	if rt.Engine.Tracker().Protected() {
		t.Error("conflict protection should be off")
	}

	tr, err := rt.Parser.Parse(ctx, tree.NewLanguage("ini"), []byte("; note\nk=v\n"))
	if err != nil {
		t.Fatalf("Parse(ini) failed: %v", err)
	}
	if tr.Backend() != "text" || len(tr.Comments()) != 1 {
		t.Errorf("ini parsed by %s with %d comments, want text with 1", tr.Backend(), len(tr.Comments()))
	}
}

func TestRuntime_ApplyRejectsUnknownDefault(t *testing.T) {
	rt := newRuntime(t, nil)

	next := config.NewDefault()
	next.Engine.DefaultBackend = "nope"
	if err := rt.Apply(next); !errors.Is(err, backend.ErrUnknownImplementation) {
		t.Errorf("Apply() error = %v, want ErrUnknownImplementation", err)
	}
}

func TestResourceForPath(t *testing.T) {
	tests := map[string]string{
		"config.toml":       "toml",
		"deploy/values.yml": "yaml",
		"CI.YAML":           "yaml",
		"main.tf":           "hcl",
		"job.hcl":           "hcl",
		"cmd/main.go":       "go",
		"README":            "text",
		"setup.cfg":         "text",
	}
	for path, want := range tests {
		if got := ResourceForPath(path); got != want {
			t.Errorf("ResourceForPath(%q) = %s, want %s", path, got, want)
		}
		if _, ok := DefaultResources[ResourceForPath(path)]; !ok {
			t.Errorf("%s maps to unregistered resource", path)
		}
	}
}
