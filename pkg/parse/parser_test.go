package parse

import (
	"context"
	"errors"
	"strings"
	"testing"

	"mercator-hq/arbor/internal/testbackend"
	"mercator-hq/arbor/pkg/backend"
	"mercator-hq/arbor/pkg/config"
	"mercator-hq/arbor/pkg/registry"
	"mercator-hq/arbor/pkg/resolve"
	"mercator-hq/arbor/pkg/scope"
	"mercator-hq/arbor/pkg/telemetry/metrics"
	"mercator-hq/arbor/pkg/tree"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var errNoGrammar = errors.New("no grammar")

type fixture struct {
	native   *testbackend.MockBackend
	fallback *testbackend.MockBackend
	engine   *resolve.Engine
	parser   *Parser
	metrics  *metrics.Collector
}

// newFixture wires a native and a fallback mock. "toml" registers both
// keys, "text" only the fallback key.
func newFixture(t *testing.T, adapters *tree.Table) *fixture {
	t.Helper()

	f := &fixture{
		native:   testbackend.NewMockBackend("native", backend.KeyNative),
		fallback: testbackend.NewMockBackend("plain", backend.KeyFallback),
		metrics:  metrics.NewCollector(&config.MetricsConfig{Namespace: "arbor"}, nil),
	}

	reg, err := backend.NewRegistry(f.native.Descriptor(), f.fallback.Descriptor())
	if err != nil {
		t.Fatalf("NewRegistry() failed: %v", err)
	}
	f.engine, err = resolve.New(reg, nil, resolve.WithPriority("native", "plain"))
	if err != nil {
		t.Fatalf("resolve.New() failed: %v", err)
	}

	resources := registry.New()
	for _, r := range []struct{ resource, key string }{
		{"toml", backend.KeyNative},
		{"toml", backend.KeyFallback},
		{"text", backend.KeyFallback},
	} {
		if err := resources.Register(r.resource, r.key, backend.Config{}); err != nil {
			t.Fatalf("Register() failed: %v", err)
		}
	}

	f.parser = New(f.engine, resources, adapters, WithMetrics(f.metrics))
	return f
}

func TestParser_TomlNativeAndFallback(t *testing.T) {
	ctx := context.Background()
	src := []byte("a = 1\nb = 2\n")

	t.Run("native available", func(t *testing.T) {
		f := newFixture(t, nil)
		tr, err := f.parser.Parse(ctx, tree.NewLanguage("toml"), src)
		if err != nil {
			t.Fatalf("Parse() failed: %v", err)
		}
		if tr.Backend() != "native" {
			t.Errorf("Backend() = %s, want native", tr.Backend())
		}
		if tr.RootNode().Type() == "" {
			t.Error("root node type is empty")
		}
		if tr.RootNode().ChildCount() != 2 {
			t.Errorf("root children = %d, want 2", tr.RootNode().ChildCount())
		}
	})

	t.Run("native unavailable uses fallback", func(t *testing.T) {
		f := newFixture(t, nil)
		f.native.SetAvailable(false)

		tr, err := f.parser.Parse(ctx, tree.NewLanguage("toml"), src)
		if err != nil {
			t.Fatalf("Parse() failed: %v", err)
		}
		if tr.Backend() != "plain" {
			t.Errorf("Backend() = %s, want plain", tr.Backend())
		}
		if tr.RootNode().Type() == "" {
			t.Error("root node type is empty")
		}
		if f.native.Builds() != 0 {
			t.Errorf("unavailable backend built %d producers", f.native.Builds())
		}
	})

	t.Run("explicit chain falls back", func(t *testing.T) {
		f := newFixture(t, nil)
		f.native.SetAvailable(false)

		tr, err := f.parser.ParseWithFallback(ctx, tree.NewLanguage("toml"), src, "native", "plain")
		if err != nil {
			t.Fatalf("ParseWithFallback() failed: %v", err)
		}
		if tr.Backend() != "plain" {
			t.Errorf("Backend() = %s, want plain", tr.Backend())
		}
		if diff := cmp.Diff([]string{"plain"}, f.engine.Tracker().Used()); diff != "" {
			t.Errorf("Used() mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestParser_ResourceWithoutKey(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.parser.Parse(context.Background(), tree.NewLanguage("text"), []byte("x"), WithBackend("native"))

	var nae *backend.NotAvailableError
	if !errors.As(err, &nae) {
		t.Fatalf("Parse() error = %v, want NotAvailableError", err)
	}
	if !strings.Contains(nae.Reason, "no native configuration") {
		t.Errorf("Reason = %q", nae.Reason)
	}
	if f.engine.Tracker().WasUsed("native") {
		t.Error("rejected backend was recorded as used")
	}

	// Auto selection skips the native backend for this resource.
	tr, err := f.parser.Parse(context.Background(), tree.NewLanguage("text"), []byte("x"))
	if err != nil || tr.Backend() != "plain" {
		t.Errorf("auto Parse() = %v, %v; want plain", tr, err)
	}
}

func TestParser_Errors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		setup   func(f *fixture)
		lang    *tree.Language
		opts    []CallOption
		wantErr error
	}{
		{name: "unknown resource", lang: tree.NewLanguage("cobol"), wantErr: backend.ErrNotFound},
		{name: "empty language", lang: &tree.Language{}, wantErr: backend.ErrInvalidConfiguration},
		{name: "unknown backend", lang: tree.NewLanguage("toml"), opts: []CallOption{WithBackend("zzz")}, wantErr: backend.ErrUnknownImplementation},
		{
			name:    "producer failure",
			setup:   func(f *fixture) { f.native.FailParse(errors.New("boom")) },
			lang:    tree.NewLanguage("toml"),
			wantErr: backend.ErrParse,
		},
		{
			name:    "build failure",
			setup:   func(f *fixture) { f.native.FailBuild(errNoGrammar) },
			lang:    tree.NewLanguage("toml"),
			wantErr: errNoGrammar,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			if tt.setup != nil {
				tt.setup(f)
			}
			_, err := f.parser.Parse(ctx, tt.lang, []byte("x"), tt.opts...)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParser_ParseErrorRecorded(t *testing.T) {
	f := newFixture(t, nil)
	boom := errors.New("boom")
	f.native.FailParse(boom)

	_, err := f.parser.Parse(context.Background(), tree.NewLanguage("toml"), []byte("x"))
	if !errors.Is(err, boom) {
		t.Fatalf("Parse() error = %v, want wrapped boom", err)
	}
	if n, err := testutil.GatherAndCount(f.metrics.Registry(), "arbor_parse_errors_total"); err != nil || n != 1 {
		t.Errorf("parse error series = %d (%v), want 1", n, err)
	}
}

func TestParser_FallbackStopsOnConflict(t *testing.T) {
	f := newFixture(t, nil)
	blocker := testbackend.NewMockBackend("blocker", backend.KeyNative).BlockedBy("native")
	if err := f.engine.Backends().Register(blocker.Descriptor()); err != nil {
		t.Fatal(err)
	}
	f.engine.Tracker().RecordUsage("blocker")

	_, err := f.parser.ParseWithFallback(context.Background(), tree.NewLanguage("toml"), []byte("x"), "native", "plain")
	if !errors.Is(err, backend.ErrConflict) {
		t.Fatalf("ParseWithFallback() error = %v, want ErrConflict", err)
	}
	if f.fallback.Parses() != 0 {
		t.Error("fallback ran after a conflict")
	}
}

func TestParser_FallbackExhausted(t *testing.T) {
	f := newFixture(t, nil)
	f.native.SetAvailable(false)
	f.fallback.SetAvailable(false)

	_, err := f.parser.ParseWithFallback(context.Background(), tree.NewLanguage("toml"), []byte("x"), "native", "plain")

	var noImpl *backend.NoImplementationAvailableError
	if !errors.As(err, &noImpl) {
		t.Fatalf("ParseWithFallback() error = %v, want NoImplementationAvailableError", err)
	}
	if diff := cmp.Diff([]string{"native", "plain"}, noImpl.Candidates()); diff != "" {
		t.Errorf("Candidates() mismatch (-want +got):\n%s", diff)
	}
}

func TestParser_DefaultChain(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if diff := cmp.Diff([]string{backend.Auto}, f.parser.DefaultChain(ctx, "toml")); diff != "" {
		t.Errorf("auto chain mismatch (-want +got):\n%s", diff)
	}

	_ = scope.Do(ctx, "plain", func(ctx context.Context) error {
		if diff := cmp.Diff([]string{"plain", "native"}, f.parser.DefaultChain(ctx, "toml")); diff != "" {
			t.Errorf("override chain mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"plain"}, f.parser.DefaultChain(ctx, "text")); diff != "" {
			t.Errorf("text chain mismatch (-want +got):\n%s", diff)
		}
		return nil
	})
}

func TestParser_ScopedOverride(t *testing.T) {
	f := newFixture(t, nil)

	tr, err := scope.WithOverride(context.Background(), "plain", func(ctx context.Context) (*tree.Tree, error) {
		return f.parser.Parse(ctx, tree.NewLanguage("toml"), []byte("x"))
	})
	if err != nil {
		t.Fatalf("Parse() under override failed: %v", err)
	}
	if tr.Backend() != "plain" {
		t.Errorf("Backend() = %s, want plain", tr.Backend())
	}
}

func TestParser_UnwrapsThroughAdapterTable(t *testing.T) {
	adapters := tree.NewTable()
	adapters.Register("native", tree.Adapter{
		Unwrap: func(l *tree.Language) (any, error) {
			h, _ := l.Handle("native")
			return h, nil
		},
		Lines: tree.OneBased,
	})
	f := newFixture(t, adapters)

	lang := tree.NewLanguage("toml").WithHandle("native", "grammar-handle")
	if _, err := f.parser.Parse(context.Background(), lang, []byte("x"), WithBackend("native")); err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if got := f.native.LastLanguage(); got != "grammar-handle" {
		t.Errorf("native received %v, want the raw handle", got)
	}

	if _, err := f.parser.Parse(context.Background(), lang, []byte("x"), WithBackend("plain")); err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if got := f.fallback.LastLanguage(); got != lang {
		t.Errorf("plain received %v, want the Language itself", got)
	}
}

func TestParser_Reparse(t *testing.T) {
	adapters := tree.NewTable()
	adapters.Register("native", tree.Adapter{Incremental: true})
	f := newFixture(t, adapters)
	ctx := context.Background()

	old, err := f.parser.Parse(ctx, tree.NewLanguage("toml"), []byte("a = 1\n"))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	edit := backend.InputEdit{StartByte: 4, OldEndByte: 5, NewEndByte: 6}
	next, err := f.parser.Reparse(ctx, old, edit, []byte("a = 10\n"))
	if err != nil {
		t.Fatalf("Reparse() failed: %v", err)
	}
	if next.Backend() != "native" || next.RootNode().Child(0).Text() != "a = 10" {
		t.Errorf("Reparse() = %s %q", next.Backend(), next.RootNode().Child(0).Text())
	}

	raw := old.Raw().(*testbackend.Tree)
	if diff := cmp.Diff([]backend.InputEdit{edit}, raw.Edits); diff != "" {
		t.Errorf("edits mismatch (-want +got):\n%s", diff)
	}
	if _, err := f.parser.Reparse(ctx, nil, edit, nil); !errors.Is(err, backend.ErrInvalidConfiguration) {
		t.Errorf("Reparse(nil) error = %v", err)
	}
}

func TestParser_Metrics(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.parser.Parse(context.Background(), tree.NewLanguage("toml"), []byte("a = 1\n")); err != nil {
		t.Fatal(err)
	}

	n, err := testutil.GatherAndCount(f.metrics.Registry(), "arbor_parse_duration_seconds")
	if err != nil || n != 1 {
		t.Errorf("duration series = %d (%v), want 1", n, err)
	}
}

func TestParser_PrebuiltProducerBoundToBackend(t *testing.T) {
	first := testbackend.NewMockBackend("first", backend.KeyNative)
	second := testbackend.NewMockBackend("second", backend.KeyNative)

	reg, err := backend.NewRegistry(first.Descriptor(), second.Descriptor())
	if err != nil {
		t.Fatalf("NewRegistry() failed: %v", err)
	}
	engine, err := resolve.New(reg, nil, resolve.WithPriority("first", "second"))
	if err != nil {
		t.Fatalf("resolve.New() failed: %v", err)
	}

	var calls int
	prebuilt := backend.ProducerFunc(func(ctx context.Context, lang any, src []byte) (backend.RawTree, error) {
		calls++
		return testbackend.NewLineTree("prebuilt", src), nil
	})
	resources := registry.New()
	if err := resources.Register("toml", backend.KeyNative, backend.Config{Producer: prebuilt, Backend: "second"}); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	p := New(engine, resources, nil)
	ctx := context.Background()

	if _, err := p.Parse(ctx, tree.NewLanguage("toml"), []byte("a = 1\n"), WithBackend("first")); !errors.Is(err, backend.ErrNotAvailable) {
		t.Fatalf("Parse(first) error = %v, want ErrNotAvailable", err)
	}

	tr, err := p.Parse(ctx, tree.NewLanguage("toml"), []byte("a = 1\n"))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if tr.Backend() != "second" {
		t.Errorf("Backend() = %s, want second", tr.Backend())
	}
	if calls != 1 {
		t.Errorf("pre-built producer ran %d times, want 1", calls)
	}
	if diff := cmp.Diff([]string{"second"}, engine.Tracker().Used()); diff != "" {
		t.Errorf("Used() mismatch (-want +got):\n%s", diff)
	}
	if first.Builds() != 0 || second.Builds() != 0 {
		t.Errorf("builds first=%d second=%d, want none", first.Builds(), second.Builds())
	}
}
