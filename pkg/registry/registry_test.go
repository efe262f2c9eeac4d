package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"mercator-hq/arbor/internal/testbackend"
	"mercator-hq/arbor/pkg/backend"
	"mercator-hq/arbor/pkg/config"
	"mercator-hq/arbor/pkg/telemetry/metrics"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegistry_RegisterValidation(t *testing.T) {
	tests := []struct {
		name     string
		resource string
		key      string
		cfg      backend.Config
	}{
		{name: "empty resource", resource: "", key: "native"},
		{name: "empty key", resource: "toml", key: ""},
		{name: "producer without parse", resource: "toml", key: "native", cfg: backend.Config{Producer: "not a producer", Backend: "a"}},
		{name: "producer without backend", resource: "toml", key: "native", cfg: backend.Config{Producer: backend.ProducerFunc(nil)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			err := r.Register(tt.resource, tt.key, tt.cfg)
			if !errors.Is(err, backend.ErrInvalidConfiguration) {
				t.Fatalf("Register() error = %v, want ErrInvalidConfiguration", err)
			}
		})
	}
}

func TestRegistry_MergeKeepsOtherKeys(t *testing.T) {
	r := New()
	mustRegister(t, r, "toml", backend.KeyNative, backend.Config{Options: map[string]string{"v": "1"}})
	mustRegister(t, r, "toml", backend.KeyFallback, backend.Config{})
	mustRegister(t, r, "toml", backend.KeyNative, backend.Config{Options: map[string]string{"v": "2"}})

	cfgs, err := r.Lookup("toml")
	if err != nil {
		t.Fatalf("Lookup() failed: %v", err)
	}
	if diff := cmp.Diff([]string{"fallback", "native"}, r.Keys("toml")); diff != "" {
		t.Errorf("Keys() mismatch (-want +got):\n%s", diff)
	}
	if got := cfgs[backend.KeyNative].Option("v", ""); got != "2" {
		t.Errorf("native option v = %q, want 2", got)
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := New()
	mustRegister(t, r, "toml", backend.KeyNative, backend.Config{})

	if _, err := r.Lookup("yaml"); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("Lookup(yaml) error = %v, want ErrNotFound", err)
	}

	_, ok, err := r.LookupKey("toml", backend.KeyFallback)
	if err != nil || ok {
		t.Errorf("LookupKey(toml, fallback) = ok %v err %v, want missing key without error", ok, err)
	}

	if _, _, err := r.LookupKey("yaml", backend.KeyNative); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("LookupKey(yaml) error = %v, want ErrNotFound", err)
	}

	if diff := cmp.Diff([]string{"toml"}, r.Resources()); diff != "" {
		t.Errorf("Resources() mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistry_LookupReturnsCopy(t *testing.T) {
	r := New()
	mustRegister(t, r, "toml", backend.KeyNative, backend.Config{Options: map[string]string{"a": "1"}})

	cfgs, _ := r.Lookup("toml")
	cfgs[backend.KeyNative].Options["a"] = "changed"

	cfg, _, _ := r.LookupKey("toml", backend.KeyNative)
	if cfg.Option("a", "") != "1" {
		t.Error("mutating a lookup result changed the registry")
	}
}

func TestRegistry_ProducerCachedPerBackend(t *testing.T) {
	r := New()
	mustRegister(t, r, "toml", backend.KeyNative, backend.Config{})

	a := testbackend.NewMockBackend("a", backend.KeyNative)
	b := testbackend.NewMockBackend("b", backend.KeyNative)
	ctx := context.Background()

	pa1, err := r.Producer(ctx, "toml", a.Descriptor())
	if err != nil {
		t.Fatalf("Producer(a) failed: %v", err)
	}
	pa2, _ := r.Producer(ctx, "toml", a.Descriptor())
	pb, _ := r.Producer(ctx, "toml", b.Descriptor())

	if pa1 != pa2 {
		t.Error("expected cached producer for the same backend")
	}
	if pa1 == pb {
		t.Error("producers of different backends must not be shared")
	}
	if a.Builds() != 1 || b.Builds() != 1 {
		t.Errorf("builds = a:%d b:%d, want 1 each", a.Builds(), b.Builds())
	}
}

func TestRegistry_ProducerRebuiltAfterReRegister(t *testing.T) {
	r := New()
	mustRegister(t, r, "toml", backend.KeyNative, backend.Config{Options: map[string]string{"v": "1"}})

	m := testbackend.NewMockBackend("a", backend.KeyNative)
	ctx := context.Background()

	p1, _ := r.Producer(ctx, "toml", m.Descriptor())
	mustRegister(t, r, "toml", backend.KeyNative, backend.Config{Options: map[string]string{"v": "2"}})
	p2, _ := r.Producer(ctx, "toml", m.Descriptor())

	if p1 == p2 {
		t.Fatal("expected a new producer after re-registration")
	}
	if got := p2.(*testbackend.Producer).Option("v"); got != "2" {
		t.Errorf("rebuilt producer option = %q, want 2", got)
	}
	if r.CacheLen() != 1 {
		t.Errorf("CacheLen() = %d, want stale entry dropped", r.CacheLen())
	}
}

func TestRegistry_PrebuiltProducer(t *testing.T) {
	prebuilt := backend.ProducerFunc(func(ctx context.Context, lang any, src []byte) (backend.RawTree, error) {
		return testbackend.NewLineTree("prebuilt", src), nil
	})

	r := New()
	mustRegister(t, r, "toml", backend.KeyNative, backend.Config{Producer: prebuilt, Backend: "A"})

	a := testbackend.NewMockBackend("a", backend.KeyNative)
	b := testbackend.NewMockBackend("b", backend.KeyNative)
	ctx := context.Background()

	p, err := r.Producer(ctx, "toml", a.Descriptor())
	if err != nil {
		t.Fatalf("Producer(a) failed: %v", err)
	}
	if _, ok := p.(backend.ProducerFunc); !ok {
		t.Errorf("Producer(a) = %T, want the pre-built producer", p)
	}

	if _, err := r.Producer(ctx, "toml", b.Descriptor()); !errors.Is(err, backend.ErrNotAvailable) {
		t.Errorf("Producer(b) error = %v, want ErrNotAvailable", err)
	}
	if a.Builds() != 0 || b.Builds() != 0 {
		t.Errorf("builds a=%d b=%d, want none", a.Builds(), b.Builds())
	}

	if !r.Accepts("toml", a.Descriptor()) {
		t.Error("Accepts(a) = false, want true")
	}
	if r.Accepts("toml", b.Descriptor()) {
		t.Error("Accepts(b) = true, want false")
	}
	if r.Accepts("yaml", a.Descriptor()) {
		t.Error("Accepts() for an unknown resource = true")
	}
}

func TestRegistry_ProducerErrors(t *testing.T) {
	r := New()
	mustRegister(t, r, "toml", backend.KeyNative, backend.Config{})
	ctx := context.Background()

	if _, err := r.Producer(ctx, "yaml", testbackend.NewMockBackend("a", backend.KeyNative).Descriptor()); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("unknown resource error = %v, want ErrNotFound", err)
	}

	fallback := testbackend.NewMockBackend("text", backend.KeyFallback)
	if _, err := r.Producer(ctx, "toml", fallback.Descriptor()); !errors.Is(err, backend.ErrNotAvailable) {
		t.Errorf("missing key error = %v, want ErrNotAvailable", err)
	}

	boom := errors.New("boom")
	failing := testbackend.NewMockBackend("bad", backend.KeyNative).FailBuild(boom)
	if _, err := r.Producer(ctx, "toml", failing.Descriptor()); !errors.Is(err, boom) {
		t.Errorf("build error = %v, want wrapped boom", err)
	}
	if r.CacheLen() != 0 {
		t.Errorf("failed build was cached")
	}
}

func TestRegistry_ConcurrentBuildsCollapse(t *testing.T) {
	r := New()
	mustRegister(t, r, "toml", backend.KeyNative, backend.Config{})

	m := testbackend.NewMockBackend("a", backend.KeyNative)
	release := m.BlockBuilds()
	desc := m.Descriptor()

	var wg sync.WaitGroup
	producers := make([]backend.Producer, 8)
	for i := range producers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := r.Producer(context.Background(), "toml", desc)
			if err != nil {
				t.Errorf("Producer() failed: %v", err)
			}
			producers[i] = p
		}(i)
	}
	release()
	wg.Wait()

	for _, p := range producers[1:] {
		if p != producers[0] {
			t.Fatal("concurrent callers received different producers")
		}
	}
	if m.Builds() > 2 {
		t.Errorf("Builds() = %d, want concurrent builds collapsed", m.Builds())
	}
}

func TestRegistry_CacheMetrics(t *testing.T) {
	collector := metrics.NewCollector(&config.MetricsConfig{Namespace: "arbor"}, nil)
	r := New(WithMetrics(collector), WithCache(1, 0))
	mustRegister(t, r, "toml", backend.KeyNative, backend.Config{})
	mustRegister(t, r, "yaml", backend.KeyNative, backend.Config{})

	m := testbackend.NewMockBackend("a", backend.KeyNative)
	ctx := context.Background()
	_, _ = r.Producer(ctx, "toml", m.Descriptor())
	_, _ = r.Producer(ctx, "toml", m.Descriptor())
	_, _ = r.Producer(ctx, "yaml", m.Descriptor())

	reg := collector.Registry()
	if n, err := testutil.GatherAndCount(reg, "arbor_cache_hits_total"); err != nil || n != 1 {
		t.Errorf("hits series = %d (%v), want 1", n, err)
	}

	r.Purge()
	if r.CacheLen() != 0 {
		t.Errorf("CacheLen() after Purge = %d", r.CacheLen())
	}
}

func mustRegister(t *testing.T, r *Registry, resource, key string, cfg backend.Config) {
	t.Helper()
	if err := r.Register(resource, key, cfg); err != nil {
		t.Fatalf("Register(%s, %s) failed: %v", resource, key, err)
	}
}
