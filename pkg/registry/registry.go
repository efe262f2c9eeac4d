// Package registry holds per-resource backend configurations and caches
// the producers built from them.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"mercator-hq/arbor/pkg/backend"
	"mercator-hq/arbor/pkg/telemetry/metrics"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// CacheName labels producer cache metrics.
const CacheName = "producer"

// Default cache settings used when no option overrides them.
const (
	DefaultCacheSize = 256
	DefaultCacheTTL  = 30 * time.Minute
)

type entry struct {
	cfg        backend.Config
	generation uint64
}

// boundTo reports whether backend id may use this configuration.
func (e entry) boundTo(id string) bool {
	return e.cfg.Producer == nil || e.cfg.Backend == id
}

type cacheKey struct {
	resource   string
	key        string
	generation uint64
	backend    string
}

func (k cacheKey) String() string {
	return fmt.Sprintf("%s/%s@%d#%s", k.resource, k.key, k.generation, k.backend)
}

// Registry maps resource ids to their per-key backend configurations.
// Registrations merge: re-registering a key replaces that key only.
//
// Registry is thread-safe and can be used concurrently.
type Registry struct {
	mu         sync.RWMutex
	resources  map[string]map[string]entry
	generation uint64

	cacheSize int
	cacheTTL  time.Duration
	cache     *expirable.LRU[cacheKey, backend.Producer]
	builds    singleflight.Group

	metrics *metrics.Collector
	logger  *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithCache sets the producer cache size and entry TTL. A zero TTL keeps
// entries until they are evicted by size.
func WithCache(size int, ttl time.Duration) Option {
	return func(r *Registry) {
		if size > 0 {
			r.cacheSize = size
		}
		r.cacheTTL = ttl
	}
}

// WithMetrics reports cache activity to c.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Registry) {
		r.metrics = c
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		resources: make(map[string]map[string]entry),
		cacheSize: DefaultCacheSize,
		cacheTTL:  DefaultCacheTTL,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.cache = expirable.NewLRU(r.cacheSize, func(k cacheKey, _ backend.Producer) {
		r.metrics.RecordCacheEviction(CacheName)
	}, r.cacheTTL)

	return r
}

// Register merges cfg into the configurations of resource under key.
// A non-nil cfg.Producer must implement backend.Producer and cfg.Backend
// must name the backend it is bound to.
func (r *Registry) Register(resource, key string, cfg backend.Config) error {
	if resource == "" {
		return &backend.InvalidConfigurationError{Key: key, Reason: "resource id is empty"}
	}
	if key == "" {
		return &backend.InvalidConfigurationError{Resource: resource, Reason: "implementation key is empty"}
	}
	if cfg.Producer != nil {
		if _, ok := cfg.Producer.(backend.Producer); !ok {
			return &backend.InvalidConfigurationError{
				Resource: resource,
				Key:      key,
				Reason:   fmt.Sprintf("producer of type %T does not implement Parse", cfg.Producer),
			}
		}
		cfg.Backend = backend.NormalizeID(cfg.Backend)
		if cfg.Backend == "" {
			return &backend.InvalidConfigurationError{
				Resource: resource,
				Key:      key,
				Reason:   "pre-built producer does not name its backend",
			}
		}
	}

	r.mu.Lock()
	r.generation++
	gen := r.generation
	keys, ok := r.resources[resource]
	if !ok {
		keys = make(map[string]entry)
		r.resources[resource] = keys
	}
	_, replaced := keys[key]
	keys[key] = entry{cfg: cfg.Clone(), generation: gen}
	r.mu.Unlock()

	if replaced {
		r.dropStale(resource, key, gen)
	}

	r.logger.Debug("resource registered",
		"resource", resource,
		"key", key,
		"generation", gen,
		"replaced", replaced,
	)

	return nil
}

// dropStale removes cached producers built from older generations of
// (resource, key). They can never be hit again.
func (r *Registry) dropStale(resource, key string, current uint64) {
	for _, k := range r.cache.Keys() {
		if k.resource == resource && k.key == key && k.generation != current {
			r.cache.Remove(k)
		}
	}
	r.metrics.UpdateCacheSize(CacheName, r.cache.Len())
}

// Lookup returns a copy of the merged configurations of resource.
func (r *Registry) Lookup(resource string) (map[string]backend.Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys, ok := r.resources[resource]
	if !ok {
		return nil, &backend.NotFoundError{Resource: resource}
	}

	out := make(map[string]backend.Config, len(keys))
	for k, e := range keys {
		out[k] = e.cfg.Clone()
	}
	return out, nil
}

// LookupKey returns the configuration of resource for key. The boolean is
// false when the resource exists but has no configuration for key.
func (r *Registry) LookupKey(resource, key string) (backend.Config, bool, error) {
	e, ok, err := r.entry(resource, key)
	if err != nil || !ok {
		return backend.Config{}, ok, err
	}
	return e.cfg.Clone(), true, nil
}

func (r *Registry) entry(resource, key string) (entry, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys, ok := r.resources[resource]
	if !ok {
		return entry{}, false, &backend.NotFoundError{Resource: resource}
	}
	e, ok := keys[key]
	return e, ok, nil
}

// Has reports whether resource is registered.
func (r *Registry) Has(resource string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.resources[resource]
	return ok
}

// HasKey reports whether resource has a configuration for key.
func (r *Registry) HasKey(resource, key string) bool {
	_, ok, err := r.entry(resource, key)
	return err == nil && ok
}

// Accepts reports whether desc can produce for resource: resource has a
// configuration for desc.Key, and a pre-built producer there, if any, is
// bound to desc.
func (r *Registry) Accepts(resource string, desc backend.Descriptor) bool {
	e, ok, err := r.entry(resource, desc.Key)
	return err == nil && ok && e.boundTo(desc.ID)
}

// Resources returns the registered resource ids, sorted.
func (r *Registry) Resources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.resources))
}

// Keys returns the implementation keys registered for resource, sorted.
func (r *Registry) Keys(resource string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.resources[resource]))
}

// Producer returns the producer desc builds for resource's desc.Key
// configuration. A pre-built cfg.Producer is returned as is to the backend
// it is bound to and is NotAvailable to any other. Built
// producers are cached per (resource, key, generation, backend id);
// concurrent first requests share one build.
func (r *Registry) Producer(ctx context.Context, resource string, desc backend.Descriptor) (backend.Producer, error) {
	e, ok, err := r.entry(resource, desc.Key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &backend.NotAvailableError{
			Backend: desc.ID,
			Reason:  fmt.Sprintf("resource %q has no %s configuration", resource, desc.Key),
		}
	}

	if e.cfg.Producer != nil {
		if !e.boundTo(desc.ID) {
			return nil, &backend.NotAvailableError{
				Backend: desc.ID,
				Reason:  fmt.Sprintf("resource %q %s producer is bound to %s", resource, desc.Key, e.cfg.Backend),
			}
		}
		return e.cfg.Producer.(backend.Producer), nil
	}

	key := cacheKey{resource: resource, key: desc.Key, generation: e.generation, backend: desc.ID}
	if p, ok := r.cache.Get(key); ok {
		r.metrics.RecordCacheHit(CacheName)
		return p, nil
	}
	r.metrics.RecordCacheMiss(CacheName)

	v, err, shared := r.builds.Do(key.String(), func() (any, error) {
		// Another caller may have finished the build while we waited.
		if p, ok := r.cache.Get(key); ok {
			return p, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if desc.New == nil {
			return nil, &backend.InvalidConfigurationError{
				Resource: resource,
				Key:      desc.Key,
				Reason:   fmt.Sprintf("backend %q has no producer constructor", desc.ID),
			}
		}

		start := time.Now()
		p, err := desc.New(e.cfg.Clone())
		if err != nil {
			return nil, fmt.Errorf("failed to build %s producer for %s: %w", desc.ID, resource, err)
		}
		if p == nil {
			return nil, &backend.InvalidConfigurationError{
				Resource: resource,
				Key:      desc.Key,
				Reason:   fmt.Sprintf("backend %q built a nil producer", desc.ID),
			}
		}

		r.cache.Add(key, p)
		r.metrics.UpdateCacheSize(CacheName, r.cache.Len())

		r.logger.Debug("producer built",
			"resource", resource,
			"key", desc.Key,
			"backend", desc.ID,
			"duration", time.Since(start),
		)
		return p, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		r.logger.Debug("producer build shared", "resource", resource, "backend", desc.ID)
	}

	return v.(backend.Producer), nil
}

// CacheLen returns the number of cached producers.
func (r *Registry) CacheLen() int {
	return r.cache.Len()
}

// Purge empties the producer cache.
func (r *Registry) Purge() {
	r.cache.Purge()
	r.metrics.UpdateCacheSize(CacheName, 0)
}
