// Package testbackend provides scripted backends for tests.
package testbackend

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"mercator-hq/arbor/pkg/backend"
)

// MockBackend is a scripted backend. Its availability can be flipped at
// runtime and it counts availability probes and producer builds.
type MockBackend struct {
	id        string
	key       string
	blockedBy []string
	caps      backend.Capabilities

	available  atomic.Bool
	probes     atomic.Int64
	builds     atomic.Int64
	parses     atomic.Int64
	buildErr   error
	parseErr   error
	buildDelay chan struct{}

	mu       sync.Mutex
	lastLang any
	lastCfg  backend.Config
}

// NewMockBackend creates an available mock backend serving key.
func NewMockBackend(id, key string) *MockBackend {
	m := &MockBackend{
		id:   id,
		key:  key,
		caps: backend.Capabilities{},
	}
	m.available.Store(true)
	return m
}

// SetAvailable sets the result of the availability check.
func (m *MockBackend) SetAvailable(available bool) *MockBackend {
	m.available.Store(available)
	return m
}

// BlockedBy sets the blocked-by list.
func (m *MockBackend) BlockedBy(ids ...string) *MockBackend {
	m.blockedBy = ids
	return m
}

// WithCapability sets a capability value.
func (m *MockBackend) WithCapability(name string, value any) *MockBackend {
	m.caps[name] = value
	return m
}

// FailBuild makes every producer build fail with err.
func (m *MockBackend) FailBuild(err error) *MockBackend {
	m.buildErr = err
	return m
}

// FailParse makes every parse fail with err.
func (m *MockBackend) FailParse(err error) *MockBackend {
	m.parseErr = err
	return m
}

// BlockBuilds makes producer builds wait until the returned function is
// called.
func (m *MockBackend) BlockBuilds() (release func()) {
	m.buildDelay = make(chan struct{})
	var once sync.Once
	return func() { once.Do(func() { close(m.buildDelay) }) }
}

// ID returns the backend id.
func (m *MockBackend) ID() string { return m.id }

// Probes returns how many times the availability check ran.
func (m *MockBackend) Probes() int64 { return m.probes.Load() }

// Builds returns how many producers were built.
func (m *MockBackend) Builds() int64 { return m.builds.Load() }

// Parses returns how many parses ran.
func (m *MockBackend) Parses() int64 { return m.parses.Load() }

// LastLanguage returns the language value passed to the last parse.
func (m *MockBackend) LastLanguage() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastLang
}

// LastConfig returns the configuration passed to the last build.
func (m *MockBackend) LastConfig() backend.Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCfg
}

// Descriptor returns the backend descriptor.
func (m *MockBackend) Descriptor() backend.Descriptor {
	return backend.Descriptor{
		ID:          m.id,
		Key:         m.key,
		Description: "mock backend " + m.id,
		Available: func() bool {
			m.probes.Add(1)
			return m.available.Load()
		},
		BlockedBy:    m.blockedBy,
		Capabilities: m.caps,
		New:          m.build,
	}
}

func (m *MockBackend) build(cfg backend.Config) (backend.Producer, error) {
	if m.buildDelay != nil {
		<-m.buildDelay
	}
	m.builds.Add(1)

	m.mu.Lock()
	m.lastCfg = cfg
	m.mu.Unlock()

	if m.buildErr != nil {
		return nil, m.buildErr
	}
	return &Producer{backend: m, options: cfg.Options}, nil
}

// Producer is the producer built by a MockBackend. It returns a tree with
// one line node per line of input.
type Producer struct {
	backend *MockBackend
	options map[string]string
}

// Parse implements backend.Producer.
func (p *Producer) Parse(ctx context.Context, lang any, src []byte) (backend.RawTree, error) {
	p.backend.parses.Add(1)

	p.backend.mu.Lock()
	p.backend.lastLang = lang
	p.backend.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.backend.parseErr != nil {
		return nil, p.backend.parseErr
	}
	return NewLineTree(p.backend.id, src), nil
}

// Option returns a build option, for tests asserting which configuration
// a producer was built from.
func (p *Producer) Option(name string) string {
	return p.options[name]
}

// String identifies the producer in test failures.
func (p *Producer) String() string {
	return fmt.Sprintf("testbackend.Producer(%s)", p.backend.id)
}
