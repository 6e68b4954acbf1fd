package testutil

import (
	"context"
	"errors"
	"parasited/internal/models"
	"parasited/internal/providers"
	"sync"
	"time"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// Count returns how many entries were logged at level.
func (m *MockLogger) Count(level string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.Logs {
		if e.Level == level {
			n++
		}
	}
	return n
}

// MockCache implements providers.CacheProviderInterface.
type MockCache struct {
	mu   sync.Mutex
	Data map[string][]byte
}

func NewMockCache() *MockCache {
	return &MockCache{Data: make(map[string][]byte)}
}

func (m *MockCache) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.Data[key]
	return val, ok
}

func (m *MockCache) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[key] = value
}

// MockCompressor implements interfaces.CompressorInterface with injectable behavior.
type MockCompressor struct {
	CompressFn   func([]byte) ([]byte, error)
	DecompressFn func([]byte) ([]byte, error)
	Closed       bool
}

func (m *MockCompressor) Compress(val []byte) ([]byte, error) {
	if m.CompressFn != nil {
		return m.CompressFn(val)
	}
	// Default: return as-is (identity)
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Decompress(val []byte) ([]byte, error) {
	if m.DecompressFn != nil {
		return m.DecompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Close() {
	m.Closed = true
}

// MockMetrics implements providers.MetricsProviderInterface and counts calls
// by name and label.
type MockMetrics struct {
	mu     sync.Mutex
	Counts map[string]int
	Depth  int
	Subs   int
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{Counts: make(map[string]int)}
}

func (m *MockMetrics) inc(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Counts[key]++
}

func (m *MockMetrics) Count(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Counts[key]
}

func (m *MockMetrics) IncRequestsTotal(endpoint string, _ int)           { m.inc("requests:" + endpoint) }
func (m *MockMetrics) ObserveRequestDuration(_ string, _ time.Duration)  {}
func (m *MockMetrics) IncCacheHits()                                     { m.inc("cache_hits") }
func (m *MockMetrics) IncCacheMisses()                                   { m.inc("cache_misses") }
func (m *MockMetrics) ObservePersistenceDuration(_ time.Duration)        {}
func (m *MockMetrics) ObserveMutationDuration(op string, _ time.Duration) { m.inc("mutation:" + op) }
func (m *MockMetrics) IncStoreErrors(op string)                          { m.inc("store_errors:" + op) }
func (m *MockMetrics) IncLockdownsOpened(_ int)                          { m.inc("lockdowns") }
func (m *MockMetrics) IncAchievementsUnlocked(id string)                 { m.inc("achievement:" + id) }
func (m *MockMetrics) IncEvolutionChanges(direction string)              { m.inc("evolution:" + direction) }

func (m *MockMetrics) SetQueueDepth(depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Depth = depth
}

func (m *MockMetrics) SetSubscribers(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Subs = count
}

// FakeClock is a manually advanced clock.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var ErrInjected = errors.New("injected store failure")

type kvStore interface {
	Get(ctx context.Context, keys []string) (map[string][]byte, error)
	Set(ctx context.Context, entries map[string][]byte) error
	Remove(ctx context.Context, keys []string) error
	GetAll(ctx context.Context) (map[string][]byte, error)
	Close() error
}

// FailingStore wraps a store and fails the selected calls with ErrInjected.
type FailingStore struct {
	Inner      kvStore
	mu         sync.Mutex
	FailGet    bool
	FailSet    bool
	FailRemove bool
	SetCalls   int
}

func (f *FailingStore) Fail(get, set, remove bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FailGet, f.FailSet, f.FailRemove = get, set, remove
}

func (f *FailingStore) Get(ctx context.Context, keys []string) (map[string][]byte, error) {
	f.mu.Lock()
	fail := f.FailGet
	f.mu.Unlock()
	if fail {
		return nil, ErrInjected
	}
	return f.Inner.Get(ctx, keys)
}

func (f *FailingStore) Set(ctx context.Context, entries map[string][]byte) error {
	f.mu.Lock()
	f.SetCalls++
	fail := f.FailSet
	f.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return f.Inner.Set(ctx, entries)
}

func (f *FailingStore) Remove(ctx context.Context, keys []string) error {
	f.mu.Lock()
	fail := f.FailRemove
	f.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return f.Inner.Remove(ctx, keys)
}

func (f *FailingStore) GetAll(ctx context.Context) (map[string][]byte, error) {
	f.mu.Lock()
	fail := f.FailGet
	f.mu.Unlock()
	if fail {
		return nil, ErrInjected
	}
	return f.Inner.GetAll(ctx)
}

func (f *FailingStore) Close() error {
	return f.Inner.Close()
}

// RecordingPublisher collects published changes.
type RecordingPublisher struct {
	mu      sync.Mutex
	Changes []models.Change
}

func (r *RecordingPublisher) Publish(changes []models.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Changes = append(r.Changes, changes...)
}

func (r *RecordingPublisher) Snapshot() []models.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Change, len(r.Changes))
	copy(out, r.Changes)
	return out
}
