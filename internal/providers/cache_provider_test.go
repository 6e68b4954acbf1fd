package providers

import (
	"testing"

	"parasited/internal/structures"

	"github.com/stretchr/testify/assert"
)

// local mock logger to avoid import cycle with testutil
type nopLogger struct{}

func (m *nopLogger) Errorf(_ TypeEnum, _ string, _ ...interface{}) {}
func (m *nopLogger) Warnf(_ TypeEnum, _ string, _ ...interface{})  {}
func (m *nopLogger) Debugf(_ TypeEnum, _ string, _ ...interface{}) {}
func (m *nopLogger) Infof(_ TypeEnum, _ string, _ ...interface{})  {}
func (m *nopLogger) Fatalf(_ TypeEnum, _ string, _ ...interface{}) {}
func (m *nopLogger) Close()                                        {}

func cacheConfig(enabled bool, size int) *structures.Config {
	return &structures.Config{
		Cache: structures.CacheConfig{
			Enabled: enabled,
			Size:    size,
		},
	}
}

func TestCacheProvider_DisabledReturnsNoop(t *testing.T) {
	c := NewCacheProvider(cacheConfig(false, 10), &nopLogger{})
	_, ok := c.Get("any")
	assert.False(t, ok)
	assert.IsType(t, &noopCache{}, c)
}

func TestCacheProvider_ZeroSizeReturnsNoop(t *testing.T) {
	c := NewCacheProvider(cacheConfig(true, 0), &nopLogger{})
	assert.IsType(t, &noopCache{}, c)
}

func TestCacheProvider_EnabledReturnsCacheProvider(t *testing.T) {
	c := NewCacheProvider(cacheConfig(true, 1), &nopLogger{})
	assert.IsType(t, &CacheProvider{}, c)
	assert.Equal(t, cacheTTLSeconds, c.(*CacheProvider).ttl)
}

func TestCacheProvider_SetAndGet(t *testing.T) {
	c := NewCacheProvider(cacheConfig(true, 1), &nopLogger{})

	c.Set("history:3:2024-05-10:7", []byte(`[]`))
	val, ok := c.Get("history:3:2024-05-10:7")
	assert.True(t, ok)
	assert.Equal(t, []byte(`[]`), val)

	_, ok = c.Get("history:4:2024-05-10:7")
	assert.False(t, ok, "a new revision is a different key")
}

func TestCacheProvider_Miss(t *testing.T) {
	c := NewCacheProvider(cacheConfig(true, 1), &nopLogger{})

	val, ok := c.Get("nonexistent")
	assert.False(t, ok)
	assert.Nil(t, val)
}

func TestCacheProvider_Overwrite(t *testing.T) {
	c := NewCacheProvider(cacheConfig(true, 1), &nopLogger{})

	c.Set("catalog", []byte("v1"))
	c.Set("catalog", []byte("v2"))

	val, ok := c.Get("catalog")
	assert.True(t, ok)
	assert.Equal(t, []byte("v2"), val)
}

func TestNoopCache_AlwaysMiss(t *testing.T) {
	c := &noopCache{}
	c.Set("key1", []byte("value1"))

	val, ok := c.Get("key1")
	assert.False(t, ok)
	assert.Nil(t, val)
}
