package storage

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, keys []string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = copyBytes(v)
		}
	}
	return out, nil
}

func (m *MemoryStore) Set(_ context.Context, entries map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range entries {
		m.data[k] = copyBytes(v)
	}
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *MemoryStore) GetAll(_ context.Context) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		out[k] = copyBytes(v)
	}
	return out, nil
}

// Replace swaps the whole content, used when loading a snapshot.
func (m *MemoryStore) Replace(entries map[string][]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string][]byte, len(entries))
	for k, v := range entries {
		m.data[k] = copyBytes(v)
	}
}

func (m *MemoryStore) Close() error {
	return nil
}
