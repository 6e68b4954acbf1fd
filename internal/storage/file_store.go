package storage

import (
	"context"
	"go.uber.org/atomic"
	"parasited/internal/providers"
	"sync"
)

// FileStore keeps the data in memory and writes a compressed snapshot to
// disk when Persist is called. Writes between two snapshots are lost on a
// crash.
type FileStore struct {
	*MemoryStore
	path        string
	fileManager *FileManager
	logger      providers.Logger
	dirty       *atomic.Bool
	persistMu   sync.Mutex
}

func NewFileStore(path string, fileManager *FileManager, logger providers.Logger) (*FileStore, error) {
	entries, err := fileManager.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	mem := NewMemoryStore()
	mem.Replace(entries)
	logger.Infof(providers.TypeStore, "Loaded %d keys from %s", len(entries), path)
	return &FileStore{
		MemoryStore: mem,
		path:        path,
		fileManager: fileManager,
		logger:      logger,
		dirty:       atomic.NewBool(false),
	}, nil
}

func (f *FileStore) Set(ctx context.Context, entries map[string][]byte) error {
	if err := f.MemoryStore.Set(ctx, entries); err != nil {
		return err
	}
	f.dirty.Store(true)
	return nil
}

func (f *FileStore) Remove(ctx context.Context, keys []string) error {
	if err := f.MemoryStore.Remove(ctx, keys); err != nil {
		return err
	}
	f.dirty.Store(true)
	return nil
}

// Persist writes a snapshot if anything changed since the last one.
func (f *FileStore) Persist() error {
	f.persistMu.Lock()
	defer f.persistMu.Unlock()

	if !f.dirty.Swap(false) {
		return nil
	}
	entries, _ := f.MemoryStore.GetAll(context.Background())
	if err := f.fileManager.SaveToFile(f.path, entries); err != nil {
		f.dirty.Store(true)
		return err
	}
	f.logger.Debugf(providers.TypeStore, "Persisted %d keys to %s", len(entries), f.path)
	return nil
}

func (f *FileStore) Close() error {
	err := f.Persist()
	f.fileManager.Close()
	return err
}
