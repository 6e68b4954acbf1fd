package storage

import (
	"context"
	"fmt"
	"parasited/internal/providers"
	"parasited/internal/storage/interfaces"
	"parasited/internal/structures"
)

// StoreInterface is the persistent key-value store behind the authority.
// Values are JSON documents. Every call either fully succeeds or returns an
// error; there are no transactions across calls.
type StoreInterface interface {
	Get(ctx context.Context, keys []string) (map[string][]byte, error)
	Set(ctx context.Context, entries map[string][]byte) error
	Remove(ctx context.Context, keys []string) error
	GetAll(ctx context.Context) (map[string][]byte, error)
	Close() error
}

// PersisterInterface is implemented by stores that buffer writes in memory
// and flush them on a schedule.
type PersisterInterface interface {
	Persist() error
}

// NewStore opens the backend selected by storage.driver.
func NewStore(conf *structures.Config, compressor interfaces.CompressorInterface, logger providers.Logger) (StoreInterface, error) {
	s := conf.Storage
	switch s.Driver {
	case "memory":
		return NewMemoryStore(), nil
	case "file":
		return NewFileStore(s.FilePath, NewFileManager(compressor, logger), logger)
	case "sqlite":
		return NewSqliteStore(s.SqlitePath)
	case "postgres":
		return NewPostgresStore(s.PostgresDSN)
	case "badger":
		return NewBadgerStore(DefaultBadgerConfig(s.BadgerDir), logger)
	case "redis":
		return NewRedisStore(s.Redis)
	}
	return nil, fmt.Errorf("unknown storage driver %q", s.Driver)
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
