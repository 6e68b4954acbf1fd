package storage

import (
	"context"
	"go.uber.org/atomic"
	"parasited/internal/models"
	"parasited/internal/providers"
	"parasited/internal/storage/interfaces"
	"parasited/internal/structures"
	"sort"
)

// ChangePublisherInterface receives the changes of every successful write.
type ChangePublisherInterface interface {
	Publish(changes []models.Change)
}

// NotifyingStore publishes key-level changes after each successful write and
// counts writes, so read projections can be cached per revision.
type NotifyingStore struct {
	StoreInterface
	publisher ChangePublisherInterface
	revision  *atomic.Uint64
}

func NewNotifyingStore(inner StoreInterface, publisher ChangePublisherInterface) *NotifyingStore {
	return &NotifyingStore{
		StoreInterface: inner,
		publisher:      publisher,
		revision:       atomic.NewUint64(0),
	}
}

func (n *NotifyingStore) Set(ctx context.Context, entries map[string][]byte) error {
	if err := n.StoreInterface.Set(ctx, entries); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	n.revision.Inc()
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	changes := make([]models.Change, 0, len(keys))
	for _, k := range keys {
		changes = append(changes, models.NewChange(k, entries[k], false))
	}
	n.publisher.Publish(changes)
	return nil
}

func (n *NotifyingStore) Remove(ctx context.Context, keys []string) error {
	if err := n.StoreInterface.Remove(ctx, keys); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	n.revision.Inc()
	changes := make([]models.Change, 0, len(keys))
	for _, k := range keys {
		changes = append(changes, models.NewChange(k, nil, true))
	}
	n.publisher.Publish(changes)
	return nil
}

// Revision increases with every successful write.
func (n *NotifyingStore) Revision() uint64 {
	return n.revision.Load()
}

// Persist forwards to the wrapped store when it buffers writes.
func (n *NotifyingStore) Persist() error {
	if p, ok := n.StoreInterface.(PersisterInterface); ok {
		return p.Persist()
	}
	return nil
}

// NewObservedStore opens the configured backend and publishes its writes.
func NewObservedStore(conf *structures.Config, compressor interfaces.CompressorInterface, logger providers.Logger, publisher ChangePublisherInterface) (*NotifyingStore, error) {
	inner, err := NewStore(conf, compressor, logger)
	if err != nil {
		return nil, err
	}
	logger.Infof(providers.TypeStore, "Opened %s store", conf.Storage.Driver)
	return NewNotifyingStore(inner, publisher), nil
}
