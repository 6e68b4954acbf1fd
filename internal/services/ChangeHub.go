package services

import (
	"github.com/google/uuid"
	"parasited/internal/models"
	"parasited/internal/providers"
	"parasited/internal/structures"
	"sync"
)

const defaultSubscriberBuffer = 64

type ChangeHubInterface interface {
	Publish(changes []models.Change)
	Subscribe() *Subscription
	Unsubscribe(id string)
	Count() int
	Close()
}

// Subscription delivers changes in publish order. C is closed when the
// subscription ends.
type Subscription struct {
	ID string
	C  <-chan models.Change
	ch chan models.Change
}

// ChangeHub fans out persisted changes to every subscriber. A subscriber
// that falls behind loses its oldest undelivered changes; publishers never
// block.
type ChangeHub struct {
	mu      sync.RWMutex
	subs    map[string]*Subscription
	buffer  int
	closed  bool
	logger  providers.Logger
	metrics providers.MetricsProviderInterface
}

func NewChangeHub(conf *structures.Config, logger providers.Logger, metrics providers.MetricsProviderInterface) ChangeHubInterface {
	buffer := conf.Sync.SubscriberBuffer
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &ChangeHub{
		subs:    make(map[string]*Subscription),
		buffer:  buffer,
		logger:  logger,
		metrics: metrics,
	}
}

func (h *ChangeHub) Publish(changes []models.Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		for _, c := range changes {
			h.deliver(sub, c)
		}
	}
}

func (h *ChangeHub) deliver(sub *Subscription, c models.Change) {
	for {
		select {
		case sub.ch <- c:
			return
		default:
		}
		select {
		case dropped := <-sub.ch:
			h.logger.Debugf(providers.TypeSync, "Subscriber %s is slow, dropped change of %s", sub.ID, dropped.Key)
		default:
		}
	}
}

func (h *ChangeHub) Subscribe() *Subscription {
	ch := make(chan models.Change, h.buffer)
	sub := &Subscription{ID: uuid.NewString(), C: ch, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return sub
	}
	h.subs[sub.ID] = sub
	h.metrics.SetSubscribers(len(h.subs))
	return sub
}

func (h *ChangeHub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	close(sub.ch)
	h.metrics.SetSubscribers(len(h.subs))
}

func (h *ChangeHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription.
func (h *ChangeHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
	h.metrics.SetSubscribers(0)
}
