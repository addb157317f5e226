// Package events fans domain events out to subscribers such as the log and
// metrics sinks.
package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vncsmyrnk/curation/internal/core/domain"
)

type SubscriberID int

type HandlerFunc func(ctx context.Context, event domain.Event)

type subscription struct {
	eventType domain.EventType
	all       bool
	handler   HandlerFunc
}

// Bus delivers events synchronously, in subscription order. A panicking
// handler is logged and does not stop delivery to the others.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[SubscriberID]subscription
	order       []SubscriberID
	lastID      SubscriberID
	logger      zerolog.Logger
}

func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[SubscriberID]subscription),
		logger:      logger,
	}
}

func (b *Bus) Subscribe(eventType domain.EventType, handler HandlerFunc) SubscriberID {
	return b.add(subscription{eventType: eventType, handler: handler})
}

// SubscribeAll receives every event type.
func (b *Bus) SubscribeAll(handler HandlerFunc) SubscriberID {
	return b.add(subscription{all: true, handler: handler})
}

func (b *Bus) add(sub subscription) SubscriberID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastID++
	b.subscribers[b.lastID] = sub
	b.order = append(b.order, b.lastID)
	return b.lastID
}

func (b *Bus) Unsubscribe(id SubscriberID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[id]; !ok {
		return
	}
	delete(b.subscribers, id)
	for i, sid := range b.order {
		if sid == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

func (b *Bus) Publish(ctx context.Context, event domain.Event) {
	b.mu.RLock()
	handlers := make([]HandlerFunc, 0, len(b.order))
	for _, id := range b.order {
		sub := b.subscribers[id]
		if sub.all || sub.eventType == event.Type {
			handlers = append(handlers, sub.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(ctx, h, event)
	}
}

func (b *Bus) deliver(ctx context.Context, h HandlerFunc, event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("event", string(event.Type)).
				Str("panic", fmt.Sprint(r)).
				Msg("event handler panicked")
		}
	}()
	h(ctx, event)
}
