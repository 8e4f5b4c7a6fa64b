// Package eventbus provides an in-process pub/sub event bus for domain events.
// Operations publish events after commit; subscribers run synchronously on the
// publishing goroutine, in subscription order.
package eventbus

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/matthewbaird/jigtrack/internal/event"
)

// Handler processes a domain event.
type Handler interface {
	HandleEvent(ctx context.Context, evt event.DomainEvent) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt event.DomainEvent) error

func (f HandlerFunc) HandleEvent(ctx context.Context, evt event.DomainEvent) error {
	return f(ctx, evt)
}

// Bus is a synchronous in-process event bus. A failing subscriber is logged
// and does not stop delivery to the others.
type Bus struct {
	mu          sync.RWMutex
	subscribers []namedHandler
	log         *zap.Logger
}

type namedHandler struct {
	name    string
	handler Handler
}

// New creates a new Bus.
func New(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{log: log}
}

// Subscribe registers a named handler.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, namedHandler{name: name, handler: h})
}

// Publish delivers evt to every subscriber before returning.
func (b *Bus) Publish(ctx context.Context, evt event.DomainEvent) {
	b.mu.RLock()
	subs := b.subscribers
	b.mu.RUnlock()

	for _, s := range subs {
		if err := s.handler.HandleEvent(ctx, evt); err != nil {
			b.log.Warn("event handler failed",
				zap.String("handler", s.name),
				zap.String("event_type", evt.EventType),
				zap.String("event_id", evt.ID),
				zap.Error(err))
		}
	}
}
