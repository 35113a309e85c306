// Package notify dispatches domain events to registered handlers. Dispatch is
// synchronous and send-and-log: a failing or panicking handler is logged and
// counted, and never aborts the emitting operation or the other handlers.
package notify

import (
	"context"
	"log"
	"sync"

	"workflows/internal/domain"
	"workflows/internal/metrics"
)

// Handler consumes one domain event.
type Handler interface {
	Handle(ctx context.Context, event domain.Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, event domain.Event) error

func (f HandlerFunc) Handle(ctx context.Context, event domain.Event) error {
	return f(ctx, event)
}

type Notifier struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) Subscribe(h Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers = append(n.handlers, h)
}

// Emit delivers each event to every handler in subscription order.
func (n *Notifier) Emit(ctx context.Context, events ...domain.Event) {
	n.mu.RLock()
	handlers := make([]Handler, len(n.handlers))
	copy(handlers, n.handlers)
	n.mu.RUnlock()

	for _, event := range events {
		for _, h := range handlers {
			n.dispatch(ctx, h, event)
		}
	}
}

func (n *Notifier) dispatch(ctx context.Context, h Handler, event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.HandlerFailures.Inc()
			log.Printf("notify: handler panicked on %s: %v", event.Kind(), r)
		}
	}()

	if err := h.Handle(ctx, event); err != nil {
		metrics.HandlerFailures.Inc()
		log.Printf("notify: handler failed on %s: %v", event.Kind(), err)
	}
}
