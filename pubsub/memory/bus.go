package memorybus

import (
	"context"
	"sync"

	"github.com/PaulFidika/dialogkit/core"
)

// Handler receives one dialog event.
type Handler func(ctx context.Context, name core.EventName, payload any) error

// Bus is an in-process publish/subscribe bus. Publish runs handlers
// synchronously in subscription order so a Get call has finished notifying
// everyone before it returns.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[core.EventName][]Handler
}

func New() *Bus {
	return &Bus{subscribers: make(map[core.EventName][]Handler)}
}

func (b *Bus) Subscribe(name core.EventName, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[name] = append(b.subscribers[name], h)
}

// Publish delivers to every handler of name; the first handler error is
// returned after all handlers ran.
func (b *Bus) Publish(ctx context.Context, name core.EventName, payload any) error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[name]...)
	b.mu.RUnlock()

	var first error
	for _, h := range handlers {
		if err := h(ctx, name, payload); err != nil && first == nil {
			first = err
		}
	}
	return first
}
