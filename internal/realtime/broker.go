package realtime

import (
	"context"
	"sync"
)

// Broker carries change events from writers to every hub instance.
type Broker interface {
	Publish(ctx context.Context, ev ChangeEvent) error
	// Subscribe returns a stream of events and a func that ends it.
	Subscribe(ctx context.Context) (<-chan ChangeEvent, func())
}

// MemoryBroker fans events out inside one process.
type MemoryBroker struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan ChangeEvent
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: make(map[int]chan ChangeEvent)}
}

func (b *MemoryBroker) Publish(_ context.Context, ev ChangeEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// subscriber is behind; drop rather than block the writer
		}
	}
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context) (<-chan ChangeEvent, func()) {
	ch := make(chan ChangeEvent, 256)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch, cancel
}
