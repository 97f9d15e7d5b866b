// Package feed delivers per-user change notifications and turns them into
// live snapshots of a user's media collections.
package feed

import (
	"context"
	"sync"
)

// Bus carries bare change notifications. Handlers run on a goroutine owned by
// the subscription, one call at a time; bursts may be coalesced.
type Bus interface {
	Publish(ctx context.Context, channel string) error
	Subscribe(ctx context.Context, channel string, fn func()) (unsubscribe func(), err error)
}

// Channel names the notification channel of one user's collection.
func Channel(collection, uid string) string {
	return "feed:" + collection + ":" + uid
}

// MemoryBus is an in-process Bus for single-instance deployments and tests.
type MemoryBus struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]*memorySub
}

type memorySub struct {
	signal chan struct{}
	done   chan struct{}
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[int]*memorySub)}
}

func (b *MemoryBus) Publish(_ context.Context, channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs[channel] {
		select {
		case sub.signal <- struct{}{}:
		default:
			// a notification is already pending for this subscriber
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, channel string, fn func()) (func(), error) {
	sub := &memorySub{signal: make(chan struct{}, 1), done: make(chan struct{})}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[int]*memorySub)
	}
	b.subs[channel][id] = sub
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[channel], id)
			if len(b.subs[channel]) == 0 {
				delete(b.subs, channel)
			}
			b.mu.Unlock()
			close(sub.done)
		})
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				unsubscribe()
				return
			case <-sub.done:
				return
			case <-sub.signal:
				fn()
			}
		}
	}()
	return unsubscribe, nil
}
