package feed

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBus fans notifications out across API instances with Redis pub/sub.
type RedisBus struct {
	rdb *redis.Client
	log *slog.Logger
}

func NewRedisBus(rdb *redis.Client, log *slog.Logger) *RedisBus {
	return &RedisBus{rdb: rdb, log: log}
}

func (b *RedisBus) Publish(ctx context.Context, channel string) error {
	if err := b.rdb.Publish(ctx, channel, "changed").Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, channel string, fn func()) (func(), error) {
	sub := b.rdb.Subscribe(ctx, channel)
	// Wait for the subscription to be confirmed so no publish after return is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	messages := sub.Channel()
	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-messages:
				if !ok {
					return
				}
				b.deliver(channel, fn)
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(cancel) }, nil
}

func (b *RedisBus) deliver(channel string, fn func()) {
	defer func() {
		if r := recover(); r != nil && b.log != nil {
			b.log.Error("feed handler panic", "channel", channel, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}
