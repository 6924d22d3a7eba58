package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the redis channel hints are published on.
const DefaultChannel = "progress:hints"

// Bus carries hints between server instances.
type Bus interface {
	Publish(ctx context.Context, hint Hint) error
	StartForwarder(ctx context.Context, onHint func(Hint)) error
	Close() error
}

// MemoryBus delivers hints to forwarders in the same process.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers []func(Hint)
}

// NewMemoryBus creates an in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

func (b *MemoryBus) Publish(_ context.Context, hint Hint) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, fn := range b.handlers {
		fn(hint)
	}
	return nil
}

func (b *MemoryBus) StartForwarder(_ context.Context, onHint func(Hint)) error {
	if onHint == nil {
		return fmt.Errorf("onHint callback required")
	}
	b.mu.Lock()
	b.handlers = append(b.handlers, onHint)
	b.mu.Unlock()
	return nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	b.handlers = nil
	b.mu.Unlock()
	return nil
}

// RedisBus publishes hints on a redis pub/sub channel so every instance
// sharing the redis server sees them.
type RedisBus struct {
	rdb     *redis.Client
	channel string
}

// NewRedisBus creates a bus on rdb. An empty channel uses DefaultChannel.
// The client is owned by the caller.
func NewRedisBus(rdb *redis.Client, channel string) *RedisBus {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBus{rdb: rdb, channel: channel}
}

func (b *RedisBus) Publish(ctx context.Context, hint Hint) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis bus not initialized")
	}
	raw, err := json.Marshal(hint)
	if err != nil {
		return fmt.Errorf("marshal hint: %w", err)
	}
	if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
		return fmt.Errorf("publish hint: %w", err)
	}
	return nil
}

// StartForwarder subscribes to the channel and calls onHint for every
// message until ctx is cancelled.
func (b *RedisBus) StartForwarder(ctx context.Context, onHint func(Hint)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis bus not initialized")
	}
	if onHint == nil {
		return fmt.Errorf("onHint callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	// Wait for the subscription confirmation.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var hint Hint
				if err := json.Unmarshal([]byte(m.Payload), &hint); err != nil {
					slog.Warn("bad hint payload", "channel", b.channel, "error", err)
					continue
				}
				onHint(hint)
			}
		}
	}()

	return nil
}

// Close is a no-op; the redis client belongs to the caller.
func (b *RedisBus) Close() error {
	return nil
}
