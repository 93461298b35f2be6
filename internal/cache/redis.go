// internal/cache/redis.go
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultEventsChannel is the Redis pub/sub channel carrying lobby events between instances.
const DefaultEventsChannel = "quizlobby:events"

// Connect creates a Redis client for addr and verifies it with a ping.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// RedisBus relays encoded lobby events through a Redis pub/sub channel.
type RedisBus struct {
	rdb     *redis.Client
	channel string
}

// NewRedisBus creates a bus on channel, or DefaultEventsChannel when channel is empty.
func NewRedisBus(rdb *redis.Client, channel string) *RedisBus {
	if channel == "" {
		channel = DefaultEventsChannel
	}
	return &RedisBus{rdb: rdb, channel: channel}
}

// Publish sends msg to every instance subscribed to the channel, including this one.
func (b *RedisBus) Publish(ctx context.Context, msg []byte) error {
	if err := b.rdb.Publish(ctx, b.channel, msg).Err(); err != nil {
		return fmt.Errorf("failed to PUBLISH to Redis channel '%s': %w", b.channel, err)
	}
	return nil
}

// Subscribe streams channel messages until ctx is done, then closes the returned channel.
func (b *RedisBus) Subscribe(ctx context.Context) (<-chan []byte, error) {
	ps := b.rdb.Subscribe(ctx, b.channel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to SUBSCRIBE to Redis channel '%s': %w", b.channel, err)
	}

	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		defer ps.Close()
		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- []byte(m.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close closes the underlying client.
func (b *RedisBus) Close() error {
	return b.rdb.Close()
}
