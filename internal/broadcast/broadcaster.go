// internal/broadcast/broadcaster.go
package broadcast

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Subscriber receives encoded events. Send must not block; it returns false when the
// message was dropped.
type Subscriber interface {
	Send(msg []byte) bool
}

// Bus carries encoded events between processes so every instance can fan out locally.
type Bus interface {
	Publish(ctx context.Context, msg []byte) error
	Subscribe(ctx context.Context) (<-chan []byte, error)
	Close() error
}

// Connection is a buffered Subscriber owned by one client connection.
type Connection struct {
	UserID uuid.UUID
	Out    chan []byte
}

// NewConnection creates a Connection with the given outbound buffer size.
func NewConnection(userID uuid.UUID, buffer int) *Connection {
	return &Connection{UserID: userID, Out: make(chan []byte, buffer)}
}

// Send pushes msg onto Out without blocking.
func (c *Connection) Send(msg []byte) bool {
	select {
	case c.Out <- msg:
		return true
	default:
		return false
	}
}

// Broadcaster fans lobby events out to the subscribers registered in this process.
// With a Bus configured, Publish goes through the bus and Run delivers what comes back.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[Subscriber]struct{}
	closed bool

	bus Bus
	log *logrus.Logger
}

// New creates a Broadcaster. bus may be nil for single-process delivery.
func New(logger *logrus.Logger, bus Bus) *Broadcaster {
	return &Broadcaster{
		subs: make(map[uuid.UUID]map[Subscriber]struct{}),
		bus:  bus,
		log:  logger,
	}
}

// Subscribe registers s for events of lobbyID. Registering twice is a no-op.
func (b *Broadcaster) Subscribe(lobbyID uuid.UUID, s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if b.subs[lobbyID] == nil {
		b.subs[lobbyID] = make(map[Subscriber]struct{})
	}
	b.subs[lobbyID][s] = struct{}{}
}

// Unsubscribe removes s from lobbyID. Unknown subscriptions are ignored.
func (b *Broadcaster) Unsubscribe(lobbyID uuid.UUID, s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[lobbyID], s)
	if len(b.subs[lobbyID]) == 0 {
		delete(b.subs, lobbyID)
	}
}

// SubscriberCount returns the number of local subscribers for lobbyID.
func (b *Broadcaster) SubscriberCount(lobbyID uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[lobbyID])
}

// Publish delivers ev to every subscriber of its lobby. Delivery is best-effort:
// subscribers that cannot keep up miss the event.
func (b *Broadcaster) Publish(ctx context.Context, ev Event) error {
	data, err := Encode(ev)
	if err != nil {
		return err
	}
	if b.bus != nil {
		if err := b.bus.Publish(ctx, data); err != nil {
			return fmt.Errorf("publish %s to bus: %w", ev.Kind(), err)
		}
		return nil
	}
	b.deliver(ev.Lobby(), data)
	return nil
}

func (b *Broadcaster) deliver(lobbyID uuid.UUID, data []byte) {
	b.mu.RLock()
	targets := make([]Subscriber, 0, len(b.subs[lobbyID]))
	for s := range b.subs[lobbyID] {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	for _, s := range targets {
		if !s.Send(data) {
			b.log.WithField("lobby_id", lobbyID).Warn("subscriber buffer full, dropped event")
		}
	}
}

// Run consumes the bus until ctx is done. Without a bus it just waits for ctx.
func (b *Broadcaster) Run(ctx context.Context) error {
	if b.bus == nil {
		<-ctx.Done()
		return nil
	}

	msgs, err := b.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to bus: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case data, ok := <-msgs:
			if !ok {
				return nil
			}
			lobbyID, err := lobbyOf(data)
			if err != nil {
				b.log.Warnf("discarding malformed bus message: %v", err)
				continue
			}
			b.deliver(lobbyID, data)
		}
	}
}

// Close drops all subscriptions and closes the bus.
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	b.closed = true
	b.subs = make(map[uuid.UUID]map[Subscriber]struct{})
	b.mu.Unlock()

	if b.bus != nil {
		return b.bus.Close()
	}
	return nil
}
