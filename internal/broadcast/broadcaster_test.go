package broadcast

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlobby/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// loopbackBus echoes every published message to all subscribers, like a pub/sub channel.
type loopbackBus struct {
	mu     sync.Mutex
	subs   []chan []byte
	closed bool
}

func (b *loopbackBus) Publish(_ context.Context, msg []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		ch <- msg
	}
	return nil
}

func (b *loopbackBus) Subscribe(_ context.Context) (<-chan []byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan []byte, 16)
	b.subs = append(b.subs, ch)
	return ch, nil
}

func (b *loopbackBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *loopbackBus) subscribed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func receive(t *testing.T, c *Connection) Event {
	t.Helper()
	select {
	case msg := <-c.Out:
		ev, err := Decode(msg)
		require.NoError(t, err)
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
		return nil
	}
}

func TestPublishReachesOnlyLobbySubscribers(t *testing.T) {
	b := New(quietLogger(), nil)
	lobbyA, lobbyB := uuid.New(), uuid.New()

	a1 := NewConnection(uuid.New(), 4)
	a2 := NewConnection(uuid.New(), 4)
	other := NewConnection(uuid.New(), 4)
	b.Subscribe(lobbyA, a1)
	b.Subscribe(lobbyA, a2)
	b.Subscribe(lobbyB, other)

	start := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, b.Publish(context.Background(), LobbyStarted{LobbyID: lobbyA, StartTime: start}))

	for _, c := range []*Connection{a1, a2} {
		ev := receive(t, c)
		started, ok := ev.(LobbyStarted)
		require.True(t, ok)
		assert.Equal(t, lobbyA, started.LobbyID)
		assert.True(t, start.Equal(started.StartTime))
	}
	assert.Len(t, other.Out, 0)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(quietLogger(), nil)
	lobbyID := uuid.New()
	c := NewConnection(uuid.New(), 4)

	b.Subscribe(lobbyID, c)
	assert.Equal(t, 1, b.SubscriberCount(lobbyID))
	b.Unsubscribe(lobbyID, c)
	assert.Equal(t, 0, b.SubscriberCount(lobbyID))

	require.NoError(t, b.Publish(context.Background(), LobbyEnded{LobbyID: lobbyID, Reason: ReasonDeleted}))
	assert.Len(t, c.Out, 0)

	// unknown subscriptions are ignored
	b.Unsubscribe(uuid.New(), c)
}

func TestSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	b := New(quietLogger(), nil)
	lobbyID := uuid.New()
	slow := NewConnection(uuid.New(), 1)
	fast := NewConnection(uuid.New(), 8)
	b.Subscribe(lobbyID, slow)
	b.Subscribe(lobbyID, fast)

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Publish(context.Background(), LobbyUpdated{Snapshot: models.Snapshot{ID: lobbyID}}))
	}

	assert.Len(t, slow.Out, 1)
	assert.Len(t, fast.Out, 5)
}

func TestEncodeDecodeAllKinds(t *testing.T) {
	lobbyID := uuid.New()
	now := time.Now().UTC().Truncate(time.Millisecond)
	events := []Event{
		LobbyUpdated{Snapshot: models.Snapshot{ID: lobbyID, Status: models.StatusWaiting, ParticipantLimit: 3}},
		LobbyStarted{LobbyID: lobbyID, StartTime: now},
		WinnerDeclared{LobbyID: lobbyID, UserID: uuid.New(), AttemptID: uuid.New(), FinishedAt: now},
		LobbyEnded{LobbyID: lobbyID, Reason: ReasonHostLeft, EndedAt: now},
	}
	for _, ev := range events {
		data, err := Encode(ev)
		require.NoError(t, err)
		got, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, ev.Kind(), got.Kind())
		assert.Equal(t, lobbyID, got.Lobby())
	}

	_, err := Decode([]byte(`{"type":"lobby_exploded","lobbyId":"` + lobbyID.String() + `","payload":{}}`))
	assert.Error(t, err)
}

func TestBusModeDeliversThroughRun(t *testing.T) {
	bus := &loopbackBus{}
	b := New(quietLogger(), bus)
	lobbyID := uuid.New()
	c := NewConnection(uuid.New(), 4)
	b.Subscribe(lobbyID, c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	require.Eventually(t, func() bool { return bus.subscribed() == 1 }, 2*time.Second, 10*time.Millisecond)

	ev := WinnerDeclared{LobbyID: lobbyID, UserID: uuid.New(), AttemptID: uuid.New(), FinishedAt: time.Now().UTC()}
	require.NoError(t, b.Publish(ctx, ev))

	got := receive(t, c)
	assert.Equal(t, KindWinnerDeclared, got.Kind())

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, b.Close())
	assert.True(t, bus.closed)
}

func TestCloseDropsSubscriptions(t *testing.T) {
	b := New(quietLogger(), nil)
	lobbyID := uuid.New()
	b.Subscribe(lobbyID, NewConnection(uuid.New(), 1))
	require.NoError(t, b.Close())
	assert.Equal(t, 0, b.SubscriberCount(lobbyID))

	b.Subscribe(lobbyID, NewConnection(uuid.New(), 1))
	assert.Equal(t, 0, b.SubscriberCount(lobbyID))
}
