package race

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlobby/internal/apperrors"
	"github.com/jason-s-yu/quizlobby/internal/broadcast"
	"github.com/jason-s-yu/quizlobby/internal/lobby"
	"github.com/jason-s-yu/quizlobby/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPublisher struct {
	mu      sync.Mutex
	winners []broadcast.WinnerDeclared
}

func (p *countingPublisher) Publish(_ context.Context, ev broadcast.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if w, ok := ev.(broadcast.WinnerDeclared); ok {
		p.winners = append(p.winners, w)
	}
	return nil
}

type stubAttempts []models.Attempt

func (s stubAttempts) GetAttempt(_ context.Context, id uuid.UUID) (*models.Attempt, error) {
	for _, a := range s {
		if a.ID == id {
			a := a
			return &a, nil
		}
	}
	return nil, apperrors.NotFound("finished attempt %s not found", id)
}

func (s stubAttempts) ListByLobby(_ context.Context, lobbyID uuid.UUID) ([]models.Attempt, error) {
	var out []models.Attempt
	for _, a := range s {
		if a.LobbyID == lobbyID {
			out = append(out, a)
		}
	}
	return out, nil
}

type stubUsers map[uuid.UUID]models.UserRef

func (s stubUsers) GetUsers(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]models.UserRef, error) {
	out := make(map[uuid.UUID]models.UserRef)
	for _, id := range ids {
		if u, ok := s[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// startedLobby inserts a started lobby with the given participants into store.
func startedLobby(t *testing.T, store *lobby.MemoryStore, participants ...uuid.UUID) *models.Lobby {
	t.Helper()
	now := time.Now()
	l := &models.Lobby{
		ID:               uuid.New(),
		QuizID:           uuid.New(),
		HostUserID:       participants[0],
		Participants:     participants,
		ParticipantLimit: len(participants),
		Status:           models.StatusStarted,
		StartTime:        &now,
		CreatedAt:        now,
	}
	require.NoError(t, store.InsertLobby(context.Background(), l))
	return l
}

// finishedAttempt returns a finished attempt by userID tagged with lobbyID.
func finishedAttempt(lobbyID, userID uuid.UUID, score int, at time.Time) models.Attempt {
	return models.Attempt{ID: uuid.New(), UserID: userID, LobbyID: lobbyID, Score: score, CompletedAt: at}
}

func newParticipants(n int) []uuid.UUID {
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = uuid.New()
	}
	return out
}

func TestConcurrentCompletionsDeclareExactlyOneWinner(t *testing.T) {
	store := lobby.NewMemoryStore()
	pub := &countingPublisher{}
	users := newParticipants(16)
	l := startedLobby(t, store, users...)

	// identical completion times for everyone
	finished := time.Now().UTC()
	attempts := make(stubAttempts, len(users))
	for i, u := range users {
		attempts[i] = finishedAttempt(l.ID, u, 10, finished)
	}
	r := NewResolver(store, attempts, stubUsers{}, pub, quietLogger())

	var wg sync.WaitGroup
	results := make(chan bool, len(users))
	for _, a := range attempts {
		wg.Add(1)
		go func(a models.Attempt) {
			defer wg.Done()
			won, err := r.DeclareIfWinner(context.Background(), l.ID, a.UserID, a.ID)
			assert.NoError(t, err)
			results <- won
		}(a)
	}
	wg.Wait()
	close(results)

	wins := 0
	for won := range results {
		if won {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
	require.Len(t, pub.winners, 1)

	got, err := store.GetLobby(context.Background(), l.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Winner)
	assert.Equal(t, pub.winners[0].UserID, got.Winner.UserID)
	assert.Equal(t, pub.winners[0].AttemptID, got.Winner.AttemptID)
}

func TestWriteOrderBeatsEarlierTimestamp(t *testing.T) {
	store := lobby.NewMemoryStore()
	pub := &countingPublisher{}
	users := newParticipants(2)
	l := startedLobby(t, store, users...)
	ctx := context.Background()
	base := time.Now().UTC()

	late := finishedAttempt(l.ID, users[0], 3, base.Add(time.Second))
	early := finishedAttempt(l.ID, users[1], 3, base)
	r := NewResolver(store, stubAttempts{late, early}, stubUsers{}, pub, quietLogger())

	won, err := r.DeclareIfWinner(ctx, l.ID, users[0], late.ID)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = r.DeclareIfWinner(ctx, l.ID, users[1], early.ID)
	require.NoError(t, err)
	assert.False(t, won)

	got, err := store.GetLobby(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, users[0], got.Winner.UserID)
	assert.True(t, late.CompletedAt.Equal(got.Winner.FinishedAt))
	assert.Len(t, pub.winners, 1)
}

func TestDeclareRejections(t *testing.T) {
	store := lobby.NewMemoryStore()
	pub := &countingPublisher{}
	users := newParticipants(2)
	l := startedLobby(t, store, users...)
	ctx := context.Background()
	now := time.Now().UTC()

	waiting := &models.Lobby{
		ID:               uuid.New(),
		HostUserID:       users[0],
		Participants:     []uuid.UUID{users[0]},
		ParticipantLimit: 2,
		Status:           models.StatusWaiting,
	}
	require.NoError(t, store.InsertLobby(ctx, waiting))

	missingLobby := uuid.New()
	outsider := uuid.New()
	own := finishedAttempt(l.ID, users[0], 1, now)
	otherLobby := finishedAttempt(uuid.New(), users[0], 1, now)
	untagged := finishedAttempt(uuid.Nil, users[0], 1, now)
	forMissing := finishedAttempt(missingLobby, users[0], 1, now)
	byOutsider := finishedAttempt(l.ID, outsider, 1, now)
	inWaiting := finishedAttempt(waiting.ID, users[0], 1, now)
	r := NewResolver(store, stubAttempts{own, otherLobby, untagged, forMissing, byOutsider, inWaiting}, stubUsers{}, pub, quietLogger())

	tests := []struct {
		name    string
		lobbyID uuid.UUID
		userID  uuid.UUID
		attempt uuid.UUID
		want    error
	}{
		{"unknown attempt", l.ID, users[0], uuid.New(), apperrors.ErrNotFound},
		{"another user's attempt", l.ID, users[1], own.ID, apperrors.ErrForbidden},
		{"attempt from another lobby", l.ID, users[0], otherLobby.ID, apperrors.ErrForbidden},
		{"attempt without a lobby", l.ID, users[0], untagged.ID, apperrors.ErrForbidden},
		{"unknown lobby", missingLobby, users[0], forMissing.ID, apperrors.ErrNotFound},
		{"non participant", l.ID, outsider, byOutsider.ID, apperrors.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			won, err := r.DeclareIfWinner(ctx, tt.lobbyID, tt.userID, tt.attempt)
			assert.ErrorIs(t, err, tt.want)
			assert.False(t, won)
		})
	}

	won, err := r.DeclareIfWinner(ctx, waiting.ID, users[0], inWaiting.ID)
	require.NoError(t, err)
	assert.False(t, won)

	assert.Empty(t, pub.winners)
	got, err := store.GetLobby(ctx, l.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Winner)
}

func TestStandingsOrder(t *testing.T) {
	store := lobby.NewMemoryStore()
	users := newParticipants(3)
	l := startedLobby(t, store, users...)
	base := time.Now().UTC()

	attempts := stubAttempts{
		{ID: uuid.New(), UserID: users[0], LobbyID: l.ID, Score: 5, CompletedAt: base.Add(2 * time.Second)},
		{ID: uuid.New(), UserID: users[1], LobbyID: l.ID, Score: 8, CompletedAt: base.Add(3 * time.Second)},
		{ID: uuid.New(), UserID: users[2], LobbyID: l.ID, Score: 5, CompletedAt: base.Add(time.Second)},
		{ID: uuid.New(), UserID: users[2], LobbyID: uuid.New(), Score: 10, CompletedAt: base},
	}
	r := NewResolver(store, attempts, stubUsers{users[1]: {ID: users[1], DisplayName: "ada"}}, &countingPublisher{}, quietLogger())

	won, err := r.DeclareIfWinner(context.Background(), l.ID, users[2], attempts[2].ID)
	require.NoError(t, err)
	require.True(t, won)

	standings, err := r.Standings(context.Background(), l.ID)
	require.NoError(t, err)
	require.Len(t, standings, 3)
	assert.Equal(t, "ada", standings[0].User.DisplayName)
	assert.Equal(t, users[2], standings[1].User.ID)
	assert.True(t, standings[1].Winner)
	assert.Equal(t, users[0], standings[2].User.ID)
	assert.False(t, standings[2].Winner)

	_, err = r.Standings(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
