// internal/lobby/memory.go
package lobby

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlobby/internal/apperrors"
	"github.com/jason-s-yu/quizlobby/internal/models"
)

// MemoryStore is an in-process Store. Each method holds the store lock for its whole
// check-and-write, which gives the same single-row atomicity as the Postgres store.
type MemoryStore struct {
	mu      sync.Mutex
	lobbies map[uuid.UUID]*models.Lobby
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{lobbies: make(map[uuid.UUID]*models.Lobby)}
}

func (m *MemoryStore) InsertLobby(_ context.Context, l *models.Lobby) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lobbies[l.ID]; ok {
		return apperrors.Conflict("lobby %s already exists", l.ID)
	}
	m.lobbies[l.ID] = l.Clone()
	return nil
}

func (m *MemoryStore) GetLobby(_ context.Context, id uuid.UUID) (*models.Lobby, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, err := m.getLocked(id)
	if err != nil {
		return nil, err
	}
	return l.Clone(), nil
}

func (m *MemoryStore) getLocked(id uuid.UUID) (*models.Lobby, error) {
	l, ok := m.lobbies[id]
	if !ok {
		return nil, apperrors.NotFound("lobby %s not found", id)
	}
	return l, nil
}

func (m *MemoryStore) AddParticipant(_ context.Context, lobbyID, userID uuid.UUID) (*models.Lobby, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, err := m.getLocked(lobbyID)
	if err != nil {
		return nil, err
	}
	if err := l.JoinError(userID); err != nil {
		return nil, err
	}
	l.Participants = append(l.Participants, userID)
	l.UpdatedAt = time.Now()
	return l.Clone(), nil
}

func (m *MemoryStore) RemoveParticipant(_ context.Context, lobbyID, userID uuid.UUID, now time.Time) (*models.Lobby, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, err := m.getLocked(lobbyID)
	if err != nil {
		return nil, err
	}
	if err := l.LeaveError(userID); err != nil {
		return nil, err
	}
	if l.IsHost(userID) {
		l.Status = models.StatusEnded
		l.EndedAt = &now
	} else {
		kept := l.Participants[:0]
		for _, p := range l.Participants {
			if p != userID {
				kept = append(kept, p)
			}
		}
		l.Participants = kept
	}
	l.UpdatedAt = now
	return l.Clone(), nil
}

func (m *MemoryStore) StartLobby(_ context.Context, lobbyID, hostID uuid.UUID, now time.Time) (*models.Lobby, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, err := m.getLocked(lobbyID)
	if err != nil {
		return nil, err
	}
	if err := l.HostTransitionError(hostID, models.StatusStarted); err != nil {
		return nil, err
	}
	l.Status = models.StatusStarted
	l.StartTime = &now
	l.UpdatedAt = now
	return l.Clone(), nil
}

func (m *MemoryStore) EndLobby(_ context.Context, lobbyID, hostID uuid.UUID, now time.Time) (*models.Lobby, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, err := m.getLocked(lobbyID)
	if err != nil {
		return nil, err
	}
	if err := l.HostTransitionError(hostID, models.StatusEnded); err != nil {
		return nil, err
	}
	l.Status = models.StatusEnded
	l.EndedAt = &now
	l.UpdatedAt = now
	return l.Clone(), nil
}

func (m *MemoryStore) DeleteLobby(_ context.Context, lobbyID, hostID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, err := m.getLocked(lobbyID)
	if err != nil {
		return err
	}
	if !l.IsHost(hostID) {
		return apperrors.Forbidden("only the host can delete lobby %s", lobbyID)
	}
	delete(m.lobbies, lobbyID)
	return nil
}

func (m *MemoryStore) StartDue(_ context.Context, now time.Time) ([]*models.Lobby, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var started []*models.Lobby
	for _, l := range m.lobbies {
		if l.Status != models.StatusWaiting || l.StartTime == nil || l.StartTime.After(now) {
			continue
		}
		l.Status = models.StatusStarted
		t := now
		l.StartTime = &t
		l.UpdatedAt = now
		started = append(started, l.Clone())
	}
	return started, nil
}

// DeclareWinner sets the winner if the lobby is started, has no winner and userID participates.
func (m *MemoryStore) DeclareWinner(_ context.Context, lobbyID uuid.UUID, w models.Winner) (*models.Lobby, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, err := m.getLocked(lobbyID)
	if err != nil {
		return nil, false, err
	}
	if err := l.WinnerError(w.UserID); err != nil {
		return nil, false, err
	}
	if l.Status != models.StatusStarted || l.Winner != nil {
		return l.Clone(), false, nil
	}
	winner := w
	l.Winner = &winner
	l.UpdatedAt = time.Now()
	return l.Clone(), true, nil
}

func (m *MemoryStore) ListHostedBy(_ context.Context, userID uuid.UUID) ([]*models.Lobby, error) {
	return m.list(func(l *models.Lobby) bool { return l.IsHost(userID) }), nil
}

func (m *MemoryStore) ListJoinedBy(_ context.Context, userID uuid.UUID) ([]*models.Lobby, error) {
	return m.list(func(l *models.Lobby) bool { return !l.IsHost(userID) && l.HasParticipant(userID) }), nil
}

func (m *MemoryStore) list(match func(*models.Lobby) bool) []*models.Lobby {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Lobby{}
	for _, l := range m.lobbies {
		if match(l) {
			out = append(out, l.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
