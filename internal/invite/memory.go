package invite

import (
	"context"
	"sync"

	"github.com/jason-s-yu/quizlobby/internal/apperrors"
	"github.com/jason-s-yu/quizlobby/internal/models"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	invites map[string]models.Invite
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{invites: make(map[string]models.Invite)}
}

func (m *MemoryStore) InsertInvite(_ context.Context, inv *models.Invite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invites[inv.Code]; ok {
		return apperrors.Conflict("invite code already in use")
	}
	m.invites[inv.Code] = *inv
	return nil
}

func (m *MemoryStore) GetInvite(_ context.Context, code string) (*models.Invite, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.invites[code]
	if !ok {
		return nil, apperrors.NotFound("invite %s not found", code)
	}
	return &inv, nil
}
