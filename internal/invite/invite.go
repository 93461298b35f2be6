// internal/invite/invite.go
package invite

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlobby/internal/apperrors"
	"github.com/jason-s-yu/quizlobby/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultTTL is how long an issued invite stays valid.
const DefaultTTL = 24 * time.Hour

const (
	codeBytes        = 12
	maxIssueAttempts = 3
)

// Store persists invites. InsertInvite returns a conflict error when the code is taken;
// GetInvite returns a not_found error for unknown codes.
type Store interface {
	InsertInvite(ctx context.Context, inv *models.Invite) error
	GetInvite(ctx context.Context, code string) (*models.Invite, error)
}

// LobbyReader is the read side of the lobby store used to authorize issuing.
type LobbyReader interface {
	GetLobby(ctx context.Context, id uuid.UUID) (*models.Lobby, error)
}

// Service issues and resolves invite codes.
type Service struct {
	store   Store
	lobbies LobbyReader
	log     *logrus.Logger

	ttl     time.Duration
	now     func() time.Time
	newCode func() (string, error)
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithCodeGenerator overrides the code source.
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(s *Service) { s.newCode = gen }
}

// NewService builds an invite Service with the default 24h TTL.
func NewService(store Store, lobbies LobbyReader, logger *logrus.Logger, opts ...Option) *Service {
	s := &Service{
		store:   store,
		lobbies: lobbies,
		log:     logger,
		ttl:     DefaultTTL,
		now:     time.Now,
		newCode: GenerateCode,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateCode returns a hex encoded code backed by 12 random bytes.
func GenerateCode() (string, error) {
	b := make([]byte, codeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Issue creates an invite for lobbyID. Only the host may invite, and only while the lobby is waiting.
func (s *Service) Issue(ctx context.Context, lobbyID, inviterID uuid.UUID) (*models.Invite, error) {
	lob, err := s.lobbies.GetLobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if !lob.IsHost(inviterID) {
		return nil, apperrors.Forbidden("only the host can invite to lobby %s", lobbyID)
	}
	if lob.Status != models.StatusWaiting {
		return nil, apperrors.InvalidState("lobby %s is %s", lobbyID, lob.Status)
	}

	now := s.now()
	for attempt := 1; ; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, err
		}
		inv := &models.Invite{
			Code:          code,
			LobbyID:       lobbyID,
			InviterUserID: inviterID,
			ExpiresAt:     now.Add(s.ttl),
			CreatedAt:     now,
		}
		err = s.store.InsertInvite(ctx, inv)
		if err == nil {
			s.log.WithFields(logrus.Fields{
				"lobby_id": lobbyID,
				"user_id":  inviterID,
			}).Debug("invite issued")
			return inv, nil
		}
		if !errors.Is(err, apperrors.ErrConflict) || attempt >= maxIssueAttempts {
			return nil, err
		}
		s.log.WithField("lobby_id", lobbyID).Warnf("invite code collision, retrying (attempt %d)", attempt)
	}
}

// Resolve returns the invite for code if it has not expired. It has no side effects.
func (s *Service) Resolve(ctx context.Context, code string) (*models.Invite, error) {
	inv, err := s.store.GetInvite(ctx, code)
	if err != nil {
		return nil, err
	}
	if inv.ExpiredAt(s.now()) {
		return nil, apperrors.Expired("invite %s has expired", code)
	}
	return inv, nil
}
