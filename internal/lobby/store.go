// internal/lobby/store.go
package lobby

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlobby/internal/models"
)

// Store persists lobbies. Every mutating method is a single atomic conditional write:
// either the precondition holds and the change is applied, or nothing changes and a
// kinded error says why.
type Store interface {
	InsertLobby(ctx context.Context, l *models.Lobby) error
	GetLobby(ctx context.Context, id uuid.UUID) (*models.Lobby, error)

	// AddParticipant appends userID if the lobby is waiting, userID is not a member and
	// the lobby has room.
	AddParticipant(ctx context.Context, lobbyID, userID uuid.UUID) (*models.Lobby, error)

	// RemoveParticipant applies the leave policy: a non-host is removed, the host
	// leaving ends the lobby and stays recorded as a participant.
	RemoveParticipant(ctx context.Context, lobbyID, userID uuid.UUID, now time.Time) (*models.Lobby, error)

	StartLobby(ctx context.Context, lobbyID, hostID uuid.UUID, now time.Time) (*models.Lobby, error)
	EndLobby(ctx context.Context, lobbyID, hostID uuid.UUID, now time.Time) (*models.Lobby, error)
	DeleteLobby(ctx context.Context, lobbyID, hostID uuid.UUID) error

	// StartDue starts every waiting lobby whose scheduled start is at or before now.
	StartDue(ctx context.Context, now time.Time) ([]*models.Lobby, error)

	ListHostedBy(ctx context.Context, userID uuid.UUID) ([]*models.Lobby, error)
	ListJoinedBy(ctx context.Context, userID uuid.UUID) ([]*models.Lobby, error)
}

// QuizDirectory resolves quizzes owned by the quiz service.
type QuizDirectory interface {
	GetQuiz(ctx context.Context, id uuid.UUID) (*models.QuizRef, error)
}

// UserDirectory resolves public user profiles. Unknown ids are simply absent from the result.
type UserDirectory interface {
	GetUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.UserRef, error)
}

// InviteResolver validates invite codes.
type InviteResolver interface {
	Resolve(ctx context.Context, code string) (*models.Invite, error)
}
