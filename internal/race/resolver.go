// internal/race/resolver.go
package race

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlobby/internal/apperrors"
	"github.com/jason-s-yu/quizlobby/internal/broadcast"
	"github.com/jason-s-yu/quizlobby/internal/models"
	"github.com/sirupsen/logrus"
)

// Store holds the winner slot of each lobby. DeclareWinner must set the winner in one
// atomic conditional write and report whether this call was the one that set it.
type Store interface {
	GetLobby(ctx context.Context, id uuid.UUID) (*models.Lobby, error)
	DeclareWinner(ctx context.Context, lobbyID uuid.UUID, w models.Winner) (*models.Lobby, bool, error)
}

// AttemptReader reads finished attempts from the attempt service. GetAttempt reports
// unknown or unfinished attempts as apperrors.ErrNotFound.
type AttemptReader interface {
	GetAttempt(ctx context.Context, id uuid.UUID) (*models.Attempt, error)
	ListByLobby(ctx context.Context, lobbyID uuid.UUID) ([]models.Attempt, error)
}

// UserDirectory resolves display names for standings.
type UserDirectory interface {
	GetUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.UserRef, error)
}

// Publisher receives winner events.
type Publisher interface {
	Publish(ctx context.Context, ev broadcast.Event) error
}

// Resolver declares exactly one winner per started lobby.
type Resolver struct {
	store    Store
	attempts AttemptReader
	users    UserDirectory
	pub      Publisher
	log      *logrus.Logger
}

func NewResolver(store Store, attempts AttemptReader, users UserDirectory, pub Publisher, logger *logrus.Logger) *Resolver {
	return &Resolver{store: store, attempts: attempts, users: users, pub: pub, log: logger}
}

// DeclareIfWinner records attemptID as the lobby's winning completion if no one has won
// yet. The attempt must be finished, owned by userID and tagged with lobbyID; the recorded
// finish time is the attempt's own completion time. It returns true only for the call that
// set the winner; later callers get false and no error. The store's write order decides
// the race, completion times are never compared.
func (r *Resolver) DeclareIfWinner(ctx context.Context, lobbyID, userID, attemptID uuid.UUID) (bool, error) {
	a, err := r.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return false, err
	}
	if a.UserID != userID {
		return false, apperrors.Forbidden("attempt %s belongs to another user", attemptID)
	}
	if a.LobbyID != lobbyID {
		return false, apperrors.Forbidden("attempt %s is not tagged with lobby %s", attemptID, lobbyID)
	}

	w := models.Winner{UserID: userID, AttemptID: a.ID, FinishedAt: a.CompletedAt}
	_, won, err := r.store.DeclareWinner(ctx, lobbyID, w)
	if err != nil {
		return false, err
	}
	entry := r.log.WithFields(logrus.Fields{"lobby_id": lobbyID, "user_id": userID})
	if !won {
		entry.Debug("completion did not win")
		return false, nil
	}

	entry.Info("winner declared")
	ev := broadcast.WinnerDeclared{LobbyID: lobbyID, UserID: userID, AttemptID: w.AttemptID, FinishedAt: w.FinishedAt}
	if err := r.pub.Publish(ctx, ev); err != nil {
		entry.Warnf("publish winner: %v", err)
	}
	return true, nil
}

// Standings lists the lobby's attempts by score descending, then completion time ascending.
func (r *Resolver) Standings(ctx context.Context, lobbyID uuid.UUID) ([]models.Standing, error) {
	l, err := r.store.GetLobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	attempts, err := r.attempts.ListByLobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(attempts, func(i, j int) bool {
		if attempts[i].Score != attempts[j].Score {
			return attempts[i].Score > attempts[j].Score
		}
		return attempts[i].CompletedAt.Before(attempts[j].CompletedAt)
	})

	ids := make([]uuid.UUID, 0, len(attempts))
	for _, a := range attempts {
		ids = append(ids, a.UserID)
	}
	users, err := r.users.GetUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.Standing, 0, len(attempts))
	for _, a := range attempts {
		u, ok := users[a.UserID]
		if !ok {
			u = models.FallbackUser(a.UserID)
		}
		out = append(out, models.Standing{
			User:        u,
			AttemptID:   a.ID,
			Score:       a.Score,
			CompletedAt: a.CompletedAt,
			Winner:      l.Winner != nil && l.Winner.AttemptID == a.ID,
		})
	}
	return out, nil
}
