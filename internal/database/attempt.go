package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/quizlobby/internal/apperrors"
	"github.com/jason-s-yu/quizlobby/internal/models"
)

// GetAttempt returns a finished attempt. Unfinished attempts are reported as not found.
// An attempt with no lobby tag comes back with a nil LobbyID.
func (s *Store) GetAttempt(ctx context.Context, id uuid.UUID) (*models.Attempt, error) {
	q := `
	SELECT id, user_id, lobby_id, score, completed_at
	FROM attempts
	WHERE id = $1 AND completed_at IS NOT NULL
	`
	var a models.Attempt
	var lobbyID uuid.NullUUID
	err := s.pool.QueryRow(ctx, q, id).Scan(&a.ID, &a.UserID, &lobbyID, &a.Score, &a.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("finished attempt %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if lobbyID.Valid {
		a.LobbyID = lobbyID.UUID
	}
	return &a, nil
}

// ListByLobby returns the finished attempts tagged with lobbyID.
func (s *Store) ListByLobby(ctx context.Context, lobbyID uuid.UUID) ([]models.Attempt, error) {
	q := `
	SELECT id, user_id, lobby_id, score, completed_at
	FROM attempts
	WHERE lobby_id = $1 AND completed_at IS NOT NULL
	ORDER BY score DESC, completed_at ASC
	`
	rows, err := s.pool.Query(ctx, q, lobbyID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []models.Attempt
	for rows.Next() {
		var a models.Attempt
		if err := rows.Scan(&a.ID, &a.UserID, &a.LobbyID, &a.Score, &a.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
