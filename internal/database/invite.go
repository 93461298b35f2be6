// internal/database/invite.go
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/quizlobby/internal/apperrors"
	"github.com/jason-s-yu/quizlobby/internal/models"
)

// InsertInvite stores a new invite. A taken code is reported as a conflict so the caller can retry.
func (s *Store) InsertInvite(ctx context.Context, inv *models.Invite) error {
	q := `
	INSERT INTO lobby_invites (code, lobby_id, inviter_user_id, expires_at, created_at)
	VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.pool.Exec(ctx, q, inv.Code, inv.LobbyID, inv.InviterUserID, inv.ExpiresAt, inv.CreatedAt)
	switch pgErrorCode(err) {
	case "":
	case uniqueViolation:
		return apperrors.Conflict("invite code already in use")
	case foreignKeyViolation:
		return apperrors.NotFound("lobby %s not found", inv.LobbyID)
	}
	if err != nil {
		return fmt.Errorf("insert invite: %w", err)
	}
	return nil
}

// GetInvite fetches an invite by code, expired or not.
func (s *Store) GetInvite(ctx context.Context, code string) (*models.Invite, error) {
	q := `
	SELECT code, lobby_id, inviter_user_id, expires_at, created_at
	FROM lobby_invites
	WHERE code = $1
	`
	var inv models.Invite
	err := s.pool.QueryRow(ctx, q, code).Scan(
		&inv.Code,
		&inv.LobbyID,
		&inv.InviterUserID,
		&inv.ExpiresAt,
		&inv.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("invite %s not found", code)
	}
	if err != nil {
		return nil, fmt.Errorf("get invite: %w", err)
	}
	return &inv, nil
}
