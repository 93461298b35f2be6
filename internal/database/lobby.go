// internal/database/lobby.go
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/quizlobby/internal/apperrors"
	"github.com/jason-s-yu/quizlobby/internal/models"
)

// Every mutation below is one conditional UPDATE/DELETE. Postgres re-checks the WHERE
// clause after waiting on the row lock, so concurrent writers serialize on the row and
// each sees the others' effects. When no row matches, the follow-up read only classifies
// the error; it never decides anything.

const lobbyColumns = `
	id, quiz_id, host_user_id, participants, participant_limit, status,
	start_time, ended_at,
	winner_user_id, winner_attempt_id, winner_finished_at,
	created_at, updated_at`

func scanLobby(row pgx.Row) (*models.Lobby, error) {
	var (
		l         models.Lobby
		status    string
		wUser     uuid.NullUUID
		wAttempt  uuid.NullUUID
		wFinished *time.Time
	)
	err := row.Scan(
		&l.ID,
		&l.QuizID,
		&l.HostUserID,
		&l.Participants,
		&l.ParticipantLimit,
		&status,
		&l.StartTime,
		&l.EndedAt,
		&wUser,
		&wAttempt,
		&wFinished,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Status = models.Status(status)
	if wUser.Valid {
		l.Winner = &models.Winner{UserID: wUser.UUID, AttemptID: wAttempt.UUID}
		if wFinished != nil {
			l.Winner.FinishedAt = *wFinished
		}
	}
	return &l, nil
}

func collectLobbies(rows pgx.Rows) ([]*models.Lobby, error) {
	defer rows.Close()
	out := []*models.Lobby{}
	for rows.Next() {
		l, err := scanLobby(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// InsertLobby creates a new lobby row.
func (s *Store) InsertLobby(ctx context.Context, l *models.Lobby) error {
	q := `
	INSERT INTO lobbies (
		id, quiz_id, host_user_id, participants, participant_limit, status,
		start_time, created_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q,
			l.ID,
			l.QuizID,
			l.HostUserID,
			l.Participants,
			l.ParticipantLimit,
			string(l.Status),
			l.StartTime,
			l.CreatedAt,
			l.UpdatedAt,
		)
		return err
	})
	if pgErrorCode(err) == uniqueViolation {
		return apperrors.Conflict("lobby %s already exists", l.ID)
	}
	if err != nil {
		return fmt.Errorf("insert lobby: %w", err)
	}
	return nil
}

// GetLobby fetches a lobby by ID.
func (s *Store) GetLobby(ctx context.Context, id uuid.UUID) (*models.Lobby, error) {
	q := `SELECT ` + lobbyColumns + ` FROM lobbies WHERE id = $1`
	l, err := scanLobby(s.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("lobby %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get lobby: %w", err)
	}
	return l, nil
}

// AddParticipant appends userID when the lobby is waiting, has room, and userID is not a member.
func (s *Store) AddParticipant(ctx context.Context, lobbyID, userID uuid.UUID) (*models.Lobby, error) {
	q := `
	UPDATE lobbies
	SET participants = array_append(participants, $2::uuid), updated_at = NOW()
	WHERE id = $1
	  AND status = 'waiting'
	  AND NOT ($2::uuid = ANY(participants))
	  AND cardinality(participants) < participant_limit
	RETURNING ` + lobbyColumns
	l, err := scanLobby(s.pool.QueryRow(ctx, q, lobbyID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.classify(ctx, lobbyID, func(cur *models.Lobby) error { return cur.JoinError(userID) })
	}
	if err != nil {
		return nil, fmt.Errorf("add participant: %w", err)
	}
	return l, nil
}

// RemoveParticipant removes a non-host member, or ends the lobby when the host leaves.
func (s *Store) RemoveParticipant(ctx context.Context, lobbyID, userID uuid.UUID, now time.Time) (*models.Lobby, error) {
	q := `
	UPDATE lobbies
	SET participants = CASE WHEN host_user_id = $2::uuid THEN participants
	                        ELSE array_remove(participants, $2::uuid) END,
	    status       = CASE WHEN host_user_id = $2::uuid THEN 'ended' ELSE status END,
	    ended_at     = CASE WHEN host_user_id = $2::uuid THEN $3::timestamptz ELSE ended_at END,
	    updated_at   = $3::timestamptz
	WHERE id = $1
	  AND status <> 'ended'
	  AND $2::uuid = ANY(participants)
	RETURNING ` + lobbyColumns
	l, err := scanLobby(s.pool.QueryRow(ctx, q, lobbyID, userID, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.classify(ctx, lobbyID, func(cur *models.Lobby) error { return cur.LeaveError(userID) })
	}
	if err != nil {
		return nil, fmt.Errorf("remove participant: %w", err)
	}
	return l, nil
}

// StartLobby moves a waiting lobby hosted by hostID to started.
func (s *Store) StartLobby(ctx context.Context, lobbyID, hostID uuid.UUID, now time.Time) (*models.Lobby, error) {
	q := `
	UPDATE lobbies
	SET status = 'started', start_time = $3, updated_at = $3
	WHERE id = $1 AND host_user_id = $2 AND status = 'waiting'
	RETURNING ` + lobbyColumns
	l, err := scanLobby(s.pool.QueryRow(ctx, q, lobbyID, hostID, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.classify(ctx, lobbyID, func(cur *models.Lobby) error {
			return cur.HostTransitionError(hostID, models.StatusStarted)
		})
	}
	if err != nil {
		return nil, fmt.Errorf("start lobby: %w", err)
	}
	return l, nil
}

// EndLobby moves a waiting or started lobby hosted by hostID to ended.
func (s *Store) EndLobby(ctx context.Context, lobbyID, hostID uuid.UUID, now time.Time) (*models.Lobby, error) {
	q := `
	UPDATE lobbies
	SET status = 'ended', ended_at = $3, updated_at = $3
	WHERE id = $1 AND host_user_id = $2 AND status IN ('waiting', 'started')
	RETURNING ` + lobbyColumns
	l, err := scanLobby(s.pool.QueryRow(ctx, q, lobbyID, hostID, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, s.classify(ctx, lobbyID, func(cur *models.Lobby) error {
			return cur.HostTransitionError(hostID, models.StatusEnded)
		})
	}
	if err != nil {
		return nil, fmt.Errorf("end lobby: %w", err)
	}
	return l, nil
}

// DeleteLobby removes the lobby; its invites go with it through ON DELETE CASCADE.
func (s *Store) DeleteLobby(ctx context.Context, lobbyID, hostID uuid.UUID) error {
	q := `DELETE FROM lobbies WHERE id = $1 AND host_user_id = $2`
	ct, err := s.pool.Exec(ctx, q, lobbyID, hostID)
	if err != nil {
		return fmt.Errorf("delete lobby: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return s.classify(ctx, lobbyID, func(*models.Lobby) error {
			return apperrors.Forbidden("only the host can delete lobby %s", lobbyID)
		})
	}
	return nil
}

// StartDue starts every waiting lobby whose scheduled start_time is at or before now.
func (s *Store) StartDue(ctx context.Context, now time.Time) ([]*models.Lobby, error) {
	q := `
	UPDATE lobbies
	SET status = 'started', start_time = $1, updated_at = $1
	WHERE status = 'waiting' AND start_time IS NOT NULL AND start_time <= $1
	RETURNING ` + lobbyColumns
	rows, err := s.pool.Query(ctx, q, now)
	if err != nil {
		return nil, fmt.Errorf("start due lobbies: %w", err)
	}
	return collectLobbies(rows)
}

// DeclareWinner sets the winner when the lobby is started, has none yet, and the user participates.
func (s *Store) DeclareWinner(ctx context.Context, lobbyID uuid.UUID, w models.Winner) (*models.Lobby, bool, error) {
	q := `
	UPDATE lobbies
	SET winner_user_id = $2::uuid, winner_attempt_id = $3, winner_finished_at = $4, updated_at = NOW()
	WHERE id = $1
	  AND status = 'started'
	  AND winner_user_id IS NULL
	  AND $2::uuid = ANY(participants)
	RETURNING ` + lobbyColumns
	l, err := scanLobby(s.pool.QueryRow(ctx, q, lobbyID, w.UserID, w.AttemptID, w.FinishedAt))
	if err == nil {
		return l, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("declare winner: %w", err)
	}

	cur, err := s.GetLobby(ctx, lobbyID)
	if err != nil {
		return nil, false, err
	}
	if err := cur.WinnerError(w.UserID); err != nil {
		return nil, false, err
	}
	return cur, false, nil
}

// ListHostedBy returns lobbies hosted by userID, newest first.
func (s *Store) ListHostedBy(ctx context.Context, userID uuid.UUID) ([]*models.Lobby, error) {
	q := `SELECT ` + lobbyColumns + ` FROM lobbies WHERE host_user_id = $1 ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list hosted lobbies: %w", err)
	}
	return collectLobbies(rows)
}

// ListJoinedBy returns lobbies userID participates in without hosting, newest first.
func (s *Store) ListJoinedBy(ctx context.Context, userID uuid.UUID) ([]*models.Lobby, error) {
	q := `
	SELECT ` + lobbyColumns + `
	FROM lobbies
	WHERE $1::uuid = ANY(participants) AND host_user_id <> $1::uuid
	ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list joined lobbies: %w", err)
	}
	return collectLobbies(rows)
}

// classify reads the current row after a conditional write matched nothing.
func (s *Store) classify(ctx context.Context, lobbyID uuid.UUID, check func(*models.Lobby) error) error {
	cur, err := s.GetLobby(ctx, lobbyID)
	if err != nil {
		return err
	}
	if err := check(cur); err != nil {
		return err
	}
	// the row changed back between the write and the read
	return apperrors.Conflict("lobby %s changed concurrently, retry", lobbyID)
}
