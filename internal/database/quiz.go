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

// GetQuiz reads the id and title of a quiz.
func (s *Store) GetQuiz(ctx context.Context, id uuid.UUID) (*models.QuizRef, error) {
	var q models.QuizRef
	err := s.pool.QueryRow(ctx, `SELECT id, title FROM quizzes WHERE id = $1`, id).Scan(&q.ID, &q.Title)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("quiz %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	return &q, nil
}
