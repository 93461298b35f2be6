// internal/database/user.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlobby/internal/models"
)

// GetUsers returns display refs for the given ids. Unknown ids are absent from the map.
func (s *Store) GetUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.UserRef, error) {
	out := make(map[uuid.UUID]models.UserRef, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q := `SELECT id, display_name FROM users WHERE id = ANY($1)`
	rows, err := s.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var u models.UserRef
		if err := rows.Scan(&u.ID, &u.DisplayName); err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}
