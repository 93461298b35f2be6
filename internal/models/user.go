package models

import (
	"fmt"

	"github.com/google/uuid"
)

// UserRef is the public view of a user as shown in lobby snapshots.
type UserRef struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"displayName"`
}

// FallbackUser builds a placeholder ref for users missing from the directory.
func FallbackUser(id uuid.UUID) UserRef {
	return UserRef{ID: id, DisplayName: fmt.Sprintf("User_%s", id.String()[:4])}
}

// QuizRef is the subset of a quiz this service reads.
type QuizRef struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}
