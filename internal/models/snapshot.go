package models

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is the full client-facing view of a lobby, used by the API and by lobby_updated events.
type Snapshot struct {
	ID               uuid.UUID  `json:"id"`
	Quiz             QuizRef    `json:"quiz"`
	Host             UserRef    `json:"host"`
	Participants     []UserRef  `json:"participants"`
	ParticipantLimit int        `json:"participantLimit"`
	Status           Status     `json:"status"`
	StartTime        *time.Time `json:"startTime,omitempty"`
	EndedAt          *time.Time `json:"endedAt,omitempty"`
	Winner           *Winner    `json:"winner,omitempty"`
}

// Attempt is a finished quiz attempt tagged with a lobby, owned by the attempt service.
type Attempt struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"userId"`
	LobbyID     uuid.UUID `json:"lobbyId"`
	Score       int       `json:"score"`
	CompletedAt time.Time `json:"completedAt"`
}

// Standing is one row of a lobby's race results.
type Standing struct {
	User        UserRef   `json:"user"`
	AttemptID   uuid.UUID `json:"attemptId"`
	Score       int       `json:"score"`
	CompletedAt time.Time `json:"completedAt"`
	Winner      bool      `json:"winner"`
}
