// internal/models/lobby.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlobby/internal/apperrors"
)

// Status is the lifecycle state of a lobby.
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusStarted Status = "started"
	StatusEnded   Status = "ended"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusStarted, StatusEnded:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is allowed.
// Status only moves forward: waiting -> started -> ended, or waiting -> ended.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusWaiting:
		return next == StatusStarted || next == StatusEnded
	case StatusStarted:
		return next == StatusEnded
	}
	return false
}

// ValidateTransition returns an invalid_state error when s cannot move to next.
func (s Status) ValidateTransition(next Status) error {
	if !s.CanTransition(next) {
		return apperrors.InvalidState("lobby cannot move from %s to %s", s, next)
	}
	return nil
}

// Winner records the first valid completion of a started lobby.
type Winner struct {
	UserID     uuid.UUID `json:"userId"`
	AttemptID  uuid.UUID `json:"attemptId"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Lobby represents a row in the lobbies table.
//
// Participants is an ordered set that always contains HostUserID and never exceeds
// ParticipantLimit. StartTime holds the scheduled auto-start while waiting and the actual
// start once started.
type Lobby struct {
	ID               uuid.UUID   `json:"id"`
	QuizID           uuid.UUID   `json:"quizId"`
	HostUserID       uuid.UUID   `json:"hostUserId"`
	Participants     []uuid.UUID `json:"participants"`
	ParticipantLimit int         `json:"participantLimit"`
	Status           Status      `json:"status"`
	StartTime        *time.Time  `json:"startTime,omitempty"`
	EndedAt          *time.Time  `json:"endedAt,omitempty"`
	Winner           *Winner     `json:"winner,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// IsHost reports whether userID hosts the lobby.
func (l *Lobby) IsHost(userID uuid.UUID) bool {
	return l.HostUserID == userID
}

// HasParticipant reports whether userID is in the participant set.
func (l *Lobby) HasParticipant(userID uuid.UUID) bool {
	for _, p := range l.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// IsFull reports whether the participant set has reached its limit.
func (l *Lobby) IsFull() bool {
	return len(l.Participants) >= l.ParticipantLimit
}

// JoinError classifies why userID cannot join l, or returns nil if a join would succeed.
// Checks run in the order callers observe them: state, membership, capacity.
func (l *Lobby) JoinError(userID uuid.UUID) error {
	if l.Status != StatusWaiting {
		return apperrors.InvalidState("lobby %s is %s", l.ID, l.Status)
	}
	if l.HasParticipant(userID) {
		return apperrors.Conflict("user %s already joined lobby %s", userID, l.ID)
	}
	if l.IsFull() {
		return apperrors.CapacityExceeded("lobby %s is full", l.ID)
	}
	return nil
}

// LeaveError classifies why userID cannot leave l, or returns nil.
func (l *Lobby) LeaveError(userID uuid.UUID) error {
	if l.Status == StatusEnded {
		return apperrors.InvalidState("lobby %s has ended", l.ID)
	}
	if !l.HasParticipant(userID) {
		return apperrors.NotFound("user %s is not in lobby %s", userID, l.ID)
	}
	return nil
}

// HostTransitionError classifies why hostID cannot move l to next, or returns nil.
func (l *Lobby) HostTransitionError(hostID uuid.UUID, next Status) error {
	if !l.IsHost(hostID) {
		return apperrors.Forbidden("only the host can change lobby %s", l.ID)
	}
	return l.Status.ValidateTransition(next)
}

// WinnerError classifies a declaration by userID that did not set the winner. A lobby
// that is not started, or already has a winner, is a lost race and not an error.
func (l *Lobby) WinnerError(userID uuid.UUID) error {
	if !l.HasParticipant(userID) {
		return apperrors.Forbidden("user %s is not in lobby %s", userID, l.ID)
	}
	return nil
}

// Clone returns a deep copy of l.
func (l *Lobby) Clone() *Lobby {
	c := *l
	c.Participants = append([]uuid.UUID(nil), l.Participants...)
	if l.StartTime != nil {
		t := *l.StartTime
		c.StartTime = &t
	}
	if l.EndedAt != nil {
		t := *l.EndedAt
		c.EndedAt = &t
	}
	if l.Winner != nil {
		w := *l.Winner
		c.Winner = &w
	}
	return &c
}
