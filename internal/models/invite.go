package models

import (
	"time"

	"github.com/google/uuid"
)

// Invite is a multi-use join code bound to one lobby. Invites are never mutated.
type Invite struct {
	Code          string    `json:"code"`
	LobbyID       uuid.UUID `json:"lobbyId"`
	InviterUserID uuid.UUID `json:"inviterUserId"`
	ExpiresAt     time.Time `json:"expiresAt"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ExpiredAt reports whether the invite is dead at now. The invite is valid strictly before ExpiresAt.
func (i *Invite) ExpiredAt(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}
