// internal/broadcast/events.go
package broadcast

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlobby/internal/models"
)

// Kind tags each event on the wire.
type Kind string

const (
	KindLobbyUpdated   Kind = "lobby_updated"
	KindLobbyStarted   Kind = "lobby_started"
	KindWinnerDeclared Kind = "lobby_winner_declared"
	KindLobbyEnded     Kind = "lobby_ended"
)

// Event is a lobby event with a fixed payload shape per Kind.
// The set of implementations is closed to this package.
type Event interface {
	Kind() Kind
	Lobby() uuid.UUID
	isEvent()
}

// LobbyUpdated carries the full snapshot after any membership or status change.
type LobbyUpdated struct {
	Snapshot models.Snapshot `json:"lobby"`
}

// LobbyStarted is sent when a lobby moves from waiting to started.
type LobbyStarted struct {
	LobbyID   uuid.UUID `json:"lobbyId"`
	StartTime time.Time `json:"startTime"`
}

// WinnerDeclared is sent once per lobby, for the first valid completion.
type WinnerDeclared struct {
	LobbyID    uuid.UUID `json:"lobbyId"`
	UserID     uuid.UUID `json:"userId"`
	AttemptID  uuid.UUID `json:"attemptId"`
	FinishedAt time.Time `json:"finishedAt"`
}

// End reasons.
const (
	ReasonHostEnded = "host_ended"
	ReasonHostLeft  = "host_left"
	ReasonDeleted   = "deleted"
)

// LobbyEnded is sent when a lobby ends or is deleted.
type LobbyEnded struct {
	LobbyID uuid.UUID `json:"lobbyId"`
	Reason  string    `json:"reason"`
	EndedAt time.Time `json:"endedAt"`
}

func (LobbyUpdated) Kind() Kind   { return KindLobbyUpdated }
func (LobbyStarted) Kind() Kind   { return KindLobbyStarted }
func (WinnerDeclared) Kind() Kind { return KindWinnerDeclared }
func (LobbyEnded) Kind() Kind     { return KindLobbyEnded }

func (e LobbyUpdated) Lobby() uuid.UUID   { return e.Snapshot.ID }
func (e LobbyStarted) Lobby() uuid.UUID   { return e.LobbyID }
func (e WinnerDeclared) Lobby() uuid.UUID { return e.LobbyID }
func (e LobbyEnded) Lobby() uuid.UUID     { return e.LobbyID }

func (LobbyUpdated) isEvent()   {}
func (LobbyStarted) isEvent()   {}
func (WinnerDeclared) isEvent() {}
func (LobbyEnded) isEvent()     {}

// envelope is the wire format shared by WebSocket clients and the bus.
type envelope struct {
	Type    Kind            `json:"type"`
	LobbyID uuid.UUID       `json:"lobbyId"`
	Payload json.RawMessage `json:"payload"`
}

// Encode serializes ev into its wire envelope.
func Encode(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", ev.Kind(), err)
	}
	return json.Marshal(envelope{Type: ev.Kind(), LobbyID: ev.Lobby(), Payload: payload})
}

// Decode parses a wire envelope back into its concrete Event.
func Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	var ev Event
	var err error
	switch env.Type {
	case KindLobbyUpdated:
		var e LobbyUpdated
		err = json.Unmarshal(env.Payload, &e)
		ev = e
	case KindLobbyStarted:
		var e LobbyStarted
		err = json.Unmarshal(env.Payload, &e)
		ev = e
	case KindWinnerDeclared:
		var e WinnerDeclared
		err = json.Unmarshal(env.Payload, &e)
		ev = e
	case KindLobbyEnded:
		var e LobbyEnded
		err = json.Unmarshal(env.Payload, &e)
		ev = e
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
	}
	return ev, nil
}

// lobbyOf reads only the routing key of an encoded envelope.
func lobbyOf(data []byte) (uuid.UUID, error) {
	var env struct {
		LobbyID uuid.UUID `json:"lobbyId"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return uuid.Nil, err
	}
	return env.LobbyID, nil
}
