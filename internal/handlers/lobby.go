// internal/handlers/lobby.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlobby/internal/apperrors"
	"github.com/jason-s-yu/quizlobby/internal/lobby"
	"github.com/jason-s-yu/quizlobby/internal/middleware"
	"github.com/jason-s-yu/quizlobby/internal/models"
)

type createLobbyRequest struct {
	QuizID           uuid.UUID  `json:"quizId"`
	ParticipantLimit int        `json:"participantLimit"`
	StartTime        *time.Time `json:"startTime,omitempty"`
}

// caller returns the authenticated user and the lobbyID URL parameter.
func caller(r *http.Request) (userID, lobbyID uuid.UUID, err error) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		return uuid.Nil, uuid.Nil, apperrors.ErrUnauthorized
	}
	lobbyID, err = uuidParam(r, "lobbyID")
	return userID, lobbyID, err
}

func (s *APIServer) writeSnapshot(w http.ResponseWriter, r *http.Request, status int, l *models.Lobby) {
	snap, err := s.Lobbies.Snapshot(r.Context(), l)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	writeJSON(w, status, snap)
}

// createLobbyHandler: POST /lobbies
func (s *APIServer) createLobbyHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, r, s.Logger, apperrors.ErrUnauthorized)
		return
	}
	var req createLobbyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	if req.QuizID == uuid.Nil {
		writeError(w, r, s.Logger, apperrors.Invalid("quizId is required"))
		return
	}

	l, err := s.Lobbies.Create(r.Context(), lobby.CreateParams{
		QuizID:           req.QuizID,
		HostUserID:       userID,
		ParticipantLimit: req.ParticipantLimit,
		ScheduledStart:   req.StartTime,
	})
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	s.writeSnapshot(w, r, http.StatusCreated, l)
}

func (s *APIServer) listHostedHandler(w http.ResponseWriter, r *http.Request) {
	s.listHandler(w, r, s.Lobbies.ListHosted)
}

func (s *APIServer) listJoinedHandler(w http.ResponseWriter, r *http.Request) {
	s.listHandler(w, r, s.Lobbies.ListJoined)
}

func (s *APIServer) listHandler(w http.ResponseWriter, r *http.Request, list func(context.Context, uuid.UUID) ([]*models.Lobby, error)) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, r, s.Logger, apperrors.ErrUnauthorized)
		return
	}
	lobbies, err := list(r.Context(), userID)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	snaps, err := s.Lobbies.Snapshots(r.Context(), lobbies)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}

// getLobbyHandler: GET /lobbies/{lobbyID}
func (s *APIServer) getLobbyHandler(w http.ResponseWriter, r *http.Request) {
	_, lobbyID, err := caller(r)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	l, err := s.Lobbies.Get(r.Context(), lobbyID)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	s.writeSnapshot(w, r, http.StatusOK, l)
}

// mutate runs one of the lobby transitions that take (lobbyID, userID) and returns the snapshot.
func (s *APIServer) mutate(w http.ResponseWriter, r *http.Request, op func(context.Context, uuid.UUID, uuid.UUID) (*models.Lobby, error)) {
	userID, lobbyID, err := caller(r)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	l, err := op(r.Context(), lobbyID, userID)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	s.writeSnapshot(w, r, http.StatusOK, l)
}

func (s *APIServer) joinLobbyHandler(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, s.Lobbies.Join)
}

func (s *APIServer) leaveLobbyHandler(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, s.Lobbies.Leave)
}

func (s *APIServer) startLobbyHandler(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, s.Lobbies.Start)
}

func (s *APIServer) endLobbyHandler(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, s.Lobbies.End)
}

// deleteLobbyHandler: DELETE /lobbies/{lobbyID}
func (s *APIServer) deleteLobbyHandler(w http.ResponseWriter, r *http.Request) {
	userID, lobbyID, err := caller(r)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	if err := s.Lobbies.Delete(r.Context(), lobbyID, userID); err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
