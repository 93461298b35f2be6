package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jason-s-yu/quizlobby/internal/apperrors"
	"github.com/jason-s-yu/quizlobby/internal/middleware"
	"github.com/jason-s-yu/quizlobby/internal/models"
)

type inviteResponse struct {
	Invite *models.Invite   `json:"invite"`
	Lobby  *models.Snapshot `json:"lobby,omitempty"`
}

// issueInviteHandler: POST /lobbies/{lobbyID}/invites
func (s *APIServer) issueInviteHandler(w http.ResponseWriter, r *http.Request) {
	userID, lobbyID, err := caller(r)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	inv, err := s.Invites.Issue(r.Context(), lobbyID, userID)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, inviteResponse{Invite: inv})
}

// resolveInviteHandler: GET /invites/{code}
func (s *APIServer) resolveInviteHandler(w http.ResponseWriter, r *http.Request) {
	inv, err := s.Invites.Resolve(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	l, err := s.Lobbies.Get(r.Context(), inv.LobbyID)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	snap, err := s.Lobbies.Snapshot(r.Context(), l)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, inviteResponse{Invite: inv, Lobby: snap})
}

// joinViaInviteHandler: POST /invites/{code}/join
func (s *APIServer) joinViaInviteHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		writeError(w, r, s.Logger, apperrors.ErrUnauthorized)
		return
	}
	l, err := s.Lobbies.JoinViaInvite(r.Context(), chi.URLParam(r, "code"), userID)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	s.writeSnapshot(w, r, http.StatusOK, l)
}
