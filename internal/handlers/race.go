package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlobby/internal/apperrors"
	"github.com/jason-s-yu/quizlobby/internal/models"
)

type completionRequest struct {
	AttemptID uuid.UUID `json:"attemptId"`
}

type completionResponse struct {
	Won bool `json:"won"`
}

type statsResponse struct {
	Lobby     *models.Snapshot  `json:"lobby"`
	Standings []models.Standing `json:"standings"`
}

// completionHandler: POST /lobbies/{lobbyID}/completions
// The attempt is looked up in the attempt service; its stored completion time is the one
// recorded. Losing the race is a normal outcome and returns 200 with won=false.
func (s *APIServer) completionHandler(w http.ResponseWriter, r *http.Request) {
	userID, lobbyID, err := caller(r)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	var req completionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	if req.AttemptID == uuid.Nil {
		writeError(w, r, s.Logger, apperrors.Invalid("attemptId is required"))
		return
	}

	won, err := s.Race.DeclareIfWinner(r.Context(), lobbyID, userID, req.AttemptID)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, completionResponse{Won: won})
}

// statsHandler: GET /lobbies/{lobbyID}/stats
func (s *APIServer) statsHandler(w http.ResponseWriter, r *http.Request) {
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
	snap, err := s.Lobbies.Snapshot(r.Context(), l)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	standings, err := s.Race.Standings(r.Context(), lobbyID)
	if err != nil {
		writeError(w, r, s.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Lobby: snap, Standings: standings})
}
