// internal/handlers/api_server.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jason-s-yu/quizlobby/internal/broadcast"
	"github.com/jason-s-yu/quizlobby/internal/invite"
	"github.com/jason-s-yu/quizlobby/internal/lobby"
	"github.com/jason-s-yu/quizlobby/internal/middleware"
	"github.com/jason-s-yu/quizlobby/internal/race"
	"github.com/sirupsen/logrus"
)

// Checker verifies that an infrastructure dependency is reachable.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Check(ctx context.Context) error { return f(ctx) }

// APIServer holds the services behind the HTTP and WebSocket endpoints.
type APIServer struct {
	Lobbies     *lobby.Service
	Invites     *invite.Service
	Race        *race.Resolver
	Broadcaster *broadcast.Broadcaster
	Verifier    middleware.TokenVerifier
	Checks      map[string]Checker
	Logger      *logrus.Logger
}

// Routes builds the router.
func (s *APIServer) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.LogMiddleware(s.Logger))

	r.Get("/healthz", s.healthHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(s.Verifier, s.Logger))

		r.Route("/lobbies", func(r chi.Router) {
			r.Post("/", s.createLobbyHandler)
			r.Get("/hosted", s.listHostedHandler)
			r.Get("/joined", s.listJoinedHandler)

			r.Route("/{lobbyID}", func(r chi.Router) {
				r.Get("/", s.getLobbyHandler)
				r.Delete("/", s.deleteLobbyHandler)
				r.Get("/stats", s.statsHandler)
				r.Post("/join", s.joinLobbyHandler)
				r.Post("/leave", s.leaveLobbyHandler)
				r.Post("/start", s.startLobbyHandler)
				r.Post("/end", s.endLobbyHandler)
				r.Post("/invites", s.issueInviteHandler)
				r.Post("/completions", s.completionHandler)
				r.Get("/ws", s.lobbyWSHandler)
			})
		})

		r.Route("/invites/{code}", func(r chi.Router) {
			r.Get("/", s.resolveInviteHandler)
			r.Post("/join", s.joinViaInviteHandler)
		})
	})
	return r
}

type checkResult struct {
	Status string `json:"status"`
}

func (s *APIServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	results := make(map[string]checkResult, len(s.Checks))
	status := http.StatusOK
	for name, c := range s.Checks {
		if err := c.Check(ctx); err != nil {
			s.Logger.WithField("check", name).Errorf("health check failed: %v", err)
			results[name] = checkResult{Status: "error"}
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = checkResult{Status: "ok"}
	}
	writeJSON(w, status, results)
}
