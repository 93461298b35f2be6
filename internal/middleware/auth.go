package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TokenVerifier turns a session token into a user id.
type TokenVerifier interface {
	AuthenticateJWT(token string) (uuid.UUID, error)
}

// AuthCookieName is the cookie checked when no Authorization header is present.
const AuthCookieName = "auth_token"

type ctxKey int

const userIDKey ctxKey = iota

// Authenticate rejects requests without a valid token and stores the caller's id in the context.
// The token comes from "Authorization: Bearer <token>" or the auth_token cookie.
func Authenticate(verifier TokenVerifier, logger *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				unauthorized(w, "missing auth token")
				return
			}
			userID, err := verifier.AuthenticateJWT(token)
			if err != nil {
				logger.WithField("remote", r.RemoteAddr).Debugf("rejected token: %v", err)
				unauthorized(w, "invalid auth token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the authenticated caller stored by Authenticate.
func UserID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}

func tokenFromRequest(r *http.Request) string {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	if c, err := r.Cookie(AuthCookieName); err == nil {
		return c.Value
	}
	return ""
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized", "message": msg})
}
