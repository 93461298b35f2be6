package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlobby/internal/apperrors"
	"github.com/sirupsen/logrus"
)

type errorBody struct {
	Error   apperrors.Kind `json:"error"`
	Message string         `json:"message"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindForbidden:
		return http.StatusForbidden
	case apperrors.KindInvalidState, apperrors.KindConflict, apperrors.KindCapacityExceeded:
		return http.StatusConflict
	case apperrors.KindExpired:
		return http.StatusGone
	case apperrors.KindInvalid:
		return http.StatusBadRequest
	case apperrors.KindUnauthorized:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, logger *logrus.Logger, err error) {
	kind := apperrors.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		logger.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Errorf("request failed: %v", err)
	}
	writeJSON(w, status, errorBody{Error: kind, Message: apperrors.Message(err)})
}

// uuidParam parses the named chi URL parameter.
func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperrors.Invalid("invalid %s", name)
	}
	return id, nil
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.Invalid("bad request payload")
	}
	return nil
}
