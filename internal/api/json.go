package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/gridcat/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// statusFor maps catalog errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrNotAPartition),
		errors.Is(err, apperr.ErrNotALeaf),
		errors.Is(err, apperr.ErrNoIndex),
		errors.Is(err, apperr.ErrIndexCollision),
		errors.Is(err, apperr.ErrStaleFilesystemRace):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrMalformedIndex),
		errors.Is(err, apperr.ErrTruncatedIndex),
		errors.Is(err, apperr.ErrUnsupportedVersion):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrCancelled):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError logs server-side failures and writes the mapped status.
func writeError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, status, errorBody("internal error"))
		return
	}
	writeJSON(w, status, errorBody(err.Error()))
}
