package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/splax/teamhub/internal/repository"
)

// errorBody is the envelope every failed API response carries.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
}

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Message: msg}})
}

var sentinelStatus = []struct {
	err    error
	status int
}{
	{repository.ErrNotFound, http.StatusNotFound},
	{repository.ErrConflict, http.StatusConflict},
	{repository.ErrInvalidArgument, http.StatusBadRequest},
	{repository.ErrForbidden, http.StatusForbidden},
}

// statusFor maps service errors onto HTTP status codes and client-facing messages.
func statusFor(err error) (int, string) {
	for _, s := range sentinelStatus {
		if errors.Is(err, s.err) {
			return s.status, publicMessage(err, s.err)
		}
	}
	return http.StatusInternalServerError, "internal server error"
}

func publicMessage(err, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error()
	if idx := strings.Index(msg, prefix); idx >= 0 {
		rest := strings.TrimPrefix(msg[idx+len(prefix):], ": ")
		if rest != "" {
			return rest
		}
	}
	return strings.TrimPrefix(prefix, "repository: ")
}
