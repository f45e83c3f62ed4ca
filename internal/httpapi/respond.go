package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/chat"
	"peopledesk.org/internal/notify"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func methodNotAllowed(w http.ResponseWriter, _ *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	respondError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(_ http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// handleDomainError maps domain sentinels to HTTP status codes.
func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, notify.ErrNotFound), errors.Is(err, chat.ErrNotFound), errors.Is(err, auth.ErrNotFound):
		respondError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, chat.ErrSelfThread):
		respondError(w, http.StatusBadRequest, "cannot open a thread with yourself")
	case errors.Is(err, notify.ErrInvalidInput), errors.Is(err, chat.ErrInvalidInput), errors.Is(err, auth.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrForbidden), errors.Is(err, auth.ErrForbidden):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, chat.ErrConflict):
		respondError(w, http.StatusConflict, "conflict")
	case errors.Is(err, auth.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, "authentication required")
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
