package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dom/scrimhub/internal/domain"
	"github.com/dom/scrimhub/internal/service"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// writeServiceError maps domain sentinels onto stable HTTP statuses and
// reason codes the frontend switches on.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrAlreadyQueued):
		writeError(w, http.StatusConflict, "already_queued", err.Error())
	case errors.Is(err, domain.ErrAlreadyInMatch):
		writeError(w, http.StatusConflict, "already_in_match", err.Error())
	case errors.Is(err, domain.ErrNotQueued):
		writeError(w, http.StatusNotFound, "not_queued", err.Error())
	case errors.Is(err, domain.ErrQueueFull):
		writeError(w, http.StatusConflict, "queue_full", err.Error())
	case errors.Is(err, domain.ErrAcceptPending):
		writeError(w, http.StatusConflict, "accept_pending", err.Error())
	case errors.Is(err, domain.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, domain.ErrNotAParticipant):
		writeError(w, http.StatusForbidden, "not_a_participant", err.Error())
	case errors.Is(err, domain.ErrSessionExpired):
		writeError(w, http.StatusGone, "session_expired", err.Error())
	case errors.Is(err, domain.ErrMatchNotFound):
		writeError(w, http.StatusNotFound, "match_not_found", err.Error())
	case errors.Is(err, domain.ErrInvalidMatchPhase):
		writeError(w, http.StatusConflict, "invalid_phase", err.Error())
	case errors.Is(err, domain.ErrNotYourTurn):
		writeError(w, http.StatusConflict, "not_your_turn", err.Error())
	case errors.Is(err, domain.ErrNotACaptain):
		writeError(w, http.StatusForbidden, "not_a_captain", err.Error())
	case errors.Is(err, domain.ErrPlayerUnavailable):
		writeError(w, http.StatusConflict, "player_unavailable", err.Error())
	case errors.Is(err, domain.ErrMapUnavailable):
		writeError(w, http.StatusConflict, "map_unavailable", err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, service.ErrDisplayNameTaken):
		writeError(w, http.StatusConflict, "display_name_taken", err.Error())
	case errors.Is(err, service.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "invalid_token", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
