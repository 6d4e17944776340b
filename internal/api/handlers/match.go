package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/dom/scrimhub/internal/api/middleware"
	"github.com/dom/scrimhub/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type MatchHandler struct {
	match *service.MatchService
	ready *service.ReadyService
}

func NewMatchHandler(match *service.MatchService, ready *service.ReadyService) *MatchHandler {
	return &MatchHandler{match: match, ready: ready}
}

func matchID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "matchID"))
	return id, err == nil
}

func (h *MatchHandler) Current(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	match, err := h.match.Current(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

func (h *MatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := matchID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid match id")
		return
	}
	match, err := h.match.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

func (h *MatchHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id, ok := matchID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid match id")
		return
	}
	userID, _ := middleware.UserID(r.Context())
	session, err := h.ready.AcceptByMatch(r.Context(), id, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *MatchHandler) AcceptStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := matchID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid match id")
		return
	}
	session, err := h.ready.StatusByMatch(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

type pickRequest struct {
	UserID uuid.UUID `json:"userId"`
}

func (h *MatchHandler) Pick(w http.ResponseWriter, r *http.Request) {
	id, ok := matchID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid match id")
		return
	}
	var req pickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == uuid.Nil {
		writeError(w, http.StatusBadRequest, "bad_request", "userId is required")
		return
	}

	userID, _ := middleware.UserID(r.Context())
	match, err := h.match.PickPlayer(r.Context(), id, userID, req.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

type banRequest struct {
	Map string `json:"map"`
}

func (h *MatchHandler) Ban(w http.ResponseWriter, r *http.Request) {
	id, ok := matchID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid match id")
		return
	}
	var req banRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Map == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "map is required")
		return
	}

	userID, _ := middleware.UserID(r.Context())
	match, err := h.match.BanMap(r.Context(), id, userID, req.Map)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

func (h *MatchHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := matchID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid match id")
		return
	}
	var req service.CompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	userID, _ := middleware.UserID(r.Context())
	match, err := h.match.Complete(r.Context(), id, userID, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, match)
}

func (h *MatchHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := matchID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid match id")
		return
	}
	userID, _ := middleware.UserID(r.Context())
	if err := h.match.Cancel(r.Context(), id, userID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
