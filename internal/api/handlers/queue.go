package handlers

import (
	"net/http"

	"github.com/dom/scrimhub/internal/api/middleware"
	"github.com/dom/scrimhub/internal/service"
)

type QueueHandler struct {
	queue *service.QueueService
	ready *service.ReadyService
}

func NewQueueHandler(queue *service.QueueService, ready *service.ReadyService) *QueueHandler {
	return &QueueHandler{queue: queue, ready: ready}
}

func (h *QueueHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	queue, err := h.queue.Join(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queue)
}

func (h *QueueHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	if err := h.queue.Leave(r.Context(), userID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *QueueHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	view, err := h.queue.Status(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *QueueHandler) Accept(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	session, err := h.ready.AcceptByUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *QueueHandler) Decline(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	if err := h.ready.DeclineByUser(r.Context(), userID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
