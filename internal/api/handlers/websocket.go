package handlers

import (
	"net/http"

	"github.com/dom/scrimhub/internal/api/middleware"
	ws "github.com/dom/scrimhub/internal/websocket"
)

type WebSocketHandler struct {
	hub *ws.Hub
}

func NewWebSocketHandler(hub *ws.Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: hub}
}

func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	if err := ws.ServeWS(h.hub, w, r, userID); err != nil {
		// Upgrade already wrote the response.
		return
	}
}
