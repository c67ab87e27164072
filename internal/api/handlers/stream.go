package handlers

import (
	"net/http"

	"github.com/percolate/percolator/internal/api"
	"github.com/percolate/percolator/internal/streaming"
)

// StreamHandler implements GET /api/v1/stream: upgrades to a WebSocket
// connection that receives live match results as they are produced.
type StreamHandler struct {
	hub *streaming.Hub
}

// NewStreamHandler wraps hub in an HTTP handler.
func NewStreamHandler(hub *streaming.Hub) *StreamHandler {
	return &StreamHandler{hub: hub}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := streaming.ServeWS(h.hub, w, r); err != nil {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "websocket upgrade failed")
	}
}
