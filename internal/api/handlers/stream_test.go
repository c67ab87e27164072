package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/percolate/percolator/internal/streaming"
)

func TestStreamHandler_NonUpgradeRequestReturnsBadRequest(t *testing.T) {
	h := NewStreamHandler(streaming.NewHub())

	req := httptest.NewRequest("GET", "/api/v1/stream", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	// A plain GET with no WebSocket upgrade headers cannot be upgraded.
	assert.NotEqual(t, 101, w.Code)
}
