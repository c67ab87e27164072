package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/percolate/percolator/internal/api"
	"github.com/percolate/percolator/internal/percolate"
)

// PercolateRequest is the body of POST /api/v1/percolate. Fields mirrors
// percolate.Document's own shape so no translation layer is needed.
type PercolateRequest struct {
	DocumentID string              `json:"document_id"`
	Fields     map[string][]string `json:"fields"`
}

// PercolateResponse lists every registered query the document matched.
type PercolateResponse struct {
	DocumentID string   `json:"document_id"`
	Qids       []uint32 `json:"qids"`
}

// PercolateHandler implements POST /api/v1/percolate.
type PercolateHandler struct {
	svc *PercolatorService
}

// NewPercolateHandler wraps svc in an HTTP handler.
func NewPercolateHandler(svc *PercolatorService) *PercolateHandler {
	return &PercolateHandler{svc: svc}
}

func (h *PercolateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req PercolateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "malformed JSON body")
		return
	}

	doc := make(percolate.Document, len(req.Fields))
	for field, values := range req.Fields {
		doc[field] = values
	}

	qids := h.svc.Percolate(req.DocumentID, doc)
	out := make([]uint32, len(qids))
	copy(out, qids)

	api.JSON(w, http.StatusOK, PercolateResponse{DocumentID: req.DocumentID, Qids: out})
}
