package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/percolate/percolator/internal/api"
)

// AddQueryRequest is the body of POST /api/v1/queries.
type AddQueryRequest struct {
	Query string `json:"query"`
}

// AddQueryResponse is returned once a query has been parsed and indexed.
type AddQueryResponse struct {
	Qid uint32 `json:"qid"`
}

// QueryHandler implements POST /api/v1/queries: parse a query-language
// string, CNF-normalize it, and register it with the percolator.
type QueryHandler struct {
	svc *PercolatorService
}

// NewQueryHandler wraps svc in an HTTP handler.
func NewQueryHandler(svc *PercolatorService) *QueryHandler {
	return &QueryHandler{svc: svc}
}

func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req AddQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "malformed JSON body")
		return
	}
	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "query must not be empty")
		return
	}

	qid, err := h.svc.AddQuery(req.Query)
	if err != nil {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, err.Error())
		return
	}

	api.JSON(w, http.StatusCreated, AddQueryResponse{Qid: qid})
}
