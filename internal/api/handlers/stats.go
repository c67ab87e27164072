package handlers

import (
	"net/http"

	"github.com/percolate/percolator/internal/api"
)

// StatsResponse mirrors percolate.Stats as a JSON-friendly struct.
type StatsResponse struct {
	TotalQueries          int            `json:"total_queries"`
	UnsatisfiableQueries  int            `json:"unsatisfiable_queries"`
	NClauseMatchers       int            `json:"n_clause_matchers"`
	ClauseCountHistogram  map[int]int    `json:"clause_count_histogram"`
	PrefixLengthHistogram map[int]int    `json:"prefix_length_histogram"`
	PreheaterBucketCounts map[string]int `json:"preheater_bucket_counts"`
	SlotRealClauseCounts  []int          `json:"slot_real_clause_counts"`
}

// StatsHandler implements GET /api/v1/stats.
type StatsHandler struct {
	svc *PercolatorService
}

// NewStatsHandler wraps svc in an HTTP handler.
func NewStatsHandler(svc *PercolatorService) *StatsHandler {
	return &StatsHandler{svc: svc}
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s := h.svc.Stats()
	api.JSON(w, http.StatusOK, StatsResponse{
		TotalQueries:          s.TotalQueries,
		UnsatisfiableQueries:  s.UnsatisfiableQueries,
		NClauseMatchers:       s.NClauseMatchers,
		ClauseCountHistogram:  s.ClauseCountHistogram,
		PrefixLengthHistogram: s.PrefixLengthHistogram,
		PreheaterBucketCounts: s.PreheaterBucketCounts,
		SlotRealClauseCounts:  s.SlotRealClauseCounts,
	})
}
