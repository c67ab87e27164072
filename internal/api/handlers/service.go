// Package handlers implements the HTTP surface over a percolate.Percolator:
// adding queries, percolating documents, and reporting stats.
package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/percolate/percolator/internal/percolate"
	"github.com/percolate/percolator/internal/querylang"
	"github.com/percolate/percolator/internal/registry"
	"github.com/percolate/percolator/internal/snapshot"
	"github.com/percolate/percolator/internal/streaming"
)

// PercolatorService wraps a *percolate.Percolator with the concurrency
// discipline §5 requires: AddQuery calls take the write lock and must not
// race each other or a Percolate call, while Percolate calls only need a
// read lock and may run concurrently with one another once the add phase
// has stopped.
type PercolatorService struct {
	mu   sync.RWMutex
	perc *percolate.Percolator

	registry *registry.Client // may be nil; audit logging is best-effort
	hub      *streaming.Hub   // may be nil; live broadcast is best-effort
}

// NewPercolatorService wraps an already-built Percolator.
func NewPercolatorService(p *percolate.Percolator, reg *registry.Client, hub *streaming.Hub) *PercolatorService {
	return &PercolatorService{perc: p, registry: reg, hub: hub}
}

// AddQuery parses query text, registers it, and returns the assigned Qid.
func (s *PercolatorService) AddQuery(queryText string) (percolate.Qid, error) {
	expr, err := querylang.Parse(queryText)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	qid := s.perc.AddQuery(expr)
	cnf := s.perc.Registry()[qid]
	s.mu.Unlock()

	if s.registry != nil {
		// Best-effort: a failed audit write must never fail the add call,
		// since the in-memory registry remains the source of truth.
		_ = s.registry.RecordAddQuery(context.Background(), qid, queryText, cnf)
	}
	return qid, nil
}

// Percolate matches document against every registered query and, if a
// broadcast hub is attached, fans the result out to live subscribers.
func (s *PercolatorService) Percolate(documentID string, doc percolate.Document) []percolate.Qid {
	s.mu.RLock()
	qids := s.perc.Percolate(doc)
	s.mu.RUnlock()

	if s.hub != nil {
		s.hub.BroadcastMatchResult(streaming.MatchResult{DocumentID: documentID, Qids: qids})
	}
	return qids
}

// Stats returns the current histogram snapshot.
func (s *PercolatorService) Stats() percolate.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.perc.Stats()
}

// Snapshot captures the current query registry for durable storage.
func (s *PercolatorService) Snapshot(createdAt time.Time) snapshot.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot.Capture(s.perc, createdAt)
}
