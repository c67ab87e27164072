package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/percolate/percolator/internal/api/middleware"
)

// RouterConfig holds all dependencies required to build the API router.
// Handler fields that are nil will receive a default "not implemented"
// handler, allowing the router to be constructed incrementally as features
// are built out.
type RouterConfig struct {
	// AllowedOrigins for CORS. Use ["*"] during development.
	AllowedOrigins []string

	// HealthHandler serves GET /api/v1/health.
	HealthHandler http.Handler

	// QueryHandler serves POST /api/v1/queries, registering a new query.
	QueryHandler http.Handler

	// PercolateHandler serves POST /api/v1/percolate, matching a document
	// against every registered query.
	PercolateHandler http.Handler

	// StatsHandler serves GET /api/v1/stats.
	StatsHandler http.Handler

	// StreamHandler serves GET /api/v1/stream, upgrading to a WebSocket
	// that receives live match results.
	StreamHandler http.Handler
}

// NewRouter builds a fully-configured *mux.Router with the percolator's
// HTTP surface and the middleware chain applied.
func NewRouter(cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()

	// Order matters: outermost runs first.
	r.Use(middleware.RecoveryMiddleware)
	r.Use(middleware.LoggingMiddleware)
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middleware.BodyLimitMiddleware)

	v1 := r.PathPrefix("/api/v1").Subrouter()

	v1.Handle("/health", handlerOrStub(cfg.HealthHandler)).Methods(http.MethodGet, http.MethodOptions)
	v1.Handle("/queries", handlerOrStub(cfg.QueryHandler)).Methods(http.MethodPost, http.MethodOptions)
	v1.Handle("/percolate", handlerOrStub(cfg.PercolateHandler)).Methods(http.MethodPost, http.MethodOptions)
	v1.Handle("/stats", handlerOrStub(cfg.StatsHandler)).Methods(http.MethodGet, http.MethodOptions)
	v1.Handle("/stream", handlerOrStub(cfg.StreamHandler)).Methods(http.MethodGet)

	return r
}

// handlerOrStub returns the provided handler if non-nil, otherwise a stub
// that responds with 501 Not Implemented.
func handlerOrStub(h http.Handler) http.Handler {
	if h != nil {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Error(w, http.StatusNotImplemented, "not_implemented", "this endpoint is not yet implemented")
	})
}
