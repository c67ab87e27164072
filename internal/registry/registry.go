// Package registry records an append-only audit trail of add-query calls
// to Postgres: who added which query text, what Qid it was assigned, and
// whether it turned out unsatisfiable. The percolator's in-memory registry
// is the source of truth for matching; this one exists for operability —
// "what queries are indexed and when were they added" — and is never
// consulted during Percolate.
package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/percolate/percolator/internal/percolate"
)

// IsNotFound reports whether err indicates a record was not found.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if err == pgx.ErrNoRows {
		return true
	}
	return strings.Contains(err.Error(), "not found")
}

// Entry is one row of the add-query audit trail.
type Entry struct {
	Qid           percolate.Qid
	QueryText     string
	ClauseCount   int
	Unsatisfiable bool
	CreatedAt     time.Time
}

// Client wraps a pgx connection pool.
type Client struct {
	pool *pgxpool.Pool
}

// New creates a Client from the given DSN and verifies connectivity.
func New(ctx context.Context, dsn string) (*Client, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("registry: parse config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("registry: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("registry: ping: %w", err)
	}

	return &Client{pool: pool}, nil
}

// Close releases all connections in the pool.
func (c *Client) Close() {
	c.pool.Close()
}

// Ping verifies the Postgres connection is alive, for use as a health.PingFunc.
func (c *Client) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// RecordAddQuery appends one row to the audit trail. It is called after a
// successful Percolator.AddQuery, never before — the audit trail only ever
// records queries that were actually assigned a Qid.
func (c *Client) RecordAddQuery(ctx context.Context, qid percolate.Qid, queryText string, q percolate.CNFQuery) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO query_log (qid, query_text, clause_count, unsatisfiable, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, qid, queryText, len(q.Clauses), q.Unsatisfiable, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("registry: record add query: %w", err)
	}
	return nil
}

// GetByQid fetches the audit-trail entry for a single Qid.
func (c *Client) GetByQid(ctx context.Context, qid percolate.Qid) (*Entry, error) {
	var e Entry
	err := c.pool.QueryRow(ctx, `
		SELECT qid, query_text, clause_count, unsatisfiable, created_at
		FROM query_log WHERE qid = $1
	`, qid).Scan(&e.Qid, &e.QueryText, &e.ClauseCount, &e.Unsatisfiable, &e.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("registry: query log entry not found: qid %d", qid)
		}
		return nil, fmt.Errorf("registry: get by qid: %w", err)
	}
	return &e, nil
}

// ListRecent returns the most recently recorded entries, newest first.
func (c *Client) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := c.pool.Query(ctx, `
		SELECT qid, query_text, clause_count, unsatisfiable, created_at
		FROM query_log
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("registry: list recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Qid, &e.QueryText, &e.ClauseCount, &e.Unsatisfiable, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("registry: scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountUnsatisfiable returns how many recorded queries were unsatisfiable —
// a signal that callers are submitting self-contradictory query text.
func (c *Client) CountUnsatisfiable(ctx context.Context) (int64, error) {
	var n int64
	err := c.pool.QueryRow(ctx, `SELECT count(*) FROM query_log WHERE unsatisfiable`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("registry: count unsatisfiable: %w", err)
	}
	return n, nil
}
