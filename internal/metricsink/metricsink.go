// Package metricsink persists percolate latency samples and stats
// histograms to ClickHouse, giving operators a time series to tune
// NClauseMatchers and PrefixSizes against instead of guessing. Nothing
// under this package is on the matching path; it is fed from the outside
// (by the cmd/percolate-server and cmd/percolate-worker binaries) after a
// call already completed.
package metricsink

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/percolate/percolator/internal/percolate"
)

// PercolateSample is one recorded Percolate call.
type PercolateSample struct {
	Timestamp    time.Time
	DurationUS   int64
	CandidateCnt int
	MatchCount   int
}

// Sink wraps a ClickHouse connection used to record percolate latency
// samples and periodic stats snapshots.
type Sink struct {
	conn driver.Conn
}

// New creates a Sink from a clickhouse-go v2 DSN, e.g.
// "clickhouse://localhost:9000/percolate".
func New(ctx context.Context, dsn string) (*Sink, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("metricsink: parse dsn: %w", err)
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("metricsink: open: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("metricsink: ping: %w", err)
	}
	return &Sink{conn: conn}, nil
}

// Close releases the underlying connection.
func (s *Sink) Close() error {
	return s.conn.Close()
}

// Ping verifies the ClickHouse connection is alive, for use as a health.PingFunc.
func (s *Sink) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// RecordPercolate batch-inserts latency samples for a set of Percolate
// calls. All samples are inserted within a single batch for throughput,
// mirroring how a busy percolator would flush samples periodically rather
// than per call.
func (s *Sink) RecordPercolate(ctx context.Context, samples []PercolateSample) error {
	if len(samples) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO percolate_samples (timestamp, duration_us, candidate_count, match_count)
	`)
	if err != nil {
		return fmt.Errorf("metricsink: prepare batch: %w", err)
	}

	for i, sample := range samples {
		if err := batch.Append(sample.Timestamp, sample.DurationUS, sample.CandidateCnt, sample.MatchCount); err != nil {
			return fmt.Errorf("metricsink: append row %d: %w", i, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("metricsink: send batch: %w", err)
	}
	return nil
}

// RecordStats inserts one snapshot of the builder-tuning histograms
// exposed by Percolator.Stats, flattened into one row per clause-count
// bucket so the series can be aggregated in ClickHouse directly.
func (s *Sink) RecordStats(ctx context.Context, at time.Time, stats percolate.Stats) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO stats_snapshots (timestamp, total_queries, unsatisfiable_queries, clause_count, query_count)
	`)
	if err != nil {
		return fmt.Errorf("metricsink: prepare stats batch: %w", err)
	}

	if len(stats.ClauseCountHistogram) == 0 {
		if err := batch.Append(at, stats.TotalQueries, stats.UnsatisfiableQueries, 0, 0); err != nil {
			return fmt.Errorf("metricsink: append empty stats row: %w", err)
		}
	}
	for clauseCount, queryCount := range stats.ClauseCountHistogram {
		if err := batch.Append(at, stats.TotalQueries, stats.UnsatisfiableQueries, clauseCount, queryCount); err != nil {
			return fmt.Errorf("metricsink: append stats row: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("metricsink: send stats batch: %w", err)
	}
	return nil
}
