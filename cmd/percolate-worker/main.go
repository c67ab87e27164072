package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/percolate/percolator/internal/cache"
	"github.com/percolate/percolator/internal/config"
	"github.com/percolate/percolator/internal/metricsink"
	"github.com/percolate/percolator/internal/percolate"
	"github.com/percolate/percolator/internal/snapshot"
	"github.com/percolate/percolator/internal/streaming"
)

// refreshableService swaps in a freshly restored Percolator whenever a new
// snapshot appears in the cache, so percolate-worker stays a read-only
// consumer of queries added through percolate-server's add phase.
type refreshableService struct {
	mu   sync.RWMutex
	perc *percolate.Percolator
}

func (r *refreshableService) percolate(doc percolate.Document) []percolate.Qid {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.perc.Percolate(doc)
}

func (r *refreshableService) swap(p *percolate.Percolator) {
	r.mu.Lock()
	r.perc = p
	r.mu.Unlock()
}

func main() {
	_ = godotenv.Load()
	_ = godotenv.Load("../.env")
	_ = godotenv.Load("../../.env")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)
	slog.Info("starting percolate-worker", "env", cfg.Environment)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics, err := metricsink.New(ctx, cfg.ClickHouseURL)
	if err != nil {
		slog.Error("failed to connect to ClickHouse", "error", err)
		os.Exit(1)
	}
	defer metrics.Close()

	natsClient, err := streaming.NewNATSClient(cfg.NATSURL)
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()

	if err := natsClient.EnsureStreams(ctx); err != nil {
		slog.Error("failed to ensure NATS streams", "error", err)
		os.Exit(1)
	}

	snapCache, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer snapCache.Close()

	svc := &refreshableService{}
	if err := refresh(ctx, svc, snapCache, cfg); err != nil {
		slog.Error("failed initial snapshot load", "error", err)
		os.Exit(1)
	}

	go refreshPeriodically(ctx, svc, snapCache, cfg)

	err = natsClient.SubscribeDocuments(ctx, func(doc streaming.IngestDocument) error {
		start := time.Now()
		qids := svc.percolate(doc.Document())
		elapsed := time.Since(start)

		if err := natsClient.PublishMatchResult(ctx, streaming.MatchResult{DocumentID: doc.ID, Qids: qids}); err != nil {
			return err
		}

		sample := metricsink.PercolateSample{
			Timestamp:  start,
			DurationUS: elapsed.Microseconds(),
			MatchCount: len(qids),
		}
		if err := metrics.RecordPercolate(ctx, []metricsink.PercolateSample{sample}); err != nil {
			slog.Warn("failed to record percolate sample", "error", err)
		}
		return nil
	})
	if err != nil {
		slog.Error("failed to subscribe to document ingest stream", "error", err)
		os.Exit(1)
	}

	slog.Info("percolate-worker ready, listening for documents")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	slog.Info("received shutdown signal, draining...", "signal", sig)
	cancel()
	slog.Info("percolate-worker stopped")
}

// refresh loads the latest cached snapshot into svc, or falls back to an
// empty percolator built from cfg if nothing has been cached yet.
func refresh(ctx context.Context, svc *refreshableService, c *cache.Cache, cfg *config.Config) error {
	data, err := c.Latest(ctx)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			return err
		}
		p, err := percolate.NewBuilder().
			WithNClauseMatchers(cfg.NClauseMatchers).
			WithPrefixSizes(cfg.PrefixSizes).
			Build()
		if err != nil {
			return err
		}
		svc.swap(p)
		return nil
	}

	s, err := snapshot.Decode(data)
	if err != nil {
		return err
	}
	p, err := snapshot.Restore(s)
	if err != nil {
		return err
	}
	svc.swap(p)
	slog.Info("refreshed percolator from snapshot", "snapshot_id", s.ID, "queries", len(s.Registry))
	return nil
}

func refreshPeriodically(ctx context.Context, svc *refreshableService, c *cache.Cache, cfg *config.Config) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := refresh(ctx, svc, c, cfg); err != nil {
				slog.Warn("failed to refresh percolator snapshot", "error", err)
			}
		}
	}
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))
}
