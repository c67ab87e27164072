package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/percolate/percolator/internal/api"
	"github.com/percolate/percolator/internal/api/handlers"
	"github.com/percolate/percolator/internal/cache"
	"github.com/percolate/percolator/internal/config"
	"github.com/percolate/percolator/internal/metricsink"
	"github.com/percolate/percolator/internal/percolate"
	"github.com/percolate/percolator/internal/registry"
	"github.com/percolate/percolator/internal/snapshot"
	"github.com/percolate/percolator/internal/streaming"
)

func main() {
	// Load .env file if present (development convenience).
	_ = godotenv.Load()             // repo root .env
	_ = godotenv.Load("../.env")    // running from cmd/percolate-server -> ../
	_ = godotenv.Load("../../.env") // running from a build dir two levels deep

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)
	slog.Info("starting percolate-server", "port", cfg.APIPort, "env", cfg.Environment)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Initialize storage clients ---
	reg, err := registry.New(ctx, cfg.PostgresURL)
	if err != nil {
		slog.Error("failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer reg.Close()

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

	// Snapshot storage is non-critical at startup: a server that cannot
	// reach S3 still boots with an empty percolator rather than refusing
	// to serve traffic.
	snapStore, err := snapshot.NewStore(ctx, cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3UseSSL, cfg.S3SkipBucketVerification)
	if err != nil {
		slog.Warn("S3 snapshot store initialization failed; starting with an empty registry", "error", err)
	}

	perc, err := bootstrap(ctx, cfg, snapCache, snapStore)
	if err != nil {
		slog.Error("failed to bootstrap percolator", "error", err)
		os.Exit(1)
	}

	// --- WebSocket hub ---
	wsHub := streaming.NewHub()
	go wsHub.Run()

	// Fan ingested documents off the NATS work queue into the percolator
	// and publish match results for the hub and any other subscriber.
	svc := handlers.NewPercolatorService(perc, reg, wsHub)
	if err := natsClient.SubscribeDocuments(ctx, func(doc streaming.IngestDocument) error {
		qids := svc.Percolate(doc.ID, doc.Document())
		return natsClient.PublishMatchResult(ctx, streaming.MatchResult{DocumentID: doc.ID, Qids: qids})
	}); err != nil {
		slog.Error("failed to subscribe to document ingest stream", "error", err)
		os.Exit(1)
	}

	// Queries may also be registered out of band over NATS, the add-phase
	// counterpart to POST /queries.
	if err := natsClient.SubscribeQueryAdd(ctx, func(q streaming.QueryAdd) error {
		_, err := svc.AddQuery(q.Text)
		return err
	}); err != nil {
		slog.Error("failed to subscribe to query add stream", "error", err)
		os.Exit(1)
	}

	go recordStatsPeriodically(ctx, svc, metrics)

	// --- Build handlers ---
	healthHandler := handlers.NewHealthHandler(
		reg.Ping,
		metrics.Ping,
		func(ctx context.Context) error { return natsClient.Ping() },
		snapCache.Ping,
	)

	router := api.NewRouter(api.RouterConfig{
		AllowedOrigins:   []string{"*"},
		HealthHandler:    healthHandler,
		QueryHandler:     handlers.NewQueryHandler(svc),
		PercolateHandler: handlers.NewPercolateHandler(svc),
		StatsHandler:     handlers.NewStatsHandler(svc),
		StreamHandler:    handlers.NewStreamHandler(wsHub),
	})

	// --- Start HTTP server ---
	srv := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	// --- Graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}

	cancel()

	if err := persistSnapshot(context.Background(), svc, snapCache, snapStore); err != nil {
		slog.Error("failed to persist shutdown snapshot", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("percolate-server stopped")
}

// bootstrap rebuilds a Percolator from the most recently cached snapshot,
// falling back to an empty builder built from cfg. The S3 store is not
// consulted here.
func bootstrap(ctx context.Context, cfg *config.Config, c *cache.Cache, store *snapshot.Store) (*percolate.Percolator, error) {
	if data, err := c.Latest(ctx); err == nil {
		s, err := snapshot.Decode(data)
		if err == nil {
			p, err := snapshot.Restore(s)
			if err == nil {
				slog.Info("bootstrapped percolator from cached snapshot", "snapshot_id", s.ID, "queries", len(s.Registry))
				return p, nil
			}
			slog.Warn("failed to restore cached snapshot, starting empty", "error", err)
		}
	} else if !errors.Is(err, cache.ErrNotFound) {
		slog.Warn("failed to read cached snapshot", "error", err)
	}

	slog.Info("bootstrapping empty percolator",
		"n_clause_matchers", cfg.NClauseMatchers,
		"prefix_sizes", cfg.PrefixSizes,
	)
	return percolate.NewBuilder().
		WithNClauseMatchers(cfg.NClauseMatchers).
		WithPrefixSizes(cfg.PrefixSizes).
		Build()
}

// persistSnapshot captures the current registry and writes it to both the
// Redis cache (fast warm restart) and S3 (durable, survives a Redis flush).
func persistSnapshot(ctx context.Context, svc *handlers.PercolatorService, c *cache.Cache, store *snapshot.Store) error {
	snap := svc.Snapshot(time.Now())

	data, err := snapshot.Encode(snap)
	if err != nil {
		return err
	}
	if err := c.Put(ctx, snap.ID, data, 0); err != nil {
		slog.Warn("failed to cache shutdown snapshot in redis", "error", err)
	}

	if store == nil {
		return nil
	}
	if _, err := store.Save(ctx, snap); err != nil {
		return err
	}
	slog.Info("persisted shutdown snapshot", "snapshot_id", snap.ID, "queries", len(snap.Registry))
	return nil
}

func recordStatsPeriodically(ctx context.Context, svc *handlers.PercolatorService, sink *metricsink.Sink) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sink.RecordStats(ctx, time.Now(), svc.Stats()); err != nil {
				slog.Warn("failed to record stats snapshot", "error", err)
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
