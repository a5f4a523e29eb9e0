// Package main provides the unified service that runs all components together:
// - Ingestion (continuous): market polls plus an optional live ticker feed
// - Snapshots (scheduled): periodic history captures of the current table
// - HTTP API: current state, history queries, stats, health and metrics
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"coin-market-history/internal/cache"
	"coin-market-history/internal/httpapi"
	"coin-market-history/internal/ingestion"
	"coin-market-history/internal/marketdata"
	"coin-market-history/internal/observability"
	"coin-market-history/internal/query"
	"coin-market-history/internal/snapshot"
	"coin-market-history/internal/storage"
	chstore "coin-market-history/internal/storage/clickhouse"
	"coin-market-history/internal/storage/memory"
	"coin-market-history/internal/storage/migrations"
	pgstore "coin-market-history/internal/storage/postgres"
)

// allStores holds the storage implementations for both tables.
type allStores struct {
	current storage.CurrentRecordStore
	history storage.HistoryRecordStore
	backend string
}

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	// Parse flags (env vars as defaults)
	listenAddr := flag.String("listen-addr", envOr("LISTEN_ADDR", ":8080"), "HTTP listen address")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	redisAddr := flag.String("redis-addr", os.Getenv("REDIS_ADDR"), "Redis address for the summary cache (optional)")
	marketsURL := flag.String("markets-url", envOr("MARKETS_API_URL", marketdata.DefaultBaseURL), "Markets API base URL")
	feedURL := flag.String("feed-url", os.Getenv("MARKETS_WS_URL"), "WebSocket ticker feed URL (optional)")
	historyBackend := flag.String("history-backend", envOr("HISTORY_BACKEND", "postgres"), "History storage backend: postgres or clickhouse")
	pollInterval := flag.Duration("poll-interval", 1*time.Minute, "Market poll interval")
	snapshotEvery := flag.Int("snapshot-every", 5, "Record a history snapshot every N successful polls (0 disables)")
	pageSize := flag.Int("page-size", marketdata.DefaultPageSize, "Number of assets to request per market poll")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}
	if !*useMemory && *historyBackend == "clickhouse" && *clickhouseDSN == "" {
		logger.Fatal("--clickhouse-dsn is required with --history-backend=clickhouse")
	}
	if *historyBackend != "postgres" && *historyBackend != "clickhouse" {
		logger.Fatalf("Unknown history backend %q (want postgres or clickhouse)", *historyBackend)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create stores
	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *historyBackend, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()
	logger.Printf("Storage backend: %s", stores.backend)

	metrics := observability.NewMetrics("")

	// Core components
	ingestor := ingestion.NewIngestor(ingestion.IngestorOptions{
		Source:  marketdata.NewClient(*marketsURL, marketdata.WithPageSize(*pageSize)),
		Store:   stores.current,
		Logger:  log.New(os.Stdout, "[ingest] ", log.LstdFlags),
		Metrics: metrics,
	})
	recorder := snapshot.NewRecorder(snapshot.RecorderOptions{
		Current: stores.current,
		History: stores.history,
		Logger:  log.New(os.Stdout, "[snapshot] ", log.LstdFlags),
		Metrics: metrics,
	})
	engine := query.NewEngine(query.EngineOptions{
		History: stores.history,
		Logger:  log.New(os.Stdout, "[query] ", log.LstdFlags),
		Metrics: metrics,
	})

	// Optional Redis summary cache
	var summaries httpapi.SummaryProvider
	if *redisAddr != "" {
		summaryCache := cache.NewSummaryCache(cache.SummaryCacheOptions{
			Client:  redis.NewClient(&redis.Options{Addr: *redisAddr}),
			Store:   stores.current,
			Logger:  logger,
			Metrics: metrics,
		})
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err := summaryCache.Ping(pingCtx)
		pingCancel()
		if err != nil {
			logger.Printf("Redis unavailable at %s, serving summaries without cache: %v", *redisAddr, err)
		} else {
			logger.Printf("Summary cache enabled via Redis at %s", *redisAddr)
			summaries = summaryCache
		}
	}

	// Optional live ticker feed
	var stream ingestion.StreamSource
	if *feedURL != "" {
		streamClient, err := marketdata.NewStreamClient(ctx, *feedURL, nil, log.New(os.Stdout, "[feed] ", log.LstdFlags))
		if err != nil {
			logger.Printf("Ticker feed unavailable at %s, continuing on polls only: %v", *feedURL, err)
		} else {
			logger.Printf("Live ticker feed connected: %s", *feedURL)
			stream = streamClient
			defer streamClient.Close()
		}
	}

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Ingestor:      ingestor,
		Recorder:      recorder,
		Stream:        stream,
		Store:         stores.current,
		PollInterval:  *pollInterval,
		SnapshotEvery: *snapshotEvery,
		Logger:        log.New(os.Stdout, "[runner] ", log.LstdFlags),
		Metrics:       metrics,
	})

	api := httpapi.NewServer(httpapi.Options{
		Ingestor:    ingestor,
		Recorder:    recorder,
		Engine:      engine,
		Current:     stores.current,
		Summaries:   summaries,
		Logger:      logger,
		BackendName: stores.backend,
	})
	httpSrv := &http.Server{
		Addr:    *listenAddr,
		Handler: api.Routes(),
	}

	errCh := make(chan error, 2)

	go func() {
		if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("ingestion runner: %w", err)
		}
	}()

	go func() {
		logger.Printf("Starting HTTP server on %s", *listenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-errCh:
		logger.Printf("Component failed: %v", err)
	}
	cancel()

	// Wait for second signal for immediate shutdown
	go func() {
		sig := <-sigCh
		logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
		os.Exit(1)
	}()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP shutdown error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates the current and history stores for the chosen backend.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN, historyBackend string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			current: memory.NewCurrentRecordStore(),
			history: memory.NewHistoryRecordStore(),
			backend: "memory",
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("apply postgres migrations: %w", err)
	}

	stores := &allStores{
		current: pgstore.NewCurrentRecordStore(pool),
		backend: "postgres",
	}

	if historyBackend == "clickhouse" {
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("prepare clickhouse: %w", err)
		}
		stores.history = chstore.NewHistoryRecordStore(conn)
		stores.backend = "postgres+clickhouse"
		return stores, func() {
			conn.Close()
			pool.Close()
		}, nil
	}

	stores.history = pgstore.NewHistoryRecordStore(pool)
	return stores, func() { pool.Close() }, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
