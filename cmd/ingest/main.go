// Package main provides a one-shot ingest command: fetch the current market
// quotes, upsert them into the current-state table, and optionally record a
// history snapshot of the result.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"coin-market-history/internal/ingestion"
	"coin-market-history/internal/marketdata"
	"coin-market-history/internal/snapshot"
	"coin-market-history/internal/storage"
	chstore "coin-market-history/internal/storage/clickhouse"
	"coin-market-history/internal/storage/memory"
	"coin-market-history/internal/storage/migrations"
	pgstore "coin-market-history/internal/storage/postgres"
)

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	// Parse flags (env vars as defaults)
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	marketsURL := flag.String("markets-url", envOr("MARKETS_API_URL", marketdata.DefaultBaseURL), "Markets API base URL")
	historyBackend := flag.String("history-backend", envOr("HISTORY_BACKEND", "postgres"), "History storage backend: postgres or clickhouse")
	pageSize := flag.Int("page-size", marketdata.DefaultPageSize, "Number of assets to request")
	withSnapshot := flag.Bool("snapshot", false, "Record a history snapshot after the ingest")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage (dry run)")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall run timeout")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[ingest] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for a dry run)")
	}
	if !*useMemory && *withSnapshot && *historyBackend == "clickhouse" && *clickhouseDSN == "" {
		logger.Fatal("--clickhouse-dsn is required with --history-backend=clickhouse")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// Cancel on the first signal, a one-shot run has nothing to drain
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, cancelling...", sig)
		cancel()
	}()

	current, history, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *historyBackend, *withSnapshot, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	ingestor := ingestion.NewIngestor(ingestion.IngestorOptions{
		Source: marketdata.NewClient(*marketsURL, marketdata.WithPageSize(*pageSize)),
		Store:  current,
		Logger: logger,
	})

	accepted, res, err := ingestor.Ingest(ctx)
	if err != nil {
		logger.Fatalf("Ingest failed: %v", err)
	}
	logger.Printf("Ingest batch %s: fetched=%d accepted=%d rejected=%d upserted=%d failed=%d",
		res.BatchID, res.Fetched, len(accepted), res.Rejected, res.Upserted, len(res.FailedKeys))
	for key, keyErr := range res.FailedKeys {
		logger.Printf("  upsert failed for %s: %v", key, keyErr)
	}

	if *withSnapshot {
		recorder := snapshot.NewRecorder(snapshot.RecorderOptions{
			Current: current,
			History: history,
			Logger:  logger,
		})
		written, err := recorder.Record(ctx, nil)
		if err != nil {
			logger.Fatalf("Snapshot failed: %v", err)
		}
		logger.Printf("Snapshot recorded: %d history records", written)
	}
}

// createStores connects the current-state store and, when a snapshot is
// requested, the history store for the chosen backend.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN, historyBackend string, withSnapshot, useMemory bool) (storage.CurrentRecordStore, storage.HistoryRecordStore, func(), error) {
	if useMemory {
		return memory.NewCurrentRecordStore(), memory.NewHistoryRecordStore(), func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("apply postgres migrations: %w", err)
	}

	current := pgstore.NewCurrentRecordStore(pool)

	if withSnapshot && historyBackend == "clickhouse" {
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("prepare clickhouse: %w", err)
		}
		cleanup := func() {
			conn.Close()
			pool.Close()
		}
		return current, chstore.NewHistoryRecordStore(conn), cleanup, nil
	}

	return current, pgstore.NewHistoryRecordStore(pool), func() { pool.Close() }, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
