// Package httpapi exposes the service over HTTP with a stable JSON envelope.
package httpapi

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"coin-market-history/internal/domain"
	"coin-market-history/internal/ingestion"
	"coin-market-history/internal/observability"
	"coin-market-history/internal/query"
	"coin-market-history/internal/storage"
)

// DefaultRequestTimeout bounds one request's storage and upstream work.
const DefaultRequestTimeout = 15 * time.Second

// SummaryProvider serves the asset summary projection, cached or direct.
type SummaryProvider interface {
	GetSummaries(ctx context.Context) ([]domain.AssetSummary, error)
}

// Server wires the HTTP routes to the core components.
type Server struct {
	ingestor       *ingestion.Ingestor
	recorder       ingestion.SnapshotRecorder
	engine         *query.Engine
	current        storage.CurrentRecordStore
	summaries      SummaryProvider
	logger         *log.Logger
	requestTimeout time.Duration

	mu          sync.Mutex
	startedAt   time.Time
	lastIngest  time.Time
	ingestRuns  int
	backendName string
}

// Options contains configuration for creating a Server.
type Options struct {
	Ingestor       *ingestion.Ingestor
	Recorder       ingestion.SnapshotRecorder
	Engine         *query.Engine
	Current        storage.CurrentRecordStore
	Summaries      SummaryProvider
	Logger         *log.Logger
	RequestTimeout time.Duration
	BackendName    string
}

// NewServer creates a new Server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	requestTimeout := opts.RequestTimeout
	if requestTimeout == 0 {
		requestTimeout = DefaultRequestTimeout
	}
	summaries := opts.Summaries
	if summaries == nil {
		summaries = summariesFromStore{opts.Current}
	}
	return &Server{
		ingestor:       opts.Ingestor,
		recorder:       opts.Recorder,
		engine:         opts.Engine,
		current:        opts.Current,
		summaries:      summaries,
		logger:         logger,
		requestTimeout: requestTimeout,
		startedAt:      time.Now(),
		backendName:    opts.BackendName,
	}
}

// summariesFromStore adapts the current-state store when no cache is wired.
type summariesFromStore struct {
	store storage.CurrentRecordStore
}

func (s summariesFromStore) GetSummaries(ctx context.Context) ([]domain.AssetSummary, error) {
	return s.store.GetSummaries(ctx)
}

// Routes returns the HTTP handler with all routes registered.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", observability.Handler())
	mux.HandleFunc("GET /status", s.handleStatus)

	mux.HandleFunc("GET /coins", s.handleIngest)
	mux.HandleFunc("GET /coins/current", s.handleCurrentSummaries)

	mux.HandleFunc("POST /history", s.handleSnapshot)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("GET /history/{assetId}", s.handleAssetHistory)
	mux.HandleFunc("GET /history/{assetId}/stats", s.handleAssetStats)
	mux.HandleFunc("DELETE /history/{historyId}", s.handleDelete)

	return mux
}

// requestContext bounds one request's work.
func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.requestTimeout)
}
