package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"coin-market-history/internal/domain"
	"coin-market-history/internal/observability"
	"coin-market-history/internal/storage"
)

// ErrUpstreamUnavailable marks ingest failures caused by the upstream markets
// API. No store state changes when it is returned.
var ErrUpstreamUnavailable = errors.New("upstream markets API unavailable")

// IngestResult describes one ingest run.
type IngestResult struct {
	// BatchID correlates the run's log lines.
	BatchID string
	// Fetched is the number of items the source returned.
	Fetched int
	// Rejected is the number of items dropped by validation.
	Rejected int
	// Accepted is the number of items that passed validation.
	Accepted int
	// Upserted is the number of accepted items actually applied.
	Upserted int
	// FailedKeys holds per-asset upsert failures.
	FailedKeys map[string]error
}

// Ingestor pulls quotes from a source, validates them and upserts the
// survivors into the current-state store. A bad item never fails the batch,
// and a failed upsert on one key never blocks the others.
type Ingestor struct {
	source  QuoteSource
	store   storage.CurrentRecordStore
	logger  *log.Logger
	metrics *observability.Metrics
}

// IngestorOptions contains configuration for creating an Ingestor.
type IngestorOptions struct {
	Source  QuoteSource
	Store   storage.CurrentRecordStore
	Logger  *log.Logger
	Metrics *observability.Metrics
}

// NewIngestor creates a new Ingestor.
func NewIngestor(opts IngestorOptions) *Ingestor {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Ingestor{
		source:  opts.Source,
		store:   opts.Store,
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// Ingest runs one fetch-validate-upsert cycle and returns the accepted
// quotes. Accepted quotes are returned even when some upserts fail, so a
// caller chaining a snapshot still sees what the run produced.
func (i *Ingestor) Ingest(ctx context.Context) ([]domain.Quote, IngestResult, error) {
	res := IngestResult{BatchID: uuid.NewString()}

	fetched, err := i.source.FetchQuotes(ctx)
	if err != nil {
		if i.metrics != nil {
			i.metrics.UpstreamFailures.Inc()
		}
		return nil, res, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	res.Fetched = len(fetched)
	if i.metrics != nil {
		i.metrics.QuotesFetched.Add(float64(len(fetched)))
	}

	accepted := make([]domain.Quote, 0, len(fetched))
	for _, q := range fetched {
		if err := q.Validate(); err != nil {
			res.Rejected++
			i.logger.Printf("batch %s: reject quote: %v", res.BatchID, err)
			continue
		}
		accepted = append(accepted, q)
	}
	res.Accepted = len(accepted)
	if i.metrics != nil {
		i.metrics.QuotesRejected.Add(float64(res.Rejected))
	}

	if len(accepted) == 0 {
		return accepted, res, nil
	}

	upsert, err := i.store.UpsertAll(ctx, accepted)
	if err != nil {
		return nil, res, fmt.Errorf("upsert quotes: %w", err)
	}
	res.Upserted = upsert.Applied
	res.FailedKeys = upsert.FailedKeys

	if i.metrics != nil {
		i.metrics.QuotesAccepted.Add(float64(upsert.Applied))
		i.metrics.UpsertFailures.Add(float64(len(upsert.FailedKeys)))
	}
	for assetID, keyErr := range upsert.FailedKeys {
		i.logger.Printf("batch %s: upsert failed for %s: %v", res.BatchID, assetID, keyErr)
	}

	return accepted, res, nil
}
