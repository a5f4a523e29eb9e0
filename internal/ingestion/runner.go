package ingestion

import (
	"context"
	"log"
	"time"

	"coin-market-history/internal/domain"
	"coin-market-history/internal/observability"
	"coin-market-history/internal/storage"
)

// Runner orchestrates continuous ingestion: periodic polling of the markets
// API, optional live feed consumption, and scheduled history snapshots.
type Runner struct {
	ingestor      *Ingestor
	recorder      SnapshotRecorder
	stream        StreamSource
	store         storage.CurrentRecordStore
	pollInterval  time.Duration
	snapshotEvery int // snapshot after every N successful polls, 0 disables
	logger        *log.Logger
	metrics       *observability.Metrics

	pollsSinceSnapshot int
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Ingestor      *Ingestor
	Recorder      SnapshotRecorder
	Stream        StreamSource
	Store         storage.CurrentRecordStore
	PollInterval  time.Duration // Default: 1 minute
	SnapshotEvery int           // Default: 0 (disabled)
	Logger        *log.Logger
	Metrics       *observability.Metrics
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	pollInterval := opts.PollInterval
	if pollInterval == 0 {
		pollInterval = 1 * time.Minute
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Runner{
		ingestor:      opts.Ingestor,
		recorder:      opts.Recorder,
		stream:        opts.Stream,
		store:         opts.Store,
		pollInterval:  pollInterval,
		snapshotEvery: opts.SnapshotEvery,
		logger:        logger,
		metrics:       opts.Metrics,
	}
}

// Run starts continuous ingestion. It blocks until context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Printf("Starting ingestion runner, poll interval: %v, snapshot every: %d polls", r.pollInterval, r.snapshotEvery)

	var streamCh <-chan domain.Quote
	if r.stream != nil {
		streamCh = r.stream.Quotes()
		r.logger.Println("Consuming live quote feed")
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	// First poll immediately rather than one interval in
	r.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Println("Runner stopping...")
			return ctx.Err()

		case quote, ok := <-streamCh:
			if !ok {
				r.logger.Println("Live feed closed, continuing on polls only")
				streamCh = nil
				continue
			}
			r.handleStreamQuote(ctx, quote)

		case <-ticker.C:
			r.poll(ctx)
		}
	}
}

// poll runs one ingest cycle and a snapshot when one is due.
func (r *Runner) poll(ctx context.Context) {
	start := time.Now()
	_, res, err := r.ingestor.Ingest(ctx)
	if err != nil {
		r.logger.Printf("Ingest failed: %v", err)
		if r.metrics != nil {
			r.metrics.RecordIngestRun("error", time.Since(start).Seconds())
		}
		return
	}

	r.logger.Printf("Ingest batch %s: fetched=%d accepted=%d rejected=%d upserted=%d failed=%d",
		res.BatchID, res.Fetched, res.Accepted, res.Rejected, res.Upserted, len(res.FailedKeys))
	if r.metrics != nil {
		r.metrics.RecordIngestRun("success", time.Since(start).Seconds())
		r.metrics.LastSuccessfulPoll.SetToCurrentTime()
	}

	if r.snapshotEvery <= 0 || r.recorder == nil {
		return
	}

	r.pollsSinceSnapshot++
	if r.pollsSinceSnapshot < r.snapshotEvery {
		return
	}
	r.pollsSinceSnapshot = 0

	written, err := r.recorder.Record(ctx, nil)
	if err != nil {
		r.logger.Printf("Scheduled snapshot failed: %v", err)
		return
	}
	r.logger.Printf("Scheduled snapshot wrote %d history records", written)
}

// handleStreamQuote validates and upserts a single live quote.
func (r *Runner) handleStreamQuote(ctx context.Context, quote domain.Quote) {
	if err := quote.Validate(); err != nil {
		r.logger.Printf("Reject live quote: %v", err)
		if r.metrics != nil {
			r.metrics.QuotesRejected.Inc()
		}
		return
	}

	res, err := r.store.UpsertAll(ctx, []domain.Quote{quote})
	if err != nil {
		r.logger.Printf("Live upsert failed for %s: %v", quote.AssetID, err)
		return
	}
	for assetID, keyErr := range res.FailedKeys {
		r.logger.Printf("Live upsert failed for %s: %v", assetID, keyErr)
	}
	if r.metrics != nil {
		r.metrics.QuotesAccepted.Add(float64(res.Applied))
	}
}
