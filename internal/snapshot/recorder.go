// Package snapshot copies current market state into the append-only history log.
package snapshot

import (
	"context"
	"fmt"
	"log"
	"time"

	"coin-market-history/internal/domain"
	"coin-market-history/internal/identity"
	"coin-market-history/internal/observability"
	"coin-market-history/internal/storage"
)

// Recorder writes point-in-time history records. Every record gets a fresh
// random identifier and a system-set RecordedAt; source timestamps are never
// trusted for history ordering.
type Recorder struct {
	current storage.CurrentRecordStore
	history storage.HistoryRecordStore
	logger  *log.Logger
	metrics *observability.Metrics

	// now is swappable for tests.
	now func() time.Time
}

// RecorderOptions contains configuration for creating a Recorder.
type RecorderOptions struct {
	Current storage.CurrentRecordStore
	History storage.HistoryRecordStore
	Logger  *log.Logger
	Metrics *observability.Metrics
}

// NewRecorder creates a new Recorder.
func NewRecorder(opts RecorderOptions) *Recorder {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Recorder{
		current: opts.Current,
		history: opts.History,
		logger:  logger,
		metrics: opts.Metrics,
		now:     time.Now,
	}
}

// Record snapshots the given quotes into the history log. Empty or nil input
// snapshots the whole current-state table. An empty table yields zero writes,
// not an error. Returns the number of history records written.
func (r *Recorder) Record(ctx context.Context, quotes []domain.Quote) (int, error) {
	if len(quotes) == 0 {
		current, err := r.current.GetAll(ctx)
		if err != nil {
			return 0, fmt.Errorf("read current records: %w", err)
		}
		quotes = make([]domain.Quote, len(current))
		for i, rec := range current {
			quotes[i] = rec.Quote()
		}
	} else {
		for i := range quotes {
			if err := quotes[i].Validate(); err != nil {
				return 0, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
			}
		}
	}

	if len(quotes) == 0 {
		return 0, nil
	}

	recordedAt := r.now().UTC()
	records := make([]*domain.HistoryRecord, len(quotes))
	for i, q := range quotes {
		historyID, err := identity.NewHistoryID()
		if err != nil {
			return 0, fmt.Errorf("generate history id: %w", err)
		}
		records[i] = &domain.HistoryRecord{
			HistoryID:         historyID,
			AssetID:           q.AssetID,
			Name:              q.Name,
			Symbol:            q.Symbol,
			PriceUSD:          q.PriceUSD,
			MarketCapUSD:      q.MarketCapUSD,
			PriceChangePct24h: q.PriceChangePct24h,
			RecordedAt:        recordedAt,
		}
	}

	if err := r.history.InsertAll(ctx, records); err != nil {
		return 0, fmt.Errorf("insert history records: %w", err)
	}

	if r.metrics != nil {
		r.metrics.SnapshotsRecorded.Inc()
		r.metrics.SnapshotRecordsWritten.Add(float64(len(records)))
	}
	r.logger.Printf("Snapshot wrote %d history records", len(records))

	return len(records), nil
}
