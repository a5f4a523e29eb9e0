package ingestion

import (
	"context"

	"coin-market-history/internal/domain"
)

// QuoteSource provides one page of market quotes from an upstream provider.
type QuoteSource interface {
	// FetchQuotes returns the current quotes. Items may be malformed;
	// the Ingestor validates and drops them.
	FetchQuotes(ctx context.Context) ([]domain.Quote, error)
}

// StreamSource provides a live feed of quote updates.
type StreamSource interface {
	// Quotes returns the feed channel. It is closed when the source shuts down.
	Quotes() <-chan domain.Quote
	Close() error
}

// SnapshotRecorder persists a set of quotes into the history log.
type SnapshotRecorder interface {
	// Record snapshots the given quotes; empty input snapshots the whole
	// current-state table. Returns the number of history records written.
	Record(ctx context.Context, quotes []domain.Quote) (int, error)
}
