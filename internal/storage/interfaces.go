package storage

import (
	"context"
	"time"

	"coin-market-history/internal/domain"
)

// Sort fields accepted by HistoryFilter.
const (
	SortRecordedAt = "recordedAt"
	SortPrice      = "priceUsd"
	SortChangePct  = "priceChangePct24h"
)

// DefaultQueryLimit bounds history reads when the caller does not ask for an
// explicit limit.
const DefaultQueryLimit = 100

// HistoryFilter selects and orders history records.
type HistoryFilter struct {
	// AssetID restricts results to one asset. Empty or "all" means no filter.
	AssetID string

	// Since restricts results to records with recorded_at at or after the
	// cutoff. Zero means unbounded.
	Since time.Time

	// SortBy is one of the Sort* constants. Empty means SortRecordedAt.
	SortBy string

	// Ascending inverts the default descending order.
	Ascending bool

	// Limit caps the result size. Zero or negative means DefaultQueryLimit.
	Limit int
}

// UpsertResult reports the outcome of a bulk upsert. A failure on one key
// never prevents other keys from applying; failed keys are reported here so
// the caller can tell nothing-written from partially-written.
type UpsertResult struct {
	Applied    int
	FailedKeys map[string]error
}

// Failed reports whether any key in the batch failed to apply.
func (r UpsertResult) Failed() bool {
	return len(r.FailedKeys) > 0
}

// CurrentRecordStore holds the latest known record per asset. One record per
// asset_id; upserts replace the whole record for the key.
type CurrentRecordStore interface {
	// UpsertAll inserts or fully replaces one record per asset_id.
	// Set-per-key semantics: every field of a matched record is overwritten
	// and updated_at is set to now. Per-key failures are isolated and
	// reported in the result.
	UpsertAll(ctx context.Context, quotes []domain.Quote) (UpsertResult, error)

	// GetAll returns a snapshot read of every current record, no ordering
	// guaranteed.
	GetAll(ctx context.Context) ([]*domain.CurrentRecord, error)

	// GetSummaries returns the narrow {assetId, name, symbol} projection.
	GetSummaries(ctx context.Context) ([]domain.AssetSummary, error)
}

// HistoryRecordStore is the append-only log of point-in-time observations.
type HistoryRecordStore interface {
	// InsertAll appends records. Never replaces existing entries; a
	// history_id collision returns ErrDuplicateKey.
	InsertAll(ctx context.Context, records []*domain.HistoryRecord) error

	// Query returns records matching the filter. Default order is
	// recorded_at descending; non-time sorts tie-break by recorded_at
	// descending so results stay deterministic.
	Query(ctx context.Context, filter HistoryFilter) ([]*domain.HistoryRecord, error)

	// DeleteByID removes exactly one record. The boolean reports whether a
	// record was found; a missing id is not an error.
	DeleteByID(ctx context.Context, historyID string) (bool, error)
}
