package memory

import (
	"context"
	"sync"
	"time"

	"coin-market-history/internal/domain"
	"coin-market-history/internal/storage"
)

// CurrentRecordStore is an in-memory implementation of storage.CurrentRecordStore.
type CurrentRecordStore struct {
	mu   sync.RWMutex
	data map[string]*domain.CurrentRecord // keyed by asset_id
}

// NewCurrentRecordStore creates a new in-memory current record store.
func NewCurrentRecordStore() *CurrentRecordStore {
	return &CurrentRecordStore{
		data: make(map[string]*domain.CurrentRecord),
	}
}

// UpsertAll inserts or fully replaces one record per asset_id. The map write
// is atomic per key under the store lock, so concurrent batches interleave at
// record granularity and never mix fields from two writes.
func (s *CurrentRecordStore) UpsertAll(_ context.Context, quotes []domain.Quote) (storage.UpsertResult, error) {
	res := storage.UpsertResult{FailedKeys: make(map[string]error)}
	if len(quotes) == 0 {
		return res, nil
	}

	for _, q := range quotes {
		if q.AssetID == "" {
			return storage.UpsertResult{}, storage.ErrInvalidInput
		}
	}

	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, q := range quotes {
		s.data[q.AssetID] = &domain.CurrentRecord{
			AssetID:           q.AssetID,
			Name:              q.Name,
			Symbol:            q.Symbol,
			PriceUSD:          q.PriceUSD,
			MarketCapUSD:      q.MarketCapUSD,
			PriceChangePct24h: q.PriceChangePct24h,
			Image:             q.Image,
			ObservedAt:        q.ObservedAt,
			UpdatedAt:         now,
		}
		res.Applied++
	}

	return res, nil
}

// GetAll returns a snapshot read of every current record.
func (s *CurrentRecordStore) GetAll(_ context.Context) ([]*domain.CurrentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.CurrentRecord, 0, len(s.data))
	for _, r := range s.data {
		recordCopy := *r
		result = append(result, &recordCopy)
	}
	return result, nil
}

// GetSummaries returns the narrow projection for cheap enumeration.
func (s *CurrentRecordStore) GetSummaries(_ context.Context) ([]domain.AssetSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AssetSummary, 0, len(s.data))
	for _, r := range s.data {
		result = append(result, domain.AssetSummary{
			AssetID: r.AssetID,
			Name:    r.Name,
			Symbol:  r.Symbol,
		})
	}
	return result, nil
}

var _ storage.CurrentRecordStore = (*CurrentRecordStore)(nil)
