package memory

import (
	"context"
	"sort"
	"sync"

	"coin-market-history/internal/domain"
	"coin-market-history/internal/storage"
)

// HistoryRecordStore is an in-memory implementation of storage.HistoryRecordStore.
type HistoryRecordStore struct {
	mu   sync.RWMutex
	data map[string]*domain.HistoryRecord // keyed by history_id
}

// NewHistoryRecordStore creates a new in-memory history record store.
func NewHistoryRecordStore() *HistoryRecordStore {
	return &HistoryRecordStore{
		data: make(map[string]*domain.HistoryRecord),
	}
}

// InsertAll appends records. Fails the entire batch on any duplicate
// history_id so a collision never silently drops a record.
func (s *HistoryRecordStore) InsertAll(_ context.Context, records []*domain.HistoryRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Track keys in this batch to detect intra-batch duplicates
	batchKeys := make(map[string]struct{}, len(records))

	// First pass: check for duplicates (existing + intra-batch)
	for _, r := range records {
		if r == nil || r.HistoryID == "" || r.AssetID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[r.HistoryID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[r.HistoryID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[r.HistoryID] = struct{}{}
	}

	// Second pass: insert all
	for _, r := range records {
		recordCopy := *r
		s.data[r.HistoryID] = &recordCopy
	}

	return nil
}

// Query returns records matching the filter, sorted and bounded.
func (s *HistoryRecordStore) Query(_ context.Context, filter storage.HistoryFilter) ([]*domain.HistoryRecord, error) {
	s.mu.RLock()

	var result []*domain.HistoryRecord
	for _, r := range s.data {
		if filter.AssetID != "" && filter.AssetID != "all" && r.AssetID != filter.AssetID {
			continue
		}
		if !filter.Since.IsZero() && r.RecordedAt.Before(filter.Since) {
			continue
		}
		recordCopy := *r
		result = append(result, &recordCopy)
	}
	s.mu.RUnlock()

	SortRecords(result, filter.SortBy, filter.Ascending)

	limit := filter.Limit
	if limit <= 0 {
		limit = storage.DefaultQueryLimit
	}
	if len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// DeleteByID removes exactly one record. Returns whether it was found.
func (s *HistoryRecordStore) DeleteByID(_ context.Context, historyID string) (bool, error) {
	if historyID == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[historyID]; !exists {
		return false, nil
	}
	delete(s.data, historyID)
	return true, nil
}

// SortRecords orders history records by the given sort field. Non-time sorts
// tie-break by recorded_at descending; every order ends with history_id so
// equal records keep a deterministic relative position.
func SortRecords(records []*domain.HistoryRecord, sortBy string, ascending bool) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]

		var less, equal bool
		switch sortBy {
		case storage.SortPrice:
			less, equal = a.PriceUSD < b.PriceUSD, a.PriceUSD == b.PriceUSD
		case storage.SortChangePct:
			less, equal = a.PriceChangePct24h < b.PriceChangePct24h, a.PriceChangePct24h == b.PriceChangePct24h
		default:
			less, equal = a.RecordedAt.Before(b.RecordedAt), a.RecordedAt.Equal(b.RecordedAt)
		}

		if !equal {
			if ascending {
				return less
			}
			return !less
		}

		// Secondary key: recorded_at descending (meaningful for non-time sorts)
		if !a.RecordedAt.Equal(b.RecordedAt) {
			return a.RecordedAt.After(b.RecordedAt)
		}
		return a.HistoryID < b.HistoryID
	})
}

var _ storage.HistoryRecordStore = (*HistoryRecordStore)(nil)
