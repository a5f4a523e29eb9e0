package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"coin-market-history/internal/domain"
	"coin-market-history/internal/storage"
)

func historyRecord(historyID, assetID string, price float64, recordedAt time.Time) *domain.HistoryRecord {
	return &domain.HistoryRecord{
		HistoryID:         historyID,
		AssetID:           assetID,
		Name:              "Test Asset",
		Symbol:            "tst",
		PriceUSD:          price,
		MarketCapUSD:      price * 1e6,
		PriceChangePct24h: 0.5,
		RecordedAt:        recordedAt,
	}
}

func TestHistoryRecordStore_AppendOnly(t *testing.T) {
	store := NewHistoryRecordStore()
	ctx := context.Background()
	now := time.Now().UTC()

	const n = 5
	for i := 0; i < n; i++ {
		rec := historyRecord(fmt.Sprintf("h%d", i), "bitcoin", 50000, now.Add(time.Duration(i)*time.Second))
		if err := store.InsertAll(ctx, []*domain.HistoryRecord{rec}); err != nil {
			t.Fatalf("InsertAll %d failed: %v", i, err)
		}
	}

	got, err := store.Query(ctx, storage.HistoryFilter{AssetID: "bitcoin"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != n {
		t.Fatalf("expected %d records, got %d", n, len(got))
	}

	ids := make(map[string]struct{})
	for _, r := range got {
		ids[r.HistoryID] = struct{}{}
	}
	if len(ids) != n {
		t.Errorf("expected %d distinct history ids, got %d", n, len(ids))
	}
}

func TestHistoryRecordStore_DuplicateKey(t *testing.T) {
	store := NewHistoryRecordStore()
	ctx := context.Background()
	now := time.Now().UTC()

	rec := historyRecord("h1", "bitcoin", 50000, now)
	if err := store.InsertAll(ctx, []*domain.HistoryRecord{rec}); err != nil {
		t.Fatalf("first InsertAll failed: %v", err)
	}

	err := store.InsertAll(ctx, []*domain.HistoryRecord{rec})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	// Intra-batch duplicate fails all-or-nothing.
	err = store.InsertAll(ctx, []*domain.HistoryRecord{
		historyRecord("h2", "bitcoin", 50000, now),
		historyRecord("h2", "bitcoin", 50001, now),
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey for intra-batch duplicate, got %v", err)
	}

	got, _ := store.Query(ctx, storage.HistoryFilter{})
	if len(got) != 1 {
		t.Errorf("expected 1 record (no partial insert), got %d", len(got))
	}
}

func TestHistoryRecordStore_QueryDefaultSort(t *testing.T) {
	store := NewHistoryRecordStore()
	ctx := context.Background()
	now := time.Now().UTC()

	records := []*domain.HistoryRecord{
		historyRecord("h1", "bitcoin", 100, now.Add(-2*time.Hour)),
		historyRecord("h2", "bitcoin", 110, now.Add(-1*time.Hour)),
		historyRecord("h3", "bitcoin", 99, now),
	}
	if err := store.InsertAll(ctx, records); err != nil {
		t.Fatalf("InsertAll failed: %v", err)
	}

	got, err := store.Query(ctx, storage.HistoryFilter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	// Most recent first.
	for i := 1; i < len(got); i++ {
		if got[i].RecordedAt.After(got[i-1].RecordedAt) {
			t.Errorf("records not in recorded_at descending order at index %d", i)
		}
	}
}

func TestHistoryRecordStore_QuerySortByPriceWithTieBreak(t *testing.T) {
	store := NewHistoryRecordStore()
	ctx := context.Background()
	now := time.Now().UTC()

	records := []*domain.HistoryRecord{
		historyRecord("h1", "bitcoin", 110, now.Add(-3*time.Hour)),
		historyRecord("h2", "bitcoin", 100, now.Add(-2*time.Hour)),
		historyRecord("h3", "bitcoin", 100, now.Add(-1*time.Hour)), // price tie, newer
		historyRecord("h4", "bitcoin", 99, now),
	}
	if err := store.InsertAll(ctx, records); err != nil {
		t.Fatalf("InsertAll failed: %v", err)
	}

	got, err := store.Query(ctx, storage.HistoryFilter{SortBy: storage.SortPrice, Ascending: true})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	// Non-decreasing price sequence.
	for i := 1; i < len(got); i++ {
		if got[i].PriceUSD < got[i-1].PriceUSD {
			t.Errorf("price sequence decreases at index %d", i)
		}
	}

	// Ties broken by recorded_at descending: h3 before h2.
	if got[1].HistoryID != "h3" || got[2].HistoryID != "h2" {
		t.Errorf("tie-break order wrong: got %s, %s; want h3, h2", got[1].HistoryID, got[2].HistoryID)
	}
}

func TestHistoryRecordStore_QueryAssetFilterAndSince(t *testing.T) {
	store := NewHistoryRecordStore()
	ctx := context.Background()
	now := time.Now().UTC()

	day := 24 * time.Hour
	records := []*domain.HistoryRecord{
		historyRecord("h1", "bitcoin", 100, now),
		historyRecord("h2", "bitcoin", 100, now.Add(-5*day)),
		historyRecord("h3", "bitcoin", 100, now.Add(-10*day)),
		historyRecord("h4", "bitcoin", 100, now.Add(-40*day)),
		historyRecord("h5", "ethereum", 3000, now),
	}
	if err := store.InsertAll(ctx, records); err != nil {
		t.Fatalf("InsertAll failed: %v", err)
	}

	// 7-day cutoff returns records at days {0, -5} only.
	got, err := store.Query(ctx, storage.HistoryFilter{
		AssetID: "bitcoin",
		Since:   now.Add(-7 * day),
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records inside the window, got %d", len(got))
	}
	if got[0].HistoryID != "h1" || got[1].HistoryID != "h2" {
		t.Errorf("window returned wrong records: %s, %s", got[0].HistoryID, got[1].HistoryID)
	}

	// "all" behaves like no filter.
	got, err = store.Query(ctx, storage.HistoryFilter{AssetID: "all"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 5 {
		t.Errorf("expected 5 records for assetId=all, got %d", len(got))
	}
}

func TestHistoryRecordStore_QueryLimit(t *testing.T) {
	store := NewHistoryRecordStore()
	ctx := context.Background()
	now := time.Now().UTC()

	var records []*domain.HistoryRecord
	for i := 0; i < storage.DefaultQueryLimit+50; i++ {
		records = append(records, historyRecord(fmt.Sprintf("h%d", i), "bitcoin", 100, now.Add(time.Duration(i)*time.Second)))
	}
	if err := store.InsertAll(ctx, records); err != nil {
		t.Fatalf("InsertAll failed: %v", err)
	}

	got, _ := store.Query(ctx, storage.HistoryFilter{})
	if len(got) != storage.DefaultQueryLimit {
		t.Errorf("expected default limit %d, got %d", storage.DefaultQueryLimit, len(got))
	}

	got, _ = store.Query(ctx, storage.HistoryFilter{Limit: 10})
	if len(got) != 10 {
		t.Errorf("expected 10 records, got %d", len(got))
	}

	got, _ = store.Query(ctx, storage.HistoryFilter{Limit: storage.DefaultQueryLimit + 50})
	if len(got) != storage.DefaultQueryLimit+50 {
		t.Errorf("expected explicit larger limit to be honored, got %d", len(got))
	}
}

func TestHistoryRecordStore_DeleteByID(t *testing.T) {
	store := NewHistoryRecordStore()
	ctx := context.Background()

	rec := historyRecord("h1", "bitcoin", 100, time.Now().UTC())
	if err := store.InsertAll(ctx, []*domain.HistoryRecord{rec}); err != nil {
		t.Fatalf("InsertAll failed: %v", err)
	}

	found, err := store.DeleteByID(ctx, "h1")
	if err != nil {
		t.Fatalf("DeleteByID failed: %v", err)
	}
	if !found {
		t.Error("expected record to be found")
	}

	got, _ := store.Query(ctx, storage.HistoryFilter{})
	if len(got) != 0 {
		t.Errorf("expected empty store after delete, got %d records", len(got))
	}

	// Deleting an unknown id is "not found", not an error.
	found, err = store.DeleteByID(ctx, "h1")
	if err != nil {
		t.Fatalf("DeleteByID failed: %v", err)
	}
	if found {
		t.Error("expected not found for deleted id")
	}
}
