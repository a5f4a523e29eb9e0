package clickhouse

import (
	"context"
	"fmt"
	"time"

	"coin-market-history/internal/domain"
	"coin-market-history/internal/storage"
)

// HistoryRecordStore implements storage.HistoryRecordStore using ClickHouse.
// MergeTree does not enforce uniqueness, so history_id collisions are detected
// with an explicit existence check before every batch.
type HistoryRecordStore struct {
	conn *Conn
}

// NewHistoryRecordStore creates a new HistoryRecordStore.
func NewHistoryRecordStore(conn *Conn) *HistoryRecordStore {
	return &HistoryRecordStore{conn: conn}
}

// Compile-time interface check.
var _ storage.HistoryRecordStore = (*HistoryRecordStore)(nil)

// InsertAll appends records. Fails the entire batch on any duplicate history_id.
func (s *HistoryRecordStore) InsertAll(ctx context.Context, records []*domain.HistoryRecord) error {
	if len(records) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.HistoryID == "" || r.AssetID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[r.HistoryID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[r.HistoryID] = struct{}{}
	}

	// Check for duplicates against existing rows
	for _, r := range records {
		exists, err := s.exists(ctx, r.HistoryID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO history_records (
			history_id, asset_id, name, symbol,
			price_usd, market_cap_usd, price_change_pct_24h, recorded_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		err = batch.Append(
			r.HistoryID, r.AssetID, r.Name, r.Symbol,
			r.PriceUSD, r.MarketCapUSD, r.PriceChangePct24h, r.RecordedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// Query returns records matching the filter. Non-time sorts tie-break by
// recorded_at descending; history_id keeps fully equal rows deterministic.
func (s *HistoryRecordStore) Query(ctx context.Context, filter storage.HistoryFilter) ([]*domain.HistoryRecord, error) {
	query := `
		SELECT history_id, asset_id, name, symbol,
			price_usd, market_cap_usd, price_change_pct_24h, recorded_at
		FROM history_records
	`

	var args []any
	where := ""
	if filter.AssetID != "" && filter.AssetID != "all" {
		where = " WHERE asset_id = ?"
		args = append(args, filter.AssetID)
	}
	if !filter.Since.IsZero() {
		if where == "" {
			where = " WHERE recorded_at >= ?"
		} else {
			where += " AND recorded_at >= ?"
		}
		args = append(args, filter.Since)
	}

	var column string
	switch filter.SortBy {
	case storage.SortPrice:
		column = "price_usd"
	case storage.SortChangePct:
		column = "price_change_pct_24h"
	default:
		column = "recorded_at"
	}
	direction := "DESC"
	if filter.Ascending {
		direction = "ASC"
	}
	orderBy := fmt.Sprintf(" ORDER BY %s %s", column, direction)
	if column != "recorded_at" {
		orderBy += ", recorded_at DESC"
	}
	orderBy += ", history_id ASC"

	limit := filter.Limit
	if limit <= 0 {
		limit = storage.DefaultQueryLimit
	}
	args = append(args, uint64(limit))

	rows, err := s.conn.Query(ctx, query+where+orderBy+" LIMIT ?", args...)
	if err != nil {
		return nil, fmt.Errorf("query history records: %w", err)
	}
	defer rows.Close()

	var records []*domain.HistoryRecord
	for rows.Next() {
		var r domain.HistoryRecord
		var recordedAt time.Time
		err := rows.Scan(
			&r.HistoryID, &r.AssetID, &r.Name, &r.Symbol,
			&r.PriceUSD, &r.MarketCapUSD, &r.PriceChangePct24h, &recordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan history record row: %w", err)
		}
		r.RecordedAt = recordedAt.UTC()
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history record rows: %w", err)
	}

	return records, nil
}

// DeleteByID removes exactly one record via lightweight delete. Returns
// whether a record with the id existed.
func (s *HistoryRecordStore) DeleteByID(ctx context.Context, historyID string) (bool, error) {
	if historyID == "" {
		return false, storage.ErrInvalidInput
	}

	exists, err := s.exists(ctx, historyID)
	if err != nil {
		return false, fmt.Errorf("check exists: %w", err)
	}
	if !exists {
		return false, nil
	}

	if err := s.conn.Exec(ctx, `DELETE FROM history_records WHERE history_id = ?`, historyID); err != nil {
		return false, fmt.Errorf("delete history record: %w", err)
	}

	return true, nil
}

// exists checks whether a record with the given history_id is present.
func (s *HistoryRecordStore) exists(ctx context.Context, historyID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx,
		`SELECT count(*) FROM history_records WHERE history_id = ?`, historyID,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
