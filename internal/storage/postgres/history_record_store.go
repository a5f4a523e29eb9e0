package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"coin-market-history/internal/domain"
	"coin-market-history/internal/storage"
)

// HistoryRecordStore implements storage.HistoryRecordStore using PostgreSQL.
type HistoryRecordStore struct {
	pool *Pool
}

// NewHistoryRecordStore creates a new HistoryRecordStore.
func NewHistoryRecordStore(pool *Pool) *HistoryRecordStore {
	return &HistoryRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.HistoryRecordStore = (*HistoryRecordStore)(nil)

// InsertAll appends records atomically. Fails the entire batch on any
// duplicate history_id; the primary key surfaces collisions as ErrDuplicateKey.
func (s *HistoryRecordStore) InsertAll(ctx context.Context, records []*domain.HistoryRecord) error {
	if len(records) == 0 {
		return nil
	}

	for _, r := range records {
		if r == nil || r.HistoryID == "" || r.AssetID == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO history_records (
			history_id, asset_id, name, symbol,
			price_usd, market_cap_usd, price_change_pct_24h, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, r := range records {
		_, err := tx.Exec(ctx, query,
			r.HistoryID, r.AssetID, r.Name, r.Symbol,
			r.PriceUSD, r.MarketCapUSD, r.PriceChangePct24h, r.RecordedAt,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert history record: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// sortColumns maps filter sort fields to columns. Anything else falls back to
// recorded_at.
var sortColumns = map[string]string{
	storage.SortRecordedAt: "recorded_at",
	storage.SortPrice:      "price_usd",
	storage.SortChangePct:  "price_change_pct_24h",
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
		args = append(args, filter.AssetID)
		where = fmt.Sprintf(" WHERE asset_id = $%d", len(args))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		if where == "" {
			where = fmt.Sprintf(" WHERE recorded_at >= $%d", len(args))
		} else {
			where += fmt.Sprintf(" AND recorded_at >= $%d", len(args))
		}
	}

	column, ok := sortColumns[filter.SortBy]
	if !ok || filter.SortBy == "" {
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
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query+where+orderBy+fmt.Sprintf(" LIMIT $%d", len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("query history records: %w", err)
	}
	defer rows.Close()

	return scanHistoryRecords(rows)
}

// DeleteByID removes exactly one record. Returns whether it was found.
func (s *HistoryRecordStore) DeleteByID(ctx context.Context, historyID string) (bool, error) {
	if historyID == "" {
		return false, storage.ErrInvalidInput
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM history_records WHERE history_id = $1`, historyID)
	if err != nil {
		return false, fmt.Errorf("delete history record: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// scanHistoryRecords scans multiple rows into a slice of HistoryRecord.
func scanHistoryRecords(rows pgx.Rows) ([]*domain.HistoryRecord, error) {
	var records []*domain.HistoryRecord

	for rows.Next() {
		var r domain.HistoryRecord
		err := rows.Scan(
			&r.HistoryID, &r.AssetID, &r.Name, &r.Symbol,
			&r.PriceUSD, &r.MarketCapUSD, &r.PriceChangePct24h, &r.RecordedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan history record row: %w", err)
		}
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history record rows: %w", err)
	}

	return records, nil
}
