package postgres

import (
	"context"
	"fmt"
	"time"

	"coin-market-history/internal/domain"
	"coin-market-history/internal/storage"
)

// CurrentRecordStore implements storage.CurrentRecordStore using PostgreSQL.
type CurrentRecordStore struct {
	pool *Pool
}

// NewCurrentRecordStore creates a new CurrentRecordStore.
func NewCurrentRecordStore(pool *Pool) *CurrentRecordStore {
	return &CurrentRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.CurrentRecordStore = (*CurrentRecordStore)(nil)

// UpsertAll inserts or fully replaces one record per asset_id.
//
// Each key is applied as its own statement rather than inside one transaction:
// a failure on one key must not prevent the others from applying. Postgres
// row-level locking serializes concurrent writers on the same key, so a
// record is always entirely from one write.
func (s *CurrentRecordStore) UpsertAll(ctx context.Context, quotes []domain.Quote) (storage.UpsertResult, error) {
	res := storage.UpsertResult{FailedKeys: make(map[string]error)}
	if len(quotes) == 0 {
		return res, nil
	}

	for _, q := range quotes {
		if q.AssetID == "" {
			return storage.UpsertResult{}, storage.ErrInvalidInput
		}
	}

	query := `
		INSERT INTO current_records (
			asset_id, name, symbol, price_usd, market_cap_usd,
			price_change_pct_24h, image, observed_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (asset_id) DO UPDATE SET
			name = EXCLUDED.name,
			symbol = EXCLUDED.symbol,
			price_usd = EXCLUDED.price_usd,
			market_cap_usd = EXCLUDED.market_cap_usd,
			price_change_pct_24h = EXCLUDED.price_change_pct_24h,
			image = EXCLUDED.image,
			observed_at = EXCLUDED.observed_at,
			updated_at = EXCLUDED.updated_at
	`

	now := time.Now().UTC()
	for _, q := range quotes {
		_, err := s.pool.Exec(ctx, query,
			q.AssetID, q.Name, q.Symbol, q.PriceUSD, q.MarketCapUSD,
			q.PriceChangePct24h, q.Image, q.ObservedAt, now,
		)
		if err != nil {
			res.FailedKeys[q.AssetID] = fmt.Errorf("upsert current record: %w", err)
			continue
		}
		res.Applied++
	}

	return res, nil
}

// GetAll returns a snapshot read of every current record.
func (s *CurrentRecordStore) GetAll(ctx context.Context) ([]*domain.CurrentRecord, error) {
	query := `
		SELECT asset_id, name, symbol, price_usd, market_cap_usd,
			price_change_pct_24h, image, observed_at, updated_at
		FROM current_records
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all current records: %w", err)
	}
	defer rows.Close()

	var records []*domain.CurrentRecord
	for rows.Next() {
		var r domain.CurrentRecord
		err := rows.Scan(
			&r.AssetID, &r.Name, &r.Symbol, &r.PriceUSD, &r.MarketCapUSD,
			&r.PriceChangePct24h, &r.Image, &r.ObservedAt, &r.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan current record row: %w", err)
		}
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate current record rows: %w", err)
	}

	return records, nil
}

// GetSummaries returns the narrow {asset_id, name, symbol} projection.
func (s *CurrentRecordStore) GetSummaries(ctx context.Context) ([]domain.AssetSummary, error) {
	query := `
		SELECT asset_id, name, symbol
		FROM current_records
		ORDER BY asset_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get current record summaries: %w", err)
	}
	defer rows.Close()

	var summaries []domain.AssetSummary
	for rows.Next() {
		var s domain.AssetSummary
		if err := rows.Scan(&s.AssetID, &s.Name, &s.Symbol); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary rows: %w", err)
	}

	return summaries, nil
}
