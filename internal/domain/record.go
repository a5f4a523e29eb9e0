package domain

import "time"

// CurrentRecord is the latest known state for one asset. Exactly one exists
// per asset_id; every upsert replaces the whole record.
// Corresponds to current_records table in PostgreSQL.
type CurrentRecord struct {
	AssetID           string     `json:"assetId"`
	Name              string     `json:"name"`
	Symbol            string     `json:"symbol"`
	PriceUSD          float64    `json:"priceUsd"`
	MarketCapUSD      float64    `json:"marketCapUsd"`
	PriceChangePct24h float64    `json:"priceChangePct24h"`
	Image             string     `json:"image,omitempty"`
	ObservedAt        *time.Time `json:"observedAt,omitempty"` // source-reported, may be absent
	UpdatedAt         time.Time  `json:"updatedAt"`            // system-set on every successful upsert
}

// Quote returns the normalized view of a current record, used when the full
// current-state table is snapshotted into history.
func (r *CurrentRecord) Quote() Quote {
	return Quote{
		AssetID:           r.AssetID,
		Name:              r.Name,
		Symbol:            r.Symbol,
		PriceUSD:          r.PriceUSD,
		MarketCapUSD:      r.MarketCapUSD,
		PriceChangePct24h: r.PriceChangePct24h,
		Image:             r.Image,
		ObservedAt:        r.ObservedAt,
	}
}

// AssetSummary is the narrow projection of a current record used for cheap
// enumeration (filter choices, dropdowns). Numeric fields are deliberately
// omitted.
type AssetSummary struct {
	AssetID string `json:"assetId"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// HistoryRecord is one immutable, independently identified observation of an
// asset's state at a point in time. AssetID is a soft reference into the
// current-state key space; history outlives current-state changes.
// Corresponds to history_records in PostgreSQL or ClickHouse.
type HistoryRecord struct {
	HistoryID         string    `json:"historyId"` // globally unique, assigned at creation
	AssetID           string    `json:"assetId"`
	Name              string    `json:"name"`
	Symbol            string    `json:"symbol"`
	PriceUSD          float64   `json:"priceUsd"`
	MarketCapUSD      float64   `json:"marketCapUsd"`
	PriceChangePct24h float64   `json:"priceChangePct24h"`
	RecordedAt        time.Time `json:"recordedAt"` // system-set at snapshot time, keys all range and sort operations
}
