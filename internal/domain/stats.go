package domain

import "time"

// HistoryStats is the aggregate summary of one asset's history over a queried
// window. Computed by the stats package; never persisted.
type HistoryStats struct {
	AssetID string `json:"assetId"`
	Count   int    `json:"count"` // records in the window

	MinPrice   float64 `json:"minPrice"`
	MaxPrice   float64 `json:"maxPrice"`
	AvgPrice   float64 `json:"avgPrice"`
	PriceRange float64 `json:"priceRange"` // maxPrice - minPrice

	AvgChangePct float64 `json:"avgChangePct"`
	AvgMarketCap float64 `json:"avgMarketCap"`

	// Volatility is the sample standard deviation of period-over-period
	// percentage price changes between chronologically consecutive records.
	// Zero when the window yields fewer than two deltas.
	Volatility float64 `json:"volatility"`

	FirstRecordedAt *time.Time `json:"firstRecordedAt,omitempty"` // chronologically earliest record
	LastRecordedAt  *time.Time `json:"lastRecordedAt,omitempty"`  // chronologically latest record
}
