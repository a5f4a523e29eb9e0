package marketdata

import (
	"math"
	"time"

	"coin-market-history/internal/domain"
)

// marketTicker is the raw markets API item. Required fields are pointers so a
// missing field is distinguishable from a zero value.
type marketTicker struct {
	ID                *string  `json:"id"`
	Name              *string  `json:"name"`
	Symbol            *string  `json:"symbol"`
	CurrentPrice      *float64 `json:"current_price"`
	MarketCap         *float64 `json:"market_cap"`
	PriceChangePct24h *float64 `json:"price_change_percentage_24h"`
	Image             string   `json:"image"`
	LastUpdated       string   `json:"last_updated"`
}

// quote converts the wire item to the canonical shape. Missing required
// fields map to values Quote.Validate rejects, so malformed items flow
// through the normal validation path instead of being dropped silently here.
func (t marketTicker) quote() domain.Quote {
	q := domain.Quote{
		Image:    t.Image,
		PriceUSD: math.NaN(),
	}

	if t.ID != nil {
		q.AssetID = *t.ID
	}
	if t.Name != nil {
		q.Name = *t.Name
	}
	if t.Symbol != nil {
		q.Symbol = *t.Symbol
	}
	if t.CurrentPrice != nil {
		q.PriceUSD = *t.CurrentPrice
	}
	// market_cap and the 24h change are nullable upstream; null means zero.
	if t.MarketCap != nil {
		q.MarketCapUSD = *t.MarketCap
	}
	if t.PriceChangePct24h != nil {
		q.PriceChangePct24h = *t.PriceChangePct24h
	}

	if t.LastUpdated != "" {
		if ts, err := time.Parse(time.RFC3339, t.LastUpdated); err == nil {
			utc := ts.UTC()
			q.ObservedAt = &utc
		}
	}

	return q
}
