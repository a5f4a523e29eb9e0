package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Quote is the canonical shape of one asset's market data at one point in
// time, normalized from the upstream markets API. It is the shared input to
// the current-state upsert and explicit snapshot paths; it is never persisted
// directly.
type Quote struct {
	AssetID           string     `json:"assetId"`           // stable upstream identifier (slug), natural key
	Name              string     `json:"name"`              // display name
	Symbol            string     `json:"symbol"`            // ticker symbol
	PriceUSD          float64    `json:"priceUsd"`          // current price in USD
	MarketCapUSD      float64    `json:"marketCapUsd"`      // market capitalization in USD
	PriceChangePct24h float64    `json:"priceChangePct24h"` // signed 24h change, percent
	Image             string     `json:"image,omitempty"`   // optional logo URL
	ObservedAt        *time.Time `json:"observedAt,omitempty"` // source-reported timestamp, untrusted
}

// Validate checks the required fields of a quote. Numeric requirements follow
// the upstream contract: prices and market caps are non-negative, the 24h
// change is signed.
func (q *Quote) Validate() error {
	if q == nil {
		return errors.New("nil quote")
	}
	if q.AssetID == "" {
		return errors.New("missing assetId")
	}
	if q.Name == "" {
		return fmt.Errorf("asset %s: missing name", q.AssetID)
	}
	if q.Symbol == "" {
		return fmt.Errorf("asset %s: missing symbol", q.AssetID)
	}
	if math.IsNaN(q.PriceUSD) || math.IsInf(q.PriceUSD, 0) {
		return fmt.Errorf("asset %s: priceUsd is not a finite number", q.AssetID)
	}
	if q.PriceUSD < 0 {
		return fmt.Errorf("asset %s: negative priceUsd %f", q.AssetID, q.PriceUSD)
	}
	if math.IsNaN(q.MarketCapUSD) || math.IsInf(q.MarketCapUSD, 0) {
		return fmt.Errorf("asset %s: marketCapUsd is not a finite number", q.AssetID)
	}
	if q.MarketCapUSD < 0 {
		return fmt.Errorf("asset %s: negative marketCapUsd %f", q.AssetID, q.MarketCapUSD)
	}
	return nil
}
