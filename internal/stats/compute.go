// Package stats computes per-asset aggregates over history records.
package stats

import (
	"math"
	"sort"

	"coin-market-history/internal/domain"
)

// Compute calculates aggregates for one asset's history records. Records are
// sorted chronologically before computing order-dependent metrics (volatility
// uses consecutive price deltas). An empty input yields a zero-count result.
func Compute(assetID string, records []*domain.HistoryRecord) *domain.HistoryStats {
	n := len(records)
	if n == 0 {
		return &domain.HistoryStats{AssetID: assetID}
	}

	// Sort chronologically, RecordedAt ASC then HistoryID ASC
	sorted := make([]*domain.HistoryRecord, n)
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].RecordedAt.Equal(sorted[j].RecordedAt) {
			return sorted[i].RecordedAt.Before(sorted[j].RecordedAt)
		}
		return sorted[i].HistoryID < sorted[j].HistoryID
	})

	prices := make([]float64, n)
	for i, r := range sorted {
		prices[i] = r.PriceUSD
	}

	minPrice := prices[0]
	maxPrice := prices[0]
	for _, p := range prices {
		if p < minPrice {
			minPrice = p
		}
		if p > maxPrice {
			maxPrice = p
		}
	}

	sumChange := 0.0
	sumMarketCap := 0.0
	for _, r := range sorted {
		sumChange += r.PriceChangePct24h
		sumMarketCap += r.MarketCapUSD
	}

	first := sorted[0].RecordedAt
	last := sorted[n-1].RecordedAt

	return &domain.HistoryStats{
		AssetID:         assetID,
		Count:           n,
		MinPrice:        minPrice,
		MaxPrice:        maxPrice,
		AvgPrice:        computeMean(prices),
		PriceRange:      maxPrice - minPrice,
		AvgChangePct:    sumChange / float64(n),
		AvgMarketCap:    sumMarketCap / float64(n),
		Volatility:      computeVolatility(prices),
		FirstRecordedAt: &first,
		LastRecordedAt:  &last,
	}
}

// computeMean calculates arithmetic mean.
func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeVolatility calculates the sample standard deviation of consecutive
// percentage price deltas. Prices must be in chronological order. Deltas from
// a zero price are skipped; fewer than 2 deltas yields 0.
func computeVolatility(prices []float64) float64 {
	var deltas []float64
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			continue
		}
		deltas = append(deltas, (prices[i]-prices[i-1])/prices[i-1]*100)
	}
	return computeStddev(deltas, computeMean(deltas))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0 // Need at least 2 samples for sample stddev
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}
