// Package query serves paginated reads and aggregates over the history log.
package query

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"coin-market-history/internal/domain"
	"coin-market-history/internal/observability"
	"coin-market-history/internal/stats"
	"coin-market-history/internal/storage"
)

// Named time windows.
const (
	Window7d  = "7d"
	Window30d = "30d"
	Window90d = "90d"
	Window1y  = "1y"
	WindowAll = "all"
)

// maxScanLimit bounds how many records one query pulls from the store before
// in-memory search filtering and pagination.
const maxScanLimit = 10000

// DefaultPageSize is used when a request does not set a page size.
const DefaultPageSize = 50

// Params describes one history query.
type Params struct {
	// AssetID filters to one asset; "" or "all" means every asset.
	AssetID string
	// Search is a case-insensitive substring matched against the asset id,
	// name and symbol.
	Search string
	// Window is a named time window; "" means all history.
	Window string
	// SortBy is one of the storage sort fields; "" sorts by recorded time.
	SortBy string
	// Ascending flips the sort direction.
	Ascending bool
	// Page is 1-based; values below 1 mean the first page.
	Page int
	// PageSize bounds one page; values below 1 mean DefaultPageSize.
	PageSize int
}

// Page is one page of the filtered history.
type Page struct {
	Records    []*domain.HistoryRecord `json:"records"`
	Total      int                     `json:"total"`
	Page       int                     `json:"page"`
	PageSize   int                     `json:"pageSize"`
	TotalPages int                     `json:"totalPages"`
}

// Engine answers history queries against a HistoryRecordStore.
type Engine struct {
	history storage.HistoryRecordStore
	logger  *log.Logger
	metrics *observability.Metrics

	// now is swappable for tests.
	now func() time.Time
}

// EngineOptions contains configuration for creating an Engine.
type EngineOptions struct {
	History storage.HistoryRecordStore
	Logger  *log.Logger
	Metrics *observability.Metrics
}

// NewEngine creates a new Engine.
func NewEngine(opts EngineOptions) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		history: opts.History,
		logger:  logger,
		metrics: opts.Metrics,
		now:     time.Now,
	}
}

// windowSince maps a named window to its cutoff. Zero time means no cutoff.
func windowSince(now time.Time, window string) (time.Time, error) {
	switch window {
	case "", WindowAll:
		return time.Time{}, nil
	case Window7d:
		return now.AddDate(0, 0, -7), nil
	case Window30d:
		return now.AddDate(0, 0, -30), nil
	case Window90d:
		return now.AddDate(0, 0, -90), nil
	case Window1y:
		return now.AddDate(-1, 0, 0), nil
	default:
		return time.Time{}, fmt.Errorf("%w: unknown window %q", storage.ErrInvalidInput, window)
	}
}

// Search returns one page of history records matching the params.
func (e *Engine) Search(ctx context.Context, params Params) (*Page, error) {
	start := time.Now()

	since, err := windowSince(e.now().UTC(), params.Window)
	if err != nil {
		return nil, err
	}

	records, err := e.history.Query(ctx, storage.HistoryFilter{
		AssetID:   params.AssetID,
		Since:     since,
		SortBy:    params.SortBy,
		Ascending: params.Ascending,
		Limit:     maxScanLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	if params.Search != "" {
		needle := strings.ToLower(params.Search)
		filtered := records[:0]
		for _, r := range records {
			if strings.Contains(strings.ToLower(r.AssetID), needle) ||
				strings.Contains(strings.ToLower(r.Name), needle) ||
				strings.Contains(strings.ToLower(r.Symbol), needle) {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	total := len(records)
	totalPages := (total + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}

	from := (page - 1) * pageSize
	if from > total {
		from = total
	}
	to := from + pageSize
	if to > total {
		to = total
	}

	if e.metrics != nil {
		e.metrics.HistoryQueriesTotal.Inc()
		e.metrics.QueryDuration.WithLabelValues("search").Observe(time.Since(start).Seconds())
	}

	return &Page{
		Records:    records[from:to],
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}

// Stats computes aggregates for one asset within a named window.
func (e *Engine) Stats(ctx context.Context, assetID, window string) (*domain.HistoryStats, error) {
	start := time.Now()

	if assetID == "" {
		return nil, fmt.Errorf("%w: missing assetId", storage.ErrInvalidInput)
	}

	since, err := windowSince(e.now().UTC(), window)
	if err != nil {
		return nil, err
	}

	records, err := e.history.Query(ctx, storage.HistoryFilter{
		AssetID: assetID,
		Since:   since,
		Limit:   maxScanLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	if e.metrics != nil {
		e.metrics.StatsComputedTotal.Inc()
		e.metrics.QueryDuration.WithLabelValues("stats").Observe(time.Since(start).Seconds())
	}

	return stats.Compute(assetID, records), nil
}

// Delete removes one history record by id. Returns whether it existed.
func (e *Engine) Delete(ctx context.Context, historyID string) (bool, error) {
	found, err := e.history.DeleteByID(ctx, historyID)
	if err != nil {
		return false, fmt.Errorf("delete history record: %w", err)
	}
	if e.metrics != nil {
		outcome := "deleted"
		if !found {
			outcome = "not_found"
		}
		e.metrics.HistoryDeletesTotal.WithLabelValues(outcome).Inc()
	}
	return found, nil
}
