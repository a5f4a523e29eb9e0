package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"coin-market-history/internal/domain"
	"coin-market-history/internal/ingestion"
	"coin-market-history/internal/query"
	"coin-market-history/internal/storage"
)

// mapError translates domain errors to HTTP status codes.
func mapError(err error) int {
	switch {
	case errors.Is(err, ingestion.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, storage.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrDuplicateKey):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// StatusResponse is the JSON payload for the status endpoint.
type StatusResponse struct {
	Status     string    `json:"status"`
	Backend    string    `json:"backend"`
	Uptime     string    `json:"uptime"`
	StartedAt  time.Time `json:"startedAt"`
	IngestRuns int       `json:"ingestRuns"`
	LastIngest time.Time `json:"lastIngest,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := StatusResponse{
		Status:     "running",
		Backend:    s.backendName,
		Uptime:     time.Since(s.startedAt).String(),
		StartedAt:  s.startedAt.UTC(),
		IngestRuns: s.ingestRuns,
		LastIngest: s.lastIngest,
	}
	s.mu.Unlock()

	writeData(w, resp, 1)
}

// handleIngest runs one ingest cycle and returns the accepted quotes.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	accepted, res, err := s.ingestor.Ingest(ctx)
	if err != nil {
		s.logger.Printf("Ingest failed: %v", err)
		writeError(w, mapError(err), "upstream_unavailable", "could not fetch market data")
		return
	}

	s.mu.Lock()
	s.ingestRuns++
	s.lastIngest = time.Now().UTC()
	s.mu.Unlock()

	s.logger.Printf("Ingest batch %s via API: accepted=%d rejected=%d failed=%d",
		res.BatchID, res.Accepted, res.Rejected, len(res.FailedKeys))
	writeData(w, accepted, len(accepted))
}

func (s *Server) handleCurrentSummaries(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	summaries, err := s.summaries.GetSummaries(ctx)
	if err != nil {
		s.logger.Printf("Load summaries failed: %v", err)
		writeError(w, mapError(err), "storage_error", "could not load current records")
		return
	}

	writeData(w, summaries, len(summaries))
}

// snapshotRequest is the optional body for the snapshot endpoint.
type snapshotRequest struct {
	Coins []domain.Quote `json:"coins"`
}

// handleSnapshot records a snapshot. Without a body, or with an empty coins
// list, the whole current-state table is snapshotted.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	var req snapshotRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "body must be JSON with an optional coins array")
			return
		}
	}

	written, err := s.recorder.Record(ctx, req.Coins)
	if err != nil {
		s.logger.Printf("Snapshot failed: %v", err)
		writeError(w, mapError(err), "snapshot_failed", err.Error())
		return
	}

	writeMessage(w, written, "snapshot recorded")
}

// historyParams extracts the shared history query parameters.
func historyParams(r *http.Request) (query.Params, error) {
	q := r.URL.Query()

	params := query.Params{
		AssetID: q.Get("coinId"),
		Search:  q.Get("search"),
		Window:  q.Get("range"),
		SortBy:  q.Get("sort"),
	}

	switch q.Get("order") {
	case "", "desc":
	case "asc":
		params.Ascending = true
	default:
		return params, errors.New("order must be asc or desc")
	}

	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, errors.New("page must be a positive integer")
		}
		params.Page = page
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return params, errors.New("limit must be a positive integer")
		}
		params.PageSize = limit
	}

	return params, nil
}

func (s *Server) serveHistory(w http.ResponseWriter, r *http.Request, assetID string) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	params, err := historyParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_params", err.Error())
		return
	}
	if assetID != "" {
		params.AssetID = assetID
	}

	page, err := s.engine.Search(ctx, params)
	if err != nil {
		s.logger.Printf("History query failed: %v", err)
		writeError(w, mapError(err), "query_failed", err.Error())
		return
	}

	writeData(w, page, page.Total)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.serveHistory(w, r, "")
}

func (s *Server) handleAssetHistory(w http.ResponseWriter, r *http.Request) {
	s.serveHistory(w, r, r.PathValue("assetId"))
}

func (s *Server) handleAssetStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	stats, err := s.engine.Stats(ctx, r.PathValue("assetId"), r.URL.Query().Get("range"))
	if err != nil {
		s.logger.Printf("Stats failed: %v", err)
		writeError(w, mapError(err), "stats_failed", err.Error())
		return
	}

	writeData(w, stats, stats.Count)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	historyID := r.PathValue("historyId")
	found, err := s.engine.Delete(ctx, historyID)
	if err != nil {
		s.logger.Printf("Delete failed: %v", err)
		writeError(w, mapError(err), "delete_failed", err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "not_found", "no history record with id "+historyID)
		return
	}

	writeMessage(w, 1, "history record deleted")
}
