// Package handler exposes the search service over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/docrank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/resilience"
)

// Routes lists the API paths, for metrics labelling.
var Routes = []string{
	"/api/v1/search",
	"/api/v1/explain",
	"/api/v1/index",
	"/api/v1/index/invalidate",
	"/api/v1/cache/stats",
}

// Index is the read side of the executor the handler needs beyond search.
type Index interface {
	Describe() executor.Description
	Explain(ctx context.Context, query, docID string) ([]ranker.Contribution, bool, error)
}

// Tracker receives one event per answered search; *analytics.Collector
// implements it.
type Tracker interface {
	Track(event analytics.SearchEvent)
}

type Handler struct {
	searcher cache.Searcher
	index    Index
	cache    *cache.QueryCache
	tracker  Tracker
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates a Handler. queryCache and tracker may be nil.
func New(searcher cache.Searcher, index Index, queryCache *cache.QueryCache, tracker Tracker, timeout time.Duration) *Handler {
	return &Handler{
		searcher: searcher,
		index:    index,
		cache:    queryCache,
		tracker:  tracker,
		timeout:  timeout,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/explain", h.Explain)
	mux.HandleFunc("GET /api/v1/index", h.Describe)
	mux.HandleFunc("POST /api/v1/index/invalidate", h.Invalidate)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
}

// Search handles GET /api/v1/search?q=&limit=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	var resp *executor.Response
	err = resilience.WithTimeout(ctx, h.timeout, "search", func(ctx context.Context) error {
		out, err := h.searcher.Search(ctx, query, limit)
		if err != nil {
			return err
		}
		resp = out
		return nil
	})
	if err != nil {
		if apperrors.HTTPStatusCode(err) >= http.StatusInternalServerError {
			log.Error("search failed", "query", query, "error", err)
		} else {
			log.Debug("search rejected", "query", query, "error", err)
		}
		h.writeError(w, err)
		return
	}

	log.Info("search completed",
		"query", query,
		"returned", len(resp.Results),
		"condition", resp.Condition,
		"cached", resp.Cached,
		"stale", resp.Stale,
		"latency_ms", resp.SearchTimeMs,
	)
	if h.tracker != nil {
		h.tracker.Track(analytics.NewSearchEvent(resp, middleware.GetRequestID(ctx), time.Now()))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type explainResponse struct {
	Query         string                `json:"query"`
	DocumentID    string                `json:"doc_id"`
	Contributions []ranker.Contribution `json:"contributions"`
	RawScore      float64               `json:"raw_score"`
}

// Explain handles GET /api/v1/explain?q=&doc=.
func (h *Handler) Explain(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	docID := r.URL.Query().Get("doc")
	if docID == "" {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "doc is required"))
		return
	}
	contributions, ok, err := h.index.Explain(r.Context(), query, docID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !ok {
		h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "document not found: " + docID})
		return
	}
	resp := explainResponse{Query: query, DocumentID: docID, Contributions: contributions}
	for _, c := range contributions {
		resp.RawScore += c.Value
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Describe handles GET /api/v1/index.
func (h *Handler) Describe(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.index.Describe())
}

// Invalidate handles POST /api/v1/index/invalidate.
func (h *Handler) Invalidate(w http.ResponseWriter, r *http.Request) {
	h.searcher.Invalidate(r.Context(), "http")
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "invalidated"})
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer")
	}
	return n, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable && status != http.StatusGatewayTimeout {
		message = "internal error"
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
