// Package analytics records what users search for. Searchers emit one
// SearchEvent per query through a Collector onto Kafka; the analytics
// service consumes them into an Aggregator and serves the summary.
package analytics

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/executor"
)

type EventType string

const (
	EventSearch       EventType = "search"
	EventZeroResult   EventType = "zero_result"
	EventUnsearchable EventType = "unsearchable"
	EventInvalidation EventType = "invalidation"
)

// SearchEvent describes one answered search.
type SearchEvent struct {
	Type        EventType `json:"type"`
	Query       string    `json:"query"`
	Results     int       `json:"results"`
	TopDocument string    `json:"top_document,omitempty"`
	TopScore    float64   `json:"top_score"`
	Confident   bool      `json:"confident"`
	Condition   string    `json:"condition,omitempty"`
	CacheHit    bool      `json:"cache_hit"`
	Stale       bool      `json:"stale,omitempty"`
	Generation  uint64    `json:"generation"`
	LatencyMs   float64   `json:"latency_ms"`
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
}

// NewSearchEvent summarises resp.
func NewSearchEvent(resp *executor.Response, requestID string, at time.Time) SearchEvent {
	e := SearchEvent{
		Type:       EventSearch,
		Query:      resp.Query,
		Results:    len(resp.Results),
		Confident:  resp.Confident,
		Condition:  string(resp.Condition),
		CacheHit:   resp.Cached,
		Stale:      resp.Stale,
		Generation: resp.Generation,
		LatencyMs:  float64(resp.SearchTimeMs),
		Timestamp:  at.UTC(),
		RequestID:  requestID,
	}
	switch {
	case resp.Condition != executor.ConditionNone:
		e.Type = EventUnsearchable
	case len(resp.Results) == 0:
		e.Type = EventZeroResult
	default:
		e.TopDocument = resp.Results[0].DocumentID
		e.TopScore = resp.Results[0].Score
	}
	return e
}
