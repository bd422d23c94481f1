package analytics

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/kafka"
)

// maxLatencySamples bounds the latency window used for percentiles.
const maxLatencySamples = 10000

// AggregatedStats summarises every SearchEvent seen so far.
type AggregatedStats struct {
	TotalSearches      int64        `json:"total_searches"`
	CacheHits          int64        `json:"cache_hits"`
	ZeroResults        int64        `json:"zero_results"`
	Unsearchable       int64        `json:"unsearchable"`
	Confident          int64        `json:"confident"`
	StaleServed        int64        `json:"stale_served"`
	AvgLatencyMs       float64      `json:"avg_latency_ms"`
	P50LatencyMs       float64      `json:"p50_latency_ms"`
	P95LatencyMs       float64      `json:"p95_latency_ms"`
	P99LatencyMs       float64      `json:"p99_latency_ms"`
	TopQueries         []QueryCount `json:"top_queries"`
	ZeroResultQueries  []QueryCount `json:"zero_result_queries"`
	TopDocuments       []QueryCount `json:"top_documents"`
	QueriesPerMinute   float64      `json:"queries_per_minute"`
	LastEventTimestamp *time.Time   `json:"last_event_timestamp,omitempty"`
}

// QueryCount pairs a key (a query or a document id) with a count.
type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds SearchEvents into running statistics.
type Aggregator struct {
	mu           sync.RWMutex
	stats        AggregatedStats
	latencies    []float64
	latencySum   float64
	latencyCount int64
	queries      map[string]int64
	zeroQueries  map[string]int64
	documents    map[string]int64
	start        time.Time
	now          func() time.Time
	logger       *slog.Logger
}

// NewAggregator creates an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:   make([]float64, 0, 1024),
		queries:     make(map[string]int64),
		zeroQueries: make(map[string]int64),
		documents:   make(map[string]int64),
		start:       time.Now(),
		now:         time.Now,
		logger:      slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleEvent returns a Kafka handler feeding agg. Undecodable messages are
// logged and skipped.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[SearchEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode analytics event", "key", string(key), "error", err)
			return nil
		}
		agg.Record(event)
		return nil
	}
}

// Record adds one event.
func (a *Aggregator) Record(event SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.TotalSearches++
	if event.CacheHit {
		a.stats.CacheHits++
	}
	if event.Confident {
		a.stats.Confident++
	}
	if event.Stale {
		a.stats.StaleServed++
	}
	switch event.Type {
	case EventZeroResult:
		a.stats.ZeroResults++
		a.zeroQueries[event.Query]++
	case EventUnsearchable:
		a.stats.Unsearchable++
		a.zeroQueries[event.Query]++
	}
	if event.TopDocument != "" {
		a.documents[event.TopDocument]++
	}
	a.queries[event.Query]++

	a.latencySum += event.LatencyMs
	a.latencyCount++
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.latencyCount%maxLatencySamples] = event.LatencyMs
	}
	if !event.Timestamp.IsZero() {
		ts := event.Timestamp
		if a.stats.LastEventTimestamp == nil || ts.After(*a.stats.LastEventTimestamp) {
			a.stats.LastEventTimestamp = &ts
		}
	}
}

// Restore seeds the counters and ranked lists from a saved snapshot.
// Latency samples are not persisted and start empty.
func (a *Aggregator) Restore(saved AggregatedStats) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.TotalSearches += saved.TotalSearches
	a.stats.CacheHits += saved.CacheHits
	a.stats.ZeroResults += saved.ZeroResults
	a.stats.Unsearchable += saved.Unsearchable
	a.stats.Confident += saved.Confident
	a.stats.StaleServed += saved.StaleServed
	for _, q := range saved.TopQueries {
		a.queries[q.Query] += q.Count
	}
	for _, q := range saved.ZeroResultQueries {
		a.zeroQueries[q.Query] += q.Count
	}
	for _, d := range saved.TopDocuments {
		a.documents[d.Query] += d.Count
	}
	if saved.LastEventTimestamp != nil && a.stats.LastEventTimestamp == nil {
		ts := *saved.LastEventTimestamp
		a.stats.LastEventTimestamp = &ts
	}
}

// Stats returns a snapshot of the statistics. Ranked lists hold at most
// ten entries.
func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := a.stats
	if a.latencyCount > 0 {
		stats.AvgLatencyMs = a.latencySum / float64(a.latencyCount)
		sorted := append([]float64(nil), a.latencies...)
		sort.Float64s(sorted)
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queries, 10)
	stats.ZeroResultQueries = topN(a.zeroQueries, 10)
	stats.TopDocuments = topN(a.documents, 10)
	if minutes := a.now().Sub(a.start).Minutes(); minutes > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / minutes
	}
	return stats
}

func percentile(sorted []float64, pct int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := pct * len(sorted) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then key, so equal counts list deterministically.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for key, count := range counts {
		result = append(result, QueryCount{Query: key, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
