// Package cache puts a result cache in front of the search executor.
// Entries are keyed by the normalized query, the effective result limit and
// the generation of the snapshot that answered, so a rebuilt index never
// serves results computed against an older one. Concurrent misses for the
// same key are coalesced into a single search.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/metrics"
)

// Searcher is what the cache wraps; *executor.Executor implements it.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) (*executor.Response, error)
	Generation(ctx context.Context) (uint64, error)
	Limit(maxResults int) int
	Invalidate(ctx context.Context, trigger string)
}

var _ Searcher = (*QueryCache)(nil)

// Stats is a point-in-time view of cache effectiveness.
type Stats struct {
	Backend string  `json:"backend"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	Errors  int64   `json:"errors"`
	HitRate float64 `json:"hit_rate"`
	// Entries is -1 when the backend cannot count cheaply.
	Entries int64 `json:"entries"`
}

// QueryCache caches executor responses in a Store.
type QueryCache struct {
	next    Searcher
	store   Store
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// Option configures a QueryCache.
type Option func(*QueryCache)

// WithMetrics reports hits, misses and latency to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *QueryCache) { c.metrics = m }
}

// New wraps next with a cache backed by store.
func New(next Searcher, store Store, opts ...Option) *QueryCache {
	c := &QueryCache{
		next:   next,
		store:  store,
		logger: slog.Default().With("component", "query-cache", "backend", store.Name()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search answers from the cache when it can and from the wrapped Searcher
// otherwise. Only fresh, successful responses are stored; stale responses,
// conditions and errors always go straight through. Store failures are logged and
// treated as misses.
func (c *QueryCache) Search(ctx context.Context, query string, maxResults int) (*executor.Response, error) {
	start := time.Now()
	normalized := NormalizeQuery(query)
	if normalized == "" {
		return c.next.Search(ctx, query, maxResults)
	}
	limit := c.next.Limit(maxResults)
	generation, err := c.next.Generation(ctx)
	if err != nil {
		return c.next.Search(ctx, query, limit)
	}
	key := Key(normalized, limit, generation)

	if resp, ok := c.lookup(ctx, key); ok {
		c.hits.Add(1)
		resp.Query = strings.TrimSpace(query)
		resp.Cached = true
		resp.SearchTimeMs = elapsedMs(start)
		c.observe("hit", start)
		logger.FromContext(ctx).Debug("cache hit", "component", "query-cache", "key", key)
		return resp, nil
	}
	c.misses.Add(1)

	v, err, shared := c.group.Do(key, func() (any, error) {
		resp, err := c.next.Search(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		if !resp.Stale && resp.Condition == executor.ConditionNone && resp.Generation == generation {
			c.put(ctx, key, resp)
		}
		return resp, nil
	})
	c.observe("miss", start)
	if err != nil {
		return nil, err
	}
	resp := v.(*executor.Response)
	if shared {
		cp := *resp
		resp = &cp
	}
	return resp, nil
}

// Generation reports the generation of the wrapped Searcher's snapshot.
func (c *QueryCache) Generation(ctx context.Context) (uint64, error) {
	return c.next.Generation(ctx)
}

// Limit returns the result count the wrapped Searcher applies to maxResults.
func (c *QueryCache) Limit(maxResults int) int {
	return c.next.Limit(maxResults)
}

// Flush drops every cached response.
func (c *QueryCache) Flush(ctx context.Context) error {
	n, err := c.store.Flush(ctx)
	if err != nil {
		c.errors.Add(1)
		return fmt.Errorf("flushing %s cache: %w", c.store.Name(), err)
	}
	c.logger.Info("cache flushed", "entries", n)
	return nil
}

// Invalidate invalidates the wrapped Searcher and flushes the cache. A
// failed flush is logged; the generation in every key keeps old entries
// from being served once the next snapshot is built.
func (c *QueryCache) Invalidate(ctx context.Context, trigger string) {
	c.next.Invalidate(ctx, trigger)
	if err := c.Flush(ctx); err != nil {
		c.logger.Warn("cache flush after invalidation failed", "trigger", trigger, "error", err)
	}
}

// Stats returns hit and miss counts since construction.
func (c *QueryCache) Stats() Stats {
	s := Stats{
		Backend: c.store.Name(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Errors:  c.errors.Load(),
		Entries: -1,
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	if m, ok := c.store.(*MemoryStore); ok {
		s.Entries = int64(m.Len())
	}
	return s
}

func (c *QueryCache) lookup(ctx context.Context, key string) (*executor.Response, bool) {
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.errors.Add(1)
		if IsUnavailable(err) {
			c.logger.Debug("cache unavailable", "error", err)
		} else {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var resp executor.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		c.errors.Add(1)
		c.logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
		return nil, false
	}
	return &resp, true
}

func (c *QueryCache) put(ctx context.Context, key string, resp *executor.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		c.errors.Add(1)
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data); err != nil {
		c.errors.Add(1)
		if !IsUnavailable(err) {
			c.logger.Warn("cache set failed", "key", key, "error", err)
		}
	}
}

func (c *QueryCache) observe(status string, start time.Time) {
	if c.metrics == nil {
		return
	}
	if status == "hit" {
		c.metrics.CacheHitsTotal.Inc()
	} else {
		c.metrics.CacheMissesTotal.Inc()
	}
	c.metrics.SearchLatency.WithLabelValues(status).Observe(time.Since(start).Seconds())
}

// NormalizeQuery lowercases query and collapses whitespace, the same
// normalization the executor applies before matching.
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}

// Key is the cache key for a normalized query at a limit and generation.
func Key(normalized string, limit int, generation uint64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%d\x00%d", normalized, limit, generation)))
	return fmt.Sprintf("g%d:%s", generation, hex.EncodeToString(sum[:16]))
}

func elapsedMs(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
