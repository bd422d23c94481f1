// Package indexer owns the lifecycle of the search index: it loads the
// corpus, builds immutable snapshots and swaps them in atomically when the
// current one expires or is invalidated.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docrank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/metrics"
)

// State is the lifecycle phase of the engine's snapshot.
type State string

const (
	StateEmpty    State = "empty"
	StateBuilding State = "building"
	StateReady    State = "ready"
	StateStale    State = "stale"
)

// Engine hands out the current index snapshot, rebuilding it from the
// corpus source on demand. Readers load the snapshot pointer once and keep
// using it for the whole request; rebuilds are serialised by buildMu and
// install the new snapshot with a single atomic store.
type Engine struct {
	source  corpus.Source
	cfg     config.IndexConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
	static  bool

	current    atomic.Pointer[index.Snapshot]
	buildMu    sync.Mutex
	building   atomic.Bool
	dirty      atomic.Bool
	generation uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics reports rebuilds and snapshot sizes to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock replaces time.Now, for expiry tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine over src. No snapshot is built until the
// first call to Snapshot or Rebuild.
func NewEngine(src corpus.Source, cfg config.IndexConfig, opts ...Option) *Engine {
	e := &Engine{
		source: src,
		cfg:    cfg,
		logger: slog.Default().With("component", "index-engine", "source", src.Name()),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewStaticEngine serves snap forever and never touches a corpus source.
// A nil snap serves an empty index.
func NewStaticEngine(snap *index.Snapshot) *Engine {
	if snap == nil {
		snap = index.Build(nil, index.Options{})
	}
	e := &Engine{
		logger:     slog.Default().With("component", "index-engine", "source", "static"),
		now:        time.Now,
		static:     true,
		generation: snap.Generation,
	}
	e.current.Store(snap)
	return e
}

// Snapshot returns the current snapshot, rebuilding first when there is
// none, it has outlived the TTL, or it was invalidated. When a rebuild fails
// and an older snapshot exists, that snapshot is returned together with an
// error wrapping ErrRebuildFailed so the caller can serve stale results.
func (e *Engine) Snapshot(ctx context.Context) (*index.Snapshot, error) {
	snap := e.current.Load()
	if !e.needsRebuild(snap) {
		return snap, nil
	}

	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	snap = e.current.Load()
	if !e.needsRebuild(snap) {
		return snap, nil
	}
	return e.rebuildLocked(ctx, snap)
}

// Rebuild forces a new snapshot regardless of age.
func (e *Engine) Rebuild(ctx context.Context) (*index.Snapshot, error) {
	if e.static {
		return e.current.Load(), nil
	}
	e.buildMu.Lock()
	defer e.buildMu.Unlock()
	return e.rebuildLocked(ctx, e.current.Load())
}

// Invalidate marks the current snapshot stale. It stays in service until
// the next Snapshot call replaces it.
func (e *Engine) Invalidate() {
	if e.static {
		return
	}
	e.dirty.Store(true)
	e.logger.Debug("snapshot invalidated")
}

// Current returns the installed snapshot without rebuilding. It is nil
// before the first successful build.
func (e *Engine) Current() *index.Snapshot {
	return e.current.Load()
}

// State reports the lifecycle phase.
func (e *Engine) State() State {
	if e.building.Load() {
		return StateBuilding
	}
	snap := e.current.Load()
	if snap == nil {
		return StateEmpty
	}
	if e.needsRebuild(snap) {
		return StateStale
	}
	return StateReady
}

func (e *Engine) needsRebuild(snap *index.Snapshot) bool {
	if e.static {
		return false
	}
	if snap == nil || e.dirty.Load() {
		return true
	}
	return e.cfg.TTL > 0 && snap.Age(e.now()) > e.cfg.TTL
}

// rebuildLocked must be called with buildMu held.
func (e *Engine) rebuildLocked(ctx context.Context, prev *index.Snapshot) (*index.Snapshot, error) {
	e.building.Store(true)
	defer e.building.Store(false)

	// Cleared up front so an Invalidate racing the build marks the new
	// snapshot stale as well.
	e.dirty.Store(false)
	start := time.Now()

	docs, err := corpus.Load(ctx, e.source)
	if err != nil {
		e.dirty.Store(true)
		e.observeRebuild("failure", start)
		if prev != nil {
			e.logger.Error("rebuild failed, serving previous snapshot",
				"error", err,
				"generation", prev.Generation,
			)
			return prev, fmt.Errorf("%w: %w", apperrors.ErrRebuildFailed, err)
		}
		e.logger.Error("rebuild failed with no snapshot to fall back on", "error", err)
		return nil, fmt.Errorf("%w: %w", apperrors.ErrRebuildFailed, err)
	}

	e.generation++
	snap := index.Build(docs, index.Options{
		MaxTokens:           e.cfg.MaxTokens,
		EmbeddingDimensions: e.cfg.EmbeddingDimensions,
		Generation:          e.generation,
		BuiltAt:             e.now(),
	})
	e.current.Store(snap)
	e.observeRebuild("success", start)
	if e.metrics != nil {
		e.metrics.IndexDocuments.Set(float64(snap.TotalDocuments))
		e.metrics.IndexVocabularySize.Set(float64(len(snap.Vocabulary)))
		e.metrics.IndexGeneration.Set(float64(snap.Generation))
	}

	e.logger.Info("index snapshot built",
		"generation", snap.Generation,
		"documents", snap.TotalDocuments,
		"terms", len(snap.Vocabulary),
		"avg_doc_length", snap.AverageDocumentLength,
		"size_bytes", snap.SizeBytes,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return snap, nil
}

func (e *Engine) observeRebuild(status string, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.IndexRebuildsTotal.WithLabelValues(status).Inc()
	e.metrics.IndexRebuildDuration.Observe(time.Since(start).Seconds())
}
