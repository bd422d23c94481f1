// Package executor runs a search end to end: it validates the query, takes
// the current index snapshot, processes the query against it and ranks the
// candidates.
package executor

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docrank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/tracing"
)

// Condition flags a search that ran but could not produce results.
type Condition string

const (
	ConditionNone              Condition = ""
	ConditionEmptyCorpus       Condition = "empty_corpus"
	ConditionNoSearchableTerms Condition = "no_searchable_terms"
)

// Err returns the sentinel error matching c, or nil.
func (c Condition) Err() error {
	switch c {
	case ConditionEmptyCorpus:
		return apperrors.ErrEmptyCorpus
	case ConditionNoSearchableTerms:
		return apperrors.ErrNoSearchableTerms
	}
	return nil
}

// Response is the outcome of one search.
type Response struct {
	Query          string                `json:"query"`
	Results        []ranker.SearchResult `json:"results"`
	TotalDocuments int                   `json:"total_documents"`
	SearchTimeMs   int64                 `json:"search_time_ms"`
	Condition      Condition             `json:"condition,omitempty"`
	// Stale is set when the snapshot could not be refreshed and an older one
	// answered instead.
	Stale      bool   `json:"stale,omitempty"`
	Confident  bool   `json:"confident"`
	Generation uint64 `json:"generation"`
	Cached     bool   `json:"cached,omitempty"`
}

// Description summarises the installed snapshot.
type Description struct {
	TotalDocuments        int           `json:"total_documents"`
	VocabularySize        int           `json:"vocabulary_size"`
	AverageDocumentLength float64       `json:"average_document_length"`
	IndexAgeMs            int64         `json:"index_age_ms"`
	State                 indexer.State `json:"state"`
	Generation            uint64        `json:"generation"`
	BuiltAt               *time.Time    `json:"built_at,omitempty"`
}

// Executor answers searches against an indexer.Engine.
type Executor struct {
	engine  *indexer.Engine
	ranker  *ranker.Ranker
	cfg     config.SearchConfig
	opts    parser.Options
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithMetrics reports query outcomes to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// New creates an Executor.
func New(engine *indexer.Engine, cfg config.SearchConfig, scoring config.ScoringConfig, opts ...Option) *Executor {
	e := &Executor{
		engine: engine,
		ranker: ranker.New(scoring, cfg.MaxBodyChars),
		cfg:    cfg,
		opts: parser.Options{
			OriginalBoost:  scoring.OriginalTermBoost,
			ExpansionBoost: scoring.ExpansionTermBoost,
		},
		logger: slog.Default().With("component", "query-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search ranks the corpus against query and returns at most maxResults
// documents. maxResults <= 0 selects the configured default and values
// above the hard cap are clamped. An empty corpus or a query without
// searchable terms is reported through Response.Condition, not as an error.
func (e *Executor) Search(ctx context.Context, query string, maxResults int) (*Response, error) {
	start := time.Now()
	ctx, span := tracing.Start(ctx, "search")
	defer func() {
		span.End()
		span.Log(logger.FromContext(ctx))
	}()

	trimmed := strings.TrimSpace(query)
	if err := e.validate(trimmed); err != nil {
		e.countQuery("invalid")
		return nil, err
	}
	limit := e.Limit(maxResults)
	span.SetAttr("query", trimmed)
	span.SetAttr("limit", limit)

	snap, stale, err := e.snapshot(ctx)
	if err != nil {
		e.countQuery("error")
		return nil, err
	}

	resp := &Response{
		Query:          trimmed,
		Results:        []ranker.SearchResult{},
		TotalDocuments: snap.TotalDocuments,
		Stale:          stale,
		Generation:     snap.Generation,
	}
	defer func() {
		resp.SearchTimeMs = time.Since(start).Milliseconds()
	}()

	if snap.Empty() {
		resp.Condition = ConditionEmptyCorpus
		e.countQuery(string(ConditionEmptyCorpus))
		e.logger.Warn("search against empty corpus", "query", trimmed)
		return resp, nil
	}

	_, processSpan := tracing.Start(ctx, "process")
	qv, err := parser.ProcessWith(trimmed, snap, e.opts)
	processSpan.End()
	if errors.Is(err, apperrors.ErrNoSearchableTerms) {
		resp.Condition = ConditionNoSearchableTerms
		e.countQuery(string(ConditionNoSearchableTerms))
		return resp, nil
	}
	if err != nil {
		e.countQuery("error")
		return nil, err
	}
	processSpan.SetAttr("original", len(qv.Original))
	processSpan.SetAttr("expanded", len(qv.Expanded))

	_, rankSpan := tracing.Start(ctx, "rank")
	resp.Results = e.ranker.Rank(qv, snap, limit)
	rankSpan.SetAttr("results", len(resp.Results))
	rankSpan.End()

	resp.Confident = len(resp.Results) > 0 && resp.Results[0].Score >= float64(e.cfg.ConfidenceThreshold)
	e.observe(resp)

	logger.FromContext(ctx).Info("query executed",
		"component", "query-executor",
		"query", trimmed,
		"terms", qv.Original,
		"expanded", len(qv.Expanded),
		"results", len(resp.Results),
		"confident", resp.Confident,
		"generation", resp.Generation,
		"stale", resp.Stale,
	)
	return resp, nil
}

// Limit resolves a requested result count against the configured default
// and cap.
func (e *Executor) Limit(maxResults int) int {
	if maxResults <= 0 {
		maxResults = e.cfg.DefaultLimit
	}
	if e.cfg.MaxResults > 0 && maxResults > e.cfg.MaxResults {
		maxResults = e.cfg.MaxResults
	}
	return maxResults
}

// Explain scores one document against query and returns every rule's
// contribution. ok is false when the document is not indexed.
func (e *Executor) Explain(ctx context.Context, query, docID string) (contributions []ranker.Contribution, ok bool, err error) {
	trimmed := strings.TrimSpace(query)
	if err := e.validate(trimmed); err != nil {
		return nil, false, err
	}
	snap, _, err := e.snapshot(ctx)
	if err != nil {
		return nil, false, err
	}
	qv, err := parser.ProcessWith(trimmed, snap, e.opts)
	if err != nil && !errors.Is(err, apperrors.ErrNoSearchableTerms) {
		return nil, false, err
	}
	contributions, ok = e.ranker.Explain(qv, snap, docID)
	return contributions, ok, nil
}

// Describe reports on the installed snapshot without rebuilding it.
func (e *Executor) Describe() Description {
	d := Description{State: e.engine.State()}
	snap := e.engine.Current()
	if snap == nil {
		return d
	}
	built := snap.BuiltAt
	d.TotalDocuments = snap.TotalDocuments
	d.VocabularySize = len(snap.Vocabulary)
	d.AverageDocumentLength = snap.AverageDocumentLength
	d.IndexAgeMs = snap.Age(time.Now()).Milliseconds()
	d.Generation = snap.Generation
	d.BuiltAt = &built
	return d
}

// Generation returns the generation of the snapshot a search issued now
// would use, rebuilding first if the current one has expired.
func (e *Executor) Generation(ctx context.Context) (uint64, error) {
	snap, _, err := e.snapshot(ctx)
	if err != nil {
		return 0, err
	}
	return snap.Generation, nil
}

// Invalidate marks the snapshot stale. trigger is recorded in metrics.
func (e *Executor) Invalidate(ctx context.Context, trigger string) {
	e.engine.Invalidate()
	if e.metrics != nil {
		e.metrics.IndexInvalidationsTotal.WithLabelValues(trigger).Inc()
	}
	logger.FromContext(ctx).Info("index invalidated",
		"component", "query-executor",
		"trigger", trigger,
	)
}

// Rebuild forces a fresh snapshot.
func (e *Executor) Rebuild(ctx context.Context) (*index.Snapshot, error) {
	return e.engine.Rebuild(ctx)
}

// Ready reports whether a snapshot is available to serve from.
func (e *Executor) Ready() bool {
	return e.engine.Current() != nil
}

func (e *Executor) validate(trimmed string) error {
	n := utf8.RuneCountInString(trimmed)
	if n == 0 {
		return apperrors.InvalidQuery("query is empty")
	}
	if n < e.cfg.MinQueryLength {
		return apperrors.InvalidQuery("query must be at least %d characters", e.cfg.MinQueryLength)
	}
	if e.cfg.MaxQueryLength > 0 && n > e.cfg.MaxQueryLength {
		return apperrors.InvalidQuery("query must be at most %d characters", e.cfg.MaxQueryLength)
	}
	return nil
}

// snapshot fetches the current snapshot. A failed rebuild with an older
// snapshot to fall back on is not an error; stale reports it instead.
func (e *Executor) snapshot(ctx context.Context) (snap *index.Snapshot, stale bool, err error) {
	_, span := tracing.Start(ctx, "snapshot")
	defer span.End()

	snap, err = e.engine.Snapshot(ctx)
	if err != nil {
		if snap != nil && errors.Is(err, apperrors.ErrRebuildFailed) {
			span.SetAttr("stale", true)
			e.logger.Warn("serving stale snapshot", "error", err, "generation", snap.Generation)
			return snap, true, nil
		}
		return nil, false, err
	}
	span.SetAttr("generation", snap.Generation)
	return snap, false, nil
}

func (e *Executor) countQuery(resultType string) {
	if e.metrics != nil {
		e.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	}
}

func (e *Executor) observe(resp *Response) {
	if e.metrics == nil {
		return
	}
	resultType := "ok"
	if len(resp.Results) == 0 {
		resultType = "zero_result"
	}
	e.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	e.metrics.SearchResultsCount.Observe(float64(len(resp.Results)))
	if len(resp.Results) > 0 {
		e.metrics.SearchTopScore.Observe(resp.Results[0].Score)
	}
}
