package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/docrank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/metrics"
)

var scenarioCorpus = []corpus.RawDocument{
	{Filename: "deep_learning.md", Content: "# Deep Learning\n\nDeep learning uses neural networks. Learning rates matter."},
	{Filename: "ml_algorithms.md", Content: "# Machine Learning Algorithms\n\nAn overview of machine learning algorithms such as decision trees and gradient boosting."},
	{Filename: "sorting.md", Content: "# Sorting Algorithms\n\nQuicksort and mergesort are classic algorithms."},
}

func newExecutor(t *testing.T, src corpus.Source, opts ...Option) *Executor {
	t.Helper()
	cfg := config.Default()
	engine := indexer.NewEngine(src, config.IndexConfig{TTL: time.Minute})
	return New(engine, cfg.Search, cfg.Scoring, opts...)
}

// =============================================================================
// Scenarios
// =============================================================================

func TestSearch_TitledPhraseRanksFirst(t *testing.T) {
	ex := newExecutor(t, corpus.NewMemorySource(scenarioCorpus...))

	resp, err := ex.Search(context.Background(), "machine learning algorithms", 10)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, ConditionNone, resp.Condition)
	assert.Equal(t, 3, resp.TotalDocuments)
	assert.Equal(t, "ml-algorithms", resp.Results[0].DocumentID)
	for _, r := range resp.Results[1:] {
		assert.Less(t, r.Score, resp.Results[0].Score)
	}
	assert.True(t, resp.Confident)
	assert.Equal(t, uint64(1), resp.Generation)
}

func TestSearch_InvalidAndUnsearchableQueries(t *testing.T) {
	ex := newExecutor(t, corpus.NewMemorySource(scenarioCorpus...))

	for _, q := range []string{"", "   ", "x"} {
		_, err := ex.Search(context.Background(), q, 5)
		assert.ErrorIs(t, err, apperrors.ErrInvalidQuery, "query %q", q)
		assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatusCode(err))
	}

	_, err := ex.Search(context.Background(), strings.Repeat("a", 501), 5)
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuery)

	resp, err := ex.Search(context.Background(), "the is a", 5)
	require.NoError(t, err)
	assert.Equal(t, ConditionNoSearchableTerms, resp.Condition)
	assert.ErrorIs(t, resp.Condition.Err(), apperrors.ErrNoSearchableTerms)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
	assert.False(t, resp.Confident)
}

func TestSearch_EmptyCorpus(t *testing.T) {
	ex := newExecutor(t, corpus.NewMemorySource())

	resp, err := ex.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Equal(t, ConditionEmptyCorpus, resp.Condition)
	assert.ErrorIs(t, resp.Condition.Err(), apperrors.ErrEmptyCorpus)
	assert.Zero(t, resp.TotalDocuments)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
}

func TestSearch_TruncatesAfterFullScoring(t *testing.T) {
	var raws []corpus.RawDocument
	for i := 1; i <= 5; i++ {
		raws = append(raws, corpus.RawDocument{
			Filename: fmt.Sprintf("docker_%d.md", i),
			Content: fmt.Sprintf("# Docker Notes %d\n\n%s",
				i, strings.Repeat("Docker images and containers. ", i)),
		})
	}
	raws = append(raws, corpus.RawDocument{Filename: "rust.md", Content: "# Rust\n\nOwnership and lifetimes."})
	ex := newExecutor(t, corpus.NewMemorySource(raws...))

	full, err := ex.Search(context.Background(), "docker containers", 10)
	require.NoError(t, err)
	require.Len(t, full.Results, 5)

	top, err := ex.Search(context.Background(), "docker containers", 2)
	require.NoError(t, err)
	require.Len(t, top.Results, 2)
	assert.Equal(t, full.Results[:2], top.Results)
}

// =============================================================================
// Behaviour
// =============================================================================

func TestSearch_IsDeterministic(t *testing.T) {
	ex := newExecutor(t, corpus.NewMemorySource(scenarioCorpus...))
	first, err := ex.Search(context.Background(), "learning algorithms", 0)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := ex.Search(context.Background(), "learning algorithms", 0)
		require.NoError(t, err)
		assert.Equal(t, first.Results, again.Results)
	}
}

func TestSearch_ScoresBoundedAndSorted(t *testing.T) {
	ex := newExecutor(t, corpus.NewMemorySource(scenarioCorpus...))
	resp, err := ex.Search(context.Background(), "ai algorithms", 20)
	require.NoError(t, err)
	for i, r := range resp.Results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 100.0)
		if i > 0 {
			assert.LessOrEqual(t, r.Score, resp.Results[i-1].Score)
		}
	}
}

func TestSearch_ReportsWholeMilliseconds(t *testing.T) {
	ex := newExecutor(t, corpus.NewMemorySource(scenarioCorpus...))
	resp, err := ex.Search(context.Background(), "sorting algorithms", 5)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, resp.SearchTimeMs, int64(0))

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	var ms int64
	assert.NoError(t, json.Unmarshal(raw["search_time_ms"], &ms), "search_time_ms must be an integer, got %s", raw["search_time_ms"])
}

func TestLimit(t *testing.T) {
	ex := newExecutor(t, corpus.NewMemorySource())
	assert.Equal(t, 5, ex.Limit(0))
	assert.Equal(t, 5, ex.Limit(-3))
	assert.Equal(t, 7, ex.Limit(7))
	assert.Equal(t, 20, ex.Limit(500))
}

func TestSearch_ServesStaleSnapshotWhenRebuildFails(t *testing.T) {
	src := corpus.NewMemorySource(scenarioCorpus...)
	ex := newExecutor(t, src)

	fresh, err := ex.Search(context.Background(), "sorting algorithms", 5)
	require.NoError(t, err)
	assert.False(t, fresh.Stale)

	src.Fail(errors.New("disk unplugged"))
	ex.Invalidate(context.Background(), "test")

	stale, err := ex.Search(context.Background(), "sorting algorithms", 5)
	require.NoError(t, err)
	assert.True(t, stale.Stale)
	assert.Equal(t, fresh.Generation, stale.Generation)
	assert.Equal(t, fresh.Results, stale.Results)
}

func TestSearch_FailsWithoutAnySnapshot(t *testing.T) {
	src := corpus.NewMemorySource(scenarioCorpus...)
	src.Fail(errors.New("disk unplugged"))
	ex := newExecutor(t, src)

	_, err := ex.Search(context.Background(), "sorting", 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrRebuildFailed)
	assert.Equal(t, http.StatusServiceUnavailable, apperrors.HTTPStatusCode(err))
	assert.False(t, ex.Ready())
}

func TestInvalidate_PicksUpCorpusChanges(t *testing.T) {
	src := corpus.NewMemorySource(scenarioCorpus...)
	ex := newExecutor(t, src)

	before, err := ex.Search(context.Background(), "kubernetes", 5)
	require.NoError(t, err)
	assert.Empty(t, before.Results)

	src.Set(append(scenarioCorpus, corpus.RawDocument{
		Filename: "k8s.md",
		Content:  "# Kubernetes\n\nKubernetes schedules pods across nodes.",
	})...)
	ex.Invalidate(context.Background(), "test")

	after, err := ex.Search(context.Background(), "kubernetes", 5)
	require.NoError(t, err)
	require.NotEmpty(t, after.Results)
	assert.Equal(t, "k8s", after.Results[0].DocumentID)
	assert.Equal(t, before.Generation+1, after.Generation)
}

func TestDescribe(t *testing.T) {
	ex := newExecutor(t, corpus.NewMemorySource(scenarioCorpus...))

	d := ex.Describe()
	assert.Equal(t, indexer.StateEmpty, d.State)
	assert.Nil(t, d.BuiltAt)
	assert.Zero(t, d.TotalDocuments)

	gen, err := ex.Generation(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gen)

	d = ex.Describe()
	assert.Equal(t, indexer.StateReady, d.State)
	assert.Equal(t, 3, d.TotalDocuments)
	assert.Positive(t, d.VocabularySize)
	assert.Positive(t, d.AverageDocumentLength)
	assert.Equal(t, uint64(1), d.Generation)
	require.NotNil(t, d.BuiltAt)
	assert.True(t, ex.Ready())
}

func TestExplain(t *testing.T) {
	ex := newExecutor(t, corpus.NewMemorySource(scenarioCorpus...))

	contributions, ok, err := ex.Explain(context.Background(), "machine learning algorithms", "ml-algorithms")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, contributions, 18)

	_, ok, err = ex.Explain(context.Background(), "machine learning", "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = ex.Explain(context.Background(), "", "ml-algorithms")
	assert.ErrorIs(t, err, apperrors.ErrInvalidQuery)
}

func TestSearch_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	ex := newExecutor(t, corpus.NewMemorySource(scenarioCorpus...), WithMetrics(m))

	_, _ = ex.Search(context.Background(), "", 5)
	_, err := ex.Search(context.Background(), "machine learning", 5)
	require.NoError(t, err)
	_, err = ex.Search(context.Background(), "zebra", 5)
	require.NoError(t, err)
	ex.Invalidate(context.Background(), "manual")

	rec := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `search_queries_total{result_type="invalid"} 1`)
	assert.Contains(t, body, `search_queries_total{result_type="ok"} 1`)
	assert.Contains(t, body, `search_queries_total{result_type="zero_result"} 1`)
	assert.Contains(t, body, `index_invalidations_total{source="manual"} 1`)
}
