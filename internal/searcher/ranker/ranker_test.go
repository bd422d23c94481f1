package ranker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/config"
)

func parseDocs(t testing.TB, raws ...corpus.RawDocument) []corpus.Document {
	t.Helper()
	docs := make([]corpus.Document, 0, len(raws))
	for _, raw := range raws {
		doc, err := corpus.Parse(raw)
		require.NoError(t, err)
		docs = append(docs, doc)
	}
	return docs
}

func buildSnapshot(t testing.TB, raws ...corpus.RawDocument) *index.Snapshot {
	t.Helper()
	return index.Build(parseDocs(t, raws...), index.Options{})
}

func process(t testing.TB, query string, snap *index.Snapshot) *parser.QueryVector {
	t.Helper()
	qv, err := parser.Process(query, snap)
	require.NoError(t, err)
	return qv
}

func newRanker() *Ranker {
	return New(config.DefaultScoring(), 600)
}

var scenarioCorpus = []corpus.RawDocument{
	{Filename: "deep_learning.md", Content: "# Deep Learning\n\nDeep learning uses neural networks. Learning rates matter."},
	{Filename: "ml_algorithms.md", Content: "# Machine Learning Algorithms\n\nAn overview of machine learning algorithms such as decision trees and gradient boosting."},
	{Filename: "sorting.md", Content: "# Sorting Algorithms\n\nQuicksort and mergesort are classic algorithms."},
}

// =============================================================================
// Ranking properties
// =============================================================================

func TestRank_TitleAndBodyPhraseWins(t *testing.T) {
	snap := buildSnapshot(t, scenarioCorpus...)
	results := newRanker().Rank(process(t, "machine learning algorithms", snap), snap, 10)

	require.NotEmpty(t, results)
	assert.Equal(t, "ml-algorithms", results[0].DocumentID)
	for _, r := range results[1:] {
		assert.Less(t, r.Score, results[0].Score, r.DocumentID)
	}
	assert.Contains(t, results[0].Signals, LabelTitleExact)
	assert.Contains(t, results[0].Signals, LabelBodyExact)
}

func TestRank_ScoresAreBoundedAndSorted(t *testing.T) {
	snap := buildSnapshot(t, scenarioCorpus...)
	for _, q := range []string{"machine learning algorithms", "deep learning", "algorithms", "ai", "sorting quicksort"} {
		results := newRanker().Rank(process(t, q, snap), snap, 0)
		for i, r := range results {
			assert.GreaterOrEqual(t, r.Score, 0.0, q)
			assert.LessOrEqual(t, r.Score, 100.0, q)
			if i > 0 {
				assert.LessOrEqual(t, r.Score, results[i-1].Score, q)
			}
		}
	}
}

func TestRank_IsDeterministic(t *testing.T) {
	snap := buildSnapshot(t, scenarioCorpus...)
	r := newRanker()
	qv := process(t, "learning algorithms", snap)

	first := r.Rank(qv, snap, 0)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, r.Rank(qv, snap, 0))
	}

	rebuilt := buildSnapshot(t, scenarioCorpus...)
	assert.Equal(t, first, r.Rank(process(t, "learning algorithms", rebuilt), rebuilt, 0))
}

func TestRank_TitlePhraseStrictlyHelps(t *testing.T) {
	body := "Notes on kubernetes networking: services, ingress and network policies."
	snap := buildSnapshot(t,
		corpus.RawDocument{Filename: "with_title.md", Content: "# Kubernetes Networking\n\n" + body},
		corpus.RawDocument{Filename: "without_title.md", Content: "# Cluster Notes\n\n" + body},
		corpus.RawDocument{Filename: "rust.md", Content: "# Rust\n\nOwnership and borrowing."},
		corpus.RawDocument{Filename: "python.md", Content: "# Python\n\nPandas dataframes."},
	)
	r := newRanker()
	qv := process(t, "kubernetes networking", snap)

	with, ok := r.Explain(qv, snap, "with-title")
	require.True(t, ok)
	without, ok := r.Explain(qv, snap, "without-title")
	require.True(t, ok)
	assert.Greater(t, Sum(with), Sum(without))

	results := r.Rank(qv, snap, 0)
	require.GreaterOrEqual(t, len(results), 2)
	assert.Equal(t, "with-title", results[0].DocumentID)
	assert.Equal(t, "without-title", results[1].DocumentID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestRank_OnlyCandidatesSharingTermsAppear(t *testing.T) {
	snap := buildSnapshot(t,
		corpus.RawDocument{Filename: "nets.md", Content: "# Neural Networks\n\nLayers of neurons trained by backpropagation."},
		corpus.RawDocument{Filename: "rust.md", Content: "# Rust\n\nOwnership and borrowing."},
		corpus.RawDocument{Filename: "docker.md", Content: "# Docker\n\nContainers and images."},
	)
	r := New(config.DefaultScoring(), 0)
	r.cfg.MinScore = -1

	qv := process(t, "ai", snap)
	ids := make(map[string]bool)
	for _, res := range r.Rank(qv, snap, 0) {
		ids[res.DocumentID] = true
	}
	assert.True(t, ids["nets"], "expansion terms generate candidates")
	assert.False(t, ids["rust"])
	assert.False(t, ids["docker"])
}

func TestRank_TruncatesAfterScoring(t *testing.T) {
	var raws []corpus.RawDocument
	for i := 1; i <= 5; i++ {
		raws = append(raws, corpus.RawDocument{
			Filename: fmt.Sprintf("docker_%d.md", i),
			Content: fmt.Sprintf("# Docker Guide %d\n\n%s",
				i, strings.Repeat("Docker containers isolate processes. ", i)),
		})
	}
	raws = append(raws, corpus.RawDocument{Filename: "rust.md", Content: "# Rust\n\nOwnership."})
	snap := buildSnapshot(t, raws...)
	r := newRanker()
	qv := process(t, "docker containers", snap)

	all := r.Rank(qv, snap, 0)
	require.Len(t, all, 5)
	top := r.Rank(qv, snap, 2)
	require.Len(t, top, 2)
	assert.Equal(t, all[:2], top)
}

func TestRank_DropsLowScores(t *testing.T) {
	snap := buildSnapshot(t, scenarioCorpus...)
	r := newRanker()
	r.cfg.MinScore = 1e6
	assert.Empty(t, r.Rank(process(t, "algorithms", snap), snap, 0))
}

func TestRank_EmptySnapshot(t *testing.T) {
	snap := index.Build(nil, index.Options{})
	qv := process(t, "anything goes", snap)
	results := newRanker().Rank(qv, snap, 5)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestRank_TruncatesBody(t *testing.T) {
	snap := buildSnapshot(t, corpus.RawDocument{
		Filename: "long.md",
		Content:  "# Docker\n\n" + strings.Repeat("docker containers ", 50),
	})
	results := New(config.DefaultScoring(), 12).Rank(process(t, "docker containers", snap), snap, 1)
	require.Len(t, results, 1)
	assert.Equal(t, "# Docker\n\ndo...", results[0].Body)
}

func TestNormalize(t *testing.T) {
	r := newRanker()
	assert.Equal(t, 50.0, r.Normalize(75))
	assert.Equal(t, 100.0, r.Normalize(300))
	assert.Equal(t, 0.0, r.Normalize(-5))
	assert.Equal(t, 7.0, r.Normalize(10))

	r.cfg.Scale = 0
	assert.Zero(t, r.Normalize(75))
}

func TestRules_FixedOrder(t *testing.T) {
	var labels []string
	for _, rule := range newRanker().Rules() {
		labels = append(labels, rule.Label)
	}
	assert.Equal(t, []string{
		"bm25", "tfidf_cosine", "embedding_cosine", "title_exact", "body_exact",
		"phrase_title", "phrase_body", "tags", "headers", "code", "lists", "source",
		"coverage", "proximity", "quality", "intent", "temporal", "cross_reference",
	}, labels)
}

func TestExplain_UnknownDocument(t *testing.T) {
	snap := buildSnapshot(t, scenarioCorpus...)
	_, ok := newRanker().Explain(process(t, "algorithms", snap), snap, "missing")
	assert.False(t, ok)
}
