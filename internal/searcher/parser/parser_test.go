package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/lexicon"
	apperrors "github.com/Adithya-Monish-Kumar-K/docrank/pkg/errors"
)

func testSnapshot() *index.Snapshot {
	docs := []corpus.Document{
		{ID: "ml", Title: "Machine Learning Algorithms", Stripped: "supervised algorithms learn from labelled data"},
		{ID: "docker", Title: "Docker", Stripped: "containers and images"},
		{ID: "rust", Title: "Rust", Stripped: "ownership and borrowing"},
		{ID: "nets", Title: "Neural Networks", Stripped: "layers of neurons"},
	}
	return index.Build(docs, index.Options{})
}

func TestProcess_OriginalTerms(t *testing.T) {
	snap := testSnapshot()
	qv, err := Process("  Machine learning ALGORITHMS ", snap)
	require.NoError(t, err)

	assert.Equal(t, "machine learning algorithms", qv.Lowered)
	assert.Equal(t, []string{"machine", "learning", "algorithms"}, qv.Original)
	assert.Empty(t, qv.Expanded)
	assert.InDelta(t, snap.IDF("machine")*1.5, qv.Weights["machine"], 1e-12)
	assert.Greater(t, qv.Weights["machine"], 0.0)
	assert.True(t, qv.IsOriginal("learning"))
}

func TestProcess_ExpandsShortTopicWords(t *testing.T) {
	snap := testSnapshot()
	qv, err := Process("ai basics", snap)
	require.NoError(t, err)

	assert.Equal(t, []string{"basics"}, qv.Original)
	assert.Equal(t,
		[]string{"artificial", "intelligence", "machine", "learning", "neural", "networks", "deep"},
		qv.Expanded)
	assert.InDelta(t, snap.IDF("neural")*0.7, qv.Weights["neural"], 1e-12)
	assert.Contains(t, qv.Weights, "artificial", "absent terms are kept")
	assert.Zero(t, qv.Weights["artificial"])
	assert.Zero(t, qv.Weights["basics"])
	assert.Equal(t, append([]string{"basics"}, qv.Expanded...), qv.Terms())
}

func TestProcess_ExpansionNeverDuplicatesOriginal(t *testing.T) {
	qv, err := Process("machine learning ai", testSnapshot())
	require.NoError(t, err)

	assert.Equal(t, []string{"machine", "learning"}, qv.Original)
	assert.NotContains(t, qv.Expanded, "machine")
	assert.NotContains(t, qv.Expanded, "learning")
	assert.InDelta(t, testSnapshot().IDF("machine")*1.5, qv.Weights["machine"], 1e-12)
}

func TestProcess_TopicOnlyQueryIsSearchable(t *testing.T) {
	qv, err := Process("ai", testSnapshot())
	require.NoError(t, err)
	assert.Empty(t, qv.Original)
	assert.NotEmpty(t, qv.Expanded)
}

func TestProcess_NoSearchableTerms(t *testing.T) {
	for _, q := range []string{"the is a", "an of", "   "} {
		_, err := Process(q, testSnapshot())
		assert.ErrorIs(t, err, apperrors.ErrNoSearchableTerms, q)
	}
}

func TestProcess_DeduplicatesTerms(t *testing.T) {
	qv, err := Process("docker docker Docker images", testSnapshot())
	require.NoError(t, err)
	assert.Equal(t, []string{"docker", "images"}, qv.Original)
}

func TestProcess_Cues(t *testing.T) {
	qv, err := Process("how to install the latest docker", testSnapshot())
	require.NoError(t, err)
	assert.Equal(t, []lexicon.Intent{lexicon.IntentHowTo}, qv.Intents)
	assert.True(t, qv.Recency)

	qv, err = Process("rust ownership", testSnapshot())
	require.NoError(t, err)
	assert.Empty(t, qv.Intents)
	assert.False(t, qv.Recency)
}

func TestProcess_UsesIndexTokenization(t *testing.T) {
	snap := testSnapshot()
	for _, entry := range snap.Ordered() {
		for term := range entry.TermFrequency {
			qv, err := Process(term, snap)
			require.NoError(t, err)
			assert.Equal(t, []string{term}, qv.Original)
			assert.Equal(t, tokenizer.Terms(term), qv.Original)
		}
	}
}

func TestProcess_NilSnapshot(t *testing.T) {
	qv, err := Process("docker images", nil)
	require.NoError(t, err)
	assert.Zero(t, qv.Weights["docker"])
}

func BenchmarkProcess(b *testing.B) {
	snap := testSnapshot()
	queries := map[string]string{
		"simple":   "docker containers",
		"expanded": "ai and ml for data pipelines",
		"long":     "how to compare machine learning algorithms versus neural networks for image classification",
	}
	for name, q := range queries {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_, _ = Process(q, snap)
			}
		})
	}
}
