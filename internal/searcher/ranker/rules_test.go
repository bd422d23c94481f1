package ranker

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/config"
)

// applyRule evaluates a single rule for the only document of a one-document
// snapshot.
func applyRule(t *testing.T, label, query string, doc corpus.Document) float64 {
	t.Helper()
	return applyRuleWith(t, config.DefaultScoring(), label, query, doc)
}

func applyRuleWith(t *testing.T, cfg config.ScoringConfig, label, query string, doc corpus.Document) float64 {
	t.Helper()
	if doc.Stripped == "" {
		doc.Stripped = corpus.StripMarkdown(doc.Body)
	}
	if doc.SourceID == "" {
		doc.SourceID = doc.ID + ".md"
	}
	snap := index.Build([]corpus.Document{doc}, index.Options{})
	q := NewQuery(process(t, query, snap), snap)
	entry, ok := snap.Entry(doc.ID)
	require.True(t, ok)
	c := NewCandidate(entry, snap.AverageDocumentLength)

	for _, rule := range Rules(cfg) {
		if rule.Label == label {
			return rule.Apply(q, c)
		}
	}
	t.Fatalf("no rule %q", label)
	return 0
}

func TestBM25(t *testing.T) {
	terms := []string{"docker", "absent", "negative"}
	weights := map[string]float64{"docker": 2, "absent": 3, "negative": -1}
	tf := map[string]int{"docker": 2, "negative": 4}

	got := BM25(terms, weights, tf, 10, 10, 1.5, 0.75)
	assert.InDelta(t, 2*(2*2.5)/(2+1.5), got, 1e-12)

	assert.Zero(t, BM25(terms, weights, tf, 10, 0, 1.5, 0.75), "zero average length")
}

func TestBM25_LongerDocumentsScoreLower(t *testing.T) {
	terms := []string{"docker"}
	weights := map[string]float64{"docker": 1}
	tf := map[string]int{"docker": 3}
	short := BM25(terms, weights, tf, 5, 10, 1.5, 0.75)
	long := BM25(terms, weights, tf, 50, 10, 1.5, 0.75)
	assert.Greater(t, short, long)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float64{1, 2}, []float64{2, 4}), 1e-12)
	assert.Zero(t, Cosine([]float64{1, 0}, []float64{0, 1}))
	assert.Zero(t, Cosine([]float64{0, 0}, []float64{1, 1}))
	assert.InDelta(t, 1.0, Cosine([]float64{1}, []float64{1, 0, 0}), 1e-12)

	query := map[string]float64{"a": 1, "b": 1}
	doc := map[string]float64{"a": 3, "c": 4}
	assert.InDelta(t, 3/(math.Sqrt2*5), SparseCosine([]string{"a", "b"}, query, doc, 5), 1e-12)
	assert.Zero(t, SparseCosine([]string{"a"}, query, doc, 0))
}

func TestAnalyze(t *testing.T) {
	body := strings.ToLower("# Title\nIntro with `inline code`.\n- item one\n1. item two\n```go\n# not a header\nfmt.Println()\n```\n## Section")
	s := analyze(body)

	assert.Equal(t, []string{"# title", "## section"}, s.headers)
	assert.Equal(t, []string{"- item one", "1. item two"}, s.lists)
	assert.True(t, s.hasCode)
	assert.Contains(t, s.code, "inline code")
	assert.Contains(t, s.code, "fmt.println()")
	assert.Contains(t, s.code, "# not a header")
}

func TestOccurrences(t *testing.T) {
	assert.Equal(t, []int{0, 14}, occurrences("docker in the docker", "docker", 10))
	assert.Empty(t, occurrences("dockerfile", "docker", 10))
	assert.Equal(t, []int{0}, occurrences("go go go", "go", 1))
	assert.Equal(t, []int{5}, occurrences("use (docker)", "docker", 10))
}

func TestRule_ExactMatches(t *testing.T) {
	doc := corpus.Document{ID: "guide", Title: "Docker Basics Guide", Body: "Learn docker basics step by step."}
	assert.Equal(t, 50.0, applyRule(t, LabelTitleExact, "Docker  basics", doc))
	assert.Equal(t, 20.0, applyRule(t, LabelBodyExact, "docker basics", doc))
	assert.Zero(t, applyRule(t, LabelTitleExact, "basics docker", doc))
}

func TestRule_Phrases(t *testing.T) {
	doc := corpus.Document{ID: "compose", Title: "Using Docker Compose", Body: "Compose files describe services. docker compose up starts them."}
	assert.Equal(t, 8.0, applyRule(t, LabelPhraseTitle, "docker compose files", doc))
	assert.Equal(t, 8.0, applyRule(t, LabelPhraseBody, "docker compose files", doc))
}

func TestRule_Tags(t *testing.T) {
	doc := corpus.Document{ID: "k", Title: "K", Body: "docker and kubernetes", Tags: []string{"docker", "kubernetes-ops"}}
	assert.Equal(t, 9.0, applyRule(t, LabelTags, "docker kubernetes", doc))
}

func TestRule_Headers(t *testing.T) {
	doc := corpus.Document{ID: "h", Title: "H", Body: "# Docker\n## Docker compose\n### docker swarm\n## Docker again\ntext about docker"}
	assert.Equal(t, 9.0, applyRule(t, LabelHeaders, "docker", doc), "capped at three header lines")
}

func TestRule_Code(t *testing.T) {
	doc := corpus.Document{ID: "c", Title: "C", Body: "Run `docker ps` first.\n```\nkubectl get pods\n```\nkubernetes is mentioned outside code"}
	assert.Equal(t, 6.0, applyRule(t, LabelCode, "docker kubectl kubernetes", doc))
}

func TestRule_Lists(t *testing.T) {
	doc := corpus.Document{ID: "l", Title: "L", Body: "- install docker\n- run kubernetes\nplain rust"}
	assert.Equal(t, 4.0, applyRule(t, LabelLists, "docker kubernetes rust", doc))
}

func TestRule_Source(t *testing.T) {
	doc := corpus.Document{ID: "docker-guide", Title: "G", Body: "text", SourceID: "docker-guide.md"}
	assert.Equal(t, 10.0, applyRule(t, LabelSource, "docker guide", doc))
}

func TestRule_CoverageAndProximity(t *testing.T) {
	doc := corpus.Document{ID: "p", Title: "P", Body: "docker only"}
	assert.Equal(t, 7.5, applyRule(t, LabelCoverage, "docker kubernetes", doc))

	near := corpus.Document{ID: "n", Title: "N", Body: "docker and kubernetes"}
	assert.Equal(t, 3.0, applyRule(t, LabelProximity, "docker kubernetes", near))

	far := corpus.Document{ID: "f", Title: "F", Body: "docker " + strings.Repeat("filler ", 20) + "kubernetes"}
	assert.Zero(t, applyRule(t, LabelProximity, "docker kubernetes", far))
}

func TestRule_Quality(t *testing.T) {
	doc := corpus.Document{ID: "q", Title: "Q", Body: strings.Repeat("x", 900) + " unique words here", Relevance: 0.8}
	got := applyRule(t, LabelQuality, "unique words", doc)
	// every token distinct, 800+ rune tier, prior 0.8
	assert.InDelta(t, 2*1.0+1.0+2*0.8, got, 1e-9)
}

func TestRule_QualityLengthTiers(t *testing.T) {
	doc := corpus.Document{ID: "q", Title: "Q", Body: strings.Repeat("x", 300) + " unique words here"}

	cfg := config.DefaultScoring()
	cfg.DensityWeight = 0
	cfg.PriorWeight = 0
	assert.Equal(t, 0.5, applyRuleWith(t, cfg, LabelQuality, "unique words", doc))

	cfg.LengthTiers = []config.LengthTier{{MinChars: 1000, Bonus: 4}, {MinChars: 250, Bonus: 2.5}}
	assert.Equal(t, 2.5, applyRuleWith(t, cfg, LabelQuality, "unique words", doc))

	cfg.LengthTiers = nil
	assert.Zero(t, applyRuleWith(t, cfg, LabelQuality, "unique words", doc))
}

func TestRule_Intent(t *testing.T) {
	howTo := corpus.Document{ID: "h", Title: "H", Body: "- install docker\n- start docker"}
	assert.Equal(t, 5.0, applyRule(t, LabelIntent, "how to install docker", howTo))

	prose := corpus.Document{ID: "p", Title: "P", Body: "docker is installed somewhere"}
	assert.Zero(t, applyRule(t, LabelIntent, "how to install docker", prose))

	code := corpus.Document{ID: "c", Title: "C", Body: "run `docker build` now"}
	assert.Equal(t, 5.0, applyRule(t, LabelIntent, "docker code example", code))

	cmp := corpus.Document{ID: "v", Title: "V", Body: "podman vs docker: pros and cons"}
	assert.Equal(t, 5.0, applyRule(t, LabelIntent, "compare docker podman", cmp))

	def := corpus.Document{ID: "d", Title: "D", Body: "docker is a container runtime"}
	assert.Equal(t, 5.0, applyRule(t, LabelIntent, "what is docker", def))
}

func TestRule_Temporal(t *testing.T) {
	doc := corpus.Document{ID: "t", Title: "T", Body: "new and emerging docker trends on the roadmap"}
	assert.Equal(t, 6.0, applyRule(t, LabelTemporal, "latest docker", doc), "capped")
	assert.Zero(t, applyRule(t, LabelTemporal, "docker history", doc))
}

func TestRule_CrossReference(t *testing.T) {
	doc := corpus.Document{ID: "x", Title: "X", Body: "docker deployment with kubernetes and automation"}
	assert.Equal(t, 3.0, applyRule(t, LabelCrossReference, "docker", doc))
}

func TestRule_StatisticalSignalsArePositive(t *testing.T) {
	doc := corpus.Document{ID: "s", Title: "Search", Body: "ranking search results"}
	assert.Greater(t, applyRule(t, LabelEmbedding, "ranking", doc), 0.0)
	// A single-document corpus has negative IDF everywhere; BM25 ignores it.
	assert.Zero(t, applyRule(t, LabelBM25, "ranking", doc))
}
