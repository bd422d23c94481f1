package ranker

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/lexicon"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/config"
)

// Rule labels, in evaluation order.
const (
	LabelBM25           = "bm25"
	LabelTFIDFCosine    = "tfidf_cosine"
	LabelEmbedding      = "embedding_cosine"
	LabelTitleExact     = "title_exact"
	LabelBodyExact      = "body_exact"
	LabelPhraseTitle    = "phrase_title"
	LabelPhraseBody     = "phrase_body"
	LabelTags           = "tags"
	LabelHeaders        = "headers"
	LabelCode           = "code"
	LabelLists          = "lists"
	LabelSource         = "source"
	LabelCoverage       = "coverage"
	LabelProximity      = "proximity"
	LabelQuality        = "quality"
	LabelIntent         = "intent"
	LabelTemporal       = "temporal"
	LabelCrossReference = "cross_reference"
)

// maxOccurrences bounds the positions collected per term for proximity.
const maxOccurrences = 64

// Query is a QueryVector plus what the rules derive from it once per
// ranking call.
type Query struct {
	*parser.QueryVector
	// Focus is the term set for structural rules: the original terms, or
	// the expansion when the query had none of its own.
	Focus []string
	// Pairs are adjacent original terms, for phrase matching.
	Pairs []string
	// Embedding is the binary query vector over the snapshot's embedding
	// dimensions.
	Embedding []float64
	// CrossTerms are related-table terms of the query's topics that are not
	// themselves weighted query terms.
	CrossTerms []string
	terms      []string
}

// NewQuery prepares qv for ranking against snap.
func NewQuery(qv *parser.QueryVector, snap *index.Snapshot) *Query {
	q := &Query{QueryVector: qv, terms: qv.Terms()}
	q.Focus = qv.Original
	if len(q.Focus) == 0 {
		q.Focus = qv.Expanded
	}
	for i := 0; i+1 < len(qv.Original); i++ {
		q.Pairs = append(q.Pairs, qv.Original[i]+" "+qv.Original[i+1])
	}

	if snap != nil {
		dims := snap.Vocabulary
		if len(dims) > snap.EmbeddingDimensions {
			dims = dims[:snap.EmbeddingDimensions]
		}
		q.Embedding = make([]float64, len(dims))
		for i, term := range dims {
			if _, ok := qv.Weights[term]; ok {
				q.Embedding[i] = 1
			}
		}
	}

	words := make(map[string]struct{}, len(qv.Words))
	for _, w := range qv.Words {
		words[w] = struct{}{}
	}
	inQuery := func(term string) bool {
		if _, ok := qv.Weights[term]; ok {
			return true
		}
		_, ok := words[term]
		return ok
	}
	seen := make(map[string]struct{})
	for _, topic := range lexicon.Topics(inQuery) {
		candidates := []string{topic}
		for _, phrase := range lexicon.Related(topic) {
			candidates = append(candidates, tokenizer.Terms(phrase)...)
		}
		for _, term := range candidates {
			if _, dup := seen[term]; dup || inQuery(term) {
				continue
			}
			seen[term] = struct{}{}
			q.CrossTerms = append(q.CrossTerms, term)
		}
	}
	return q
}

// Candidate is one document being scored.
type Candidate struct {
	*index.DocumentEntry
	AverageLength float64
	structure     structure
}

// NewCandidate prepares entry for scoring.
func NewCandidate(entry *index.DocumentEntry, avgLength float64) *Candidate {
	return &Candidate{
		DocumentEntry: entry,
		AverageLength: avgLength,
		structure:     analyze(entry.LowerBody),
	}
}

// Contribution is one rule's share of a raw score.
type Contribution struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Rule is a named, pure scoring function.
type Rule struct {
	Label string
	Apply func(q *Query, c *Candidate) float64
}

// Rules returns the fixed, ordered rule list with weights from cfg.
func Rules(cfg config.ScoringConfig) []Rule {
	return []Rule{
		{LabelBM25, func(q *Query, c *Candidate) float64 {
			return cfg.BM25Weight * BM25(q.terms, q.Weights, c.TermFrequency, c.Length, c.AverageLength, cfg.BM25K1, cfg.BM25B)
		}},
		{LabelTFIDFCosine, func(q *Query, c *Candidate) float64 {
			return cfg.CosineWeight * math.Max(0, SparseCosine(q.terms, q.Weights, c.TFIDF, c.TFIDFNorm))
		}},
		{LabelEmbedding, func(q *Query, c *Candidate) float64 {
			return cfg.EmbeddingWeight * math.Max(0, Cosine(q.Embedding, c.Embedding))
		}},
		{LabelTitleExact, func(q *Query, c *Candidate) float64 {
			if q.Lowered != "" && strings.Contains(c.LowerTitle, q.Lowered) {
				return cfg.TitleExactWeight
			}
			return 0
		}},
		{LabelBodyExact, func(q *Query, c *Candidate) float64 {
			if q.Lowered != "" && strings.Contains(c.LowerBody, q.Lowered) {
				return cfg.BodyExactWeight
			}
			return 0
		}},
		{LabelPhraseTitle, func(q *Query, c *Candidate) float64 {
			return cfg.TitlePhraseWeight * float64(countContaining(c.LowerTitle, q.Pairs))
		}},
		{LabelPhraseBody, func(q *Query, c *Candidate) float64 {
			return cfg.BodyPhraseWeight * float64(countContaining(c.LowerBody, q.Pairs))
		}},
		{LabelTags, func(q *Query, c *Candidate) float64 {
			return tagScore(q.Focus, c.Document.Tags, cfg)
		}},
		{LabelHeaders, func(q *Query, c *Candidate) float64 {
			var total float64
			for _, term := range q.Focus {
				hits := 0
				for _, h := range c.structure.headers {
					if hits >= cfg.HeaderMatchCap {
						break
					}
					if lexicon.ContainsKeyword(h, term) {
						hits++
					}
				}
				total += float64(hits)
			}
			return cfg.HeaderWeight * total
		}},
		{LabelCode, func(q *Query, c *Candidate) float64 {
			return cfg.CodeWeight * float64(countWords(c.structure.code, q.Focus))
		}},
		{LabelLists, func(q *Query, c *Candidate) float64 {
			hits := 0
			for _, term := range q.Focus {
				for _, line := range c.structure.lists {
					if lexicon.ContainsKeyword(line, term) {
						hits++
						break
					}
				}
			}
			return cfg.ListWeight * float64(hits)
		}},
		{LabelSource, func(q *Query, c *Candidate) float64 {
			source := strings.ToLower(c.Document.SourceID + " " + c.Document.ID)
			hits := 0
			for _, term := range q.Focus {
				if strings.Contains(source, term) {
					hits++
				}
			}
			return cfg.SourceWeight * float64(hits)
		}},
		{LabelCoverage, func(q *Query, c *Candidate) float64 {
			if len(q.Focus) == 0 {
				return 0
			}
			return cfg.CoverageWeight * float64(countWords(c.LowerBody, q.Focus)) / float64(len(q.Focus))
		}},
		{LabelProximity, func(q *Query, c *Candidate) float64 {
			return cfg.ProximityWeight * float64(proximityPairs(c.LowerBody, q.Focus, cfg.ProximityWindow))
		}},
		{LabelQuality, func(q *Query, c *Candidate) float64 {
			return qualityScore(c, cfg)
		}},
		{LabelIntent, func(q *Query, c *Candidate) float64 {
			return intentScore(q.Intents, c, cfg.IntentWeight)
		}},
		{LabelTemporal, func(q *Query, c *Candidate) float64 {
			if !q.Recency {
				return 0
			}
			hits := 0
			for _, w := range lexicon.RecencyVocabulary {
				if lexicon.ContainsKeyword(c.LowerTitle, w) || lexicon.ContainsKeyword(c.LowerBody, w) {
					hits++
				}
			}
			return math.Min(cfg.TemporalWeight*float64(hits), cfg.TemporalCap)
		}},
		{LabelCrossReference, func(q *Query, c *Candidate) float64 {
			hits := 0
			for _, term := range q.CrossTerms {
				if _, ok := c.TermFrequency[term]; ok {
					hits++
				}
			}
			return math.Min(cfg.CrossReferenceWeight*float64(hits), cfg.CrossReferenceCap)
		}},
	}
}

func countContaining(text string, needles []string) int {
	n := 0
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			n++
		}
	}
	return n
}

func countWords(text string, terms []string) int {
	n := 0
	for _, term := range terms {
		if lexicon.ContainsKeyword(text, term) {
			n++
		}
	}
	return n
}

// tagScore credits each term once: an exact tag beats a substring match in
// either direction.
func tagScore(terms, tags []string, cfg config.ScoringConfig) float64 {
	var total float64
	for _, term := range terms {
		best := 0.0
		for _, tag := range tags {
			if tag == term {
				best = cfg.TagExactWeight
				break
			}
			if strings.Contains(tag, term) || strings.Contains(term, tag) {
				best = math.Max(best, cfg.TagPartialWeight)
			}
		}
		total += best
	}
	return total
}

// proximityPairs counts distinct term pairs that occur within window bytes
// of each other somewhere in text.
func proximityPairs(text string, terms []string, window int) int {
	if len(terms) < 2 || window <= 0 {
		return 0
	}
	positions := make([][]int, len(terms))
	for i, term := range terms {
		positions[i] = occurrences(text, term, maxOccurrences)
	}
	pairs := 0
	for i := 0; i < len(terms); i++ {
		for j := i + 1; j < len(terms); j++ {
			if near(positions[i], positions[j], window) {
				pairs++
			}
		}
	}
	return pairs
}

func near(a, b []int, window int) bool {
	for _, pa := range a {
		for _, pb := range b {
			d := pa - pb
			if d < 0 {
				d = -d
			}
			if d <= window {
				return true
			}
		}
	}
	return false
}

func qualityScore(c *Candidate, cfg config.ScoringConfig) float64 {
	var density float64
	if c.Length > 0 {
		density = float64(len(c.TermFrequency)) / float64(c.Length)
	}
	var bonus float64
	n := utf8.RuneCountInString(c.Document.Body)
	for _, tier := range cfg.LengthTiers {
		if n >= tier.MinChars {
			bonus = tier.Bonus
			break
		}
	}
	return cfg.DensityWeight*density + bonus + cfg.PriorWeight*c.Document.Relevance
}

func intentScore(intents []lexicon.Intent, c *Candidate, weight float64) float64 {
	var total float64
	for _, intent := range intents {
		if matchesIntent(intent, c) {
			total += weight
		}
	}
	return total
}

func matchesIntent(intent lexicon.Intent, c *Candidate) bool {
	switch intent {
	case lexicon.IntentHowTo:
		return len(c.structure.lists) >= 2 || len(c.structure.headers) >= 2 ||
			lexicon.ContainsKeyword(c.LowerBody, "step") || lexicon.ContainsKeyword(c.LowerBody, "steps")
	case lexicon.IntentDefinition:
		for _, marker := range lexicon.DefinitionMarkers {
			if strings.Contains(c.LowerBody, marker) {
				return true
			}
		}
	case lexicon.IntentComparison:
		for _, marker := range lexicon.ComparisonMarkers {
			if lexicon.ContainsKeyword(c.LowerBody, marker) {
				return true
			}
		}
	case lexicon.IntentTechnical:
		return c.structure.hasCode
	}
	return false
}
