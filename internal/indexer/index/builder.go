package index

import (
	"math"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/lexicon"
)

// DefaultEmbeddingDimensions bounds the frequency embedding width.
const DefaultEmbeddingDimensions = 50

// Options tune a build. Zero values select the defaults.
type Options struct {
	MaxTokens           int
	EmbeddingDimensions int
	Generation          uint64
	BuiltAt             time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxTokens <= 0 {
		o.MaxTokens = tokenizer.MaxTokens
	}
	if o.EmbeddingDimensions <= 0 {
		o.EmbeddingDimensions = DefaultEmbeddingDimensions
	}
	if o.BuiltAt.IsZero() {
		o.BuiltAt = time.Now()
	}
	return o
}

// IDF is ln(n / (1 + df)). It is negative for terms found in every document.
func IDF(n, df int) float64 {
	if n == 0 {
		return 0
	}
	return math.Log(float64(n) / float64(1+df))
}

// Text is what gets tokenized for a document: its title and stripped body.
func Text(doc corpus.Document) string {
	return doc.Title + " " + doc.Stripped
}

// Build indexes docs into a new snapshot. Frequencies are gathered first,
// IDF is computed once the whole corpus has been seen, and TF-IDF vectors
// and embeddings are derived last. Documents repeating an earlier id are
// ignored.
func Build(docs []corpus.Document, opts Options) *Snapshot {
	opts = opts.withDefaults()
	mi := NewMemoryIndex()

	snap := &Snapshot{
		Documents:           make(map[string]*DocumentEntry, len(docs)),
		Order:               make([]string, 0, len(docs)),
		EmbeddingDimensions: opts.EmbeddingDimensions,
		BuiltAt:             opts.BuiltAt,
		Generation:          opts.Generation,
	}

	totalLength := 0
	for _, doc := range docs {
		if _, dup := snap.Documents[doc.ID]; dup {
			continue
		}
		tokens := tokenizer.TokenizeN(Text(doc), opts.MaxTokens)
		tf := mi.AddDocument(doc.ID, tokens)
		snap.Documents[doc.ID] = &DocumentEntry{
			Document:      doc,
			TermFrequency: tf,
			Length:        len(tokens),
			LowerTitle:    strings.ToLower(doc.Title),
			LowerBody:     strings.ToLower(doc.Body),
		}
		snap.Order = append(snap.Order, doc.ID)
		totalLength += len(tokens)
	}

	n := len(snap.Order)
	snap.TotalDocuments = n
	if n > 0 {
		snap.AverageDocumentLength = float64(totalLength) / float64(n)
	}
	snap.Terms = mi.Entries(func(df int) float64 { return IDF(n, df) })
	snap.Vocabulary = mi.Vocabulary()
	snap.SizeBytes = mi.Size()

	dims := snap.Vocabulary
	if len(dims) > opts.EmbeddingDimensions {
		dims = dims[:opts.EmbeddingDimensions]
	}
	for _, id := range snap.Order {
		entry := snap.Documents[id]
		entry.TFIDF = make(map[string]float64, len(entry.TermFrequency))
		entry.Embedding = make([]float64, len(dims))
		if entry.Length > 0 {
			length := float64(entry.Length)
			for term, freq := range entry.TermFrequency {
				entry.TFIDF[term] = float64(freq) / length * snap.Terms[term].IDF
			}
			for i, term := range dims {
				entry.Embedding[i] = float64(entry.TermFrequency[term]) / length
			}
		}
		var norm float64
		for _, term := range snap.Vocabulary {
			if w, ok := entry.TFIDF[term]; ok {
				norm += w * w
			}
		}
		entry.TFIDFNorm = math.Sqrt(norm)
		entry.Topics = lexicon.Topics(func(term string) bool {
			_, ok := entry.TermFrequency[term]
			return ok
		})
	}
	return snap
}
