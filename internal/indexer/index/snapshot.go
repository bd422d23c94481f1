package index

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/corpus"
)

// DocumentEntry is the per-document part of a snapshot. TFIDFNorm is the
// euclidean norm of TFIDF, summed in vocabulary order.
type DocumentEntry struct {
	Document      corpus.Document
	TermFrequency map[string]int
	TFIDF         map[string]float64
	TFIDFNorm     float64
	Length        int
	Topics        []string
	Embedding     []float64

	// LowerTitle and LowerBody are lowercased once at build time for the
	// structural scoring rules.
	LowerTitle string
	LowerBody  string
}

// Snapshot is a complete, immutable index generation. It is never modified
// after Build returns, so any number of readers may share it.
type Snapshot struct {
	Terms     map[string]*TermEntry
	Documents map[string]*DocumentEntry
	// Order lists document ids in corpus order.
	Order []string
	// Vocabulary lists terms in first-seen order.
	Vocabulary            []string
	TotalDocuments        int
	AverageDocumentLength float64
	EmbeddingDimensions   int
	SizeBytes             int64
	BuiltAt               time.Time
	Generation            uint64
}

// IDF returns the inverse document frequency of term, 0 when absent.
func (s *Snapshot) IDF(term string) float64 {
	if s == nil {
		return 0
	}
	if e, ok := s.Terms[term]; ok {
		return e.IDF
	}
	return 0
}

// Postings returns the posting list of term, nil when absent.
func (s *Snapshot) Postings(term string) PostingList {
	if s == nil {
		return nil
	}
	if e, ok := s.Terms[term]; ok {
		return e.Postings
	}
	return nil
}

// Contains reports whether term occurs anywhere in the corpus.
func (s *Snapshot) Contains(term string) bool {
	if s == nil {
		return false
	}
	_, ok := s.Terms[term]
	return ok
}

// Entry looks up a document by id.
func (s *Snapshot) Entry(docID string) (*DocumentEntry, bool) {
	if s == nil {
		return nil, false
	}
	e, ok := s.Documents[docID]
	return e, ok
}

// Ordered returns the document entries in corpus order.
func (s *Snapshot) Ordered() []*DocumentEntry {
	if s == nil {
		return nil
	}
	out := make([]*DocumentEntry, 0, len(s.Order))
	for _, id := range s.Order {
		out = append(out, s.Documents[id])
	}
	return out
}

// Empty reports whether the snapshot holds no documents.
func (s *Snapshot) Empty() bool {
	return s == nil || s.TotalDocuments == 0
}

// Age is the time elapsed since the snapshot was built.
func (s *Snapshot) Age(now time.Time) time.Duration {
	if s == nil || s.BuiltAt.IsZero() {
		return 0
	}
	return now.Sub(s.BuiltAt)
}
