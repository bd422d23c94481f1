package index

import (
	"sync"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer/tokenizer"
)

type termAccumulator struct {
	postings PostingList
	total    int
}

// MemoryIndex accumulates postings while a snapshot is built. Terms keep
// their first-seen order and postings keep document insertion order, so two
// builds over the same documents produce identical structures.
type MemoryIndex struct {
	mu       sync.RWMutex
	index    map[string]*termAccumulator
	terms    []string
	docCount int
	size     int64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		index: make(map[string]*termAccumulator),
	}
}

// AddDocument records the tokens of one document and returns its term
// frequencies.
func (m *MemoryIndex) AddDocument(docID string, tokens []tokenizer.Token) map[string]int {
	termData := make(map[string]*Posting)
	order := make([]string, 0, len(tokens))

	for _, token := range tokens {
		p, exists := termData[token.Term]
		if !exists {
			p = &Posting{
				DocID:     docID,
				Positions: make([]int, 0, 4),
			}
			termData[token.Term] = p
			order = append(order, token.Term)
		}
		p.Frequency++
		p.Positions = append(p.Positions, token.Position)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tf := make(map[string]int, len(termData))
	for _, term := range order {
		posting := termData[term]
		acc, exists := m.index[term]
		if !exists {
			acc = &termAccumulator{}
			m.index[term] = acc
			m.terms = append(m.terms, term)
		}
		acc.postings = append(acc.postings, *posting)
		acc.total += posting.Frequency
		tf[term] = posting.Frequency
		m.size += int64(len(term) + len(docID) + len(posting.Positions)*8 + 64)
	}
	m.docCount++
	return tf
}

// Search returns the postings of term in document order.
func (m *MemoryIndex) Search(term string) PostingList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acc, exists := m.index[term]
	if !exists {
		return nil
	}
	result := make(PostingList, len(acc.postings))
	copy(result, acc.postings)
	return result
}

// Vocabulary returns every term in first-seen order.
func (m *MemoryIndex) Vocabulary() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.terms))
	copy(out, m.terms)
	return out
}

// Entries converts the accumulated postings into term entries. idf is
// applied once per term.
func (m *MemoryIndex) Entries(idf func(df int) float64) map[string]*TermEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make(map[string]*TermEntry, len(m.index))
	for term, acc := range m.index {
		postings := make(PostingList, len(acc.postings))
		copy(postings, acc.postings)
		entries[term] = &TermEntry{
			Term:           term,
			Postings:       postings,
			TotalFrequency: acc.total,
			IDF:            idf(len(postings)),
		}
	}
	return entries
}

// Size is an approximate memory footprint in bytes.
func (m *MemoryIndex) Size() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

func (m *MemoryIndex) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docCount
}

func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = make(map[string]*termAccumulator)
	m.terms = nil
	m.docCount = 0
	m.size = 0
}
