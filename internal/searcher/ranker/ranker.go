// Package ranker scores candidate documents against a processed query. The
// raw score of a document is the sum of a fixed list of named rules; raw
// scores are normalised to 0-100 and sorted, with ties kept in candidate
// order.
package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/config"
)

// SearchResult is one ranked document.
type SearchResult struct {
	DocumentID string             `json:"doc_id"`
	Title      string             `json:"title"`
	Body       string             `json:"body"`
	Tags       []string           `json:"tags"`
	SourceID   string             `json:"source_id"`
	Score      float64            `json:"score"`
	RawScore   float64            `json:"raw_score"`
	Signals    map[string]float64 `json:"signals,omitempty"`
}

// Ranker applies the scoring rules.
type Ranker struct {
	cfg          config.ScoringConfig
	maxBodyChars int
	rules        []Rule
}

// New creates a Ranker. Bodies in results are truncated to maxBodyChars
// runes; zero or less keeps them whole.
func New(cfg config.ScoringConfig, maxBodyChars int) *Ranker {
	return &Ranker{
		cfg:          cfg,
		maxBodyChars: maxBodyChars,
		rules:        Rules(cfg),
	}
}

// Rules returns the rule list in evaluation order.
func (r *Ranker) Rules() []Rule {
	return r.rules
}

type scored struct {
	candidate *Candidate
	raw       float64
	score     float64
	signals   []Contribution
}

// Rank scores every document sharing a term with qv and returns at most
// maxResults of them, best first. maxResults <= 0 returns all. Truncation
// happens only after every candidate has been scored.
func (r *Ranker) Rank(qv *parser.QueryVector, snap *index.Snapshot, maxResults int) []SearchResult {
	if qv == nil || snap.Empty() {
		return []SearchResult{}
	}
	q := NewQuery(qv, snap)

	var all []scored
	for _, entry := range candidates(q, snap) {
		c := NewCandidate(entry, snap.AverageDocumentLength)
		signals := r.Evaluate(q, c)
		raw := Sum(signals)
		if raw <= r.cfg.MinScore {
			continue
		}
		all = append(all, scored{
			candidate: c,
			raw:       raw,
			score:     r.Normalize(raw),
			signals:   signals,
		})
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].score > all[j].score
	})
	if maxResults > 0 && len(all) > maxResults {
		all = all[:maxResults]
	}

	results := make([]SearchResult, 0, len(all))
	for _, s := range all {
		doc := s.candidate.Document
		results = append(results, SearchResult{
			DocumentID: doc.ID,
			Title:      doc.Title,
			Body:       truncate(doc.Body, r.maxBodyChars),
			Tags:       doc.Tags,
			SourceID:   doc.SourceID,
			Score:      s.score,
			RawScore:   round4(s.raw),
			Signals:    signalMap(s.signals),
		})
	}
	return results
}

// Explain scores a single document regardless of whether it would be a
// candidate, returning every rule's contribution.
func (r *Ranker) Explain(qv *parser.QueryVector, snap *index.Snapshot, docID string) ([]Contribution, bool) {
	entry, ok := snap.Entry(docID)
	if !ok || qv == nil {
		return nil, false
	}
	return r.Evaluate(NewQuery(qv, snap), NewCandidate(entry, snap.AverageDocumentLength)), true
}

// Evaluate applies every rule to c.
func (r *Ranker) Evaluate(q *Query, c *Candidate) []Contribution {
	out := make([]Contribution, len(r.rules))
	for i, rule := range r.rules {
		v := rule.Apply(q, c)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		out[i] = Contribution{Label: rule.Label, Value: v}
	}
	return out
}

// Sum adds contributions in order.
func Sum(contributions []Contribution) float64 {
	var total float64
	for _, c := range contributions {
		total += c.Value
	}
	return total
}

// Normalize maps a raw score onto 0-100.
func (r *Ranker) Normalize(raw float64) float64 {
	if r.cfg.Scale <= 0 {
		return 0
	}
	return math.Max(0, math.Min(100, math.Round(raw/r.cfg.Scale*100)))
}

// candidates returns the union of the posting lists of every query term,
// each document once, in first-seen order.
func candidates(q *Query, snap *index.Snapshot) []*index.DocumentEntry {
	seen := make(map[string]struct{})
	var out []*index.DocumentEntry
	for _, term := range q.terms {
		for _, p := range snap.Postings(term) {
			if _, dup := seen[p.DocID]; dup {
				continue
			}
			seen[p.DocID] = struct{}{}
			if entry, ok := snap.Entry(p.DocID); ok {
				out = append(out, entry)
			}
		}
	}
	return out
}

func signalMap(contributions []Contribution) map[string]float64 {
	m := make(map[string]float64)
	for _, c := range contributions {
		if c.Value != 0 {
			m[c.Label] = round4(c.Value)
		}
	}
	return m
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func truncate(body string, limit int) string {
	if limit <= 0 {
		return body
	}
	n := 0
	for i := range body {
		if n == limit {
			return body[:i] + "..."
		}
		n++
	}
	return body
}
