// Package parser turns a raw query string into a weighted QueryVector: the
// query's own terms, related terms added by expansion, and the IDF-based
// weight of each against the current snapshot.
package parser

import (
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docrank/internal/lexicon"
	apperrors "github.com/Adithya-Monish-Kumar-K/docrank/pkg/errors"
)

// QueryVector is a processed query.
type QueryVector struct {
	// Raw is the query as received; Lowered is its lowercase form with
	// whitespace runs collapsed.
	Raw     string
	Lowered string
	// Original holds the distinct query terms in query order.
	Original []string
	// Expanded holds related terms not already in Original.
	Expanded []string
	// Weights has an entry for every Original and Expanded term. Terms
	// absent from the corpus are kept with weight 0.
	Weights map[string]float64
	// Words are the unfiltered lowercase query words, for cue detection.
	Words   []string
	Intents []lexicon.Intent
	Recency bool
}

// Terms returns Original followed by Expanded.
func (q *QueryVector) Terms() []string {
	out := make([]string, 0, len(q.Original)+len(q.Expanded))
	out = append(out, q.Original...)
	return append(out, q.Expanded...)
}

// IsOriginal reports whether term came from the query itself.
func (q *QueryVector) IsOriginal(term string) bool {
	for _, t := range q.Original {
		if t == term {
			return true
		}
	}
	return false
}

// Options are the weight multipliers for original and expansion terms.
type Options struct {
	OriginalBoost  float64
	ExpansionBoost float64
}

// DefaultOptions favours the user's own words over expansions.
func DefaultOptions() Options {
	return Options{OriginalBoost: 1.5, ExpansionBoost: 0.7}
}

// Process parses query against snap with DefaultOptions.
func Process(query string, snap *index.Snapshot) (*QueryVector, error) {
	return ProcessWith(query, snap, DefaultOptions())
}

// ProcessWith parses query against snap. It returns ErrNoSearchableTerms
// when neither the query nor its expansion leaves any term.
func ProcessWith(query string, snap *index.Snapshot, opts Options) (*QueryVector, error) {
	lowered := strings.ToLower(strings.Join(strings.Fields(query), " "))
	qv := &QueryVector{
		Raw:     query,
		Lowered: lowered,
		Words:   lexicon.Words(lowered),
		Weights: make(map[string]float64),
	}
	qv.Intents = lexicon.DetectIntents(qv.Words)
	qv.Recency = lexicon.HasRecencyCue(qv.Words)

	for _, term := range tokenizer.Terms(lowered) {
		if _, seen := qv.Weights[term]; seen {
			continue
		}
		qv.Original = append(qv.Original, term)
		qv.Weights[term] = snap.IDF(term) * opts.OriginalBoost
	}

	for _, key := range expansionKeys(qv) {
		for _, phrase := range lexicon.Related(key) {
			for _, term := range tokenizer.Terms(phrase) {
				if _, seen := qv.Weights[term]; seen {
					continue
				}
				qv.Expanded = append(qv.Expanded, term)
				qv.Weights[term] = snap.IDF(term) * opts.ExpansionBoost
			}
		}
	}

	if len(qv.Original) == 0 && len(qv.Expanded) == 0 {
		return qv, apperrors.ErrNoSearchableTerms
	}
	return qv, nil
}

// expansionKeys are the query words and terms that have related-term
// entries, in query order. Raw words matter because short topic words
// like "ai" never survive tokenization.
func expansionKeys(qv *QueryVector) []string {
	seen := make(map[string]struct{})
	var keys []string
	consider := func(w string) {
		if _, dup := seen[w]; dup {
			return
		}
		seen[w] = struct{}{}
		if lexicon.Related(w) != nil {
			keys = append(keys, w)
		}
	}
	for _, w := range qv.Words {
		consider(w)
	}
	for _, t := range qv.Original {
		consider(t)
	}
	return keys
}
