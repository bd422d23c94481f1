// Package corpus turns raw document sources into normalised Document records.
// A Source yields (filename, content) pairs; Parse extracts the title, tags
// and quality prior of each one, and Load applies Parse to a whole source,
// skipping anything that does not parse.
package corpus

import "context"

// RawDocument is one unparsed document as a Source returns it.
type RawDocument struct {
	Filename string
	Content  string
}

// Document is a parsed, immutable corpus entry. Body keeps the original
// markup for display and structural matching; Stripped is the markup-free
// text used for term extraction.
type Document struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	Stripped  string   `json:"-"`
	Tags      []string `json:"tags"`
	SourceID  string   `json:"source_id"`
	Relevance float64  `json:"relevance"`
}

// Source supplies the raw corpus. Load must return the entire current
// document set; callers never ask for partial updates.
type Source interface {
	Load(ctx context.Context) ([]RawDocument, error)
	Name() string
}
