package index

// Posting records one document's occurrences of a term.
type Posting struct {
	DocID     string
	Frequency int
	Positions []int
}

// PostingList is ordered by the position of each document in the corpus.
type PostingList []Posting

// DocIDs returns the document ids of the list in order.
func (pl PostingList) DocIDs() []string {
	ids := make([]string, len(pl))
	for i, p := range pl {
		ids[i] = p.DocID
	}
	return ids
}

// TermEntry is the inverted-index record of a single vocabulary term.
type TermEntry struct {
	Term           string
	Postings       PostingList
	TotalFrequency int
	IDF            float64
}

// DocumentFrequency is the number of documents containing the term.
func (e *TermEntry) DocumentFrequency() int {
	if e == nil {
		return 0
	}
	return len(e.Postings)
}
