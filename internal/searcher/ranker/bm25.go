package ranker

// BM25 scores a document against weighted query terms. Each term's weight
// stands in for its IDF; non-positive weights contribute nothing, and a zero
// average length makes the whole score 0.
func BM25(terms []string, weights map[string]float64, tf map[string]int, docLength int, avgDocLength, k1, b float64) float64 {
	if avgDocLength <= 0 {
		return 0
	}
	var score float64
	for _, term := range terms {
		w := weights[term]
		freq := tf[term]
		if w <= 0 || freq == 0 {
			continue
		}
		score += w * computeTFNorm(float64(freq), float64(docLength), avgDocLength, k1, b)
	}
	return score
}

func computeTFNorm(termFreq, docLength, avgDocLength, k1, b float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}
