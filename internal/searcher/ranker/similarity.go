package ranker

import "math"

// SparseCosine is the cosine similarity between the query weights and a
// document vector whose norm is already known. Only terms shared with the
// query contribute to the dot product.
func SparseCosine(terms []string, query map[string]float64, doc map[string]float64, docNorm float64) float64 {
	if docNorm == 0 {
		return 0
	}
	var dot, qNorm float64
	for _, term := range terms {
		w := query[term]
		qNorm += w * w
		dot += w * doc[term]
	}
	if qNorm == 0 {
		return 0
	}
	return dot / (math.Sqrt(qNorm) * docNorm)
}

// Cosine is the cosine similarity of two dense vectors. Extra dimensions of
// the longer vector are ignored.
func Cosine(a, b []float64) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
