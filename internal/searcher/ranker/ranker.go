// Package ranker scores matches with Okapi BM25.
package ranker

import "math"

const (
	k1 = 1.2
	b  = 0.75
)

type ScoredDoc struct {
	DocID uint32  `json:"doc_id"`
	Score float64 `json:"score"`
}

// FieldStats holds the corpus statistics of one field.
type FieldStats struct {
	TotalDocs    int
	AvgDocLength float64
}

// IDF is the inverse document frequency of a term found in docFreq of
// totalDocs documents.
func IDF(totalDocs int, docFreq int) float64 {
	numerator := float64(totalDocs) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

// BM25 scores a term or phrase occurring termFreq times in a field of
// docLength tokens. idf is the summed IDF of the matched terms.
func BM25(idf float64, termFreq int, docLength int, stats FieldStats) float64 {
	return idf * computeTFNorm(float64(termFreq), float64(docLength), stats.AvgDocLength)
}

func computeTFNorm(termFreq float64, docLength float64, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}
