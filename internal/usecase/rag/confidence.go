package rag

import "github.com/kailas-cloud/recall/internal/domain/search/candidate"

const (
	perSourceBonus = 0.1
	maxSourceBonus = 0.3
)

// EstimateConfidence is a heuristic, not a calibrated probability:
// min(mean similarity + min(0.1*n, 0.3), 1). It grows with the mean score and
// with the number of sources up to the cap, and is 0 for no candidates.
// Strongly negative scores can push it below 0; it is clamped there.
func EstimateConfidence(cs []candidate.Candidate) float64 {
	if len(cs) == 0 {
		return 0
	}
	var sum float64
	for _, c := range cs {
		sum += c.Similarity
	}
	n := float64(len(cs))
	conf := sum/n + min(perSourceBonus*n, maxSourceBonus)
	return max(min(conf, 1.0), 0)
}
