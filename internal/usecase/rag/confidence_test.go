package rag

import (
	"math"
	"testing"

	"github.com/kailas-cloud/recall/internal/domain/search/candidate"
)

func withScores(scores ...float64) []candidate.Candidate {
	out := make([]candidate.Candidate, len(scores))
	for i, s := range scores {
		out[i] = candidate.Candidate{Similarity: s}
	}
	return out
}

func TestEstimateConfidence(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []float64{0.85}, 0.95},
		{"three capped at one", []float64{0.8, 0.8, 0.8}, 1.0},
		{"bonus capped at 0.3", []float64{0.4, 0.4, 0.4, 0.4, 0.4}, 0.7},
		{"two mixed", []float64{0.5, 0.3}, 0.6},
		{"negative clamped", []float64{-0.9}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EstimateConfidence(withScores(tt.scores...)); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("EstimateConfidence(%v) = %v, want %v", tt.scores, got, tt.want)
			}
		})
	}
}

func TestEstimateConfidence_UniformScores(t *testing.T) {
	for n := 1; n <= 8; n++ {
		for _, s := range []float64{0, 0.25, 0.5, 0.65, 0.9} {
			scores := make([]float64, n)
			for i := range scores {
				scores[i] = s
			}
			want := math.Min(s+math.Min(0.1*float64(n), 0.3), 1.0)
			if got := EstimateConfidence(withScores(scores...)); math.Abs(got-want) > 1e-9 {
				t.Errorf("n=%d s=%v: got %v, want %v", n, s, got, want)
			}
		}
	}
}

func TestEstimateConfidence_MonotonicInScore(t *testing.T) {
	base := []float64{0.3, 0.5, 0.2}
	for i := range base {
		prev := -1.0
		for s := -1.0; s <= 1.0; s += 0.05 {
			scores := append([]float64(nil), base...)
			scores[i] = s
			got := EstimateConfidence(withScores(scores...))
			if got < prev-1e-12 {
				t.Fatalf("not monotonic at index %d, score %v: %v < %v", i, s, got, prev)
			}
			if got < 0 || got > 1 {
				t.Fatalf("out of range: %v", got)
			}
			prev = got
		}
	}
}
