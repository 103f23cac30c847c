package answer

import "math"

// Outcome is the internal terminal state of an ask. The response shape collapses
// every failure into the same fallback; the outcome keeps them apart for logs and metrics.
type Outcome string

// Outcome values.
const (
	OutcomeAnswered         Outcome = "answered"
	OutcomeNoResults        Outcome = "no_results"
	OutcomeGenerationFailed Outcome = "generation_failed"
	OutcomeFault            Outcome = "fault"
)

// Source is a cited content item.
type Source struct {
	ContentID  string  `json:"content_id"`
	Title      string  `json:"title"`
	Similarity float64 `json:"similarity_score"`
}

// Response is the result of one ask.
type Response struct {
	Answer     string   `json:"answer"`
	Sources    []Source `json:"sources"`
	Confidence float64  `json:"confidence"`

	outcome Outcome
}

// Answered builds a successful response.
func Answered(text string, sources []Source, confidence float64) Response {
	if sources == nil {
		sources = []Source{}
	}
	return Response{Answer: text, Sources: sources, Confidence: confidence, outcome: OutcomeAnswered}
}

// Fallback builds a response with a fixed message, no sources and zero confidence.
func Fallback(o Outcome, message string) Response {
	return Response{Answer: message, Sources: []Source{}, Confidence: 0, outcome: o}
}

// Outcome returns the terminal state that produced the response.
func (r Response) Outcome() Outcome { return r.outcome }

// RoundScore rounds a similarity score to 3 decimals for citation.
func RoundScore(s float64) float64 {
	return math.Round(s*1000) / 1000
}
