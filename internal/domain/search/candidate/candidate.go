package candidate

// Candidate is one retrieved content reference, produced per query and never persisted.
type Candidate struct {
	ContentID  string
	OwnerID    int64
	Title      string
	Summary    string
	Tags       []string
	Similarity float64
}

// Scores returns the similarity scores in candidate order.
func Scores(cs []Candidate) []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Similarity
	}
	return out
}
