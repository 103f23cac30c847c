package retrieval

import (
	"context"

	"github.com/kailas-cloud/recall/internal/domain/search/candidate"
	"github.com/kailas-cloud/recall/internal/domain/search/filter"
)

type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) []float32
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) []float32 {
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return []float32{0.1, 0.2, 0.3}
}

type searchCall struct {
	vec       []float32
	filter    filter.Expression
	limit     int
	threshold float64
}

type mockIndex struct {
	searchFn func(ctx context.Context, vec []float32, f filter.Expression, limit int, threshold float64) (
		[]candidate.Candidate, error)
	calls []searchCall
}

func (m *mockIndex) Search(
	ctx context.Context, vec []float32, f filter.Expression, limit int, threshold float64,
) ([]candidate.Candidate, error) {
	m.calls = append(m.calls, searchCall{vec: vec, filter: f, limit: limit, threshold: threshold})
	if m.searchFn != nil {
		return m.searchFn(ctx, vec, f, limit, threshold)
	}
	return nil, nil
}
