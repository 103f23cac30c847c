package search

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/search/candidate"
	"github.com/kailas-cloud/recall/internal/domain/search/request"
)

type mockRetriever struct {
	cs        []candidate.Candidate
	err       error
	query     string
	scope     request.Scope
	limit     int
	threshold float64
}

func (m *mockRetriever) Retrieve(
	_ context.Context, query string, scope request.Scope, limit int, threshold float64,
) ([]candidate.Candidate, error) {
	m.query, m.scope, m.limit, m.threshold = query, scope, limit, threshold
	return m.cs, m.err
}

func mustRequest(t *testing.T, q string, scope request.Scope, limit int, threshold float64) *request.Request {
	t.Helper()
	r, err := request.New(q, scope, limit, threshold, request.DefaultLimits())
	if err != nil {
		t.Fatalf("request.New: %v", err)
	}
	return &r
}

func TestSemanticSearch_UsesSearchDefaults(t *testing.T) {
	m := &mockRetriever{cs: []candidate.Candidate{{ContentID: "1", Similarity: 0.8}}}
	s := New(m, request.DefaultLimits(), zap.NewNop())

	got := s.SemanticSearch(context.Background(), mustRequest(t, " rust ", request.ForTenant(3), 0, -1))
	if len(got) != 1 || got[0].ContentID != "1" {
		t.Fatalf("unexpected result %+v", got)
	}
	if m.query != "rust" || m.limit != 10 || m.threshold != 0.6 {
		t.Errorf("unexpected retrieve args: q=%q limit=%d threshold=%v", m.query, m.limit, m.threshold)
	}
	if id, ok := m.scope.Tenant(); !ok || id != 3 {
		t.Errorf("scope not forwarded")
	}
}

func TestSemanticSearch_FailuresAreEmpty(t *testing.T) {
	for _, err := range []error{domain.ErrEmbeddingFailed, domain.ErrIndexUnavailable} {
		m := &mockRetriever{err: err}
		s := New(m, request.DefaultLimits(), zap.NewNop())

		got := s.SemanticSearch(context.Background(), mustRequest(t, "query", request.Public(), 5, 0.2))
		if got == nil || len(got) != 0 {
			t.Errorf("%v: expected empty non-nil result, got %v", err, got)
		}
	}
}
