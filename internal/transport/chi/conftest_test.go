package chi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain/answer"
	"github.com/kailas-cloud/recall/internal/domain/content"
	"github.com/kailas-cloud/recall/internal/domain/search/candidate"
	"github.com/kailas-cloud/recall/internal/domain/search/request"
	domusage "github.com/kailas-cloud/recall/internal/domain/usage"
	healthuc "github.com/kailas-cloud/recall/internal/usecase/health"
)

const (
	testSecret = "test-secret"
	testAPIKey = "svc-key"
)

type mockAsker struct {
	askFn func(ctx context.Context, question string, scope request.Scope) answer.Response
}

func (m *mockAsker) Ask(ctx context.Context, question string, scope request.Scope) answer.Response {
	if m.askFn != nil {
		return m.askFn(ctx, question, scope)
	}
	return answer.Fallback(answer.OutcomeNoResults, "nothing")
}

type mockSearcher struct {
	searchFn func(ctx context.Context, req *request.Request) []candidate.Candidate
}

func (m *mockSearcher) Limits() request.Limits { return request.DefaultLimits() }

func (m *mockSearcher) SemanticSearch(ctx context.Context, req *request.Request) []candidate.Candidate {
	if m.searchFn != nil {
		return m.searchFn(ctx, req)
	}
	return nil
}

type mockIndexer struct {
	indexFn  func(ctx context.Context, p content.Payload) (string, error)
	deleteFn func(ctx context.Context, ownerID int64, contentID string) error
}

func (m *mockIndexer) IndexOwnContent(ctx context.Context, p content.Payload) (string, error) {
	if m.indexFn != nil {
		return m.indexFn(ctx, p)
	}
	return "point-1", nil
}

func (m *mockIndexer) DeleteOwnContent(ctx context.Context, ownerID int64, contentID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, ownerID, contentID)
	}
	return nil
}

type mockUsage struct {
	reports []domusage.Report
}

func (m *mockUsage) Reports(_ context.Context) []domusage.Report { return m.reports }

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(_ context.Context) healthuc.Report { return m.report }

type testDeps struct {
	asker    *mockAsker
	searcher *mockSearcher
	indexer  *mockIndexer
	usage    *mockUsage
	health   *mockHealth
}

func newDeps() *testDeps {
	return &testDeps{
		asker:    &mockAsker{},
		searcher: &mockSearcher{},
		indexer:  &mockIndexer{},
		usage:    &mockUsage{},
		health:   &mockHealth{report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{}}},
	}
}

func (d *testDeps) handler() http.Handler {
	srv := NewServer(d.asker, d.searcher, d.indexer, d.usage, d.health, Config{
		JWTSecret: testSecret,
		APIKeys:   []string{testAPIKey},
	}, zap.NewNop())
	return srv.Handler()
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func tenantToken(t *testing.T, sub string) string {
	t.Helper()
	return signToken(t, testSecret, jwt.MapClaims{"sub": sub, "exp": time.Now().Add(time.Hour).Unix()})
}

type call struct {
	method string
	path   string
	body   string
	token  string
	apiKey string
}

func do(t *testing.T, h http.Handler, c call) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if c.body != "" {
		req = httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(c.method, c.path, http.NoBody)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}
