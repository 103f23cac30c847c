package recall

import (
	"context"

	"github.com/kailas-cloud/recall/internal/domain/answer"
	"github.com/kailas-cloud/recall/internal/domain/content"
	"github.com/kailas-cloud/recall/internal/domain/search/candidate"
	"github.com/kailas-cloud/recall/internal/domain/search/request"
	healthuc "github.com/kailas-cloud/recall/internal/usecase/health"
)

// --- askUseCase mock ---

type mockAskUC struct {
	askFn func(ctx context.Context, question string, scope request.Scope) answer.Response
}

func (m *mockAskUC) Ask(ctx context.Context, question string, scope request.Scope) answer.Response {
	return m.askFn(ctx, question, scope)
}

// --- searchUseCase mock ---

type mockSearchUC struct {
	searchFn func(ctx context.Context, req *request.Request) []candidate.Candidate
}

func (m *mockSearchUC) Limits() request.Limits { return request.DefaultLimits() }

func (m *mockSearchUC) SemanticSearch(ctx context.Context, req *request.Request) []candidate.Candidate {
	return m.searchFn(ctx, req)
}

// --- indexUseCase mock ---

type mockIndexUC struct {
	indexFn  func(ctx context.Context, p content.Payload) (string, error)
	deleteFn func(ctx context.Context, contentID string) error
}

func (m *mockIndexUC) IndexContent(ctx context.Context, p content.Payload) (string, error) {
	return m.indexFn(ctx, p)
}

func (m *mockIndexUC) DeleteContent(ctx context.Context, contentID string) error {
	return m.deleteFn(ctx, contentID)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	report healthuc.Report
}

func (m *mockHealthUC) Check(_ context.Context) healthuc.Report { return m.report }

// --- public provider fakes ---

type mockEmbedder struct {
	fn func(ctx context.Context, text string) (EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	return m.fn(ctx, text)
}

type mockBatchEmbedder struct {
	mockEmbedder
	batchFn func(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

func (m *mockBatchEmbedder) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	return m.batchFn(ctx, texts)
}

type mockCompleter struct {
	fn func(ctx context.Context, req CompletionRequest) (Completion, error)
}

func (m *mockCompleter) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	return m.fn(ctx, req)
}

// constEmbedder maps every text to the same unit vector.
func constEmbedder() *mockEmbedder {
	return &mockEmbedder{fn: func(_ context.Context, _ string) (EmbeddingResult, error) {
		return EmbeddingResult{Embedding: []float32{1, 0, 0}, PromptTokens: 3, TotalTokens: 3}, nil
	}}
}
