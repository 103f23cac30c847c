package domain

import "context"

// Completer produces a single chat completion.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// CompletionRequest is one system+user exchange with sampling limits.
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// TokenUsage is the token accounting reported by a generative model.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completion is the model's reply.
type Completion struct {
	Text  string
	Usage TokenUsage
}
