package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/logger"
	"github.com/kailas-cloud/recall/internal/metrics"
)

// Chat is a domain.Completer over the OpenAI chat completions API.
type Chat struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// ChatConfig holds the generative model settings.
type ChatConfig struct {
	ClientConfig
	Model string
}

// NewChat creates a chat completion client.
func NewChat(cfg ChatConfig, logger *zap.Logger) *Chat {
	return &Chat{client: newClient(cfg.ClientConfig), model: cfg.Model, logger: logger}
}

// Complete sends a system + user message pair and returns the first choice.
func (c *Chat) Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	elapsed := time.Since(start).Seconds()
	if err != nil {
		metrics.GenerationRequestDuration.WithLabelValues(c.model, "error").Observe(elapsed)
		return domain.Completion{}, apiError("chat", err, domain.ErrGenerationFailed)
	}
	metrics.GenerationRequestDuration.WithLabelValues(c.model, "success").Observe(elapsed)
	metrics.GenerationTokensTotal.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.GenerationTokensTotal.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))

	if len(resp.Choices) == 0 {
		return domain.Completion{}, fmt.Errorf("chat response has no choices: %w", domain.ErrGenerationFailed)
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonLength {
		logger.FromContext(ctx, c.logger).Warn("Completion truncated by max_tokens",
			zap.String("model", c.model), zap.Int("max_tokens", req.MaxTokens))
	}

	return domain.Completion{
		Text: strings.TrimSpace(choice.Message.Content),
		Usage: domain.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}
