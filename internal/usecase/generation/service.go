package generation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/logger"
)

const systemPrompt = "You are the user's personal knowledge assistant. " +
	"You answer strictly from the saved content you are given."

// Config holds sampling settings.
type Config struct {
	MaxTokens   int
	Temperature float32
	Language    string
}

// Result is the outcome of one generation. Failures are values, not errors.
type Result struct {
	Success bool
	Answer  string
	Err     error
	Usage   domain.TokenUsage
}

// Generator answers a question from a context block via a generative model.
type Generator struct {
	llm    domain.Completer
	cfg    Config
	logger *zap.Logger
}

// New creates a generator.
func New(llm domain.Completer, cfg Config, logger *zap.Logger) *Generator {
	return &Generator{llm: llm, cfg: cfg, logger: logger}
}

// Generate never returns an error: provider failures and empty replies
// come back as Result{Success: false}.
func (g *Generator) Generate(ctx context.Context, question, contextText string) Result {
	log := logger.FromContext(ctx, g.logger)

	c, err := g.llm.Complete(ctx, domain.CompletionRequest{
		System:      systemPrompt,
		Prompt:      BuildPrompt(question, contextText, g.cfg.Language),
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		log.Error("Answer generation failed", zap.Error(err))
		return Result{Err: fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)}
	}

	text := strings.TrimSpace(c.Text)
	if text == "" {
		log.Error("Answer generation returned empty text", zap.Int("completion_tokens", c.Usage.CompletionTokens))
		return Result{Err: fmt.Errorf("%w: empty completion", domain.ErrGenerationFailed), Usage: c.Usage}
	}

	log.Debug("Answer generated",
		zap.Int("prompt_tokens", c.Usage.PromptTokens),
		zap.Int("completion_tokens", c.Usage.CompletionTokens),
	)
	return Result{Success: true, Answer: text, Usage: c.Usage}
}

// BuildPrompt renders the question-answering prompt.
func BuildPrompt(question, contextText, language string) string {
	var b strings.Builder
	b.WriteString("Answer the question using the context below.\n\n")
	b.WriteString("Context:\n")
	b.WriteString(contextText)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nGuidelines:\n")
	b.WriteString("1. Use only the information in the context.\n")
	b.WriteString("2. Do not make up anything the context does not contain.\n")
	b.WriteString("3. If the context is not enough to answer, say so plainly.\n")
	b.WriteString("4. Be specific and useful.\n")
	fmt.Fprintf(&b, "5. Answer in %s.\n\nAnswer:", language)
	return b.String()
}
