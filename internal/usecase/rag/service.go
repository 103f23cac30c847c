package rag

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/answer"
	"github.com/kailas-cloud/recall/internal/domain/search/candidate"
	"github.com/kailas-cloud/recall/internal/domain/search/request"
	"github.com/kailas-cloud/recall/internal/logger"
	"github.com/kailas-cloud/recall/internal/metrics"
)

// Config holds retrieval bounds and the fixed fallback messages.
type Config struct {
	Limit            int
	ScoreThreshold   float64
	MaxContextLength int
	NoResultsMessage string
	FailureMessage   string
	FaultMessage     string
}

// Orchestrator answers questions from the user's saved content.
type Orchestrator struct {
	retriever Retriever
	generator Generator
	cfg       Config
	logger    *zap.Logger
}

// New creates an orchestrator.
func New(r Retriever, g Generator, cfg Config, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{retriever: r, generator: g, cfg: cfg, logger: logger}
}

// Ask runs retrieve, build context, generate and score. It never fails: every
// failure becomes a fallback response with no sources and zero confidence,
// and the distinct outcome is only visible in logs and metrics.
func (o *Orchestrator) Ask(ctx context.Context, question string, scope request.Scope) (resp answer.Response) {
	log := logger.FromContext(ctx, o.logger).With(zap.Stringer("scope", scope))

	defer func() {
		if p := recover(); p != nil {
			log.Error("Ask panicked",
				zap.Any("panic", p),
				zap.String("question", question),
				zap.Stack("stack"),
			)
			resp = answer.Fallback(answer.OutcomeFault, o.cfg.FaultMessage)
		}
		metrics.RAGAnswersTotal.WithLabelValues(string(resp.Outcome())).Inc()
	}()

	cs, err := o.retriever.Retrieve(ctx, question, scope, o.cfg.Limit, o.cfg.ScoreThreshold)
	switch {
	case errors.Is(err, domain.ErrEmbeddingFailed):
		return answer.Fallback(answer.OutcomeNoResults, o.cfg.NoResultsMessage)
	case err != nil:
		log.Error("Retrieval failed", zap.String("question", question), zap.Error(err))
		return answer.Fallback(answer.OutcomeFault, o.cfg.FaultMessage)
	case len(cs) == 0:
		return answer.Fallback(answer.OutcomeNoResults, o.cfg.NoResultsMessage)
	}

	contextText := BuildContext(cs, o.cfg.MaxContextLength)
	if contextText == "" {
		log.Warn("Context is empty after packing",
			zap.Int("candidates", len(cs)),
			zap.Int("max_context_length", o.cfg.MaxContextLength),
		)
	}

	res := o.generator.Generate(ctx, question, contextText)
	if !res.Success {
		log.Warn("Answer generation failed, withholding sources",
			zap.Int("candidates", len(cs)),
			zap.Error(res.Err),
		)
		return answer.Fallback(answer.OutcomeGenerationFailed, o.cfg.FailureMessage)
	}

	conf := EstimateConfidence(cs)
	log.Info("Question answered",
		zap.Int("sources", len(cs)),
		zap.Float64("confidence", conf),
		zap.Int("total_tokens", res.Usage.TotalTokens),
	)
	return answer.Answered(res.Answer, toSources(cs), conf)
}

func toSources(cs []candidate.Candidate) []answer.Source {
	out := make([]answer.Source, len(cs))
	for i, c := range cs {
		out[i] = answer.Source{
			ContentID:  c.ContentID,
			Title:      c.Title,
			Similarity: answer.RoundScore(c.Similarity),
		}
	}
	return out
}

// String renders the config for startup logs.
func (c Config) String() string {
	return fmt.Sprintf("limit=%d threshold=%.2f max_context=%d", c.Limit, c.ScoreThreshold, c.MaxContextLength)
}
