package embedding

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/metrics"
)

// Zero-vector reasons reported in metrics and logs.
const (
	reasonBlank         = "blank"
	reasonProviderError = "provider_error"
	reasonDimMismatch   = "dimension_mismatch"
)

// Service turns text into vectors of a fixed dimension. It never fails:
// any problem yields the zero-vector sentinel for the affected item.
type Service struct {
	provider domain.Embedder
	dim      int
	maxChars int
	logger   *zap.Logger
}

// NewService creates an embedding service over a provider chain.
func NewService(provider domain.Embedder, dim, maxChars int, logger *zap.Logger) *Service {
	return &Service{provider: provider, dim: dim, maxChars: maxChars, logger: logger}
}

// Dimensions returns the configured vector size.
func (s *Service) Dimensions() int { return s.dim }

// Preprocess trims text, collapses runs of whitespace to one space and
// truncates the result to maxChars runes (0 = no limit).
func Preprocess(text string, maxChars int) string {
	out := strings.Join(strings.Fields(text), " ")
	if maxChars <= 0 {
		return out
	}
	if r := []rune(out); len(r) > maxChars {
		return string(r[:maxChars])
	}
	return out
}

// Embed returns the embedding of text, or the zero vector on failure.
func (s *Service) Embed(ctx context.Context, text string) []float32 {
	clean := Preprocess(text, s.maxChars)
	if clean == "" {
		return s.fallback(reasonBlank, nil)
	}

	res, err := s.provider.Embed(ctx, clean)
	if err != nil {
		return s.fallback(reasonProviderError, err)
	}
	if len(res.Embedding) != s.dim {
		return s.fallback(reasonDimMismatch, nil, zap.Int("got", len(res.Embedding)))
	}
	return res.Embedding
}

// EmbedBatch embeds texts preserving input order. Blank items get the zero vector
// without reaching the provider; the rest go out in one batch call.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out
	}

	pending := make([]string, 0, len(texts))
	positions := make([]int, 0, len(texts))
	for i, t := range texts {
		clean := Preprocess(t, s.maxChars)
		if clean == "" {
			out[i] = s.fallback(reasonBlank, nil)
			continue
		}
		pending = append(pending, clean)
		positions = append(positions, i)
	}
	if len(pending) == 0 {
		return out
	}

	res, err := s.batch(ctx, pending)
	if err == nil && len(res.Embeddings) != len(pending) {
		err = domain.ErrEmbeddingProviderError
	}
	if err != nil {
		for _, pos := range positions {
			out[pos] = s.fallback(reasonProviderError, err)
		}
		return out
	}

	for j, pos := range positions {
		vec := res.Embeddings[j]
		if len(vec) != s.dim {
			out[pos] = s.fallback(reasonDimMismatch, nil, zap.Int("got", len(vec)))
			continue
		}
		out[pos] = vec
	}
	return out
}

func (s *Service) batch(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := s.provider.(domain.BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts) //nolint:wrapcheck // logged by fallback
	}
	return domain.BatchFallback(ctx, s.provider, texts)
}

func (s *Service) fallback(reason string, err error, fields ...zap.Field) []float32 {
	metrics.EmbeddingFallbacksTotal.WithLabelValues(reason).Inc()
	if reason != reasonBlank {
		fields = append(fields, zap.String("reason", reason), zap.Int("dimensions", s.dim))
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		s.logger.Warn("Embedding failed, using zero vector", fields...)
	}
	return domain.ZeroVector(s.dim)
}
