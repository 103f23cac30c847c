package indexing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/content"
	"github.com/kailas-cloud/recall/internal/logger"
)

// DefaultReindexBatch is the number of items embedded per provider call during reindex.
const DefaultReindexBatch = 32

// Config controls point construction.
type Config struct {
	Dimensions          int
	SummaryExcerptChars int
	ReindexBatch        int
}

// Stats counts reindex results.
type Stats struct {
	Indexed int
	Failed  int
}

// Service keeps the vector index in step with content items.
// Every mutation re-embeds the item and replaces all of its points.
type Service struct {
	embed  Embedder
	index  Index
	cfg    Config
	newID  func() string
	logger *zap.Logger
}

// New creates an indexing service.
func New(embed Embedder, index Index, cfg Config, logger *zap.Logger) *Service {
	if cfg.ReindexBatch <= 0 {
		cfg.ReindexBatch = DefaultReindexBatch
	}
	return &Service{embed: embed, index: index, cfg: cfg, newID: uuid.NewString, logger: logger}
}

// EmbeddingText is the text a content item is embedded from.
func EmbeddingText(p content.Payload) string {
	return p.Title + " " + p.Summary + " " + strings.Join(p.Tags, " ")
}

// IndexContent embeds the item and replaces its points with a single new one.
// Returns the new point id. Nothing is written when the embedding fails.
func (s *Service) IndexContent(ctx context.Context, p content.Payload) (string, error) {
	if strings.TrimSpace(p.ContentID) == "" {
		return "", fmt.Errorf("%w: content id is required", domain.ErrInvalidContent)
	}
	return s.write(ctx, p, s.embed.Embed(ctx, EmbeddingText(p)))
}

func (s *Service) write(ctx context.Context, p content.Payload, vec []float32) (string, error) {
	if domain.IsZeroVector(vec) {
		return "", fmt.Errorf("content %s: %w", p.ContentID, domain.ErrEmbeddingFailed)
	}

	pointID := s.newID()
	v, err := content.New(pointID, vec, p, s.cfg.Dimensions, s.cfg.SummaryExcerptChars)
	if err != nil {
		return "", fmt.Errorf("content %s: %w", p.ContentID, err)
	}

	// the previous points stay searchable until the new one is written
	if err := s.index.Upsert(ctx, v); err != nil {
		return "", fmt.Errorf("upsert point: %w", err)
	}
	if err := s.index.DeleteStalePoints(ctx, p.ContentID, pointID); err != nil {
		return "", fmt.Errorf("delete previous points: %w", err)
	}

	logger.FromContext(ctx, s.logger).Debug("Content indexed",
		zap.String("content_id", p.ContentID),
		zap.String("point_id", pointID),
	)
	return pointID, nil
}

// IndexOwnContent is IndexContent for a tenant: it refuses to replace points
// that another tenant owns.
func (s *Service) IndexOwnContent(ctx context.Context, p content.Payload) (string, error) {
	if strings.TrimSpace(p.ContentID) == "" {
		return "", fmt.Errorf("%w: content id is required", domain.ErrInvalidContent)
	}
	if err := s.checkOwner(ctx, p.ContentID, p.OwnerID); err != nil {
		return "", err
	}
	return s.IndexContent(ctx, p)
}

// DeleteOwnContent is DeleteContent for a tenant: points owned by another
// tenant are not removed.
func (s *Service) DeleteOwnContent(ctx context.Context, ownerID int64, contentID string) error {
	if strings.TrimSpace(contentID) == "" {
		return fmt.Errorf("%w: content id is required", domain.ErrInvalidContent)
	}
	if err := s.checkOwner(ctx, contentID, ownerID); err != nil {
		return err
	}
	return s.DeleteContent(ctx, contentID)
}

// checkOwner fails with ErrForbidden when any stored point of the item
// belongs to another tenant. Unknown items pass.
func (s *Service) checkOwner(ctx context.Context, contentID string, ownerID int64) error {
	points, err := s.index.Points(ctx, contentID)
	if err != nil {
		return fmt.Errorf("read content %s: %w", contentID, err)
	}
	for _, pt := range points {
		if pt.OwnerID() != ownerID {
			logger.FromContext(ctx, s.logger).Warn("Content owned by another tenant",
				zap.String("content_id", contentID),
				zap.Int64("owner_id", pt.OwnerID()),
				zap.Int64("tenant_id", ownerID),
			)
			return fmt.Errorf("%w: content %s", domain.ErrForbidden, contentID)
		}
	}
	return nil
}

// DeleteContent removes every point of the content item. Idempotent.
func (s *Service) DeleteContent(ctx context.Context, contentID string) error {
	if strings.TrimSpace(contentID) == "" {
		return fmt.Errorf("%w: content id is required", domain.ErrInvalidContent)
	}
	if err := s.index.DeleteByContentID(ctx, contentID); err != nil {
		return fmt.Errorf("delete content %s: %w", contentID, err)
	}
	return nil
}

// Reindex re-embeds every item of src in batches. An item that cannot be read,
// embedded or written is logged and counted; only source or cancellation errors
// abort the run.
func (s *Service) Reindex(ctx context.Context, src ContentSource) (Stats, error) {
	log := logger.FromContext(ctx, s.logger)

	if err := s.index.EnsureCollection(ctx); err != nil {
		return Stats{}, fmt.Errorf("ensure collection: %w", err)
	}

	var stats Stats
	batch := make([]content.Payload, 0, s.cfg.ReindexBatch)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = EmbeddingText(p)
		}
		vecs := s.embed.EmbedBatch(ctx, texts)

		for i, p := range batch {
			var vec []float32
			if i < len(vecs) {
				vec = vecs[i]
			}
			if _, err := s.write(ctx, p, vec); err != nil {
				stats.Failed++
				log.Warn("Reindex item failed", zap.String("content_id", p.ContentID), zap.Error(err))
				continue
			}
			stats.Indexed++
		}
		batch = batch[:0]
	}

	err := src.Each(ctx, func(p content.Payload, itemErr error) error {
		if err := ctx.Err(); err != nil {
			return err //nolint:wrapcheck // cancellation
		}
		if itemErr != nil {
			stats.Failed++
			log.Warn("Reindex item unreadable", zap.String("content_id", p.ContentID), zap.Error(itemErr))
			return nil
		}
		batch = append(batch, p)
		if len(batch) == cap(batch) {
			flush()
		}
		return nil
	})
	if err == nil {
		flush()
	}

	log.Info("Reindex finished",
		zap.Int("indexed", stats.Indexed),
		zap.Int("failed", stats.Failed),
		zap.Bool("aborted", err != nil),
	)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return stats, err //nolint:wrapcheck // cancellation
		}
		return stats, fmt.Errorf("read content: %w", err)
	}
	return stats, nil
}
