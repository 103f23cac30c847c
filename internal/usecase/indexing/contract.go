package indexing

import (
	"context"

	"github.com/kailas-cloud/recall/internal/domain/content"
)

// Embedder vectorizes text. Zero vectors mean the embedding failed.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
	EmbedBatch(ctx context.Context, texts []string) [][]float32
}

// Index is the write side of the content vector index.
type Index interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, v content.Vector) error
	DeleteByContentID(ctx context.Context, contentID string) error
	DeleteStalePoints(ctx context.Context, contentID, keepPointID string) error
	Points(ctx context.Context, contentID string) ([]content.Vector, error)
}

// ContentSource streams indexable content items. A non-nil error passed to fn
// means that one item could not be read; returning nil from fn skips it.
type ContentSource interface {
	Each(ctx context.Context, fn func(p content.Payload, err error) error) error
}
