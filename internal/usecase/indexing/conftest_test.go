package indexing

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain/content"
)

const testDim = 3

type mockEmbedder struct {
	embedFn      func(ctx context.Context, text string) []float32
	embedBatchFn func(ctx context.Context, texts []string) [][]float32
	texts        []string
	batchSizes   []int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) []float32 {
	m.texts = append(m.texts, text)
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return []float32{0.1, 0.2, 0.3}
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) [][]float32 {
	m.batchSizes = append(m.batchSizes, len(texts))
	m.texts = append(m.texts, texts...)
	if m.embedBatchFn != nil {
		return m.embedBatchFn(ctx, texts)
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out
}

type mockIndex struct {
	ensureFn func(ctx context.Context) error
	upsertFn func(ctx context.Context, v content.Vector) error
	deleteFn func(ctx context.Context, contentID string) error
	staleFn  func(ctx context.Context, contentID, keepPointID string) error
	pointsFn func(ctx context.Context, contentID string) ([]content.Vector, error)

	ops      []string
	upserted []content.Vector
}

func (m *mockIndex) EnsureCollection(ctx context.Context) error {
	m.ops = append(m.ops, "ensure")
	if m.ensureFn != nil {
		return m.ensureFn(ctx)
	}
	return nil
}

func (m *mockIndex) Upsert(ctx context.Context, v content.Vector) error {
	m.ops = append(m.ops, "upsert:"+v.ContentID())
	if m.upsertFn != nil {
		return m.upsertFn(ctx, v)
	}
	m.upserted = append(m.upserted, v)
	return nil
}

func (m *mockIndex) DeleteByContentID(ctx context.Context, contentID string) error {
	m.ops = append(m.ops, "delete:"+contentID)
	if m.deleteFn != nil {
		return m.deleteFn(ctx, contentID)
	}
	return nil
}

func (m *mockIndex) DeleteStalePoints(ctx context.Context, contentID, keepPointID string) error {
	m.ops = append(m.ops, "stale:"+contentID+":"+keepPointID)
	if m.staleFn != nil {
		return m.staleFn(ctx, contentID, keepPointID)
	}
	return nil
}

func (m *mockIndex) Points(ctx context.Context, contentID string) ([]content.Vector, error) {
	m.ops = append(m.ops, "points:"+contentID)
	if m.pointsFn != nil {
		return m.pointsFn(ctx, contentID)
	}
	return nil, nil
}

type sliceSource struct {
	items   []content.Payload
	itemErr map[string]error
	err     error
}

func (s *sliceSource) Each(_ context.Context, fn func(content.Payload, error) error) error {
	for _, p := range s.items {
		if err := fn(p, s.itemErr[p.ContentID]); err != nil {
			return err
		}
	}
	return s.err
}

func newTestService(t *testing.T, emb *mockEmbedder, idx *mockIndex, batch int) *Service {
	t.Helper()
	s := New(emb, idx, Config{Dimensions: testDim, SummaryExcerptChars: 10, ReindexBatch: batch}, zap.NewNop())
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("point-%d", n)
	}
	return s
}

func payload(id string) content.Payload {
	return content.Payload{
		ContentID: id,
		OwnerID:   1,
		Title:     "Title " + id,
		Summary:   "A fairly long summary for " + id,
		Tags:      []string{"x", "y"},
	}
}
