package vector

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/db"
	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/content"
	"github.com/kailas-cloud/recall/internal/domain/search/filter"
	"github.com/kailas-cloud/recall/internal/domain/search/request"
)

// --- EnsureCollection ---

func TestEnsureCollection_CreatesOnce(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	var def *db.IndexDefinition
	ms.createIndexFn = func(_ context.Context, d *db.IndexDefinition) error {
		def = d
		return nil
	}

	for range 3 {
		if err := repo.EnsureCollection(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ms.createIndexCalls != 1 {
		t.Errorf("expected 1 FT.CREATE, got %d", ms.createIndexCalls)
	}
	if def.Name != "content_embeddings" || def.Prefixes[0] != "recall:point:" {
		t.Errorf("unexpected definition: %+v", def)
	}
	vf := def.Fields[len(def.Fields)-1]
	if vf.VectorDim != testDim || vf.VectorDistance != db.DistanceCosine {
		t.Errorf("unexpected vector field: %+v", vf)
	}
	if ms.hashes["recall:index:content_embeddings"][metaDim] != "4" {
		t.Errorf("index meta not written: %v", ms.hashes)
	}
}

func TestEnsureCollection_ExistingIndexIsNoop(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error {
		return &db.Error{Op: db.OpCreateIndex, Err: db.ErrIndexExists}
	}

	if err := repo.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("expected no error for existing index, got %v", err)
	}
}

func TestEnsureCollection_SkipsCreateWhenIndexPresent(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.indexExistsFn = func(_ context.Context, name string) (bool, error) {
		return name == "content_embeddings", nil
	}

	if err := repo.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ms.createIndexCalls != 0 {
		t.Errorf("expected no FT.CREATE for a present index, got %d", ms.createIndexCalls)
	}
}

func TestEnsureCollection_RejectsInvalidIndexName(t *testing.T) {
	ms := newMockStore()
	repo := New(ms, Config{IndexName: "content embeddings", KeyPrefix: "recall:", Dimensions: testDim}, zap.NewNop())

	if err := repo.EnsureCollection(context.Background()); err == nil {
		t.Fatal("expected error for index name with a space")
	}
	if ms.createIndexCalls != 0 {
		t.Error("must not send FT.CREATE for an invalid definition")
	}
}

func TestEnsureCollection_DimensionMismatch(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hashes["recall:index:content_embeddings"] = map[string]string{metaDim: "1536"}

	err := repo.EnsureCollection(context.Background())
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
	if ms.createIndexCalls != 0 {
		t.Error("must not create index on dimension mismatch")
	}
}

func TestEnsureCollection_StoreDown(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return nil, errors.New("connection refused")
	}

	err := repo.EnsureCollection(context.Background())
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

// --- Upsert ---

func TestUpsert_WritesPointAndMembership(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Upsert(ctx, mustVector(t, "p1", "7", "Rust ownership")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h := ms.hashes["recall:point:p1"]
	if h[content.FieldContentID] != "7" || h[content.FieldOwnerID] != "42" || h[content.FieldIsPublic] != "true" {
		t.Errorf("unexpected hash: %v", h)
	}
	if h[content.FieldTags] != `["go","rag"]` {
		t.Errorf("unexpected tags: %s", h[content.FieldTags])
	}
	if len(h[content.FieldVector]) != testDim*4 {
		t.Errorf("unexpected vector blob length %d", len(h[content.FieldVector]))
	}
	if _, ok := ms.sets["recall:content:7:points"]["p1"]; !ok {
		t.Errorf("point not added to content set: %v", ms.sets)
	}
}

func TestUpsert_SamePointIDOverwrites(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Upsert(ctx, mustVector(t, "p1", "7", "old title")); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := repo.Upsert(ctx, mustVector(t, "p1", "7", "new title")); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	points := 0
	for k := range ms.hashes {
		if len(k) > len("recall:point:") && k[:len("recall:point:")] == "recall:point:" {
			points++
		}
	}
	if points != 1 {
		t.Errorf("expected exactly one point, got %d", points)
	}
	if got := ms.hashes["recall:point:p1"][content.FieldTitle]; got != "new title" {
		t.Errorf("title = %q, want latest payload", got)
	}
	if n := len(ms.sets["recall:content:7:points"]); n != 1 {
		t.Errorf("content set has %d members, want 1", n)
	}
}

func TestUpsert_RejectsBadVectors(t *testing.T) {
	repo, ms := newTestRepo(t)

	wrongDim := content.Reconstruct("p1", []float32{1, 2}, content.Payload{ContentID: "1"})
	if err := repo.Upsert(context.Background(), wrongDim); !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Errorf("expected ErrVectorDimMismatch, got %v", err)
	}

	zero := content.Reconstruct("p2", make([]float32, testDim), content.Payload{ContentID: "1"})
	if err := repo.Upsert(context.Background(), zero); !errors.Is(err, domain.ErrZeroVector) {
		t.Errorf("expected ErrZeroVector, got %v", err)
	}
	if len(ms.hashes) != 0 {
		t.Errorf("nothing must be written, got %v", ms.hashes)
	}
}

// --- DeleteByContentID ---

func TestDeleteByContentID_RemovesAllPoints(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	for _, id := range []string{"p1", "p2"} {
		if err := repo.Upsert(ctx, mustVector(t, id, "7", "t")); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}
	if err := repo.Upsert(ctx, mustVector(t, "p3", "8", "other")); err != nil {
		t.Fatalf("upsert p3: %v", err)
	}

	if err := repo.DeleteByContentID(ctx, "7"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := ms.hashes["recall:point:p1"]; ok {
		t.Error("p1 not deleted")
	}
	if _, ok := ms.hashes["recall:point:p2"]; ok {
		t.Error("p2 not deleted")
	}
	if _, ok := ms.hashes["recall:point:p3"]; !ok {
		t.Error("p3 of another content must survive")
	}
	if _, ok := ms.sets["recall:content:7:points"]; ok {
		t.Error("content set not deleted")
	}
}

func TestDeleteByContentID_Idempotent(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Upsert(ctx, mustVector(t, "p1", "7", "t")); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := repo.DeleteByContentID(ctx, "7"); err != nil {
		t.Fatalf("first delete: %v", err)
	}

	var delCalled bool
	ms.delFn = func(_ context.Context, _ ...string) error {
		delCalled = true
		return nil
	}
	if err := repo.DeleteByContentID(ctx, "7"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if delCalled {
		t.Error("second delete must not touch the store")
	}
}

func TestDeleteByContentID_SkipsReusedPointID(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Upsert(ctx, mustVector(t, "p1", "7", "t")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.Upsert(ctx, mustVector(t, "p1", "9", "t")); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := repo.DeleteByContentID(ctx, "7"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ms.hashes["recall:point:p1"][content.FieldContentID] != "9" {
		t.Error("point now owned by content 9 must survive")
	}
}

func TestDeleteByContentID_StoreError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.smembersFn = func(_ context.Context, _ string) ([]string, error) {
		return nil, errors.New("timeout")
	}

	if err := repo.DeleteByContentID(context.Background(), "7"); err == nil {
		t.Fatal("expected error")
	}
}

func TestDeleteStalePoints_KeepsNamedPoint(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	for _, id := range []string{"old1", "old2", "fresh"} {
		if err := repo.Upsert(ctx, mustVector(t, id, "7", id)); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}

	if err := repo.DeleteStalePoints(ctx, "7", "fresh"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := ms.hashes["recall:point:fresh"]; !ok {
		t.Error("kept point must survive")
	}
	for _, id := range []string{"old1", "old2"} {
		if _, ok := ms.hashes["recall:point:"+id]; ok {
			t.Errorf("%s not deleted", id)
		}
	}
	set := ms.sets["recall:content:7:points"]
	if _, ok := set["fresh"]; !ok || len(set) != 1 {
		t.Errorf("content set = %v, want only fresh", set)
	}
}

func TestDeleteStalePoints_OnlyKeptPointIsNoop(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Upsert(ctx, mustVector(t, "p1", "7", "t")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	ms.delFn = func(_ context.Context, _ ...string) error {
		t.Error("Del must not be called")
		return nil
	}
	if err := repo.DeleteStalePoints(ctx, "7", "p1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// --- Points ---

func TestPoints_ReturnsStoredPayloads(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	if err := repo.Upsert(ctx, mustVector(t, "p1", "7", "Rust ownership")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.Upsert(ctx, mustVector(t, "p2", "8", "other")); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	pts, err := repo.Points(ctx, "7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pts) != 1 {
		t.Fatalf("expected 1 point, got %d", len(pts))
	}
	p := pts[0]
	if p.PointID() != "p1" || p.OwnerID() != 42 || !p.IsPublic() || p.Title() != "Rust ownership" {
		t.Errorf("unexpected point: %+v", p)
	}
	if len(p.Tags()) != 2 || p.Tags()[0] != "go" {
		t.Errorf("unexpected tags %v", p.Tags())
	}

	none, err := repo.Points(ctx, "missing")
	if err != nil || len(none) != 0 {
		t.Errorf("missing content: got %v, %v", none, err)
	}
}

func TestPoints_StoreError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.smembersFn = func(_ context.Context, _ string) ([]string, error) {
		return nil, errors.New("timeout")
	}

	if _, err := repo.Points(context.Background(), "7"); !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

// --- Search ---

func hit(key, contentID string, score float64) db.SearchEntry {
	return db.SearchEntry{
		Key:   key,
		Score: score,
		Fields: map[string]string{
			content.FieldContentID: contentID,
			content.FieldOwnerID:   "1",
			content.FieldTitle:     "title " + contentID,
			content.FieldSummary:   "summary " + contentID,
			content.FieldTags:      `["a"]`,
		},
	}
}

func TestSearch_ThresholdOrderAndLimit(t *testing.T) {
	repo, ms := newTestRepo(t)

	var got *db.KNNQuery
	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		got = q
		return &db.SearchResult{Total: 4, Entries: []db.SearchEntry{
			hit("recall:point:b", "2", 0.7),
			hit("recall:point:c", "3", 0.2),
			hit("recall:point:a", "1", 0.7),
			hit("recall:point:d", "4", 0.9),
		}}, nil
	}

	cs, err := repo.Search(context.Background(), testVector(), request.ForTenant(1).Filter(), 3, 0.3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"4", "1", "2"}
	if len(cs) != len(want) {
		t.Fatalf("expected %d candidates, got %d", len(want), len(cs))
	}
	for i, id := range want {
		if cs[i].ContentID != id {
			t.Errorf("cs[%d] = %s, want %s", i, cs[i].ContentID, id)
		}
		if cs[i].Similarity < 0.3 {
			t.Errorf("cs[%d] below threshold: %v", i, cs[i].Similarity)
		}
	}
	if cs[0].OwnerID != 1 || cs[0].Tags[0] != "a" || cs[0].Title != "title 4" {
		t.Errorf("unexpected candidate payload: %+v", cs[0])
	}

	if got.K != 3 || got.IndexName != "content_embeddings" || got.VectorField != "vector" {
		t.Errorf("unexpected query: %+v", got)
	}
	must := got.Filters.Must()
	if len(must) != 1 || must[0].Key() != content.FieldOwnerID || must[0].Match() != "1" {
		t.Errorf("unexpected filter: %+v", must)
	}
}

func TestSearch_Empty(t *testing.T) {
	repo, _ := newTestRepo(t)

	cs, err := repo.Search(context.Background(), testVector(), filter.Expression{}, 5, 0.3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cs == nil || len(cs) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", cs)
	}
}

func TestSearch_SkipsMalformedHits(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchKNNFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
		bad := hit("recall:point:x", "", 0.9)
		return &db.SearchResult{Entries: []db.SearchEntry{bad, hit("recall:point:y", "5", 0.8)}}, nil
	}

	cs, err := repo.Search(context.Background(), testVector(), filter.Expression{}, 5, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cs) != 1 || cs[0].ContentID != "5" {
		t.Errorf("expected only the valid hit, got %+v", cs)
	}
}

func TestSearch_StoreError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchKNNFn = func(_ context.Context, _ *db.KNNQuery) (*db.SearchResult, error) {
		return nil, errors.New("index gone")
	}

	_, err := repo.Search(context.Background(), testVector(), filter.Expression{}, 5, 0.3)
	if !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}
