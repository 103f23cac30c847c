package boltindex

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/content"
	"github.com/kailas-cloud/recall/internal/domain/search/request"
)

func openTestIndex(t *testing.T, dim int) (*Index, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.db")
	ix, err := Open(path, dim, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = ix.Close() })
	if err := ix.EnsureCollection(context.Background()); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	return ix, path
}

func put(t *testing.T, ix *Index, pointID, contentID string, owner int64, public bool, vec []float32) {
	t.Helper()
	v, err := content.New(pointID, vec, content.Payload{
		ContentID: contentID,
		OwnerID:   owner,
		IsPublic:  public,
		Title:     "title " + contentID,
		Summary:   "summary " + contentID,
		Tags:      []string{"t"},
	}, len(vec), 0)
	if err != nil {
		t.Fatalf("content.New: %v", err)
	}
	if err := ix.Upsert(context.Background(), v); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
}

func ids(t *testing.T, ix *Index, q []float32, scope request.Scope, limit int, threshold float64) []string {
	t.Helper()
	cs, err := ix.Search(context.Background(), q, scope.Filter(), limit, threshold)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ContentID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSearch_RanksByCosine(t *testing.T) {
	ix, _ := openTestIndex(t, 2)
	put(t, ix, "p1", "1", 1, false, []float32{1, 0})
	put(t, ix, "p2", "2", 1, false, []float32{1, 1})
	put(t, ix, "p3", "3", 1, false, []float32{0, 1})

	got := ids(t, ix, []float32{1, 0.1}, request.ForTenant(1), 10, -1)
	if !equal(got, []string{"1", "2", "3"}) {
		t.Errorf("order = %v", got)
	}

	cs, _ := ix.Search(context.Background(), []float32{1, 0}, request.ForTenant(1).Filter(), 1, 0)
	if len(cs) != 1 || math.Abs(cs[0].Similarity-1) > 1e-6 {
		t.Errorf("expected exact match with similarity 1, got %+v", cs)
	}
}

func TestSearch_ThresholdAndLimit(t *testing.T) {
	ix, _ := openTestIndex(t, 2)
	put(t, ix, "p1", "1", 1, false, []float32{1, 0})
	put(t, ix, "p2", "2", 1, false, []float32{1, 1}) // ~0.707
	put(t, ix, "p3", "3", 1, false, []float32{0, 1}) // 0

	if got := ids(t, ix, []float32{1, 0}, request.ForTenant(1), 10, 0.5); !equal(got, []string{"1", "2"}) {
		t.Errorf("threshold 0.5: %v", got)
	}
	if got := ids(t, ix, []float32{1, 0}, request.ForTenant(1), 1, 0); !equal(got, []string{"1"}) {
		t.Errorf("limit 1: %v", got)
	}
}

func TestSearch_TieBreakByPointID(t *testing.T) {
	ix, _ := openTestIndex(t, 2)
	put(t, ix, "pb", "2", 1, false, []float32{1, 0})
	put(t, ix, "pa", "1", 1, false, []float32{2, 0})

	if got := ids(t, ix, []float32{1, 0}, request.ForTenant(1), 10, 0); !equal(got, []string{"1", "2"}) {
		t.Errorf("expected point-id tie break, got %v", got)
	}
}

func TestSearch_ScopeFilter(t *testing.T) {
	ix, _ := openTestIndex(t, 2)
	put(t, ix, "p1", "private-42", 42, false, []float32{1, 0})
	put(t, ix, "p2", "public-42", 42, true, []float32{1, 0})
	put(t, ix, "p3", "public-7", 7, true, []float32{1, 0})
	put(t, ix, "p4", "private-7", 7, false, []float32{1, 0})

	tenant := ids(t, ix, []float32{1, 0}, request.ForTenant(42), 10, 0)
	if !equal(tenant, []string{"private-42", "public-42"}) {
		t.Errorf("tenant scope = %v", tenant)
	}
	public := ids(t, ix, []float32{1, 0}, request.Public(), 10, 0)
	if !equal(public, []string{"public-42", "public-7"}) {
		t.Errorf("public scope = %v", public)
	}
}

func TestUpsert_SamePointIDKeepsLatest(t *testing.T) {
	ix, _ := openTestIndex(t, 2)
	put(t, ix, "p1", "1", 1, false, []float32{1, 0})
	put(t, ix, "p1", "1", 1, true, []float32{0, 1})

	cs, err := ix.Search(context.Background(), []float32{0, 1}, request.ForTenant(1).Filter(), 10, -1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(cs) != 1 || cs[0].Similarity < 0.99 {
		t.Errorf("expected one point with the latest vector, got %+v", cs)
	}
	if got := ids(t, ix, []float32{0, 1}, request.Public(), 10, 0); !equal(got, []string{"1"}) {
		t.Errorf("latest payload must be public, got %v", got)
	}
}

func TestUpsert_RejectsBadVectors(t *testing.T) {
	ix, _ := openTestIndex(t, 3)

	wrong := content.Reconstruct("p1", []float32{1, 0}, content.Payload{ContentID: "1"})
	if err := ix.Upsert(context.Background(), wrong); !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Errorf("expected ErrVectorDimMismatch, got %v", err)
	}
	zero := content.Reconstruct("p1", []float32{0, 0, 0}, content.Payload{ContentID: "1"})
	if err := ix.Upsert(context.Background(), zero); !errors.Is(err, domain.ErrZeroVector) {
		t.Errorf("expected ErrZeroVector, got %v", err)
	}
}

func TestDeleteByContentID(t *testing.T) {
	ix, _ := openTestIndex(t, 2)
	put(t, ix, "p1", "1", 1, false, []float32{1, 0})
	put(t, ix, "p2", "1", 1, false, []float32{1, 1})
	put(t, ix, "p3", "10", 1, false, []float32{1, 0})

	ctx := context.Background()
	if err := ix.DeleteByContentID(ctx, "1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := ix.DeleteByContentID(ctx, "1"); err != nil {
		t.Fatalf("second delete must be a no-op, got %v", err)
	}
	if err := ix.DeleteByContentID(ctx, "missing"); err != nil {
		t.Fatalf("unknown content must be a no-op, got %v", err)
	}

	if got := ids(t, ix, []float32{1, 0}, request.ForTenant(1), 10, -1); !equal(got, []string{"10"}) {
		t.Errorf("remaining = %v, want only content 10", got)
	}
}

func TestDeleteByContentID_ReusedPointID(t *testing.T) {
	ix, _ := openTestIndex(t, 2)
	put(t, ix, "p1", "1", 1, false, []float32{1, 0})
	put(t, ix, "p1", "2", 1, false, []float32{1, 0})

	if err := ix.DeleteByContentID(context.Background(), "1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := ids(t, ix, []float32{1, 0}, request.ForTenant(1), 10, 0); !equal(got, []string{"2"}) {
		t.Errorf("point moved to content 2 must survive, got %v", got)
	}
}

func TestDeleteStalePoints_KeepsNamedPoint(t *testing.T) {
	ix, _ := openTestIndex(t, 2)
	put(t, ix, "old", "1", 1, false, []float32{1, 0})
	put(t, ix, "new", "1", 1, false, []float32{0, 1})

	if err := ix.DeleteStalePoints(context.Background(), "1", "new"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	pts, err := ix.Points(context.Background(), "1")
	if err != nil {
		t.Fatalf("Points: %v", err)
	}
	if len(pts) != 1 || pts[0].PointID() != "new" {
		t.Errorf("expected only the kept point, got %+v", pts)
	}
}

func TestPoints(t *testing.T) {
	ix, _ := openTestIndex(t, 2)
	put(t, ix, "p1", "1", 7, true, []float32{1, 0})
	put(t, ix, "p2", "10", 8, false, []float32{1, 0})

	pts, err := ix.Points(context.Background(), "1")
	if err != nil {
		t.Fatalf("Points: %v", err)
	}
	if len(pts) != 1 {
		t.Fatalf("expected 1 point, got %d", len(pts))
	}
	p := pts[0]
	if p.PointID() != "p1" || p.OwnerID() != 7 || !p.IsPublic() || p.Title() != "title 1" {
		t.Errorf("unexpected point %+v", p)
	}

	none, err := ix.Points(context.Background(), "missing")
	if err != nil || len(none) != 0 {
		t.Errorf("missing content: got %v, %v", none, err)
	}
}

func TestEnsureCollection_DimensionPersisted(t *testing.T) {
	ix, path := openTestIndex(t, 2)
	if err := ix.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	other, err := Open(path, 3, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer other.Close()

	if err := other.EnsureCollection(context.Background()); !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
}

func TestSearch_EmptyIndex(t *testing.T) {
	ix, _ := openTestIndex(t, 2)

	cs, err := ix.Search(context.Background(), []float32{1, 0}, request.Public().Filter(), 5, 0.3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if cs == nil || len(cs) != 0 {
		t.Errorf("expected empty non-nil result, got %v", cs)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		a, b []float32
		want float64
	}{
		{[]float32{1, 0}, []float32{1, 0}, 1},
		{[]float32{1, 0}, []float32{-1, 0}, -1},
		{[]float32{1, 0}, []float32{0, 1}, 0},
		{[]float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		if got := cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("cosine(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
