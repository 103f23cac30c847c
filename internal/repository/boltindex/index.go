// Package boltindex is an embedded single-file vector index with brute-force cosine search.
package boltindex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/db"
	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/content"
	"github.com/kailas-cloud/recall/internal/domain/search/candidate"
	"github.com/kailas-cloud/recall/internal/domain/search/filter"
)

var (
	bucketMeta     = []byte("meta")
	bucketPoints   = []byte("points")
	bucketContents = []byte("contents")

	keyDimensions = []byte("dimensions")
)

// point is the stored record of one content vector.
type point struct {
	ContentID string   `json:"content_id"`
	OwnerID   int64    `json:"owner_id"`
	IsPublic  bool     `json:"is_public"`
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	Tags      []string `json:"tags"`
	Vector    []byte   `json:"vector"` // db.EncodeVector blob
}

func (p *point) tags() map[string]string {
	return map[string]string{
		content.FieldContentID: p.ContentID,
		content.FieldOwnerID:   content.OwnerTag(p.OwnerID),
		content.FieldIsPublic:  strconv.FormatBool(p.IsPublic),
	}
}

func (p *point) payload() content.Payload {
	return content.Payload{
		ContentID: p.ContentID,
		OwnerID:   p.OwnerID,
		IsPublic:  p.IsPublic,
		Title:     p.Title,
		Summary:   p.Summary,
		Tags:      p.Tags,
	}
}

// Index stores content vectors in a bbolt file.
type Index struct {
	db     *bbolt.DB
	dim    int
	logger *zap.Logger
}

// Open opens (or creates) the index file at path.
func Open(path string, dim int, logger *zap.Logger) (*Index, error) {
	bdb, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", domain.ErrIndexUnavailable, path, err)
	}
	return &Index{db: bdb, dim: dim, logger: logger}, nil
}

// Close releases the file lock.
func (ix *Index) Close() error {
	return ix.db.Close() //nolint:wrapcheck // passthrough on shutdown
}

// Ping reports whether the file is still usable.
func (ix *Index) Ping(_ context.Context) error {
	return ix.db.View(func(_ *bbolt.Tx) error { return nil }) //nolint:wrapcheck // health probe
}

// EnsureCollection creates the buckets and records the dimension once.
// Reopening with a different dimension is ErrVectorDimMismatch.
func (ix *Index) EnsureCollection(_ context.Context) error {
	return ix.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketPoints, bucketContents} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return fmt.Errorf("create bucket %s: %w", bucketMeta, err)
		}

		raw := meta.Get(keyDimensions)
		if raw == nil {
			ix.logger.Info("Vector index created", zap.String("path", ix.db.Path()), zap.Int("dimensions", ix.dim))
			return meta.Put(keyDimensions, []byte(strconv.Itoa(ix.dim)))
		}
		stored, err := strconv.Atoi(string(raw))
		if err != nil {
			return fmt.Errorf("invalid stored dimension %q: %w", raw, err)
		}
		if stored != ix.dim {
			return fmt.Errorf("%w: index has %d, configured %d", domain.ErrVectorDimMismatch, stored, ix.dim)
		}
		return nil
	})
}

// Upsert writes a point, overwriting any point with the same id.
func (ix *Index) Upsert(ctx context.Context, v content.Vector) error {
	if len(v.Vector()) != ix.dim {
		return fmt.Errorf("%w: expected %d, got %d", domain.ErrVectorDimMismatch, ix.dim, len(v.Vector()))
	}
	if domain.IsZeroVector(v.Vector()) {
		return domain.ErrZeroVector
	}
	if err := ix.EnsureCollection(ctx); err != nil {
		return err
	}

	rec := point{
		ContentID: v.ContentID(),
		OwnerID:   v.OwnerID(),
		IsPublic:  v.IsPublic(),
		Title:     v.Title(),
		Summary:   v.Summary(),
		Tags:      v.Tags(),
		Vector:    []byte(db.EncodeVector(v.Vector())),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal point: %w", err)
	}

	return ix.db.Update(func(tx *bbolt.Tx) error {
		points := tx.Bucket(bucketPoints)
		contents := tx.Bucket(bucketContents)
		id := []byte(v.PointID())

		// drop the membership of a previous owner of this point id
		if prev := points.Get(id); prev != nil {
			var old point
			if err := json.Unmarshal(prev, &old); err == nil && old.ContentID != rec.ContentID {
				if err := contents.Delete(memberKey(old.ContentID, v.PointID())); err != nil {
					return fmt.Errorf("unlink point: %w", err)
				}
			}
		}

		if err := points.Put(id, data); err != nil {
			return fmt.Errorf("put point: %w", err)
		}
		return contents.Put(memberKey(rec.ContentID, v.PointID()), nil)
	})
}

// DeleteByContentID removes every point of the content item. Missing content is a no-op.
func (ix *Index) DeleteByContentID(ctx context.Context, contentID string) error {
	return ix.DeleteStalePoints(ctx, contentID, "")
}

// DeleteStalePoints removes every point of the content item except keepPointID.
// An empty keepPointID removes them all.
func (ix *Index) DeleteStalePoints(_ context.Context, contentID, keepPointID string) error {
	deleted := 0
	err := ix.db.Update(func(tx *bbolt.Tx) error {
		points := tx.Bucket(bucketPoints)
		contents := tx.Bucket(bucketContents)
		if points == nil || contents == nil {
			return nil
		}

		prefix := memberKey(contentID, "")
		var members [][]byte
		c := contents.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			if keepPointID != "" && string(k[len(prefix):]) == keepPointID {
				continue
			}
			members = append(members, append([]byte(nil), k...))
		}

		for _, k := range members {
			if err := points.Delete(k[len(prefix):]); err != nil {
				return fmt.Errorf("delete point: %w", err)
			}
			if err := contents.Delete(k); err != nil {
				return fmt.Errorf("delete membership: %w", err)
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete content %s: %w", contentID, err)
	}

	ix.logger.Debug("Content points deleted",
		zap.String("content_id", contentID),
		zap.String("kept", keepPointID),
		zap.Int("points", deleted),
	)
	return nil
}

// Points returns the stored points of the content item, without their vectors.
func (ix *Index) Points(_ context.Context, contentID string) ([]content.Vector, error) {
	var out []content.Vector
	err := ix.db.View(func(tx *bbolt.Tx) error {
		points := tx.Bucket(bucketPoints)
		contents := tx.Bucket(bucketContents)
		if points == nil || contents == nil {
			return nil
		}

		prefix := memberKey(contentID, "")
		c := contents.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			pointID := k[len(prefix):]
			data := points.Get(pointID)
			if data == nil {
				continue
			}
			var rec point
			if err := json.Unmarshal(data, &rec); err != nil {
				return fmt.Errorf("decode point %s: %w", pointID, err)
			}
			out = append(out, content.Reconstruct(string(pointID), nil, rec.payload()))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: read content %s: %w", domain.ErrIndexUnavailable, contentID, err)
	}
	return out, nil
}

type scored struct {
	id  string
	sim float64
	rec point
}

// Search scans every point, keeps those matching f with similarity >= threshold
// and returns the best limit of them by descending similarity, then point id.
func (ix *Index) Search(
	ctx context.Context, vec []float32, f filter.Expression, limit int, threshold float64,
) ([]candidate.Candidate, error) {
	if limit <= 0 {
		return []candidate.Candidate{}, nil
	}

	var hits []scored
	err := ix.db.View(func(tx *bbolt.Tx) error {
		points := tx.Bucket(bucketPoints)
		if points == nil {
			return nil
		}
		return points.ForEach(func(k, data []byte) error {
			if err := ctx.Err(); err != nil {
				return err //nolint:wrapcheck // cancellation
			}
			var rec point
			if err := json.Unmarshal(data, &rec); err != nil {
				ix.logger.Warn("Skipping malformed point", zap.ByteString("point_id", k), zap.Error(err))
				return nil
			}
			if !f.Matches(rec.tags()) {
				return nil
			}
			stored, err := db.DecodeVector(rec.Vector)
			if err != nil || len(stored) != len(vec) {
				return nil
			}
			if sim := cosine(vec, stored); sim >= threshold {
				hits = append(hits, scored{id: string(k), sim: sim, rec: rec})
			}
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err //nolint:wrapcheck // cancellation
		}
		return nil, fmt.Errorf("%w: scan: %w", domain.ErrIndexUnavailable, err)
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].sim != hits[j].sim {
			return hits[i].sim > hits[j].sim
		}
		return hits[i].id < hits[j].id
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]candidate.Candidate, len(hits))
	for i, h := range hits {
		out[i] = candidate.Candidate{
			ContentID:  h.rec.ContentID,
			OwnerID:    h.rec.OwnerID,
			Title:      h.rec.Title,
			Summary:    h.rec.Summary,
			Tags:       h.rec.Tags,
			Similarity: h.sim,
		}
	}
	return out, nil
}

func memberKey(contentID, pointID string) []byte {
	return []byte(contentID + "\x00" + pointID)
}

// cosine returns the cosine similarity of a and b; 0 if either has zero norm.
func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
