package vector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/db"
	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/content"
	"github.com/kailas-cloud/recall/internal/domain/search/candidate"
	"github.com/kailas-cloud/recall/internal/domain/search/filter"
)

// store is the consumer interface for the vector index (ISP).
//
//nolint:interfacebloat // points live in hashes, membership in sets, lookup in the FT index
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Config describes the collection this repository manages.
type Config struct {
	IndexName  string
	KeyPrefix  string
	Dimensions int
}

// Repo is the Redis/Valkey FT implementation of the content vector index.
type Repo struct {
	store  store
	cfg    Config
	ready  atomic.Bool
	logger *zap.Logger
}

// New creates a vector index repository.
func New(s store, cfg Config, logger *zap.Logger) *Repo {
	return &Repo{store: s, cfg: cfg, logger: logger}
}

// EnsureCollection creates the FT index once. An existing index with the same
// dimension is left untouched; a different dimension is ErrVectorDimMismatch.
func (r *Repo) EnsureCollection(ctx context.Context) error {
	if r.ready.Load() {
		return nil
	}

	meta, err := r.store.HGetAll(ctx, r.metaKey())
	if err != nil {
		return fmt.Errorf("%w: read index meta: %w", domain.ErrIndexUnavailable, err)
	}
	if raw, ok := meta[metaDim]; ok {
		dim, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid stored dimension %q: %w", raw, err)
		}
		if dim != r.cfg.Dimensions {
			return fmt.Errorf("%w: index %s has %d, configured %d",
				domain.ErrVectorDimMismatch, r.cfg.IndexName, dim, r.cfg.Dimensions)
		}
	}

	def := db.VectorIndex(r.cfg.IndexName, r.pointPrefix(), r.cfg.Dimensions,
		content.FieldContentID, content.FieldOwnerID, content.FieldIsPublic)
	if err := def.Validate(); err != nil {
		return fmt.Errorf("invalid index definition: %w", err)
	}

	exists, err := r.store.IndexExists(ctx, r.cfg.IndexName)
	if err != nil {
		return fmt.Errorf("%w: index info: %w", domain.ErrIndexUnavailable, err)
	}
	if exists {
		r.logger.Debug("Vector index already exists", zap.String("index", r.cfg.IndexName))
	} else {
		switch err := r.store.CreateIndex(ctx, def); {
		case errors.Is(err, db.ErrIndexExists):
			// created concurrently by another process
			r.logger.Debug("Vector index already exists", zap.String("index", r.cfg.IndexName))
		case err != nil:
			return fmt.Errorf("%w: create index: %w", domain.ErrIndexUnavailable, err)
		default:
			r.logger.Info("Vector index created",
				zap.String("index", r.cfg.IndexName),
				zap.Int("dimensions", r.cfg.Dimensions),
			)
		}
	}

	if len(meta) == 0 {
		if err := r.store.HSet(ctx, r.metaKey(), indexMeta(r.cfg)); err != nil {
			return fmt.Errorf("write index meta: %w", err)
		}
	}

	r.ready.Store(true)
	return nil
}

// Upsert writes a point, overwriting any point with the same id.
func (r *Repo) Upsert(ctx context.Context, v content.Vector) error {
	if len(v.Vector()) != r.cfg.Dimensions {
		return fmt.Errorf("%w: expected %d, got %d", domain.ErrVectorDimMismatch, r.cfg.Dimensions, len(v.Vector()))
	}
	if domain.IsZeroVector(v.Vector()) {
		return domain.ErrZeroVector
	}
	if err := r.EnsureCollection(ctx); err != nil {
		return err
	}

	fields, err := pointToHash(v)
	if err != nil {
		return err
	}
	if err := r.store.HSet(ctx, r.pointKey(v.PointID()), fields); err != nil {
		return fmt.Errorf("hset point %s: %w", v.PointID(), err)
	}
	if err := r.store.SAdd(ctx, r.contentKey(v.ContentID()), v.PointID()); err != nil {
		return fmt.Errorf("sadd content %s: %w", v.ContentID(), err)
	}
	return nil
}

// DeleteByContentID removes every point of the content item. Missing content is a no-op.
func (r *Repo) DeleteByContentID(ctx context.Context, contentID string) error {
	return r.DeleteStalePoints(ctx, contentID, "")
}

// DeleteStalePoints removes every point of the content item except keepPointID.
// An empty keepPointID removes them all, together with the membership set.
func (r *Repo) DeleteStalePoints(ctx context.Context, contentID, keepPointID string) error {
	setKey := r.contentKey(contentID)
	members, err := r.store.SMembers(ctx, setKey)
	if err != nil {
		return fmt.Errorf("smembers %s: %w", setKey, err)
	}

	var stale, keys []string
	for _, pointID := range members {
		if keepPointID != "" && pointID == keepPointID {
			continue
		}
		stale = append(stale, pointID)
		key := r.pointKey(pointID)
		m, err := r.store.HGetAll(ctx, key)
		if err != nil {
			return fmt.Errorf("hgetall %s: %w", key, err)
		}
		// the point id may have been reused for another content item
		if len(m) > 0 && m[content.FieldContentID] != contentID {
			continue
		}
		keys = append(keys, key)
	}
	if len(stale) == 0 {
		return nil
	}

	if keepPointID == "" {
		keys = append(keys, setKey)
	}
	if err := r.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("del content %s: %w", contentID, err)
	}
	if keepPointID != "" {
		if err := r.store.SRem(ctx, setKey, stale...); err != nil {
			return fmt.Errorf("srem content %s: %w", contentID, err)
		}
	}

	r.logger.Debug("Content points deleted",
		zap.String("content_id", contentID),
		zap.String("kept", keepPointID),
		zap.Int("points", len(stale)),
	)
	return nil
}

// Points returns the stored points of the content item, without their vectors.
func (r *Repo) Points(ctx context.Context, contentID string) ([]content.Vector, error) {
	setKey := r.contentKey(contentID)
	members, err := r.store.SMembers(ctx, setKey)
	if err != nil {
		return nil, fmt.Errorf("%w: smembers %s: %w", domain.ErrIndexUnavailable, setKey, err)
	}

	out := make([]content.Vector, 0, len(members))
	for _, pointID := range members {
		key := r.pointKey(pointID)
		m, err := r.store.HGetAll(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("%w: hgetall %s: %w", domain.ErrIndexUnavailable, key, err)
		}
		if len(m) == 0 || m[content.FieldContentID] != contentID {
			continue
		}
		p, err := payloadFromFields(m)
		if err != nil {
			r.logger.Warn("Skipping malformed point", zap.String("key", key), zap.Error(err))
			continue
		}
		out = append(out, content.Reconstruct(pointID, nil, p))
	}
	return out, nil
}

// Search returns at most limit candidates with similarity >= threshold,
// ordered by descending similarity and then by point key.
func (r *Repo) Search(
	ctx context.Context, vec []float32, f filter.Expression, limit int, threshold float64,
) ([]candidate.Candidate, error) {
	if limit <= 0 {
		return []candidate.Candidate{}, nil
	}

	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.cfg.IndexName,
		VectorField:  content.FieldVector,
		Filters:      f,
		Vector:       vec,
		K:            limit,
		ReturnFields: payloadFields,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: knn search: %w", domain.ErrIndexUnavailable, err)
	}

	entries := make([]db.SearchEntry, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		if e.Score >= threshold {
			entries = append(entries, e)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Key < entries[j].Key
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}

	out := make([]candidate.Candidate, 0, len(entries))
	for _, e := range entries {
		c, err := candidateFromFields(e.Fields, e.Score)
		if err != nil {
			r.logger.Warn("Skipping malformed point", zap.String("key", e.Key), zap.Error(err))
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *Repo) pointPrefix() string { return r.cfg.KeyPrefix + "point:" }

func (r *Repo) pointKey(pointID string) string { return r.pointPrefix() + pointID }

func (r *Repo) contentKey(contentID string) string {
	return r.cfg.KeyPrefix + "content:" + contentID + ":points"
}

func (r *Repo) metaKey() string { return r.cfg.KeyPrefix + "index:" + r.cfg.IndexName }
