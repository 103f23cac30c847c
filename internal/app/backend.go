// Package app wires configuration into the storage and embedding stacks shared by the binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/config"
	dbRedis "github.com/kailas-cloud/recall/internal/db/redis"
	"github.com/kailas-cloud/recall/internal/domain/content"
	"github.com/kailas-cloud/recall/internal/domain/search/candidate"
	"github.com/kailas-cloud/recall/internal/domain/search/filter"
	"github.com/kailas-cloud/recall/internal/repository/boltindex"
	"github.com/kailas-cloud/recall/internal/repository/vector"
)

// VectorIndex is the full content vector index contract served by every backend.
type VectorIndex interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, v content.Vector) error
	DeleteByContentID(ctx context.Context, contentID string) error
	DeleteStalePoints(ctx context.Context, contentID, keepPointID string) error
	Points(ctx context.Context, contentID string) ([]content.Vector, error)
	Search(
		ctx context.Context, vec []float32, f filter.Expression, limit int, threshold float64,
	) ([]candidate.Candidate, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Backend is an opened index backend. Redis is nil for the bolt driver.
type Backend struct {
	Index  VectorIndex
	Pinger pinger
	Redis  *dbRedis.Store
	close  func()
}

// Close releases the backend connections.
func (b *Backend) Close() {
	if b.close != nil {
		b.close()
	}
}

// OpenBackend connects the vector index selected by database.driver and waits until it answers.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Backend, error) {
	if !cfg.Database.UsesRedisProtocol() {
		ix, err := boltindex.Open(cfg.Database.BoltPath, cfg.Embedding.Dimensions, logger)
		if err != nil {
			return nil, fmt.Errorf("open bolt index: %w", err)
		}
		return &Backend{
			Index:  ix,
			Pinger: ix,
			close:  func() { _ = ix.Close() },
		}, nil
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s store: %w", cfg.Database.Driver, err)
	}

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}

	repo := vector.New(store, vector.Config{
		IndexName:  cfg.Index.Name,
		KeyPrefix:  cfg.Index.KeyPrefix,
		Dimensions: cfg.Embedding.Dimensions,
	}, logger)

	return &Backend{Index: repo, Pinger: store, Redis: store, close: store.Close}, nil
}
