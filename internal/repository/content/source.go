// Package content reads content items from the relational system of record.
package content

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/lib/pq"
	"go.uber.org/zap"

	domcontent "github.com/kailas-cloud/recall/internal/domain/content"
)

// StatusCompleted marks content whose summary and tags are ready for indexing.
const StatusCompleted = "completed"

const selectIndexable = `
SELECT id, user_id, title, summary, tags, is_public
FROM contents
WHERE status = $1 AND summary IS NOT NULL
ORDER BY id`

// ErrSchemaMissing means the contents table does not exist.
var ErrSchemaMissing = errors.New("contents table not found")

// Source streams indexable content rows from Postgres.
type Source struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open connects to Postgres via lib/pq.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Source, error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return New(sqlDB, logger), nil
}

// New wraps an existing connection pool.
func New(db *sql.DB, logger *zap.Logger) *Source {
	return &Source{db: db, logger: logger}
}

// Close closes the connection pool.
func (s *Source) Close() error {
	return s.db.Close() //nolint:wrapcheck // passthrough on shutdown
}

// Each calls fn for every completed content item in id order. A row that
// cannot be decoded is passed to fn with its error and whatever fields were
// read. An fn error stops the iteration and is returned.
func (s *Source) Each(ctx context.Context, fn func(domcontent.Payload, error) error) error {
	rows, err := s.db.QueryContext(ctx, selectIndexable, StatusCompleted)
	if err != nil {
		return classify(err)
	}
	defer rows.Close()

	for rows.Next() {
		p, rowErr := scanPayload(rows)
		if rowErr != nil {
			s.logger.Warn("Skipping unreadable content row",
				zap.String("content_id", p.ContentID),
				zap.Error(rowErr),
			)
		}
		if err := fn(p, rowErr); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return classify(err)
	}
	return nil
}

func scanPayload(rows *sql.Rows) (domcontent.Payload, error) {
	var (
		id, ownerID int64
		title       sql.NullString
		summary     string
		tagsRaw     []byte
		isPublic    sql.NullBool
	)
	if err := rows.Scan(&id, &ownerID, &title, &summary, &tagsRaw, &isPublic); err != nil {
		return domcontent.Payload{}, fmt.Errorf("scan content row: %w", err)
	}

	p := domcontent.Payload{
		ContentID: strconv.FormatInt(id, 10),
		OwnerID:   ownerID,
		IsPublic:  isPublic.Valid && isPublic.Bool,
		Title:     title.String,
		Summary:   summary,
	}
	if len(tagsRaw) > 0 && string(tagsRaw) != "null" {
		if err := json.Unmarshal(tagsRaw, &p.Tags); err != nil {
			p.Tags = nil
			return p, fmt.Errorf("content %d: invalid tags: %w", id, err)
		}
	}
	return p, nil
}

// classify maps Postgres error codes the reindex job can act on.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "undefined_table" {
		return fmt.Errorf("%w: %s", ErrSchemaMissing, pqErr.Message)
	}
	return fmt.Errorf("query contents: %w", err)
}
