package request

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/recall/internal/domain"
)

// MaxQueryLength is the maximum allowed query length in characters.
const MaxQueryLength = 4096

// Limits are the tunable bounds applied when a request is validated.
type Limits struct {
	DefaultLimit     int
	MaxLimit         int
	DefaultThreshold float64
	MinQueryChars    int
}

// DefaultLimits returns the interactive search defaults.
func DefaultLimits() Limits {
	return Limits{DefaultLimit: 10, MaxLimit: 50, DefaultThreshold: 0.6, MinQueryChars: 2}
}

// Request is a validated retrieval query.
type Request struct {
	query     string
	scope     Scope
	limit     int
	threshold float64
}

// New validates and normalizes retrieval parameters.
// limit 0 means default; a negative threshold means default.
func New(query string, scope Scope, limit int, threshold float64, l Limits) (Request, error) {
	q := strings.TrimSpace(query)
	if utf8.RuneCountInString(q) < max(l.MinQueryChars, 1) {
		return Request{}, fmt.Errorf("%w: query must be at least %d characters", domain.ErrInvalidQuery, max(l.MinQueryChars, 1))
	}
	if utf8.RuneCountInString(q) > MaxQueryLength {
		return Request{}, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrInvalidQuery, MaxQueryLength)
	}
	if limit == 0 {
		limit = l.DefaultLimit
	}
	if limit < 1 || (l.MaxLimit > 0 && limit > l.MaxLimit) {
		return Request{}, fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrInvalidQuery, l.MaxLimit)
	}
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return Request{}, fmt.Errorf("%w: threshold must be a finite number", domain.ErrInvalidQuery)
	}
	if threshold < 0 {
		threshold = l.DefaultThreshold
	}
	if threshold > 1 {
		return Request{}, fmt.Errorf("%w: threshold must be between 0 and 1", domain.ErrInvalidQuery)
	}

	return Request{query: q, scope: scope, limit: limit, threshold: threshold}, nil
}

// Query returns the trimmed query text.
func (r *Request) Query() string { return r.query }

// Scope returns the access scope.
func (r *Request) Scope() Scope { return r.scope }

// Limit returns the maximum number of candidates.
func (r *Request) Limit() int { return r.limit }

// Threshold returns the minimum similarity score.
func (r *Request) Threshold() float64 { return r.threshold }
