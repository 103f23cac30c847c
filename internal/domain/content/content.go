package content

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/kailas-cloud/recall/internal/domain"
)

// DefaultSummaryExcerptChars caps the summary copied into the vector payload.
const DefaultSummaryExcerptChars = 200

// Vector is one indexed content item: an embedding plus the denormalized payload
// used for ranking and context building. A new point is created on every re-embed.
type Vector struct {
	pointID   string
	contentID string
	ownerID   int64
	isPublic  bool
	title     string
	summary   string
	tags      []string
	vector    []float32
}

// Payload is the denormalized copy of the content item stored next to the vector.
type Payload struct {
	ContentID string
	OwnerID   int64
	IsPublic  bool
	Title     string
	Summary   string
	Tags      []string
}

// New validates and creates a content Vector.
// The vector must have exactly dim components and must not be the zero sentinel.
// The summary is cut to excerptChars runes (0 means no cap).
func New(pointID string, vec []float32, p Payload, dim, excerptChars int) (Vector, error) {
	if pointID == "" {
		return Vector{}, fmt.Errorf("point ID is required")
	}
	if p.ContentID == "" {
		return Vector{}, fmt.Errorf("content ID is required")
	}
	if len(vec) != dim {
		return Vector{}, fmt.Errorf("%w: expected %d, got %d", domain.ErrVectorDimMismatch, dim, len(vec))
	}
	if domain.IsZeroVector(vec) {
		return Vector{}, domain.ErrZeroVector
	}

	return Vector{
		pointID:   pointID,
		contentID: p.ContentID,
		ownerID:   p.OwnerID,
		isPublic:  p.IsPublic,
		title:     p.Title,
		summary:   Excerpt(p.Summary, excerptChars),
		tags:      append([]string(nil), p.Tags...),
		vector:    vec,
	}, nil
}

// Reconstruct creates a Vector without validation (storage hydration).
func Reconstruct(pointID string, vec []float32, p Payload) Vector {
	return Vector{
		pointID: pointID, contentID: p.ContentID, ownerID: p.OwnerID, isPublic: p.IsPublic,
		title: p.Title, summary: p.Summary, tags: p.Tags, vector: vec,
	}
}

// PointID returns the opaque point identifier.
func (v *Vector) PointID() string { return v.pointID }

// ContentID returns the referenced content item identifier.
func (v *Vector) ContentID() string { return v.contentID }

// OwnerID returns the tenant that owns the content item.
func (v *Vector) OwnerID() int64 { return v.ownerID }

// IsPublic reports whether anonymous search may see the item.
func (v *Vector) IsPublic() bool { return v.isPublic }

// Title returns the content title.
func (v *Vector) Title() string { return v.title }

// Summary returns the summary excerpt.
func (v *Vector) Summary() string { return v.summary }

// Tags returns the ordered tags.
func (v *Vector) Tags() []string { return v.tags }

// Vector returns the embedding.
func (v *Vector) Vector() []float32 { return v.vector }

// Payload returns the denormalized payload.
func (v *Vector) Payload() Payload {
	return Payload{
		ContentID: v.contentID, OwnerID: v.ownerID, IsPublic: v.isPublic,
		Title: v.title, Summary: v.summary, Tags: v.tags,
	}
}

// OwnerTag renders an owner id the way it is stored in the index.
func OwnerTag(ownerID int64) string {
	return strconv.FormatInt(ownerID, 10)
}

// Excerpt returns at most n runes of s. n <= 0 returns s unchanged.
func Excerpt(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// Indexed payload field names shared by every index backend.
const (
	FieldContentID = "content_id"
	FieldOwnerID   = "owner_id"
	FieldIsPublic  = "is_public"
	FieldTitle     = "title"
	FieldSummary   = "summary"
	FieldTags      = "tags"
	FieldVector    = "vector"
)
