package recall

import "github.com/kailas-cloud/recall/internal/domain/search/request"

// Scope is the access boundary of a search or question.
type Scope struct {
	inner request.Scope
}

// Tenant sees everything the owner saved, public or not.
func Tenant(ownerID int64) Scope {
	return Scope{inner: request.ForTenant(ownerID)}
}

// Public sees public content of every owner.
func Public() Scope {
	return Scope{inner: request.Public()}
}

// String renders the scope for logs.
func (s Scope) String() string { return s.inner.String() }

// Content is a saved item to index.
type Content struct {
	ID       string
	OwnerID  int64
	IsPublic bool
	Title    string
	Summary  string
	Tags     []string
}

// Answer is the reply to a question. Failures carry a fixed message,
// no sources and zero confidence.
type Answer struct {
	Text       string
	Sources    []Source
	Confidence float64
}

// Source is a cited content item.
type Source struct {
	ContentID  string
	Title      string
	Similarity float64 // rounded to 3 decimals
}

// Result is a single search hit.
type Result struct {
	ContentID  string
	OwnerID    int64
	Title      string
	Summary    string
	Tags       []string
	Similarity float64
}
