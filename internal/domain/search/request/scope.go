package request

import (
	"fmt"

	"github.com/kailas-cloud/recall/internal/domain/content"
	"github.com/kailas-cloud/recall/internal/domain/search/filter"
)

// Scope is the access boundary of a retrieval: one tenant, or public content only.
type Scope struct {
	tenant    int64
	hasTenant bool
}

// ForTenant scopes retrieval to everything the tenant owns, public or not.
func ForTenant(ownerID int64) Scope {
	return Scope{tenant: ownerID, hasTenant: true}
}

// Public scopes retrieval to public content of any owner.
func Public() Scope {
	return Scope{}
}

// Tenant returns the owner id and whether the scope is tenant-bound.
func (s Scope) Tenant() (int64, bool) { return s.tenant, s.hasTenant }

// String renders the scope for logs.
func (s Scope) String() string {
	if s.hasTenant {
		return fmt.Sprintf("tenant:%d", s.tenant)
	}
	return "public"
}

// Filter builds the access filter. With a tenant the filter is solely by
// ownership; without one it is solely by visibility.
func (s Scope) Filter() filter.Expression {
	var c filter.Condition
	if s.hasTenant {
		c, _ = filter.NewMatch(content.FieldOwnerID, content.OwnerTag(s.tenant))
	} else {
		c, _ = filter.NewMatch(content.FieldIsPublic, "true")
	}
	e, _ := filter.NewExpression([]filter.Condition{c}, nil)
	return e
}
