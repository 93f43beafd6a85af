// Package scope decides which artifact collection and endpoint family a query may use.
package scope

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/jonathan/resume-vault/internal/types"
)

// ErrSuppressed means a developer has not picked a bidder yet. Callers render a
// selection prompt and issue no request; it is not a failure.
var ErrSuppressed = errors.New("no bidder selected")

// ErrNoArtifactScope is returned for principals that have no artifact view at all.
var ErrNoArtifactScope = errors.New("principal has no artifact scope")

// PrincipalSource yields the signed-in principal. session.Manager implements it.
type PrincipalSource interface {
	Principal() (types.Principal, error)
}

// Resolve maps a principal and an optional selected subject onto a Scope.
// A bidder's own id always wins over any selection.
func Resolve(p types.Principal, selectedSubjectID string) (types.Scope, error) {
	switch p := p.(type) {
	case types.Bidder:
		return types.Scope{Role: types.RoleBidder, SubjectID: p.ID()}, nil
	case types.Developer:
		if selectedSubjectID == "" {
			return types.Scope{}, ErrSuppressed
		}
		return types.Scope{Role: types.RoleDeveloper, SubjectID: selectedSubjectID}, nil
	case nil:
		return types.Scope{}, fmt.Errorf("resolve scope: no principal")
	default:
		return types.Scope{}, fmt.Errorf("resolve scope for %s: %w", p.Role(), ErrNoArtifactScope)
	}
}

// Resolver resolves scopes against the current session.
type Resolver struct {
	src PrincipalSource
}

// NewResolver creates a Resolver reading the principal from src.
func NewResolver(src PrincipalSource) *Resolver {
	return &Resolver{src: src}
}

// Resolve resolves the scope for the session's principal.
func (r *Resolver) Resolve(selectedSubjectID string) (types.Scope, error) {
	p, err := r.src.Principal()
	if err != nil {
		return types.Scope{}, err
	}
	return Resolve(p, selectedSubjectID)
}

// Endpoints is one endpoint family bound to a subject.
type Endpoints struct {
	List     string
	Delete   string
	Download string
	Archive  string
}

// EndpointsFor selects the endpoint family for s. The choice depends only on the
// scope's role.
func EndpointsFor(s types.Scope) Endpoints {
	if !s.Delegated() {
		return Endpoints{
			List:     "/artifacts",
			Delete:   "/artifacts/delete",
			Download: "/artifacts/download",
			Archive:  "/artifacts/archive",
		}
	}
	base := "/delegated/" + url.PathEscape(s.SubjectID) + "/artifacts"
	return Endpoints{
		List:     base,
		Delete:   base + "/delete",
		Download: base + "/download",
		Archive:  base + "/archive",
	}
}
