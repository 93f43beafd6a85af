package types

import "fmt"

// Role is the account role carried by a principal.
type Role string

const (
	RoleBidder    Role = "bidder"
	RoleDeveloper Role = "developer"
	RoleAdmin     Role = "admin"
)

// ParseRole converts a wire value into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleBidder, RoleDeveloper, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Principal is the signed-in account. The set of implementations is closed:
// Bidder, Developer and Admin.
type Principal interface {
	ID() string
	Username() string
	Role() Role
	isPrincipal()
}

// Bidder owns the artifacts it views.
type Bidder struct {
	UserID string
	Name   string
}

func (b Bidder) ID() string       { return b.UserID }
func (b Bidder) Username() string { return b.Name }
func (Bidder) Role() Role         { return RoleBidder }
func (Bidder) isPrincipal()       {}

// Developer views the artifacts of bidders assigned to it by an administrator.
type Developer struct {
	UserID string
	Name   string
}

func (d Developer) ID() string       { return d.UserID }
func (d Developer) Username() string { return d.Name }
func (Developer) Role() Role         { return RoleDeveloper }
func (Developer) isPrincipal()       {}

// Admin manages accounts and bidder assignments.
type Admin struct {
	UserID string
	Name   string
}

func (a Admin) ID() string       { return a.UserID }
func (a Admin) Username() string { return a.Name }
func (Admin) Role() Role         { return RoleAdmin }
func (Admin) isPrincipal()       {}

// NewPrincipal builds the variant matching role.
func NewPrincipal(role Role, id, username string) (Principal, error) {
	if id == "" {
		return nil, fmt.Errorf("principal id is empty")
	}
	switch role {
	case RoleBidder:
		return Bidder{UserID: id, Name: username}, nil
	case RoleDeveloper:
		return Developer{UserID: id, Name: username}, nil
	case RoleAdmin:
		return Admin{UserID: id, Name: username}, nil
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}
}

// Capability is a single permission resolved at session start.
type Capability uint8

const (
	CapViewOwnArtifacts Capability = 1 << iota
	CapViewDelegatedArtifacts
	CapManageUsers
	CapGenerateDrafts
)

// Capabilities is a set of Capability bits.
type Capabilities uint8

// Has reports whether c is in the set.
func (cs Capabilities) Has(c Capability) bool {
	return cs&Capabilities(c) != 0
}

var capabilityNames = []struct {
	c    Capability
	name string
}{
	{CapViewOwnArtifacts, "view-own-artifacts"},
	{CapViewDelegatedArtifacts, "view-delegated-artifacts"},
	{CapManageUsers, "manage-users"},
	{CapGenerateDrafts, "generate-drafts"},
}

// Names lists the capabilities in the set in declaration order.
func (cs Capabilities) Names() []string {
	var names []string
	for _, cn := range capabilityNames {
		if cs.Has(cn.c) {
			names = append(names, cn.name)
		}
	}
	return names
}

// CapabilitiesOf returns the capability set for a principal.
func CapabilitiesOf(p Principal) Capabilities {
	switch p.(type) {
	case Bidder:
		return Capabilities(CapViewOwnArtifacts | CapGenerateDrafts)
	case Developer:
		return Capabilities(CapViewDelegatedArtifacts)
	case Admin:
		return Capabilities(CapManageUsers)
	default:
		return 0
	}
}

// Scope is the (role, subject) pair that decides which artifacts and endpoint
// family a query may touch. For a bidder SubjectID is the bidder's own id.
type Scope struct {
	Role      Role   `json:"role"`
	SubjectID string `json:"subjectId"`
}

// Delegated reports whether the scope uses the developer endpoint family.
func (s Scope) Delegated() bool {
	return s.Role == RoleDeveloper
}

func (s Scope) String() string {
	return fmt.Sprintf("%s:%s", s.Role, s.SubjectID)
}

// User is an account record as returned by the administrator endpoints.
type User struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Role        Role   `json:"role"`
	DeveloperID string `json:"developerId,omitempty"`
}
