package domain

import "fmt"

// Role is the closed set of authorization roles. Each user carries at most
// one role claim at any time; assigning a role replaces whatever was there.
type Role string

const (
	RoleUser       Role = "User"
	RoleAdmin      Role = "Admin"
	RoleSuperAdmin Role = "SuperAdmin"
)

// DefaultRoleClaimType is the claim type under which the role value is
// stored and embedded into access tokens. Configurable, but the signer and
// the request layer must agree on it; the app validates that at startup.
const DefaultRoleClaimType = "role"

// Roles lists every valid role.
func Roles() []Role {
	return []Role{RoleUser, RoleAdmin, RoleSuperAdmin}
}

// ParseRole maps a string onto the closed enumeration.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Valid reports whether r is a member of the closed set.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

func (r Role) String() string { return string(r) }
