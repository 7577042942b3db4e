// Package policy declares the authorization policies the request layer
// enforces. A policy is a named predicate over the role claims carried in a
// verified access token; there is no runtime registry, just values.
package policy

import "github.com/opsarea/userd/internal/users/domain"

// Policy maps role values to an authorization decision.
type Policy struct {
	Name string
	// Roles holds the accepted role values. Empty means any authenticated
	// principal passes regardless of role.
	Roles []domain.Role
}

var (
	UserOnly          = Policy{Name: "UserOnly", Roles: []domain.Role{domain.RoleUser}}
	AdminOnly         = Policy{Name: "AdminOnly", Roles: []domain.Role{domain.RoleAdmin}}
	SuperAdminOnly    = Policy{Name: "SuperAdminOnly", Roles: []domain.Role{domain.RoleSuperAdmin}}
	AdminOrSuperAdmin = Policy{Name: "AdminOrSuperAdmin", Roles: []domain.Role{domain.RoleAdmin, domain.RoleSuperAdmin}}
	AnyAuthenticated  = Policy{Name: "AnyAuthenticated"}
)

var all = []Policy{UserOnly, AdminOnly, SuperAdminOnly, AdminOrSuperAdmin, AnyAuthenticated}

// ByName looks a policy up by its name.
func ByName(name string) (Policy, bool) {
	for _, p := range all {
		if p.Name == name {
			return p, true
		}
	}
	return Policy{}, false
}

// Allows reports whether a principal holding the given role claim values
// satisfies the policy. Only presence matters; claim order never does.
func (p Policy) Allows(roles []string) bool {
	if len(p.Roles) == 0 {
		return true
	}
	for _, have := range roles {
		for _, want := range p.Roles {
			if have == string(want) {
				return true
			}
		}
	}
	return false
}
