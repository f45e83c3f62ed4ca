package auth

import "strings"

// Role is the closed set of access roles. Admin and manager are the
// privileged roles; user is the restricted default everything falls back to.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

// ParseRole normalizes a stored role name. Anything outside the closed set
// collapses to the restricted role rather than erroring.
func ParseRole(raw string) Role {
	switch Role(strings.TrimSpace(strings.ToLower(raw))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleManager:
		return RoleManager
	default:
		return RoleUser
	}
}

// Privileged reports whether the role may observe data beyond its own record.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleManager
}

// Scope limits row access to the principal's own linked employee record or
// leaves it unrestricted.
type Scope string

const (
	ScopeOwn Scope = "own"
	ScopeAll Scope = "all"
)

// ScopeFor derives the data scope from the role.
func ScopeFor(r Role) Scope {
	if r.Privileged() {
		return ScopeAll
	}
	return ScopeOwn
}

// SalesRole is the optional sales assignment carried alongside the access
// role. It exists for a single policy exception on bonuses and commissions.
type SalesRole string

const (
	SalesRoleNone    SalesRole = ""
	SalesRoleAgent   SalesRole = "agent"
	SalesRoleManager SalesRole = "manager"
)

// ParseSalesRole normalizes a stored sales role; unknown values mean none.
func ParseSalesRole(raw string) SalesRole {
	switch SalesRole(strings.TrimSpace(strings.ToLower(raw))) {
	case SalesRoleAgent:
		return SalesRoleAgent
	case SalesRoleManager:
		return SalesRoleManager
	default:
		return SalesRoleNone
	}
}

// SalesAccess reports whether the sales role alone grants access to bonus and
// commission data regardless of the access role's permission set.
func (s SalesRole) SalesAccess() bool {
	return s == SalesRoleAgent || s == SalesRoleManager
}
