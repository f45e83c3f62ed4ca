package httpapi

import (
	"net/http"
	"strings"

	"peopledesk.org/internal/audit"
	"peopledesk.org/internal/auth"
)

type guardDenial struct {
	Error    string `json:"error"`
	Required string `json:"required,omitempty"`
	Role     string `json:"role,omitempty"`
}

// ensurePermission authenticates the principal, resolves the authorization
// context, and checks one permission. On failure it writes the 401/403 body
// and returns ok=false.
func (a *API) ensurePermission(w http.ResponseWriter, r *http.Request, perm auth.Permission) (auth.Context, string, bool) {
	return a.ensureAnyPermission(w, r, perm)
}

// ensureAnyPermission passes when the resolved role holds at least one of
// the permissions.
func (a *API) ensureAnyPermission(w http.ResponseWriter, r *http.Request, perms ...auth.Permission) (auth.Context, string, bool) {
	principalID, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, guardDenial{Error: "authentication required"})
		return auth.Context{}, "", false
	}
	ac, err := a.resolver.Resolve(r.Context(), principalID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, guardDenial{Error: "authorization unavailable"})
		return auth.Context{}, "", false
	}
	for _, p := range perms {
		if auth.HasPermission(ac.Role, p) {
			return ac, principalID, true
		}
	}
	required := permissionList(perms)
	_ = audit.LogEvent(r.Context(), "authz.denied", map[string]any{
		"required": required,
		"role":     string(ac.Role),
		"path":     r.URL.Path,
	})
	writeJSON(w, http.StatusForbidden, guardDenial{
		Error:    "insufficient permissions",
		Required: required,
		Role:     string(ac.Role),
	})
	return auth.Context{}, "", false
}

// ensureRole is the role-membership variant of ensurePermission.
func (a *API) ensureRole(w http.ResponseWriter, r *http.Request, roles ...auth.Role) (auth.Context, string, bool) {
	principalID, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, guardDenial{Error: "authentication required"})
		return auth.Context{}, "", false
	}
	ac, err := a.resolver.Resolve(r.Context(), principalID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, guardDenial{Error: "authorization unavailable"})
		return auth.Context{}, "", false
	}
	for _, role := range roles {
		if ac.Role == role {
			return ac, principalID, true
		}
	}
	required := roleList(roles)
	_ = audit.LogEvent(r.Context(), "authz.denied", map[string]any{
		"required": required,
		"role":     string(ac.Role),
		"path":     r.URL.Path,
	})
	writeJSON(w, http.StatusForbidden, guardDenial{
		Error:    "insufficient role",
		Required: required,
		Role:     string(ac.Role),
	})
	return auth.Context{}, "", false
}

// scopeContext resolves the caller's authorization context without ever
// rejecting; an unknown or missing principal yields the restricted default.
func (a *API) scopeContext(r *http.Request) (auth.Context, string) {
	principalID, _ := auth.PrincipalFromContext(r.Context())
	ac, err := a.resolver.Resolve(r.Context(), principalID)
	if err != nil {
		return auth.DefaultContext(), principalID
	}
	return ac, principalID
}

// ensureSalesAccess gates compensation data: privileged roles pass, as do
// sales agents and sales managers. Applied after scope resolution.
func (a *API) ensureSalesAccess(w http.ResponseWriter, r *http.Request, ac auth.Context) bool {
	if ac.Role.Privileged() || ac.SalesRole.SalesAccess() {
		return true
	}
	_ = audit.LogEvent(r.Context(), "authz.denied", map[string]any{
		"required": "sales access",
		"role":     string(ac.Role),
		"path":     r.URL.Path,
	})
	writeJSON(w, http.StatusForbidden, guardDenial{
		Error:    "sales access required",
		Required: "sales role",
		Role:     string(ac.Role),
	})
	return false
}

func permissionList(perms []auth.Permission) string {
	parts := make([]string, 0, len(perms))
	for _, p := range perms {
		parts = append(parts, string(p))
	}
	return strings.Join(parts, ",")
}

func roleList(roles []auth.Role) string {
	parts := make([]string, 0, len(roles))
	for _, r := range roles {
		parts = append(parts, string(r))
	}
	return strings.Join(parts, ",")
}
