package auth

import "context"

// Context is the resolved authorization tuple for one request or connection.
// It is computed fresh on every resolution and replaced wholesale, never
// mutated in place.
type Context struct {
	Role        Role      `json:"role"`
	Scope       Scope     `json:"scope"`
	OwnerID     string    `json:"owner_id,omitempty"`
	SalesRole   SalesRole `json:"sales_role,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
}

// DefaultContext is the fail-closed authorization context: the most
// restricted role, own-scope, no linked employee, no sales role.
func DefaultContext() Context {
	return Context{Role: RoleUser, Scope: ScopeOwn}
}

type principalContextKey struct{}

// ContextWithPrincipal attaches the authenticated principal id.
func ContextWithPrincipal(ctx context.Context, principalID string) context.Context {
	if principalID == "" {
		return ctx
	}
	return context.WithValue(ctx, principalContextKey{}, principalID)
}

// PrincipalFromContext extracts the authenticated principal id.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(principalContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
