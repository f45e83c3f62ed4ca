package auth

import (
	"context"
	"errors"
	"strings"
)

// DirectoryRecord is the raw row the directory returns for a principal.
type DirectoryRecord struct {
	PrincipalID string
	RoleName    string
	EmployeeID  string
	SalesRole   string
	DisplayName string
}

// Directory looks principals up in the relational store. Lookup must complete
// in a single round trip; it returns ErrNotFound for unknown principals.
type Directory interface {
	Lookup(ctx context.Context, principalID string) (DirectoryRecord, error)
}

// Resolver turns a principal id into an authorization context.
//
// Lookup failure and missing principal both resolve to the fail-closed
// default context. With StrictErrors set, infrastructure errors (anything
// other than ErrNotFound) surface as a ResolutionError instead of being
// downgraded.
type Resolver struct {
	Directory    Directory
	StrictErrors bool
}

// Resolve produces the authorization context for a principal. The returned
// error is always nil unless StrictErrors is enabled.
func (r *Resolver) Resolve(ctx context.Context, principalID string) (Context, error) {
	principalID = strings.TrimSpace(principalID)
	if principalID == "" || r == nil || r.Directory == nil {
		return DefaultContext(), nil
	}

	rec, err := r.Directory.Lookup(ctx, principalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return DefaultContext(), nil
		}
		if r.StrictErrors {
			return DefaultContext(), &ResolutionError{PrincipalID: principalID, Err: err}
		}
		return DefaultContext(), nil
	}

	role := ParseRole(rec.RoleName)
	return Context{
		Role:        role,
		Scope:       ScopeFor(role),
		OwnerID:     rec.EmployeeID,
		SalesRole:   ParseSalesRole(rec.SalesRole),
		DisplayName: rec.DisplayName,
	}, nil
}
