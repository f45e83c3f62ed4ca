package chat

import (
	"context"
	"errors"
	"fmt"

	"peopledesk.org/internal/auth"
)

var (
	ErrNotFound     = errors.New("chat: not found")
	ErrConflict     = errors.New("chat: conflict")
	ErrInvalidInput = errors.New("chat: invalid input")
	ErrForbidden    = errors.New("chat: forbidden")
	ErrSelfThread   = errors.New("chat: cannot open a thread with yourself")
)

// CanonicalPair orders two participant ids so a thread between them has a
// single storage identity regardless of who opened it.
func CanonicalPair(a, b string) (string, string, error) {
	if a == "" || b == "" {
		return "", "", fmt.Errorf("%w: both participants are required", ErrInvalidInput)
	}
	if a == b {
		return "", "", ErrSelfThread
	}
	if a < b {
		return a, b, nil
	}
	return b, a, nil
}

// Policy decides who may talk to whom. The rule mirrors the org chart:
// privileged principals (admin, manager) may open and use threads with
// anyone, restricted principals only with currently-privileged counterparts.
// The counterpart's role is resolved live on every check; a demotion takes
// effect on the next access, not at thread creation.
type Policy struct {
	resolver *auth.Resolver
}

// NewPolicy constructs the thread access policy.
func NewPolicy(resolver *auth.Resolver) (*Policy, error) {
	if resolver == nil {
		return nil, errors.New("chat: resolver is required")
	}
	return &Policy{resolver: resolver}, nil
}

// CanAccess reports whether the caller may use a thread with the given
// counterpart. Returns ErrForbidden with a reason on denial. Resolution
// failures fail closed for restricted callers.
func (p *Policy) CanAccess(ctx context.Context, caller auth.Context, counterpartID string) error {
	if caller.Role.Privileged() {
		return nil
	}
	counterpart, err := p.resolver.Resolve(ctx, counterpartID)
	if err != nil {
		return fmt.Errorf("%w: counterpart role could not be resolved", ErrForbidden)
	}
	if !counterpart.Role.Privileged() {
		return fmt.Errorf("%w: employees may only message HR staff", ErrForbidden)
	}
	return nil
}

// requireParticipant verifies thread membership. Writes (sending, editing,
// typing) are restricted to the pair; privileged roles may still observe any
// thread through the read path.
func requireParticipant(t Thread, principalID string) error {
	if t.Participant1 == principalID || t.Participant2 == principalID {
		return nil
	}
	return ErrNotFound
}

// counterpartOf returns the other participant of a thread.
func counterpartOf(t Thread, principalID string) string {
	if t.Participant1 == principalID {
		return t.Participant2
	}
	return t.Participant1
}
