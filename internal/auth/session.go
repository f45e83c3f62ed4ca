package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultSessionTTL = 12 * time.Hour

// Session is a server-side credential row backing the cookie/header session id.
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Credential is the set of fields a validated credential yields.
type Credential struct {
	PrincipalID string
	SessionID   string
}

// SessionStore persists sessions and the login lookup.
type SessionStore interface {
	// CreateSession inserts a new session row.
	CreateSession(ctx context.Context, s Session) error
	// ValidateSession returns the principal owning a live, unexpired session.
	ValidateSession(ctx context.Context, sessionID string) (string, error)
	// DeleteSession removes a session; deleting an unknown id is not an error.
	DeleteSession(ctx context.Context, sessionID string) error
	// FindLogin returns the principal id and password hash for an email.
	FindLogin(ctx context.Context, email string) (principalID, passwordHash string, err error)
}

// Sessions issues and validates DB-backed sessions.
type Sessions struct {
	Store SessionStore
	TTL   time.Duration
	now   func() time.Time
}

// NewSessions constructs a session service with the default TTL.
func NewSessions(store SessionStore) *Sessions {
	return &Sessions{Store: store, TTL: defaultSessionTTL, now: time.Now}
}

// Login verifies credentials and creates a session.
func (s *Sessions) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Session{}, ErrUnauthorized
	}
	principalID, hash, err := s.Store.FindLogin(ctx, email)
	if err != nil {
		// Unknown email and store failure both present as a failed login.
		return Session{}, ErrUnauthorized
	}
	if err := VerifyPassword(hash, password); err != nil {
		return Session{}, ErrUnauthorized
	}
	now := s.clock()
	sess := Session{
		ID:        uuid.NewString(),
		UserID:    principalID,
		ExpiresAt: now.Add(s.ttl()),
		CreatedAt: now,
	}
	if err := s.Store.CreateSession(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Logout destroys the session. Missing sessions are ignored.
func (s *Sessions) Logout(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil
	}
	return s.Store.DeleteSession(ctx, sessionID)
}

// Validate checks a raw credential: a bearer JWT takes priority, then a
// session id. It returns the principal the credential belongs to.
func (s *Sessions) Validate(ctx context.Context, bearerToken, sessionID string) (Credential, error) {
	if bearerToken != "" {
		claims, err := ParseAndValidate(bearerToken)
		if err == nil {
			return Credential{PrincipalID: claims.Subject}, nil
		}
		if !errors.Is(err, errMissingSecret) {
			return Credential{}, ErrInvalidToken
		}
		// Token support not configured; fall through to the session id.
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return Credential{}, ErrUnauthorized
	}
	principalID, err := s.Store.ValidateSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Credential{}, ErrUnauthorized
		}
		return Credential{}, err
	}
	return Credential{PrincipalID: principalID, SessionID: sessionID}, nil
}

func (s *Sessions) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return defaultSessionTTL
}

func (s *Sessions) clock() time.Time {
	if s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}
