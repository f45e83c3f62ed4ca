package pg

import (
	"context"
	"database/sql"
	"errors"

	"peopledesk.org/internal/auth"
)

var (
	_ auth.Directory    = (*Store)(nil)
	_ auth.SessionStore = (*Store)(nil)
)

// Lookup resolves a principal's role assignment in a single round trip.
// Principals without an hr_roles row fall out as the restricted default.
func (s *Store) Lookup(ctx context.Context, principalID string) (auth.DirectoryRecord, error) {
	if s.db == nil {
		return auth.DirectoryRecord{}, errors.New("database connection unavailable")
	}
	var rec auth.DirectoryRecord
	err := s.db.QueryRowContext(ctx, `
		select u.id,
		       coalesce(r.role, 'user'),
		       coalesce(e.id, ''),
		       coalesce(r.sales_role, ''),
		       coalesce(e.display_name, '')
		from users u
		left join hr_roles r on r.user_id = u.id
		left join employees e on e.user_id = u.id
		where u.id = $1 and u.status = 'active'
	`, principalID).Scan(&rec.PrincipalID, &rec.RoleName, &rec.EmployeeID, &rec.SalesRole, &rec.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.DirectoryRecord{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.DirectoryRecord{}, err
	}
	return rec, nil
}

func (s *Store) CreateSession(ctx context.Context, sess auth.Session) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `
		insert into user_sessions (id, user_id, created_at, expires_at)
		values ($1, $2, $3, $4)
	`, sess.ID, sess.UserID, sess.CreatedAt, sess.ExpiresAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return auth.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) ValidateSession(ctx context.Context, sessionID string) (string, error) {
	if s.db == nil {
		return "", errors.New("database connection unavailable")
	}
	var principalID string
	err := s.db.QueryRowContext(ctx, `
		select s.user_id
		from user_sessions s
		join users u on u.id = s.user_id
		where s.id = $1 and s.expires_at > now() and u.status = 'active'
	`, sessionID).Scan(&principalID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", auth.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return principalID, nil
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `delete from user_sessions where id = $1`, sessionID)
	return err
}

func (s *Store) FindLogin(ctx context.Context, email string) (string, string, error) {
	if s.db == nil {
		return "", "", errors.New("database connection unavailable")
	}
	var principalID, hash string
	err := s.db.QueryRowContext(ctx, `
		select id, password_hash
		from users
		where lower(email) = lower($1) and status = 'active'
	`, email).Scan(&principalID, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", auth.ErrNotFound
	}
	if err != nil {
		return "", "", err
	}
	return principalID, hash, nil
}

// PurgeExpiredSessions removes sessions past their expiry. Called from the
// server's housekeeping loop.
func (s *Store) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `delete from user_sessions where expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
