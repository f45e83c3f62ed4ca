package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"peopledesk.org/internal/notify"
)

var _ notify.Store = (*Store)(nil)

const notificationColumns = `id, user_id, type, title, message,
	coalesce(related_id,''), coalesce(related_type,''), is_read, read_at, created_at`

func (s *Store) Insert(ctx context.Context, n *notify.Notification) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `
		insert into notifications (id, user_id, type, title, message, related_id, related_type, is_read, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, false, $8)
	`, n.ID, n.UserID, n.Type, n.Title, n.Message, nullIfEmpty(n.RelatedID), nullIfEmpty(n.RelatedType), n.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return notify.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) InsertBatch(ctx context.Context, ns []*notify.Notification) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	if len(ns) == 0 {
		return nil
	}
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`insert into notifications (id, user_id, type, title, message, related_id, related_type, is_read, created_at) values `)
	for i, n := range ns {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 8
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, false, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8)
		args = append(args, n.ID, n.UserID, n.Type, n.Title, n.Message,
			nullIfEmpty(n.RelatedID), nullIfEmpty(n.RelatedType), n.CreatedAt)
	}
	_, err := s.db.ExecContext(ctx, sb.String(), args...)
	return err
}

func (s *Store) List(ctx context.Context, userID string, includeSystemAlerts bool, f notify.ListFilter) ([]notify.Notification, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	var (
		where []string
		args  []any
		idx   = 1
	)
	if includeSystemAlerts {
		where = append(where, fmt.Sprintf("(user_id = $%d or type = 'system_alert')", idx))
	} else {
		where = append(where, fmt.Sprintf("user_id = $%d", idx))
	}
	args = append(args, userID)
	idx++
	if f.Type != "" {
		where = append(where, fmt.Sprintf("type = $%d", idx))
		args = append(args, f.Type)
		idx++
	}
	if f.IsRead != nil {
		where = append(where, fmt.Sprintf("is_read = $%d", idx))
		args = append(args, *f.IsRead)
		idx++
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := fmt.Sprintf(`
		select %s
		from notifications
		where %s
		order by created_at desc
		limit $%d offset $%d
	`, notificationColumns, strings.Join(where, " and "), idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []notify.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) UnreadCount(ctx context.Context, userID string, includeSystemAlerts bool) (int, error) {
	if s.db == nil {
		return 0, errors.New("database connection unavailable")
	}
	query := `select count(*) from notifications where user_id = $1 and not is_read`
	if includeSystemAlerts {
		query = `select count(*) from notifications where (user_id = $1 or type = 'system_alert') and not is_read`
	}
	var count int
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) UnreadByRelated(ctx context.Context, userID, notificationType string) (map[string]int, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select coalesce(related_id, ''), count(*)
		from notifications
		where user_id = $1 and type = $2 and not is_read
		group by related_id
	`, userID, notificationType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var (
			relatedID string
			count     int
		)
		if err := rows.Scan(&relatedID, &count); err != nil {
			return nil, err
		}
		if relatedID != "" {
			result[relatedID] = count
		}
	}
	return result, rows.Err()
}

func (s *Store) MarkRead(ctx context.Context, id, owner string) (notify.Notification, error) {
	return s.setRead(ctx, id, owner, true)
}

func (s *Store) MarkUnread(ctx context.Context, id, owner string) (notify.Notification, error) {
	return s.setRead(ctx, id, owner, false)
}

// setRead flips the read flag inside the caller's ownership window. An empty
// owner means any row; otherwise the update is scoped to the owner so a
// foreign id surfaces as ErrNotFound rather than a silent no-op.
func (s *Store) setRead(ctx context.Context, id, owner string, read bool) (notify.Notification, error) {
	if s.db == nil {
		return notify.Notification{}, errors.New("database connection unavailable")
	}
	var (
		readAt any
		query  string
		args   []any
	)
	if read {
		readAt = time.Now().UTC()
	}
	if owner == "" {
		query = fmt.Sprintf(`
			update notifications set is_read = $2, read_at = $3
			where id = $1
			returning %s
		`, notificationColumns)
		args = []any{id, read, readAt}
	} else {
		query = fmt.Sprintf(`
			update notifications set is_read = $2, read_at = $3
			where id = $1 and user_id = $4
			returning %s
		`, notificationColumns)
		args = []any{id, read, readAt, owner}
	}
	n, err := scanNotification(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return notify.Notification{}, notify.ErrNotFound
	}
	if err != nil {
		return notify.Notification{}, err
	}
	return n, nil
}

func (s *Store) MarkAllRead(ctx context.Context, userID string, includeSystemAlerts bool) (int, error) {
	if s.db == nil {
		return 0, errors.New("database connection unavailable")
	}
	query := `
		update notifications set is_read = true, read_at = now()
		where user_id = $1 and not is_read
	`
	if includeSystemAlerts {
		query = `
			update notifications set is_read = true, read_at = now()
			where (user_id = $1 or type = 'system_alert') and not is_read
		`
	}
	res, err := s.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(aff), nil
}

func (s *Store) Delete(ctx context.Context, id, owner string) (notify.Notification, error) {
	if s.db == nil {
		return notify.Notification{}, errors.New("database connection unavailable")
	}
	var (
		query string
		args  []any
	)
	if owner == "" {
		query = fmt.Sprintf(`delete from notifications where id = $1 returning %s`, notificationColumns)
		args = []any{id}
	} else {
		query = fmt.Sprintf(`delete from notifications where id = $1 and user_id = $2 returning %s`, notificationColumns)
		args = []any{id, owner}
	}
	n, err := scanNotification(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return notify.Notification{}, notify.ErrNotFound
	}
	if err != nil {
		return notify.Notification{}, err
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (notify.Notification, error) {
	var (
		n      notify.Notification
		readAt sql.NullTime
	)
	if err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message,
		&n.RelatedID, &n.RelatedType, &n.IsRead, &readAt, &n.CreatedAt); err != nil {
		return notify.Notification{}, err
	}
	if readAt.Valid {
		t := readAt.Time
		n.ReadAt = &t
	}
	return n, nil
}
