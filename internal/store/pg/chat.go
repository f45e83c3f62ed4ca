package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"peopledesk.org/internal/chat"
)

var _ chat.Store = (*Store)(nil)

const threadColumns = `id, participant1, participant2,
	coalesce(related_type,''), coalesce(related_id,''), created_at, last_message_at`

const messageColumns = `id, thread_id, sender_id, body, created_at, edited_at, deleted`

func (s *Store) InsertThread(ctx context.Context, t *chat.Thread) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `
		insert into chat_threads (id, participant1, participant2, related_type, related_id, created_at)
		values ($1, $2, $3, $4, $5, $6)
	`, t.ID, t.Participant1, t.Participant2, nullIfEmpty(t.RelatedType), nullIfEmpty(t.RelatedID), t.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return chat.ErrConflict
			case pgErrForeignKeyViolation:
				return chat.ErrNotFound
			}
		}
		return err
	}
	return nil
}

func (s *Store) FindThreadByPair(ctx context.Context, p1, p2, relatedType, relatedID string) (chat.Thread, error) {
	if s.db == nil {
		return chat.Thread{}, errors.New("database connection unavailable")
	}
	t, err := scanThread(s.db.QueryRowContext(ctx, `
		select `+threadColumns+`
		from chat_threads
		where participant1 = $1 and participant2 = $2
		  and coalesce(related_type,'') = $3 and coalesce(related_id,'') = $4
	`, p1, p2, relatedType, relatedID))
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Thread{}, chat.ErrNotFound
	}
	if err != nil {
		return chat.Thread{}, err
	}
	return t, nil
}

func (s *Store) GetThread(ctx context.Context, id string) (chat.Thread, error) {
	if s.db == nil {
		return chat.Thread{}, errors.New("database connection unavailable")
	}
	t, err := scanThread(s.db.QueryRowContext(ctx, `
		select `+threadColumns+`
		from chat_threads
		where id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Thread{}, chat.ErrNotFound
	}
	if err != nil {
		return chat.Thread{}, err
	}
	return t, nil
}

func (s *Store) ListThreads(ctx context.Context, participantID string) ([]chat.Thread, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+threadColumns+`
		from chat_threads
		where participant1 = $1 or participant2 = $1
		order by coalesce(last_message_at, created_at) desc
	`, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []chat.Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) TouchThread(ctx context.Context, id string, at time.Time) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	res, err := s.db.ExecContext(ctx, `
		update chat_threads set last_message_at = $2 where id = $1
	`, id, at)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return chat.ErrNotFound
	}
	return nil
}

func (s *Store) InsertMessage(ctx context.Context, m *chat.Message) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `
		insert into chat_messages (id, thread_id, sender_id, body, created_at, deleted)
		values ($1, $2, $3, $4, $5, false)
	`, m.ID, m.ThreadID, m.SenderID, m.Body, m.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return chat.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) ListMessages(ctx context.Context, threadID string, limit, offset int) ([]chat.Message, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		select `+messageColumns+`
		from chat_messages
		where thread_id = $1
		order by created_at asc
		limit $2 offset $3
	`, threadID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []chat.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) GetMessage(ctx context.Context, id string) (chat.Message, error) {
	if s.db == nil {
		return chat.Message{}, errors.New("database connection unavailable")
	}
	m, err := scanMessage(s.db.QueryRowContext(ctx, `
		select `+messageColumns+`
		from chat_messages
		where id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Message{}, chat.ErrNotFound
	}
	if err != nil {
		return chat.Message{}, err
	}
	return m, nil
}

func (s *Store) UpdateMessageBody(ctx context.Context, id, senderID, body string, at time.Time) (chat.Message, error) {
	if s.db == nil {
		return chat.Message{}, errors.New("database connection unavailable")
	}
	m, err := scanMessage(s.db.QueryRowContext(ctx, `
		update chat_messages set body = $3, edited_at = $4
		where id = $1 and sender_id = $2 and not deleted
		returning `+messageColumns+`
	`, id, senderID, body, at))
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Message{}, chat.ErrNotFound
	}
	if err != nil {
		return chat.Message{}, err
	}
	return m, nil
}

func (s *Store) SoftDeleteMessage(ctx context.Context, id, senderID string, at time.Time) (chat.Message, error) {
	if s.db == nil {
		return chat.Message{}, errors.New("database connection unavailable")
	}
	m, err := scanMessage(s.db.QueryRowContext(ctx, `
		update chat_messages set body = '', deleted = true, edited_at = $3
		where id = $1 and sender_id = $2
		returning `+messageColumns+`
	`, id, senderID, at))
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Message{}, chat.ErrNotFound
	}
	if err != nil {
		return chat.Message{}, err
	}
	return m, nil
}

func (s *Store) InsertAttachment(ctx context.Context, a *chat.Attachment) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	_, err := s.db.ExecContext(ctx, `
		insert into chat_attachments (id, message_id, file_name, content_type, size_bytes, storage_key, created_at)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, a.ID, a.MessageID, a.FileName, a.ContentType, a.SizeBytes, a.StorageKey, a.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return chat.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Store) GetAttachment(ctx context.Context, id string) (chat.Attachment, error) {
	if s.db == nil {
		return chat.Attachment{}, errors.New("database connection unavailable")
	}
	var a chat.Attachment
	err := s.db.QueryRowContext(ctx, `
		select id, message_id, file_name, content_type, size_bytes, storage_key, created_at
		from chat_attachments
		where id = $1
	`, id).Scan(&a.ID, &a.MessageID, &a.FileName, &a.ContentType, &a.SizeBytes, &a.StorageKey, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Attachment{}, chat.ErrNotFound
	}
	if err != nil {
		return chat.Attachment{}, err
	}
	return a, nil
}

func (s *Store) ListAttachments(ctx context.Context, messageID string) ([]chat.Attachment, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, message_id, file_name, content_type, size_bytes, storage_key, created_at
		from chat_attachments
		where message_id = $1
		order by created_at asc
	`, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []chat.Attachment
	for rows.Next() {
		var a chat.Attachment
		if err := rows.Scan(&a.ID, &a.MessageID, &a.FileName, &a.ContentType, &a.SizeBytes, &a.StorageKey, &a.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanThread(row rowScanner) (chat.Thread, error) {
	var (
		t    chat.Thread
		last sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.Participant1, &t.Participant2, &t.RelatedType, &t.RelatedID, &t.CreatedAt, &last); err != nil {
		return chat.Thread{}, err
	}
	if last.Valid {
		at := last.Time
		t.LastMessageAt = &at
	}
	return t, nil
}

func scanMessage(row rowScanner) (chat.Message, error) {
	var (
		m      chat.Message
		edited sql.NullTime
	)
	if err := row.Scan(&m.ID, &m.ThreadID, &m.SenderID, &m.Body, &m.CreatedAt, &edited, &m.Deleted); err != nil {
		return chat.Message{}, err
	}
	if edited.Valid {
		at := edited.Time
		m.EditedAt = &at
	}
	return m, nil
}
