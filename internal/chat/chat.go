// Package chat implements one-to-one messaging between employees and HR
// staff: canonical thread pairs, message history, attachments, and live
// fan-out of messages and typing signals to both participants.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/ids"
	"peopledesk.org/internal/notify"
	"peopledesk.org/internal/realtime"
)

// Thread is a conversation between exactly two principals. Participant1 is
// always the lexicographically smaller id, so the pair has one storage
// identity no matter who opened it.
type Thread struct {
	ID            string     `json:"id"`
	Participant1  string     `json:"participant1"`
	Participant2  string     `json:"participant2"`
	RelatedType   string     `json:"related_type,omitempty"`
	RelatedID     string     `json:"related_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

// Message is one entry in a thread. Deleted messages keep their row with the
// body blanked so the history stays gap-free. SenderName and Attachments are
// filled on the read and push paths, never persisted.
type Message struct {
	ID          string       `json:"id"`
	ThreadID    string       `json:"thread_id"`
	SenderID    string       `json:"sender_id"`
	SenderName  string       `json:"sender_name,omitempty"`
	Body        string       `json:"body"`
	CreatedAt   time.Time    `json:"created_at"`
	EditedAt    *time.Time   `json:"edited_at,omitempty"`
	Deleted     bool         `json:"deleted"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment is a file reference hanging off a message. The bytes live in
// object storage; only the key is recorded here.
type Attachment struct {
	ID          string    `json:"id"`
	MessageID   string    `json:"message_id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	StorageKey  string    `json:"storage_key"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists threads, messages and attachments. Sender-scoped mutations
// (UpdateMessageBody, SoftDeleteMessage) return ErrNotFound when the row does
// not belong to the sender.
type Store interface {
	InsertThread(ctx context.Context, t *Thread) error
	FindThreadByPair(ctx context.Context, p1, p2, relatedType, relatedID string) (Thread, error)
	GetThread(ctx context.Context, id string) (Thread, error)
	ListThreads(ctx context.Context, participantID string) ([]Thread, error)
	TouchThread(ctx context.Context, id string, at time.Time) error

	InsertMessage(ctx context.Context, m *Message) error
	ListMessages(ctx context.Context, threadID string, limit, offset int) ([]Message, error)
	GetMessage(ctx context.Context, id string) (Message, error)
	UpdateMessageBody(ctx context.Context, id, senderID, body string, at time.Time) (Message, error)
	SoftDeleteMessage(ctx context.Context, id, senderID string, at time.Time) (Message, error)

	InsertAttachment(ctx context.Context, a *Attachment) error
	GetAttachment(ctx context.Context, id string) (Attachment, error)
	ListAttachments(ctx context.Context, messageID string) ([]Attachment, error)
}

// Dispatcher pushes events to live connections. Satisfied by *realtime.Hub.
type Dispatcher interface {
	SendToUser(ctx context.Context, principalID, event string, data any) bool
}

// Notifier creates durable notifications and reports unread counts grouped
// by related entity. Satisfied by *notify.Service.
type Notifier interface {
	Create(ctx context.Context, recipientID, notificationType, title, message, relatedID, relatedType string) (notify.Notification, error)
	UnreadByRelated(ctx context.Context, recipientID, notificationType string) (map[string]int, error)
}

// ThreadSummary is a thread as the thread list presents it: the entity plus
// the counterpart's identity and the caller's unread badge for it.
type ThreadSummary struct {
	Thread
	CounterpartID   string `json:"counterpart_id"`
	CounterpartName string `json:"counterpart_name,omitempty"`
	UnreadCount     int    `json:"unread_count"`
}

// Service is the chat domain service.
type Service struct {
	store      Store
	policy     *Policy
	dispatcher Dispatcher
	notifier   Notifier
	now        func() time.Time
}

// NewService constructs the chat service.
func NewService(store Store, policy *Policy, dispatcher Dispatcher, notifier Notifier) (*Service, error) {
	if store == nil {
		return nil, errors.New("chat: store is required")
	}
	if policy == nil {
		return nil, errors.New("chat: policy is required")
	}
	if dispatcher == nil {
		return nil, errors.New("chat: dispatcher is required")
	}
	if notifier == nil {
		return nil, errors.New("chat: notifier is required")
	}
	return &Service{store: store, policy: policy, dispatcher: dispatcher, notifier: notifier, now: time.Now}, nil
}

// OpenThread returns the existing thread for the pair and related entity, or
// creates one. Opening a thread with yourself is rejected, and restricted
// callers may only open threads with privileged counterparts.
func (s *Service) OpenThread(ctx context.Context, ac auth.Context, callerID, counterpartID, relatedType, relatedID string) (Thread, error) {
	counterpartID = strings.TrimSpace(counterpartID)
	p1, p2, err := CanonicalPair(callerID, counterpartID)
	if err != nil {
		return Thread{}, err
	}
	if err := s.policy.CanAccess(ctx, ac, counterpartID); err != nil {
		return Thread{}, err
	}

	existing, err := s.store.FindThreadByPair(ctx, p1, p2, relatedType, relatedID)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, ErrNotFound):
		return Thread{}, fmt.Errorf("find thread: %w", err)
	}

	t := Thread{
		ID:           ids.New(),
		Participant1: p1,
		Participant2: p2,
		RelatedType:  relatedType,
		RelatedID:    relatedID,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.InsertThread(ctx, &t); err != nil {
		// Lost a race to the other participant: surface their thread.
		if found, findErr := s.store.FindThreadByPair(ctx, p1, p2, relatedType, relatedID); findErr == nil {
			return found, nil
		}
		return Thread{}, fmt.Errorf("insert thread: %w", err)
	}
	return t, nil
}

// Threads lists the caller's threads, most recent activity first, each with
// the counterpart's display name and the caller's unread badge. Unread counts
// come from the durable chat_message notifications, so they survive restarts
// and missed pushes.
func (s *Service) Threads(ctx context.Context, callerID string) ([]ThreadSummary, error) {
	threads, err := s.store.ListThreads(ctx, callerID)
	if err != nil {
		return nil, err
	}
	unread, err := s.notifier.UnreadByRelated(ctx, callerID, "chat_message")
	if err != nil {
		return nil, err
	}

	names := make(map[string]string)
	out := make([]ThreadSummary, 0, len(threads))
	for _, t := range threads {
		cp := counterpartOf(t, callerID)
		name, ok := names[cp]
		if !ok {
			name = s.displayName(ctx, cp)
			names[cp] = name
		}
		out = append(out, ThreadSummary{
			Thread:          t,
			CounterpartID:   cp,
			CounterpartName: name,
			UnreadCount:     unread[t.ID],
		})
	}
	return out, nil
}

// Messages returns a page of thread history. Restricted callers must be a
// participant and pass the cross-role policy; privileged roles may read any
// thread.
func (s *Service) Messages(ctx context.Context, ac auth.Context, callerID, threadID string, limit, offset int) ([]Message, error) {
	t, err := s.authorizeThreadRead(ctx, ac, callerID, threadID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	msgs, err := s.store.ListMessages(ctx, t.ID, limit, offset)
	if err != nil {
		return nil, err
	}

	names := map[string]string{
		t.Participant1: s.displayName(ctx, t.Participant1),
		t.Participant2: s.displayName(ctx, t.Participant2),
	}
	for i := range msgs {
		msgs[i].SenderName = names[msgs[i].SenderID]
		atts, err := s.store.ListAttachments(ctx, msgs[i].ID)
		if err != nil {
			return nil, err
		}
		msgs[i].Attachments = atts
	}
	return msgs, nil
}

// Send appends a message to a thread, bumps the thread's activity timestamp,
// pushes chat:message and chat:thread:update to both participants, and
// leaves a durable notification for the counterpart. Only the insert can
// fail the call; fan-out is best effort.
func (s *Service) Send(ctx context.Context, ac auth.Context, callerID, threadID, body string) (Message, error) {
	if strings.TrimSpace(body) == "" {
		return Message{}, fmt.Errorf("%w: message body is required", ErrInvalidInput)
	}
	t, err := s.authorizeThread(ctx, ac, callerID, threadID)
	if err != nil {
		return Message{}, err
	}

	m := Message{
		ID:        ids.New(),
		ThreadID:  t.ID,
		SenderID:  callerID,
		Body:      body,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.InsertMessage(ctx, &m); err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	if err := s.store.TouchThread(ctx, t.ID, m.CreatedAt); err == nil {
		t.LastMessageAt = &m.CreatedAt
	}

	ev := m
	ev.SenderName = ac.DisplayName
	for _, participant := range []string{t.Participant1, t.Participant2} {
		s.dispatcher.SendToUser(ctx, participant, realtime.EventChatMessage, ev)
		s.dispatcher.SendToUser(ctx, participant, realtime.EventChatThreadUpdate, t)
	}

	counterpart := counterpartOf(t, callerID)
	if _, err := s.notifier.Create(ctx, counterpart, "chat_message", "New message", snippet(body), t.ID, "chat_thread"); err != nil {
		// The message itself is durable; a failed notification row is
		// logged by the notifier's caller stack, not fatal here.
		return m, nil
	}
	return m, nil
}

// EditMessage replaces the body of the caller's own message.
func (s *Service) EditMessage(ctx context.Context, ac auth.Context, callerID, messageID, body string) (Message, error) {
	if strings.TrimSpace(body) == "" {
		return Message{}, fmt.Errorf("%w: message body is required", ErrInvalidInput)
	}
	m, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return Message{}, err
	}
	t, err := s.authorizeThread(ctx, ac, callerID, m.ThreadID)
	if err != nil {
		return Message{}, err
	}
	updated, err := s.store.UpdateMessageBody(ctx, messageID, callerID, body, s.now().UTC())
	if err != nil {
		return Message{}, err
	}
	for _, participant := range []string{t.Participant1, t.Participant2} {
		s.dispatcher.SendToUser(ctx, participant, realtime.EventChatMessage, updated)
	}
	return updated, nil
}

// DeleteMessage soft-deletes the caller's own message: the row stays, the
// body is blanked.
func (s *Service) DeleteMessage(ctx context.Context, ac auth.Context, callerID, messageID string) (Message, error) {
	m, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return Message{}, err
	}
	t, err := s.authorizeThread(ctx, ac, callerID, m.ThreadID)
	if err != nil {
		return Message{}, err
	}
	deleted, err := s.store.SoftDeleteMessage(ctx, messageID, callerID, s.now().UTC())
	if err != nil {
		return Message{}, err
	}
	for _, participant := range []string{t.Participant1, t.Participant2} {
		s.dispatcher.SendToUser(ctx, participant, realtime.EventChatMessage, deleted)
	}
	return deleted, nil
}

// AddAttachment records a stored file against the caller's own message.
func (s *Service) AddAttachment(ctx context.Context, ac auth.Context, callerID, messageID, fileName, contentType, storageKey string, sizeBytes int64) (Attachment, error) {
	if strings.TrimSpace(fileName) == "" || strings.TrimSpace(storageKey) == "" {
		return Attachment{}, fmt.Errorf("%w: file name and storage key are required", ErrInvalidInput)
	}
	m, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return Attachment{}, err
	}
	if m.SenderID != callerID {
		return Attachment{}, ErrNotFound
	}
	if _, err := s.authorizeThread(ctx, ac, callerID, m.ThreadID); err != nil {
		return Attachment{}, err
	}
	a := Attachment{
		ID:          ids.New(),
		MessageID:   m.ID,
		FileName:    fileName,
		ContentType: contentType,
		SizeBytes:   sizeBytes,
		StorageKey:  storageKey,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.InsertAttachment(ctx, &a); err != nil {
		return Attachment{}, fmt.Errorf("insert attachment: %w", err)
	}
	return a, nil
}

// Attachment fetches attachment metadata, visible to thread participants.
func (s *Service) Attachment(ctx context.Context, ac auth.Context, callerID, attachmentID string) (Attachment, error) {
	a, err := s.store.GetAttachment(ctx, attachmentID)
	if err != nil {
		return Attachment{}, err
	}
	m, err := s.store.GetMessage(ctx, a.MessageID)
	if err != nil {
		return Attachment{}, err
	}
	if _, err := s.authorizeThreadRead(ctx, ac, callerID, m.ThreadID); err != nil {
		return Attachment{}, err
	}
	return a, nil
}

// Typing relays a typing signal to the counterpart of a thread. Nothing is
// persisted.
func (s *Service) Typing(ctx context.Context, ac auth.Context, callerID, threadID string, typing bool) error {
	t, err := s.authorizeThread(ctx, ac, callerID, threadID)
	if err != nil {
		return err
	}
	s.dispatcher.SendToUser(ctx, counterpartOf(t, callerID), realtime.EventChatTyping, map[string]any{
		"thread_id": t.ID,
		"user_id":   callerID,
		"typing":    typing,
	})
	return nil
}

// authorizeThread loads a thread and enforces membership plus the cross-role
// policy. The policy is re-evaluated on every access, so role changes apply
// to existing threads immediately. Used for writes: even privileged roles
// only post into their own threads.
func (s *Service) authorizeThread(ctx context.Context, ac auth.Context, callerID, threadID string) (Thread, error) {
	t, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return Thread{}, err
	}
	if err := requireParticipant(t, callerID); err != nil {
		return Thread{}, err
	}
	if err := s.policy.CanAccess(ctx, ac, counterpartOf(t, callerID)); err != nil {
		return Thread{}, err
	}
	return t, nil
}

// authorizeThreadRead is the read-side variant: privileged roles may observe
// any thread without being a participant.
func (s *Service) authorizeThreadRead(ctx context.Context, ac auth.Context, callerID, threadID string) (Thread, error) {
	if ac.Role.Privileged() {
		return s.store.GetThread(ctx, threadID)
	}
	return s.authorizeThread(ctx, ac, callerID, threadID)
}

// displayName resolves a principal's display name, best effort. An unknown
// or unresolvable principal renders without a name, never as an error.
func (s *Service) displayName(ctx context.Context, principalID string) string {
	ac, err := s.policy.resolver.Resolve(ctx, principalID)
	if err != nil {
		return ""
	}
	return ac.DisplayName
}

// snippet shortens a body for the notification preview, truncating on a rune
// boundary so multi-byte text stays valid UTF-8.
func snippet(body string) string {
	body = strings.TrimSpace(body)
	const max = 120
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	return string(runes[:max]) + "…"
}
