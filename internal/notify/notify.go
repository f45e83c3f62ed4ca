// Package notify is the single write path for notifications: every producer
// (chat, leave approval, payroll jobs) persists through this service, which
// then pushes a best-effort event to any live connections of the recipient.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/ids"
	"peopledesk.org/internal/obs"
	"peopledesk.org/internal/realtime"
)

var (
	ErrNotFound     = errors.New("notify: not found")
	ErrInvalidInput = errors.New("notify: invalid input")
)

// TypeSystemAlert is visible to every privileged principal, not only the row
// owner.
const TypeSystemAlert = "system_alert"

// Notification is a durable per-recipient record. Content is immutable after
// creation; only the read flag toggles.
type Notification struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Type        string     `json:"type"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	RelatedID   string     `json:"related_id,omitempty"`
	RelatedType string     `json:"related_type,omitempty"`
	IsRead      bool       `json:"is_read"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ListFilter narrows List results.
type ListFilter struct {
	Type   string
	IsRead *bool
	Limit  int
	Offset int
}

// Store persists notifications. The owner argument on mutations is the
// ownership window: empty means any owner (privileged callers), otherwise the
// row must belong to that principal. Mutations return ErrNotFound when no row
// falls inside the window.
type Store interface {
	Insert(ctx context.Context, n *Notification) error
	InsertBatch(ctx context.Context, ns []*Notification) error
	List(ctx context.Context, userID string, includeSystemAlerts bool, f ListFilter) ([]Notification, error)
	UnreadCount(ctx context.Context, userID string, includeSystemAlerts bool) (int, error)
	UnreadByRelated(ctx context.Context, userID, notificationType string) (map[string]int, error)
	MarkRead(ctx context.Context, id, owner string) (Notification, error)
	MarkUnread(ctx context.Context, id, owner string) (Notification, error)
	MarkAllRead(ctx context.Context, userID string, includeSystemAlerts bool) (int, error)
	Delete(ctx context.Context, id, owner string) (Notification, error)
}

// Dispatcher pushes events to live connections. Satisfied by *realtime.Hub.
type Dispatcher interface {
	SendToUser(ctx context.Context, principalID, event string, data any) bool
}

// Service couples the durable store with the best-effort dispatcher. The
// store write is the durability boundary; dispatch failure is deliberately
// not an error.
type Service struct {
	store      Store
	dispatcher Dispatcher
	now        func() time.Time
}

// NewService constructs the notification service.
func NewService(store Store, dispatcher Dispatcher) (*Service, error) {
	if store == nil {
		return nil, errors.New("notify: store is required")
	}
	if dispatcher == nil {
		return nil, errors.New("notify: dispatcher is required")
	}
	return &Service{store: store, dispatcher: dispatcher, now: time.Now}, nil
}

// Create persists one unread notification and pushes notification:new to the
// recipient. Insert errors propagate; an offline recipient is not an error.
func (s *Service) Create(ctx context.Context, recipientID, notificationType, title, message, relatedID, relatedType string) (Notification, error) {
	recipientID = strings.TrimSpace(recipientID)
	notificationType = strings.TrimSpace(notificationType)
	if recipientID == "" || notificationType == "" {
		return Notification{}, fmt.Errorf("%w: recipient and type are required", ErrInvalidInput)
	}
	if strings.TrimSpace(title) == "" {
		return Notification{}, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	n := Notification{
		ID:          ids.New(),
		UserID:      recipientID,
		Type:        notificationType,
		Title:       title,
		Message:     message,
		RelatedID:   relatedID,
		RelatedType: relatedType,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.Insert(ctx, &n); err != nil {
		return Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	obs.NotificationCreated(notificationType)

	s.dispatcher.SendToUser(ctx, recipientID, realtime.EventNotificationNew, n)
	return n, nil
}

// CreateBulk persists one notification per recipient in a single multi-row
// insert, then dispatches per recipient. Partial dispatch failure never rolls
// back the insert.
func (s *Service) CreateBulk(ctx context.Context, recipientIDs []string, notificationType, title, message, relatedID, relatedType string) ([]Notification, error) {
	if len(recipientIDs) == 0 {
		return nil, nil
	}
	notificationType = strings.TrimSpace(notificationType)
	if notificationType == "" || strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: type and title are required", ErrInvalidInput)
	}

	created := s.now().UTC()
	rows := make([]*Notification, 0, len(recipientIDs))
	seen := make(map[string]struct{}, len(recipientIDs))
	for _, recipient := range recipientIDs {
		recipient = strings.TrimSpace(recipient)
		if recipient == "" {
			continue
		}
		if _, dup := seen[recipient]; dup {
			continue
		}
		seen[recipient] = struct{}{}
		rows = append(rows, &Notification{
			ID:          ids.New(),
			UserID:      recipient,
			Type:        notificationType,
			Title:       title,
			Message:     message,
			RelatedID:   relatedID,
			RelatedType: relatedType,
			CreatedAt:   created,
		})
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if err := s.store.InsertBatch(ctx, rows); err != nil {
		return nil, fmt.Errorf("insert notifications: %w", err)
	}

	out := make([]Notification, 0, len(rows))
	for _, n := range rows {
		obs.NotificationCreated(notificationType)
		s.dispatcher.SendToUser(ctx, n.UserID, realtime.EventNotificationNew, *n)
		out = append(out, *n)
	}
	return out, nil
}

// List returns the caller's notifications; privileged callers additionally
// see system alerts.
func (s *Service) List(ctx context.Context, ac auth.Context, callerID string, f ListFilter) ([]Notification, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.store.List(ctx, callerID, ac.Role.Privileged(), f)
}

// UnreadCount returns the caller's unread total.
func (s *Service) UnreadCount(ctx context.Context, ac auth.Context, callerID string) (int, error) {
	return s.store.UnreadCount(ctx, callerID, ac.Role.Privileged())
}

// UnreadByRelated groups the caller's unread notifications of one type by
// their related entity id. The chat thread list uses it for per-thread
// unread badges.
func (s *Service) UnreadByRelated(ctx context.Context, callerID, notificationType string) (map[string]int, error) {
	return s.store.UnreadByRelated(ctx, callerID, notificationType)
}

// MarkRead flips a notification to read. Restricted callers may only touch
// their own rows; a foreign id is rejected with ErrNotFound.
func (s *Service) MarkRead(ctx context.Context, ac auth.Context, callerID, id string) (Notification, error) {
	n, err := s.store.MarkRead(ctx, id, ownershipWindow(ac, callerID))
	if err != nil {
		return Notification{}, err
	}
	s.dispatcher.SendToUser(ctx, n.UserID, realtime.EventNotificationRead, map[string]any{
		"id":      n.ID,
		"is_read": n.IsRead,
	})
	return n, nil
}

// MarkUnread flips a notification back to unread, same ownership rules.
func (s *Service) MarkUnread(ctx context.Context, ac auth.Context, callerID, id string) (Notification, error) {
	n, err := s.store.MarkUnread(ctx, id, ownershipWindow(ac, callerID))
	if err != nil {
		return Notification{}, err
	}
	s.dispatcher.SendToUser(ctx, n.UserID, realtime.EventNotificationRead, map[string]any{
		"id":      n.ID,
		"is_read": n.IsRead,
	})
	return n, nil
}

// MarkAllRead marks every unread notification visible to the caller as read.
func (s *Service) MarkAllRead(ctx context.Context, ac auth.Context, callerID string) (int, error) {
	count, err := s.store.MarkAllRead(ctx, callerID, ac.Role.Privileged())
	if err != nil {
		return 0, err
	}
	s.dispatcher.SendToUser(ctx, callerID, realtime.EventNotificationsAllRead, map[string]any{
		"count": count,
	})
	return count, nil
}

// Delete removes a notification, same ownership rules as MarkRead.
func (s *Service) Delete(ctx context.Context, ac auth.Context, callerID, id string) error {
	n, err := s.store.Delete(ctx, id, ownershipWindow(ac, callerID))
	if err != nil {
		return err
	}
	target := n.UserID
	if target == "" {
		target = callerID
	}
	s.dispatcher.SendToUser(ctx, target, realtime.EventNotificationDeleted, map[string]any{
		"id": n.ID,
	})
	return nil
}

// ownershipWindow returns the owner filter for a mutation: privileged roles
// operate on any row, restricted roles only on their own.
func ownershipWindow(ac auth.Context, callerID string) string {
	if ac.Role.Privileged() {
		return ""
	}
	return callerID
}
