package httpapi

import (
	"context"
	"sync"
	"testing"
	"time"

	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/chat"
	"peopledesk.org/internal/notify"
	"peopledesk.org/internal/payroll"
	"peopledesk.org/internal/realtime"
)

// memStore backs every domain store interface for handler tests.
type memStore struct {
	mu sync.Mutex

	users       map[string]memUser // principal id -> user
	sessions    map[string]auth.Session
	notes       map[string]*notify.Notification
	threads     map[string]*chat.Thread
	messages    map[string]*chat.Message
	attachments map[string]*chat.Attachment
	commissions []payroll.Commission
}

type memUser struct {
	email        string
	passwordHash string
	role         string
	employeeID   string
	salesRole    string
}

func newMemStore() *memStore {
	return &memStore{
		users:       make(map[string]memUser),
		sessions:    make(map[string]auth.Session),
		notes:       make(map[string]*notify.Notification),
		threads:     make(map[string]*chat.Thread),
		messages:    make(map[string]*chat.Message),
		attachments: make(map[string]*chat.Attachment),
	}
}

// --- auth.Directory ---

func (m *memStore) Lookup(_ context.Context, principalID string) (auth.DirectoryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[principalID]
	if !ok {
		return auth.DirectoryRecord{}, auth.ErrNotFound
	}
	return auth.DirectoryRecord{
		PrincipalID: principalID,
		RoleName:    u.role,
		EmployeeID:  u.employeeID,
		SalesRole:   u.salesRole,
	}, nil
}

// --- auth.SessionStore ---

func (m *memStore) CreateSession(_ context.Context, s auth.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *memStore) ValidateSession(_ context.Context, sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || time.Now().After(s.ExpiresAt) {
		return "", auth.ErrNotFound
	}
	return s.UserID, nil
}

func (m *memStore) DeleteSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func (m *memStore) FindLogin(_ context.Context, email string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if u.email == email {
			return id, u.passwordHash, nil
		}
	}
	return "", "", auth.ErrNotFound
}

// --- notify.Store ---

func (m *memStore) Insert(_ context.Context, n *notify.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *n
	m.notes[n.ID] = &cp
	return nil
}

func (m *memStore) InsertBatch(ctx context.Context, ns []*notify.Notification) error {
	for _, n := range ns {
		if err := m.Insert(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) List(_ context.Context, userID string, includeSystemAlerts bool, _ notify.ListFilter) ([]notify.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []notify.Notification
	for _, n := range m.notes {
		if n.UserID == userID || (includeSystemAlerts && n.Type == notify.TypeSystemAlert) {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (m *memStore) UnreadCount(_ context.Context, userID string, includeSystemAlerts bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.notes {
		if n.IsRead {
			continue
		}
		if n.UserID == userID || (includeSystemAlerts && n.Type == notify.TypeSystemAlert) {
			count++
		}
	}
	return count, nil
}

func (m *memStore) UnreadByRelated(_ context.Context, userID, notificationType string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int)
	for _, n := range m.notes {
		if n.IsRead || n.UserID != userID || n.Type != notificationType {
			continue
		}
		if n.RelatedID != "" {
			out[n.RelatedID]++
		}
	}
	return out, nil
}

func (m *memStore) MarkRead(_ context.Context, id, owner string) (notify.Notification, error) {
	return m.setRead(id, owner, true)
}

func (m *memStore) MarkUnread(_ context.Context, id, owner string) (notify.Notification, error) {
	return m.setRead(id, owner, false)
}

func (m *memStore) setRead(id, owner string, read bool) (notify.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok || (owner != "" && n.UserID != owner) {
		return notify.Notification{}, notify.ErrNotFound
	}
	n.IsRead = read
	if read {
		now := time.Now()
		n.ReadAt = &now
	} else {
		n.ReadAt = nil
	}
	return *n, nil
}

func (m *memStore) MarkAllRead(_ context.Context, userID string, includeSystemAlerts bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.notes {
		if n.IsRead {
			continue
		}
		if n.UserID == userID || (includeSystemAlerts && n.Type == notify.TypeSystemAlert) {
			n.IsRead = true
			count++
		}
	}
	return count, nil
}

func (m *memStore) Delete(_ context.Context, id, owner string) (notify.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok || (owner != "" && n.UserID != owner) {
		return notify.Notification{}, notify.ErrNotFound
	}
	delete(m.notes, id)
	return *n, nil
}

// --- chat.Store ---

func (m *memStore) InsertThread(_ context.Context, t *chat.Thread) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.threads[t.ID] = &cp
	return nil
}

func (m *memStore) FindThreadByPair(_ context.Context, p1, p2, relatedType, relatedID string) (chat.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.threads {
		if t.Participant1 == p1 && t.Participant2 == p2 && t.RelatedType == relatedType && t.RelatedID == relatedID {
			return *t, nil
		}
	}
	return chat.Thread{}, chat.ErrNotFound
}

func (m *memStore) GetThread(_ context.Context, id string) (chat.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threads[id]
	if !ok {
		return chat.Thread{}, chat.ErrNotFound
	}
	return *t, nil
}

func (m *memStore) ListThreads(_ context.Context, participantID string) ([]chat.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []chat.Thread
	for _, t := range m.threads {
		if t.Participant1 == participantID || t.Participant2 == participantID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memStore) TouchThread(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.threads[id]
	if !ok {
		return chat.ErrNotFound
	}
	t.LastMessageAt = &at
	return nil
}

func (m *memStore) InsertMessage(_ context.Context, msg *chat.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *msg
	m.messages[msg.ID] = &cp
	return nil
}

func (m *memStore) ListMessages(_ context.Context, threadID string, _, _ int) ([]chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []chat.Message
	for _, msg := range m.messages {
		if msg.ThreadID == threadID {
			out = append(out, *msg)
		}
	}
	return out, nil
}

func (m *memStore) GetMessage(_ context.Context, id string) (chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return chat.Message{}, chat.ErrNotFound
	}
	return *msg, nil
}

func (m *memStore) UpdateMessageBody(_ context.Context, id, senderID, body string, at time.Time) (chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok || msg.SenderID != senderID || msg.Deleted {
		return chat.Message{}, chat.ErrNotFound
	}
	msg.Body = body
	msg.EditedAt = &at
	return *msg, nil
}

func (m *memStore) SoftDeleteMessage(_ context.Context, id, senderID string, at time.Time) (chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok || msg.SenderID != senderID {
		return chat.Message{}, chat.ErrNotFound
	}
	msg.Body = ""
	msg.Deleted = true
	msg.EditedAt = &at
	return *msg, nil
}

func (m *memStore) InsertAttachment(_ context.Context, a *chat.Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.attachments[a.ID] = &cp
	return nil
}

func (m *memStore) GetAttachment(_ context.Context, id string) (chat.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attachments[id]
	if !ok {
		return chat.Attachment{}, chat.ErrNotFound
	}
	return *a, nil
}

func (m *memStore) ListAttachments(_ context.Context, messageID string) ([]chat.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []chat.Attachment
	for _, a := range m.attachments {
		if a.MessageID == messageID {
			out = append(out, *a)
		}
	}
	return out, nil
}

// --- payroll.Store ---

func (m *memStore) ListCommissions(_ context.Context, employeeID string) ([]payroll.Commission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []payroll.Commission
	for _, c := range m.commissions {
		if employeeID == "" || c.EmployeeID == employeeID {
			out = append(out, c)
		}
	}
	return out, nil
}

// newTestAPI wires a full API over the in-memory store.
func newTestAPI(t *testing.T, store *memStore) *API {
	t.Helper()
	resolver := &auth.Resolver{Directory: store}
	hub := realtime.NewHub()
	notifications, err := notify.NewService(store, hub)
	if err != nil {
		t.Fatalf("notify.NewService: %v", err)
	}
	policy, err := chat.NewPolicy(resolver)
	if err != nil {
		t.Fatalf("chat.NewPolicy: %v", err)
	}
	chats, err := chat.NewService(store, policy, hub, notifications)
	if err != nil {
		t.Fatalf("chat.NewService: %v", err)
	}
	return New(Config{
		Version:       "test",
		Sessions:      auth.NewSessions(store),
		Resolver:      resolver,
		Hub:           hub,
		Notifications: notifications,
		Chats:         chats,
		Commissions:   store,
	})
}

// addUser seeds a user plus a live session and returns the session id.
func (m *memStore) addUser(principalID, role, employeeID, salesRole string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[principalID] = memUser{
		email:      principalID + "@example.test",
		role:       role,
		employeeID: employeeID,
		salesRole:  salesRole,
	}
	sessionID := "sess-" + principalID
	m.sessions[sessionID] = auth.Session{
		ID:        sessionID,
		UserID:    principalID,
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	}
	return sessionID
}
