package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/payroll"
)

func doJSON(t *testing.T, h http.Handler, method, path, sessionID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionID != "" {
		req.Header.Set(sessionHeader, sessionID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestHealthAndInfoArePublic(t *testing.T) {
	api := newTestAPI(t, newMemStore())
	h := api.Handler()

	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		rec := doJSON(t, h, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestUnauthenticatedRequestIs401(t *testing.T) {
	api := newTestAPI(t, newMemStore())
	h := api.Handler()

	rec := doJSON(t, h, http.MethodGet, "/v1/notifications", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	var body map[string]string
	decodeBody(t, rec, &body)
	if body["error"] != "authentication required" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestLoginIssuesSessionCookie(t *testing.T) {
	store := newMemStore()
	hash, err := auth.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	store.addUser("u-1", "user", "emp-1", "")
	store.mu.Lock()
	u := store.users["u-1"]
	u.passwordHash = hash
	store.users["u-1"] = u
	store.mu.Unlock()

	api := newTestAPI(t, store)
	h := api.Handler()

	rec := doJSON(t, h, http.MethodPost, "/v1/auth/login", "", loginRequest{Email: "u-1@example.test", Password: "s3cret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	decodeBody(t, rec, &resp)
	if resp.SessionID == "" || time.Until(resp.ExpiresAt) <= 0 {
		t.Fatalf("unexpected login response: %+v", resp)
	}
	cookies := rec.Result().Cookies()
	found := false
	for _, c := range cookies {
		if c.Name == sessionCookie && c.Value == resp.SessionID && c.HttpOnly {
			found = true
		}
	}
	if !found {
		t.Fatalf("session cookie not set: %+v", cookies)
	}

	// The fresh session authenticates a protected endpoint.
	rec = doJSON(t, h, http.MethodGet, "/v1/notifications", resp.SessionID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("session did not authenticate: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/auth/login", "", loginRequest{Email: "u-1@example.test", Password: "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", rec.Code)
	}
}

func TestLoginIssuesBearerToken(t *testing.T) {
	t.Setenv("PEOPLEDESK_AUTH_SECRET", "handler-test-secret")
	auth.ResetSecretForTests()
	t.Cleanup(auth.ResetSecretForTests)

	store := newMemStore()
	hash, err := auth.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	store.addUser("hr-1", "manager", "", "")
	store.mu.Lock()
	u := store.users["hr-1"]
	u.passwordHash = hash
	store.users["hr-1"] = u
	store.mu.Unlock()

	api := newTestAPI(t, store)
	h := api.Handler()

	rec := doJSON(t, h, http.MethodPost, "/v1/auth/login", "", loginRequest{Email: "hr-1@example.test", Password: "s3cret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	decodeBody(t, rec, &resp)
	if resp.Token == "" {
		t.Fatal("expected a bearer token when the signing secret is configured")
	}
	claims, err := auth.ParseAndValidate(resp.Token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != "hr-1" || claims.Role != "manager" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	// The token alone authenticates a guarded endpoint.
	req := httptest.NewRequest(http.MethodGet, "/v1/notifications", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	out := httptest.NewRecorder()
	h.ServeHTTP(out, req)
	if out.Code != http.StatusOK {
		t.Fatalf("bearer token did not authenticate: %d %s", out.Code, out.Body.String())
	}
}

func TestGuardDenialNamesRequirementAndRole(t *testing.T) {
	store := newMemStore()
	sess := store.addUser("emp-1", "user", "e-1", "")
	api := newTestAPI(t, store)
	h := api.Handler()

	// Creating notifications is a privileged operation.
	rec := doJSON(t, h, http.MethodPost, "/v1/notifications", sess, createNotificationRequest{
		Recipients: []string{"emp-2"}, Type: "system_alert", Title: "x",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	var denial guardDenial
	decodeBody(t, rec, &denial)
	if denial.Required == "" || denial.Role != "user" {
		t.Fatalf("denial must name requirement and role: %+v", denial)
	}
}

func TestNotificationLifecycleOverHTTP(t *testing.T) {
	store := newMemStore()
	hrSess := store.addUser("hr-1", "manager", "", "")
	empSess := store.addUser("emp-1", "user", "e-1", "")
	api := newTestAPI(t, store)
	h := api.Handler()

	rec := doJSON(t, h, http.MethodPost, "/v1/notifications", hrSess, createNotificationRequest{
		Recipients: []string{"emp-1"}, Type: "leave_request", Title: "Approved", Message: "Enjoy",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var listResp struct {
		Notifications []struct {
			ID     string `json:"id"`
			IsRead bool   `json:"is_read"`
		} `json:"notifications"`
	}
	rec = doJSON(t, h, http.MethodGet, "/v1/notifications", empSess, nil)
	decodeBody(t, rec, &listResp)
	if len(listResp.Notifications) != 1 || listResp.Notifications[0].IsRead {
		t.Fatalf("unexpected list: %+v", listResp)
	}
	id := listResp.Notifications[0].ID

	rec = doJSON(t, h, http.MethodGet, "/v1/notifications/unread-count", empSess, nil)
	var countResp map[string]int
	decodeBody(t, rec, &countResp)
	if countResp["unread"] != 1 {
		t.Fatalf("expected 1 unread, got %d", countResp["unread"])
	}

	rec = doJSON(t, h, http.MethodPut, "/v1/notifications/"+id+"/read", empSess, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("mark read: expected 200, got %d", rec.Code)
	}

	// Another restricted principal cannot touch the row: not-found, not no-op.
	otherSess := store.addUser("emp-2", "user", "e-2", "")
	rec = doJSON(t, h, http.MethodDelete, "/v1/notifications/"+id, otherSess, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign delete: expected 404, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodDelete, "/v1/notifications/"+id, empSess, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("owner delete: expected 200, got %d", rec.Code)
	}
}

func TestChatFlowOverHTTP(t *testing.T) {
	store := newMemStore()
	empSess := store.addUser("emp-1", "user", "e-1", "")
	store.addUser("hr-1", "manager", "", "")
	api := newTestAPI(t, store)
	h := api.Handler()

	rec := doJSON(t, h, http.MethodPost, "/v1/chat/threads", empSess, openThreadRequest{ParticipantID: "hr-1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("open thread: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var thread struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &thread)

	// Employee-to-employee threads are blocked by the cross-role policy.
	store.addUser("emp-2", "user", "e-2", "")
	rec = doJSON(t, h, http.MethodPost, "/v1/chat/threads", empSess, openThreadRequest{ParticipantID: "emp-2"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for employee pair, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/chat/threads/"+thread.ID+"/messages", empSess, sendMessageRequest{Body: "hello"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("send: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var msg struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &msg)

	rec = doJSON(t, h, http.MethodGet, "/v1/chat/threads/"+thread.ID+"/messages", empSess, nil)
	var msgs struct {
		Messages []struct {
			Body string `json:"body"`
		} `json:"messages"`
	}
	decodeBody(t, rec, &msgs)
	if len(msgs.Messages) != 1 || msgs.Messages[0].Body != "hello" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}

	// Sending leaves a durable notification for the counterpart.
	hrSess := "sess-hr-1"
	rec = doJSON(t, h, http.MethodGet, "/v1/notifications", hrSess, nil)
	var hrNotes struct {
		Notifications []struct {
			Type        string `json:"type"`
			RelatedType string `json:"related_type"`
		} `json:"notifications"`
	}
	decodeBody(t, rec, &hrNotes)
	if len(hrNotes.Notifications) != 1 || hrNotes.Notifications[0].Type != "chat_message" || hrNotes.Notifications[0].RelatedType != "chat_thread" {
		t.Fatalf("counterpart notification missing: %+v", hrNotes)
	}

	// Only the sender may edit.
	rec = doJSON(t, h, http.MethodPut, "/v1/chat/messages/"+msg.ID, hrSess, editMessageRequest{Body: "hijack"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign edit: expected 404, got %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodPut, "/v1/chat/messages/"+msg.ID, empSess, editMessageRequest{Body: "hello!"})
	if rec.Code != http.StatusOK {
		t.Fatalf("edit: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/chat/threads/"+thread.ID+"/typing", empSess, typingRequest{Typing: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("typing: expected 200, got %d", rec.Code)
	}
}

func TestCommissionsScopeAndSalesGate(t *testing.T) {
	store := newMemStore()
	plainSess := store.addUser("emp-1", "user", "e-1", "")
	agentSess := store.addUser("emp-2", "user", "e-2", "agent")
	mgrSess := store.addUser("hr-1", "manager", "", "")
	store.commissions = []payroll.Commission{
		{ID: "c-1", EmployeeID: "e-2", Period: "2026-08", AmountCent: 125000, Currency: "USD", Status: "paid"},
		{ID: "c-2", EmployeeID: "e-9", Period: "2026-08", AmountCent: 90000, Currency: "USD", Status: "paid"},
	}
	api := newTestAPI(t, store)
	h := api.Handler()

	// No sales role, no privileged role: gate closes.
	rec := doJSON(t, h, http.MethodGet, "/v1/commissions", plainSess, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	// Sales agent passes, but the own-scope pins the employee filter even
	// when the query asks for someone else.
	rec = doJSON(t, h, http.MethodGet, "/v1/commissions?employee_id=e-9", agentSess, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("agent: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Commissions []payroll.Commission `json:"commissions"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Commissions) != 1 || resp.Commissions[0].EmployeeID != "e-2" {
		t.Fatalf("scope not pinned: %+v", resp.Commissions)
	}

	// Managers see everything.
	rec = doJSON(t, h, http.MethodGet, "/v1/commissions", mgrSess, nil)
	decodeBody(t, rec, &resp)
	if len(resp.Commissions) != 2 {
		t.Fatalf("manager should see all lines, got %+v", resp.Commissions)
	}

	// An own-scoped agent without a linked employee record gets no rows;
	// the missing filter value must never widen the query to everyone.
	orphanSess := store.addUser("emp-3", "user", "", "agent")
	rec = doJSON(t, h, http.MethodGet, "/v1/commissions", orphanSess, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("orphan agent: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &resp)
	if len(resp.Commissions) != 0 {
		t.Fatalf("own scope without employee record must return no rows, got %+v", resp.Commissions)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	store := newMemStore()
	sess := store.addUser("emp-1", "user", "e-1", "")
	api := newTestAPI(t, store)
	h := api.Handler()

	rec := doJSON(t, h, http.MethodPost, "/v1/auth/logout", sess, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/v1/notifications", sess, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rec.Code)
	}
}
