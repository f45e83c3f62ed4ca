package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCredentialsPrecedence(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/v1/notifications", nil)
	r.AddCookie(&http.Cookie{Name: sessionCookie, Value: "from-cookie"})
	bearerToken, sessionID := credentials(r)
	if bearerToken != "" || sessionID != "from-cookie" {
		t.Fatalf("cookie credential not picked up: %q %q", bearerToken, sessionID)
	}

	r.Header.Set(sessionHeader, "from-header")
	_, sessionID = credentials(r)
	if sessionID != "from-header" {
		t.Fatalf("header should override cookie, got %q", sessionID)
	}

	r = httptest.NewRequest(http.MethodGet, "/ws?sessionId=from-query", nil)
	r.Header.Set(sessionHeader, "from-header")
	_, sessionID = credentials(r)
	if sessionID != "from-query" {
		t.Fatalf("query should override header, got %q", sessionID)
	}

	r = httptest.NewRequest(http.MethodGet, "/v1/notifications", nil)
	r.Header.Set(authHeader, "Bearer tok-123")
	bearerToken, _ = credentials(r)
	if bearerToken != "tok-123" {
		t.Fatalf("bearer token not extracted: %q", bearerToken)
	}

	r.Header.Set(authHeader, "Basic dXNlcg==")
	bearerToken, _ = credentials(r)
	if bearerToken != "" {
		t.Fatalf("non-bearer scheme must be ignored, got %q", bearerToken)
	}
}

func TestIsPublicPath(t *testing.T) {
	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/v1/info", "/v1/auth/login", "/"} {
		if !isPublicPath(path) {
			t.Fatalf("%s should be public", path)
		}
	}
	for _, path := range []string{"/v1/notifications", "/v1/chat/threads", "/ws", "/v1/auth/logout"} {
		if isPublicPath(path) {
			t.Fatalf("%s should require authentication", path)
		}
	}
}

func TestOptionsRequestsSkipAuth(t *testing.T) {
	api := newTestAPI(t, newMemStore())
	h := api.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/v1/notifications", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: expected 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Fatalf("missing CORS allow-origin: %v", rec.Header())
	}
}
