package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"peopledesk.org/internal/realtime"
)

func TestWSRefusesUnauthenticatedUpgrade(t *testing.T) {
	api := newTestAPI(t, newMemStore())
	h := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 before upgrade, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "authentication required") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestWSConnectSubscribeAndPing(t *testing.T) {
	store := newMemStore()
	sess := store.addUser("emp-1", "user", "e-1", "")
	api := newTestAPI(t, store)

	srv := httptest.NewServer(api.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?sessionId=" + sess
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	var connected struct {
		Event string `json:"event"`
		Data  struct {
			UserID string `json:"user_id"`
		} `json:"data"`
	}
	if err := wsjson.Read(ctx, conn, &connected); err != nil {
		t.Fatalf("read connected: %v", err)
	}
	if connected.Event != "connected" || connected.Data.UserID != "emp-1" {
		t.Fatalf("unexpected hello: %+v", connected)
	}

	if err := wsjson.Write(ctx, conn, map[string]string{"event": "subscribe:notifications"}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}
	var sub realtime.Event
	if err := wsjson.Read(ctx, conn, &sub); err != nil {
		t.Fatalf("read subscribed: %v", err)
	}
	if sub.Event != "subscribed" {
		t.Fatalf("expected subscribed, got %+v", sub)
	}

	if err := wsjson.Write(ctx, conn, map[string]string{"event": "ping"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	var pong realtime.Event
	if err := wsjson.Read(ctx, conn, &pong); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if pong.Event != "pong" {
		t.Fatalf("expected pong, got %+v", pong)
	}

	if err := wsjson.Write(ctx, conn, map[string]string{"event": "no:such:event"}); err != nil {
		t.Fatalf("write unknown: %v", err)
	}
	var errEvent realtime.Event
	if err := wsjson.Read(ctx, conn, &errEvent); err != nil {
		t.Fatalf("read error event: %v", err)
	}
	if errEvent.Event != "error" {
		t.Fatalf("expected error event, got %+v", errEvent)
	}
}

func TestWSReceivesNotificationPush(t *testing.T) {
	store := newMemStore()
	sess := store.addUser("emp-1", "user", "e-1", "")
	hrSess := store.addUser("hr-1", "manager", "", "")
	api := newTestAPI(t, store)

	srv := httptest.NewServer(api.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?sessionId=" + sess
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	var hello realtime.Event
	if err := wsjson.Read(ctx, conn, &hello); err != nil {
		t.Fatalf("read connected: %v", err)
	}

	// A privileged REST write fans out to the live socket.
	rec := doJSON(t, api.Handler(), http.MethodPost, "/v1/notifications", hrSess, createNotificationRequest{
		Recipients: []string{"emp-1"}, Type: "payroll", Title: "Payslip ready",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create notification: %d %s", rec.Code, rec.Body.String())
	}

	var pushed struct {
		Event string `json:"event"`
		Data  struct {
			Type  string `json:"type"`
			Title string `json:"title"`
		} `json:"data"`
	}
	if err := wsjson.Read(ctx, conn, &pushed); err != nil {
		t.Fatalf("read push: %v", err)
	}
	if pushed.Event != "notification:new" || pushed.Data.Title != "Payslip ready" {
		t.Fatalf("unexpected push: %+v", pushed)
	}
}
