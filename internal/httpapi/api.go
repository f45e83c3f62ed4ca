// Package httpapi is the HTTP and websocket surface: routing, authentication,
// authorization guards, and handlers over the domain services.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/chat"
	"peopledesk.org/internal/notify"
	"peopledesk.org/internal/obs"
	"peopledesk.org/internal/payroll"
	"peopledesk.org/internal/realtime"
)

// ReadyProbe checks the service's dependencies for the readiness endpoint.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Config carries the API's collaborators.
type Config struct {
	Version       string
	ReadyProbe    ReadyProbe
	Sessions      *auth.Sessions
	Resolver      *auth.Resolver
	Hub           *realtime.Hub
	Notifications *notify.Service
	Chats         *chat.Service
	Commissions   payroll.Store
}

type API struct {
	mux         *http.ServeMux
	readyProbe  ReadyProbe
	version     string
	sessions    *auth.Sessions
	resolver    *auth.Resolver
	hub         *realtime.Hub
	notify      *notify.Service
	chats       *chat.Service
	commissions payroll.Store
}

func New(cfg Config) *API {
	a := &API{
		mux:         http.NewServeMux(),
		readyProbe:  cfg.ReadyProbe,
		version:     cfg.Version,
		sessions:    cfg.Sessions,
		resolver:    cfg.Resolver,
		hub:         cfg.Hub,
		notify:      cfg.Notifications,
		chats:       cfg.Chats,
		commissions: cfg.Commissions,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// auth
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)

	// notifications
	a.mux.HandleFunc("/v1/notifications", a.handleNotifications)
	a.mux.HandleFunc("/v1/notifications/unread-count", a.handleUnreadCount)
	a.mux.HandleFunc("/v1/notifications/mark-all-read", a.handleMarkAllRead)
	a.mux.HandleFunc("/v1/notifications/", a.handleNotificationScoped)

	// chat
	a.mux.HandleFunc("/v1/chat/threads", a.handleThreads)
	a.mux.HandleFunc("/v1/chat/threads/", a.handleThreadScoped)
	a.mux.HandleFunc("/v1/chat/messages/", a.handleMessageScoped)
	a.mux.HandleFunc("/v1/chat/attachments/", a.handleAttachmentScoped)

	// compensation
	a.mux.HandleFunc("/v1/commissions", a.handleCommissions)

	// realtime
	a.mux.HandleFunc("/ws", a.handleWS)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, 200, 100)
	h = SecurityHeaders(h)
	h = CORS(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "peopledesk-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "peopledesk-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
