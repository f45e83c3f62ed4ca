package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"peopledesk.org/internal/audit"
	"peopledesk.org/internal/auth"
	"peopledesk.org/internal/notify"
)

func (a *API) handleNotifications(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listNotifications(w, r)
	case http.MethodPost:
		a.createNotification(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listNotifications(w http.ResponseWriter, r *http.Request) {
	ac, callerID, ok := a.ensurePermission(w, r, auth.PermEmployeesView)
	if !ok {
		return
	}
	f := notify.ListFilter{
		Type:   strings.TrimSpace(r.URL.Query().Get("type")),
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	}
	if v := r.URL.Query().Get("is_read"); v != "" {
		isRead := v == "true"
		f.IsRead = &isRead
	}
	items, err := a.notify.List(r.Context(), ac, callerID, f)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": items})
}

type createNotificationRequest struct {
	Recipients  []string `json:"recipients"`
	Type        string   `json:"type"`
	Title       string   `json:"title"`
	Message     string   `json:"message"`
	RelatedID   string   `json:"related_id"`
	RelatedType string   `json:"related_type"`
}

// createNotification is the privileged announcement path: HR staff push
// notifications (including system alerts) to one or many recipients.
func (a *API) createNotification(w http.ResponseWriter, r *http.Request) {
	_, _, ok := a.ensureRole(w, r, auth.RoleAdmin, auth.RoleManager)
	if !ok {
		return
	}
	var req createNotificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Recipients) == 0 {
		respondError(w, http.StatusBadRequest, "recipients are required")
		return
	}

	created, err := a.notify.CreateBulk(r.Context(), req.Recipients, req.Type, req.Title, req.Message, req.RelatedID, req.RelatedType)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "notification.create", map[string]any{
		"type":       req.Type,
		"recipients": len(created),
	})
	writeJSON(w, http.StatusCreated, map[string]any{"notifications": created})
}

func (a *API) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	ac, callerID, ok := a.ensurePermission(w, r, auth.PermEmployeesView)
	if !ok {
		return
	}
	count, err := a.notify.UnreadCount(r.Context(), ac, callerID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unread": count})
}

func (a *API) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	ac, callerID, ok := a.ensurePermission(w, r, auth.PermEmployeesView)
	if !ok {
		return
	}
	count, err := a.notify.MarkAllRead(r.Context(), ac, callerID)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"marked": count})
}

// handleNotificationScoped routes /v1/notifications/{id}[/read|/unread].
func (a *API) handleNotificationScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/notifications/"), "/")
	if path == "" {
		respondError(w, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")

	ac, callerID, ok := a.ensurePermission(w, r, auth.PermEmployeesView)
	if !ok {
		return
	}
	id := parts[0]

	switch {
	case len(parts) == 2 && parts[1] == "read":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		n, err := a.notify.MarkRead(r.Context(), ac, callerID, id)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, n)
	case len(parts) == 2 && parts[1] == "unread":
		if r.Method != http.MethodPut {
			methodNotAllowed(w, r, http.MethodPut)
			return
		}
		n, err := a.notify.MarkUnread(r.Context(), ac, callerID, id)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, n)
	case len(parts) == 1:
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r, http.MethodDelete)
			return
		}
		if err := a.notify.Delete(r.Context(), ac, callerID, id); err != nil {
			handleDomainError(w, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "notification.delete", map[string]any{"id": id})
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		respondError(w, http.StatusNotFound, "resource not found")
	}
}

func queryInt(r *http.Request, key string) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
