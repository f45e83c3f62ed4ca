package httpapi

import (
	"net/http"
	"strings"

	"peopledesk.org/internal/audit"
	"peopledesk.org/internal/auth"
)

type openThreadRequest struct {
	ParticipantID string `json:"participant_id"`
	RelatedType   string `json:"related_type"`
	RelatedID     string `json:"related_id"`
}

type sendMessageRequest struct {
	Body string `json:"body"`
}

type editMessageRequest struct {
	Body string `json:"body"`
}

type addAttachmentRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	StorageKey  string `json:"storage_key"`
	SizeBytes   int64  `json:"size_bytes"`
}

type typingRequest struct {
	Typing bool `json:"typing"`
}

func (a *API) handleThreads(w http.ResponseWriter, r *http.Request) {
	ac, callerID, ok := a.ensurePermission(w, r, auth.PermEmployeesView)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		threads, err := a.chats.Threads(r.Context(), callerID)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"threads": threads})
	case http.MethodPost:
		var req openThreadRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		t, err := a.chats.OpenThread(r.Context(), ac, callerID, req.ParticipantID, req.RelatedType, req.RelatedID)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "chat.thread.open", map[string]any{
			"thread_id": t.ID,
		})
		writeJSON(w, http.StatusCreated, t)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleThreadScoped routes /v1/chat/threads/{id}/messages and
// /v1/chat/threads/{id}/typing.
func (a *API) handleThreadScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/chat/threads/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 {
		respondError(w, http.StatusNotFound, "resource not found")
		return
	}
	ac, callerID, ok := a.ensurePermission(w, r, auth.PermEmployeesView)
	if !ok {
		return
	}
	threadID := parts[0]

	switch parts[1] {
	case "messages":
		switch r.Method {
		case http.MethodGet:
			msgs, err := a.chats.Messages(r.Context(), ac, callerID, threadID, queryInt(r, "limit"), queryInt(r, "offset"))
			if err != nil {
				handleDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
		case http.MethodPost:
			var req sendMessageRequest
			if err := decodeJSON(w, r, &req); err != nil {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			m, err := a.chats.Send(r.Context(), ac, callerID, threadID, req.Body)
			if err != nil {
				handleDomainError(w, err)
				return
			}
			_ = audit.LogEvent(r.Context(), "chat.message.send", map[string]any{
				"thread_id":  threadID,
				"message_id": m.ID,
			})
			writeJSON(w, http.StatusCreated, m)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		}
	case "typing":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		var req typingRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.chats.Typing(r.Context(), ac, callerID, threadID, req.Typing); err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
	default:
		respondError(w, http.StatusNotFound, "resource not found")
	}
}

// handleMessageScoped routes /v1/chat/messages/{id} and
// /v1/chat/messages/{id}/attachments.
func (a *API) handleMessageScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/chat/messages/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) < 1 || parts[0] == "" {
		respondError(w, http.StatusNotFound, "resource not found")
		return
	}
	ac, callerID, ok := a.ensurePermission(w, r, auth.PermEmployeesView)
	if !ok {
		return
	}
	messageID := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodPut:
		var req editMessageRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		m, err := a.chats.EditMessage(r.Context(), ac, callerID, messageID, req.Body)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		m, err := a.chats.DeleteMessage(r.Context(), ac, callerID, messageID)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "chat.message.delete", map[string]any{
			"message_id": m.ID,
		})
		writeJSON(w, http.StatusOK, m)
	case len(parts) == 1:
		methodNotAllowed(w, r, http.MethodPut, http.MethodDelete)
	case len(parts) == 2 && parts[1] == "attachments":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		var req addAttachmentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		att, err := a.chats.AddAttachment(r.Context(), ac, callerID, messageID, req.FileName, req.ContentType, req.StorageKey, req.SizeBytes)
		if err != nil {
			handleDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, att)
	default:
		respondError(w, http.StatusNotFound, "resource not found")
	}
}

// handleAttachmentScoped routes /v1/chat/attachments/{id}.
func (a *API) handleAttachmentScoped(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/chat/attachments/"), "/")
	if id == "" || strings.Contains(id, "/") {
		respondError(w, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	ac, callerID, ok := a.ensurePermission(w, r, auth.PermEmployeesView)
	if !ok {
		return
	}
	att, err := a.chats.Attachment(r.Context(), ac, callerID, id)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, att)
}
