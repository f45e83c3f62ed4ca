package httpapi

import (
	"net/http"
	"strings"
	"time"

	"peopledesk.org/internal/audit"
	"peopledesk.org/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token,omitempty"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

const tokenTTL = 12 * time.Hour

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	sess, err := a.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	ac, _ := a.resolver.Resolve(r.Context(), sess.UserID)
	resp := loginResponse{SessionID: sess.ID, ExpiresAt: sess.ExpiresAt}
	// Bearer tokens ride alongside the session when a signing secret is set.
	if token, err := auth.GenerateToken(sess.UserID, ac.Role, tokenTTL); err == nil {
		resp.Token = token
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	_ = audit.LogEvent(auth.ContextWithPrincipal(r.Context(), sess.UserID), "auth.login", map[string]any{
		"role": string(ac.Role),
	})
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	_, sessionID := credentials(r)
	if err := a.sessions.Logout(r.Context(), sessionID); err != nil {
		respondError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	_ = audit.LogEvent(r.Context(), "auth.logout", nil)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}
