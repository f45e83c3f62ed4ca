package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"peopledesk.org/internal/auth"
)

const (
	authHeader      = "Authorization"
	bearer          = "Bearer "
	sessionCookie   = "sessionId"
	sessionHeader   = "X-Session-ID"
	sessionQueryKey = "sessionId"
)

var publicPaths = []string{
	"/v1/auth/login",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

// credentials pulls every supported credential off a request: a bearer token
// and a session id from cookie, header, or query parameter (the query form
// exists for websocket clients that cannot set headers).
func credentials(r *http.Request) (bearerToken, sessionID string) {
	if header := strings.TrimSpace(r.Header.Get(authHeader)); header != "" {
		if strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
			bearerToken = strings.TrimSpace(header[len(bearer):])
		}
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		sessionID = c.Value
	}
	if v := strings.TrimSpace(r.Header.Get(sessionHeader)); v != "" {
		sessionID = v
	}
	if v := strings.TrimSpace(r.URL.Query().Get(sessionQueryKey)); v != "" {
		sessionID = v
	}
	return bearerToken, sessionID
}

// withAuth authenticates every non-public request and attaches the principal
// id to the context. Authorization proper happens in the guards.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		cred, err := a.authenticate(r)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), cred.PrincipalID)))
	})
}

// authenticate validates the request's credential and returns it.
func (a *API) authenticate(r *http.Request) (auth.Credential, error) {
	bearerToken, sessionID := credentials(r)
	if bearerToken == "" && sessionID == "" {
		return auth.Credential{}, auth.ErrUnauthorized
	}
	cred, err := a.sessions.Validate(r.Context(), bearerToken, sessionID)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrUnauthorized) {
			return auth.Credential{}, auth.ErrUnauthorized
		}
		return auth.Credential{}, err
	}
	return cred, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
