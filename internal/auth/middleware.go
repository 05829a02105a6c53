package auth

import (
	"context"
	"net/http"
	"strings"
)

// SessionCookie is the cookie that carries the session token for browsers.
const SessionCookie = "session"

// contextKey is unexported so no other package can read or overwrite the
// values this package stores in a request context.
type contextKey string

const (
	usernameKey contextKey = "username"
	holderKey   contextKey = "userHolder"
)

// Authenticator resolves a session token to the username it belongs to.
// service.AuthService implements it; the middleware only needs this much.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// RequireSession rejects requests without a valid, current session with
// 401 and stores the session's username in the context otherwise.
//
// The token is read from "Authorization: Bearer <token>" first and from
// the session cookie second, so both API clients and browsers work.
func RequireSession(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				unauthorized(w)
				return
			}

			username, err := a.Authenticate(r.Context(), token)
			if err != nil || username == "" {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUsername(r.Context(), username)))
		})
	}
}

// TokenFromRequest returns the bearer token or session cookie value, or ""
// when the request carries neither.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// WithUsername returns a copy of ctx carrying the authenticated username.
// A UserHolder placed further up the chain also receives it.
func WithUsername(ctx context.Context, username string) context.Context {
	if h, ok := ctx.Value(holderKey).(*UserHolder); ok {
		h.Username = username
	}
	return context.WithValue(ctx, usernameKey, username)
}

// UserHolder lets middleware that wraps RequireSession (request logging)
// see who the request was authenticated as after the handler returns.
type UserHolder struct {
	Username string
}

// WithUserHolder returns a copy of ctx that WithUsername will report into.
func WithUserHolder(ctx context.Context, h *UserHolder) context.Context {
	return context.WithValue(ctx, holderKey, h)
}

// UsernameFromContext returns the session user, or ("", false) for an
// anonymous request.
func UsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(usernameKey).(string)
	return username, ok && username != ""
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized","message":"valid session required"}`))
}
