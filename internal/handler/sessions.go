package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/putmeon/internal/auth"
)

// SessionHandler logs users in and out. A successful login returns the
// token in the body and also sets it as an HttpOnly cookie, so both API
// clients (Authorization: Bearer) and browsers work.
type SessionHandler struct {
	creds  Credentials
	logger *slog.Logger
}

func NewSessionHandler(creds Credentials, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{creds: creds, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin: POST /api/sessions  {"username": "...", "password": "..."}
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.creds.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	// Secure is left off so the cookie also works on plain-HTTP localhost.
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    result.Token,
		Path:     "/",
		Expires:  result.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, result)
}

// HandleLogout revokes the current session. DELETE /api/sessions
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	username, err := sessionUser(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.creds.Logout(r.Context(), username); err != nil {
		writeError(w, h.logger, err)
		return
	}

	http.SetCookie(w, expiredSessionCookie())
	writeMessage(w, "%s logged out", username)
}
