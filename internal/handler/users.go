package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/putmeon/internal/auth"
)

// UserHandler serves the user collection and every edge that hangs off a
// user: friend requests, friendships, likes and owned playlists.
//
// Mutating routes act AS the {username} in the path, so they require the
// session user to be that user.
type UserHandler struct {
	graph  SocialGraph
	creds  Credentials
	logger *slog.Logger
}

func NewUserHandler(graph SocialGraph, creds Credentials, logger *slog.Logger) *UserHandler {
	return &UserHandler{graph: graph, creds: creds, logger: logger}
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type createPlaylistRequest struct {
	Name string `json:"name"`
}

// HandleList returns every user. GET /api/users
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	users, err := h.graph.ListUsers(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleRegister creates a user. POST /api/users
func (h *UserHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.creds.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// HandleGet returns one user. GET /api/users/{username}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, err := h.graph.GetUser(r.Context(), param(r, "username"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleDelete deletes the session user and everything attached to it,
// then clears the session cookie. DELETE /api/users/{username}
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	username := param(r, "username")
	if err := requireSelf(r, username); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.graph.DeleteUser(r.Context(), username); err != nil {
		writeError(w, h.logger, err)
		return
	}

	http.SetCookie(w, expiredSessionCookie())
	writeMessage(w, "%s deleted", username)
}

// edgeRoute builds a handler for POST/DELETE /api/users/{username}/<edge>/{other}.
// op receives (username, other); message is formatted with the same two.
func (h *UserHandler) edgeRoute(op func(ctx context.Context, username, other string) error, message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, other := param(r, "username"), param(r, "other")
		if err := requireSelf(r, username); err != nil {
			writeError(w, h.logger, err)
			return
		}
		if err := op(r.Context(), username, other); err != nil {
			writeError(w, h.logger, err)
			return
		}
		writeMessage(w, message, username, other)
	}
}

// HandleRequestFriend: POST /api/users/{username}/requests/{other}
func (h *UserHandler) HandleRequestFriend() http.HandlerFunc {
	return h.edgeRoute(h.graph.RequestFriend, "%s sent a friend request to %s")
}

// HandleWithdrawRequest cancels a request the session user sent.
// DELETE /api/users/{username}/requests/outgoing/{other}
func (h *UserHandler) HandleWithdrawRequest() http.HandlerFunc {
	return h.edgeRoute(h.graph.DeclineRequest, "%s withdrew the friend request to %s")
}

// HandleDeclineRequest turns down a request the session user received,
// which is the request other → username.
// DELETE /api/users/{username}/requests/incoming/{other}
func (h *UserHandler) HandleDeclineRequest() http.HandlerFunc {
	return h.edgeRoute(func(ctx context.Context, username, other string) error {
		return h.graph.DeclineRequest(ctx, other, username)
	}, "%s declined the friend request from %s")
}

// HandleBefriend: POST /api/users/{username}/friends/{other}
func (h *UserHandler) HandleBefriend() http.HandlerFunc {
	return h.edgeRoute(h.graph.Befriend, "%s and %s are now friends")
}

// HandleUnfriend: DELETE /api/users/{username}/friends/{other}
func (h *UserHandler) HandleUnfriend() http.HandlerFunc {
	return h.edgeRoute(h.graph.Unfriend, "%s and %s are no longer friends")
}

// HandleLike: POST /api/users/{username}/likes/{other}
func (h *UserHandler) HandleLike() http.HandlerFunc {
	return h.edgeRoute(h.graph.LikePlaylist, "%s liked %s")
}

// HandleUnlike: DELETE /api/users/{username}/likes/{other}
func (h *UserHandler) HandleUnlike() http.HandlerFunc {
	return h.edgeRoute(h.graph.UnlikePlaylist, "%s no longer likes %s")
}

// HandleCreatePlaylist creates a playlist owned by the session user.
// POST /api/users/{username}/playlists  {"name": "..."}
func (h *UserHandler) HandleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	username := param(r, "username")
	if err := requireSelf(r, username); err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req createPlaylistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	playlist, err := h.graph.CreatePlaylist(r.Context(), username, req.Name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, playlist)
}

func expiredSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
