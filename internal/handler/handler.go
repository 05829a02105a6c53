// Package handler is the HTTP boundary: it decodes requests, checks that
// the session user may act on the named resource, calls a service, and
// encodes the result.
package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/putmeon/internal/apperror"
	"github.com/sakif/putmeon/internal/auth"
	"github.com/sakif/putmeon/internal/model"
	"github.com/sakif/putmeon/internal/service"
)

// SocialGraph is the part of service.SocialService the handlers call.
type SocialGraph interface {
	GetUser(ctx context.Context, username string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	DeleteUser(ctx context.Context, username string) error

	RequestFriend(ctx context.Context, a, b string) error
	DeclineRequest(ctx context.Context, a, b string) error
	Befriend(ctx context.Context, a, b string) error
	Unfriend(ctx context.Context, a, b string) error

	GetPlaylist(ctx context.Context, name string) (*model.Playlist, error)
	ListPlaylists(ctx context.Context) ([]model.Playlist, error)
	CreatePlaylist(ctx context.Context, owner, name string) (*model.Playlist, error)
	DeletePlaylist(ctx context.Context, name string) error
	AuthorizePlaylist(ctx context.Context, username, playlist string) error
	AddSong(ctx context.Context, playlist, song string) error
	RemoveSong(ctx context.Context, playlist, song string) error
	LikePlaylist(ctx context.Context, username, playlist string) error
	UnlikePlaylist(ctx context.Context, username, playlist string) error

	Purge(ctx context.Context) error
}

// Credentials is the part of service.AuthService the handlers call.
type Credentials interface {
	Register(ctx context.Context, username, password string) (*model.User, error)
	Login(ctx context.Context, username, password string) (*service.LoginResult, error)
	Logout(ctx context.Context, username string) error
}

// param returns the decoded URL parameter. chi routes on r.URL.RawPath when
// the request has one, such as a path holding "%2F", and the value is still
// escaped then. Otherwise it routes on the decoded r.URL.Path and the value
// is returned as is.
func param(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v
	}
	if unescaped, err := url.PathUnescape(v); err == nil {
		return unescaped
	}
	return v
}

// sessionUser returns the username RequireSession stored in the context.
func sessionUser(r *http.Request) (string, error) {
	username, ok := auth.UsernameFromContext(r.Context())
	if !ok {
		return "", apperror.Unauthorized("valid session required")
	}
	return username, nil
}

// requireSelf allows the request only when the session user is username.
func requireSelf(r *http.Request, username string) error {
	current, err := sessionUser(r)
	if err != nil {
		return err
	}
	if current != username {
		return apperror.Forbidden("you can only act as " + current)
	}
	return nil
}
