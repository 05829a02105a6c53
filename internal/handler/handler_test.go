package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/putmeon/internal/apperror"
	"github.com/sakif/putmeon/internal/auth"
	"github.com/sakif/putmeon/internal/handler"
	"github.com/sakif/putmeon/internal/model"
	"github.com/sakif/putmeon/internal/service"
)

// call records one SocialGraph invocation.
type call struct {
	op   string
	args []string
}

// mockGraph records every call and answers with err (if set).
type mockGraph struct {
	calls     []call
	err       error
	playlists map[string]*model.Playlist
}

func (m *mockGraph) record(op string, args ...string) error {
	m.calls = append(m.calls, call{op: op, args: args})
	return m.err
}

func (m *mockGraph) last() call {
	if len(m.calls) == 0 {
		return call{}
	}
	return m.calls[len(m.calls)-1]
}

func (m *mockGraph) GetUser(_ context.Context, username string) (*model.User, error) {
	if err := m.record("GetUser", username); err != nil {
		return nil, err
	}
	return &model.User{Username: username, PasswordHash: "secret-hash"}, nil
}

func (m *mockGraph) ListUsers(context.Context) ([]model.User, error) {
	if err := m.record("ListUsers"); err != nil {
		return nil, err
	}
	return []model.User{{Username: "alice"}, {Username: "bob"}}, nil
}

func (m *mockGraph) DeleteUser(_ context.Context, username string) error {
	return m.record("DeleteUser", username)
}

func (m *mockGraph) RequestFriend(_ context.Context, a, b string) error {
	return m.record("RequestFriend", a, b)
}

func (m *mockGraph) DeclineRequest(_ context.Context, a, b string) error {
	return m.record("DeclineRequest", a, b)
}

func (m *mockGraph) Befriend(_ context.Context, a, b string) error {
	return m.record("Befriend", a, b)
}

func (m *mockGraph) Unfriend(_ context.Context, a, b string) error {
	return m.record("Unfriend", a, b)
}

func (m *mockGraph) GetPlaylist(_ context.Context, name string) (*model.Playlist, error) {
	if err := m.record("GetPlaylist", name); err != nil {
		return nil, err
	}
	if p, ok := m.playlists[name]; ok {
		return p, nil
	}
	return nil, apperror.NotFound("playlist", name)
}

func (m *mockGraph) ListPlaylists(context.Context) ([]model.Playlist, error) {
	if err := m.record("ListPlaylists"); err != nil {
		return nil, err
	}
	return []model.Playlist{}, nil
}

func (m *mockGraph) CreatePlaylist(_ context.Context, owner, name string) (*model.Playlist, error) {
	if err := m.record("CreatePlaylist", owner, name); err != nil {
		return nil, err
	}
	return &model.Playlist{Name: name, Owner: owner, Songs: []string{}, Likes: []string{}}, nil
}

func (m *mockGraph) DeletePlaylist(_ context.Context, name string) error {
	return m.record("DeletePlaylist", name)
}

// AuthorizePlaylist applies the real ownership rule to m.playlists so the
// handler's 403 path can be exercised.
func (m *mockGraph) AuthorizePlaylist(_ context.Context, username, playlist string) error {
	p, ok := m.playlists[playlist]
	if !ok {
		return apperror.NotFound("playlist", playlist)
	}
	if p.Owner != "" && p.Owner != username {
		return apperror.Forbidden("playlist " + playlist + " belongs to another user")
	}
	return nil
}

func (m *mockGraph) AddSong(_ context.Context, playlist, song string) error {
	return m.record("AddSong", playlist, song)
}

func (m *mockGraph) RemoveSong(_ context.Context, playlist, song string) error {
	return m.record("RemoveSong", playlist, song)
}

func (m *mockGraph) LikePlaylist(_ context.Context, username, playlist string) error {
	return m.record("LikePlaylist", username, playlist)
}

func (m *mockGraph) UnlikePlaylist(_ context.Context, username, playlist string) error {
	return m.record("UnlikePlaylist", username, playlist)
}

func (m *mockGraph) Purge(context.Context) error {
	return m.record("Purge")
}

type mockCreds struct {
	loggedOut string
	loginErr  error
}

func (m *mockCreds) Register(_ context.Context, username, password string) (*model.User, error) {
	if username == "taken" {
		return nil, apperror.Conflict("user", username)
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}
	return &model.User{Username: username}, nil
}

func (m *mockCreds) Login(_ context.Context, username, _ string) (*service.LoginResult, error) {
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	return &service.LoginResult{Token: "tok-" + username, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (m *mockCreds) Logout(_ context.Context, username string) error {
	m.loggedOut = username
	return nil
}

// asUser stands in for auth.RequireSession: the X-Test-User header becomes
// the session user.
func asUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u := r.Header.Get("X-Test-User"); u != "" {
			r = r.WithContext(auth.WithUsername(r.Context(), u))
		}
		next.ServeHTTP(w, r)
	})
}

func newTestRouter(graph *mockGraph, creds *mockCreds) chi.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := handler.NewUserHandler(graph, creds, logger)
	playlists := handler.NewPlaylistHandler(graph, logger)
	sessions := handler.NewSessionHandler(creds, logger)

	r := chi.NewRouter()
	r.Use(asUser)
	r.Get("/hello", handler.HandleHello)
	r.Get("/endpoints", handler.HandleEndpoints(r, logger))
	r.Post("/api/admin/purge", handler.HandlePurge(graph, logger))

	r.Get("/api/users", users.HandleList)
	r.Post("/api/users", users.HandleRegister)
	r.Get("/api/users/{username}", users.HandleGet)
	r.Delete("/api/users/{username}", users.HandleDelete)
	r.Post("/api/users/{username}/requests/{other}", users.HandleRequestFriend())
	r.Delete("/api/users/{username}/requests/outgoing/{other}", users.HandleWithdrawRequest())
	r.Delete("/api/users/{username}/requests/incoming/{other}", users.HandleDeclineRequest())
	r.Post("/api/users/{username}/friends/{other}", users.HandleBefriend())
	r.Delete("/api/users/{username}/friends/{other}", users.HandleUnfriend())
	r.Post("/api/users/{username}/likes/{other}", users.HandleLike())
	r.Delete("/api/users/{username}/likes/{other}", users.HandleUnlike())
	r.Post("/api/users/{username}/playlists", users.HandleCreatePlaylist)

	r.Post("/api/sessions", sessions.HandleLogin)
	r.Delete("/api/sessions", sessions.HandleLogout)

	r.Get("/api/playlists", playlists.HandleList)
	r.Post("/api/playlists", playlists.HandleCreate)
	r.Get("/api/playlists/{name}", playlists.HandleGet)
	r.Delete("/api/playlists/{name}", playlists.HandleDelete)
	r.Post("/api/playlists/{name}/songs/{song}", playlists.HandleAddSong)
	r.Delete("/api/playlists/{name}/songs/{song}", playlists.HandleRemoveSong)
	return r
}

func do(t *testing.T, h http.Handler, method, target, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var resp handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

func TestHello(t *testing.T) {
	rr := do(t, newTestRouter(&mockGraph{}, &mockCreds{}), http.MethodGet, "/hello", "", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"hola":"mundo"}`, rr.Body.String())
}

func TestEndpoints_SortedRouteList(t *testing.T) {
	rr := do(t, newTestRouter(&mockGraph{}, &mockCreds{}), http.MethodGet, "/endpoints", "", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var endpoints []handler.Endpoint
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&endpoints))
	require.NotEmpty(t, endpoints)

	assert.Contains(t, endpoints, handler.Endpoint{Method: http.MethodGet, Path: "/hello"})
	assert.Contains(t, endpoints, handler.Endpoint{Method: http.MethodPost, Path: "/api/users/{username}/friends/{other}"})
	for i := 1; i < len(endpoints); i++ {
		assert.LessOrEqual(t, endpoints[i-1].Path, endpoints[i].Path)
	}
}

func TestEdgeRoutes_CallGraphWithPathOrder(t *testing.T) {
	tests := []struct {
		method string
		target string
		wantOp string
		want   []string
	}{
		{http.MethodPost, "/api/users/alice/requests/bob", "RequestFriend", []string{"alice", "bob"}},
		{http.MethodDelete, "/api/users/alice/requests/outgoing/bob", "DeclineRequest", []string{"alice", "bob"}},
		{http.MethodDelete, "/api/users/alice/requests/incoming/bob", "DeclineRequest", []string{"bob", "alice"}},
		{http.MethodPost, "/api/users/alice/friends/bob", "Befriend", []string{"alice", "bob"}},
		{http.MethodDelete, "/api/users/alice/friends/bob", "Unfriend", []string{"alice", "bob"}},
		{http.MethodPost, "/api/users/alice/likes/road%20trip", "LikePlaylist", []string{"alice", "road trip"}},
		{http.MethodDelete, "/api/users/alice/likes/mix", "UnlikePlaylist", []string{"alice", "mix"}},
	}

	for _, tt := range tests {
		t.Run(tt.wantOp+" "+tt.target, func(t *testing.T) {
			graph := &mockGraph{}
			rr := do(t, newTestRouter(graph, &mockCreds{}), tt.method, tt.target, "alice", "")

			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
			assert.Equal(t, call{op: tt.wantOp, args: tt.want}, graph.last())

			var msg handler.MessageResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&msg))
			assert.NotEmpty(t, msg.Message)
		})
	}
}

func TestEdgeRoutes_RequireSelf(t *testing.T) {
	graph := &mockGraph{}
	router := newTestRouter(graph, &mockCreds{})

	rr := do(t, router, http.MethodPost, "/api/users/alice/friends/bob", "bob", "")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "forbidden", decodeError(t, rr).Error)

	rr = do(t, router, http.MethodPost, "/api/users/alice/friends/bob", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	assert.Empty(t, graph.calls, "rejected requests never reach the service")
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"not found", apperror.NotFound("user", "bob"), http.StatusNotFound, "not_found"},
		{"conflict", apperror.Conflictf("%s already friends with %s", "alice", "bob"), http.StatusNotAcceptable, "conflict"},
		{"invalid argument", apperror.InvalidArgument("no pending request"), http.StatusNotAcceptable, "invalid_argument"},
		{"validation", apperror.ValidationFailed("song", "song is required"), http.StatusBadRequest, "validation_error"},
		{"wrapped", fmt.Errorf("befriend: %w", apperror.NotFound("user", "bob")), http.StatusNotFound, "not_found"},
		{"unknown", io.ErrUnexpectedEOF, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			graph := &mockGraph{err: tt.err}
			rr := do(t, newTestRouter(graph, &mockCreds{}), http.MethodPost, "/api/users/alice/friends/bob", "alice", "")

			assert.Equal(t, tt.wantStatus, rr.Code)
			resp := decodeError(t, rr)
			assert.Equal(t, tt.wantKind, resp.Error)
			if tt.wantStatus == http.StatusInternalServerError {
				assert.NotContains(t, resp.Message, "unexpected EOF", "internal details are not leaked")
			}
		})
	}
}

func TestRegister(t *testing.T) {
	router := newTestRouter(&mockGraph{}, &mockCreds{})

	rr := do(t, router, http.MethodPost, "/api/users", "", `{"username":"alice","password":"pw"}`)
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.NotContains(t, rr.Body.String(), "passwordHash")

	rr = do(t, router, http.MethodPost, "/api/users", "", `{"username":"taken","password":"pw"}`)
	assert.Equal(t, http.StatusNotAcceptable, rr.Code)

	rr = do(t, router, http.MethodPost, "/api/users", "", `{"username":"alice"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, router, http.MethodPost, "/api/users", "", `{"username":"alice","password":"pw","admin":true}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "unknown fields are rejected")
}

func TestGetUser_NeverLeaksHash(t *testing.T) {
	rr := do(t, newTestRouter(&mockGraph{}, &mockCreds{}), http.MethodGet, "/api/users/alice", "", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.NotContains(t, rr.Body.String(), "secret-hash")
}

func TestDeleteUser_ClearsCookie(t *testing.T) {
	graph := &mockGraph{}
	router := newTestRouter(graph, &mockCreds{})

	rr := do(t, router, http.MethodDelete, "/api/users/alice", "alice", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, call{op: "DeleteUser", args: []string{"alice"}}, graph.last())

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.SessionCookie, cookies[0].Name)
	assert.Negative(t, cookies[0].MaxAge)

	rr = do(t, router, http.MethodDelete, "/api/users/bob", "alice", "")
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestCreatePlaylist(t *testing.T) {
	graph := &mockGraph{}
	router := newTestRouter(graph, &mockCreds{})

	rr := do(t, router, http.MethodPost, "/api/users/alice/playlists", "alice", `{"name":"mix"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, call{op: "CreatePlaylist", args: []string{"alice", "mix"}}, graph.last())

	rr = do(t, router, http.MethodPost, "/api/playlists", "alice", `{"name":"open"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, call{op: "CreatePlaylist", args: []string{"", "open"}}, graph.last())

	rr = do(t, router, http.MethodPost, "/api/playlists", "", `{"name":"open"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestPlaylistMutations_OwnerOnly(t *testing.T) {
	graph := &mockGraph{playlists: map[string]*model.Playlist{
		"mine": {Name: "mine", Owner: "alice"},
		"open": {Name: "open"},
	}}
	router := newTestRouter(graph, &mockCreds{})

	rr := do(t, router, http.MethodPost, "/api/playlists/mine/songs/X", "bob", "")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = do(t, router, http.MethodPost, "/api/playlists/mine/songs/X", "alice", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, call{op: "AddSong", args: []string{"mine", "X"}}, graph.last())

	rr = do(t, router, http.MethodDelete, "/api/playlists/open/songs/X", "bob", "")
	assert.Equal(t, http.StatusOK, rr.Code, "anyone may edit an ownerless playlist")
	assert.Equal(t, call{op: "RemoveSong", args: []string{"open", "X"}}, graph.last())

	rr = do(t, router, http.MethodDelete, "/api/playlists/ghost", "alice", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, router, http.MethodDelete, "/api/playlists/mine", "alice", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, call{op: "DeletePlaylist", args: []string{"mine"}}, graph.last())
}

func TestPathParams_DecodedExactlyOnce(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"/api/playlists/mix/songs/road%20trip", "road trip"},
		{"/api/playlists/mix/songs/a%2541", "a%41"},
		{"/api/playlists/mix/songs/100%25", "100%"},
		{"/api/playlists/mix/songs/AC%2FDC", "AC/DC"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			graph := &mockGraph{playlists: map[string]*model.Playlist{
				"mix": {Name: "mix", Owner: "alice"},
			}}
			rr := do(t, newTestRouter(graph, &mockCreds{}), http.MethodPost, tt.target, "alice", "")

			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
			assert.Equal(t, call{op: "AddSong", args: []string{"mix", tt.want}}, graph.last())
		})
	}
}

func TestGetPlaylist(t *testing.T) {
	graph := &mockGraph{playlists: map[string]*model.Playlist{
		"mix": {Name: "mix", Songs: []string{"X"}, Likes: []string{"bob"}, LikeCount: 1},
	}}
	router := newTestRouter(graph, &mockCreds{})

	rr := do(t, router, http.MethodGet, "/api/playlists/mix", "", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var p model.Playlist
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&p))
	assert.Equal(t, []string{"X"}, p.Songs)
	assert.EqualValues(t, 1, p.LikeCount)

	rr = do(t, router, http.MethodGet, "/api/playlists/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestLoginAndLogout(t *testing.T) {
	creds := &mockCreds{}
	router := newTestRouter(&mockGraph{}, creds)

	rr := do(t, router, http.MethodPost, "/api/sessions", "", `{"username":"alice","password":"pw"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var result service.LoginResult
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&result))
	assert.Equal(t, "tok-alice", result.Token)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.SessionCookie, cookies[0].Name)
	assert.Equal(t, "tok-alice", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	rr = do(t, router, http.MethodDelete, "/api/sessions", "alice", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "alice", creds.loggedOut)

	creds.loginErr = apperror.Unauthorized("invalid username or password")
	rr = do(t, router, http.MethodPost, "/api/sessions", "", `{"username":"alice","password":"bad"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestPurge(t *testing.T) {
	graph := &mockGraph{}
	rr := do(t, newTestRouter(graph, &mockCreds{}), http.MethodPost, "/api/admin/purge", "", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Purge", graph.last().op)
}
