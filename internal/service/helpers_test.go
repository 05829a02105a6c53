package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sakif/putmeon/internal/model"
	"github.com/sakif/putmeon/internal/repository/document"
	"github.com/sakif/putmeon/internal/store"
	"github.com/sakif/putmeon/internal/store/sqlite"
)

// =========================================================================
// FAULT-INJECTING STORE
// =========================================================================
//
// The services run on the real repositories over in-memory SQLite. To exercise
// what happens between the two writes of an edge, faultyStore wraps the
// store and fails selected UpdateOne calls on demand.

var errInjected = errors.New("injected store failure")

type updateCall struct {
	collection string
	key        string // value of the key condition, "" if none
	ops        []store.FieldOp
}

type faultyStore struct {
	store.Store

	mu     sync.Mutex
	failOn func(c updateCall) bool
}

func (f *faultyStore) UpdateOne(ctx context.Context, collection string, filter store.Filter, ops ...store.FieldOp) error {
	f.mu.Lock()
	fail := f.failOn
	f.mu.Unlock()

	if fail != nil && fail(updateCall{collection: collection, key: keyOf(filter), ops: ops}) {
		return errInjected
	}
	return f.Store.UpdateOne(ctx, collection, filter, ops...)
}

// failWhen installs a predicate; nil clears it.
func (f *faultyStore) failWhen(pred func(c updateCall) bool) {
	f.mu.Lock()
	f.failOn = pred
	f.mu.Unlock()
}

func keyOf(filter store.Filter) string {
	for _, c := range filter {
		if c.Op == store.OpEq && (c.Field == model.UserKey || c.Field == model.PlaylistKey) {
			if s, ok := c.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}

// =========================================================================
// FIXTURES
// =========================================================================

type fixture struct {
	svc       *SocialService
	users     *document.UserRepo
	playlists *document.PlaylistRepo
	faults    *faultyStore
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, usernames ...string) *fixture {
	t.Helper()
	logger := quietLogger()

	s, err := sqlite.New(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(context.Background()) })
	require.NoError(t, document.EnsureCollections(context.Background(), s))

	faults := &faultyStore{Store: s}
	users := document.NewUserRepo(faults, logger)
	playlists := document.NewPlaylistRepo(faults, logger)

	f := &fixture{
		svc:       NewSocialService(users, playlists, logger),
		users:     users,
		playlists: playlists,
		faults:    faults,
	}
	for _, name := range usernames {
		_, err := users.Create(context.Background(), name, "hash")
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) user(t *testing.T, name string) *model.User {
	t.Helper()
	u, err := f.users.Get(context.Background(), name)
	require.NoError(t, err)
	return u
}

func (f *fixture) playlist(t *testing.T, name string) *model.Playlist {
	t.Helper()
	p, err := f.playlists.Get(context.Background(), name)
	require.NoError(t, err)
	return p
}
