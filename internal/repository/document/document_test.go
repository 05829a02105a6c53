package document

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/putmeon/internal/apperror"
	"github.com/sakif/putmeon/internal/model"
	"github.com/sakif/putmeon/internal/store/sqlite"
)

// =========================================================================
// TEST HELPERS
// =========================================================================

func newTestRepos(t *testing.T) (*UserRepo, *PlaylistRepo) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := sqlite.New(":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(context.Background()) })

	require.NoError(t, EnsureCollections(context.Background(), s))
	return NewUserRepo(s, logger), NewPlaylistRepo(s, logger)
}

func createUser(t *testing.T, users *UserRepo, name string) {
	t.Helper()
	if _, err := users.Create(context.Background(), name, "hash-"+name); err != nil {
		t.Fatalf("failed to create user %s: %v", name, err)
	}
}

// =========================================================================
// USERS
// =========================================================================

func TestUserCreateAndGet(t *testing.T) {
	users, _ := newTestRepos(t)
	ctx := context.Background()

	created, err := users.Create(ctx, "alice", "secret-hash")
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := users.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Empty(t, got.PasswordHash, "Get must not expose the password hash")
	assert.True(t, got.Session.IsBlank())
	assert.NotNil(t, got.Friends)
	assert.Empty(t, got.Friends)
}

func TestUserCreate_Duplicate(t *testing.T) {
	users, _ := newTestRepos(t)
	createUser(t, users, "alice")

	_, err := users.Create(context.Background(), "alice", "other")
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestUserGet_NotFound(t *testing.T) {
	users, _ := newTestRepos(t)

	_, err := users.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUserExists(t *testing.T) {
	users, _ := newTestRepos(t)
	createUser(t, users, "alice")

	ok, err := users.Exists(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = users.Exists(context.Background(), "Alice")
	require.NoError(t, err)
	assert.False(t, ok, "usernames are case-sensitive")
}

func TestUserDelete(t *testing.T) {
	users, _ := newTestRepos(t)
	createUser(t, users, "alice")

	require.NoError(t, users.Delete(context.Background(), "alice"))
	assert.ErrorIs(t, users.Delete(context.Background(), "alice"), apperror.ErrNotFound)
}

func TestUserList_StripsSecrets(t *testing.T) {
	users, _ := newTestRepos(t)
	createUser(t, users, "alice")
	createUser(t, users, "bob")

	list, err := users.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, u := range list {
		assert.Empty(t, u.PasswordHash)
	}
}

func TestUserCredentialsAndSession(t *testing.T) {
	users, _ := newTestRepos(t)
	ctx := context.Background()
	createUser(t, users, "alice")

	creds, err := users.Credentials(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "hash-alice", creds.PasswordHash)
	assert.True(t, creds.Session.IsBlank())

	session := model.Session{ID: "abc"}
	require.NoError(t, users.SetSession(ctx, "alice", session))

	creds, err = users.Credentials(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "abc", creds.Session.ID)

	assert.ErrorIs(t, users.SetSession(ctx, "ghost", session), apperror.ErrNotFound)
}

func TestUserMutators(t *testing.T) {
	users, _ := newTestRepos(t)
	ctx := context.Background()
	createUser(t, users, "alice")

	require.NoError(t, users.AddFriend(ctx, "alice", "bob"))
	require.NoError(t, users.AddFriend(ctx, "alice", "bob"), "adding twice is a no-op")
	require.NoError(t, users.AddOutgoingRequest(ctx, "alice", "carol"))
	require.NoError(t, users.AddIncomingRequest(ctx, "alice", "dave"))
	require.NoError(t, users.AddLikedPlaylist(ctx, "alice", "mix"))
	require.NoError(t, users.AddOwnedPlaylist(ctx, "alice", "road trip"))

	got, err := users.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, got.Friends)
	assert.Equal(t, []string{"carol"}, got.OutgoingRequests)
	assert.Equal(t, []string{"dave"}, got.IncomingRequests)
	assert.Equal(t, []string{"mix"}, got.LikedPlaylists)
	assert.Equal(t, []string{"road trip"}, got.OwnedPlaylists)

	require.NoError(t, users.RemoveFriend(ctx, "alice", "bob"))
	require.NoError(t, users.RemoveOutgoingRequest(ctx, "alice", "carol"))
	require.NoError(t, users.RemoveIncomingRequest(ctx, "alice", "dave"))
	require.NoError(t, users.RemoveLikedPlaylist(ctx, "alice", "mix"))
	require.NoError(t, users.RemoveOwnedPlaylist(ctx, "alice", "road trip"))

	got, err = users.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, got.Friends)
	assert.Empty(t, got.OutgoingRequests)
	assert.Empty(t, got.IncomingRequests)
	assert.Empty(t, got.LikedPlaylists)
	assert.Empty(t, got.OwnedPlaylists)
}

func TestUserMutators_MissingUser(t *testing.T) {
	users, _ := newTestRepos(t)
	ctx := context.Background()

	assert.ErrorIs(t, users.AddFriend(ctx, "ghost", "bob"), apperror.ErrNotFound)
	assert.ErrorIs(t, users.RemoveOutgoingRequest(ctx, "ghost", "bob"), apperror.ErrNotFound)
	assert.ErrorIs(t, users.AddLikedPlaylist(ctx, "ghost", "mix"), apperror.ErrNotFound)
}

func TestUserListReferencing(t *testing.T) {
	users, _ := newTestRepos(t)
	ctx := context.Background()
	createUser(t, users, "alice")
	createUser(t, users, "bob")
	createUser(t, users, "carol")

	require.NoError(t, users.AddFriend(ctx, "bob", "alice"))
	require.NoError(t, users.AddFriend(ctx, "carol", "alice"))
	require.NoError(t, users.AddIncomingRequest(ctx, "carol", "alice"))

	friendsOfAlice, err := users.ListReferencing(ctx, model.UserFriends, "alice")
	require.NoError(t, err)
	require.Len(t, friendsOfAlice, 2)
	assert.Equal(t, "bob", friendsOfAlice[0].Username)
	assert.Equal(t, "carol", friendsOfAlice[1].Username)

	requested, err := users.ListReferencing(ctx, model.UserIncomingRequests, "alice")
	require.NoError(t, err)
	require.Len(t, requested, 1)
	assert.Equal(t, "carol", requested[0].Username)
}

func TestUserDeleteAll(t *testing.T) {
	users, _ := newTestRepos(t)
	createUser(t, users, "alice")
	createUser(t, users, "bob")

	n, err := users.DeleteAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

// =========================================================================
// PLAYLISTS
// =========================================================================

func TestPlaylistCreateAndGet(t *testing.T) {
	_, playlists := newTestRepos(t)
	ctx := context.Background()

	_, err := playlists.Create(ctx, "mix", "alice")
	require.NoError(t, err)

	got, err := playlists.Get(ctx, "mix")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Owner)
	assert.Empty(t, got.Songs)
	assert.Equal(t, int64(0), got.LikeCount)

	_, err = playlists.Create(ctx, "mix", "bob")
	assert.ErrorIs(t, err, apperror.ErrConflict)

	_, err = playlists.Get(ctx, "nope")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

// Scenario: an ownerless playlist rejects duplicate songs and missing removals.
func TestPlaylistSongs_Scenario(t *testing.T) {
	_, playlists := newTestRepos(t)
	ctx := context.Background()

	_, err := playlists.Create(ctx, "P", "")
	require.NoError(t, err)

	require.NoError(t, playlists.AddSong(ctx, "P", "X"))
	assert.ErrorIs(t, playlists.AddSong(ctx, "P", "X"), apperror.ErrConflict)
	require.NoError(t, playlists.RemoveSong(ctx, "P", "X"))
	assert.ErrorIs(t, playlists.RemoveSong(ctx, "P", "X"), apperror.ErrNotFound)
}

func TestPlaylistSongs_KeepOrder(t *testing.T) {
	_, playlists := newTestRepos(t)
	ctx := context.Background()

	_, err := playlists.Create(ctx, "P", "")
	require.NoError(t, err)
	for _, song := range []string{"c", "a", "b"} {
		require.NoError(t, playlists.AddSong(ctx, "P", song))
	}

	got, err := playlists.Get(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, got.Songs)
}

func TestPlaylistSongs_MissingPlaylist(t *testing.T) {
	_, playlists := newTestRepos(t)

	assert.ErrorIs(t, playlists.AddSong(context.Background(), "ghost", "X"), apperror.ErrNotFound)
	assert.ErrorIs(t, playlists.RemoveSong(context.Background(), "ghost", "X"), apperror.ErrNotFound)
}

func TestPlaylistLikes_KeepCountInSync(t *testing.T) {
	_, playlists := newTestRepos(t)
	ctx := context.Background()

	_, err := playlists.Create(ctx, "mix", "")
	require.NoError(t, err)

	require.NoError(t, playlists.AddLike(ctx, "mix", "alice"))
	require.NoError(t, playlists.AddLike(ctx, "mix", "bob"))
	assert.ErrorIs(t, playlists.AddLike(ctx, "mix", "alice"), apperror.ErrConflict)

	got, err := playlists.Get(ctx, "mix")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, got.Likes)
	assert.Equal(t, int64(2), got.LikeCount)

	require.NoError(t, playlists.RemoveLike(ctx, "mix", "alice"))
	assert.ErrorIs(t, playlists.RemoveLike(ctx, "mix", "alice"), apperror.ErrNotFound)

	got, err = playlists.Get(ctx, "mix")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, got.Likes)
	assert.Equal(t, int64(1), got.LikeCount)
}

func TestPlaylistListLikedByAndOwnedBy(t *testing.T) {
	_, playlists := newTestRepos(t)
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		_, err := playlists.Create(ctx, name, "alice")
		require.NoError(t, err)
	}
	_, err := playlists.Create(ctx, "d", "bob")
	require.NoError(t, err)
	require.NoError(t, playlists.AddLike(ctx, "b", "carol"))
	require.NoError(t, playlists.AddLike(ctx, "d", "carol"))

	liked, err := playlists.ListLikedBy(ctx, "carol")
	require.NoError(t, err)
	require.Len(t, liked, 2)
	assert.Equal(t, "b", liked[0].Name)
	assert.Equal(t, "d", liked[1].Name)

	owned, err := playlists.ListOwnedBy(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, owned, 3)

	all, err := playlists.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestPlaylistDelete(t *testing.T) {
	_, playlists := newTestRepos(t)
	ctx := context.Background()

	_, err := playlists.Create(ctx, "mix", "")
	require.NoError(t, err)
	require.NoError(t, playlists.Delete(ctx, "mix"))
	assert.ErrorIs(t, playlists.Delete(ctx, "mix"), apperror.ErrNotFound)

	n, err := playlists.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
