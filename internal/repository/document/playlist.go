package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/putmeon/internal/apperror"
	"github.com/sakif/putmeon/internal/model"
	"github.com/sakif/putmeon/internal/repository"
	"github.com/sakif/putmeon/internal/store"
)

// compile-time check that *PlaylistRepo implements repository.PlaylistRepository
var _ repository.PlaylistRepository = (*PlaylistRepo)(nil)

// PlaylistRepo stores playlists in the "playlists" collection, keyed by name.
//
// GUARDED UPDATES:
// "Add X unless present" is a single UpdateOne whose filter also requires
// X to be absent. If the filter matches nothing, either the playlist is
// gone or X was already there; one extra read tells the two apart. The
// check and the write can never race because the store applies the
// filter and the ops to one document atomically.
type PlaylistRepo struct {
	store  store.Store
	logger *slog.Logger
}

func NewPlaylistRepo(s store.Store, logger *slog.Logger) *PlaylistRepo {
	return &PlaylistRepo{store: s, logger: logger}
}

func byName(name string) store.Filter {
	return store.Where(store.Eq(model.PlaylistKey, name))
}

func (r *PlaylistRepo) Exists(ctx context.Context, name string) (bool, error) {
	return exists(ctx, r.store, PlaylistsCollection, byName(name))
}

func (r *PlaylistRepo) Get(ctx context.Context, name string) (*model.Playlist, error) {
	var p model.Playlist
	if err := r.store.FindOne(ctx, PlaylistsCollection, byName(name), &p); err != nil {
		return nil, translate(err, "playlist", name)
	}
	return normalize(&p), nil
}

func (r *PlaylistRepo) Create(ctx context.Context, name, owner string) (*model.Playlist, error) {
	p := &model.Playlist{
		ID:        xid.New().String(),
		Name:      name,
		Owner:     owner,
		Songs:     []string{},
		Likes:     []string{},
		CreatedAt: time.Now().UTC(),
	}

	if err := r.store.InsertOne(ctx, PlaylistsCollection, p); err != nil {
		return nil, translate(err, "playlist", name)
	}

	r.logger.Debug("playlist stored", slog.String("name", name), slog.String("owner", owner))
	return p, nil
}

func (r *PlaylistRepo) Delete(ctx context.Context, name string) error {
	return translate(r.store.DeleteOne(ctx, PlaylistsCollection, byName(name)), "playlist", name)
}

func (r *PlaylistRepo) List(ctx context.Context) ([]model.Playlist, error) {
	return r.find(ctx, nil)
}

func (r *PlaylistRepo) ListLikedBy(ctx context.Context, username string) ([]model.Playlist, error) {
	return r.find(ctx, store.Where(store.Eq(model.PlaylistLikes, username)))
}

func (r *PlaylistRepo) ListOwnedBy(ctx context.Context, username string) ([]model.Playlist, error) {
	return r.find(ctx, store.Where(store.Eq(model.PlaylistOwner, username)))
}

func (r *PlaylistRepo) find(ctx context.Context, filter store.Filter) ([]model.Playlist, error) {
	var playlists []model.Playlist
	if err := r.store.FindAll(ctx, PlaylistsCollection, filter, &playlists); err != nil {
		return nil, fmt.Errorf("document: listing playlists: %w", err)
	}
	for i := range playlists {
		normalize(&playlists[i])
	}
	return playlists, nil
}

func (r *PlaylistRepo) DeleteAll(ctx context.Context) (int64, error) {
	n, err := r.store.DeleteMany(ctx, PlaylistsCollection, nil)
	if err != nil {
		return 0, fmt.Errorf("document: purging playlists: %w", err)
	}
	return n, nil
}

func (r *PlaylistRepo) AddSong(ctx context.Context, playlist, song string) error {
	err := r.store.UpdateOne(ctx, PlaylistsCollection,
		store.Where(store.Eq(model.PlaylistKey, playlist), store.Ne(model.PlaylistSongs, song)),
		store.AddToSet(model.PlaylistSongs, song),
	)
	return r.guardFailed(ctx, err, playlist,
		apperror.Conflictf("song %s already in playlist %s", song, playlist))
}

func (r *PlaylistRepo) RemoveSong(ctx context.Context, playlist, song string) error {
	err := r.store.UpdateOne(ctx, PlaylistsCollection,
		store.Where(store.Eq(model.PlaylistKey, playlist), store.Eq(model.PlaylistSongs, song)),
		store.Pull(model.PlaylistSongs, song),
	)
	return r.guardFailed(ctx, err, playlist,
		apperror.NotFoundf("song %s not in playlist %s", song, playlist))
}

func (r *PlaylistRepo) AddLike(ctx context.Context, playlist, username string) error {
	err := r.store.UpdateOne(ctx, PlaylistsCollection,
		store.Where(store.Eq(model.PlaylistKey, playlist), store.Ne(model.PlaylistLikes, username)),
		store.AddToSet(model.PlaylistLikes, username),
		store.Inc(model.PlaylistLikeCount, 1),
	)
	return r.guardFailed(ctx, err, playlist,
		apperror.Conflictf("%s already likes playlist %s", username, playlist))
}

func (r *PlaylistRepo) RemoveLike(ctx context.Context, playlist, username string) error {
	err := r.store.UpdateOne(ctx, PlaylistsCollection,
		store.Where(store.Eq(model.PlaylistKey, playlist), store.Eq(model.PlaylistLikes, username)),
		store.Pull(model.PlaylistLikes, username),
		store.Inc(model.PlaylistLikeCount, -1),
	)
	return r.guardFailed(ctx, err, playlist,
		apperror.NotFoundf("%s not in likes of playlist %s", username, playlist))
}

// guardFailed resolves the result of a guarded update. A miss means either
// the playlist does not exist (NotFound) or the guard rejected the write
// (guardErr).
func (r *PlaylistRepo) guardFailed(ctx context.Context, err error, playlist string, guardErr error) error {
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNoDocument) {
		r.logger.Error("playlist update failed", slog.String("playlist", playlist), slog.Any("error", err))
		return translate(err, "playlist", playlist)
	}

	found, existsErr := r.Exists(ctx, playlist)
	if existsErr != nil {
		return existsErr
	}
	if !found {
		return apperror.NotFound("playlist", playlist)
	}
	return guardErr
}

func normalize(p *model.Playlist) *model.Playlist {
	p.Songs = emptyIfNil(p.Songs)
	p.Likes = emptyIfNil(p.Likes)
	return p
}
