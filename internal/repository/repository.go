// Package repository defines the persistence contracts the services depend on.
//
// The services only see these interfaces. The document package implements
// them over a store.Store, and tests are free to wrap or replace them.
//
// SINGLE-DOCUMENT MUTATORS:
// Every relation mutator below touches exactly one document with one atomic
// update. Keeping both sides of an edge in sync (a friendship is recorded on
// both users) is the job of service.SocialService, not of the repositories.
// Mutators return apperror.ErrNotFound when the target record is gone at
// call time.
package repository

import (
	"context"

	"github.com/sakif/putmeon/internal/model"
)

// UserRepository owns the users collection.
type UserRepository interface {
	Exists(ctx context.Context, username string) (bool, error)
	// Get returns the user without its password hash or session.
	Get(ctx context.Context, username string) (*model.User, error)
	// Create returns apperror.ErrConflict when the username is taken.
	Create(ctx context.Context, username, passwordHash string) (*model.User, error)
	Delete(ctx context.Context, username string) error
	// List returns every user, stripped like Get.
	List(ctx context.Context) ([]model.User, error)
	// ListReferencing returns the users whose relation field contains
	// username. Cascades use it to find edges the deleted record forgot.
	ListReferencing(ctx context.Context, field, username string) ([]model.User, error)
	DeleteAll(ctx context.Context) (int64, error)

	Credentials(ctx context.Context, username string) (*model.Credentials, error)
	SetSession(ctx context.Context, username string, session model.Session) error

	AddFriend(ctx context.Context, username, friend string) error
	RemoveFriend(ctx context.Context, username, friend string) error
	AddOutgoingRequest(ctx context.Context, username, to string) error
	RemoveOutgoingRequest(ctx context.Context, username, to string) error
	AddIncomingRequest(ctx context.Context, username, from string) error
	RemoveIncomingRequest(ctx context.Context, username, from string) error
	AddLikedPlaylist(ctx context.Context, username, playlist string) error
	RemoveLikedPlaylist(ctx context.Context, username, playlist string) error
	AddOwnedPlaylist(ctx context.Context, username, playlist string) error
	RemoveOwnedPlaylist(ctx context.Context, username, playlist string) error
}

// PlaylistRepository owns the playlists collection.
type PlaylistRepository interface {
	Exists(ctx context.Context, name string) (bool, error)
	Get(ctx context.Context, name string) (*model.Playlist, error)
	// Create returns apperror.ErrConflict when the name is taken. owner may
	// be empty.
	Create(ctx context.Context, name, owner string) (*model.Playlist, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]model.Playlist, error)
	ListLikedBy(ctx context.Context, username string) ([]model.Playlist, error)
	ListOwnedBy(ctx context.Context, username string) ([]model.Playlist, error)
	DeleteAll(ctx context.Context) (int64, error)

	// AddSong returns apperror.ErrConflict when the song is already there.
	AddSong(ctx context.Context, playlist, song string) error
	// RemoveSong returns apperror.ErrNotFound when the song is absent.
	RemoveSong(ctx context.Context, playlist, song string) error
	// AddLike records username in the like set and bumps likeCount in the
	// same write. apperror.ErrConflict when already liked.
	AddLike(ctx context.Context, playlist, username string) error
	// RemoveLike is the inverse of AddLike. apperror.ErrNotFound when the
	// like is not recorded.
	RemoveLike(ctx context.Context, playlist, username string) error
}
