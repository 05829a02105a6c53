package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sakif/putmeon/internal/apperror"
	"github.com/sakif/putmeon/internal/model"
)

// CreatePlaylist creates a playlist and records it in the owner's
// ownedPlaylists. An empty owner creates an ownerless playlist.
func (s *SocialService) CreatePlaylist(ctx context.Context, owner, name string) (*model.Playlist, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperror.ValidationFailed("name", "playlist name is required")
	}
	if strings.ContainsAny(name, "/?#") {
		return nil, apperror.ValidationFailed("name", "playlist name must not contain '/', '?' or '#'")
	}

	if owner != "" {
		unlock := s.locks.lock(userKey(owner), playlistKey(name))
		defer unlock()

		ok, err := s.users.Exists(ctx, owner)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperror.NotFound("user", owner)
		}
	}

	var created *model.Playlist
	steps := []step{{
		name: "create",
		do: func(ctx context.Context) (err error) {
			created, err = s.playlists.Create(ctx, name, owner)
			return err
		},
		undo: func(ctx context.Context) error { return s.playlists.Delete(ctx, name) },
	}}
	if owner != "" {
		steps = append(steps, step{
			name: "owned",
			do:   func(ctx context.Context) error { return s.users.AddOwnedPlaylist(ctx, owner, name) },
		})
	}

	if err := s.runSteps(ctx, "create_playlist", steps...); err != nil {
		return nil, err
	}

	s.logger.Info("playlist created", slog.String("name", name), slog.String("owner", owner))
	return created, nil
}

// LikePlaylist records username's like on the playlist (likes + likeCount)
// and on the user (likedPlaylists). A like recorded on either side already
// counts as liked.
func (s *SocialService) LikePlaylist(ctx context.Context, username, playlist string) error {
	unlock := s.locks.lock(userKey(username), playlistKey(playlist))
	defer unlock()

	u, p, err := s.loadLike(ctx, username, playlist)
	if err != nil {
		return err
	}
	if u.Likes(playlist) || p.LikedBy(username) {
		return apperror.Conflictf("%s has already liked %s", username, playlist)
	}

	err = s.runSteps(ctx, "like_playlist",
		step{
			name: "playlist likes",
			do:   func(ctx context.Context) error { return s.playlists.AddLike(ctx, playlist, username) },
			undo: func(ctx context.Context) error { return s.playlists.RemoveLike(ctx, playlist, username) },
		},
		step{
			name: "user likedPlaylists",
			do:   func(ctx context.Context) error { return s.users.AddLikedPlaylist(ctx, username, playlist) },
		},
	)
	if err != nil {
		return err
	}

	s.logger.Info("playlist liked", slog.String("user", username), slog.String("playlist", playlist))
	return nil
}

// UnlikePlaylist removes the like from both sides. Unless both sides record
// it, the result is NotFound ("not in likes").
func (s *SocialService) UnlikePlaylist(ctx context.Context, username, playlist string) error {
	unlock := s.locks.lock(userKey(username), playlistKey(playlist))
	defer unlock()

	u, p, err := s.loadLike(ctx, username, playlist)
	if err != nil {
		return err
	}
	if !u.Likes(playlist) || !p.LikedBy(username) {
		return apperror.NotFoundf("%s not in %s's likes", playlist, username)
	}

	err = s.runSteps(ctx, "unlike_playlist",
		step{
			name: "playlist likes",
			do:   func(ctx context.Context) error { return s.playlists.RemoveLike(ctx, playlist, username) },
			undo: func(ctx context.Context) error { return s.playlists.AddLike(ctx, playlist, username) },
		},
		step{
			name: "user likedPlaylists",
			do:   func(ctx context.Context) error { return s.users.RemoveLikedPlaylist(ctx, username, playlist) },
		},
	)
	if err != nil {
		return err
	}

	s.logger.Info("playlist unliked", slog.String("user", username), slog.String("playlist", playlist))
	return nil
}
