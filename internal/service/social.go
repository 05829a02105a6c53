package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/putmeon/internal/apperror"
	"github.com/sakif/putmeon/internal/model"
	"github.com/sakif/putmeon/internal/repository"
)

// SocialService keeps the social graph consistent: friendships, friend
// requests, playlist likes and ownership are all recorded on BOTH ends,
// across two collections.
//
// NO MULTI-DOCUMENT TRANSACTIONS:
// The store only updates one document atomically, so every symmetric edge
// is a sequence of single-document writes (see runSteps). If a later write
// fails, the earlier ones are undone in reverse order and the original
// error is returned. A crash between two writes can still leave an edge
// recorded on one side only; the deletion cascades look for such half
// edges from both directions and clean them up.
//
// Concurrent calls on the same pair of entities are serialised by an
// in-process per-pair mutex. There is no global lock.
//
// STRICT VS LENIENT:
// Direct calls are strict: a missing user or playlist is NotFound before
// anything is written. Cascades (DeletePlaylist, DeleteUser) are lenient:
// a counterpart that is already gone is logged and skipped so the root
// deletion always completes.
type SocialService struct {
	users     repository.UserRepository
	playlists repository.PlaylistRepository
	locks     *pairLocks
	logger    *slog.Logger
}

func NewSocialService(
	users repository.UserRepository,
	playlists repository.PlaylistRepository,
	logger *slog.Logger,
) *SocialService {
	return &SocialService{
		users:     users,
		playlists: playlists,
		locks:     newPairLocks(),
		logger:    logger,
	}
}

// step is one single-document write of a multi-document operation,
// together with the write that reverses it. undo may be nil when the
// step changed nothing that needs restoring.
type step struct {
	name string
	do   func(ctx context.Context) error
	undo func(ctx context.Context) error
}

// runSteps executes steps in order. When step k fails, the undo of steps
// k-1 … 0 run in reverse and step k's error is returned. Undo failures are
// logged; they leave a half edge behind for a later cascade to clean.
func (s *SocialService) runSteps(ctx context.Context, op string, steps ...step) error {
	for i, st := range steps {
		err := st.do(ctx)
		if err == nil {
			continue
		}

		s.logger.Warn("edge write failed, compensating",
			slog.String("op", op),
			slog.String("step", st.name),
			slog.Any("error", err),
		)

		// Undo must run even if the caller's context is already done.
		undoCtx := context.WithoutCancel(ctx)
		for j := i - 1; j >= 0; j-- {
			if steps[j].undo == nil {
				continue
			}
			if uerr := steps[j].undo(undoCtx); uerr != nil {
				s.logger.Error("compensation failed, edge left half-written",
					slog.String("op", op),
					slog.String("step", steps[j].name),
					slog.Any("error", uerr),
				)
			}
		}
		return err
	}
	return nil
}

// loadUsers fetches both users of a pair, NotFound for the first missing one.
func (s *SocialService) loadUsers(ctx context.Context, a, b string) (*model.User, *model.User, error) {
	ua, err := s.users.Get(ctx, a)
	if err != nil {
		return nil, nil, err
	}
	ub, err := s.users.Get(ctx, b)
	if err != nil {
		return nil, nil, err
	}
	return ua, ub, nil
}

func (s *SocialService) loadLike(ctx context.Context, username, playlist string) (*model.User, *model.Playlist, error) {
	u, err := s.users.Get(ctx, username)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.playlists.Get(ctx, playlist)
	if err != nil {
		return nil, nil, err
	}
	return u, p, nil
}

// lenient swallows a cascade step's error after logging it. NotFound means
// the counterpart is already gone, which is the state the cascade wants.
func (s *SocialService) lenient(op, target string, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, apperror.ErrNotFound) {
		s.logger.Warn("cascade skipped missing record",
			slog.String("op", op),
			slog.String("target", target),
			slog.String("reason", err.Error()),
		)
		return
	}
	s.logger.Error("cascade step failed",
		slog.String("op", op),
		slog.String("target", target),
		slog.Any("error", err),
	)
}

func (s *SocialService) GetUser(ctx context.Context, username string) (*model.User, error) {
	return s.users.Get(ctx, username)
}

func (s *SocialService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}

func (s *SocialService) GetPlaylist(ctx context.Context, name string) (*model.Playlist, error) {
	return s.playlists.Get(ctx, name)
}

func (s *SocialService) ListPlaylists(ctx context.Context) ([]model.Playlist, error) {
	return s.playlists.List(ctx)
}

func (s *SocialService) AddSong(ctx context.Context, playlist, song string) error {
	if song == "" {
		return apperror.ValidationFailed("song", "song name is required")
	}
	if err := s.playlists.AddSong(ctx, playlist, song); err != nil {
		return err
	}
	s.logger.Info("song added", slog.String("playlist", playlist), slog.String("song", song))
	return nil
}

func (s *SocialService) RemoveSong(ctx context.Context, playlist, song string) error {
	if err := s.playlists.RemoveSong(ctx, playlist, song); err != nil {
		return err
	}
	s.logger.Info("song removed", slog.String("playlist", playlist), slog.String("song", song))
	return nil
}

// AuthorizePlaylist returns nil when username may modify the playlist: it
// owns it, or the playlist has no owner.
func (s *SocialService) AuthorizePlaylist(ctx context.Context, username, playlist string) error {
	p, err := s.playlists.Get(ctx, playlist)
	if err != nil {
		return err
	}
	if p.Owner != "" && p.Owner != username {
		return apperror.Forbidden(fmt.Sprintf("playlist %s belongs to another user", playlist))
	}
	return nil
}

// Purge deletes every user and playlist. Only routed in test mode.
func (s *SocialService) Purge(ctx context.Context) error {
	nu, err := s.users.DeleteAll(ctx)
	if err != nil {
		return err
	}
	np, err := s.playlists.DeleteAll(ctx)
	if err != nil {
		return err
	}
	s.logger.Warn("store purged", slog.Int64("users", nu), slog.Int64("playlists", np))
	return nil
}
