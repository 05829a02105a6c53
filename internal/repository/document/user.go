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

// compile-time check that *UserRepo implements repository.UserRepository
var _ repository.UserRepository = (*UserRepo)(nil)

// UserRepo stores users in the "users" collection, keyed by username.
type UserRepo struct {
	store  store.Store
	logger *slog.Logger
}

func NewUserRepo(s store.Store, logger *slog.Logger) *UserRepo {
	return &UserRepo{store: s, logger: logger}
}

func byUsername(username string) store.Filter {
	return store.Where(store.Eq(model.UserKey, username))
}

func (r *UserRepo) Exists(ctx context.Context, username string) (bool, error) {
	return exists(ctx, r.store, UsersCollection, byUsername(username))
}

func (r *UserRepo) Get(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	if err := r.store.FindOne(ctx, UsersCollection, byUsername(username), &u); err != nil {
		return nil, translate(err, "user", username)
	}
	return public(&u), nil
}

// Create inserts a user with every relation set initialised to empty.
// The ID is a globally unique xid, sortable by creation time.
func (r *UserRepo) Create(ctx context.Context, username, passwordHash string) (*model.User, error) {
	u := &model.User{
		ID:               xid.New().String(),
		Username:         username,
		PasswordHash:     passwordHash,
		Friends:          []string{},
		OutgoingRequests: []string{},
		IncomingRequests: []string{},
		OwnedPlaylists:   []string{},
		LikedPlaylists:   []string{},
		CreatedAt:        time.Now().UTC(),
	}

	if err := r.store.InsertOne(ctx, UsersCollection, u); err != nil {
		return nil, translate(err, "user", username)
	}

	r.logger.Debug("user stored", slog.String("username", username), slog.String("id", u.ID))
	return public(u), nil
}

func (r *UserRepo) Delete(ctx context.Context, username string) error {
	return translate(r.store.DeleteOne(ctx, UsersCollection, byUsername(username)), "user", username)
}

func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	return r.find(ctx, nil)
}

func (r *UserRepo) ListReferencing(ctx context.Context, field, username string) ([]model.User, error) {
	return r.find(ctx, store.Where(store.Eq(field, username)))
}

func (r *UserRepo) find(ctx context.Context, filter store.Filter) ([]model.User, error) {
	var users []model.User
	if err := r.store.FindAll(ctx, UsersCollection, filter, &users); err != nil {
		return nil, fmt.Errorf("document: listing users: %w", err)
	}
	for i := range users {
		public(&users[i])
	}
	return users, nil
}

func (r *UserRepo) DeleteAll(ctx context.Context) (int64, error) {
	n, err := r.store.DeleteMany(ctx, UsersCollection, nil)
	if err != nil {
		return 0, fmt.Errorf("document: purging users: %w", err)
	}
	return n, nil
}

// Credentials is the only read that returns the password hash and session.
func (r *UserRepo) Credentials(ctx context.Context, username string) (*model.Credentials, error) {
	var u model.User
	if err := r.store.FindOne(ctx, UsersCollection, byUsername(username), &u); err != nil {
		return nil, translate(err, "user", username)
	}
	return &model.Credentials{
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Session:      u.Session,
	}, nil
}

func (r *UserRepo) SetSession(ctx context.Context, username string, session model.Session) error {
	return r.update(ctx, username, store.Set(model.UserSession, session))
}

func (r *UserRepo) AddFriend(ctx context.Context, username, friend string) error {
	return r.update(ctx, username, store.AddToSet(model.UserFriends, friend))
}

func (r *UserRepo) RemoveFriend(ctx context.Context, username, friend string) error {
	return r.update(ctx, username, store.Pull(model.UserFriends, friend))
}

func (r *UserRepo) AddOutgoingRequest(ctx context.Context, username, to string) error {
	return r.update(ctx, username, store.AddToSet(model.UserOutgoingRequests, to))
}

func (r *UserRepo) RemoveOutgoingRequest(ctx context.Context, username, to string) error {
	return r.update(ctx, username, store.Pull(model.UserOutgoingRequests, to))
}

func (r *UserRepo) AddIncomingRequest(ctx context.Context, username, from string) error {
	return r.update(ctx, username, store.AddToSet(model.UserIncomingRequests, from))
}

func (r *UserRepo) RemoveIncomingRequest(ctx context.Context, username, from string) error {
	return r.update(ctx, username, store.Pull(model.UserIncomingRequests, from))
}

func (r *UserRepo) AddLikedPlaylist(ctx context.Context, username, playlist string) error {
	return r.update(ctx, username, store.AddToSet(model.UserLikedPlaylists, playlist))
}

func (r *UserRepo) RemoveLikedPlaylist(ctx context.Context, username, playlist string) error {
	return r.update(ctx, username, store.Pull(model.UserLikedPlaylists, playlist))
}

func (r *UserRepo) AddOwnedPlaylist(ctx context.Context, username, playlist string) error {
	return r.update(ctx, username, store.AddToSet(model.UserOwnedPlaylists, playlist))
}

func (r *UserRepo) RemoveOwnedPlaylist(ctx context.Context, username, playlist string) error {
	return r.update(ctx, username, store.Pull(model.UserOwnedPlaylists, playlist))
}

func (r *UserRepo) update(ctx context.Context, username string, op store.FieldOp) error {
	err := r.store.UpdateOne(ctx, UsersCollection, byUsername(username), op)
	if err != nil {
		err = translate(err, "user", username)
		if !errors.Is(err, apperror.ErrNotFound) {
			r.logger.Error("user update failed",
				slog.String("username", username),
				slog.String("op", op.Kind.String()),
				slog.String("field", op.Field),
				slog.Any("error", err),
			)
		}
		return err
	}
	return nil
}

// public strips the fields that must not leave the repository.
func public(u *model.User) *model.User {
	u.PasswordHash = ""
	u.Session = model.Session{}
	u.Friends = emptyIfNil(u.Friends)
	u.OutgoingRequests = emptyIfNil(u.OutgoingRequests)
	u.IncomingRequests = emptyIfNil(u.IncomingRequests)
	u.OwnedPlaylists = emptyIfNil(u.OwnedPlaylists)
	u.LikedPlaylists = emptyIfNil(u.LikedPlaylists)
	return u
}
