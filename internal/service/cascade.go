package service

import (
	"context"
	"log/slog"

	"github.com/sakif/putmeon/internal/model"
)

// DeletePlaylist removes the playlist and every edge pointing at it: the
// like on each liker and the entry in the owner's ownedPlaylists.
//
// Likers and owners are collected from the playlist AND from users whose
// records point at it, so a half-written like is cleaned up too.
func (s *SocialService) DeletePlaylist(ctx context.Context, name string) error {
	p, err := s.playlists.Get(ctx, name)
	if err != nil {
		return err
	}

	likers := newNameSet(p.Likes...)
	s.addReferencing(ctx, likers, model.UserLikedPlaylists, name)
	for _, liker := range likers.names {
		s.lenient("delete_playlist.unlike", liker, s.users.RemoveLikedPlaylist(ctx, liker, name))
	}

	owners := newNameSet()
	if p.Owner != "" {
		owners.add(p.Owner)
	}
	s.addReferencing(ctx, owners, model.UserOwnedPlaylists, name)
	for _, owner := range owners.names {
		s.lenient("delete_playlist.disown", owner, s.users.RemoveOwnedPlaylist(ctx, owner, name))
	}

	if err := s.playlists.Delete(ctx, name); err != nil {
		return err
	}

	s.logger.Info("playlist deleted",
		slog.String("name", name),
		slog.Int("likes_removed", len(likers.names)),
	)
	return nil
}

// DeleteUser tears down every edge of the user and then deletes it:
//
//	(a) owned playlists are deleted (each cascading its own likes)
//	(b) the user's likes are removed from the playlists
//	(c) the user is removed from every friend's friend set
//	(d) pending requests in both directions are cleared on the counterpart
//	(e) the user record is deleted, then the reverse references are swept
//	    once more
//
// Every step is best-effort. Only the user's own absence, or failure to
// delete the record itself, is returned as an error.
//
// No pair locks are held, so a request, like or playlist created for the
// user while the cascade runs can land after its step. The sweep in (e)
// catches writes that finished before it; one that commits after the sweep
// still leaves a dangling name behind.
func (s *SocialService) DeleteUser(ctx context.Context, username string) error {
	u, err := s.users.Get(ctx, username)
	if err != nil {
		return err
	}

	// (a) the playlist's owner field decides. A name only in
	// u.OwnedPlaylists may be stale and since reused by someone else.
	owned := newNameSet()
	if list, err := s.playlists.ListOwnedBy(ctx, username); err != nil {
		s.lenient("delete_user.list_owned", username, err)
	} else {
		for _, p := range list {
			owned.add(p.Name)
		}
	}
	for _, name := range u.OwnedPlaylists {
		if owned.has(name) {
			continue
		}
		p, err := s.playlists.Get(ctx, name)
		if err != nil {
			s.lenient("delete_user.get_owned", name, err)
			continue
		}
		if p.Owner != username {
			s.logger.Warn("skipping playlist owned by another user",
				slog.String("username", username),
				slog.String("playlist", name),
				slog.String("owner", p.Owner),
			)
			continue
		}
		owned.add(name)
	}
	for _, name := range owned.names {
		s.lenient("delete_user.delete_playlist", name, s.DeletePlaylist(ctx, name))
	}

	// (b)
	liked := newNameSet(u.LikedPlaylists...)
	s.addLikedBy(ctx, liked, username)
	for _, name := range liked.names {
		s.lenient("delete_user.unlike", name, s.playlists.RemoveLike(ctx, name, username))
	}

	// (c)
	friends := newNameSet(u.Friends...)
	s.addReferencing(ctx, friends, model.UserFriends, username)
	for _, friend := range friends.names {
		s.lenient("delete_user.unfriend", friend, s.users.RemoveFriend(ctx, friend, username))
	}

	// (d) a request username → other lives in other.incomingRequests, and
	// the reverse in other.outgoingRequests.
	requested := newNameSet(u.OutgoingRequests...)
	s.addReferencing(ctx, requested, model.UserIncomingRequests, username)
	for _, other := range requested.names {
		s.lenient("delete_user.withdraw_request", other, s.users.RemoveIncomingRequest(ctx, other, username))
	}
	requesters := newNameSet(u.IncomingRequests...)
	s.addReferencing(ctx, requesters, model.UserOutgoingRequests, username)
	for _, other := range requesters.names {
		s.lenient("delete_user.decline_request", other, s.users.RemoveOutgoingRequest(ctx, other, username))
	}

	// (e)
	if err := s.users.Delete(ctx, username); err != nil {
		return err
	}
	swept := s.sweepReferences(ctx, username)

	s.logger.Info("user deleted",
		slog.String("username", username),
		slog.Int("playlists_deleted", len(owned.names)),
		slog.Int("likes_removed", len(liked.names)),
		slog.Int("friends_removed", len(friends.names)),
		slog.Int("requests_cleared", len(requested.names)+len(requesters.names)),
		slog.Int("late_references_swept", swept),
	)
	return nil
}

// sweepReferences removes every remaining reference to a user whose record
// is already gone and returns how many it found. The lookups only go
// through the reverse indexes since there is no user record to read.
func (s *SocialService) sweepReferences(ctx context.Context, username string) int {
	swept := 0

	owned := newNameSet()
	if list, err := s.playlists.ListOwnedBy(ctx, username); err != nil {
		s.lenient("sweep.list_owned", username, err)
	} else {
		for _, p := range list {
			owned.add(p.Name)
		}
	}
	for _, name := range owned.names {
		s.lenient("sweep.delete_playlist", name, s.DeletePlaylist(ctx, name))
	}
	swept += len(owned.names)

	liked := newNameSet()
	s.addLikedBy(ctx, liked, username)
	for _, name := range liked.names {
		s.lenient("sweep.unlike", name, s.playlists.RemoveLike(ctx, name, username))
	}
	swept += len(liked.names)

	edges := []struct {
		field  string
		remove func(ctx context.Context, other, username string) error
	}{
		{model.UserFriends, s.users.RemoveFriend},
		{model.UserIncomingRequests, s.users.RemoveIncomingRequest},
		{model.UserOutgoingRequests, s.users.RemoveOutgoingRequest},
	}
	for _, e := range edges {
		others := newNameSet()
		s.addReferencing(ctx, others, e.field, username)
		for _, other := range others.names {
			s.lenient("sweep."+e.field, other, e.remove(ctx, other, username))
		}
		swept += len(others.names)
	}
	return swept
}

// addLikedBy adds to set every playlist whose likes contain username.
func (s *SocialService) addLikedBy(ctx context.Context, set *nameSet, username string) {
	list, err := s.playlists.ListLikedBy(ctx, username)
	if err != nil {
		s.lenient("list_liked_by", username, err)
		return
	}
	for _, p := range list {
		set.add(p.Name)
	}
}

// addReferencing adds to set every user whose field contains name. A
// failed lookup is logged and the cascade continues with what it has.
func (s *SocialService) addReferencing(ctx context.Context, set *nameSet, field, name string) {
	users, err := s.users.ListReferencing(ctx, field, name)
	if err != nil {
		s.lenient("list_referencing."+field, name, err)
		return
	}
	for _, u := range users {
		set.add(u.Username)
	}
}

// nameSet is an insertion-ordered set of names, so cascades touch
// counterparts in a stable order.
type nameSet struct {
	seen  map[string]struct{}
	names []string
}

func newNameSet(names ...string) *nameSet {
	s := &nameSet{seen: make(map[string]struct{}, len(names))}
	for _, n := range names {
		s.add(n)
	}
	return s
}

func (s *nameSet) add(name string) {
	if _, ok := s.seen[name]; ok {
		return
	}
	s.seen[name] = struct{}{}
	s.names = append(s.names, name)
}

func (s *nameSet) has(name string) bool {
	_, ok := s.seen[name]
	return ok
}
