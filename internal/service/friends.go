package service

import (
	"context"
	"log/slog"

	"github.com/sakif/putmeon/internal/apperror"
)

// RequestFriend records a pending request from a to b:
// b in a.outgoingRequests, then a in b.incomingRequests.
func (s *SocialService) RequestFriend(ctx context.Context, a, b string) error {
	if a == b {
		return apperror.InvalidArgument("cannot send a friend request to yourself")
	}

	unlock := s.locks.lock(userKey(a), userKey(b))
	defer unlock()

	ua, ub, err := s.loadUsers(ctx, a, b)
	if err != nil {
		return err
	}

	switch {
	case ua.IsFriend(b) || ub.IsFriend(a):
		return apperror.Conflictf("%s and %s are already friends", a, b)
	case ua.HasRequested(b) || ub.WasRequestedBy(a):
		return apperror.Conflictf("friend request from %s to %s already sent", a, b)
	case ub.HasRequested(a) || ua.WasRequestedBy(b):
		return apperror.Conflictf("friend request from %s to %s already sent", b, a)
	}

	err = s.runSteps(ctx, "request_friend",
		step{
			name: "outgoing",
			do:   func(ctx context.Context) error { return s.users.AddOutgoingRequest(ctx, a, b) },
			undo: func(ctx context.Context) error { return s.users.RemoveOutgoingRequest(ctx, a, b) },
		},
		step{
			name: "incoming",
			do:   func(ctx context.Context) error { return s.users.AddIncomingRequest(ctx, b, a) },
			undo: func(ctx context.Context) error { return s.users.RemoveIncomingRequest(ctx, b, a) },
		},
	)
	if err != nil {
		return err
	}

	s.logger.Info("friend request sent", slog.String("from", a), slog.String("to", b))
	return nil
}

// DeclineRequest removes the pending request from a to b. Both halves must
// be recorded; anything else is a Conflict.
//
// The target of a request declines it with DeclineRequest(sender, self);
// the sender withdraws it with DeclineRequest(self, target).
func (s *SocialService) DeclineRequest(ctx context.Context, a, b string) error {
	if a == b {
		return apperror.InvalidArgument("cannot decline a friend request to yourself")
	}

	unlock := s.locks.lock(userKey(a), userKey(b))
	defer unlock()

	ua, ub, err := s.loadUsers(ctx, a, b)
	if err != nil {
		return err
	}

	if !ua.HasRequested(b) || !ub.WasRequestedBy(a) {
		return apperror.Conflictf("no pending friend request from %s to %s", a, b)
	}

	err = s.runSteps(ctx, "decline_request",
		step{
			name: "outgoing",
			do:   func(ctx context.Context) error { return s.users.RemoveOutgoingRequest(ctx, a, b) },
			undo: func(ctx context.Context) error { return s.users.AddOutgoingRequest(ctx, a, b) },
		},
		step{
			name: "incoming",
			do:   func(ctx context.Context) error { return s.users.RemoveIncomingRequest(ctx, b, a) },
			undo: func(ctx context.Context) error { return s.users.AddIncomingRequest(ctx, b, a) },
		},
	)
	if err != nil {
		return err
	}

	s.logger.Info("friend request declined", slog.String("from", a), slog.String("to", b))
	return nil
}

// Befriend accepts a pending request between a and b, in either direction.
// It records the friendship on both users and then clears all four request
// edges between them, whichever of those happen to exist.
func (s *SocialService) Befriend(ctx context.Context, a, b string) error {
	if a == b {
		return apperror.InvalidArgument("cannot befriend yourself")
	}

	unlock := s.locks.lock(userKey(a), userKey(b))
	defer unlock()

	ua, ub, err := s.loadUsers(ctx, a, b)
	if err != nil {
		return err
	}

	if ua.IsFriend(b) || ub.IsFriend(a) {
		return apperror.Conflictf("%s and %s are already friends", a, b)
	}

	aToB := ua.HasRequested(b) || ub.WasRequestedBy(a)
	bToA := ub.HasRequested(a) || ua.WasRequestedBy(b)
	if !aToB && !bToA {
		return apperror.Conflictf("no pending friend request between %s and %s", a, b)
	}

	steps := []step{
		{
			name: "friend " + a,
			do:   func(ctx context.Context) error { return s.users.AddFriend(ctx, a, b) },
			undo: func(ctx context.Context) error { return s.users.RemoveFriend(ctx, a, b) },
		},
		{
			name: "friend " + b,
			do:   func(ctx context.Context) error { return s.users.AddFriend(ctx, b, a) },
			undo: func(ctx context.Context) error { return s.users.RemoveFriend(ctx, b, a) },
		},
	}
	steps = append(steps, s.clearRequestSteps(a, b, ua.HasRequested(b), ub.WasRequestedBy(a))...)
	steps = append(steps, s.clearRequestSteps(b, a, ub.HasRequested(a), ua.WasRequestedBy(b))...)

	if err := s.runSteps(ctx, "befriend", steps...); err != nil {
		return err
	}

	s.logger.Info("friendship created", slog.String("user", a), slog.String("friend", b))
	return nil
}

// clearRequestSteps removes the request edge from → to on both users. A
// half that was not recorded is still pulled but has nothing to restore.
func (s *SocialService) clearRequestSteps(from, to string, hadOutgoing, hadIncoming bool) []step {
	out := step{
		name: "clear outgoing " + from,
		do:   func(ctx context.Context) error { return s.users.RemoveOutgoingRequest(ctx, from, to) },
	}
	if hadOutgoing {
		out.undo = func(ctx context.Context) error { return s.users.AddOutgoingRequest(ctx, from, to) }
	}

	in := step{
		name: "clear incoming " + to,
		do:   func(ctx context.Context) error { return s.users.RemoveIncomingRequest(ctx, to, from) },
	}
	if hadIncoming {
		in.undo = func(ctx context.Context) error { return s.users.AddIncomingRequest(ctx, to, from) }
	}

	return []step{out, in}
}

// Unfriend removes the friendship between a and b from both users.
// A friendship recorded on only one side still counts, and is repaired.
func (s *SocialService) Unfriend(ctx context.Context, a, b string) error {
	unlock := s.locks.lock(userKey(a), userKey(b))
	defer unlock()

	ua, ub, err := s.loadUsers(ctx, a, b)
	if err != nil {
		return err
	}

	aHasB, bHasA := ua.IsFriend(b), ub.IsFriend(a)
	if !aHasB && !bHasA {
		return apperror.Conflictf("%s and %s are not friends", a, b)
	}

	first := step{
		name: "unfriend " + a,
		do:   func(ctx context.Context) error { return s.users.RemoveFriend(ctx, a, b) },
	}
	if aHasB {
		first.undo = func(ctx context.Context) error { return s.users.AddFriend(ctx, a, b) }
	}
	second := step{
		name: "unfriend " + b,
		do:   func(ctx context.Context) error { return s.users.RemoveFriend(ctx, b, a) },
	}

	if err := s.runSteps(ctx, "unfriend", first, second); err != nil {
		return err
	}

	s.logger.Info("friendship removed", slog.String("user", a), slog.String("friend", b))
	return nil
}
