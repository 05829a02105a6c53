// Package model defines the data structures used throughout the application.
//
// STRUCT TAGS:
// Every persisted struct carries two tag sets:
//   - `bson:"..."` is the storage shape. Both document stores (SQLite and
//     MongoDB) encode documents through the bson codec, so these names are
//     what filters and field updates refer to.
//   - `json:"..."` is the API shape returned by the HTTP handlers.
//
// Fields that must never leave the server (password hash, session) are
// tagged `json:"-"`.
package model

import "time"

// Field names of the users collection, as stored.
const (
	UserKey              = "username"
	UserFriends          = "friends"
	UserOutgoingRequests = "outgoingRequests"
	UserIncomingRequests = "incomingRequests"
	UserOwnedPlaylists   = "ownedPlaylists"
	UserLikedPlaylists   = "likedPlaylists"
	UserSession          = "session"
)

// User is a registered account together with its side of every social edge.
//
// Relation fields are sets stored as arrays; insertion order carries no
// meaning. They are initialised to empty (never nil) on creation so that a
// MongoDB $addToSet has an array to work on.
type User struct {
	ID               string    `bson:"id"               json:"id"`
	Username         string    `bson:"username"         json:"username"`
	PasswordHash     string    `bson:"passwordHash"     json:"-"`
	Session          Session   `bson:"session"          json:"-"`
	Friends          []string  `bson:"friends"          json:"friends"`
	OutgoingRequests []string  `bson:"outgoingRequests" json:"outgoingRequests"`
	IncomingRequests []string  `bson:"incomingRequests" json:"incomingRequests"`
	OwnedPlaylists   []string  `bson:"ownedPlaylists"   json:"ownedPlaylists"`
	LikedPlaylists   []string  `bson:"likedPlaylists"   json:"likedPlaylists"`
	CreatedAt        time.Time `bson:"createdAt"        json:"createdAt"`
}

// Credentials is the slice of a user record the credential collaborator
// needs. It never travels past the service layer.
type Credentials struct {
	Username     string
	PasswordHash string
	Session      Session
}

// IsFriend reports whether other is in u's friend set.
func (u *User) IsFriend(other string) bool {
	return Contains(u.Friends, other)
}

// HasRequested reports whether u has a pending outgoing request to other.
func (u *User) HasRequested(other string) bool {
	return Contains(u.OutgoingRequests, other)
}

// WasRequestedBy reports whether other has a pending request to u.
func (u *User) WasRequestedBy(other string) bool {
	return Contains(u.IncomingRequests, other)
}

// Likes reports whether u records a like of the named playlist.
func (u *User) Likes(playlist string) bool {
	return Contains(u.LikedPlaylists, playlist)
}

// Contains is a linear membership test over a stored set.
func Contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
