package model

import "time"

// Session is the login record stored on a user. The zero value means the
// user has never logged in (or has logged out).
type Session struct {
	ID        string    `bson:"id"        json:"id"`
	ExpiresAt time.Time `bson:"expiresAt" json:"expiresAt"`
}

// IsBlank reports whether no session has been issued.
func (s Session) IsBlank() bool {
	return s.ID == ""
}

// Expired reports whether the session is no longer usable at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
