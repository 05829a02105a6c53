package model

import "time"

// Field names of the playlists collection, as stored.
const (
	PlaylistKey       = "name"
	PlaylistOwner     = "owner"
	PlaylistSongs     = "songs"
	PlaylistLikes     = "likes"
	PlaylistLikeCount = "likeCount"
)

// Playlist is a named, ordered set of songs that users can like.
//
// LikeCount always equals len(Likes): the repository updates both in the
// same single-document write. Owner is empty for playlists created without
// an owning user.
type Playlist struct {
	ID        string    `bson:"id"        json:"id"`
	Name      string    `bson:"name"      json:"name"`
	Owner     string    `bson:"owner"     json:"owner,omitempty"`
	Songs     []string  `bson:"songs"     json:"songs"`
	Likes     []string  `bson:"likes"     json:"likes"`
	LikeCount int64     `bson:"likeCount" json:"likeCount"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// HasSong reports whether song is already in the playlist.
func (p *Playlist) HasSong(song string) bool {
	return Contains(p.Songs, song)
}

// LikedBy reports whether the playlist records a like from username.
func (p *Playlist) LikedBy(username string) bool {
	return Contains(p.Likes, username)
}
