package handler

import (
	"log/slog"
	"net/http"
)

// PlaylistHandler serves /api/playlists. Reads are public; every mutation
// is checked with AuthorizePlaylist so only the owner (or anyone, for an
// ownerless playlist) can change it.
type PlaylistHandler struct {
	graph  SocialGraph
	logger *slog.Logger
}

func NewPlaylistHandler(graph SocialGraph, logger *slog.Logger) *PlaylistHandler {
	return &PlaylistHandler{graph: graph, logger: logger}
}

// HandleList: GET /api/playlists
func (h *PlaylistHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.graph.ListPlaylists(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, playlists)
}

// HandleGet: GET /api/playlists/{name}
func (h *PlaylistHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	playlist, err := h.graph.GetPlaylist(r.Context(), param(r, "name"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, playlist)
}

// HandleCreate creates a playlist with no owner. Owned playlists are
// created through POST /api/users/{username}/playlists.
// POST /api/playlists  {"name": "..."}
func (h *PlaylistHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	if _, err := sessionUser(r); err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req createPlaylistRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	playlist, err := h.graph.CreatePlaylist(r.Context(), "", req.Name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, playlist)
}

// HandleDelete: DELETE /api/playlists/{name}
func (h *PlaylistHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	name := param(r, "name")
	if err := h.authorize(r, name); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.graph.DeletePlaylist(r.Context(), name); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeMessage(w, "playlist %s deleted", name)
}

// HandleAddSong: POST /api/playlists/{name}/songs/{song}
func (h *PlaylistHandler) HandleAddSong(w http.ResponseWriter, r *http.Request) {
	name, song := param(r, "name"), param(r, "song")
	if err := h.authorize(r, name); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.graph.AddSong(r.Context(), name, song); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeMessage(w, "added %s to %s", song, name)
}

// HandleRemoveSong: DELETE /api/playlists/{name}/songs/{song}
func (h *PlaylistHandler) HandleRemoveSong(w http.ResponseWriter, r *http.Request) {
	name, song := param(r, "name"), param(r, "song")
	if err := h.authorize(r, name); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.graph.RemoveSong(r.Context(), name, song); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeMessage(w, "removed %s from %s", song, name)
}

func (h *PlaylistHandler) authorize(r *http.Request, playlist string) error {
	username, err := sessionUser(r)
	if err != nil {
		return err
	}
	return h.graph.AuthorizePlaylist(r.Context(), username, playlist)
}
