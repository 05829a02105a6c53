package handler

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
)

// HandleHello is the liveness check. GET /hello
func HandleHello(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"hola": "mundo"})
}

// Endpoint is one registered route.
type Endpoint struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// HandleEndpoints lists every route registered on routes, sorted by path
// then method. The walk happens per request so routes added after the
// handler was built still show up. GET /endpoints
func HandleEndpoints(routes chi.Routes, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		endpoints, err := listEndpoints(routes)
		if err != nil {
			writeError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, endpoints)
	}
}

func listEndpoints(routes chi.Routes) ([]Endpoint, error) {
	var endpoints []Endpoint
	walk := func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		// A "/" route inside a mounted router is reported as "/api/x/".
		route = strings.TrimSuffix(route, "/")
		if route == "" {
			route = "/"
		}
		endpoints = append(endpoints, Endpoint{Method: method, Path: route})
		return nil
	}
	if err := chi.Walk(routes, walk); err != nil {
		return nil, err
	}

	sort.Slice(endpoints, func(i, j int) bool {
		if endpoints[i].Path != endpoints[j].Path {
			return endpoints[i].Path < endpoints[j].Path
		}
		return endpoints[i].Method < endpoints[j].Method
	})
	return endpoints, nil
}

// HandlePurge wipes every user and playlist. The server only routes it
// when test mode is on. POST /api/admin/purge
func HandlePurge(graph SocialGraph, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := graph.Purge(r.Context()); err != nil {
			writeError(w, logger, err)
			return
		}
		writeMessage(w, "all users and playlists deleted")
	}
}
