// Package document implements the repository interfaces on a store.Store.
//
// The same code runs on SQLite and MongoDB: the repositories only speak in
// store filters and field ops, and translate the store's sentinel errors
// into apperror kinds so the layers above never import the store package.
package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/sakif/putmeon/internal/apperror"
	"github.com/sakif/putmeon/internal/model"
	"github.com/sakif/putmeon/internal/store"
)

// Collection names.
const (
	UsersCollection     = "users"
	PlaylistsCollection = "playlists"
)

// EnsureCollections creates both collections and their unique key indexes.
// Call it once at startup, before the repositories are used.
func EnsureCollections(ctx context.Context, s store.Store) error {
	if err := s.EnsureCollection(ctx, UsersCollection, model.UserKey); err != nil {
		return fmt.Errorf("document: ensuring %s: %w", UsersCollection, err)
	}
	if err := s.EnsureCollection(ctx, PlaylistsCollection, model.PlaylistKey); err != nil {
		return fmt.Errorf("document: ensuring %s: %w", PlaylistsCollection, err)
	}
	return nil
}

// translate maps store sentinels onto apperror kinds for one record.
// Anything else is an infrastructure failure and is wrapped as-is.
func translate(err error, resource, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNoDocument):
		return apperror.NotFound(resource, id)
	case errors.Is(err, store.ErrDuplicateKey):
		return apperror.Conflict(resource, id)
	default:
		return fmt.Errorf("document: %s %s: %w", resource, id, err)
	}
}

// keyOnly decodes just the key of a document for existence checks.
type keyOnly struct {
	Username string `bson:"username"`
	Name     string `bson:"name"`
}

func exists(ctx context.Context, s store.Store, collection string, filter store.Filter) (bool, error) {
	var k keyOnly
	err := s.FindOne(ctx, collection, filter, &k)
	if errors.Is(err, store.ErrNoDocument) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("document: checking %s: %w", collection, err)
	}
	return true, nil
}

func emptyIfNil(set []string) []string {
	if set == nil {
		return []string{}
	}
	return set
}
