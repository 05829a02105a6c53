// Package storetest is a behavioural suite every store.Store backend must
// pass. Backend tests call Run with a freshly opened, empty store.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/putmeon/internal/store"
)

const collection = "conformance"

type doc struct {
	Name  string   `bson:"name"`
	Tags  []string `bson:"tags"`
	Count int64    `bson:"count"`
}

// Run exercises s. The store must not already hold the conformance
// collection.
func Run(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.EnsureCollection(ctx, collection, "name"))
	require.NoError(t, s.EnsureCollection(ctx, collection, "name"), "EnsureCollection is idempotent")

	byName := func(name string) store.Filter { return store.Where(store.Eq("name", name)) }
	load := func(t *testing.T, name string) doc {
		t.Helper()
		var d doc
		require.NoError(t, s.FindOne(ctx, collection, byName(name), &d))
		return d
	}

	t.Run("insert and find", func(t *testing.T) {
		require.NoError(t, s.InsertOne(ctx, collection, &doc{Name: "a", Tags: []string{"x"}}))
		d := load(t, "a")
		assert.Equal(t, []string{"x"}, d.Tags)
	})

	t.Run("duplicate key", func(t *testing.T) {
		err := s.InsertOne(ctx, collection, &doc{Name: "a", Tags: []string{}})
		assert.ErrorIs(t, err, store.ErrDuplicateKey)
	})

	t.Run("missing document", func(t *testing.T) {
		var d doc
		assert.ErrorIs(t, s.FindOne(ctx, collection, byName("nobody"), &d), store.ErrNoDocument)
		assert.ErrorIs(t, s.UpdateOne(ctx, collection, byName("nobody"), store.Inc("count", 1)), store.ErrNoDocument)
		assert.ErrorIs(t, s.DeleteOne(ctx, collection, byName("nobody")), store.ErrNoDocument)
	})

	t.Run("field ops", func(t *testing.T) {
		require.NoError(t, s.UpdateOne(ctx, collection, byName("a"),
			store.AddToSet("tags", "y"), store.Inc("count", 1)))
		require.NoError(t, s.UpdateOne(ctx, collection, byName("a"), store.AddToSet("tags", "y")))
		d := load(t, "a")
		assert.Equal(t, []string{"x", "y"}, d.Tags)
		assert.Equal(t, int64(1), d.Count)

		require.NoError(t, s.UpdateOne(ctx, collection, byName("a"),
			store.Pull("tags", "x"), store.Inc("count", -1)))
		d = load(t, "a")
		assert.Equal(t, []string{"y"}, d.Tags)
		assert.Equal(t, int64(0), d.Count)
	})

	t.Run("guarded update", func(t *testing.T) {
		guard := store.Where(store.Eq("name", "a"), store.Ne("tags", "y"))
		err := s.UpdateOne(ctx, collection, guard, store.AddToSet("tags", "y"), store.Inc("count", 1))
		assert.ErrorIs(t, err, store.ErrNoDocument)
		assert.Equal(t, int64(0), load(t, "a").Count)
	})

	t.Run("array filters", func(t *testing.T) {
		require.NoError(t, s.InsertOne(ctx, collection, &doc{Name: "b", Tags: []string{"x", "y"}}))
		require.NoError(t, s.InsertOne(ctx, collection, &doc{Name: "c", Tags: []string{}}))

		var withY []doc
		require.NoError(t, s.FindAll(ctx, collection, store.Where(store.Eq("tags", "y")), &withY))
		assert.Len(t, withY, 2)

		var withoutY []doc
		require.NoError(t, s.FindAll(ctx, collection, store.Where(store.Ne("tags", "y")), &withoutY))
		require.Len(t, withoutY, 1)
		assert.Equal(t, "c", withoutY[0].Name)
	})

	t.Run("deletes", func(t *testing.T) {
		require.NoError(t, s.DeleteOne(ctx, collection, byName("c")))

		n, err := s.DeleteMany(ctx, collection, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		var rest []doc
		require.NoError(t, s.FindAll(ctx, collection, nil, &rest))
		assert.Empty(t, rest)
	})
}
