// Package mongodb implements store.Store on MongoDB.
//
// Filters and field ops translate one-to-one into MongoDB query and update
// operators ($ne, $set, $addToSet, $pull, $inc); MongoDB already updates a
// single document atomically, which is all store.Store promises.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/putmeon/internal/store"
)

var _ store.Store = (*Store)(nil)

// Store holds a connected client and the database all collections live in.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
}

// New connects to uri and verifies the connection with a ping.
func New(ctx context.Context, uri, database string, logger *slog.Logger) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connecting: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: pinging: %w", err)
	}

	logger.Info("connected to mongo", slog.String("database", database))

	return &Store{
		client: client,
		db:     client.Database(database),
		logger: logger,
	}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureCollection creates the unique index on keyField. MongoDB creates
// the collection itself on first write.
func (s *Store) EnsureCollection(ctx context.Context, name, keyField string) error {
	_, err := s.db.Collection(name).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: keyField, Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongo: ensuring collection %s: %w", name, err)
	}
	return nil
}

func (s *Store) InsertOne(ctx context.Context, collection string, doc any) error {
	if _, err := s.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicateKey
		}
		return fmt.Errorf("mongo: inserting into %s: %w", collection, err)
	}
	return nil
}

func (s *Store) FindOne(ctx context.Context, collection string, filter store.Filter, out any) error {
	err := s.db.Collection(collection).FindOne(ctx, toFilter(filter)).Decode(out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return store.ErrNoDocument
		}
		return fmt.Errorf("mongo: finding in %s: %w", collection, err)
	}
	return nil
}

// FindAll returns documents in _id order, which for driver-generated
// ObjectIDs is insertion order.
func (s *Store) FindAll(ctx context.Context, collection string, filter store.Filter, out any) error {
	cur, err := s.db.Collection(collection).Find(ctx, toFilter(filter),
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return fmt.Errorf("mongo: listing %s: %w", collection, err)
	}
	if err := cur.All(ctx, out); err != nil {
		return fmt.Errorf("mongo: decoding %s: %w", collection, err)
	}
	return nil
}

func (s *Store) UpdateOne(ctx context.Context, collection string, filter store.Filter, ops ...store.FieldOp) error {
	update, err := toUpdate(ops)
	if err != nil {
		return err
	}

	res, err := s.db.Collection(collection).UpdateOne(ctx, toFilter(filter), update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrDuplicateKey
		}
		return fmt.Errorf("mongo: updating %s: %w", collection, err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNoDocument
	}
	return nil
}

func (s *Store) DeleteOne(ctx context.Context, collection string, filter store.Filter) error {
	res, err := s.db.Collection(collection).DeleteOne(ctx, toFilter(filter))
	if err != nil {
		return fmt.Errorf("mongo: deleting from %s: %w", collection, err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNoDocument
	}
	return nil
}

func (s *Store) DeleteMany(ctx context.Context, collection string, filter store.Filter) (int64, error) {
	res, err := s.db.Collection(collection).DeleteMany(ctx, toFilter(filter))
	if err != nil {
		return 0, fmt.Errorf("mongo: deleting from %s: %w", collection, err)
	}
	return res.DeletedCount, nil
}

// toFilter builds a query document. A field compared against a scalar
// already means "equals or contains" in MongoDB, so Eq needs no operator.
func toFilter(filter store.Filter) bson.D {
	clauses := make(bson.A, 0, len(filter))
	for _, c := range filter {
		switch c.Op {
		case store.OpNe:
			clauses = append(clauses, bson.D{{Key: c.Field, Value: bson.D{{Key: "$ne", Value: c.Value}}}})
		default:
			clauses = append(clauses, bson.D{{Key: c.Field, Value: c.Value}})
		}
	}

	switch len(clauses) {
	case 0:
		return bson.D{}
	case 1:
		return clauses[0].(bson.D)
	default:
		return bson.D{{Key: "$and", Value: clauses}}
	}
}

var updateOperators = map[store.OpKind]string{
	store.OpSet:      "$set",
	store.OpAddToSet: "$addToSet",
	store.OpPull:     "$pull",
	store.OpInc:      "$inc",
}

// toUpdate groups ops by operator, keeping their relative order.
func toUpdate(ops []store.FieldOp) (bson.D, error) {
	if len(ops) == 0 {
		return nil, errors.New("mongo: update needs at least one op")
	}

	var update bson.D
	index := map[string]int{}
	for _, op := range ops {
		name, ok := updateOperators[op.Kind]
		if !ok {
			return nil, fmt.Errorf("mongo: unsupported op %s", op.Kind)
		}
		i, seen := index[name]
		if !seen {
			i = len(update)
			index[name] = i
			update = append(update, bson.E{Key: name, Value: bson.D{}})
		}
		fields := update[i].Value.(bson.D)
		update[i].Value = append(fields, bson.E{Key: op.Field, Value: op.Value})
	}
	return update, nil
}
