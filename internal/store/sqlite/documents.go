package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/sakif/putmeon/internal/store"
)

// InsertOne encodes doc as relaxed extended JSON and inserts it.
func (s *Store) InsertOne(ctx context.Context, collection string, doc any) error {
	if err := checkCollection(collection); err != nil {
		return err
	}

	data, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return fmt.Errorf("sqlite: encoding %s document: %w", collection, err)
	}

	_, err = s.conn.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %q (doc) VALUES (?)`, collection),
		string(data),
	)
	if err != nil {
		// modernc reports constraint violations as "constraint failed: UNIQUE constraint failed: ..."
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrDuplicateKey
		}
		return fmt.Errorf("sqlite: inserting into %s: %w", collection, err)
	}
	return nil
}

// FindOne decodes the oldest document matching filter into out.
func (s *Store) FindOne(ctx context.Context, collection string, filter store.Filter, out any) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	where, args, err := whereClause(filter)
	if err != nil {
		return err
	}

	var data string
	err = s.conn.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT doc FROM %q WHERE %s ORDER BY seq LIMIT 1`, collection, where),
		args...,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNoDocument
		}
		return fmt.Errorf("sqlite: finding in %s: %w", collection, err)
	}

	if err := bson.UnmarshalExtJSON([]byte(data), false, out); err != nil {
		return fmt.Errorf("sqlite: decoding %s document: %w", collection, err)
	}
	return nil
}

// FindAll decodes every matching document, in insertion order, into the
// slice out points to.
func (s *Store) FindAll(ctx context.Context, collection string, filter store.Filter, out any) error {
	if err := checkCollection(collection); err != nil {
		return err
	}

	slicePtr := reflect.ValueOf(out)
	if slicePtr.Kind() != reflect.Pointer || slicePtr.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("sqlite: FindAll needs a pointer to a slice, got %T", out)
	}
	sliceVal := slicePtr.Elem()
	elemType := sliceVal.Type().Elem()

	where, args, err := whereClause(filter)
	if err != nil {
		return err
	}

	rows, err := s.conn.QueryContext(ctx,
		fmt.Sprintf(`SELECT doc FROM %q WHERE %s ORDER BY seq`, collection, where),
		args...,
	)
	if err != nil {
		return fmt.Errorf("sqlite: listing %s: %w", collection, err)
	}
	defer rows.Close()

	result := reflect.MakeSlice(sliceVal.Type(), 0, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return fmt.Errorf("sqlite: scanning %s row: %w", collection, err)
		}
		elem := reflect.New(elemType)
		if err := bson.UnmarshalExtJSON([]byte(data), false, elem.Interface()); err != nil {
			return fmt.Errorf("sqlite: decoding %s document: %w", collection, err)
		}
		result = reflect.Append(result, elem.Elem())
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: iterating %s: %w", collection, err)
	}

	sliceVal.Set(result)
	return nil
}

// UpdateOne applies ops to the oldest matching document inside a
// transaction: read, store.Apply, write back.
func (s *Store) UpdateOne(ctx context.Context, collection string, filter store.Filter, ops ...store.FieldOp) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	where, args, err := whereClause(filter)
	if err != nil {
		return err
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning update on %s: %w", collection, err)
	}
	defer tx.Rollback()

	var (
		seq  int64
		data string
	)
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT seq, doc FROM %q WHERE %s ORDER BY seq LIMIT 1`, collection, where),
		args...,
	).Scan(&seq, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNoDocument
		}
		return fmt.Errorf("sqlite: loading %s document for update: %w", collection, err)
	}

	var doc bson.M
	if err := bson.UnmarshalExtJSON([]byte(data), false, &doc); err != nil {
		return fmt.Errorf("sqlite: decoding %s document: %w", collection, err)
	}
	if err := store.Apply(doc, ops...); err != nil {
		return err
	}
	updated, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return fmt.Errorf("sqlite: encoding %s document: %w", collection, err)
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %q SET doc = ? WHERE seq = ?`, collection),
		string(updated), seq,
	); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return store.ErrDuplicateKey
		}
		return fmt.Errorf("sqlite: updating %s document: %w", collection, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing update on %s: %w", collection, err)
	}
	return nil
}

// DeleteOne removes the oldest matching document.
func (s *Store) DeleteOne(ctx context.Context, collection string, filter store.Filter) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	where, args, err := whereClause(filter)
	if err != nil {
		return err
	}

	result, err := s.conn.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %[1]q WHERE seq = (SELECT seq FROM %[1]q WHERE %[2]s ORDER BY seq LIMIT 1)`,
			collection, where),
		args...,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting from %s: %w", collection, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrNoDocument
	}
	return nil
}

// DeleteMany removes every matching document.
func (s *Store) DeleteMany(ctx context.Context, collection string, filter store.Filter) (int64, error) {
	if err := checkCollection(collection); err != nil {
		return 0, err
	}
	where, args, err := whereClause(filter)
	if err != nil {
		return 0, err
	}

	result, err := s.conn.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %q WHERE %s`, collection, where),
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting from %s: %w", collection, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n, nil
}
