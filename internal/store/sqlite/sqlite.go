// Package sqlite implements store.Store on top of SQLite.
//
// DOCUMENTS IN A RELATIONAL DATABASE:
// Each collection is one table with a single JSON column:
//
//	CREATE TABLE users (seq INTEGER PRIMARY KEY AUTOINCREMENT, doc TEXT NOT NULL)
//
// Documents are written as relaxed extended JSON by the mongo-driver bson
// codec, so the same `bson` struct tags drive both this store and the
// MongoDB one. Filters are compiled to SQLite JSON1 predicates, and the
// collection key gets a UNIQUE expression index on json_extract(doc, '$.key').
//
// ATOMIC SINGLE-DOCUMENT UPDATES:
// UpdateOne reads the document, applies the field ops in Go (store.Apply)
// and writes it back inside one transaction. The pool is limited to one
// connection, so two updates can never interleave.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	// The blank import registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"

	"github.com/sakif/putmeon/internal/store"
)

// compile-time check that *Store implements store.Store
var _ store.Store = (*Store)(nil)

// Store wraps a sql.DB connection pool.
type Store struct {
	conn   *sql.DB
	logger *slog.Logger
}

// New opens (or creates) the database at dbPath.
//
// dbPath examples:
//   - "data/putmeon.db"  → file-based database (persistent)
//   - ":memory:"         → in-memory database (tests; lost on close)
func New(dbPath string, logger *slog.Logger) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: creating database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// One connection: serialises writers, and keeps ":memory:" a single
	// database instead of one per pooled connection.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting busy timeout: %w", err)
	}

	return &Store{conn: conn, logger: logger}, nil
}

// Close closes the database connection pool.
func (s *Store) Close(_ context.Context) error {
	return s.conn.Close()
}

// EnsureCollection creates the collection table and its unique key index.
// CREATE ... IF NOT EXISTS makes this safe on every startup.
func (s *Store) EnsureCollection(ctx context.Context, name, keyField string) error {
	if !store.ValidName(name) || !store.ValidName(keyField) {
		return fmt.Errorf("sqlite: invalid collection %q or key %q", name, keyField)
	}

	_, err := s.conn.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]q (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			doc TEXT NOT NULL CHECK (json_valid(doc))
		);
		CREATE UNIQUE INDEX IF NOT EXISTS %[2]q ON %[1]q (json_extract(doc, '$.%[3]s'));
	`, name, name+"_"+keyField+"_key", keyField))
	if err != nil {
		return fmt.Errorf("sqlite: ensuring collection %s: %w", name, err)
	}

	s.logger.Debug("collection ready",
		slog.String("collection", name),
		slog.String("key", keyField),
	)
	return nil
}

// whereClause compiles a filter into a SQL predicate and its arguments.
//
// json_each over '$.field' yields one row per array element, or a single
// row for a scalar, and no rows when the field is missing. That gives Eq
// and Ne the MongoDB meaning for both scalars and arrays.
func whereClause(filter store.Filter) (string, []any, error) {
	if len(filter) == 0 {
		return "1 = 1", nil, nil
	}

	parts := make([]string, 0, len(filter))
	args := make([]any, 0, len(filter))
	for _, c := range filter {
		if !store.ValidName(c.Field) {
			return "", nil, fmt.Errorf("sqlite: invalid field name %q", c.Field)
		}
		exists := fmt.Sprintf(
			`EXISTS (SELECT 1 FROM json_each(doc, '$.%s') AS e WHERE e.value = ?)`, c.Field)

		switch c.Op {
		case store.OpEq:
			parts = append(parts, exists)
		case store.OpNe:
			parts = append(parts, "NOT "+exists)
		default:
			return "", nil, fmt.Errorf("sqlite: unsupported condition %d", c.Op)
		}
		args = append(args, c.Value)
	}

	return strings.Join(parts, " AND "), args, nil
}

func checkCollection(name string) error {
	if !store.ValidName(name) {
		return fmt.Errorf("sqlite: invalid collection name %q", name)
	}
	return nil
}
