// Package store defines the document store the repositories persist to.
//
// THE CONTRACT:
// A Store holds named collections of documents. It offers point reads and
// deletes by filter, full scans, inserts, and an atomic update of ONE
// document at a time. There are no multi-document transactions: callers
// that keep two documents in sync (a friendship is recorded on both users)
// issue two single-document updates and own the consequences of a failure
// in between.
//
// Two implementations live in sub-packages:
//
//	store/sqlite  → modernc.org/sqlite, one table per collection (default)
//	store/mongodb → go.mongodb.org/mongo-driver
//
// Both encode documents with the bson codec, so model structs only need
// `bson` tags to be stored by either backend.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrNoDocument is returned when a filter matched nothing.
	ErrNoDocument = errors.New("store: no matching document")
	// ErrDuplicateKey is returned when an insert violates a collection's
	// unique key.
	ErrDuplicateKey = errors.New("store: duplicate key")
)

// Store is the persistence adapter used by the repositories.
type Store interface {
	// EnsureCollection creates the collection if needed and a unique index
	// on keyField. Safe to call on every startup.
	EnsureCollection(ctx context.Context, name, keyField string) error

	// InsertOne stores doc. Returns ErrDuplicateKey on a key collision.
	InsertOne(ctx context.Context, collection string, doc any) error

	// FindOne decodes the first document matching filter into out.
	// Returns ErrNoDocument when nothing matches.
	FindOne(ctx context.Context, collection string, filter Filter, out any) error

	// FindAll decodes every matching document into out, which must be a
	// pointer to a slice. A nil filter matches everything.
	FindAll(ctx context.Context, collection string, filter Filter, out any) error

	// UpdateOne atomically applies ops to the first document matching
	// filter. Returns ErrNoDocument when nothing matches.
	UpdateOne(ctx context.Context, collection string, filter Filter, ops ...FieldOp) error

	// DeleteOne removes the first matching document.
	// Returns ErrNoDocument when nothing matches.
	DeleteOne(ctx context.Context, collection string, filter Filter) error

	// DeleteMany removes every matching document and reports how many.
	DeleteMany(ctx context.Context, collection string, filter Filter) (int64, error)

	Close(ctx context.Context) error
}

// CondOp is the comparison a Condition performs.
type CondOp int

const (
	// OpEq matches when the field equals the value or, for array fields,
	// when the array contains it.
	OpEq CondOp = iota
	// OpNe is the negation of OpEq. A missing field matches.
	OpNe
)

// Condition is one clause of a Filter.
type Condition struct {
	Field string
	Op    CondOp
	Value any
}

// Filter is a conjunction of conditions. The empty filter matches every
// document.
type Filter []Condition

// Where builds a Filter from conditions.
func Where(conds ...Condition) Filter {
	return Filter(conds)
}

// Eq matches documents whose field equals (or, for arrays, contains) v.
func Eq(field string, v any) Condition {
	return Condition{Field: field, Op: OpEq, Value: v}
}

// Ne matches documents whose field differs from (or, for arrays, lacks) v.
func Ne(field string, v any) Condition {
	return Condition{Field: field, Op: OpNe, Value: v}
}

// OpKind is the kind of a field-level update.
type OpKind int

const (
	OpSet OpKind = iota
	OpAddToSet
	OpPull
	OpInc
)

func (k OpKind) String() string {
	switch k {
	case OpSet:
		return "set"
	case OpAddToSet:
		return "addToSet"
	case OpPull:
		return "pull"
	case OpInc:
		return "inc"
	default:
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
}

// FieldOp is a single field update inside UpdateOne.
type FieldOp struct {
	Kind  OpKind
	Field string
	Value any
}

// Set replaces the field's value.
func Set(field string, v any) FieldOp {
	return FieldOp{Kind: OpSet, Field: field, Value: v}
}

// AddToSet appends v to an array field unless it is already present.
func AddToSet(field string, v any) FieldOp {
	return FieldOp{Kind: OpAddToSet, Field: field, Value: v}
}

// Pull removes every occurrence of v from an array field.
func Pull(field string, v any) FieldOp {
	return FieldOp{Kind: OpPull, Field: field, Value: v}
}

// Inc adds n to a numeric field, treating a missing field as zero.
func Inc(field string, n int64) FieldOp {
	return FieldOp{Kind: OpInc, Field: field, Value: n}
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidName reports whether s can be used as a collection or field name.
// Backends that splice names into queries must check it first.
func ValidName(s string) bool {
	return identifier.MatchString(s)
}
