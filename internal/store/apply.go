package store

import (
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/bson"
)

// Apply runs ops against a decoded document in place, with the same
// semantics MongoDB gives $set, $addToSet, $pull and $inc. Backends
// without native update operators decode the stored document, call Apply
// and write the result back inside one transaction.
func Apply(doc bson.M, ops ...FieldOp) error {
	for _, op := range ops {
		if !ValidName(op.Field) {
			return fmt.Errorf("store: invalid field name %q", op.Field)
		}

		switch op.Kind {
		case OpSet:
			doc[op.Field] = op.Value

		case OpAddToSet:
			arr, err := asArray(doc[op.Field])
			if err != nil {
				return fmt.Errorf("store: addToSet %s: %w", op.Field, err)
			}
			if !containsValue(arr, op.Value) {
				arr = append(arr, op.Value)
			}
			doc[op.Field] = arr

		case OpPull:
			arr, err := asArray(doc[op.Field])
			if err != nil {
				return fmt.Errorf("store: pull %s: %w", op.Field, err)
			}
			kept := make(bson.A, 0, len(arr))
			for _, v := range arr {
				if !reflect.DeepEqual(v, op.Value) {
					kept = append(kept, v)
				}
			}
			doc[op.Field] = kept

		case OpInc:
			n, err := increment(doc[op.Field], op.Value)
			if err != nil {
				return fmt.Errorf("store: inc %s: %w", op.Field, err)
			}
			doc[op.Field] = n

		default:
			return fmt.Errorf("store: unsupported op %s", op.Kind)
		}
	}
	return nil
}

// asArray normalises the shapes an array field can take after decoding.
// A missing field is an empty array.
func asArray(v any) (bson.A, error) {
	switch t := v.(type) {
	case nil:
		return bson.A{}, nil
	case bson.A:
		return t, nil
	case []any:
		return bson.A(t), nil
	case []string:
		arr := make(bson.A, len(t))
		for i, s := range t {
			arr[i] = s
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("field is %T, not an array", v)
	}
}

func containsValue(arr bson.A, v any) bool {
	for _, e := range arr {
		if reflect.DeepEqual(e, v) {
			return true
		}
	}
	return false
}

func increment(current, delta any) (any, error) {
	d, ok := toInt64(delta)
	if !ok {
		return nil, fmt.Errorf("increment must be an integer, got %T", delta)
	}

	switch c := current.(type) {
	case nil:
		return d, nil
	case int32:
		return int64(c) + d, nil
	case int64:
		return c + d, nil
	case int:
		return int64(c) + d, nil
	case float64:
		return c + float64(d), nil
	default:
		return nil, fmt.Errorf("field is %T, not a number", current)
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}
