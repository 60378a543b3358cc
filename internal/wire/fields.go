package wire

import "fmt"

// Int64 reads a required integer field. JSON numbers decode as float64,
// so this accepts both float64 (post wire round-trip) and the native Go
// int/int64 the actor code builds bodies with directly in tests.
func (b Body) Int64(field string) (int64, error) {
	v, ok := b[field]
	if !ok {
		return 0, fmt.Errorf("wire: body missing field %q", field)
	}
	return toInt64(v)
}

// OptionalInt64 reads a nullable integer field. Returns (0, false) if the
// field is absent or explicitly null. A nil *int64 counts as null too, so
// a body built by wire.Promise behaves the same whether or not it has
// been round-tripped through the codec.
func (b Body) OptionalInt64(field string) (int64, bool, error) {
	v, ok := b[field]
	if !ok || v == nil {
		return 0, false, nil
	}
	if p, isPtr := v.(*int64); isPtr {
		if p == nil {
			return 0, false, nil
		}
		return *p, true, nil
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// String reads a required string field.
func (b Body) String(field string) (string, error) {
	v, ok := b[field]
	if !ok {
		return "", fmt.Errorf("wire: body missing field %q", field)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("wire: field %q is not a string (%T)", field, v)
	}
	return s, nil
}

// Value reads a (possibly absent) opaque value field.
func (b Body) Value(field string) interface{} {
	return b[field]
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case *int64:
		if n == nil {
			return 0, fmt.Errorf("wire: value is null, not numeric")
		}
		return *n, nil
	default:
		return 0, fmt.Errorf("wire: value %v (%T) is not numeric", v, v)
	}
}
