package driver

import (
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
)

// TypeConversionError represents an error during type conversion from database types.
type TypeConversionError struct {
	Expected string
	Actual   string
	Field    string
}

func (e *TypeConversionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("type conversion error for field %q: expected %s, got %s", e.Field, e.Expected, e.Actual)
	}
	return fmt.Sprintf("type conversion error: expected %s, got %s", e.Expected, e.Actual)
}

// NewTypeConversionError creates a new TypeConversionError.
func NewTypeConversionError(expected, actual, field string) *TypeConversionError {
	return &TypeConversionError{
		Expected: expected,
		Actual:   actual,
		Field:    field,
	}
}

// AsInt64 safely converts a database value to int64.
func AsInt64(v any) (int64, bool) {
	if v == nil {
		return 0, false
	}
	i, ok := v.(int64)
	return i, ok
}

// AsStringList converts a database list to []string. The driver returns
// lists as []any, so every element is checked individually.
func AsStringList(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return list, true
	case []any:
		out := make([]string, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// MustInt64 reads field from record as int64 or returns an error.
func MustInt64(record *db.Record, field string) (int64, error) {
	v, found := record.Get(field)
	if !found {
		return 0, fmt.Errorf("missing field %q", field)
	}
	i, ok := AsInt64(v)
	if !ok {
		return 0, NewTypeConversionError("int64", fmt.Sprintf("%T", v), field)
	}
	return i, nil
}

// MustStringList reads field from record as []string or returns an error.
func MustStringList(record *db.Record, field string) ([]string, error) {
	v, found := record.Get(field)
	if !found {
		return nil, fmt.Errorf("missing field %q", field)
	}
	s, ok := AsStringList(v)
	if !ok {
		return nil, NewTypeConversionError("[]string", fmt.Sprintf("%T", v), field)
	}
	return s, nil
}
