package validation

import (
	"encoding/json"
	"reflect"
)

// Optional is a PATCH field that tells apart "absent", "null" and a value.
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Null returns an Optional explicitly set to null.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Null = true
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Null {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// Clears reports whether the field was sent as null.
func (o Optional[T]) Clears() bool {
	return o.Set && o.Null
}

// HasValue reports whether the field was sent with a value.
func (o Optional[T]) HasValue() bool {
	return o.Set && !o.Null
}

// optionalValue exposes the held value to validator tags; absent and null validate as empty.
func optionalValue(field reflect.Value) interface{} {
	if o, ok := field.Interface().(Optional[string]); ok && o.HasValue() {
		return o.Value
	}
	return nil
}
