// Package nullable distinguishes an absent JSON field from an explicit null
// in partial-update payloads.
package nullable

import (
	"bytes"
	"encoding/json"
)

// Value is a tri-state field: unset, set to null, or set to V.
type Value[T any] struct {
	Set  bool
	Null bool
	V    T
}

// Of returns a Value set to v.
func Of[T any](v T) Value[T] {
	return Value[T]{Set: true, V: v}
}

// Null returns a Value explicitly set to null.
func Null[T any]() Value[T] {
	return Value[T]{Set: true, Null: true}
}

// Ptr returns nil for unset or null values and a pointer to V otherwise.
func (v Value[T]) Ptr() *T {
	if !v.Set || v.Null {
		return nil
	}
	out := v.V
	return &out
}

// Apply overwrites dst according to the field state. Unset leaves dst
// untouched, null clears it.
func (v Value[T]) Apply(dst **T) {
	if !v.Set {
		return
	}
	*dst = v.Ptr()
}

// UnmarshalJSON implements json.Unmarshaler. It is only invoked when the key
// is present, which is what marks the value as set.
func (v *Value[T]) UnmarshalJSON(data []byte) error {
	v.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		v.Null = true
		var zero T
		v.V = zero
		return nil
	}
	v.Null = false
	return json.Unmarshal(data, &v.V)
}
