package utils

import (
	"bytes"
	"encoding/json"
)

// Optional marks whether a patch field was supplied at all, so an explicit
// empty value is distinguishable from an absent one. JSON null counts as absent.
type Optional[T any] struct {
	Set   bool
	Value T
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Get returns the value when set, otherwise fallback.
func (o Optional[T]) Get(fallback T) T {
	if o.Set {
		return o.Value
	}
	return fallback
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Optional[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Optional[T]{Set: true, Value: v}
	return nil
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}
