package types

import (
	"bytes"
	"encoding/json"
)

// Nullable tracks whether a JSON field was present, explicitly null, or carried a value.
// PATCH payloads use it to tell "leave unchanged" from "clear".
type Nullable[T any] struct {
	Set   bool
	Value *T
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	n.Set = true
	if bytes.Equal(trimmed, []byte("null")) {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// IsNull reports an explicit JSON null.
func (n Nullable[T]) IsNull() bool {
	return n.Set && n.Value == nil
}
