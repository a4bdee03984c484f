package models

import (
	"bytes"
	"encoding/json"

	"github.com/google/uuid"
)

// OptionalUUID is a tri-state JSON field: absent, explicit null, or a value.
type OptionalUUID struct {
	Set   bool
	Value *uuid.UUID
}

// SomeUUID returns an OptionalUUID that is present with the given id.
func SomeUUID(id uuid.UUID) OptionalUUID {
	return OptionalUUID{Set: true, Value: &id}
}

// NullUUID returns an OptionalUUID that is present and explicitly null.
func NullUUID() OptionalUUID {
	return OptionalUUID{Set: true}
}

func (o *OptionalUUID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var id uuid.UUID
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	o.Value = &id
	return nil
}

func (o OptionalUUID) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}
