package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
)

// DefaultKey is the slot the listing snapshot lives under.
const DefaultKey = "student_marketplace_v1"

var ErrNotFound = errors.New("record not found")

// marshalEntity marshals an entity to JSON
func marshalEntity(entity interface{}) ([]byte, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity: %w", err)
	}
	return data, nil
}

// unmarshalEntity unmarshals JSON data into an entity
func unmarshalEntity(data []byte, entity interface{}) error {
	if err := json.Unmarshal(data, entity); err != nil {
		return fmt.Errorf("failed to unmarshal entity: %w", err)
	}
	return nil
}
