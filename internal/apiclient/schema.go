package apiclient

import (
	"encoding/json"
	"fmt"
)

// ErrorSchema turns the raw body of a failed response into the value handed
// back in Failure.Detail.
type ErrorSchema interface {
	Transform(raw json.RawMessage) (any, error)
}

// ErrorSchemaFunc adapts a plain function to ErrorSchema.
type ErrorSchemaFunc func(raw json.RawMessage) (any, error)

// Transform calls f(raw).
func (f ErrorSchemaFunc) Transform(raw json.RawMessage) (any, error) {
	return f(raw)
}

// IdentitySchema passes the raw payload through unchanged.
type IdentitySchema struct{}

// Transform returns raw.
func (IdentitySchema) Transform(raw json.RawMessage) (any, error) {
	return raw, nil
}

// JSONSchema decodes error payloads into T.
type JSONSchema[T any] struct{}

// Transform unmarshals raw into a new T.
func (JSONSchema[T]) Transform(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, ErrEmptyPayload
	}
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("decode error payload: %w", err)
	}
	return value, nil
}
