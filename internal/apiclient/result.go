package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyPayload is returned when decoding a response that carried no JSON body.
var ErrEmptyPayload = errors.New("apiclient: empty payload")

// Result is the outcome of a dispatched request. Exactly one of Success or
// Failure is set.
type Result struct {
	Success *Success
	Failure *Failure
}

// Success carries the JSON payload of a response whose status is not in the
// client's bad-status set. Payload is nil when the response was not JSON.
type Success struct {
	Payload    json.RawMessage
	StatusCode int
}

// Failure carries the error payload of a response whose status is in the
// client's bad-status set. Raw is the untouched body; Detail is the result of
// the client's ErrorSchema (Raw itself for the identity schema).
type Failure struct {
	Raw        json.RawMessage
	Detail     any
	StatusCode int
}

// OK reports whether the result is a Success.
func (r *Result) OK() bool {
	return r != nil && r.Success != nil
}

// StatusCode returns the HTTP status of whichever variant is set.
func (r *Result) StatusCode() int {
	switch {
	case r == nil:
		return 0
	case r.Success != nil:
		return r.Success.StatusCode
	case r.Failure != nil:
		return r.Failure.StatusCode
	default:
		return 0
	}
}

// Decode unmarshals the success payload into v.
func (s *Success) Decode(v any) error {
	if s == nil || len(s.Payload) == 0 {
		return ErrEmptyPayload
	}
	if err := json.Unmarshal(s.Payload, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

// Message renders the failure detail for logs and CLI output.
func (f *Failure) Message() string {
	if f == nil {
		return ""
	}
	switch detail := f.Detail.(type) {
	case nil:
		return fmt.Sprintf("error status code (%d)", f.StatusCode)
	case json.RawMessage:
		if len(detail) == 0 {
			return fmt.Sprintf("error status code (%d)", f.StatusCode)
		}
		return strings.TrimSpace(string(detail))
	case error:
		return detail.Error()
	case fmt.Stringer:
		return detail.String()
	default:
		return fmt.Sprintf("%v", detail)
	}
}
