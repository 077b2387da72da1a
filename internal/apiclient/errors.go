package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	// ErrForbiddenMethod matches any *ForbiddenMethodError.
	ErrForbiddenMethod = errors.New("apiclient: forbidden method")

	// ErrTransport matches any *TransportError.
	ErrTransport = errors.New("apiclient: transport failure")

	// ErrMalformedResponse is wrapped by a TransportError when a response
	// announces JSON but its body does not parse.
	ErrMalformedResponse = errors.New("malformed JSON response")
)

// ForbiddenMethodError is returned before any network activity when the
// requested HTTP method is not in the client's allow-list.
type ForbiddenMethodError struct {
	Method  string
	Allowed []string
}

func (e *ForbiddenMethodError) Error() string {
	if e == nil {
		return ErrForbiddenMethod.Error()
	}
	return fmt.Sprintf("apiclient: method %q is not allowed; allowed only %s methods", e.Method, strings.Join(e.Allowed, ", "))
}

func (e *ForbiddenMethodError) Unwrap() error {
	return ErrForbiddenMethod
}

// TransportError reports a network-level fault: the request never produced a
// usable response (connection refused, timeout, unreadable or malformed body).
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	if e == nil {
		return ErrTransport.Error()
	}
	return fmt.Sprintf("apiclient: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() []error {
	if e == nil {
		return nil
	}
	return []error{ErrTransport, e.Err}
}

// Timeout reports whether the fault was a deadline or network timeout.
func (e *TransportError) Timeout() bool {
	if e == nil || e.Err == nil {
		return false
	}
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}
