// internal/organize/planner/errors.go
package planner

import (
	"errors"
	"fmt"
)

// ErrMissingAPIKey means the user has not configured a completion-endpoint
// credential. The message is shown verbatim to the user.
var ErrMissingAPIKey = errors.New("no API key configured; add your completion API key in Settings")

// ErrEmptyCompletion means the endpoint answered but the completion content
// was empty.
var ErrEmptyCompletion = errors.New("no response from model")

// StatusError is a non-success response from the completion endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion endpoint error: %d - %s", e.StatusCode, e.Body)
}

// ParseError means the completion content did not deserialize into a plan.
// The model payload is untrusted input; a shape mismatch is rejected, never
// patched over.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("model returned an unparseable plan: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
