package api

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNetwork is matched by every remote failure. Connectivity problems,
// server errors, auth failures and malformed responses are not told apart.
var ErrNetwork = errors.New("network error")

// NetworkError reports a failed remote operation.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrNetwork) true for any NetworkError.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// APIError represents a non-2xx HTTP response from the GraphQL endpoint.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %s (status: %d)", e.Message, e.StatusCode)
}

// GraphQLError is one entry of a response's "errors" array. ErrorType is
// sent top-level by AppSync and under extensions by the dev server.
type GraphQLError struct {
	Message    string         `json:"message"`
	ErrorType  string         `json:"errorType,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e GraphQLError) Error() string {
	if e.ErrorType != "" {
		return e.ErrorType + ": " + e.Message
	}
	return e.Message
}

// GraphQLErrors is returned when the server answered with errors.
type GraphQLErrors []GraphQLError

func (e GraphQLErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ge := range e {
		msgs[i] = ge.Error()
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return err
	}
	return &NetworkError{Op: op, Err: err}
}
