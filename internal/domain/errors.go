package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidState     = errors.New("invalid workflow state")
	ErrNotAuthenticated = errors.New("not authenticated")
)

// AuthError is a missing, invalid or expired credential. It forces a logout.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return "authentication required"
	}
	return "authentication failed: " + e.Message
}

// NetworkError wraps transport failures: refused connections, timeouts, cancelled requests.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// SchemaError means a response could not be decoded or lacked a required field.
type SchemaError struct {
	Resource string
	Field    string
	Err      error
}

func (e *SchemaError) Error() string {
	switch {
	case e.Field != "":
		return fmt.Sprintf("invalid %s response: missing %s", e.Resource, e.Field)
	case e.Err != nil:
		return fmt.Sprintf("invalid %s response: %v", e.Resource, e.Err)
	default:
		return fmt.Sprintf("invalid %s response", e.Resource)
	}
}

func (e *SchemaError) Unwrap() error { return e.Err }

// ValidationError is a client-side form constraint violation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// APIError is any other non-2xx response, carrying the server message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d message=%s", e.StatusCode, e.Message)
}

func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsSchema(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}
