package errors

import "fmt"

// OAuth2Error represents a standardized OAuth 2.0 error.
type OAuth2Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	State       string `json:"state,omitempty"`

	cause error
}

func (e *OAuth2Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Unwrap exposes the underlying cause, set only for server_error.
func (e *OAuth2Error) Unwrap() error {
	return e.cause
}

// Standard OAuth2 error codes
const (
	InvalidRequest = "invalid_request"
	InvalidClient  = "invalid_client"
	InvalidGrant   = "invalid_grant"
	InvalidScope   = "invalid_scope"
	ServerError    = "server_error"
)

// Common error constructors
func NewInvalidRequest(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidRequest,
		Description: description,
	}
}

func NewInvalidClient(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidClient,
		Description: description,
	}
}

func NewInvalidScope(description string) *OAuth2Error {
	return &OAuth2Error{
		Code:        InvalidScope,
		Description: description,
	}
}

// NewServerError wraps a storage or backend failure. Errors with this code are
// the only kind a caller may retry; all others are permanent for the request.
func NewServerError(description string, cause error) *OAuth2Error {
	return &OAuth2Error{
		Code:        ServerError,
		Description: description,
		cause:       cause,
	}
}

// IsRetryable reports whether err is a server_error, i.e. a storage-layer
// failure the caller may retry with backoff.
func IsRetryable(err error) bool {
	oe, ok := err.(*OAuth2Error)
	return ok && oe.Code == ServerError
}
