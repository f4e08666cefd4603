package client

import (
	"errors"
	"fmt"
)

// Sentinel errors for common API failure classes
var (
	// ErrUnauthorized is returned on a 401 from the server
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned on a 404 from the server
	ErrNotFound = errors.New("not found")

	// ErrRateLimited is returned on a 429 from the server
	ErrRateLimited = errors.New("rate limited")

	// ErrPayloadTooLarge is returned on a 413 from the server
	ErrPayloadTooLarge = errors.New("payload too large")
)

// APIError carries the HTTP status and server-provided error message for
// responses that don't map to a sentinel.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// wrapStatusError converts an HTTP status into a typed error so callers can
// use errors.Is for the common classes.
func wrapStatusError(operation string, statusCode int, body string) error {
	switch statusCode {
	case 401:
		return fmt.Errorf("%s: %w: %s", operation, ErrUnauthorized, body)
	case 404:
		return fmt.Errorf("%s: %w: %s", operation, ErrNotFound, body)
	case 413:
		return fmt.Errorf("%s: %w: %s", operation, ErrPayloadTooLarge, body)
	case 429:
		return fmt.Errorf("%s: %w: %s", operation, ErrRateLimited, body)
	}
	return fmt.Errorf("%s: %w", operation, &APIError{StatusCode: statusCode, Message: body})
}

// IsAPIError checks if err carries an APIError.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
