package apiclient

import (
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed request. All failure paths are normalized
// into one of these kinds at the HTTP boundary so callers never branch on
// loosely typed response shapes.
type ErrorKind int

const (
	// KindNetwork means the request never produced an HTTP response.
	KindNetwork ErrorKind = iota + 1

	// KindHTTP means the backend answered with a non-2xx status.
	KindHTTP

	// KindParse means the response body could not be decoded.
	KindParse
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindHTTP:
		return "http"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Error is the normalized request failure. Status is the HTTP status code for
// KindHTTP errors and 0 otherwise. Message carries the backend-provided error
// message when one could be parsed from the body.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	cause   error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindHTTP:
		if e.Message != "" {
			return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
		}
		return fmt.Sprintf("request failed with status %d", e.Status)
	case KindParse:
		return fmt.Sprintf("failed to parse response: %v", e.cause)
	default:
		return fmt.Sprintf("request failed: %v", e.cause)
	}
}

func (e *Error) Unwrap() error { return e.cause }

// Unauthorized reports whether the failure was an authorization rejection.
// Retrying such requests with the same credential cannot succeed.
func (e *Error) Unauthorized() bool {
	return e.Kind == KindHTTP && (e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden)
}

// StatusOf returns the HTTP status carried by err, or 0 when err is not a
// normalized HTTP error.
func StatusOf(err error) int {
	var apiErr *Error
	if ok := asError(err, &apiErr); ok {
		return apiErr.Status
	}
	return 0
}

// IsUnauthorized reports whether err is a 401/403 rejection.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	if ok := asError(err, &apiErr); ok {
		return apiErr.Unauthorized()
	}
	return false
}
