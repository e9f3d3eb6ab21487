package errors

import (
	"errors"
	"fmt"
)

// Common error types for the Shulebook client
var (
	// Identity errors
	ErrNoIdentity         = errors.New("no authenticated identity")
	ErrMissingAccessToken = errors.New("missing access token")
	ErrInvalidAccessToken = errors.New("invalid access token")

	// Sync errors
	ErrSyncInFlight = errors.New("sync already in flight")

	// Fetch errors
	ErrSubscriptionClosed = errors.New("subscription closed")
	ErrFetchDisabled      = errors.New("fetch disabled")

	// Tenant errors
	ErrTenantUnresolved = errors.New("tenant could not be resolved")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
