package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSeedURL is returned when the seed is not an absolute http(s) URL.
	ErrInvalidSeedURL = errors.New("invalid seed URL: must be an absolute http or https URL")

	// ErrNegativeDepth is returned when the maximum depth is below zero.
	ErrNegativeDepth = errors.New("invalid max depth: must be non-negative")

	// ErrSeedUnreachable is returned when the seed page itself cannot be fetched.
	// The returned error also wraps the underlying *FetchError.
	ErrSeedUnreachable = errors.New("seed page could not be fetched")

	// ErrUnexpectedStatus is wrapped by a FetchError for non-2xx responses.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
)

// FetchError describes a failed page fetch: a transport failure, a
// cancelled request, or a non-2xx response.
type FetchError struct {
	// URL is the page that could not be fetched.
	URL string

	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// newStatusError builds the FetchError for a non-2xx response.
func newStatusError(pageURL string, status int) *FetchError {
	return &FetchError{
		URL:        pageURL,
		StatusCode: status,
		Err:        fmt.Errorf("%w: %d", ErrUnexpectedStatus, status),
	}
}
