package domain

import "errors"

var (
	// ErrFetch marks a catalog source that could not be reached or returned a
	// payload that is not a catalog.
	ErrFetch = errors.New("catalog fetch failed")
	// ErrAuth marks a failed access-token acquisition.
	ErrAuth = errors.New("metadata authentication failed")
	// ErrNotFound is returned when the metadata service has no match. It is an
	// expected outcome, not a failure.
	ErrNotFound = errors.New("metadata not found")
	// ErrLookup marks a metadata transport or decoding failure.
	ErrLookup = errors.New("metadata lookup failed")
	// ErrConfig marks missing or invalid required configuration.
	ErrConfig = errors.New("invalid configuration")
)
