package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrPageNotFound   = errors.New("product page not found")
	ErrElementTimeout = errors.New("element did not appear in time")
	ErrUnsafePath     = errors.New("path escapes destination root")
	ErrMissingSetting = errors.New("required setting is missing")
	ErrEmptyImageURL  = errors.New("image has no source URL")
	ErrNoProductName  = errors.New("product heading is empty")
)

// FetchError wraps errors that occur while fetching an image.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ElementError wraps a browser lookup failure with the selector that failed.
type ElementError struct {
	Selector string
	Err      error
}

func (e *ElementError) Error() string {
	return fmt.Sprintf("element %q: %v", e.Selector, e.Err)
}

func (e *ElementError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur while writing the manifest.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
