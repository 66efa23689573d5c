// Package apperr defines sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrStoreUnavailable marks task store failures that abort a whole
	// sync pass without touching persisted state.
	ErrStoreUnavailable = errors.New("task store unavailable")
)
