// Package internalerr holds the sentinel errors shared by the abl packages.
// Callers match them with errors.Is; every site wraps them with context.
package internalerr

import "errors"

var (
	// ErrNotFound: a query hit a knowledge base with nothing materialized.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput: a sample, sequence or file is malformed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreUnavailable: the backing database could not be opened.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInvalidConfig: options or configuration failed validation.
	ErrInvalidConfig = errors.New("invalid configuration")
)
