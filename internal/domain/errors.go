package domain

import "errors"

var (
	// ErrMissingCoordinates means neither street nor district resolved to a
	// geometry; the candidate must not be persisted.
	ErrMissingCoordinates = errors.New("missing coordinates")

	// ErrInvalidExpiration means an expiration date string failed to parse.
	ErrInvalidExpiration = errors.New("invalid expiration date format")

	// ErrSampleCountMismatch means batch polygon sampling produced a
	// different point count than requested. This is a data or logic bug;
	// the affected batch is aborted rather than misassigned.
	ErrSampleCountMismatch = errors.New("polygon sample count mismatch")

	// ErrPostingNotFound is returned by the store for unknown posting ids.
	ErrPostingNotFound = errors.New("posting not found")
)
