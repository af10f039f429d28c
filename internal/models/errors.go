package models

import "errors"

var (
	// ErrUnauthorized is fatal at the connection boundary.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound makes the requested mutation a silent no-op.
	ErrNotFound = errors.New("not found")
	// ErrPersistence aborts the current operation.
	ErrPersistence = errors.New("persistence failure")
	// ErrFetch is always downgraded to "no preview".
	ErrFetch = errors.New("metadata fetch failed")

	ErrEmptyMessage       = errors.New("message must have text or media")
	ErrUserExists         = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)
