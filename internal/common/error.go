// Package common defines shared constants and sentinel errors used across
// the server, the client and the storage layer. Callers should use errors.Is
// to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid request")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// ErrSequenceUnavailable is returned when the database could not hand out
	// the next value of a named counter.
	ErrSequenceUnavailable = errors.New("sequence unavailable")

	// ErrLocked is returned when another edit holds the owner's lock marker.
	ErrLocked = errors.New("locked by another edit")

	// ErrStaleBackup is returned when a backup area left by an aborted edit
	// still exists and has to be restored by an operator first.
	ErrStaleBackup = errors.New("stale backup area")
)
