// internal/storage/storage.go
package storage

import "errors"

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrSerialization is returned when a transaction fails due to
	// isolation conflicts (serialization failure or deadlock) and may be
	// retried by the caller.
	ErrSerialization = errors.New("storage: serialization conflict")

	// ErrUniqueViolation is returned when a write breaks a unique index.
	ErrUniqueViolation = errors.New("storage: unique violation")

	// ErrCheckViolation is returned when a write breaks a CHECK
	// constraint, e.g. a stock counter leaving its valid range.
	ErrCheckViolation = errors.New("storage: check constraint violation")
)
