// internal/apperr/apperr.go
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a closed enumeration of business-rule failure kinds. The transport
// layer maps each kind to exactly one status code; services never return a
// generic failure for a condition that has a kind.
type Kind string

const (
	// Circulation engine kinds.
	KindUserDisabled    Kind = "USER_DISABLED"
	KindHasOverdue      Kind = "HAS_OVERDUE"
	KindBookNotFound    Kind = "BOOK_NOT_FOUND"
	KindOutOfStock      Kind = "OUT_OF_STOCK"
	KindLoanNotFound    Kind = "LOAN_NOT_FOUND"
	KindForbidden       Kind = "FORBIDDEN"
	KindAlreadyReturned Kind = "ALREADY_RETURNED"
	KindStorageConflict Kind = "STORAGE_CONFLICT"

	// Catalog and membership kinds.
	KindUserNotFound       Kind = "USER_NOT_FOUND"
	KindUserExists         Kind = "USER_EXISTS"
	KindEmailExists        Kind = "EMAIL_EXISTS"
	KindInvalidISBN        Kind = "INVALID_ISBN"
	KindInvalidStock       Kind = "INVALID_STOCK"
	KindHasBorrowed        Kind = "HAS_BORROWED"
	KindInvalidCredentials Kind = "INVALID_CREDENTIALS"
	KindAccountDisabled    Kind = "ACCOUNT_DISABLED"
	KindInvalidRequest     Kind = "INVALID_REQUEST"
	KindUnauthorized       Kind = "UNAUTHORIZED"
	KindRateLimited        Kind = "RATE_LIMITED"
)

// Error is a domain error carrying its kind. It wraps an optional cause.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a domain error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a domain error of the given kind around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// KindOf extracts the kind from err, if it is (or wraps) a domain error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
