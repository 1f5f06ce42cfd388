// internal/membership/service.go
package membership

import (
	"context"

	"github.com/google/uuid"
)

// RegisterParams carries a new account's fields. New accounts always start
// as active readers.
type RegisterParams struct {
	Username string
	Password string
	Email    string
}

// UpdateUserParams toggles account flags; nil fields are left untouched.
type UpdateUserParams struct {
	IsActive *bool
	Role     *Role
}

// Service defines the interface for the membership service.
type Service interface {
	Register(ctx context.Context, p RegisterParams) (*User, error)
	Authenticate(ctx context.Context, username, password string) (*User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
	ListUsers(ctx context.Context, f Filter, limit, offset int) ([]*User, int, error)
	UpdateUser(ctx context.Context, id uuid.UUID, p UpdateUserParams) (*User, error)
}
