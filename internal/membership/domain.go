// internal/membership/domain.go
package membership

import (
	"time"

	"github.com/google/uuid"
)

// Role is a user's capability level.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleReader Role = "reader"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleReader
}

// User represents a registered account. Only IsActive and Role matter to the
// circulation engine; the rest is identity and audit data.
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	Role         Role      `json:"role" db:"role"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Salt         string    `json:"-" db:"salt"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Actor identifies who is performing a command. The capability check happens
// once at the engine boundary instead of per call site.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

// IsAdmin reports whether the actor holds the elevated role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanActFor reports whether the actor may submit commands on behalf of the
// given user: themselves always, anyone else only with the elevated role.
func (a Actor) CanActFor(userID uuid.UUID) bool {
	return a.UserID == userID || a.IsAdmin()
}

// Filter narrows a user listing. Nil fields are ignored.
type Filter struct {
	Role     *Role
	IsActive *bool
}
