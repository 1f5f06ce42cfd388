// internal/membership/implementation.go
package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"golang.org/x/time/rate"

	"libris/internal/apperr"
)

// service implements the Service interface.
type service struct {
	db          *sqlx.DB
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// NewService creates a new membership service instance. Registration and
// authentication share one rate limiter to slow down abuse.
func NewService(db *sqlx.DB, logger *slog.Logger) Service {
	return &service{
		db:          db,
		rateLimiter: rate.NewLimiter(rate.Limit(5), 10), // 5 per second, burst 10
		logger:      logger,
	}
}

// Register creates a new reader account. Username and email collisions map
// to their own conflict kinds via the unique indexes.
func (s *service) Register(ctx context.Context, p RegisterParams) (*User, error) {
	if !s.rateLimiter.Allow() {
		return nil, apperr.New(apperr.KindRateLimited, "too many requests")
	}

	passwordHash, salt, err := hashPassword(p.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		ID:           uuid.New(),
		Username:     p.Username,
		Email:        p.Email,
		Role:         RoleReader,
		IsActive:     true,
		PasswordHash: passwordHash,
		Salt:         salt,
	}

	err = s.db.QueryRowxContext(ctx, `
		INSERT INTO users (id, username, email, role, is_active, password_hash, salt)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, user.ID, user.Username, user.Email, user.Role, user.IsActive, user.PasswordHash, user.Salt).
		Scan(&user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			switch pqErr.Constraint {
			case "users_username_key":
				return nil, apperr.New(apperr.KindUserExists, "username already exists")
			case "users_email_key":
				return nil, apperr.New(apperr.KindEmailExists, "email already registered")
			}
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Authenticate verifies credentials and returns the user. Unknown username
// and wrong password are indistinguishable to the caller; a disabled
// account is reported as such only after the password checks out.
func (s *service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	if !s.rateLimiter.Allow() {
		return nil, apperr.New(apperr.KindRateLimited, "too many requests")
	}

	user := &User{}
	err := s.db.GetContext(ctx, user, `
		SELECT id, username, email, role, is_active, password_hash, salt, created_at
		FROM users
		WHERE username = $1
	`, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.KindInvalidCredentials, "invalid username or password")
		}
		return nil, fmt.Errorf("get user by username: %w", err)
	}

	ok, err := verifyPassword(password, user.Salt, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, apperr.New(apperr.KindInvalidCredentials, "invalid username or password")
	}

	if !user.IsActive {
		return nil, apperr.New(apperr.KindAccountDisabled, "account is disabled")
	}

	return user, nil
}

// GetUser retrieves a user by ID.
func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	user := &User{}
	err := s.db.GetContext(ctx, user, `
		SELECT id, username, email, role, is_active, password_hash, salt, created_at
		FROM users
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.KindUserNotFound, "user does not exist")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// ListUsers pages through accounts with optional role and active filters.
func (s *service) ListUsers(ctx context.Context, f Filter, limit, offset int) ([]*User, int, error) {
	where := "WHERE 1=1"
	args := []any{}

	if f.Role != nil {
		args = append(args, *f.Role)
		where += fmt.Sprintf(" AND role = $%d", len(args))
	}
	if f.IsActive != nil {
		args = append(args, *f.IsActive)
		where += fmt.Sprintf(" AND is_active = $%d", len(args))
	}

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM users "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, username, email, role, is_active, password_hash, salt, created_at
		FROM users %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	var users []*User
	if err := s.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("select users: %w", err)
	}
	return users, total, nil
}

// UpdateUser toggles the active flag or changes the role.
func (s *service) UpdateUser(ctx context.Context, id uuid.UUID, p UpdateUserParams) (*User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.IsActive != nil {
		user.IsActive = *p.IsActive
	}
	if p.Role != nil {
		if !p.Role.Valid() {
			return nil, apperr.New(apperr.KindInvalidRequest, "role must be admin or reader")
		}
		user.Role = *p.Role
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE users SET is_active = $1, role = $2 WHERE id = $3
	`, user.IsActive, user.Role, id)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.logger.InfoContext(ctx, "user updated", "user_id", id, "is_active", user.IsActive, "role", user.Role)
	return user, nil
}
