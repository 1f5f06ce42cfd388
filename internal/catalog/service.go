// internal/catalog/service.go
package catalog

import (
	"context"

	"github.com/google/uuid"
)

// AddBookParams carries the fields for a new catalog entry. Quantity is
// the number of copies; an already-known ISBN tops up the existing entry.
type AddBookParams struct {
	ISBN      string
	Title     string
	Author    string
	Publisher string
	Location  string
	Quantity  int
}

// UpdateBookParams updates an entry; nil fields are left untouched.
// TotalStock may not drop below the number of copies currently on loan.
type UpdateBookParams struct {
	Title      *string
	Author     *string
	Publisher  *string
	Location   *string
	TotalStock *int
}

// Service defines the interface for the catalog service.
type Service interface {
	AddBook(ctx context.Context, p AddBookParams) (*Book, bool, error)
	GetBook(ctx context.Context, id uuid.UUID) (*Book, error)
	ListBooks(ctx context.Context, f Filter, limit, offset int) ([]*Book, int, error)
	UpdateBook(ctx context.Context, id uuid.UUID, p UpdateBookParams) (*Book, error)
	DeleteBook(ctx context.Context, id uuid.UUID) error
}
