// internal/catalog/implementation.go
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"libris/internal/apperr"
)

// service implements the Service interface.
type service struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
	logger  *slog.Logger
}

// NewService creates a new catalog service instance.
func NewService(db *sqlx.DB, logger *slog.Logger) Service {
	return &service{
		db:      db,
		dialect: goqu.Dialect("postgres"),
		logger:  logger,
	}
}

// AddBook creates a catalog entry, or tops up the stock counters when the
// ISBN already exists. The second return value reports whether a new row
// was created. The upsert keeps concurrent adds of the same ISBN atomic.
func (s *service) AddBook(ctx context.Context, p AddBookParams) (*Book, bool, error) {
	if !ValidateISBN(p.ISBN) {
		return nil, false, apperr.New(apperr.KindInvalidISBN, "invalid ISBN")
	}
	if p.Quantity < 1 {
		return nil, false, apperr.New(apperr.KindInvalidStock, "quantity must be a positive integer")
	}

	book := &Book{}
	var inserted bool
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO books (id, isbn, title, author, publisher, location, total_stock, available_stock)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (isbn) DO UPDATE
		SET total_stock = books.total_stock + EXCLUDED.total_stock,
		    available_stock = books.available_stock + EXCLUDED.available_stock
		RETURNING id, isbn, title, author, publisher, location, total_stock, available_stock, created_at,
		          (xmax = 0) AS inserted
	`, uuid.New(), p.ISBN, p.Title, p.Author, p.Publisher, p.Location, p.Quantity).Scan(
		&book.ID, &book.ISBN, &book.Title, &book.Author, &book.Publisher, &book.Location,
		&book.TotalStock, &book.AvailableStock, &book.CreatedAt, &inserted,
	)
	if err != nil {
		return nil, false, fmt.Errorf("add book: %w", err)
	}

	s.logger.InfoContext(ctx, "book added", "book_id", book.ID, "isbn", book.ISBN, "created", inserted)
	return book, inserted, nil
}

// GetBook retrieves a catalog entry by its ID.
func (s *service) GetBook(ctx context.Context, id uuid.UUID) (*Book, error) {
	book := &Book{}
	err := s.db.GetContext(ctx, book, `
		SELECT id, isbn, title, author, publisher, location, total_stock, available_stock, created_at
		FROM books
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.KindBookNotFound, "book does not exist")
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

// ListBooks searches the catalog. Keyword matches title, author and ISBN
// with a case-insensitive substring; the field filters narrow further.
func (s *service) ListBooks(ctx context.Context, f Filter, limit, offset int) ([]*Book, int, error) {
	base := s.dialect.From("books")

	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		pattern := "%" + kw + "%"
		base = base.Where(goqu.Or(
			goqu.I("title").ILike(pattern),
			goqu.I("author").ILike(pattern),
			goqu.I("isbn").ILike(pattern),
		))
	}
	if f.Title != "" {
		base = base.Where(goqu.I("title").ILike("%" + f.Title + "%"))
	}
	if f.Author != "" {
		base = base.Where(goqu.I("author").ILike("%" + f.Author + "%"))
	}
	if f.ISBN != "" {
		base = base.Where(goqu.I("isbn").ILike("%" + f.ISBN + "%"))
	}

	countSQL, countArgs, err := base.Select(goqu.COUNT("*")).Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := s.db.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count books: %w", err)
	}

	listSQL, listArgs, err := base.
		Select("id", "isbn", "title", "author", "publisher", "location",
			"total_stock", "available_stock", "created_at").
		Order(goqu.I("created_at").Desc()).
		Limit(uint(limit)).
		Offset(uint(offset)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}

	var books []*Book
	if err := s.db.SelectContext(ctx, &books, listSQL, listArgs...); err != nil {
		return nil, 0, fmt.Errorf("select books: %w", err)
	}
	return books, total, nil
}

// UpdateBook changes entry fields. Lowering total stock below the number
// of copies currently on loan is rejected; available stock is recomputed
// so that total - available stays equal to the borrowed count.
func (s *service) UpdateBook(ctx context.Context, id uuid.UUID, p UpdateBookParams) (*Book, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	book := &Book{}
	err = tx.GetContext(ctx, book, `
		SELECT id, isbn, title, author, publisher, location, total_stock, available_stock, created_at
		FROM books
		WHERE id = $1
		FOR UPDATE
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.KindBookNotFound, "book does not exist")
		}
		return nil, fmt.Errorf("get book: %w", err)
	}

	if p.Title != nil {
		book.Title = *p.Title
	}
	if p.Author != nil {
		book.Author = *p.Author
	}
	if p.Publisher != nil {
		book.Publisher = *p.Publisher
	}
	if p.Location != nil {
		book.Location = *p.Location
	}
	if p.TotalStock != nil {
		borrowed := book.BorrowedCount()
		if *p.TotalStock < borrowed {
			return nil, apperr.New(apperr.KindInvalidStock,
				fmt.Sprintf("total stock cannot drop below %d borrowed copies", borrowed))
		}
		book.TotalStock = *p.TotalStock
		book.AvailableStock = *p.TotalStock - borrowed
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE books
		SET title = $1, author = $2, publisher = $3, location = $4, total_stock = $5, available_stock = $6
		WHERE id = $7
	`, book.Title, book.Author, book.Publisher, book.Location, book.TotalStock, book.AvailableStock, id)
	if err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return book, nil
}

// DeleteBook removes an entry. A book with copies still on loan cannot be
// deleted; the guard is re-checked under a row lock.
func (s *service) DeleteBook(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var total, available int
	err = tx.QueryRowxContext(ctx, `
		SELECT total_stock, available_stock FROM books WHERE id = $1 FOR UPDATE
	`, id).Scan(&total, &available)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.New(apperr.KindBookNotFound, "book does not exist")
		}
		return fmt.Errorf("get book: %w", err)
	}

	if total != available {
		return apperr.New(apperr.KindHasBorrowed, "book has copies out on loan")
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "book deleted", "book_id", id)
	return nil
}
