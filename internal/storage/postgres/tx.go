// internal/storage/postgres/tx.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"libris/internal/catalog"
	"libris/internal/circulation"
	"libris/internal/membership"
	"libris/internal/storage"
)

// pgTx implements circulation.Tx on one open database transaction.
type pgTx struct {
	tx *sqlx.Tx
}

// GetBookForUpdate reads the book row with a row-level lock, serializing
// concurrent stock mutations against the same book.
func (t *pgTx) GetBookForUpdate(ctx context.Context, bookID uuid.UUID) (*catalog.Book, error) {
	book := &catalog.Book{}
	err := t.tx.GetContext(ctx, book, `
		SELECT id, isbn, title, author, publisher, location, total_stock, available_stock, created_at
		FROM books
		WHERE id = $1
		FOR UPDATE
	`, bookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get book for update: %w", err)
	}
	return book, nil
}

func (t *pgTx) UpdateBookStock(ctx context.Context, bookID uuid.UUID, availableStock int) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE books SET available_stock = $1 WHERE id = $2
	`, availableStock, bookID)
	if err != nil {
		return fmt.Errorf("update book stock: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update book stock rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (t *pgTx) GetUser(ctx context.Context, userID uuid.UUID) (*membership.User, error) {
	user := &membership.User{}
	err := t.tx.GetContext(ctx, user, `
		SELECT id, username, email, role, is_active, password_hash, salt, created_at
		FROM users
		WHERE id = $1
	`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// CountOverdueBorrowed counts open loans already past due as of the given
// date. This is the live eligibility check: a loan counts as overdue purely
// by date comparison, no background sweep maintains a flag.
func (t *pgTx) CountOverdueBorrowed(ctx context.Context, userID uuid.UUID, asOf time.Time) (int, error) {
	var count int
	err := t.tx.GetContext(ctx, &count, `
		SELECT COUNT(*)
		FROM loans
		WHERE user_id = $1 AND status = $2 AND due_date < $3
	`, userID, circulation.StatusBorrowed, circulation.DateOnly(asOf))
	if err != nil {
		return 0, fmt.Errorf("count overdue loans: %w", err)
	}
	return count, nil
}

func (t *pgTx) InsertLoan(ctx context.Context, loan *circulation.Loan) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO loans (id, user_id, book_id, borrow_date, due_date, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, loan.ID, loan.UserID, loan.BookID, loan.BorrowDate, loan.DueDate, loan.Status)
	if err != nil {
		return fmt.Errorf("insert loan: %w", err)
	}
	return nil
}

func (t *pgTx) GetLoanForUpdate(ctx context.Context, loanID uuid.UUID) (*circulation.Loan, error) {
	loan := &circulation.Loan{}
	err := t.tx.GetContext(ctx, loan, `
		SELECT id, user_id, book_id, borrow_date, due_date, return_date, status, created_at
		FROM loans
		WHERE id = $1
		FOR UPDATE
	`, loanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get loan for update: %w", err)
	}
	return loan, nil
}

func (t *pgTx) UpdateLoanReturn(ctx context.Context, loan *circulation.Loan) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE loans SET return_date = $1, status = $2 WHERE id = $3
	`, loan.ReturnDate, loan.Status, loan.ID)
	if err != nil {
		return fmt.Errorf("update loan return: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update loan return rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
