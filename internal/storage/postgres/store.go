// internal/storage/postgres/store.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"libris/internal/circulation"
	"libris/internal/storage"
)

// Store runs circulation transactions against PostgreSQL. Borrow and
// Return each execute as one serializable transaction with the book row
// locked, so concurrent commands against the same book serialize and the
// stock counter can never be lost-updated below zero.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// WithinTx executes fn inside a serializable transaction, committing when
// fn returns nil. Serialization failures and deadlocks surface as
// storage.ErrSerialization so the engine's bounded retry can kick in.
func (s *Store) WithinTx(ctx context.Context, fn func(tx circulation.Tx) error) error {
	dbTx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer dbTx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(&pgTx{tx: dbTx}); err != nil {
		return translateError(err)
	}

	if err := dbTx.Commit(); err != nil {
		return translateError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// ListLoans reads the ledger outside any engine transaction; plain
// read-committed isolation is enough for listings.
func (s *Store) ListLoans(ctx context.Context, q circulation.LoanQuery) ([]*circulation.Loan, int, error) {
	where := "WHERE 1=1"
	args := []any{}

	if q.UserID != nil {
		args = append(args, *q.UserID)
		where += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if q.Status != nil {
		args = append(args, *q.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM loans "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count loans: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, book_id, borrow_date, due_date, return_date, status, created_at
		FROM loans %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	args = append(args, q.Limit, q.Offset)

	var loans []*circulation.Loan
	if err := s.db.SelectContext(ctx, &loans, query, args...); err != nil {
		return nil, 0, fmt.Errorf("select loans: %w", err)
	}
	return loans, total, nil
}

// translateError maps driver errors onto the storage sentinels. Error
// codes: 40001 serialization_failure, 40P01 deadlock_detected, 23505
// unique_violation, 23514 check_violation.
func translateError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %s", storage.ErrSerialization, pqErr.Message)
		case "23505":
			return fmt.Errorf("%w: %s", storage.ErrUniqueViolation, pqErr.Constraint)
		case "23514":
			return fmt.Errorf("%w: %s", storage.ErrCheckViolation, pqErr.Constraint)
		}
	}
	return err
}
