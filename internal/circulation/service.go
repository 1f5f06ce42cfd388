// internal/circulation/service.go
package circulation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"libris/internal/catalog"
	"libris/internal/membership"
)

// BorrowCommand asks the engine to lend one copy of a book to a borrower.
// Today is injected by the caller so the engine stays deterministic.
type BorrowCommand struct {
	BookID     uuid.UUID
	BorrowerID uuid.UUID
	Actor      membership.Actor
	Today      time.Time
}

// ReturnCommand asks the engine to close a loan.
type ReturnCommand struct {
	LoanID uuid.UUID
	Actor  membership.Actor
	Today  time.Time
}

// ReturnResult is the outcome of a successful return. OverdueDays is zero
// for on-time returns.
type ReturnResult struct {
	Loan        *Loan
	OverdueDays int
}

// LoanQuery narrows a ledger listing. Nil fields are ignored.
type LoanQuery struct {
	UserID *uuid.UUID
	Status *LoanStatus
	Limit  int
	Offset int
}

// Service defines the circulation engine boundary.
type Service interface {
	Borrow(ctx context.Context, cmd BorrowCommand) (*Loan, error)
	Return(ctx context.Context, cmd ReturnCommand) (*ReturnResult, error)
	ListLoans(ctx context.Context, actor membership.Actor, q LoanQuery) ([]*Loan, int, error)
}

// Tx is the persistence contract the engine requires inside one atomic
// unit: book and loan reads/writes that commit or roll back together.
// Implementations must return storage.ErrNotFound for missing rows.
type Tx interface {
	GetBookForUpdate(ctx context.Context, bookID uuid.UUID) (*catalog.Book, error)
	UpdateBookStock(ctx context.Context, bookID uuid.UUID, availableStock int) error
	GetUser(ctx context.Context, userID uuid.UUID) (*membership.User, error)
	CountOverdueBorrowed(ctx context.Context, userID uuid.UUID, asOf time.Time) (int, error)
	InsertLoan(ctx context.Context, loan *Loan) error
	GetLoanForUpdate(ctx context.Context, loanID uuid.UUID) (*Loan, error)
	UpdateLoanReturn(ctx context.Context, loan *Loan) error
}

// Store runs engine transactions. WithinTx must execute fn against a
// serializable (or equivalently isolated) transaction, commit when fn
// returns nil and roll back otherwise, surfacing isolation conflicts as
// storage.ErrSerialization so the engine can retry.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	ListLoans(ctx context.Context, q LoanQuery) ([]*Loan, int, error)
}
