// internal/circulation/engine.go
package circulation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"libris/internal/apperr"
	"libris/internal/membership"
	"libris/internal/storage"
)

// maxTxAttempts bounds the internal retry loop for serialization
// conflicts before STORAGE_CONFLICT is surfaced to the caller.
const maxTxAttempts = 3

// Engine implements Service. It is the only writer of book stock counters
// and loan records; each command runs as one atomic unit against the store.
type Engine struct {
	store            Store
	borrowPeriodDays int
	logger           *slog.Logger
	metrics          *Metrics
	tracer           trace.Tracer
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithBorrowPeriod overrides the default loan period in calendar days.
func WithBorrowPeriod(days int) Option {
	return func(e *Engine) {
		if days > 0 {
			e.borrowPeriodDays = days
		}
	}
}

// WithLogger sets the structured logger for engine outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics sets the metrics collector for operation outcomes.
func WithMetrics(metrics *Metrics) Option {
	return func(e *Engine) { e.metrics = metrics }
}

// NewEngine creates a circulation engine around the given store.
func NewEngine(store Store, options ...Option) *Engine {
	e := &Engine{
		store:            store,
		borrowPeriodDays: DefaultBorrowPeriodDays,
		logger:           slog.Default(),
		tracer:           otel.Tracer("libris/circulation"),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Borrow checks eligibility and stock, then creates a loan and decrements
// the book's available stock in one transaction. Preconditions are checked
// in order, first failure wins: USER_DISABLED, HAS_OVERDUE, BOOK_NOT_FOUND,
// OUT_OF_STOCK. The overdue check is a live comparison against cmd.Today,
// not a cached flag.
func (e *Engine) Borrow(ctx context.Context, cmd BorrowCommand) (*Loan, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "circulation.borrow",
		trace.WithAttributes(
			attribute.String("book.id", cmd.BookID.String()),
			attribute.String("borrower.id", cmd.BorrowerID.String()),
		),
	)
	defer span.End()

	if !cmd.Actor.CanActFor(cmd.BorrowerID) {
		err := apperr.New(apperr.KindForbidden, "cannot borrow on behalf of another user")
		e.finish(span, "borrow", start, err)
		return nil, err
	}

	var loan *Loan
	err := e.withRetry(ctx, func(tx Tx) error {
		user, err := tx.GetUser(ctx, cmd.BorrowerID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperr.New(apperr.KindUserNotFound, "borrower does not exist")
			}
			return err
		}
		if !user.IsActive {
			return apperr.New(apperr.KindUserDisabled, "user account is disabled")
		}

		overdue, err := tx.CountOverdueBorrowed(ctx, cmd.BorrowerID, cmd.Today)
		if err != nil {
			return err
		}
		if overdue > 0 {
			return apperr.New(apperr.KindHasOverdue, "user has overdue loans")
		}

		book, err := tx.GetBookForUpdate(ctx, cmd.BookID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperr.New(apperr.KindBookNotFound, "book does not exist")
			}
			return err
		}
		if book.AvailableStock <= 0 {
			return apperr.New(apperr.KindOutOfStock, "no copies available")
		}

		loan = NewLoan(cmd.BorrowerID, cmd.BookID, cmd.Today, e.borrowPeriodDays)
		if err := tx.InsertLoan(ctx, loan); err != nil {
			return err
		}
		return tx.UpdateBookStock(ctx, cmd.BookID, book.AvailableStock-1)
	})
	if err != nil {
		e.finish(span, "borrow", start, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("loan.id", loan.ID.String()))
	e.finish(span, "borrow", start, nil)
	e.logger.InfoContext(ctx, "loan created",
		"loan_id", loan.ID, "book_id", cmd.BookID, "user_id", cmd.BorrowerID,
		"due_date", loan.DueDate.Format(time.DateOnly))
	return loan, nil
}

// Return closes a loan and restores one copy to the book's available stock
// in one transaction. Preconditions, first failure wins: LOAN_NOT_FOUND,
// FORBIDDEN, ALREADY_RETURNED. The final status is derived from the return
// date: OVERDUE when past due, RETURNED otherwise.
func (e *Engine) Return(ctx context.Context, cmd ReturnCommand) (*ReturnResult, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "circulation.return",
		trace.WithAttributes(attribute.String("loan.id", cmd.LoanID.String())),
	)
	defer span.End()

	var result *ReturnResult
	err := e.withRetry(ctx, func(tx Tx) error {
		loan, err := tx.GetLoanForUpdate(ctx, cmd.LoanID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperr.New(apperr.KindLoanNotFound, "loan does not exist")
			}
			return err
		}

		if !cmd.Actor.CanActFor(loan.UserID) {
			return apperr.New(apperr.KindForbidden, "only the borrower or an admin may return this loan")
		}

		overdueDays, err := loan.Close(cmd.Today)
		if err != nil {
			return err
		}

		book, err := tx.GetBookForUpdate(ctx, loan.BookID)
		if err != nil {
			return err
		}
		if err := tx.UpdateBookStock(ctx, loan.BookID, book.AvailableStock+1); err != nil {
			return err
		}
		if err := tx.UpdateLoanReturn(ctx, loan); err != nil {
			return err
		}

		result = &ReturnResult{Loan: loan, OverdueDays: overdueDays}
		return nil
	})
	if err != nil {
		e.finish(span, "return", start, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("loan.status", string(result.Loan.Status)),
		attribute.Int("overdue.days", result.OverdueDays),
	)
	e.finish(span, "return", start, nil)
	e.logger.InfoContext(ctx, "loan closed",
		"loan_id", result.Loan.ID, "status", result.Loan.Status, "overdue_days", result.OverdueDays)
	return result, nil
}

// ListLoans reads the ledger. Readers only see their own loans; admins may
// query any user or the whole ledger.
func (e *Engine) ListLoans(ctx context.Context, actor membership.Actor, q LoanQuery) ([]*Loan, int, error) {
	if !actor.IsAdmin() {
		q.UserID = &actor.UserID
	}
	return e.store.ListLoans(ctx, q)
}

// withRetry runs fn in a store transaction, retrying a bounded number of
// times on serialization conflicts before surfacing STORAGE_CONFLICT.
func (e *Engine) withRetry(ctx context.Context, fn func(tx Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = e.store.WithinTx(ctx, fn)
		if err == nil || !errors.Is(err, storage.ErrSerialization) {
			return err
		}
		e.logger.WarnContext(ctx, "serialization conflict, retrying",
			"attempt", attempt, "max_attempts", maxTxAttempts)
	}
	return apperr.Wrap(apperr.KindStorageConflict, "transaction retries exhausted", err)
}

func (e *Engine) finish(span trace.Span, operation string, start time.Time, err error) {
	if err != nil {
		if kind, ok := apperr.KindOf(err); ok {
			span.SetAttributes(attribute.String("outcome", string(kind)))
		} else {
			span.SetAttributes(attribute.String("outcome", "error"))
		}
	} else {
		span.SetAttributes(attribute.String("outcome", "success"))
	}
	e.metrics.observe(operation, start, err)
}
