// internal/circulation/domain.go
package circulation

import (
	"time"

	"github.com/google/uuid"

	"libris/internal/apperr"
)

// LoanStatus is the closed set of lifecycle states for a loan.
type LoanStatus string

const (
	StatusBorrowed LoanStatus = "borrowed"
	StatusReturned LoanStatus = "returned"
	StatusOverdue  LoanStatus = "overdue"
)

// Loan is one borrow-to-return record for a single copy of a book.
//
// A loan is created only by a successful borrow and mutated exactly once by
// a successful return; all transitions go through NewLoan and Close so that
// status and return date can never disagree (BORROWED means no return date,
// OVERDUE means returned after the due date).
type Loan struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	UserID     uuid.UUID  `json:"user_id" db:"user_id"`
	BookID     uuid.UUID  `json:"book_id" db:"book_id"`
	BorrowDate time.Time  `json:"borrow_date" db:"borrow_date"`
	DueDate    time.Time  `json:"due_date" db:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty" db:"return_date"`
	Status     LoanStatus `json:"status" db:"status"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// NewLoan creates an open loan with the due date derived from the borrow
// date and period. The due date is immutable thereafter.
func NewLoan(userID, bookID uuid.UUID, borrowDate time.Time, periodDays int) *Loan {
	day := DateOnly(borrowDate)
	return &Loan{
		ID:         uuid.New(),
		UserID:     userID,
		BookID:     bookID,
		BorrowDate: day,
		DueDate:    CalculateDueDate(day, periodDays),
		Status:     StatusBorrowed,
	}
}

// Open reports whether the loan has not been returned yet.
func (l *Loan) Open() bool {
	return l.Status == StatusBorrowed
}

// Close records the return on returnDate and derives the final status:
// OVERDUE when the return happens after the due date, RETURNED otherwise.
// It returns the number of overdue calendar days (zero when on time) and
// fails with ALREADY_RETURNED if the loan is already closed.
func (l *Loan) Close(returnDate time.Time) (int, error) {
	if !l.Open() {
		return 0, apperr.New(apperr.KindAlreadyReturned, "loan is already closed")
	}

	day := DateOnly(returnDate)
	l.ReturnDate = &day

	overdueDays := OverdueDays(l, day)
	if overdueDays > 0 {
		l.Status = StatusOverdue
	} else {
		l.Status = StatusReturned
	}
	return overdueDays, nil
}

// Snapshot is the outward view of a loan with its live derived fields.
type Snapshot struct {
	Loan
	IsOverdue     bool `json:"is_overdue"`
	RemainingDays *int `json:"remaining_days,omitempty"`
	OverdueDays   *int `json:"overdue_days,omitempty"`
}

// NewSnapshot derives the view of l as of the given date. RemainingDays is
// only meaningful (and only populated) while the loan is open; OverdueDays
// is only reported once a late return has been recorded.
func NewSnapshot(l *Loan, asOf time.Time) Snapshot {
	s := Snapshot{Loan: *l, IsOverdue: IsOverdue(l, asOf)}

	if l.Open() {
		remaining := RemainingDays(l, asOf)
		s.RemainingDays = &remaining
	} else if l.Status == StatusOverdue && l.ReturnDate != nil {
		overdue := OverdueDays(l, *l.ReturnDate)
		s.OverdueDays = &overdue
	}
	return s
}
