// internal/circulation/dates.go
package circulation

import "time"

// DefaultBorrowPeriodDays is the loan period applied when no explicit
// period is configured.
const DefaultBorrowPeriodDays = 30

// DateOnly truncates t to its calendar date in UTC. All circulation date
// arithmetic happens on day granularity.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween is the number of calendar days from a to b (negative when b
// precedes a).
func daysBetween(a, b time.Time) int {
	return int(DateOnly(b).Sub(DateOnly(a)).Hours() / 24)
}

// CalculateDueDate derives the due date as borrowDate plus periodDays
// calendar days. A non-positive period falls back to the default.
func CalculateDueDate(borrowDate time.Time, periodDays int) time.Time {
	if periodDays <= 0 {
		periodDays = DefaultBorrowPeriodDays
	}
	return DateOnly(borrowDate).AddDate(0, 0, periodDays)
}

// IsOverdue reports whether the loan is overdue as of the given date.
// Returned-on-time loans are never overdue; a loan already closed as
// OVERDUE stays overdue regardless of asOf.
func IsOverdue(l *Loan, asOf time.Time) bool {
	switch l.Status {
	case StatusReturned:
		return false
	case StatusOverdue:
		return true
	default:
		return DateOnly(asOf).After(l.DueDate)
	}
}

// OverdueDays is the number of calendar days the loan is past due when
// evaluated at asOf (a return date or today); never negative.
func OverdueDays(l *Loan, asOf time.Time) int {
	days := daysBetween(l.DueDate, asOf)
	if days < 0 {
		return 0
	}
	return days
}

// RemainingDays is the number of calendar days until the due date as of the
// given date. It may be negative, signaling overdue magnitude, and is only
// meaningful while the loan is open.
func RemainingDays(l *Loan, asOf time.Time) int {
	return daysBetween(asOf, l.DueDate)
}
