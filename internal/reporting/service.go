// internal/reporting/service.go
package reporting

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Period selects the bucketing for borrow-volume statistics.
type Period string

const (
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodYear    Period = "year"
)

// ParsePeriod maps a query value onto a known period, defaulting to month.
func ParsePeriod(raw string) Period {
	switch Period(raw) {
	case PeriodQuarter:
		return PeriodQuarter
	case PeriodYear:
		return PeriodYear
	default:
		return PeriodMonth
	}
}

// PeriodCount is one bucket of borrow volume.
type PeriodCount struct {
	Period int    `json:"period"`
	Name   string `json:"period_name"`
	Count  int    `json:"count"`
}

// BookRank is one row of the borrow ranking.
type BookRank struct {
	Rank        int       `json:"rank"`
	BookID      uuid.UUID `json:"book_id" db:"book_id"`
	Title       string    `json:"title" db:"title"`
	Author      string    `json:"author" db:"author"`
	ISBN        string    `json:"isbn" db:"isbn"`
	BorrowCount int       `json:"borrow_count" db:"borrow_count"`
}

// UserRank is one row of the active-user ranking.
type UserRank struct {
	Rank        int       `json:"rank"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	Username    string    `json:"username" db:"username"`
	Email       string    `json:"email" db:"email"`
	BorrowCount int       `json:"borrow_count" db:"borrow_count"`
}

// Totals summarizes a year of circulation.
type Totals struct {
	TotalBorrows    int     `json:"total_borrows"`
	TotalReturns    int     `json:"total_returns"`
	TotalOverdue    int     `json:"total_overdue"`
	CurrentBorrowed int     `json:"current_borrowed"`
	OverdueRate     float64 `json:"overdue_rate"`
}

// UserTotals summarizes the membership base.
type UserTotals struct {
	TotalUsers  int `json:"total_users"`
	ActiveUsers int `json:"active_users"`
	AdminCount  int `json:"admin_count"`
	ReaderCount int `json:"reader_count"`
}

// BorrowStatistics is the full borrow-statistics report.
type BorrowStatistics struct {
	Period      Period        `json:"period"`
	Year        int           `json:"year"`
	PeriodStats []PeriodCount `json:"period_stats"`
	BookRanking []BookRank    `json:"book_ranking"`
	Totals      Totals        `json:"total_stats"`
}

// UserStatistics is the full user-statistics report.
type UserStatistics struct {
	Year        int        `json:"year"`
	UserRanking []UserRank `json:"user_ranking"`
	UserTotals  UserTotals `json:"user_stats"`
}

// Service aggregates the ledger for reporting. It is a read-only consumer:
// no method mutates any row.
type Service interface {
	BorrowStatistics(ctx context.Context, period Period, year, limit int) (*BorrowStatistics, error)
	UserStatistics(ctx context.Context, year, limit int) (*UserStatistics, error)
	ExportLoans(ctx context.Context, year int, w io.Writer) error
	ExportUserActivity(ctx context.Context, year int, w io.Writer) error
}
