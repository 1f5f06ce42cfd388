// internal/reporting/implementation.go
package reporting

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jmoiron/sqlx"

	"libris/internal/circulation"
)

// service implements the Service interface with aggregate queries over the
// loans ledger. Listings and aggregates run at the connection's default
// isolation; reporting never writes, so snapshot consistency is enough.
type service struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
	logger  *slog.Logger
}

// NewService creates a new reporting service instance.
func NewService(db *sqlx.DB, logger *slog.Logger) Service {
	return &service{
		db:      db,
		dialect: goqu.Dialect("postgres"),
		logger:  logger,
	}
}

// periodBucket is the EXTRACT expression for one bucketing mode.
func periodBucket(period Period) goqu.Expression {
	switch period {
	case PeriodQuarter:
		return goqu.L("CEIL(EXTRACT(MONTH FROM borrow_date) / 3.0)::int")
	case PeriodYear:
		return goqu.L("EXTRACT(YEAR FROM borrow_date)::int")
	default:
		return goqu.L("EXTRACT(MONTH FROM borrow_date)::int")
	}
}

// BorrowStatistics aggregates borrow volume, the book ranking and the
// yearly totals in one report.
func (s *service) BorrowStatistics(ctx context.Context, period Period, year, limit int) (*BorrowStatistics, error) {
	counts, err := s.periodCounts(ctx, period, year)
	if err != nil {
		return nil, err
	}

	ranking, err := s.bookRanking(ctx, year, limit)
	if err != nil {
		return nil, err
	}

	totals, err := s.totals(ctx, year)
	if err != nil {
		return nil, err
	}

	return &BorrowStatistics{
		Period:      period,
		Year:        year,
		PeriodStats: fillPeriods(period, year, counts),
		BookRanking: ranking,
		Totals:      *totals,
	}, nil
}

func (s *service) periodCounts(ctx context.Context, period Period, year int) (map[int]int, error) {
	bucket := periodBucket(period)

	ds := s.dialect.From("loans").
		Select(bucket, goqu.COUNT("*")).
		GroupBy(bucket)

	if period == PeriodYear {
		ds = ds.Where(goqu.L("EXTRACT(YEAR FROM borrow_date)").Gte(year - yearSpan + 1))
	} else {
		ds = ds.Where(goqu.L("EXTRACT(YEAR FROM borrow_date)").Eq(year))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build period query: %w", err)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query period counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var bucket, count int
		if err := rows.Scan(&bucket, &count); err != nil {
			return nil, fmt.Errorf("scan period count: %w", err)
		}
		counts[bucket] = count
	}
	return counts, rows.Err()
}

func (s *service) bookRanking(ctx context.Context, year, limit int) ([]BookRank, error) {
	query, args, err := s.dialect.From(goqu.T("books").As("b")).
		InnerJoin(goqu.T("loans").As("l"), goqu.On(goqu.Ex{"b.id": goqu.I("l.book_id")})).
		Select(
			goqu.I("b.id").As("book_id"),
			goqu.I("b.title").As("title"),
			goqu.I("b.author").As("author"),
			goqu.I("b.isbn").As("isbn"),
			goqu.COUNT(goqu.I("l.id")).As("borrow_count"),
		).
		Where(goqu.L("EXTRACT(YEAR FROM l.borrow_date)").Eq(year)).
		GroupBy(goqu.I("b.id"), goqu.I("b.title"), goqu.I("b.author"), goqu.I("b.isbn")).
		Order(goqu.I("borrow_count").Desc()).
		Limit(uint(limit)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build book ranking query: %w", err)
	}

	var rows []BookRank
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query book ranking: %w", err)
	}
	return rankBooks(rows), nil
}

func (s *service) totals(ctx context.Context, year int) (*Totals, error) {
	t := &Totals{}
	err := s.db.QueryRowxContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE EXTRACT(YEAR FROM borrow_date) = $1),
			COUNT(*) FILTER (WHERE EXTRACT(YEAR FROM borrow_date) = $1 AND status IN ($2, $3)),
			COUNT(*) FILTER (WHERE EXTRACT(YEAR FROM borrow_date) = $1 AND status = $3),
			COUNT(*) FILTER (WHERE status = $4)
		FROM loans
	`, year, circulation.StatusReturned, circulation.StatusOverdue, circulation.StatusBorrowed).
		Scan(&t.TotalBorrows, &t.TotalReturns, &t.TotalOverdue, &t.CurrentBorrowed)
	if err != nil {
		return nil, fmt.Errorf("query totals: %w", err)
	}

	t.OverdueRate = overdueRate(t.TotalOverdue, t.TotalBorrows)
	return t, nil
}

// UserStatistics aggregates the active-user ranking and membership totals.
func (s *service) UserStatistics(ctx context.Context, year, limit int) (*UserStatistics, error) {
	query, args, err := s.dialect.From(goqu.T("users").As("u")).
		InnerJoin(goqu.T("loans").As("l"), goqu.On(goqu.Ex{"u.id": goqu.I("l.user_id")})).
		Select(
			goqu.I("u.id").As("user_id"),
			goqu.I("u.username").As("username"),
			goqu.I("u.email").As("email"),
			goqu.COUNT(goqu.I("l.id")).As("borrow_count"),
		).
		Where(goqu.L("EXTRACT(YEAR FROM l.borrow_date)").Eq(year)).
		GroupBy(goqu.I("u.id"), goqu.I("u.username"), goqu.I("u.email")).
		Order(goqu.I("borrow_count").Desc()).
		Limit(uint(limit)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build user ranking query: %w", err)
	}

	var ranking []UserRank
	if err := s.db.SelectContext(ctx, &ranking, query, args...); err != nil {
		return nil, fmt.Errorf("query user ranking: %w", err)
	}

	totals := UserTotals{}
	err = s.db.QueryRowxContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE is_active),
			COUNT(*) FILTER (WHERE role = 'admin'),
			COUNT(*) FILTER (WHERE role = 'reader')
		FROM users
	`).Scan(&totals.TotalUsers, &totals.ActiveUsers, &totals.AdminCount, &totals.ReaderCount)
	if err != nil {
		return nil, fmt.Errorf("query user totals: %w", err)
	}

	return &UserStatistics{
		Year:        year,
		UserRanking: rankUsers(ranking),
		UserTotals:  totals,
	}, nil
}

// ExportLoans streams the year's loans as CSV.
func (s *service) ExportLoans(ctx context.Context, year int, w io.Writer) error {
	var rows []loanExportRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT l.id, l.user_id, u.username, l.book_id, b.title, b.isbn,
		       l.borrow_date, l.due_date, l.return_date, l.status
		FROM loans l
		JOIN users u ON u.id = l.user_id
		JOIN books b ON b.id = l.book_id
		WHERE EXTRACT(YEAR FROM l.borrow_date) = $1
		ORDER BY l.borrow_date DESC
	`, year)
	if err != nil {
		return fmt.Errorf("query loan export: %w", err)
	}
	return writeLoanCSV(w, rows)
}

// ExportUserActivity streams per-user borrow counts for the year as CSV.
func (s *service) ExportUserActivity(ctx context.Context, year int, w io.Writer) error {
	var rows []userExportRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT u.id, u.username, u.email, u.role, u.is_active, u.created_at,
		       COUNT(l.id) AS borrow_count
		FROM users u
		LEFT JOIN loans l ON l.user_id = u.id AND EXTRACT(YEAR FROM l.borrow_date) = $1
		GROUP BY u.id, u.username, u.email, u.role, u.is_active, u.created_at
		ORDER BY borrow_count DESC
	`, year)
	if err != nil {
		return fmt.Errorf("query user export: %w", err)
	}
	return writeUserCSV(w, year, rows)
}
