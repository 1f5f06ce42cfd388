// internal/reporting/csv.go
package reporting

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// loanExportRow is one CSV line of the annual loan export.
type loanExportRow struct {
	ID         uuid.UUID  `db:"id"`
	UserID     uuid.UUID  `db:"user_id"`
	Username   string     `db:"username"`
	BookID     uuid.UUID  `db:"book_id"`
	Title      string     `db:"title"`
	ISBN       string     `db:"isbn"`
	BorrowDate time.Time  `db:"borrow_date"`
	DueDate    time.Time  `db:"due_date"`
	ReturnDate *time.Time `db:"return_date"`
	Status     string     `db:"status"`
}

// overdueDays mirrors the circulation derivation for closed loans: the
// export never guesses for loans still out.
func (r loanExportRow) overdueDays() int {
	if r.ReturnDate == nil {
		return 0
	}
	days := int(r.ReturnDate.Sub(r.DueDate).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

func writeLoanCSV(w io.Writer, rows []loanExportRow) error {
	cw := csv.NewWriter(w)

	header := []string{
		"loan_id", "user_id", "username", "book_id", "title", "isbn",
		"borrow_date", "due_date", "return_date", "status", "overdue_days",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range rows {
		returnDate := ""
		if r.ReturnDate != nil {
			returnDate = r.ReturnDate.Format(time.DateOnly)
		}
		overdue := ""
		if days := r.overdueDays(); days > 0 {
			overdue = strconv.Itoa(days)
		}
		record := []string{
			r.ID.String(), r.UserID.String(), r.Username, r.BookID.String(), r.Title, r.ISBN,
			r.BorrowDate.Format(time.DateOnly), r.DueDate.Format(time.DateOnly),
			returnDate, r.Status, overdue,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// userExportRow is one CSV line of the annual user-activity export.
type userExportRow struct {
	ID          uuid.UUID `db:"id"`
	Username    string    `db:"username"`
	Email       string    `db:"email"`
	Role        string    `db:"role"`
	IsActive    bool      `db:"is_active"`
	CreatedAt   time.Time `db:"created_at"`
	BorrowCount int       `db:"borrow_count"`
}

func writeUserCSV(w io.Writer, year int, rows []userExportRow) error {
	cw := csv.NewWriter(w)

	header := []string{
		"user_id", "username", "email", "role", "is_active", "registered_at",
		fmt.Sprintf("borrows_%d", year),
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range rows {
		record := []string{
			r.ID.String(), r.Username, r.Email, r.Role,
			strconv.FormatBool(r.IsActive),
			r.CreatedAt.Format(time.DateOnly),
			strconv.Itoa(r.BorrowCount),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
