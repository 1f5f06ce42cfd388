// internal/catalog/domain.go
package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Book represents a catalog entry and its stock counters.
//
// AvailableStock is mutated only inside circulation transactions and keeps
// the invariant available_stock = total_stock - count(loans BORROWED).
type Book struct {
	ID             uuid.UUID `json:"id" db:"id"`
	ISBN           string    `json:"isbn" db:"isbn"`
	Title          string    `json:"title" db:"title"`
	Author         string    `json:"author" db:"author"`
	Publisher      string    `json:"publisher,omitempty" db:"publisher"`
	Location       string    `json:"location,omitempty" db:"location"`
	TotalStock     int       `json:"total_stock" db:"total_stock"`
	AvailableStock int       `json:"available_stock" db:"available_stock"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Available reports whether at least one copy can be borrowed right now.
func (b *Book) Available() bool {
	return b.AvailableStock > 0
}

// BorrowedCount is the number of copies currently out on loan.
func (b *Book) BorrowedCount() int {
	return b.TotalStock - b.AvailableStock
}

// Filter narrows a book listing. Empty fields are ignored. Keyword matches
// title, author and ISBN; the other fields match their own column only.
type Filter struct {
	Keyword string
	Title   string
	Author  string
	ISBN    string
}
