// internal/storage/memory/store.go
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"libris/internal/catalog"
	"libris/internal/circulation"
	"libris/internal/membership"
	"libris/internal/storage"
)

// Store is an in-process implementation of the circulation store contract.
// A single mutex held for the whole transaction makes every transaction
// trivially serializable; fn mutates a staged copy that is swapped in only
// on success, so a failed transaction leaves no partial writes.
type Store struct {
	mu    sync.Mutex
	books map[uuid.UUID]catalog.Book
	users map[uuid.UUID]membership.User
	loans map[uuid.UUID]circulation.Loan
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		books: make(map[uuid.UUID]catalog.Book),
		users: make(map[uuid.UUID]membership.User),
		loans: make(map[uuid.UUID]circulation.Loan),
	}
}

// PutBook seeds or replaces a book.
func (s *Store) PutBook(b catalog.Book) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[b.ID] = b
}

// PutUser seeds or replaces a user.
func (s *Store) PutUser(u membership.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// PutLoan seeds or replaces a loan.
func (s *Store) PutLoan(l circulation.Loan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loans[l.ID] = l
}

// Book returns a copy of the stored book.
func (s *Store) Book(id uuid.UUID) (catalog.Book, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.books[id]
	return b, ok
}

// Loan returns a copy of the stored loan.
func (s *Store) Loan(id uuid.UUID) (circulation.Loan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loans[id]
	return l, ok
}

// WithinTx implements circulation.Store.
func (s *Store) WithinTx(_ context.Context, fn func(tx circulation.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := &memTx{
		books: cloneMap(s.books),
		users: cloneMap(s.users),
		loans: cloneMap(s.loans),
	}
	if err := fn(staged); err != nil {
		return err
	}

	s.books = staged.books
	s.users = staged.users
	s.loans = staged.loans
	return nil
}

// ListLoans implements circulation.Store.
func (s *Store) ListLoans(_ context.Context, q circulation.LoanQuery) ([]*circulation.Loan, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]circulation.Loan, 0, len(s.loans))
	for _, l := range s.loans {
		if q.UserID != nil && l.UserID != *q.UserID {
			continue
		}
		if q.Status != nil && l.Status != *q.Status {
			continue
		}
		matched = append(matched, l)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if q.Offset > 0 {
		if q.Offset >= total {
			matched = nil
		} else {
			matched = matched[q.Offset:]
		}
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]*circulation.Loan, len(matched))
	for i := range matched {
		l := matched[i]
		out[i] = &l
	}
	return out, total, nil
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// memTx operates on the staged copies under the store lock.
type memTx struct {
	books map[uuid.UUID]catalog.Book
	users map[uuid.UUID]membership.User
	loans map[uuid.UUID]circulation.Loan
}

func (t *memTx) GetBookForUpdate(_ context.Context, bookID uuid.UUID) (*catalog.Book, error) {
	b, ok := t.books[bookID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &b, nil
}

func (t *memTx) UpdateBookStock(_ context.Context, bookID uuid.UUID, availableStock int) error {
	b, ok := t.books[bookID]
	if !ok {
		return storage.ErrNotFound
	}
	if availableStock < 0 || availableStock > b.TotalStock {
		return storage.ErrCheckViolation
	}
	b.AvailableStock = availableStock
	t.books[bookID] = b
	return nil
}

func (t *memTx) GetUser(_ context.Context, userID uuid.UUID) (*membership.User, error) {
	u, ok := t.users[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &u, nil
}

func (t *memTx) CountOverdueBorrowed(_ context.Context, userID uuid.UUID, asOf time.Time) (int, error) {
	day := circulation.DateOnly(asOf)
	count := 0
	for _, l := range t.loans {
		if l.UserID == userID && l.Status == circulation.StatusBorrowed && l.DueDate.Before(day) {
			count++
		}
	}
	return count, nil
}

func (t *memTx) InsertLoan(_ context.Context, loan *circulation.Loan) error {
	if _, exists := t.loans[loan.ID]; exists {
		return storage.ErrUniqueViolation
	}
	stored := *loan
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	t.loans[stored.ID] = stored
	return nil
}

func (t *memTx) GetLoanForUpdate(_ context.Context, loanID uuid.UUID) (*circulation.Loan, error) {
	l, ok := t.loans[loanID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &l, nil
}

func (t *memTx) UpdateLoanReturn(_ context.Context, loan *circulation.Loan) error {
	stored, ok := t.loans[loan.ID]
	if !ok {
		return storage.ErrNotFound
	}
	stored.ReturnDate = loan.ReturnDate
	stored.Status = loan.Status
	t.loans[loan.ID] = stored
	return nil
}
