// internal/storage/postgres/store_test.go
package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libris/internal/circulation"
	"libris/internal/membership"
	"libris/internal/storage"
)

// testDB connects to the database named by TEST_DATABASE_URL, skipping when
// none is configured. The schema from cmd/migrate must already be applied.
func testDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec("TRUNCATE TABLE loans, books, users CASCADE")
	require.NoError(t, err)
	return db
}

func seedTestUser(t *testing.T, db *sqlx.DB, active bool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(`
		INSERT INTO users (id, username, email, role, is_active, password_hash, salt)
		VALUES ($1, $2, $3, 'reader', $4, 'x', 'x')
	`, id, "user-"+id.String()[:8], id.String()[:8]+"@example.com", active)
	require.NoError(t, err)
	return id
}

func seedTestBook(t *testing.T, db *sqlx.DB, total, available int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(`
		INSERT INTO books (id, isbn, title, author, total_stock, available_stock)
		VALUES ($1, $2, 'Test Book', 'Test Author', $3, $4)
	`, id, "978"+id.String()[:10], total, available)
	require.NoError(t, err)
	return id
}

func TestBorrowFlowAgainstPostgres(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)
	engine := circulation.NewEngine(store)

	userID := seedTestUser(t, db, true)
	bookID := seedTestBook(t, db, 2, 2)
	actor := membership.Actor{UserID: userID, Role: membership.RoleReader}

	loan, err := engine.Borrow(context.Background(), circulation.BorrowCommand{
		BookID:     bookID,
		BorrowerID: userID,
		Actor:      actor,
		Today:      time.Now(),
	})
	require.NoError(t, err)

	var available int
	require.NoError(t, db.Get(&available, "SELECT available_stock FROM books WHERE id = $1", bookID))
	assert.Equal(t, 1, available)

	result, err := engine.Return(context.Background(), circulation.ReturnCommand{
		LoanID: loan.ID,
		Actor:  actor,
		Today:  time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, circulation.StatusReturned, result.Loan.Status)

	require.NoError(t, db.Get(&available, "SELECT available_stock FROM books WHERE id = $1", bookID))
	assert.Equal(t, 2, available)
}

func TestConcurrentBorrowsAgainstPostgres(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)
	engine := circulation.NewEngine(store)

	bookID := seedTestBook(t, db, 1, 1)

	const borrowers = 8
	userIDs := make([]uuid.UUID, borrowers)
	for i := range userIDs {
		userIDs[i] = seedTestUser(t, db, true)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	successCount := 0

	for _, id := range userIDs {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := engine.Borrow(context.Background(), circulation.BorrowCommand{
				BookID:     bookID,
				BorrowerID: id,
				Actor:      membership.Actor{UserID: id, Role: membership.RoleReader},
				Today:      time.Now(),
			})
			if err == nil {
				mu.Lock()
				successCount++
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, successCount, "only one borrow of the last copy may succeed")

	var available int
	require.NoError(t, db.Get(&available, "SELECT available_stock FROM books WHERE id = $1", bookID))
	assert.Equal(t, 0, available)
}

func TestWithinTxSurfacesNotFound(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)

	err := store.WithinTx(context.Background(), func(tx circulation.Tx) error {
		_, err := tx.GetBookForUpdate(context.Background(), uuid.New())
		return err
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListLoansFiltersAgainstPostgres(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)
	engine := circulation.NewEngine(store)

	bookID := seedTestBook(t, db, 5, 5)
	alice := seedTestUser(t, db, true)
	bob := seedTestUser(t, db, true)

	for _, id := range []uuid.UUID{alice, bob} {
		_, err := engine.Borrow(context.Background(), circulation.BorrowCommand{
			BookID:     bookID,
			BorrowerID: id,
			Actor:      membership.Actor{UserID: id, Role: membership.RoleReader},
			Today:      time.Now(),
		})
		require.NoError(t, err)
	}

	loans, total, err := store.ListLoans(context.Background(), circulation.LoanQuery{UserID: &alice, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, loans, 1)
	assert.Equal(t, alice, loans[0].UserID)

	status := circulation.StatusBorrowed
	_, total, err = store.ListLoans(context.Background(), circulation.LoanQuery{Status: &status, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}
