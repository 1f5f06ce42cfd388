// internal/circulation/handler_test.go
package circulation_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libris/internal/auth"
	"libris/internal/circulation"
	"libris/internal/membership"
	"libris/internal/storage/memory"
)

type handlerFixture struct {
	store  *memory.Store
	tokens *auth.Tokens
	server *httptest.Server
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	store := memory.NewStore()
	engine := circulation.NewEngine(store)
	handler := circulation.NewHandler(engine, 10)
	tokens := auth.NewTokens("test-secret", time.Hour)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(tokens))
		r.Post("/api/borrows", handler.HandleBorrow)
		r.Put("/api/borrows/{id}/return", handler.HandleReturn)
		r.Get("/api/borrows", handler.HandleListLoans)
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return &handlerFixture{store: store, tokens: tokens, server: server}
}

func (f *handlerFixture) bearer(t *testing.T, u membership.User) string {
	t.Helper()
	token, err := f.tokens.Issue(&u)
	require.NoError(t, err)
	return "Bearer " + token
}

func (f *handlerFixture) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHandleBorrow(t *testing.T) {
	f := newHandlerFixture(t)
	user := seedUser(f.store, true)
	book := seedBook(f.store, 2, 2)

	resp := f.do(t, http.MethodPost, "/api/borrows", f.bearer(t, user),
		map[string]any{"book_id": book.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	borrow, ok := body["borrow"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, book.ID.String(), borrow["book_id"])
	assert.Equal(t, user.ID.String(), borrow["user_id"])
	assert.Equal(t, string(circulation.StatusBorrowed), borrow["status"])
	assert.NotNil(t, borrow["remaining_days"])

	stored, _ := f.store.Book(book.ID)
	assert.Equal(t, 1, stored.AvailableStock)
}

func TestHandleBorrowRejectsAnonymous(t *testing.T) {
	f := newHandlerFixture(t)
	book := seedBook(f.store, 1, 1)

	resp := f.do(t, http.MethodPost, "/api/borrows", "",
		map[string]any{"book_id": book.ID})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleBorrowValidation(t *testing.T) {
	f := newHandlerFixture(t)
	user := seedUser(f.store, true)

	resp := f.do(t, http.MethodPost, "/api/borrows", f.bearer(t, user), map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "INVALID_REQUEST", errBody["code"])
}

func TestHandleBorrowErrorCodes(t *testing.T) {
	t.Run("out of stock maps to conflict", func(t *testing.T) {
		f := newHandlerFixture(t)
		user := seedUser(f.store, true)
		book := seedBook(f.store, 1, 0)

		resp := f.do(t, http.MethodPost, "/api/borrows", f.bearer(t, user),
			map[string]any{"book_id": book.ID})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		body := decodeBody(t, resp)
		errBody := body["error"].(map[string]any)
		assert.Equal(t, "OUT_OF_STOCK", errBody["code"])
	})

	t.Run("disabled account maps to forbidden", func(t *testing.T) {
		f := newHandlerFixture(t)
		user := seedUser(f.store, false)
		book := seedBook(f.store, 1, 1)

		resp := f.do(t, http.MethodPost, "/api/borrows", f.bearer(t, user),
			map[string]any{"book_id": book.ID})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		body := decodeBody(t, resp)
		errBody := body["error"].(map[string]any)
		assert.Equal(t, "USER_DISABLED", errBody["code"])
	})

	t.Run("unknown book maps to not found", func(t *testing.T) {
		f := newHandlerFixture(t)
		user := seedUser(f.store, true)

		resp := f.do(t, http.MethodPost, "/api/borrows", f.bearer(t, user),
			map[string]any{"book_id": "0b38dd43-0000-4000-8000-000000000001"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestHandleReturnFlow(t *testing.T) {
	f := newHandlerFixture(t)
	user := seedUser(f.store, true)
	book := seedBook(f.store, 1, 1)

	resp := f.do(t, http.MethodPost, "/api/borrows", f.bearer(t, user),
		map[string]any{"book_id": book.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	borrow := decodeBody(t, resp)["borrow"].(map[string]any)
	loanID := borrow["id"].(string)

	resp = f.do(t, http.MethodPut, fmt.Sprintf("/api/borrows/%s/return", loanID), f.bearer(t, user), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	returned := body["borrow"].(map[string]any)
	assert.Equal(t, string(circulation.StatusReturned), returned["status"])
	assert.NotContains(t, body, "overdue_days", "on-time return carries no overdue_days")

	resp = f.do(t, http.MethodPut, fmt.Sprintf("/api/borrows/%s/return", loanID), f.bearer(t, user), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	errBody := decodeBody(t, resp)["error"].(map[string]any)
	assert.Equal(t, "ALREADY_RETURNED", errBody["code"])
}

func TestHandleReturnInvalidID(t *testing.T) {
	f := newHandlerFixture(t)
	user := seedUser(f.store, true)

	resp := f.do(t, http.MethodPut, "/api/borrows/not-a-uuid/return", f.bearer(t, user), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleListLoansPagination(t *testing.T) {
	f := newHandlerFixture(t)
	user := seedUser(f.store, true)
	book := seedBook(f.store, 30, 30)

	for i := 0; i < 15; i++ {
		resp := f.do(t, http.MethodPost, "/api/borrows", f.bearer(t, user),
			map[string]any{"book_id": book.ID})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := f.do(t, http.MethodGet, "/api/borrows?page=2&per_page=10", f.bearer(t, user), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	borrows := body["borrows"].([]any)
	assert.Len(t, borrows, 5)

	pagination := body["pagination"].(map[string]any)
	assert.Equal(t, float64(15), pagination["total"])
	assert.Equal(t, float64(2), pagination["pages"])
	assert.Equal(t, false, pagination["has_next"])
	assert.Equal(t, true, pagination["has_prev"])
}

func TestHandleListLoansReaderCannotSeeOthers(t *testing.T) {
	f := newHandlerFixture(t)
	alice := seedUser(f.store, true)
	bob := seedUser(f.store, true)
	book := seedBook(f.store, 5, 5)

	for _, u := range []membership.User{alice, bob} {
		resp := f.do(t, http.MethodPost, "/api/borrows", f.bearer(t, u),
			map[string]any{"book_id": book.ID})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	// The user_id filter is ignored for readers.
	resp := f.do(t, http.MethodGet, "/api/borrows?user_id="+bob.ID.String(), f.bearer(t, alice), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	borrows := body["borrows"].([]any)
	require.Len(t, borrows, 1)
	assert.Equal(t, alice.ID.String(), borrows[0].(map[string]any)["user_id"])
}
