// internal/catalog/handler_test.go
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libris/internal/apperr"
)

// stubService records the last call and returns canned results.
type stubService struct {
	book    *Book
	created bool
	err     error

	lastAdd    AddBookParams
	lastUpdate UpdateBookParams
	deletedID  uuid.UUID
}

func (s *stubService) AddBook(_ context.Context, p AddBookParams) (*Book, bool, error) {
	s.lastAdd = p
	return s.book, s.created, s.err
}

func (s *stubService) GetBook(_ context.Context, _ uuid.UUID) (*Book, error) {
	return s.book, s.err
}

func (s *stubService) ListBooks(_ context.Context, _ Filter, _, _ int) ([]*Book, int, error) {
	if s.err != nil {
		return nil, 0, s.err
	}
	return []*Book{s.book}, 1, nil
}

func (s *stubService) UpdateBook(_ context.Context, _ uuid.UUID, p UpdateBookParams) (*Book, error) {
	s.lastUpdate = p
	return s.book, s.err
}

func (s *stubService) DeleteBook(_ context.Context, id uuid.UUID) error {
	s.deletedID = id
	return s.err
}

func testBook() *Book {
	return &Book{
		ID:             uuid.New(),
		ISBN:           "9780141439518",
		Title:          "Pride and Prejudice",
		Author:         "Jane Austen",
		TotalStock:     3,
		AvailableStock: 1,
	}
}

func newRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/api/books", h.HandleAddBook)
	r.Get("/api/books", h.HandleListBooks)
	r.Get("/api/books/{id}", h.HandleGetBook)
	r.Put("/api/books/{id}", h.HandleUpdateBook)
	r.Delete("/api/books/{id}", h.HandleDeleteBook)
	return r
}

func TestHandleAddBook(t *testing.T) {
	t.Run("created entry returns 201", func(t *testing.T) {
		svc := &stubService{book: testBook(), created: true}
		router := newRouter(NewHandler(svc, 10))

		body, _ := json.Marshal(map[string]any{
			"isbn": "9780141439518", "title": "Pride and Prejudice", "author": "Jane Austen", "quantity": 3,
		})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/books", bytes.NewReader(body)))

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, 3, svc.lastAdd.Quantity)
	})

	t.Run("topped-up entry returns 200", func(t *testing.T) {
		svc := &stubService{book: testBook(), created: false}
		router := newRouter(NewHandler(svc, 10))

		body, _ := json.Marshal(map[string]any{
			"isbn": "9780141439518", "title": "Pride and Prejudice", "author": "Jane Austen",
		})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/books", bytes.NewReader(body)))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, svc.lastAdd.Quantity, "quantity defaults to one copy")
	})

	t.Run("missing fields rejected", func(t *testing.T) {
		router := newRouter(NewHandler(&stubService{}, 10))

		body, _ := json.Marshal(map[string]any{"isbn": "9780141439518"})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/books", bytes.NewReader(body)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid isbn maps to 400", func(t *testing.T) {
		svc := &stubService{err: apperr.New(apperr.KindInvalidISBN, "invalid isbn")}
		router := newRouter(NewHandler(svc, 10))

		body, _ := json.Marshal(map[string]any{"isbn": "123", "title": "T", "author": "A"})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/books", bytes.NewReader(body)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_ISBN")
	})
}

func TestHandleListBooks(t *testing.T) {
	svc := &stubService{book: testBook()}
	router := newRouter(NewHandler(svc, 10))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/books?keyword=austen", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Books []struct {
			Title     string `json:"title"`
			Available bool   `json:"available"`
		} `json:"books"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Books, 1)
	assert.Equal(t, "Pride and Prejudice", body.Books[0].Title)
	assert.True(t, body.Books[0].Available)
	assert.Equal(t, 1, body.Pagination.Total)
}

func TestHandleGetBook(t *testing.T) {
	t.Run("invalid id", func(t *testing.T) {
		router := newRouter(NewHandler(&stubService{}, 10))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/books/not-a-uuid", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown book", func(t *testing.T) {
		svc := &stubService{err: apperr.New(apperr.KindBookNotFound, "book does not exist")}
		router := newRouter(NewHandler(svc, 10))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/books/"+uuid.NewString(), nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleUpdateBook(t *testing.T) {
	svc := &stubService{book: testBook()}
	router := newRouter(NewHandler(svc, 10))

	body, _ := json.Marshal(map[string]any{"total_stock": 5})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/books/"+uuid.NewString(), bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.lastUpdate.TotalStock)
	assert.Equal(t, 5, *svc.lastUpdate.TotalStock)
	assert.Nil(t, svc.lastUpdate.Title, "absent fields stay nil")
}

func TestHandleDeleteBook(t *testing.T) {
	t.Run("borrowed copies block deletion", func(t *testing.T) {
		svc := &stubService{err: apperr.New(apperr.KindHasBorrowed, "copies on loan")}
		router := newRouter(NewHandler(svc, 10))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/books/"+uuid.NewString(), nil))
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "HAS_BORROWED")
	})

	t.Run("deletes by id", func(t *testing.T) {
		svc := &stubService{}
		router := newRouter(NewHandler(svc, 10))
		id := uuid.New()

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/books/"+id.String(), nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, id, svc.deletedID)
	})
}
