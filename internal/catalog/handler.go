// internal/catalog/handler.go
package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"libris/internal/apperr"
	"libris/internal/httpx"
)

// Handler exposes the catalog over HTTP.
type Handler struct {
	service  Service
	validate *validator.Validate
	perPage  int
}

// NewHandler creates a catalog handler. perPage is the default page size
// for listings.
func NewHandler(service Service, perPage int) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		perPage:  perPage,
	}
}

// bookResponse decorates a book with its derived availability flag.
type bookResponse struct {
	*Book
	Available bool `json:"available"`
}

func newBookResponse(b *Book) bookResponse {
	return bookResponse{Book: b, Available: b.Available()}
}

type addBookRequest struct {
	ISBN      string `json:"isbn" validate:"required"`
	Title     string `json:"title" validate:"required"`
	Author    string `json:"author" validate:"required"`
	Publisher string `json:"publisher"`
	Location  string `json:"location"`
	Quantity  int    `json:"quantity" validate:"omitempty,min=1"`
}

// HandleAddBook creates or tops up a catalog entry. Admin only (enforced
// by route middleware).
func (h *Handler) HandleAddBook(w http.ResponseWriter, r *http.Request) {
	var req addBookRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, apperr.Wrap(apperr.KindInvalidRequest, "invalid book payload", err))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	book, created, err := h.service.AddBook(r.Context(), AddBookParams{
		ISBN:      req.ISBN,
		Title:     req.Title,
		Author:    req.Author,
		Publisher: req.Publisher,
		Location:  req.Location,
		Quantity:  req.Quantity,
	})
	if err != nil {
		httpx.Error(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, map[string]any{"book": newBookResponse(book)})
}

// HandleListBooks searches the catalog with keyword/field filters.
func (h *Handler) HandleListBooks(w http.ResponseWriter, r *http.Request) {
	page := httpx.ParsePage(r, h.perPage)
	filter := Filter{
		Keyword: r.URL.Query().Get("keyword"),
		Title:   r.URL.Query().Get("title"),
		Author:  r.URL.Query().Get("author"),
		ISBN:    r.URL.Query().Get("isbn"),
	}

	books, total, err := h.service.ListBooks(r.Context(), filter, page.PerPage, page.Offset())
	if err != nil {
		httpx.Error(w, err)
		return
	}

	responses := make([]bookResponse, len(books))
	for i, b := range books {
		responses[i] = newBookResponse(b)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"books":      responses,
		"pagination": httpx.NewPagination(page, total),
	})
}

// HandleGetBook returns one catalog entry.
func (h *Handler) HandleGetBook(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, apperr.New(apperr.KindInvalidRequest, "invalid book id"))
		return
	}

	book, err := h.service.GetBook(r.Context(), id)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"book": newBookResponse(book)})
}

type updateBookRequest struct {
	Title      *string `json:"title" validate:"omitempty,min=1"`
	Author     *string `json:"author" validate:"omitempty,min=1"`
	Publisher  *string `json:"publisher"`
	Location   *string `json:"location"`
	TotalStock *int    `json:"total_stock" validate:"omitempty,min=0"`
}

// HandleUpdateBook changes entry fields. Admin only.
func (h *Handler) HandleUpdateBook(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, apperr.New(apperr.KindInvalidRequest, "invalid book id"))
		return
	}

	var req updateBookRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, apperr.Wrap(apperr.KindInvalidRequest, "invalid book payload", err))
		return
	}

	book, err := h.service.UpdateBook(r.Context(), id, UpdateBookParams{
		Title:      req.Title,
		Author:     req.Author,
		Publisher:  req.Publisher,
		Location:   req.Location,
		TotalStock: req.TotalStock,
	})
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"book": newBookResponse(book)})
}

// HandleDeleteBook removes an entry with no copies on loan. Admin only.
func (h *Handler) HandleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, apperr.New(apperr.KindInvalidRequest, "invalid book id"))
		return
	}

	if err := h.service.DeleteBook(r.Context(), id); err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": "book deleted"})
}
