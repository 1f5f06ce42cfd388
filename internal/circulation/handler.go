// internal/circulation/handler.go
package circulation

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"libris/internal/apperr"
	"libris/internal/auth"
	"libris/internal/httpx"
)

// Handler exposes the circulation engine over HTTP. The clock is injected
// here, at the transport boundary, so the engine itself never reads wall
// time.
type Handler struct {
	service  Service
	validate *validator.Validate
	perPage  int
	now      func() time.Time
}

// NewHandler creates a circulation handler.
func NewHandler(service Service, perPage int) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		perPage:  perPage,
		now:      time.Now,
	}
}

type borrowRequest struct {
	BookID uuid.UUID  `json:"book_id" validate:"required"`
	UserID *uuid.UUID `json:"user_id"`
}

// HandleBorrow lends a copy of a book. Admins may pass user_id to borrow
// on behalf of another user; everyone else borrows for themselves.
func (h *Handler) HandleBorrow(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		httpx.Error(w, apperr.New(apperr.KindUnauthorized, "missing bearer token"))
		return
	}

	var req borrowRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Error(w, apperr.Wrap(apperr.KindInvalidRequest, "book_id is required", err))
		return
	}

	borrowerID := actor.UserID
	if req.UserID != nil {
		borrowerID = *req.UserID
	}

	today := h.now()
	loan, err := h.service.Borrow(r.Context(), BorrowCommand{
		BookID:     req.BookID,
		BorrowerID: borrowerID,
		Actor:      actor,
		Today:      today,
	})
	if err != nil {
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusCreated, map[string]any{"borrow": NewSnapshot(loan, today)})
}

// HandleReturn closes a loan. Only the borrower or an admin may return it.
func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		httpx.Error(w, apperr.New(apperr.KindUnauthorized, "missing bearer token"))
		return
	}

	loanID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Error(w, apperr.New(apperr.KindInvalidRequest, "invalid loan id"))
		return
	}

	today := h.now()
	result, err := h.service.Return(r.Context(), ReturnCommand{
		LoanID: loanID,
		Actor:  actor,
		Today:  today,
	})
	if err != nil {
		httpx.Error(w, err)
		return
	}

	body := map[string]any{"borrow": NewSnapshot(result.Loan, today)}
	if result.OverdueDays > 0 {
		body["overdue_days"] = result.OverdueDays
	}
	httpx.JSON(w, http.StatusOK, body)
}

// HandleListLoans pages through the ledger. Readers only see their own
// loans; admins may filter by user_id.
func (h *Handler) HandleListLoans(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFrom(r.Context())
	if !ok {
		httpx.Error(w, apperr.New(apperr.KindUnauthorized, "missing bearer token"))
		return
	}

	page := httpx.ParsePage(r, h.perPage)
	query := LoanQuery{Limit: page.PerPage, Offset: page.Offset()}

	if raw := r.URL.Query().Get("user_id"); raw != "" && actor.IsAdmin() {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.Error(w, apperr.New(apperr.KindInvalidRequest, "invalid user id"))
			return
		}
		query.UserID = &id
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := LoanStatus(raw)
		switch status {
		case StatusBorrowed, StatusReturned, StatusOverdue:
			query.Status = &status
		}
	}

	loans, total, err := h.service.ListLoans(r.Context(), actor, query)
	if err != nil {
		httpx.Error(w, err)
		return
	}

	today := h.now()
	snapshots := make([]Snapshot, len(loans))
	for i, l := range loans {
		snapshots[i] = NewSnapshot(l, today)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"borrows":    snapshots,
		"pagination": httpx.NewPagination(page, total),
	})
}
