// internal/reporting/handler.go
package reporting

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"libris/internal/httpx"
)

const defaultRankingLimit = 10

// Handler exposes the reporting service over HTTP. All routes are mounted
// behind the admin middleware; the handler itself does no role checks.
type Handler struct {
	service Service
	now     func() time.Time
}

// NewHandler creates a reporting handler.
func NewHandler(service Service) *Handler {
	return &Handler{service: service, now: time.Now}
}

func (h *Handler) yearParam(r *http.Request) int {
	if raw := r.URL.Query().Get("year"); raw != "" {
		if year, err := strconv.Atoi(raw); err == nil && year > 0 {
			return year
		}
	}
	return h.now().Year()
}

func limitParam(r *http.Request) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 && limit <= 100 {
			return limit
		}
	}
	return defaultRankingLimit
}

// HandleBorrowStatistics reports borrow volume per period, the book ranking
// and the yearly totals.
func (h *Handler) HandleBorrowStatistics(w http.ResponseWriter, r *http.Request) {
	period := ParsePeriod(r.URL.Query().Get("period"))
	stats, err := h.service.BorrowStatistics(r.Context(), period, h.yearParam(r), limitParam(r))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

// HandleUserStatistics reports the active-user ranking and membership totals.
func (h *Handler) HandleUserStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.UserStatistics(r.Context(), h.yearParam(r), limitParam(r))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

// HandleExportLoans streams the year's loans as a CSV download.
func (h *Handler) HandleExportLoans(w http.ResponseWriter, r *http.Request) {
	year := h.yearParam(r)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="borrows_%d.csv"`, year))
	if err := h.service.ExportLoans(r.Context(), year, w); err != nil {
		// The query runs before the first write, so a failure here can still
		// become a JSON error response.
		w.Header().Del("Content-Disposition")
		httpx.Error(w, err)
	}
}

// HandleExportUserActivity streams per-user borrow counts as a CSV download.
func (h *Handler) HandleExportUserActivity(w http.ResponseWriter, r *http.Request) {
	year := h.yearParam(r)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="user_activity_%d.csv"`, year))
	if err := h.service.ExportUserActivity(r.Context(), year, w); err != nil {
		w.Header().Del("Content-Disposition")
		httpx.Error(w, err)
	}
}
