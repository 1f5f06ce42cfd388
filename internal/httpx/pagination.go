// internal/httpx/pagination.go
package httpx

import (
	"net/http"
	"strconv"
)

// Page is a parsed page/per_page query pair.
type Page struct {
	Number  int `json:"page"`
	PerPage int `json:"per_page"`
}

// Offset is the row offset for SQL LIMIT/OFFSET paging.
func (p Page) Offset() int {
	return (p.Number - 1) * p.PerPage
}

// Pagination is the envelope attached to every listing response.
type Pagination struct {
	Page    int  `json:"page"`
	PerPage int  `json:"per_page"`
	Total   int  `json:"total"`
	Pages   int  `json:"pages"`
	HasNext bool `json:"has_next"`
	HasPrev bool `json:"has_prev"`
}

// NewPagination derives the envelope from a page and a total row count.
func NewPagination(p Page, total int) Pagination {
	pages := 0
	if p.PerPage > 0 {
		pages = (total + p.PerPage - 1) / p.PerPage
	}
	return Pagination{
		Page:    p.Number,
		PerPage: p.PerPage,
		Total:   total,
		Pages:   pages,
		HasNext: p.Number < pages,
		HasPrev: p.Number > 1 && total > 0,
	}
}

// ParsePage reads page/per_page from the query string, clamping to sane
// bounds. defaultPerPage comes from configuration (ITEMS_PER_PAGE).
func ParsePage(r *http.Request, defaultPerPage int) Page {
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	perPage := queryInt(r, "per_page", defaultPerPage)
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > 100 {
		perPage = 100
	}
	return Page{Number: page, PerPage: perPage}
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return n
}
