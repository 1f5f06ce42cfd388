// internal/httpx/respond_test.go
package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libris/internal/apperr"
)

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.KindInvalidRequest, http.StatusBadRequest},
		{apperr.KindInvalidISBN, http.StatusBadRequest},
		{apperr.KindInvalidStock, http.StatusBadRequest},
		{apperr.KindInvalidCredentials, http.StatusUnauthorized},
		{apperr.KindUnauthorized, http.StatusUnauthorized},
		{apperr.KindUserDisabled, http.StatusForbidden},
		{apperr.KindHasOverdue, http.StatusForbidden},
		{apperr.KindForbidden, http.StatusForbidden},
		{apperr.KindBookNotFound, http.StatusNotFound},
		{apperr.KindLoanNotFound, http.StatusNotFound},
		{apperr.KindUserNotFound, http.StatusNotFound},
		{apperr.KindOutOfStock, http.StatusConflict},
		{apperr.KindAlreadyReturned, http.StatusConflict},
		{apperr.KindUserExists, http.StatusConflict},
		{apperr.KindEmailExists, http.StatusConflict},
		{apperr.KindHasBorrowed, http.StatusConflict},
		{apperr.KindRateLimited, http.StatusTooManyRequests},
		{apperr.KindStorageConflict, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			rec := httptest.NewRecorder()
			Error(rec, apperr.New(tt.kind, "boom"))

			assert.Equal(t, tt.want, rec.Code)

			var body struct {
				Error struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, string(tt.kind), body.Error.Code)
			assert.Equal(t, "boom", body.Error.Message)
		})
	}
}

func TestErrorHidesUnknownCauses(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, errors.New("secret database detail"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL")
	assert.NotContains(t, rec.Body.String(), "secret database detail")
}

func TestDecodeMalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))

	var v map[string]any
	err := Decode(req, &v)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidRequest))
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		wantPage    int
		wantPerPage int
	}{
		{"defaults", "", 1, 10},
		{"explicit values", "page=3&per_page=25", 3, 25},
		{"negative page clamps", "page=-1", 1, 10},
		{"zero per_page falls back", "per_page=0", 1, 10},
		{"per_page capped", "per_page=500", 1, 100},
		{"garbage ignored", "page=abc&per_page=xyz", 1, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
			page := ParsePage(req, 10)
			assert.Equal(t, tt.wantPage, page.Number)
			assert.Equal(t, tt.wantPerPage, page.PerPage)
		})
	}
}

func TestPaginationEnvelope(t *testing.T) {
	p := NewPagination(Page{Number: 2, PerPage: 10}, 35)

	assert.Equal(t, 4, p.Pages)
	assert.True(t, p.HasNext)
	assert.True(t, p.HasPrev)

	empty := NewPagination(Page{Number: 1, PerPage: 10}, 0)
	assert.Zero(t, empty.Pages)
	assert.False(t, empty.HasNext)
	assert.False(t, empty.HasPrev)

	last := NewPagination(Page{Number: 4, PerPage: 10}, 35)
	assert.False(t, last.HasNext)
	assert.Equal(t, 30, Page{Number: 4, PerPage: 10}.Offset())
}
