// internal/httpx/respond.go
package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"libris/internal/apperr"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSON writes v as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// errorBody is the error envelope:
// {"error": {"code": "...", "message": "..."}}.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error maps a domain error to its status code and writes the envelope.
// Unknown errors become a 500 without leaking internals.
func Error(w http.ResponseWriter, err error) {
	kind, ok := apperr.KindOf(err)
	if !ok {
		slog.Error("unhandled error", "error", err)
		JSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{
			Code:    "INTERNAL",
			Message: "internal server error",
		}})
		return
	}

	msg := err.Error()
	var e *apperr.Error
	if errors.As(err, &e) {
		msg = e.Message
	}

	JSON(w, statusFor(kind), errorBody{Error: errorDetail{
		Code:    string(kind),
		Message: msg,
	}})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidRequest, apperr.KindInvalidISBN, apperr.KindInvalidStock:
		return http.StatusBadRequest
	case apperr.KindInvalidCredentials, apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindUserDisabled, apperr.KindHasOverdue, apperr.KindForbidden, apperr.KindAccountDisabled:
		return http.StatusForbidden
	case apperr.KindBookNotFound, apperr.KindLoanNotFound, apperr.KindUserNotFound:
		return http.StatusNotFound
	case apperr.KindOutOfStock, apperr.KindAlreadyReturned, apperr.KindUserExists,
		apperr.KindEmailExists, apperr.KindHasBorrowed:
		return http.StatusConflict
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	case apperr.KindStorageConflict:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Decode reads the request body into v, returning an INVALID_REQUEST domain
// error on malformed input so handlers can pass it straight to Error.
func Decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Wrap(apperr.KindInvalidRequest, "malformed request body", err)
	}
	return nil
}
