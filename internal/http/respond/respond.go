// Package respond writes JSON bodies and maps engine errors to status codes.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/treevu/internal/account"
	"github.com/MrJamesThe3rd/treevu/internal/ewa"
	"github.com/MrJamesThe3rd/treevu/internal/expense"
	"github.com/MrJamesThe3rd/treevu/internal/importer"
	"github.com/MrJamesThe3rd/treevu/internal/merchant"
	"github.com/MrJamesThe3rd/treevu/internal/report"
)

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Status returns the HTTP status for err: 404 for unknown resources, 409 for
// conflicts with current state, 422 for rule violations, 400 for malformed
// input and 500 otherwise.
func Status(err error) int {
	switch {
	case errors.Is(err, account.ErrNotFound),
		errors.Is(err, expense.ErrNotFound),
		errors.Is(err, ewa.ErrNotFound),
		errors.Is(err, merchant.ErrOfferNotFound):
		return http.StatusNotFound
	case errors.Is(err, account.ErrExists),
		errors.Is(err, ewa.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, ewa.ErrExceedsAvailableBalance),
		errors.Is(err, ewa.ErrBelowFee),
		errors.Is(err, merchant.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, expense.ErrInvalidAmount),
		errors.Is(err, expense.ErrInvalidCategory),
		errors.Is(err, account.ErrInvalidSettings),
		errors.Is(err, importer.ErrUnknownFormat),
		errors.Is(err, report.ErrUnknownRole),
		errors.Is(err, report.ErrAccountRequired):
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}

// Error writes err with its mapped status. Internal errors are logged and
// their text is not exposed.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := Status(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		http.Error(w, "internal error", status)

		return
	}

	http.Error(w, err.Error(), status)
}

// Money renders an amount as a JSON number with two decimals.
func Money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}
