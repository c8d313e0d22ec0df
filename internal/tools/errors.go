package tools

import (
	"errors"
	"net/http"

	"github.com/stockpile-dev/stockpile/internal/catalog"
	"github.com/stockpile-dev/stockpile/internal/filter"
	"github.com/stockpile-dev/stockpile/internal/platform/httpx"
)

// respondError maps tool and domain errors onto RFC7807 problems.
// Validation failures are the caller's fault; a StoreError is the
// store's and reports as unavailability.
func respondError(w http.ResponseWriter, err error) {
	var (
		unknownTool *UnknownToolError
		badArgs     *ArgumentError
		store       *catalog.StoreError
	)
	switch {
	case errors.As(err, &badArgs), filter.IsValidationError(err):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.As(err, &unknownTool):
		httpx.Problem(w, http.StatusNotFound, "Unknown Tool", err.Error())
	case errors.Is(err, catalog.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, catalog.ErrStockConflict):
		httpx.Problem(w, http.StatusConflict, "Stock Conflict", err.Error())
	case errors.Is(err, ErrNoToken):
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, ErrBadToken):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.As(err, &store):
		httpx.Problem(w, http.StatusServiceUnavailable, "Store Unavailable", err.Error())
	default:
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// outcomeFor labels a call result for metrics.
func outcomeFor(err error) string {
	var (
		unknownTool *UnknownToolError
		badArgs     *ArgumentError
		store       *catalog.StoreError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &badArgs), filter.IsValidationError(err):
		return "invalid"
	case errors.As(err, &unknownTool), errors.Is(err, catalog.ErrNotFound):
		return "not_found"
	case errors.Is(err, catalog.ErrStockConflict):
		return "conflict"
	case errors.As(err, &store):
		return "unavailable"
	default:
		return "error"
	}
}
