package handlers

import (
	"errors"
	"net/http"

	"github.com/meridianwealth/IRR-Engine-Backend/internal/api/response"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/apperrors"
)

// respondJSON sends a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	response.RespondJSON(w, status, data)
}

// respondServiceError maps engine errors onto HTTP status codes and sends a
// structured error response. The taxonomy:
//
//	400 malformed level/ID/date
//	404 unknown entity or no result
//	409 ownership invariant violation (the affected product is named in details)
//	422 insufficient data (no valuation yet)
//	500 everything else
//
// Convergence failures never reach this function: they are encoded as a
// record with failed status, which the caller renders as a normal response.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidLevel),
		errors.Is(err, apperrors.ErrInvalidUUID),
		errors.Is(err, apperrors.ErrInvalidDate),
		errors.Is(err, apperrors.ErrEmptyID):
		response.RespondError(w, http.StatusBadRequest, "invalid request", err.Error())
	case errors.Is(err, apperrors.ErrFundNotFound),
		errors.Is(err, apperrors.ErrPortfolioNotFound),
		errors.Is(err, apperrors.ErrCompanyNotFound),
		errors.Is(err, apperrors.ErrResultNotFound),
		errors.Is(err, apperrors.ErrOwnershipNotFound):
		response.RespondError(w, http.StatusNotFound, "not found", err.Error())
	case errors.Is(err, apperrors.ErrOwnershipInvariantViolation):
		response.RespondError(w, http.StatusConflict, "ownership invariant violation", err.Error())
	case errors.Is(err, apperrors.ErrInsufficientData):
		response.RespondError(w, http.StatusUnprocessableEntity, "insufficient data", err.Error())
	default:
		response.RespondError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}
