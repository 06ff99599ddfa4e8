// Package middleware provides HTTP middleware for request validation and processing.
package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridianwealth/IRR-Engine-Backend/internal/api/response"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/validation"
)

// ValidateEntityPathMiddleware validates the {level} and {id} URL parameters
// shared by all IRR routes. Returns 400 Bad Request when the level is not
// fund/portfolio/company or the ID is not a valid UUID, so handlers can
// assume well-formed path parameters.
func ValidateEntityPathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := validation.ValidateLevel(chi.URLParam(r, "level")); err != nil {
			response.RespondError(w, http.StatusBadRequest, "invalid entity level", err.Error())
			return
		}

		if err := validation.ValidateUUID(chi.URLParam(r, "id")); err != nil {
			response.RespondError(w, http.StatusBadRequest, "invalid entity ID", err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}
