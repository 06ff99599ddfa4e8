package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/meridianwealth/IRR-Engine-Backend/internal/api/response"
)

// NewAPIKey returns a middleware that guards administrative routes with the
// configured X-API-Key header. An empty configured key disables the routes
// entirely rather than leaving them open.
func NewAPIKey(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				response.RespondError(w, http.StatusForbidden, "administrative API disabled", "no API key configured")
				return
			}

			provided := r.Header.Get("X-API-Key")
			if provided == "" {
				response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Missing API key")
				return
			}

			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				response.RespondError(w, http.StatusUnauthorized, "unauthorized", "Invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
