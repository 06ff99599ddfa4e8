package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/meridianwealth/IRR-Engine-Backend/internal/api/handlers"
	custommiddleware "github.com/meridianwealth/IRR-Engine-Backend/internal/api/middleware"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/config"
	"github.com/meridianwealth/IRR-Engine-Backend/internal/service"
)

// NewRouter creates and configures the HTTP router
func NewRouter(systemService *service.SystemService, irrService *service.IRRService, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS middleware
	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// System namespace
		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(systemService)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
		})

		r.Route("/irr/{level}/{id}", func(r chi.Router) {
			irrHandler := handlers.NewIRRHandler(irrService)
			r.Use(custommiddleware.ValidateEntityPathMiddleware)

			r.Get("/", irrHandler.GetIRR)
			r.Get("/owner/{ownerId}", irrHandler.GetOwnerIRR)
			r.Get("/history", irrHandler.GetHistory)
			r.Post("/invalidate", irrHandler.Invalidate)

			// Administrative override, API-key guarded
			r.With(custommiddleware.NewAPIKey(cfg.Admin.APIKey)).
				Post("/recompute", irrHandler.ForceRecompute)
		})
	})

	return r
}
