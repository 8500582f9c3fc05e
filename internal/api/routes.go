package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(h.metrics.middleware)
	r.Use(middleware.Recoverer)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", tenantHeader},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health and metrics (no tenant required)
	r.Get("/health", h.health.HandleHealth)
	r.Get("/health/live", h.health.HandleLiveness)
	r.Get("/health/ready", h.health.HandleReadiness)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	// Gateway callbacks authenticate with the shared secret instead of a tenant.
	r.Post("/webhooks/gateway/status", h.HandleGatewayStatus)

	r.Route("/api", func(r chi.Router) {
		r.Use(requireTenant)

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", h.ListCampaigns)
			r.Post("/", h.CreateCampaign)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetCampaign)
				r.Delete("/", h.DeleteCampaign)
				r.Post("/start", h.StartCampaign)
				r.Post("/pause", h.PauseCampaign)
				r.Post("/resume", h.ResumeCampaign)
				r.Get("/stats", h.GetCampaignStats)
				r.Get("/messages", h.ListCampaignMessages)
			})
		})

		r.Route("/opt-outs", func(r chi.Router) {
			r.Get("/", h.ListOptOuts)
			r.Post("/", h.AddOptOut)
			r.Delete("/{phone}", h.RemoveOptOut)
		})
	})

	return r
}
