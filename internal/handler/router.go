package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	custommiddleware "github.com/mmeshcher/helpmed-dispatch/internal/middleware"
	"github.com/mmeshcher/helpmed-dispatch/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса HelpMED.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	if h.metrics != nil {
		r.Use(custommiddleware.Metrics(h.metrics))
	}
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	adminOnly := custommiddleware.RequireRole(model.RoleAdmin)
	staff := custommiddleware.RequireRole(model.RoleAdmin, model.RoleAmbulance)

	r.Route("/api", func(r chi.Router) {
		r.With(custommiddleware.RateLimit(h.loginLimiter, h.logger)).Post("/auth/login", h.Login)
		r.Post("/auth/logout", h.Logout)

		r.Route("/registrations", func(r chi.Router) {
			r.Post("/", h.SubmitRegistration)

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.Middleware, adminOnly)
				r.Get("/", h.ListRegistrations)
				r.Post("/{id}/approve", h.ApproveRegistration)
				r.Post("/{id}/reject", h.RejectRegistration)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/me", h.Me)

			r.Route("/users", func(r chi.Router) {
				r.With(adminOnly).Get("/", h.ListUsers)
				r.Get("/{id}", h.GetUser)
				r.Get("/{id}/entitlement", h.GetEntitlement)
				r.With(adminOnly).Post("/{id}/deactivate", h.DeactivateUser)
				r.With(adminOnly).Post("/{id}/grants", h.GrantExtra)
			})

			r.Route("/companies", func(r chi.Router) {
				r.Use(adminOnly)
				r.Get("/", h.ListCompanies)
				r.Post("/{id}/grants", h.GrantCompanyServices)
			})

			r.Route("/emergencies", func(r chi.Router) {
				r.Post("/", h.RequestService)
				r.Get("/", h.ListEmergencies)
				r.Get("/{id}", h.GetEmergency)
				r.With(adminOnly).Post("/{id}/assign", h.AssignEmergency)
				r.With(adminOnly).Post("/{id}/eta", h.SetEstimatedArrival)
				r.With(staff).Post("/{id}/status", h.UpdateEmergencyStatus)
				r.With(staff).Post("/{id}/complete", h.CompleteEmergency)
			})

			r.Group(func(r chi.Router) {
				r.Use(adminOnly)
				r.Get("/transactions", h.ListTransactions)
				r.Post("/transactions", h.CreateTransaction)
				r.Get("/transactions/corrections", h.ListCorrections)
				r.Put("/transactions/{id}", h.UpdateTransaction)
				r.Delete("/transactions/{id}", h.DeleteTransaction)
				r.Get("/revenue/summary", h.RevenueSummary)
				r.Get("/admin/persistence/failures", h.PersistenceFailures)
			})
		})
	})

	if h.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	})

	return r
}
