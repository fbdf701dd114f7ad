/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in logs
  2. RealIP:     Client IP from proxy headers
  3. Logger:     logrus request logging (logging.RequestLogger)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. Metrics:    Prometheus request count/latency per route pattern
  6. CORS:       Cross-origin requests for the admin UI
  7. Auth:       Attaches the caller's Identity; never rejects on its own

ROUTE GROUPS:
  /healthz                     Health check (database ping)
  /metrics                     Prometheus scrape endpoint
  /api/auth/*                  Login, logout, current user
  /api/users                   User creation (super admin)
  /api/locations|contacts|categories|pledges   Directory
  /api/payments/*              Payments
  /api/solicitor-payments/*    Assign / unassign
  /api/solicitors/*            Solicitors and their bonus rules
  /api/bonus-rules/*           Rule update/delete
  /api/bonus-calculations/*    Calculations and payout
  /api/dashboard/*             Reports
  /api/scenarios/*             Demo scenarios (ENABLE_SCENARIOS only)

AUTHORIZATION:
  Handlers resolve the caller's location scope before touching the store,
  so anonymous calls fail with 401 and plain users with 403.

SEE ALSO:
  - handlers.go: Handler implementations
  - auth/middleware.go: Session resolution
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/donor-crm/auth"
	"github.com/warp/donor-crm/logging"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	if h.Metrics != nil {
		r.Use(h.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(auth.Middleware(h.Auth, h.Logger))

	r.Get("/healthz", h.Health.Handler())
	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics.Handler())
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Auth routes
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.Get("/me", h.Me)
		})
		r.Post("/users", h.CreateUser)

		// Directory routes
		r.Route("/locations", func(r chi.Router) {
			r.Get("/", h.ListLocations)
			r.Post("/", h.CreateLocation)
		})
		r.Route("/contacts", func(r chi.Router) {
			r.Get("/", h.ListContacts)
			r.Post("/", h.CreateContact)
			r.Get("/{id}", h.GetContact)
		})
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.ListCategories)
			r.Post("/", h.CreateCategory)
		})
		r.Route("/pledges", func(r chi.Router) {
			r.Get("/", h.ListPledges)
			r.Post("/", h.CreatePledge)
		})

		// Payment routes
		r.Route("/payments", func(r chi.Router) {
			r.Get("/", h.ListPayments)
			r.Post("/", h.CreatePayment)
			r.Get("/{id}", h.GetPayment)
		})

		// Assignment routes
		r.Route("/solicitor-payments", func(r chi.Router) {
			r.Get("/", h.ListSolicitorPayments)
			r.Post("/{paymentId}/assign", h.AssignSolicitor)
			r.Post("/{paymentId}/unassign", h.UnassignSolicitor)
		})

		// Solicitor routes
		r.Route("/solicitors", func(r chi.Router) {
			r.Get("/", h.ListSolicitors)
			r.Post("/", h.CreateSolicitor)
			r.Get("/{id}", h.GetSolicitor)
			r.Put("/{id}", h.UpdateSolicitor)
			r.Delete("/{id}", h.DeleteSolicitor)
			r.Get("/{id}/bonus-rules", h.ListBonusRules)
			r.Post("/{id}/bonus-rules", h.CreateBonusRule)
		})
		r.Route("/bonus-rules", func(r chi.Router) {
			r.Put("/{id}", h.UpdateBonusRule)
			r.Delete("/{id}", h.DeleteBonusRule)
		})
		r.Route("/bonus-calculations", func(r chi.Router) {
			r.Get("/", h.ListBonusCalculations)
			r.Post("/{id}/mark-paid", h.MarkBonusPaid)
		})

		// Dashboard routes
		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/summary", h.DashboardSummary)
			r.Get("/trend", h.PaymentTrend)
			r.Get("/solicitors", h.SolicitorPerformance)
		})

		// Scenario routes
		if h.EnableScenarios {
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
				r.Post("/reset", h.ResetDatabase)
			})
		}
	})

	return r
}
