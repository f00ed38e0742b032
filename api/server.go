/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the frontend
  5. Metrics:    Per-route request counters and latency (optional)

ROUTE GROUPS:
  /api/providers/*    Provider management, balances, rules, PTO config
  /api/services/*     Service management
  /api/assignments/*  Assignment CRUD through the conflict pipeline
  /api/rules/*        Availability rule editing
  /api/availability/* Bulk rule evaluation
  /api/pto/*          Leave request lifecycle
  /api/schedule/*     Bulk operations, templates application, history
  /api/templates/*    Week template CRUD
  /api/holidays       Observed department holidays
  /metrics            Prometheus scrape endpoint (when enabled)

SECURITY NOTE:
  No authentication middleware. The engine sits behind the department
  intranet proxy which handles auth.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions toggle the optional surfaces.
type RouterOptions struct {
	MetricsPath string // empty disables the scrape endpoint
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	if h.Metrics != nil {
		r.Use(h.Metrics.Middleware)
	}

	if h.Metrics != nil && opts.MetricsPath != "" {
		r.Get(opts.MetricsPath, promhttp.Handler().ServeHTTP)
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Provider routes
		r.Route("/providers", func(r chi.Router) {
			r.Get("/", h.ListProviders)
			r.Post("/", h.SaveProvider)
			r.Get("/{id}", h.GetProvider)
			r.Delete("/{id}", h.DeleteProvider)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/rules", h.ListRules)
			r.Get("/{id}/pto-config", h.GetPTOConfig)
			r.Put("/{id}/pto-config", h.SavePTOConfig)
		})

		// Service routes
		r.Route("/services", func(r chi.Router) {
			r.Get("/", h.ListServices)
			r.Post("/", h.SaveService)
			r.Get("/{id}", h.GetService)
			r.Delete("/{id}", h.DeleteService)
		})

		// Assignment routes
		r.Route("/assignments", func(r chi.Router) {
			r.Get("/", h.ListAssignments)
			r.Post("/", h.CreateAssignment)
			r.Get("/{id}", h.GetAssignment)
			r.Delete("/{id}", h.DeleteAssignment)
		})

		// Availability rule routes
		r.Route("/rules", func(r chi.Router) {
			r.Post("/", h.SaveRule)
			r.Post("/{id}/cycle", h.CycleRule)
			r.Delete("/{id}", h.DeleteRule)
		})
		r.Post("/availability/check", h.CheckAvailability)

		// PTO routes
		r.Route("/pto", func(r chi.Router) {
			r.Post("/validate", h.ValidatePTO)
			r.Route("/requests", func(r chi.Router) {
				r.Get("/", h.ListPTORequests)
				r.Post("/", h.SubmitPTORequest)
				r.Post("/{id}/approve", h.ApprovePTORequest)
				r.Post("/{id}/deny", h.DenyPTORequest)
				r.Delete("/{id}", h.CancelPTORequest)
			})
			r.Get("/role-defaults", h.ListRoleDefaults)
			r.Put("/role-defaults", h.SaveRoleDefault)
		})

		// Schedule operation routes
		r.Route("/schedule", func(r chi.Router) {
			r.Post("/bulk", h.BulkOperation)
			r.Post("/alternating", h.ApplyAlternating)
			r.Route("/history", func(r chi.Router) {
				r.Get("/", h.ListHistory)
				r.Post("/{id}/undo", h.UndoOperation)
				r.Post("/{id}/redo", h.RedoOperation)
			})
		})

		// Week template routes
		r.Route("/templates", func(r chi.Router) {
			r.Get("/", h.ListTemplates)
			r.Post("/", h.SaveTemplate)
			r.Get("/{id}", h.GetTemplate)
			r.Delete("/{id}", h.DeleteTemplate)
		})

		// Holiday routes
		r.Get("/holidays", h.ListHolidays)
	})

	return r
}
