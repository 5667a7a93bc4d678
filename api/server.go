/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/debtors/*        Debtor ledger and transactions
  /api/interest/*       Interest rules and bindings
  /api/contracts/*      Recurring payment contracts
  /api/incentives/*     Early payment incentives
  /api/splits/*         Multi-party debt splits
  /api/admin/*          Admin operations
  /healthz              Liveness probe
  /metrics              Prometheus metrics

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.
  Put this behind a reverse proxy that handles auth before exposing it.

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

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
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

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Debtor routes
		r.Route("/debtors", func(r chi.Router) {
			r.Get("/", h.ListDebtors)
			r.Post("/", h.CreateDebtor)
			r.Get("/{id}", h.GetDebtor)
			r.Put("/{id}", h.UpdateDebtor)
			r.Delete("/{id}", h.DeleteDebtor)
			r.Post("/{id}/lock", h.LockDebtor)
			r.Post("/{id}/unlock", h.UnlockDebtor)
			r.Post("/{id}/transactions", h.AddTransaction)
			r.Put("/{id}/transactions/{txID}", h.EditTransaction)
			r.Delete("/{id}/transactions/{txID}", h.DeleteTransaction)
			r.Post("/{id}/interest", h.BindInterest)
			r.Delete("/{id}/interest", h.UnbindInterest)
		})

		// Interest routes
		r.Route("/interest", func(r chi.Router) {
			r.Get("/rules", h.ListInterestRules)
			r.Post("/rules", h.CreateInterestRule)
			r.Put("/rules/{id}/active", h.SetInterestRuleActive)
			r.Get("/bindings", h.ListBindings)
		})

		// Contract routes
		r.Route("/contracts", func(r chi.Router) {
			r.Get("/", h.ListContracts)
			r.Post("/", h.CreateContract)
			r.Get("/{id}", h.GetContract)
			r.Post("/{id}/execute", h.ExecuteContractPayment)
			r.Post("/{id}/pause", h.PauseContract)
			r.Post("/{id}/resume", h.ResumeContract)
		})

		// Incentive routes
		r.Route("/incentives", func(r chi.Router) {
			r.Get("/rules", h.ListIncentiveRules)
			r.Post("/rules", h.CreateIncentiveRule)
			r.Post("/apply", h.ApplyIncentive)
			r.Post("/{id}/pay", h.MarkIncentivePaid)
			r.Get("/applications", h.ListIncentiveApplications)
		})

		// Split routes
		r.Route("/splits", func(r chi.Router) {
			r.Get("/", h.ListSplits)
			r.Post("/", h.CreateSplit)
			r.Get("/{id}", h.GetSplit)
			r.Post("/{id}/settle", h.SettleSplit)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/tick", h.RunTick)
		})
	})

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
