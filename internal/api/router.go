package api

import (
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/go-chi/chi/v5"

	"github.com/leadflow/leadflow/internal/analytics"
	"github.com/leadflow/leadflow/internal/api/handler"
	"github.com/leadflow/leadflow/internal/api/middleware"
	"github.com/leadflow/leadflow/internal/assignment"
	"github.com/leadflow/leadflow/internal/roster"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	DBPinger    handler.DBPinger
	Version     string
	Service     *assignment.Service
	Lifecycle   *assignment.Lifecycle
	Store       assignment.Repository
	Roster      roster.Repository
	Analytics   analytics.Repository
	OverdueDays int
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)

	healthHandler := handler.NewHealthHandler(deps.DBPinger, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)

	assignmentHandler := handler.NewAssignmentHandler(deps.Service, deps.Lifecycle, deps.Store, deps.OverdueDays)
	analyticsHandler := handler.NewAnalyticsHandler(deps.Analytics, deps.OverdueDays)
	rosterHandler := handler.NewRosterHandler(deps.Roster)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Identity)

		r.Route("/assignments", func(r chi.Router) {
			r.Post("/auto-assign", assignmentHandler.AutoAssign)
			r.Post("/assign", assignmentHandler.Assign)
			r.Post("/reassign", assignmentHandler.Reassign)
			r.Put("/bulk-reassign", assignmentHandler.BulkReassign)
			r.Get("/overdue", assignmentHandler.Overdue)
			r.Get("/analytics", analyticsHandler.Overview)
			r.Get("/analytics/workload-balance", analyticsHandler.WorkloadBalance)
			r.Get("/analytics/performance-report", analyticsHandler.PerformanceReport)
			r.Get("/history/{leadId}", assignmentHandler.History)
			r.Get("/user/{userId}", assignmentHandler.UserAssignments)
			r.Get("/status/{status}", assignmentHandler.ByStatus)
			r.Post("/{id}/status", assignmentHandler.TransitionStatus)
			r.Get("/{id}/status-history", assignmentHandler.StatusHistory)
		})

		r.Get("/team-members", rosterHandler.List)
	})

	return r
}
