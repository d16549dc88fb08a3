package api

import (
	"hydro-monitor/internal/auth"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the full request surface. Reads require an active
// account, every mutation requires admin, register/login are open.
func NewRouter(h *Handler, am *auth.Manager) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(am.Authenticate)

		r.Get("/auth/me", h.Me)
		r.Get("/points", h.ListPoints)
		r.Get("/points/{code}", h.PointDetail)
		r.Get("/measurements/latest", h.AllLatestMeasurements)
		r.Get("/measurements/{code}", h.ListMeasurements)
		r.Get("/measurements/{code}/latest", h.LatestMeasurement)
		r.Get("/measurements/{code}/stats", h.MeasurementStats)
		r.Get("/measurements/{code}/range", h.MeasurementsRange)
		r.Get("/measurements/{code}/compare", h.CompareMeasurements)
		r.Get("/readings/{family}/{code}", h.ListReadings)
		r.Get("/readings/{family}/{code}/latest", h.LatestReading)
		r.Post("/alerts/check", h.CheckAlerts)
	})

	r.Group(func(r chi.Router) {
		r.Use(am.RequireAdmin)

		r.Post("/points", h.CreatePoint)
		r.Put("/points/{code}", h.UpdatePoint)
		r.Delete("/points/{code}", h.DeletePoint)
		r.Post("/measurements", h.CreateMeasurement)
		r.Post("/measurements/batch", h.CreateMeasurementsBatch)
		r.Post("/readings/{family}", h.CreateReading)
		r.Get("/auth/users", h.ListUsers)
		r.Post("/auth/users", h.CreateUser)
		r.Put("/auth/users/{id}", h.UpdateUser)
		r.Delete("/auth/users/{id}", h.DeleteUser)
	})

	return r
}
