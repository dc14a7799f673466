// Package router wires handlers and middleware into the HTTP surface.
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/medconnect/scheduling-api/internal/api/respond"
	"github.com/medconnect/scheduling-api/internal/appointments"
	"github.com/medconnect/scheduling-api/internal/doctors"
	httpmiddleware "github.com/medconnect/scheduling-api/internal/http/middleware"
	"github.com/medconnect/scheduling-api/internal/identity"
	"github.com/medconnect/scheduling-api/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger              *logging.Logger
	DoctorsHandler      *doctors.Handler
	AppointmentsHandler *appointments.Handler
	MetricsHandler      http.Handler
	SessionSecret       string
	CORSAllowedOrigins  []string
	RateLimitPerSecond  float64
	RateLimitBurst      int
	RequestTimeout      time.Duration

	// HealthPing checks the store; nil means the process answer suffices.
	HealthPing func(ctx context.Context) error
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	if cfg.RateLimitPerSecond > 0 {
		r.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
	}
	r.Use(httpmiddleware.SessionAuth(cfg.SessionSecret))

	// Public endpoints.
	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.HealthPing))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		public.Get("/api/doctors", cfg.DoctorsHandler.ListPublic)
		public.Get("/api/doctors/{doctorID}", cfg.DoctorsHandler.GetPublic)
		public.Get("/api/doctors/{doctorID}/availability", cfg.DoctorsHandler.GetAvailability)
	})

	// Any authenticated role.
	r.Group(func(authed chi.Router) {
		authed.Use(httpmiddleware.RequireRole(identity.RolePatient, identity.RoleDoctor, identity.RoleAdmin))
		authed.Get("/api/appointments/slots", cfg.AppointmentsHandler.Slots)
		authed.Get("/api/appointments", cfg.AppointmentsHandler.List)
		authed.Post("/api/appointments", cfg.AppointmentsHandler.Create)
		authed.Patch("/api/appointments/{appointmentID}", cfg.AppointmentsHandler.UpdateStatus)
	})

	// Admin only.
	r.Group(func(admin chi.Router) {
		admin.Use(httpmiddleware.RequireRole(identity.RoleAdmin))
		admin.Get("/api/admin/doctors", cfg.DoctorsHandler.AdminList)
		admin.Post("/api/admin/doctors", cfg.DoctorsHandler.AdminCreate)
		admin.Get("/api/admin/doctors/{doctorID}", cfg.DoctorsHandler.AdminGet)
		admin.Patch("/api/admin/doctors/{doctorID}", cfg.DoctorsHandler.AdminUpdate)
		admin.Patch("/api/admin/doctors/{doctorID}/status", cfg.DoctorsHandler.AdminSetStatus)
		admin.Put("/api/doctors/{doctorID}/availability", cfg.DoctorsHandler.PutAvailability)
		admin.Get("/api/admin/appointments/export", cfg.AppointmentsHandler.ExportCSV)
	})

	return r
}

func healthHandler(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				respond.Error(w, http.StatusServiceUnavailable, respond.CodeStoreUnavailable, "store unreachable")
				return
			}
		}
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
