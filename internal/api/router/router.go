package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/leadcrm-booking/internal/appointments"
	"github.com/wolfman30/leadcrm-booking/internal/availability"
	"github.com/wolfman30/leadcrm-booking/internal/booking"
	httpmiddleware "github.com/wolfman30/leadcrm-booking/internal/http/middleware"
	"github.com/wolfman30/leadcrm-booking/internal/leads"
	"github.com/wolfman30/leadcrm-booking/internal/scheduling"
	"github.com/wolfman30/leadcrm-booking/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	LeadsHandler        *leads.Handler
	SchedulingHandler   *scheduling.Handler
	AvailabilityHandler *availability.Handler
	AppointmentsHandler *appointments.Handler
	BookingHandler      *booking.Handler
	AdminAuthSecret     string
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string
	RateLimiter         *httpmiddleware.RateLimiter

	// Readiness probes keyed by dependency name (postgres, redis).
	Checks map[string]func(context.Context) error
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Group(func(public chi.Router) {
		public.Get("/health", health(cfg.Checks))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Web capture forms post with the workspace header and no dashboard token.
	if cfg.LeadsHandler != nil {
		r.Group(func(tenant chi.Router) {
			tenant.Use(httpmiddleware.RequireWorkspaceHeader)
			if cfg.RateLimiter != nil {
				tenant.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
			}
			tenant.Post("/leads/web", cfg.LeadsHandler.CreateWebLead)
		})
	}

	if cfg.AdminAuthSecret != "" {
		r.Route("/workspaces/{workspaceID}", func(ws chi.Router) {
			ws.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			ws.Use(httpmiddleware.RequireWorkspaceAccess)

			if cfg.SchedulingHandler != nil {
				ws.Mount("/scheduling", cfg.SchedulingHandler.Routes())
			}
			if cfg.AvailabilityHandler != nil {
				ws.Mount("/availability", cfg.AvailabilityHandler.Routes())
			}
			if cfg.AppointmentsHandler != nil {
				ws.Mount("/appointments", cfg.AppointmentsHandler.Routes())
			}
			if cfg.BookingHandler != nil {
				ws.Mount("/negotiations", cfg.BookingHandler.Routes())
			}
			if cfg.LeadsHandler != nil {
				ws.Mount("/leads", cfg.LeadsHandler.Routes())
			}
		})
	}

	return r
}

func health(checks map[string]func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := map[string]string{"status": "ok"}
		code := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				resp[name] = err.Error()
				resp["status"] = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			resp[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
