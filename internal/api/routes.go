package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignite/member-mailer/internal/pkg/httputil"
)

// RouteOptions carries the router settings that come from configuration.
type RouteOptions struct {
	AllowedOrigins []string
	// RSVPRateLimit caps /rsvp/respond requests per client IP per minute.
	RSVPRateLimit int
}

const rateLimitedPage = `<!DOCTYPE html><html><body><h1>Slow down</h1><p>Too many RSVP requests from your network. Please wait a minute and try again.</p></body></html>`

// SetupRoutes configures all routes.
func SetupRoutes(h *Handlers, opts RouteOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Public RSVP link target, limited per client IP.
	limit := opts.RSVPRateLimit
	if limit <= 0 {
		limit = 30
	}
	r.With(httprate.Limit(limit, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			httputil.HTML(w, http.StatusTooManyRequests, rateLimitedPage)
		}),
	)).Get("/rsvp/respond", h.RespondRSVP)

	r.Route("/api", func(r chi.Router) {
		r.Route("/email", func(r chi.Router) {
			r.Post("/queue", h.EnqueueEmail)
			r.Get("/queue", h.ListQueue)
			r.Get("/queue/{id}", h.GetQueueItem)

			r.Get("/quota", h.GetQuota)

			r.Route("/jobs", func(r chi.Router) {
				r.Post("/", h.CreateJob)
				r.Get("/", h.ListJobs)
				r.Get("/{id}", h.GetJob)
				r.Get("/{id}/recipients", h.ListJobRecipients)
				r.Post("/{id}/cancel", h.CancelJob)
				r.Post("/{id}/pause", h.PauseJob)
				r.Post("/{id}/resume", h.ResumeJob)
			})

			r.Post("/scheduled", h.CreateScheduledJob)
			r.Get("/scheduled", h.ListScheduledJobs)
		})

		r.Post("/events/{id}/reminders", h.ScheduleEventReminders)

		r.Post("/rsvp/tokens", h.GenerateToken)
		r.Get("/rsvp/tokens/{token}", h.ValidateToken)
	})

	return r
}
