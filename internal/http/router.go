package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"timelens/internal/http/handlers"
	"timelens/internal/infra"
	"timelens/internal/middleware"
)

// Options carries the router tunables.
type Options struct {
	Logger          infra.Logger
	AllowedOrigins  []string
	DefaultLocale   string
	CountryLookup   middleware.CountryLookup
	RateLimitPerMin int
}

// NewRouter assembles the public route table.
func NewRouter(app *handlers.App, opts Options) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP, chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(opts.Logger))
	r.Use(middleware.CORS(opts.AllowedOrigins))
	r.Use(middleware.Locale(opts.DefaultLocale, opts.CountryLookup))
	if opts.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
	}

	r.Get("/healthz", app.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Identity)

		r.Post("/intents", app.SubmitIntent)
		r.Post("/source", app.SetSource)
		r.Delete("/source", app.ClearSource)
		r.Get("/jobs/{run_id}", app.JobStatus)
		r.Get("/quota", app.Quota)
		r.Post("/flags/refresh", app.RefreshFlags)
	})

	return r
}
