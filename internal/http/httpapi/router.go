package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"portraitstudio/internal/http/handlers"
	"portraitstudio/internal/middleware"
)

// RouterOptions configures the cross-cutting middleware.
type RouterOptions struct {
	Logger          zerolog.Logger
	AllowedOrigins  []string
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(opts.Logger),
		chimw.Recoverer,
		middleware.CORS(opts.AllowedOrigins),
	)

	// Provider-facing stages are limited per client.
	limited := middleware.RateLimit(opts.RateLimitPerMin, time.Minute, middleware.ClientIP)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Get("/catalog", app.Catalog)
		r.Get("/policies/{name}", app.Policy)

		r.Post("/sessions", app.SessionCreate)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", app.SessionGet)
			r.Delete("/", app.SessionDelete)

			r.Post("/photo", app.PhotoUpload)
			r.Delete("/photo", app.PhotoDelete)
			r.Put("/style", app.StyleSelect)

			r.With(limited).Post("/checkout", app.CheckoutOpen)
			r.Delete("/checkout", app.CheckoutCancel)
			r.Post("/checkout/callback", app.CheckoutCallback)
			r.With(limited).Post("/refund", app.Refund)
			r.Post("/reset", app.Reset)

			r.Get("/source", app.SourceImage)
			r.Get("/result", app.ResultImage)
			r.Get("/download", app.Download)
			r.Get("/events", app.Events)
		})
	})

	return r
}
