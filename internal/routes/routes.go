package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AnshRaj112/moodiary-backend/internal/config"
	"github.com/AnshRaj112/moodiary-backend/internal/handlers"
	"github.com/AnshRaj112/moodiary-backend/internal/middleware"
)

// Deps carries everything the router needs. Redis may be nil, which turns off
// the per-user write limit.
type Deps struct {
	Config   *config.Config
	Log      *zap.Logger
	Redis    *redis.Client
	Sessions middleware.SessionValidator

	Auth      *handlers.AuthHandler
	Me        *handlers.MeHandler
	Entries   *handlers.EntryHandler
	Uploads   *handlers.UploadHandler
	Quotes    *handlers.QuoteHandler
	Dashboard *handlers.DashboardHandler
	Events    *handlers.EventsHandler
}

// NewRouter builds the HTTP router.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(d.Config.AllowedOrigins))
	if d.Config.IsProduction() {
		for _, mw := range middleware.ProductionSecurity(d.Config.AllowedHost) {
			r.Use(mw)
		}
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/auth/signup", d.Auth.Signup)
	r.Post("/api/auth/signin", d.Auth.Signin)
	// Authenticates itself so browsers can pass ?token=.
	r.Get("/ws/events", d.Events.Stream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(d.Sessions))

		r.Post("/api/auth/refresh", d.Auth.Refresh)
		r.Post("/api/auth/signout", d.Auth.Signout)

		r.Get("/api/me", d.Me.Get)
		r.Put("/api/me/preferences", d.Me.UpdatePreferences)
		r.Put("/api/me/pin", d.Me.SetPin)
		r.Post("/api/me/pin/verify", d.Me.VerifyPin)

		r.Get("/api/dashboard", d.Dashboard.Get)
		r.Get("/api/quotes/random", d.Quotes.Random)

		r.Route("/api/entries", func(r chi.Router) {
			r.Get("/", d.Entries.ListMonth)
			r.Get("/recent", d.Entries.Recent)
			r.Get("/{id}", d.Entries.Get)

			r.Group(func(r chi.Router) {
				r.Use(middleware.WriteRateLimit(d.Redis, d.Config.WriteRateLimit))
				r.Post("/", d.Entries.Create)
				r.Put("/{id}", d.Entries.Update)
				r.Post("/{id}/images", d.Uploads.Image)
				r.Post("/{id}/drawing", d.Uploads.Drawing)
			})
		})
	})

	return r
}
