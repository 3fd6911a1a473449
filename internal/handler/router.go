package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/notesd/notesd/internal/auth"
	"github.com/notesd/notesd/internal/cache"
	"github.com/notesd/notesd/internal/metrics"
	"github.com/notesd/notesd/internal/middleware"
	"github.com/notesd/notesd/internal/service"
)

// RateLimits holds the bucket for each route group. Zero values disable limiting.
type RateLimits struct {
	Auth   cache.Limit
	API    cache.Limit
	Public cache.Limit
}

// RouterConfig wires services and middleware into the HTTP surface.
type RouterConfig struct {
	Logger *slog.Logger

	Notes    *service.NoteService
	Public   *service.PublicService
	Accounts *service.AccountService
	Tokens   *auth.TokenService
	Resolver middleware.IdentityResolver

	// Limiter is nil when Redis is not configured.
	Limiter    middleware.Limiter
	RateLimits RateLimits

	Recorder metrics.Recorder
	Metrics  metrics.Snapshotter

	DB    HealthChecker
	Cache HealthChecker

	CORS          middleware.CORSConfig
	Security      middleware.SecurityConfig
	SecureCookies bool
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	h := New()
	healthHandler := NewHealthHandler(cfg.DB, cfg.Cache, logger)
	metricsHandler := NewMetricsHandler(cfg.Metrics)
	authHandler := NewAuthHandler(cfg.Accounts, cfg.Tokens, cfg.SecureCookies, logger)
	noteHandler := NewNoteHandler(cfg.Notes, logger)
	publicHandler := NewPublicHandler(cfg.Public, logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(cfg.Security))
	r.Use(middleware.CORS(cfg.CORS))
	if cfg.Security.MaxRequestBodySize > 0 {
		r.Use(middleware.MaxBodySize(cfg.Security.MaxRequestBodySize))
	}

	// Health and metrics endpoints (no auth required)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/health", healthHandler.Health)
	r.Get("/metrics", metricsHandler.Metrics)

	r.Get("/", h.Hello)

	limit := func(scope string, l cache.Limit, key middleware.KeyFunc) func(http.Handler) http.Handler {
		return middleware.RateLimit(middleware.RateLimitConfig{
			Logger:   logger,
			Limiter:  cfg.Limiter,
			Recorder: recorder,
			Scope:    scope,
			Limit:    l,
			Key:      key,
		})
	}
	requireAccess := middleware.Authenticate(middleware.AuthConfig{
		Logger:   logger,
		Resolver: cfg.Resolver,
		Kind:     auth.TokenAccess,
	})
	requireRefresh := middleware.Authenticate(middleware.AuthConfig{
		Logger:   logger,
		Resolver: cfg.Resolver,
		Kind:     auth.TokenRefresh,
	})

	r.Route("/auth", func(r chi.Router) {
		r.Use(middleware.RequireJSON)

		r.Group(func(r chi.Router) {
			r.Use(limit("auth", cfg.RateLimits.Auth, middleware.KeyByIP))
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})

		r.Post("/logout", authHandler.Logout)
		r.With(requireRefresh).Post("/refresh", authHandler.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(requireAccess)
			r.Get("/me", authHandler.Me)
			r.Delete("/me", authHandler.DeleteMe)
		})
	})

	r.Route("/api/notes", func(r chi.Router) {
		r.Use(requireAccess)
		r.Use(limit("api", cfg.RateLimits.API, middleware.KeyByUser))
		r.Use(middleware.RequireJSON)

		r.Get("/", noteHandler.List)
		r.Post("/", noteHandler.Create)
		r.Get("/{id}", noteHandler.Get)
		r.Put("/{id}", noteHandler.Update)
		r.Patch("/{id}", noteHandler.Update)
		r.Delete("/{id}", noteHandler.Delete)
		r.Post("/{id}/share", noteHandler.Share)
		r.Delete("/{id}/share", noteHandler.Unshare)
	})

	r.With(limit("public", cfg.RateLimits.Public, middleware.KeyByIP)).Get("/public/{slug}", publicHandler.Get)

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
