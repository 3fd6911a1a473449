// Package main is the entrypoint for the notesd API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/notesd/notesd/internal/auth"
	"github.com/notesd/notesd/internal/cache"
	"github.com/notesd/notesd/internal/config"
	"github.com/notesd/notesd/internal/handler"
	"github.com/notesd/notesd/internal/metrics"
	"github.com/notesd/notesd/internal/middleware"
	"github.com/notesd/notesd/internal/repository"
	"github.com/notesd/notesd/internal/repository/sqlite"
	"github.com/notesd/notesd/internal/server"
	"github.com/notesd/notesd/internal/service"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	// Initialize storage
	store, err := openStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database", slog.String("database_url", redactURL(cfg.DatabaseURL)))

	// Redis is optional
	var cacheClient *cache.Cache
	if cfg.RedisURL != "" {
		cacheClient, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			_ = store.Close()
			os.Exit(1)
		}
		logger.Info("connected to Redis")
	} else {
		logger.Warn("REDIS_URL not set, rate limiting and token revocation are disabled")
	}

	// Initialize services
	recorder := metrics.NewInMemory()
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	routerCfg := handler.RouterConfig{
		Logger:   logger,
		Notes:    service.NewNoteService(store, cfg.PublicBaseURL, recorder, logger),
		Public:   service.NewPublicService(store, recorder),
		Recorder: recorder,
		Metrics:  recorder,
		DB:       store,
		Tokens:   tokens,
		CORS:     corsConfig(cfg),
		Security: middleware.SecurityConfig{
			IsDevelopment:      cfg.IsDevelopment(),
			MaxRequestBodySize: cfg.MaxRequestBodySize,
		},
		SecureCookies: cfg.SecureCookies(),
	}

	hasher := auth.NewPasswordHasher()
	if cacheClient != nil {
		routerCfg.Accounts = service.NewAccountService(store, hasher, tokens, cacheClient, recorder, logger)
		routerCfg.Resolver = auth.NewResolver(tokens, store, cacheClient)
		routerCfg.Cache = cacheClient
		if cfg.RateLimitEnabled {
			routerCfg.Limiter = cacheClient
			routerCfg.RateLimits = handler.RateLimits{
				Auth:   cache.PerMinute(cfg.RateLimitAuthPerMin, cfg.RateLimitAuthBurst),
				API:    cache.PerMinute(cfg.RateLimitAPIPerMin, cfg.RateLimitAPIBurst),
				Public: cache.PerSecond(cfg.RateLimitPublicRPS, cfg.RateLimitPublicBurst),
			}
		}
	} else {
		routerCfg.Accounts = service.NewAccountService(store, hasher, tokens, nil, recorder, logger)
		routerCfg.Resolver = auth.NewResolver(tokens, store, nil)
	}

	r := handler.NewRouter(routerCfg)

	// Create and run server
	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Registered first, closed last
	srv.OnShutdown("store", func(ctx context.Context) error {
		return store.Close()
	})
	if cacheClient != nil {
		srv.OnShutdown("redis", func(ctx context.Context) error {
			return cacheClient.Close()
		})
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"public_base_url", cfg.PublicBaseURL,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// openStore picks the storage backend from the DSN scheme.
func openStore(ctx context.Context, databaseURL string) (service.Store, error) {
	if sqlite.IsDSN(databaseURL) {
		return sqlite.Open(ctx, databaseURL)
	}
	return repository.New(ctx, databaseURL)
}

func corsConfig(cfg *config.Config) middleware.CORSConfig {
	c := middleware.DefaultCORSConfig()
	c.AllowedOrigins = cfg.GetCORSAllowedOrigins()
	return c
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s&]+`)

// redactURL strips the password from a DSN before it is logged.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	q := parsed.Query()
	if q.Has("password") {
		q.Set("password", "redacted")
		parsed.RawQuery = q.Encode()
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
