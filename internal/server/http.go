package server

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/redis/go-redis/v9"

	"github.com/eduyeet/authgate/internal/cache"
	"github.com/eduyeet/authgate/internal/config"
	"github.com/eduyeet/authgate/internal/database"
	"github.com/eduyeet/authgate/internal/domain/session"
	"github.com/eduyeet/authgate/internal/domain/token"
	"github.com/eduyeet/authgate/internal/domain/user"
	"github.com/eduyeet/authgate/internal/domain/verification"
	"github.com/eduyeet/authgate/internal/migrations"
	"github.com/eduyeet/authgate/internal/utils"
)

// Start initializes logging, loads the signing secret, connects to the database
// and Redis, runs migrations, registers routes and starts listening on the
// configured address. It returns an error if any startup step fails.
func Start(cfg *config.Config, env *config.Environment) error {
	initLogger(cfg.Logging.Level)
	slog.Info("Environment loaded", "environment", env.Environment.String())

	key, err := token.LoadSecret(env.JWTSecret, cfg.Auth.SecretJWKPath)
	if err != nil {
		slog.Error("Signing secret is not available", "error", err)
		return err
	}

	db, err := database.ConnectDB(cfg.Database, cfg.Logging.Level)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		return err
	}
	defer func() { _ = database.Close(db) }()
	slog.Info("Database connected successfully")

	if err := migrations.RunMigrations(cfg); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return err
	}
	slog.Info("Migrations completed successfully")

	var revocations session.RevocationCache
	if cfg.Redis.Enabled() {
		var rdb *redis.Client
		rdb, err = cache.ConnectRedis(&cfg.Redis)
		if err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			return err
		}
		defer func() { _ = rdb.Close() }()
		revocations = cache.NewTokenRevocationCache(rdb)
	} else {
		slog.Warn("Redis is not configured, revocations are checked against the database only")
	}

	services, err := NewServices(cfg, key, Repositories{
		Users:         user.NewRepository(db),
		Sessions:      session.NewRepository(db),
		Verifications: verification.NewRepository(db),
	}, revocations)
	if err != nil {
		return err
	}

	app := NewApp(cfg, env, services)

	addr := cfg.Server.Address()
	slog.Info("Server starting",
		"address", addr,
		"app", cfg.App.Name,
		"version", cfg.App.Version,
	)
	if err := app.Listen(addr); err != nil {
		slog.Error("Failed to start server", "error", err)
		return err
	}

	return nil
}

// NewApp configures the Fiber app with security middleware, the request gate
// and all routes.
func NewApp(cfg *config.Config, env *config.Environment, services *Services) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		BodyLimit:    1 * 1024 * 1024, // 1MB
		ProxyHeader:  cfg.Server.ProxyHeader,
		ErrorHandler: errorHandler,
	})

	// Use Helmet for security headers
	app.Use(helmet.New())

	// Configure Rate Limiting
	if cfg.Server.RateLimit.Max > 0 {
		app.Use(limiter.New(limiter.Config{
			Next: func(c *fiber.Ctx) bool {
				return isInternalRoute(c.Path())
			},
			Max:        cfg.Server.RateLimit.Max,
			Expiration: time.Duration(cfg.Server.RateLimit.Expiration) * time.Second,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return utils.ErrorResponse(c, utils.ErrTooManyRequests)
			},
		}))
	}

	// Configure CORS
	if len(cfg.Server.AllowedOrigins) > 0 {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     strings.Join(cfg.Server.AllowedOrigins, ","),
			AllowMethods:     "GET,POST,OPTIONS",
			AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
			AllowCredentials: true,
			ExposeHeaders:    "Content-Length",
			MaxAge:           3600,
		}))
	}

	SetupRoutes(app, cfg, env, services)
	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	var apiErr *utils.APIError
	if errors.As(err, &apiErr) {
		return utils.ErrorResponse(c, apiErr)
	}

	var e *fiber.Error
	if errors.As(err, &e) {
		return utils.ErrorResponse(c, utils.NewAPIError(
			"HTTP_ERROR",
			e.Message,
			e.Code,
		))
	}

	slog.Error("Unhandled error", "error", err, "path", c.Path())
	return utils.ErrorResponse(c, utils.ErrInternalServer)
}

func initLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	slog.SetDefault(slog.New(handler))
}

func wrapStartup(step string, err error) error {
	return fmt.Errorf("failed to %s: %w", step, err)
}
