package server

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/eduyeet/authgate/internal/config"
	"github.com/eduyeet/authgate/internal/domain/auth"
	"github.com/eduyeet/authgate/internal/domain/session"
	"github.com/eduyeet/authgate/internal/domain/token"
	"github.com/eduyeet/authgate/internal/domain/user"
	"github.com/eduyeet/authgate/internal/domain/verification"
	"github.com/eduyeet/authgate/internal/gate"
)

const apiPrefix = "/v1"

// internalRoutes are called by request gates on every gated page load. All
// gates share one address, so they are kept out of per-IP rate limiting.
var internalRoutes = []string{
	apiPrefix + "/auth/validate-token",
	apiPrefix + "/auth/refresh",
}

func isInternalRoute(path string) bool {
	return slices.Contains(internalRoutes, strings.TrimRight(path, "/"))
}

// Repositories are the persistence backends the services are built on.
type Repositories struct {
	Users         user.Repository
	Sessions      session.Repository
	Verifications verification.Repository
}

// Services holds the components constructed once at startup and shared by
// every route.
type Services struct {
	Auth     *auth.Service
	Users    user.Service
	Sessions *session.Store
	Codec    *token.Codec
}

// NewServices builds the codec, session store and credential service.
// revocations may be nil when Redis is not configured.
func NewServices(cfg *config.Config, key token.Key, repos Repositories, revocations session.RevocationCache) (*Services, error) {
	codec, err := token.NewCodec(key, cfg.Auth.TokenTTL(), token.WithIssuer(cfg.Auth.Issuer))
	if err != nil {
		return nil, wrapStartup("create token codec", err)
	}
	if key.ID != "" {
		slog.Info("Signing key loaded", "key_id", key.ID)
	}

	var storeOpts []session.StoreOption
	if revocations != nil {
		storeOpts = append(storeOpts, session.WithRevocationCache(revocations))
	}
	sessions := session.NewStore(repos.Sessions, storeOpts...)

	users := user.NewService(repos.Users)
	verifications := verification.NewService(repos.Verifications, users, verification.LogNotifier{}, verification.Options{
		BaseURL:    publicOrigin(cfg),
		VerifyPath: cfg.Auth.Verify(),
	})

	authService := auth.NewService(users, sessions, codec, verifications, auth.Options{
		SessionTTL:     cfg.Auth.SessionTTL(),
		StrictRotation: cfg.Auth.StrictRotation,
	})

	return &Services{
		Auth:     authService,
		Users:    users,
		Sessions: sessions,
		Codec:    codec,
	}, nil
}

// SetupRoutes mounts the API under /v1 and the gated pages at the root.
func SetupRoutes(app *fiber.App, cfg *config.Config, env *config.Environment, s *Services) {
	carrier := auth.NewCarrier(cfg.Auth.Cookie(), s.Codec.TTL(), env.Environment.IsProduction())

	app.Use(gate.Middleware(gateConfig(cfg), s.Codec, newChecker(cfg, env, s), carrier, apiPrefix))

	api := app.Group(apiPrefix)
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	})

	authHandler := auth.NewHandler(s.Auth, s.Users, carrier)

	authGroup := api.Group("/auth")
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/logout", authHandler.Logout)
	authGroup.Post("/refresh", authHandler.Refresh)
	if env.ValidationKey == "" && env.Environment.IsProduction() {
		slog.Warn("Validation endpoint accepts requests without an internal key")
	}
	authGroup.Get("/validate-token", auth.RequireInternalKey(env.ValidationKey), authHandler.ValidateToken)
	authGroup.Post("/verify", authHandler.Verify)
	authGroup.Post("/verify/resend", authHandler.ResendVerification)
	authGroup.Get("/me", auth.RequireSession(s.Auth, carrier), authHandler.Me)

	pages := newPages(cfg, s.Auth)
	app.Get(cfg.Auth.Login(), pages.Login)
	app.Get(cfg.Auth.Verify(), pages.Verify)
	app.Get(cfg.Auth.Home(), pages.Home)
}

func gateConfig(cfg *config.Config) gate.Config {
	return gate.Config{
		LoginPath:        cfg.Auth.Login(),
		HomePath:         cfg.Auth.Home(),
		VerifyPath:       cfg.Auth.Verify(),
		PublicPaths:      cfg.Auth.PublicPaths,
		RefreshThreshold: cfg.Auth.RefreshThreshold(),
	}
}

// newChecker picks the in-process checker unless a remote validation service
// is configured.
func newChecker(cfg *config.Config, env *config.Environment, s *Services) gate.Checker {
	if cfg.Auth.ValidationURL != "" {
		slog.Info("Request gate uses remote validation", "url", cfg.Auth.ValidationURL)
		return gate.NewRemoteChecker(cfg.Auth.ValidationURL, cfg.Auth.ValidationTimeout(), gate.WithInternalKey(env.ValidationKey))
	}
	return gate.NewLocalChecker(s.Auth)
}

func publicOrigin(cfg *config.Config) string {
	domain := strings.TrimRight(cfg.Server.Domain, "/")
	if domain == "" {
		return ""
	}
	if !strings.Contains(domain, "://") {
		domain = "https://" + domain
	}
	return domain
}
