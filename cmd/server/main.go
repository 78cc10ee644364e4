package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mindflowhq/identity/modules/account"
	"github.com/mindflowhq/identity/pkg/auth"
	"github.com/mindflowhq/identity/pkg/config"
	"github.com/mindflowhq/identity/pkg/email"
	"github.com/mindflowhq/identity/pkg/httpserver"
	"github.com/mindflowhq/identity/pkg/logger"
	"github.com/mindflowhq/identity/pkg/pg"
	"github.com/mindflowhq/identity/pkg/ratelimit"
	"github.com/mindflowhq/identity/pkg/redis"
	"github.com/mindflowhq/identity/pkg/session"
	"github.com/mindflowhq/identity/pkg/turnstile"
	"github.com/mindflowhq/identity/store/postgres"
)

type appConfig struct {
	AppName string `env:"APP_NAME" envDefault:"identity"`
	BaseURL string `env:"BASE_URL,required"`

	// Outbound email falls back to the file sender when Postmark is not
	// configured.
	EmailDevDir string `env:"EMAIL_DEV_DIR" envDefault:"./tmp/emails"`

	// Magic link issuance throttles.
	MagicLinkEmailLimit   int           `env:"MAGIC_LINK_EMAIL_LIMIT" envDefault:"5"`
	MagicLinkEmailWindow  time.Duration `env:"MAGIC_LINK_EMAIL_WINDOW" envDefault:"1h"`
	MagicLinkOriginLimit  int           `env:"MAGIC_LINK_ORIGIN_LIMIT" envDefault:"10"`
	MagicLinkOriginWindow time.Duration `env:"MAGIC_LINK_ORIGIN_WINDOW" envDefault:"15m"`

	GoogleOAuthEnabled   bool `env:"GOOGLE_OAUTH_ENABLED" envDefault:"false"`
	LinkedInOAuthEnabled bool `env:"LINKEDIN_OAUTH_ENABLED" envDefault:"false"`
}

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("server exited", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var logCfg logger.Config
	config.MustLoad(&logCfg)
	log := logger.NewFromConfig(logCfg)
	slog.SetDefault(log)

	var appCfg appConfig
	config.MustLoad(&appCfg)

	// Postgres.
	var pgCfg pg.Config
	config.MustLoad(&pgCfg)
	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool, postgres.Migrations, log.With(logger.Component("migrations"))); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	// Redis backs the rate-limit counters and sessions.
	var redisCfg redis.Config
	config.MustLoad(&redisCfg)
	redisClient, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()

	storage := postgres.New(pool)
	registry := auth.NewRegistry(storage, auth.WithRegistryLogger(log))
	tokens := auth.NewTokenStore(storage, auth.WithTokenStoreLogger(log))

	// Outbound email.
	var emailCfg email.Config
	config.MustLoad(&emailCfg)
	var sender email.EmailSender
	if emailCfg.PostmarkServerToken != "" {
		sender, err = email.NewPostmarkClient(emailCfg)
		if err != nil {
			return fmt.Errorf("postmark: %w", err)
		}
	} else {
		log.Warn("postmark not configured, writing emails to disk",
			slog.String("dir", appCfg.EmailDevDir))
		sender = email.NewDevSender(appCfg.EmailDevDir)
	}
	mailer := email.NewMagicLinkMailer(sender, appCfg.AppName)

	// Magic link flow with per-email and per-origin throttles.
	limitStore := ratelimit.NewRedisStore(redisClient, "ratelimit")
	emailLimiter, err := ratelimit.NewFixedWindow(limitStore, appCfg.MagicLinkEmailLimit, appCfg.MagicLinkEmailWindow)
	if err != nil {
		return fmt.Errorf("email limiter: %w", err)
	}
	originLimiter, err := ratelimit.NewFixedWindow(limitStore, appCfg.MagicLinkOriginLimit, appCfg.MagicLinkOriginWindow)
	if err != nil {
		return fmt.Errorf("origin limiter: %w", err)
	}
	magic := auth.NewMagicLinkService(registry, tokens, mailer, appCfg.BaseURL,
		auth.WithMagicLinkLogger(log),
		auth.WithEmailLimiter(emailLimiter),
		auth.WithOriginLimiter(originLimiter),
	)

	linking := auth.NewLinkingService(registry, tokens, auth.WithLinkingLogger(log))
	assoc := auth.NewAssociationService(registry, tokens, auth.WithAssociationLogger(log))
	password := auth.NewPasswordService(registry, tokens, auth.WithPasswordLogger(log))

	// Sessions.
	var sessCfg session.Config
	config.MustLoad(&sessCfg)
	sessions := session.New(
		session.WithStore(session.NewRedisStore(redisClient, "session")),
		session.WithConfig(sessCfg),
	)

	var turnstileCfg turnstile.Config
	config.MustLoad(&turnstileCfg)
	captcha := turnstile.New(turnstileCfg)

	moduleOpts := []account.ModuleOption{
		account.WithLogger(log),
		account.WithPassword(password),
	}
	if captcha.Enabled() {
		moduleOpts = append(moduleOpts, account.WithTurnstile(captcha))
	}

	if appCfg.GoogleOAuthEnabled {
		var googleCfg auth.GoogleOAuthConfig
		config.MustLoad(&googleCfg)
		svc := auth.NewOAuthService(storage, auth.NewGoogleAdapter(googleCfg), assoc,
			auth.WithOAuthLogger(log), auth.WithStateTTL(googleCfg.StateTTL))
		moduleOpts = append(moduleOpts, account.WithProvider(svc))
	}
	if appCfg.LinkedInOAuthEnabled {
		var linkedinCfg auth.LinkedInOAuthConfig
		config.MustLoad(&linkedinCfg)
		svc := auth.NewOAuthService(storage, auth.NewLinkedInAdapter(linkedinCfg), assoc,
			auth.WithOAuthLogger(log), auth.WithStateTTL(linkedinCfg.StateTTL))
		moduleOpts = append(moduleOpts, account.WithProvider(svc))
	}

	mod := account.New(registry, magic, linking, sessions, moduleOpts...)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Get("/healthz", healthHandler(pool.Ping, redis.Healthcheck(redisClient)))
	router.Mount("/account", mod.Router())

	var httpCfg httpserver.Config
	config.MustLoad(&httpCfg)
	server := httpserver.New(httpCfg, httpserver.WithLogger(log))

	log.Info("starting the identity service",
		slog.String("app", appCfg.AppName),
		slog.String("addr", httpCfg.Addr),
	)
	return server.Run(ctx, router)
}

func healthHandler(checks ...func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, check := range checks {
			if err := check(r.Context()); err != nil {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}
