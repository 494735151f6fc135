package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"anything-world/internal/config"
	"anything-world/internal/database"
	"anything-world/internal/handler"
	"anything-world/internal/identity"
	"anything-world/internal/mailer"
	"anything-world/internal/metrics"
	"anything-world/internal/middleware"
	"anything-world/internal/model"
	"anything-world/internal/ratelimit"
	"anything-world/internal/repository"
	"anything-world/internal/router"
	"anything-world/internal/service"
	"anything-world/internal/watchgate"
)

const codeCleanupInterval = 15 * time.Minute

type App struct {
	server       *http.Server
	db           *database.DB
	cleanupFuncs []func()
}

// New wires the service. Only configuration errors and unreachable required
// infrastructure abort startup.
func New(cfg *config.Config) (*App, error) {
	ctx := context.Background()

	slog.Info("running database migrations")
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	cleanup := []func(){db.Close}
	fail := func(err error) (*App, error) {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
		return nil, err
	}

	counters, closeCounters, err := newCounterStore(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	cleanup = append(cleanup, closeCounters)

	pool := db.Pool
	userRepo := repository.NewUserRepository(pool)
	roleRepo := repository.NewRoleRepository(pool)
	codeRepo := repository.NewCodeRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	newsletterRepo := repository.NewNewsletterRepository(pool)
	onboardingRepo := repository.NewOnboardingRepository(pool)
	slog.Info("database ready")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	var codec *identity.TokenCodec
	if cfg.SessionsEnabled() {
		codec = identity.NewTokenCodec(cfg.SessionSecret, cfg.SessionTTL)
	} else {
		slog.Warn("SESSION_SECRET is not set: sessions are disabled and every visitor is anonymous")
	}
	resolver := identity.NewResolver(codec, userRepo, codeRepo, cfg.SessionCookieName)

	var mail mailer.Mailer = mailer.LogMailer{}
	if cfg.ResendAPIKey != "" {
		mail = mailer.NewResendMailer(cfg.ResendAPIKey, cfg.EmailFrom, cfg.EmailRatePerSecond)
	} else {
		slog.Warn("RESEND_API_KEY is not set: emails are logged instead of sent")
	}
	mail = mailer.WithMetrics(mail, collector)

	auditService := service.NewAuditService(auditRepo)
	roleService := service.NewRoleService(roleRepo, userRepo, auditService)
	authService := service.NewAuthService(userRepo, codeRepo, resolver, roleService, mail, auditService, service.AuthConfig{
		SiteURL: cfg.SiteURL,
		CodeTTL: cfg.OneTimeCodeTTL,
	})
	onboardingService := service.NewOnboardingService(onboardingRepo)
	newsletterService := service.NewNewsletterService(newsletterRepo, cfg.NewsletterUnsubscribeSecret, cfg.SiteURL)

	if err := roleService.EnsureDefaults(ctx); err != nil {
		return fail(fmt.Errorf("failed to seed roles: %w", err))
	}
	if err := roleService.PromoteAdminEmail(ctx, cfg.AdminEmail); err != nil {
		slog.Warn("admin promotion failed", "error", err)
	}

	allowList := middleware.NewIPAllowList(cfg.AdminIPWhitelist)
	if allowList.Empty() {
		slog.Warn("ADMIN_IP_WHITELIST is empty: admin routes are reachable from any address")
	}
	guard := middleware.NewGuard(middleware.GuardConfig{
		Rules:      middleware.DefaultRules(),
		Resolver:   resolver,
		Roles:      roleService,
		AllowList:  allowList,
		SignInPath: cfg.SignInPath,
		Observer:   collector,
	})

	peekUser := func(r *http.Request) string {
		return resolver.PeekUserID(middleware.RequestCookies(r))
	}
	general, err := ratelimit.NewFixedWindow(counters, ratelimit.Options{
		Name:   "general",
		Prefix: "rl:api",
		Max:    cfg.GeneralRateLimit,
		Window: cfg.GeneralRateWindow,
	})
	if err != nil {
		return fail(model.NewConfigurationError("GENERAL_RATE_WINDOW", "invalid general limiter", err))
	}
	strict, err := ratelimit.NewSlidingWindow(counters, ratelimit.Options{
		Name:   "strict",
		Prefix: "rl:strict",
		Max:    cfg.StrictRateLimit,
		Window: cfg.StrictRateWindow,
	})
	if err != nil {
		return fail(model.NewConfigurationError("STRICT_RATE_WINDOW", "invalid strict limiter", err))
	}

	appRouter := router.New(cfg, router.Middleware{
		Guard:   guard,
		General: middleware.NewRateLimitMiddleware(general, peekUser, collector),
		Strict:  middleware.NewRateLimitMiddleware(strict, peekUser, collector),
	}, router.Handlers{
		Auth:       handler.NewAuthHandler(authService, resolver, cfg.SignInPath),
		Onboarding: handler.NewOnboardingHandler(onboardingService, resolver),
		Newsletter: handler.NewNewsletterHandler(newsletterService),
		Admin:      handler.NewAdminHandler(roleService, userRepo, db),
		Audit:      handler.NewAuditHandler(auditService),
		Creator:    handler.NewCreatorHandler(roleService),
		Watch:      handler.NewWatchHandler(watchgate.New, resolver),
		Health: handler.NewHealthHandler(db, handler.HealthInfo{
			Environment: cfg.AppEnv,
			Region:      cfg.Region,
			Commit:      cfg.CommitSHA,
		}),
		RateTest: handler.NewRateTestHandler(resolver),
		Metrics:  metrics.Handler(registry),
	})

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	go startCodeCleanup(cleanupCtx, codeRepo, codeCleanupInterval)
	cleanup = append(cleanup, cleanupCancel)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server:       server,
		db:           db,
		cleanupFuncs: cleanup,
	}, nil
}

// newCounterStore connects the rate limit backend. An unreachable Redis is
// a ConfigurationError: the service never starts with limiting silently off.
func newCounterStore(ctx context.Context, cfg *config.Config) (ratelimit.Store, func(), error) {
	if cfg.RateLimitBackend == config.RateLimitBackendMemory {
		slog.Warn("rate limits use in-process counters and are not shared between instances")
		store := ratelimit.NewMemoryStore()
		return store, func() { _ = store.Close() }, nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	store, err := ratelimit.NewRedisStore(pingCtx, cfg.RedisURL, cfg.RedisPassword)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("rate limit store ready", "backend", "redis")
	return store, func() { _ = store.Close() }, nil
}

type expiredCodeCleaner interface {
	CleanExpired(ctx context.Context) (int64, error)
}

func startCodeCleanup(ctx context.Context, codes expiredCodeCleaner, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := codes.CleanExpired(ctx)
			if err != nil {
				slog.Warn("one-time code cleanup failed", "error", err)
				continue
			}
			if removed > 0 {
				slog.Info("expired one-time codes removed", "count", removed)
			}
		}
	}
}

func (a *App) Run() error {
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-stop:
	case err := <-serveErr:
		runErr = fmt.Errorf("server failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil && runErr == nil {
		runErr = fmt.Errorf("graceful shutdown failed: %w", err)
	}

	// Release in reverse order of acquisition.
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}

	if runErr == nil {
		slog.Info("server stopped")
	}
	return runErr
}
