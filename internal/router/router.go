package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"anything-world/internal/config"
	"anything-world/internal/handler"
	"anything-world/internal/middleware"
)

type Handlers struct {
	Auth       *handler.AuthHandler
	Onboarding *handler.OnboardingHandler
	Newsletter *handler.NewsletterHandler
	Admin      *handler.AdminHandler
	Audit      *handler.AuditHandler
	Creator    *handler.CreatorHandler
	Watch      *handler.WatchHandler
	Health     *handler.HealthHandler
	RateTest   *handler.RateTestHandler
	Metrics    http.Handler
}

type Middleware struct {
	Guard   *middleware.Guard
	General *middleware.RateLimitMiddleware
	Strict  *middleware.RateLimitMiddleware
}

func New(cfg *config.Config, mw Middleware, h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.SecurityHeaders(!cfg.IsProduction()))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SessionCookies)
	r.Use(mw.Guard.Handler)

	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(middleware.Timeout(cfg.RequestTimeout))

		admin.Get("/", h.Admin.Dashboard)
		admin.Post("/roles", h.Admin.GrantRole)
		admin.Delete("/roles", h.Admin.RevokeRole)
		admin.Get("/audit", h.Audit.List)
	})

	r.Route("/creator", func(creator chi.Router) {
		creator.Use(middleware.Timeout(cfg.RequestTimeout))

		creator.Get("/", h.Creator.Home)
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))
		api.Use(mw.General.Handler)

		strict := api.With(mw.Strict.Handler)

		api.Get("/health", h.Health.Health)
		api.Get("/health/db", h.Health.Database)

		api.Route("/auth", func(auth chi.Router) {
			auth.With(mw.Strict.Handler).Post("/signup", h.Auth.SignUp)
			auth.With(mw.Strict.Handler).Post("/signin", h.Auth.SignIn)
			auth.With(mw.Strict.Handler).Post("/magic-link", h.Auth.MagicLink)
			auth.With(mw.Strict.Handler).Post("/forgot-password", h.Auth.ForgotPassword)
			auth.Post("/reset-password", h.Auth.ResetPassword)
			auth.Get("/callback", h.Auth.Callback)
			auth.Post("/signout", h.Auth.SignOut)
			auth.Get("/me", h.Auth.Me)
			auth.Post("/user/onboarding", h.Onboarding.Save)
		})

		strict.Post("/newsletter/subscribe", h.Newsletter.Subscribe)
		api.Get("/newsletter/unsubscribe", h.Newsletter.Unsubscribe)

		api.Route("/watch", func(watch chi.Router) {
			watch.Post("/progress", h.Watch.Progress)
			watch.Post("/complete", h.Watch.Complete)
			watch.Get("/gate", h.Watch.Gate)
			watch.Post("/prompt-shown", h.Watch.PromptShown)
			watch.Post("/reset-prompt", h.Watch.ResetPrompt)
			watch.Get("/state", h.Watch.State)
		})

		api.Get("/tests/rate-test", h.RateTest.Echo)
	})

	return r
}
