package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anything-world/internal/config"
	"anything-world/internal/handler"
	"anything-world/internal/identity"
	"anything-world/internal/middleware"
	"anything-world/internal/model"
	"anything-world/internal/ratelimit"
)

type countingResolver struct {
	calls atomic.Int32
}

func (r *countingResolver) Resolve(context.Context, identity.CookieAdapter) (*model.Identity, error) {
	r.calls.Add(1)
	return nil, nil
}

type noRoles struct{}

func (noRoles) HasRole(context.Context, string, string) (bool, error) { return false, nil }

func newTestRouter(t *testing.T, resolver *countingResolver) http.Handler {
	t.Helper()

	cfg := &config.Config{
		AppEnv:         config.EnvProduction,
		RequestTimeout: 5 * time.Second,
		SignInPath:     "/signin",
	}

	store := ratelimit.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	start := time.Now()
	clock := func() time.Time { return start }

	general, err := ratelimit.NewFixedWindow(store, ratelimit.Options{Name: "general", Prefix: "rl:api", Max: 60, Window: time.Minute, Now: clock})
	require.NoError(t, err)
	strict, err := ratelimit.NewSlidingWindow(store, ratelimit.Options{Name: "strict", Prefix: "rl:strict", Max: 5, Window: time.Minute, Now: clock})
	require.NoError(t, err)

	mw := Middleware{
		Guard: middleware.NewGuard(middleware.GuardConfig{
			Resolver:   resolver,
			Roles:      noRoles{},
			AllowList:  middleware.NewIPAllowList(nil),
			SignInPath: cfg.SignInPath,
		}),
		General: middleware.NewRateLimitMiddleware(general, nil, nil),
		Strict:  middleware.NewRateLimitMiddleware(strict, nil, nil),
	}

	return New(cfg, mw, Handlers{
		Auth:       handler.NewAuthHandler(nil, resolver, cfg.SignInPath),
		Onboarding: handler.NewOnboardingHandler(nil, resolver),
		Newsletter: handler.NewNewsletterHandler(nil),
		Admin:      handler.NewAdminHandler(nil, nil, nil),
		Audit:      handler.NewAuditHandler(nil),
		Creator:    handler.NewCreatorHandler(nil),
		Watch:      handler.NewWatchHandler(nil, resolver),
		Health:     handler.NewHealthHandler(nil, handler.HealthInfo{Environment: cfg.AppEnv}),
		RateTest:   handler.NewRateTestHandler(resolver),
	})
}

func TestProtectedPagesRedirectAnonymousVisitors(t *testing.T) {
	t.Parallel()

	resolver := &countingResolver{}
	r := newTestRouter(t, resolver)

	for _, path := range []string{"/admin", "/creator"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		assert.Equal(t, http.StatusSeeOther, rec.Code, path)
		assert.Equal(t, "/signin?callbackUrl=%2F"+strings.TrimPrefix(path, "/"), rec.Header().Get("Location"))
		assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"), "security headers apply to redirects")
	}

	assert.EqualValues(t, 2, resolver.calls.Load())
}

func TestPublicAPIIsRateLimitedWithoutResolution(t *testing.T) {
	t.Parallel()

	resolver := &countingResolver{}
	r := newTestRouter(t, resolver)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "59", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Zero(t, resolver.calls.Load())
}

func TestStrictLimiterGuardsSubscribe(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &countingResolver{})

	statuses := make([]int, 0, 6)
	for range 6 {
		req := httptest.NewRequest(http.MethodPost, "/api/newsletter/subscribe", strings.NewReader("{"))
		req.RemoteAddr = "203.0.113.5:4000"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)

		if rec.Code == http.StatusTooManyRequests {
			assert.NotEmpty(t, rec.Header().Get("Retry-After"))
			assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
		}
	}

	assert.Equal(t, []int{400, 400, 400, 400, 400, 429}, statuses)
}

func TestPreflightCarriesSecurityHeaders(t *testing.T) {
	t.Parallel()

	resolver := &countingResolver{}
	r := newTestRouter(t, resolver)

	req := httptest.NewRequest(http.MethodOptions, "/api/newsletter/subscribe", nil)
	req.Header.Set("Origin", "https://anything.world")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Methods"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Permissions-Policy"))
	assert.Zero(t, resolver.calls.Load())
}
