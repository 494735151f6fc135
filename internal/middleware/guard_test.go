package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anything-world/internal/identity"
	"anything-world/internal/model"
)

type countingResolver struct {
	calls atomic.Int32
	id    *model.Identity
	err   error
}

func (r *countingResolver) Resolve(context.Context, identity.CookieAdapter) (*model.Identity, error) {
	r.calls.Add(1)
	return r.id, r.err
}

type fakeRoles struct {
	mu     sync.Mutex
	grants map[string]map[string]bool
	calls  int
	err    error
}

func newFakeRoles() *fakeRoles {
	return &fakeRoles{grants: map[string]map[string]bool{}}
}

func (f *fakeRoles) Grant(userID string, role string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.grants[userID] == nil {
		f.grants[userID] = map[string]bool{}
	}
	f.grants[userID][role] = true
}

func (f *fakeRoles) HasRole(_ context.Context, userID string, role string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.grants[userID][role], nil
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func newTestGuard(resolver IdentityResolver, roles RoleChecker, allow []string) *Guard {
	return NewGuard(GuardConfig{
		Resolver:   resolver,
		Roles:      roles,
		AllowList:  NewIPAllowList(allow),
		SignInPath: "/signin",
	})
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGuardNeverResolvesPublicPaths(t *testing.T) {
	t.Parallel()

	resolver := &countingResolver{id: &model.Identity{ID: "u-1"}}
	guard := newTestGuard(resolver, newFakeRoles(), nil)
	handler := guard.Handler(okHandler)

	for _, path := range []string{"/", "/api/health", "/watch/42", "/signin?callbackUrl=%2Fadmin"} {
		rec := serve(handler, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	assert.Zero(t, resolver.calls.Load())
}

func TestGuardRedirectsAnonymousWithLiteralCallback(t *testing.T) {
	t.Parallel()

	resolver := &countingResolver{}
	guard := newTestGuard(resolver, newFakeRoles(), nil)

	rec := serve(guard.Handler(okHandler), httptest.NewRequest(http.MethodGet, "/creator/uploads?tab=drafts&page=2", nil))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/signin", location.Path)
	assert.Equal(t, "/creator/uploads?tab=drafts&page=2", location.Query().Get("callbackUrl"))
	assert.EqualValues(t, 1, resolver.calls.Load())
}

func TestGuardResolverErrorRedirects(t *testing.T) {
	t.Parallel()

	resolver := &countingResolver{err: errors.New("db down")}
	guard := newTestGuard(resolver, newFakeRoles(), nil)

	rec := serve(guard.Handler(okHandler), httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestGuardForbidsMissingRole(t *testing.T) {
	t.Parallel()

	resolver := &countingResolver{id: &model.Identity{ID: "u-1"}}
	roles := newFakeRoles()
	roles.Grant("u-1", model.RoleViewer)
	guard := newTestGuard(resolver, roles, nil)

	rec := serve(guard.Handler(okHandler), httptest.NewRequest(http.MethodGet, "/creator", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Forbidden\n", rec.Body.String())
}

func TestGuardRoleStoreErrorForbids(t *testing.T) {
	t.Parallel()

	resolver := &countingResolver{id: &model.Identity{ID: "u-1"}}
	roles := newFakeRoles()
	roles.err = errors.New("db down")
	guard := newTestGuard(resolver, roles, nil)

	rec := serve(guard.Handler(okHandler), httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGuardAllowsAnyCreatorRole(t *testing.T) {
	t.Parallel()

	for _, role := range []string{model.RoleCreator, model.RoleModerator, model.RoleAdmin} {
		t.Run(role, func(t *testing.T) {
			resolver := &countingResolver{id: &model.Identity{ID: "u-1"}}
			roles := newFakeRoles()
			roles.Grant("u-1", role)
			guard := newTestGuard(resolver, roles, nil)

			var seen *model.Identity
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = IdentityFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			rec := serve(guard.Handler(next), httptest.NewRequest(http.MethodGet, "/creator", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
			require.NotNil(t, seen)
			assert.Equal(t, "u-1", seen.ID)
		})
	}
}

func TestGuardAdminIPAllowList(t *testing.T) {
	t.Parallel()

	admin := &model.Identity{ID: "u-1"}
	roles := newFakeRoles()
	roles.Grant("u-1", model.RoleAdmin)

	t.Run("blocked ip never reaches the handler", func(t *testing.T) {
		resolver := &countingResolver{id: admin}
		guard := newTestGuard(resolver, roles, []string{"10.0.0.1"})

		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		rec := serve(guard.Handler(okHandler), req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Zero(t, resolver.calls.Load())
	})

	t.Run("empty list passes any ip", func(t *testing.T) {
		resolver := &countingResolver{id: admin}
		guard := newTestGuard(resolver, roles, nil)

		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		rec := serve(guard.Handler(okHandler), req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("localhost alias", func(t *testing.T) {
		resolver := &countingResolver{id: admin}
		guard := newTestGuard(resolver, roles, []string{"localhost"})

		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("X-Forwarded-For", "::1")
		rec := serve(guard.Handler(okHandler), req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("allow list does not apply to creator routes", func(t *testing.T) {
		resolver := &countingResolver{id: admin}
		guard := newTestGuard(resolver, roles, []string{"10.0.0.1"})

		req := httptest.NewRequest(http.MethodGet, "/creator", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9")
		rec := serve(guard.Handler(okHandler), req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestGuardGrantVisibleOnNextRequest(t *testing.T) {
	t.Parallel()

	resolver := &countingResolver{id: &model.Identity{ID: "u-1"}}
	roles := newFakeRoles()
	handler := newTestGuard(resolver, roles, nil).Handler(okHandler)

	rec := serve(handler, httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	roles.Grant("u-1", model.RoleAdmin)

	rec = serve(handler, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCheckRoleMemoizesWithinRequest(t *testing.T) {
	t.Parallel()

	roles := newFakeRoles()
	roles.Grant("u-1", model.RoleAdmin)
	ctx := WithRoleMemo(context.Background())

	for range 3 {
		ok, err := CheckRole(ctx, roles, "u-1", model.RoleAdmin)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, 1, roles.calls)

	ok, err := CheckRole(WithRoleMemo(context.Background()), roles, "u-1", model.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, roles.calls)
}

func TestGuardFlushesRefreshedCookieOnRedirect(t *testing.T) {
	t.Parallel()

	resolver := IdentityResolverFunc(func(_ context.Context, cookies identity.CookieAdapter) (*model.Identity, error) {
		cookies.Remove("aw_session")
		return nil, nil
	})
	guard := newTestGuard(resolver, newFakeRoles(), nil)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: "aw_session", Value: "stale"})
	rec := serve(SessionCookies(guard.Handler(okHandler)), req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "aw_session", cookies[0].Name)
	assert.Equal(t, -1, cookies[0].MaxAge)
}
