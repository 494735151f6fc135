package middleware

import (
	"context"
	"net/http"
	"sync"

	"anything-world/internal/identity"
	"anything-world/internal/model"
	"anything-world/internal/ratelimit"
)

type contextKey string

const (
	identityContextKey  contextKey = "identity"
	cookiesContextKey   contextKey = "cookies"
	roleMemoContextKey  contextKey = "role_memo"
	rateLimitContextKey contextKey = "rate_limit"
)

func WithIdentity(ctx context.Context, id *model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFromContext returns the identity the route guard resolved for this
// request. Unprotected routes never carry one.
func IdentityFromContext(ctx context.Context) (*model.Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(*model.Identity)
	return id, ok && id != nil
}

func WithCookies(ctx context.Context, cookies *identity.HTTPCookies) context.Context {
	return context.WithValue(ctx, cookiesContextKey, cookies)
}

// RequestCookies returns the request's cookie adapter installed by
// SessionCookies. Outside that middleware a fresh adapter is returned and
// the caller must flush it.
func RequestCookies(r *http.Request) *identity.HTTPCookies {
	if cookies, ok := r.Context().Value(cookiesContextKey).(*identity.HTTPCookies); ok {
		return cookies
	}
	return identity.NewHTTPCookies(r, identity.IsSecureRequest(r))
}

type RoleChecker interface {
	HasRole(ctx context.Context, userID string, role string) (bool, error)
}

type roleMemo struct {
	mu      sync.Mutex
	answers map[string]bool
}

// WithRoleMemo attaches an empty role memo. Answers never outlive the
// request that produced them.
func WithRoleMemo(ctx context.Context) context.Context {
	return context.WithValue(ctx, roleMemoContextKey, &roleMemo{answers: map[string]bool{}})
}

// CheckRole asks checker once per (user, role) within a request. Errors are
// not memoized.
func CheckRole(ctx context.Context, checker RoleChecker, userID string, role string) (bool, error) {
	memo, ok := ctx.Value(roleMemoContextKey).(*roleMemo)
	if !ok {
		return checker.HasRole(ctx, userID, role)
	}

	key := userID + "\x00" + role

	memo.mu.Lock()
	answer, cached := memo.answers[key]
	memo.mu.Unlock()
	if cached {
		return answer, nil
	}

	answer, err := checker.HasRole(ctx, userID, role)
	if err != nil {
		return false, err
	}

	memo.mu.Lock()
	memo.answers[key] = answer
	memo.mu.Unlock()

	return answer, nil
}

// LimitInfo is the rate limit decision applied to the current request.
type LimitInfo struct {
	Limiter string
	Key     string
	Result  ratelimit.Result
}

func withLimitInfo(ctx context.Context, info LimitInfo) context.Context {
	return context.WithValue(ctx, rateLimitContextKey, info)
}

func LimitInfoFromContext(ctx context.Context) (LimitInfo, bool) {
	info, ok := ctx.Value(rateLimitContextKey).(LimitInfo)
	return info, ok
}
