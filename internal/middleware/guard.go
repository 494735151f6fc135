package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"anything-world/internal/identity"
	"anything-world/internal/model"
	"anything-world/internal/ratelimit"
)

type Outcome int

const (
	Allowed Outcome = iota
	RedirectToSignIn
	Forbidden
)

func (o Outcome) String() string {
	switch o {
	case RedirectToSignIn:
		return "redirect"
	case Forbidden:
		return "forbidden"
	default:
		return "allowed"
	}
}

// Rule protects every path starting with Prefix. The caller needs any one
// of AnyOf. RestrictByIP additionally applies the admin IP allow-list.
type Rule struct {
	Prefix       string
	AnyOf        []string
	RestrictByIP bool
}

func DefaultRules() []Rule {
	return []Rule{
		{Prefix: "/admin", AnyOf: []string{model.RoleAdmin}, RestrictByIP: true},
		{Prefix: "/creator", AnyOf: []string{model.RoleCreator, model.RoleModerator, model.RoleAdmin}},
	}
}

type Decision struct {
	Outcome  Outcome
	Identity *model.Identity
}

type IdentityResolver interface {
	Resolve(ctx context.Context, cookies identity.CookieAdapter) (*model.Identity, error)
}

type GuardObserver interface {
	RecordGuardDecision(outcome string)
}

type GuardConfig struct {
	Rules      []Rule
	Resolver   IdentityResolver
	Roles      RoleChecker
	AllowList  *IPAllowList
	SignInPath string
	Observer   GuardObserver
}

type Guard struct {
	rules      []Rule
	resolver   IdentityResolver
	roles      RoleChecker
	allowList  *IPAllowList
	signInPath string
	observer   GuardObserver
}

func NewGuard(cfg GuardConfig) *Guard {
	rules := cfg.Rules
	if rules == nil {
		rules = DefaultRules()
	}
	signIn := cfg.SignInPath
	if signIn == "" {
		signIn = "/signin"
	}

	return &Guard{
		rules:      rules,
		resolver:   cfg.Resolver,
		roles:      cfg.Roles,
		allowList:  cfg.AllowList,
		signInPath: signIn,
		observer:   cfg.Observer,
	}
}

func (g *Guard) match(path string) (Rule, bool) {
	for _, rule := range g.rules {
		if strings.HasPrefix(path, rule.Prefix) {
			return rule, true
		}
	}
	return Rule{}, false
}

// Decide classifies a request. Identity is resolved only for protected
// paths, and only after the IP allow-list passed. Resolver and role store
// failures count as "no identity" and "no role".
func (g *Guard) Decide(r *http.Request, cookies identity.CookieAdapter) Decision {
	rule, protected := g.match(r.URL.Path)
	if !protected {
		return Decision{Outcome: Allowed}
	}

	ctx := r.Context()

	if rule.RestrictByIP && !g.allowList.Allows(ratelimit.ClientIP(r)) {
		slog.Warn("admin ip rejected", "path", r.URL.Path, "client_ip", ratelimit.ClientIP(r))
		return Decision{Outcome: Forbidden}
	}

	id, err := g.resolver.Resolve(ctx, cookies)
	if err != nil {
		slog.Warn("identity resolution failed", "path", r.URL.Path, "error", err)
		id = nil
	}
	if id == nil {
		return Decision{Outcome: RedirectToSignIn}
	}

	for _, role := range rule.AnyOf {
		ok, err := CheckRole(ctx, g.roles, id.ID, role)
		if err != nil {
			slog.Warn("role lookup failed", "user_id", id.ID, "role", role, "error", err)
			continue
		}
		if ok {
			return Decision{Outcome: Allowed, Identity: id}
		}
	}

	slog.Debug("missing role", "user_id", id.ID, "path", r.URL.Path)
	return Decision{Outcome: Forbidden, Identity: id}
}

// SignInURL is the redirect target for an anonymous request to r.
func (g *Guard) SignInURL(r *http.Request) string {
	return g.signInPath + "?callbackUrl=" + url.QueryEscape(r.URL.RequestURI())
}

func (g *Guard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(WithRoleMemo(r.Context()))
		cookies := RequestCookies(r)

		decision := g.Decide(r, cookies)
		if g.observer != nil {
			g.observer.RecordGuardDecision(decision.Outcome.String())
		}

		switch decision.Outcome {
		case RedirectToSignIn:
			cookies.Redirect(w, r, g.SignInURL(r), http.StatusSeeOther)
		case Forbidden:
			cookies.Flush(w)
			http.Error(w, "Forbidden", http.StatusForbidden)
		default:
			if decision.Identity != nil {
				r = r.WithContext(WithIdentity(r.Context(), decision.Identity))
			}
			next.ServeHTTP(w, r)
		}
	})
}

// IdentityResolverFunc adapts a function to IdentityResolver.
type IdentityResolverFunc func(ctx context.Context, cookies identity.CookieAdapter) (*model.Identity, error)

func (f IdentityResolverFunc) Resolve(ctx context.Context, cookies identity.CookieAdapter) (*model.Identity, error) {
	return f(ctx, cookies)
}
