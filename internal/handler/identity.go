package handler

import (
	"log/slog"
	"net/http"

	"anything-world/internal/middleware"
	"anything-world/internal/model"
)

// currentIdentity returns the guard's identity when it ran, otherwise it
// resolves the session cookie itself. Resolver failures read as anonymous.
func currentIdentity(r *http.Request, resolver middleware.IdentityResolver) *model.Identity {
	if id, ok := middleware.IdentityFromContext(r.Context()); ok {
		return id
	}
	if resolver == nil {
		return nil
	}

	id, err := resolver.Resolve(r.Context(), middleware.RequestCookies(r))
	if err != nil {
		slog.Warn("identity resolution failed", "path", r.URL.Path, "error", err)
		return nil
	}
	return id
}
