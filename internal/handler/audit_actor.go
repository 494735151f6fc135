package handler

import (
	"net/http"

	"anything-world/internal/middleware"
	"anything-world/internal/model"
	"anything-world/internal/ratelimit"
)

func actorFromRequest(r *http.Request) model.AuditActor {
	actor := model.AuditActor{IP: ratelimit.ClientIP(r)}

	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		return actor
	}

	actor.UserID = id.ID
	actor.Email = id.Email

	return actor
}
