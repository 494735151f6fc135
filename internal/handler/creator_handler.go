package handler

import (
	"net/http"

	"anything-world/internal/middleware"
	"anything-world/internal/model"
	"anything-world/internal/service"
)

type CreatorHandler struct {
	roles *service.RoleService
}

func NewCreatorHandler(roles *service.RoleService) *CreatorHandler {
	return &CreatorHandler{roles: roles}
}

type creatorHome struct {
	Identity model.Identity `json:"identity"`
	Roles    []string       `json:"roles"`
}

// Home relies on the route guard having stored the identity.
func (h *CreatorHandler) Home(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	roles, err := h.roles.Roles(r.Context(), id.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, creatorHome{Identity: *id, Roles: roles}, nil)
}
