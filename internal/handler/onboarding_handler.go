package handler

import (
	"net/http"

	"anything-world/internal/middleware"
	"anything-world/internal/model"
	"anything-world/internal/service"
	"anything-world/pkg/apierror"
)

type OnboardingHandler struct {
	service  *service.OnboardingService
	resolver middleware.IdentityResolver
}

func NewOnboardingHandler(service *service.OnboardingService, resolver middleware.IdentityResolver) *OnboardingHandler {
	return &OnboardingHandler{service: service, resolver: resolver}
}

func (h *OnboardingHandler) Save(w http.ResponseWriter, r *http.Request) {
	if !isJSONRequest(r) {
		writeError(w, apierror.New("UNSUPPORTED_MEDIA_TYPE", "Content-Type must be application/json", "", http.StatusUnsupportedMediaType))
		return
	}

	id := currentIdentity(r, h.resolver)
	if id == nil {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	var payload model.OnboardingRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	saved, err := h.service.Save(r.Context(), id.ID, payload.Choices)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, saved, nil)
}
