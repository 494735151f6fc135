package handler

import (
	"net/http"
	"time"

	"anything-world/internal/middleware"
	"anything-world/internal/model"
)

type RateTestHandler struct {
	resolver middleware.IdentityResolver
}

func NewRateTestHandler(resolver middleware.IdentityResolver) *RateTestHandler {
	return &RateTestHandler{resolver: resolver}
}

type rateTestResult struct {
	Identity  *model.Identity `json:"identity"`
	Limiter   string          `json:"limiter,omitempty"`
	Key       string          `json:"key,omitempty"`
	Allowed   bool            `json:"allowed"`
	Limit     int             `json:"limit"`
	Remaining int             `json:"remaining"`
	Reset     string          `json:"reset,omitempty"`
}

// Echo reports the caller and the limiter decision applied to this request.
func (h *RateTestHandler) Echo(w http.ResponseWriter, r *http.Request) {
	out := rateTestResult{Identity: currentIdentity(r, h.resolver), Allowed: true}

	if info, ok := middleware.LimitInfoFromContext(r.Context()); ok {
		out.Limiter = info.Limiter
		out.Key = info.Key
		out.Allowed = info.Result.Allowed
		out.Limit = info.Result.Limit
		out.Remaining = info.Result.Remaining
		out.Reset = info.Result.Reset.UTC().Format(time.RFC3339)
	}

	writeSuccess(w, http.StatusOK, out, nil)
}
