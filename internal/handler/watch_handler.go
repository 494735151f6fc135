package handler

import (
	"net/http"
	"strings"

	"anything-world/internal/middleware"
	"anything-world/internal/model"
	"anything-world/internal/watchgate"
	"anything-world/pkg/apierror"
)

type WatchHandler struct {
	gates    watchgate.Factory
	resolver middleware.IdentityResolver
}

func NewWatchHandler(gates watchgate.Factory, resolver middleware.IdentityResolver) *WatchHandler {
	if gates == nil {
		gates = watchgate.New
	}
	return &WatchHandler{gates: gates, resolver: resolver}
}

type gateDecision struct {
	MediaID       string `json:"mediaId"`
	Gate          bool   `json:"gate"`
	Authenticated bool   `json:"authenticated"`
}

func (h *WatchHandler) gate(r *http.Request) *watchgate.Gate {
	return h.gates(middleware.RequestCookies(r))
}

func (h *WatchHandler) Progress(w http.ResponseWriter, r *http.Request) {
	var payload model.WatchProgressRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	payload.MediaID = strings.TrimSpace(payload.MediaID)
	if payload.MediaID == "" || payload.Seconds < 0 {
		writeError(w, apierror.BadRequest("mediaId and a non-negative seconds value are required", ""))
		return
	}

	gate := h.gate(r)
	gate.MarkProgress(payload.MediaID, payload.Seconds)

	writeSuccess(w, http.StatusOK, gate.State(), nil)
}

func (h *WatchHandler) Complete(w http.ResponseWriter, r *http.Request) {
	var payload model.WatchProgressRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	payload.MediaID = strings.TrimSpace(payload.MediaID)
	if payload.MediaID == "" {
		writeError(w, apierror.BadRequest("mediaId is required", "mediaId"))
		return
	}

	gate := h.gate(r)
	gate.MarkCompleted(payload.MediaID)

	writeSuccess(w, http.StatusOK, gate.State(), nil)
}

// Gate answers whether opening mediaID should show the sign-up prompt.
// Signed-in visitors are never gated.
func (h *WatchHandler) Gate(w http.ResponseWriter, r *http.Request) {
	mediaID := strings.TrimSpace(r.URL.Query().Get("mediaId"))
	if mediaID == "" {
		writeError(w, apierror.BadRequest("mediaId is required", "mediaId"))
		return
	}

	decision := gateDecision{MediaID: mediaID}
	if currentIdentity(r, h.resolver) != nil {
		decision.Authenticated = true
		writeSuccess(w, http.StatusOK, decision, nil)
		return
	}

	decision.Gate = h.gate(r).ShouldGateOnNext(mediaID)
	writeSuccess(w, http.StatusOK, decision, nil)
}

func (h *WatchHandler) PromptShown(w http.ResponseWriter, r *http.Request) {
	gate := h.gate(r)
	gate.MarkPromptShown()
	writeSuccess(w, http.StatusOK, gate.State(), nil)
}

func (h *WatchHandler) ResetPrompt(w http.ResponseWriter, r *http.Request) {
	gate := h.gate(r)
	gate.ResetPrompt()
	writeSuccess(w, http.StatusOK, gate.State(), nil)
}

func (h *WatchHandler) State(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, h.gate(r).State(), nil)
}
