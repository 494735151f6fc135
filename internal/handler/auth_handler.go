package handler

import (
	"net/http"
	"strings"

	"anything-world/internal/middleware"
	"anything-world/internal/model"
	"anything-world/internal/service"
)

type AuthHandler struct {
	service    *service.AuthService
	resolver   middleware.IdentityResolver
	signInPath string
}

func NewAuthHandler(service *service.AuthService, resolver middleware.IdentityResolver, signInPath string) *AuthHandler {
	if signInPath == "" {
		signInPath = "/signin"
	}
	return &AuthHandler{service: service, resolver: resolver, signInPath: signInPath}
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var payload model.SignUpRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.service.SignUp(r.Context(), payload, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, user, nil)
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var payload model.SignInRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	id, err := h.service.SignIn(r.Context(), middleware.RequestCookies(r), payload, actorFromRequest(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, id, nil)
}

func (h *AuthHandler) MagicLink(w http.ResponseWriter, r *http.Request) {
	var payload model.EmailRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	redirect := ""
	if isLocalPath(payload.Redirect) {
		redirect = payload.Redirect
	}

	if err := h.service.SendMagicLink(r.Context(), payload.Email, redirect); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]bool{"sent": true}, nil)
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var payload model.EmailRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.ForgotPassword(r.Context(), payload.Email); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]bool{"sent": true}, nil)
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id := currentIdentity(r, h.resolver)
	if id == nil {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	var payload model.ResetPasswordRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.ResetPassword(r.Context(), *id, payload.Password, actorFromRequest(r)); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]bool{"updated": true}, nil)
}

// Callback lands emailed links. It always answers with a 303 so that the
// browser ends up on a page, never on JSON.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	code := strings.TrimSpace(query.Get("code"))
	purpose := model.CodePurpose(query.Get("type"))
	redirect := query.Get("redirect")

	cookies := middleware.RequestCookies(r)

	target := "/"
	if purpose == model.CodePurposeRecovery {
		target = "/reset-password"
	}
	if isLocalPath(redirect) {
		target = redirect
	}

	if code == "" {
		cookies.Redirect(w, r, target, http.StatusSeeOther)
		return
	}

	_, exchanged, err := h.service.Exchange(r.Context(), cookies, code, actorFromRequest(r))
	if err != nil {
		cookies.Redirect(w, r, h.signInPath+"?error=auth", http.StatusSeeOther)
		return
	}

	if !isLocalPath(redirect) && exchanged == model.CodePurposeRecovery {
		target = "/reset-password"
	}

	cookies.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.service.SignOut(middleware.RequestCookies(r))
	writeSuccess(w, http.StatusOK, map[string]bool{"signed_out": true}, nil)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id := currentIdentity(r, h.resolver)
	if id == nil {
		writeError(w, model.ErrUnauthenticated)
		return
	}

	user, err := h.service.Me(r.Context(), *id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user, nil)
}

// isLocalPath accepts "/path" but not "//host" or absolute URLs.
func isLocalPath(target string) bool {
	return strings.HasPrefix(target, "/") && !strings.HasPrefix(target, "//") && !strings.Contains(target, "\\")
}
