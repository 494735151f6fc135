package handler

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"anything-world/internal/model"
	"anything-world/internal/service"
)

var unsubscribePage = template.Must(template.New("unsubscribe").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<main>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
<p><a href="/">Back to Anything World</a></p>
</main>
</body>
</html>
`))

type unsubscribeView struct {
	Title   string
	Message string
}

type NewsletterHandler struct {
	service *service.NewsletterService
}

func NewNewsletterHandler(service *service.NewsletterService) *NewsletterHandler {
	return &NewsletterHandler{service: service}
}

func (h *NewsletterHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var payload model.SubscribeRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	subscriber, err := h.service.Subscribe(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, subscriber, nil)
}

// Unsubscribe is opened from an email client, so it answers with a page.
func (h *NewsletterHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	err := h.service.Unsubscribe(r.Context(), query.Get("email"), query.Get("s"))
	switch {
	case err == nil:
		renderUnsubscribe(w, http.StatusOK, "You're unsubscribed", "You will no longer receive the Anything World newsletter.")
	case errors.Is(err, model.ErrInvalidInput):
		renderUnsubscribe(w, http.StatusBadRequest, "Missing email", "This unsubscribe link is incomplete.")
	case errors.Is(err, model.ErrInvalidSignature):
		renderUnsubscribe(w, http.StatusUnauthorized, "Invalid link", "This unsubscribe link is invalid or has been altered.")
	default:
		slog.Error("newsletter unsubscribe failed", "error", err)
		renderUnsubscribe(w, http.StatusInternalServerError, "Something went wrong", "Please try again later.")
	}
}

func renderUnsubscribe(w http.ResponseWriter, status int, title string, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := unsubscribePage.Execute(w, unsubscribeView{Title: title, Message: message}); err != nil {
		slog.Error("render unsubscribe page", "error", err)
	}
}
