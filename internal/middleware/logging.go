package middleware

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"anything-world/internal/model"
	"anything-world/internal/ratelimit"
)

const (
	requestIDHeader  = "X-Request-ID"
	maxLoggedErrBody = 4 << 10
)

const requestIDContextKey contextKey = "request_id"

// RequestIDFromContext returns the id Logging assigned to the request.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDContextKey).(string)
	return id
}

// Logging writes one access line per request. Error envelopes are decoded so
// the line carries the API error code.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()

		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDContextKey, requestID)))

		attrs := []slog.Attr{
			slog.String("request_id", requestID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Int64("duration_ms", time.Since(started).Milliseconds()),
			slog.String("client_ip", ratelimit.ClientIP(r)),
		}
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			attrs = append(attrs, slog.String("route", rctx.RoutePattern()))
		}
		if location := rec.Header().Get("Location"); location != "" && rec.status >= 300 && rec.status < 400 {
			attrs = append(attrs, slog.String("location", location))
		}
		if apiErr := rec.apiError(); apiErr != nil {
			attrs = append(attrs, slog.String("error_code", apiErr.Code), slog.String("error_message", apiErr.Message))
		}

		level := slog.LevelInfo
		switch {
		case rec.status >= 500:
			level = slog.LevelError
		case rec.status >= 400:
			level = slog.LevelWarn
		}
		slog.LogAttrs(r.Context(), level, "request", attrs...)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	errBody     bytes.Buffer
}

func (rec *statusRecorder) WriteHeader(statusCode int) {
	if rec.wroteHeader {
		return
	}
	rec.status = statusCode
	rec.wroteHeader = true
	rec.ResponseWriter.WriteHeader(statusCode)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	if !rec.wroteHeader {
		rec.WriteHeader(http.StatusOK)
	}
	if rec.status >= 400 && rec.errBody.Len() < maxLoggedErrBody {
		rec.errBody.Write(b[:min(len(b), maxLoggedErrBody-rec.errBody.Len())])
	}
	return rec.ResponseWriter.Write(b)
}

func (rec *statusRecorder) apiError() *model.APIError {
	if rec.status < 400 || rec.errBody.Len() == 0 {
		return nil
	}
	var envelope model.APIResponse
	if err := json.Unmarshal(rec.errBody.Bytes(), &envelope); err != nil {
		return nil
	}
	return envelope.Error
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}
