package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"anything-world/internal/ratelimit"
)

type LimiterObserver interface {
	RecordLimiterDecision(limiter string, outcome string)
}

// UserIDFunc reports the principal behind a request without a store lookup.
type UserIDFunc func(r *http.Request) string

type RateLimitMiddleware struct {
	limiter  ratelimit.Limiter
	userID   UserIDFunc
	observer LimiterObserver
	now      func() time.Time
}

func NewRateLimitMiddleware(limiter ratelimit.Limiter, userID UserIDFunc, observer LimiterObserver) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter:  limiter,
		userID:   userID,
		observer: observer,
		now:      time.Now,
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ratelimit.IdentityKey(r, m.principal(r))

		result, err := m.limiter.Limit(r.Context(), key)
		if err != nil {
			slog.Error("rate limiter unavailable", "limiter", m.limiter.Name(), "error", err)
			m.record("error")
			writeJSONError(w, http.StatusServiceUnavailable, "RATE_LIMITER_UNAVAILABLE", "Rate limiter unavailable")
			return
		}

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(result.Reset.Unix(), 10))

		if !result.Allowed {
			m.record("denied")
			h.Set("Retry-After", strconv.Itoa(int(result.RetryAfter(m.now()).Seconds())))
			writeJSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
			return
		}

		m.record("allowed")
		ctx := withLimitInfo(r.Context(), LimitInfo{Limiter: m.limiter.Name(), Key: key, Result: result})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *RateLimitMiddleware) principal(r *http.Request) string {
	if id, ok := IdentityFromContext(r.Context()); ok {
		return id.ID
	}
	if m.userID != nil {
		return m.userID(r)
	}
	return ""
}

func (m *RateLimitMiddleware) record(outcome string) {
	if m.observer != nil {
		m.observer.RecordLimiterDecision(m.limiter.Name(), outcome)
	}
}
