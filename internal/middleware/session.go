package middleware

import (
	"net/http"

	"anything-world/internal/identity"
)

// SessionCookies installs a buffered cookie adapter for the request and
// writes its mutations exactly once, just before the response status.
func SessionCookies(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookies := identity.NewHTTPCookies(r, identity.IsSecureRequest(r))
		cw := &cookieWriter{ResponseWriter: w, cookies: cookies}

		next.ServeHTTP(cw, r.WithContext(WithCookies(r.Context(), cookies)))

		cookies.Flush(w)
	})
}

type cookieWriter struct {
	http.ResponseWriter
	cookies *identity.HTTPCookies
}

func (cw *cookieWriter) WriteHeader(statusCode int) {
	cw.cookies.Flush(cw.ResponseWriter)
	cw.ResponseWriter.WriteHeader(statusCode)
}

func (cw *cookieWriter) Write(b []byte) (int, error) {
	cw.cookies.Flush(cw.ResponseWriter)
	return cw.ResponseWriter.Write(b)
}

func (cw *cookieWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}
