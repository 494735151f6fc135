package identity

import (
	"net/http"
	"sync"
	"time"
)

// CookieAdapter is the only way the identity layer touches the transport
// credential.
type CookieAdapter interface {
	Get(name string) (string, bool)
	Set(name string, value string, maxAge time.Duration)
	Remove(name string)
}

// HTTPCookies reads cookies from the request and buffers writes until Flush.
// Reads observe pending writes so a refreshed credential is visible to the
// rest of the request.
type HTTPCookies struct {
	r      *http.Request
	secure bool

	mu      sync.Mutex
	pending map[string]*http.Cookie
	order   []string
	flushed bool
}

func NewHTTPCookies(r *http.Request, secure bool) *HTTPCookies {
	return &HTTPCookies{
		r:       r,
		secure:  secure,
		pending: map[string]*http.Cookie{},
	}
}

func (c *HTTPCookies) Get(name string) (string, bool) {
	c.mu.Lock()
	if pending, ok := c.pending[name]; ok {
		c.mu.Unlock()
		if pending.MaxAge < 0 {
			return "", false
		}
		return pending.Value, true
	}
	c.mu.Unlock()

	cookie, err := c.r.Cookie(name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func (c *HTTPCookies) Set(name string, value string, maxAge time.Duration) {
	c.put(&http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Expires:  time.Now().Add(maxAge).UTC(),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c *HTTPCookies) Remove(name string) {
	c.put(&http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c *HTTPCookies) put(cookie *http.Cookie) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.pending[cookie.Name]; !exists {
		c.order = append(c.order, cookie.Name)
	}
	c.pending[cookie.Name] = cookie
}

// Pending reports whether writes are waiting to be flushed.
func (c *HTTPCookies) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.flushed && len(c.pending) > 0
}

// Flush writes buffered cookies to the response headers. Only the first call
// has an effect; it must run before the status line is written.
func (c *HTTPCookies) Flush(w http.ResponseWriter) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.flushed {
		return
	}
	c.flushed = true

	for _, name := range c.order {
		http.SetCookie(w, c.pending[name])
	}
}

// Redirect flushes pending credential writes and then redirects, so redirect
// responses carry the same cookie mutations as any other response.
func (c *HTTPCookies) Redirect(w http.ResponseWriter, r *http.Request, target string, status int) {
	c.Flush(w)
	http.Redirect(w, r, target, status)
}

// IsSecureRequest reports whether the request arrived over TLS, directly or
// through a terminating proxy.
func IsSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return r.Header.Get("X-Forwarded-Proto") == "https"
}
