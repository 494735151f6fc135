// Package watchgate lets anonymous visitors watch before asking them to sign
// up. All state lives in cookies on the visitor's side.
package watchgate

import (
	"net/url"
	"strconv"
	"time"

	"anything-world/internal/identity"
)

const (
	CookieLastMedia     = "aw_last_media"
	CookieWatchedSecs   = "aw_watched_secs"
	CookieCompleted     = "aw_completed"
	CookiePrompted      = "aw_prompted"
	DefaultThreshold    = 60
	defaultCookieMaxAge = 7 * 24 * time.Hour
)

// State is a snapshot of the gate cookies.
type State struct {
	LastMedia   string `json:"lastMedia,omitempty"`
	WatchedSecs int    `json:"watchedSecs"`
	Completed   bool   `json:"completed"`
	Prompted    bool   `json:"prompted"`
}

// Gate is built per request around that request's cookie adapter.
type Gate struct {
	cookies   identity.CookieAdapter
	threshold int
	maxAge    time.Duration
}

func New(cookies identity.CookieAdapter) *Gate {
	return &Gate{cookies: cookies, threshold: DefaultThreshold, maxAge: defaultCookieMaxAge}
}

// Factory is the shape handlers receive so tests can swap the gate out.
type Factory func(cookies identity.CookieAdapter) *Gate

func (g *Gate) State() State {
	return State{
		LastMedia:   g.lastMedia(),
		WatchedSecs: g.watchedSecs(),
		Completed:   g.flag(CookieCompleted),
		Prompted:    g.flag(CookiePrompted),
	}
}

// MarkProgress moves the last-media marker to mediaID and keeps the highest
// watch time seen across items.
func (g *Gate) MarkProgress(mediaID string, seconds int) {
	if mediaID == "" || seconds < 0 {
		return
	}

	if g.lastMedia() != mediaID {
		g.set(CookieLastMedia, url.QueryEscape(mediaID))
	}

	if seconds > g.watchedSecs() {
		g.set(CookieWatchedSecs, strconv.Itoa(seconds))
	}
}

func (g *Gate) MarkCompleted(mediaID string) {
	if mediaID == "" {
		return
	}
	g.set(CookieLastMedia, url.QueryEscape(mediaID))
	g.set(CookieCompleted, "1")
}

// ShouldGateOnNext reports whether starting mediaID should show the sign-up
// prompt: the visitor finished or passed the threshold on a different item
// and has not been prompted yet.
func (g *Gate) ShouldGateOnNext(mediaID string) bool {
	last := g.lastMedia()
	different := last != "" && last != mediaID
	return !g.flag(CookiePrompted) && different && (g.flag(CookieCompleted) || g.watchedSecs() >= g.threshold)
}

func (g *Gate) MarkPromptShown() {
	g.set(CookiePrompted, "1")
}

func (g *Gate) ResetPrompt() {
	g.set(CookiePrompted, "0")
}

func (g *Gate) set(name string, value string) {
	g.cookies.Set(name, value, g.maxAge)
}

func (g *Gate) lastMedia() string {
	raw, ok := g.cookies.Get(CookieLastMedia)
	if !ok {
		return ""
	}
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func (g *Gate) watchedSecs() int {
	raw, ok := g.cookies.Get(CookieWatchedSecs)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (g *Gate) flag(name string) bool {
	v, ok := g.cookies.Get(name)
	return ok && v == "1"
}
