package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"anything-world/internal/database"
	"anything-world/internal/identity"
	"anything-world/internal/mailer"
	"anything-world/internal/middleware"
	"anything-world/internal/model"
	"anything-world/internal/service"
)

type stubResolver struct {
	id    *model.Identity
	err   error
	calls int
}

func (s *stubResolver) Resolve(context.Context, identity.CookieAdapter) (*model.Identity, error) {
	s.calls++
	return s.id, s.err
}

type memoryUsers struct {
	mu   sync.Mutex
	byID map[string]model.User
	seq  int
}

func newMemoryUsers(users ...model.User) *memoryUsers {
	m := &memoryUsers{byID: map[string]model.User{}}
	for _, u := range users {
		m.add(u)
	}
	return m
}

func (m *memoryUsers) add(u model.User) model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == "" {
		m.seq++
		u.ID = fmt.Sprintf("u-%d", m.seq)
	}
	m.byID[u.ID] = u
	return u
}

func (m *memoryUsers) FindByID(_ context.Context, id string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return model.User{}, model.ErrUserNotFound
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (m *memoryUsers) FindByIdentifier(ctx context.Context, identifier string) (model.User, error) {
	return m.FindByEmail(ctx, identifier)
}

func (m *memoryUsers) Create(_ context.Context, u model.User) (model.User, error) {
	return m.add(u), nil
}

func (m *memoryUsers) FindOrCreateByEmail(ctx context.Context, email string) (model.User, error) {
	if u, err := m.FindByEmail(ctx, email); err == nil {
		return u, nil
	}
	return m.add(model.User{Email: email}), nil
}

func (m *memoryUsers) ExistsByEmailOrUsername(ctx context.Context, email string, _ string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	return err == nil, nil
}

func (m *memoryUsers) UpdatePassword(context.Context, string, string) error {
	return nil
}

func (m *memoryUsers) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID), nil
}

type discardCodes struct{}

func (discardCodes) Store(context.Context, string, string, model.CodePurpose, time.Time) error {
	return nil
}

// cookieSessions mimics the resolver: a known code sets the session cookie.
type cookieSessions struct {
	codes map[string]struct {
		id      model.Identity
		purpose model.CodePurpose
	}
}

func (s *cookieSessions) SignIn(cookies identity.CookieAdapter, id model.Identity) error {
	cookies.Set("aw_session", "token-"+id.ID, time.Hour)
	return nil
}

func (s *cookieSessions) SignOut(cookies identity.CookieAdapter) {
	cookies.Remove("aw_session")
}

func (s *cookieSessions) ExchangeOneTimeCode(_ context.Context, cookies identity.CookieAdapter, code string) (*model.Identity, model.CodePurpose, error) {
	entry, ok := s.codes[code]
	if !ok {
		return nil, "", model.ErrAuthExchangeFailed
	}
	delete(s.codes, code)
	cookies.Set("aw_session", "token-"+entry.id.ID, time.Hour)
	return &entry.id, entry.purpose, nil
}

func (s *cookieSessions) addCode(code string, id model.Identity, purpose model.CodePurpose) {
	if s.codes == nil {
		s.codes = map[string]struct {
			id      model.Identity
			purpose model.CodePurpose
		}{}
	}
	s.codes[code] = struct {
		id      model.Identity
		purpose model.CodePurpose
	}{id: id, purpose: purpose}
}

type nopMailer struct{}

func (nopMailer) Send(context.Context, mailer.Message) error { return nil }

type memoryRoles struct {
	mu      sync.Mutex
	holders map[string]map[string]bool
}

func newMemoryRoles() *memoryRoles {
	return &memoryRoles{holders: map[string]map[string]bool{}}
}

func (m *memoryRoles) HasRole(_ context.Context, userID string, role string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holders[role][userID], nil
}

func (m *memoryRoles) ListForUser(_ context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, role := range model.DefaultRoles {
		if m.holders[role][userID] {
			out = append(out, role)
		}
	}
	return out, nil
}

func (m *memoryRoles) EnsureRole(_ context.Context, name string) (model.Role, error) {
	return model.Role{ID: name, Name: name}, nil
}

func (m *memoryRoles) Grant(_ context.Context, userID string, role string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.holders[role] == nil {
		m.holders[role] = map[string]bool{}
	}
	if m.holders[role][userID] {
		return false, nil
	}
	m.holders[role][userID] = true
	return true, nil
}

func (m *memoryRoles) Revoke(_ context.Context, userID string, role string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.holders[role][userID] {
		return false, nil
	}
	delete(m.holders[role], userID)
	return true, nil
}

func (m *memoryRoles) RevokeOthers(context.Context, string, string) (int64, error) {
	return 0, nil
}

func (m *memoryRoles) Count(context.Context) (int, error) {
	return len(model.DefaultRoles), nil
}

type memoryAudit struct {
	mu      sync.Mutex
	entries []model.AuditEntry
}

func (m *memoryAudit) Log(_ context.Context, entry model.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memoryAudit) Query(_ context.Context, q model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries, model.Meta{Page: q.Page, Limit: q.Limit, Total: len(m.entries), TotalPages: 1}, nil
}

type memorySubscribers struct {
	mu   sync.Mutex
	subs map[string]model.Subscriber
}

func (m *memorySubscribers) Upsert(_ context.Context, s model.Subscriber) (model.Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subs == nil {
		m.subs = map[string]model.Subscriber{}
	}
	s.Status = model.SubscriberStatusSubscribed
	m.subs[s.Email] = s
	return s, nil
}

func (m *memorySubscribers) Unsubscribe(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[email]
	if !ok {
		return model.ErrSubscriberNotFound
	}
	s.Status = model.SubscriberStatusUnsubscribed
	m.subs[email] = s
	return nil
}

type memoryOnboarding struct {
	saved map[string][]string
}

func (m *memoryOnboarding) Upsert(_ context.Context, userID string, choices []string) (model.Onboarding, error) {
	if m.saved == nil {
		m.saved = map[string][]string{}
	}
	m.saved[userID] = choices
	return model.Onboarding{UserID: userID, UsageChoices: choices}, nil
}

type fakeDatabase struct {
	err error
}

func (f fakeDatabase) Health(context.Context) error { return f.err }

func (f fakeDatabase) Info(context.Context) (database.Info, error) {
	if f.err != nil {
		return database.Info{}, f.err
	}
	return database.Info{Database: "anything_world", Version: "PostgreSQL 16"}, nil
}

func newRoleService(users *memoryUsers, roles *memoryRoles, audit *memoryAudit) *service.RoleService {
	return service.NewRoleService(roles, users, service.NewAuditService(audit))
}

// serveWithCookies runs h behind SessionCookies like the router does.
func serveWithCookies(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	middleware.SessionCookies(h).ServeHTTP(rec, req)
	return rec
}

func withIdentity(req *http.Request, id *model.Identity) *http.Request {
	return req.WithContext(middleware.WithIdentity(req.Context(), id))
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func subscriberFor(email string) model.Subscriber {
	return model.Subscriber{Email: email, Source: "site_form", Tags: []string{}}
}
