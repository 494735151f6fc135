package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"anything-world/internal/identity"
	"anything-world/internal/mailer"
	"anything-world/internal/model"
)

type memoryUsers struct {
	mu    sync.Mutex
	byID  map[string]model.User
	seq   int
	fails error
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: map[string]model.User{}}
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
	if m.fails != nil {
		return model.User{}, m.fails
	}
	for _, u := range m.byID {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (m *memoryUsers) FindByIdentifier(ctx context.Context, identifier string) (model.User, error) {
	if u, err := m.FindByEmail(ctx, identifier); err == nil {
		return u, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Username != nil && strings.EqualFold(*u.Username, identifier) {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
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

func (m *memoryUsers) ExistsByEmailOrUsername(ctx context.Context, email string, username string) (bool, error) {
	_, err := m.FindByIdentifier(ctx, email)
	if err == nil {
		return true, nil
	}
	_, err = m.FindByIdentifier(ctx, username)
	return err == nil, nil
}

func (m *memoryUsers) UpdatePassword(_ context.Context, userID string, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return model.ErrUserNotFound
	}
	u.PasswordHash = &hash
	m.byID[userID] = u
	return nil
}

type storedCode struct {
	hash    string
	userID  string
	purpose model.CodePurpose
}

type memoryCodes struct {
	codes []storedCode
}

func (m *memoryCodes) Store(_ context.Context, hash string, userID string, purpose model.CodePurpose, _ time.Time) error {
	m.codes = append(m.codes, storedCode{hash: hash, userID: userID, purpose: purpose})
	return nil
}

type fakeSessions struct {
	signedIn []model.Identity
	exchange func(code string) (*model.Identity, model.CodePurpose, error)
}

func (f *fakeSessions) SignIn(_ identity.CookieAdapter, id model.Identity) error {
	f.signedIn = append(f.signedIn, id)
	return nil
}

func (f *fakeSessions) SignOut(identity.CookieAdapter) {}

func (f *fakeSessions) ExchangeOneTimeCode(_ context.Context, _ identity.CookieAdapter, code string) (*model.Identity, model.CodePurpose, error) {
	return f.exchange(code)
}

type captureMailer struct {
	sent []mailer.Message
}

func (c *captureMailer) Send(_ context.Context, msg mailer.Message) error {
	c.sent = append(c.sent, msg)
	return nil
}

type memoryRoles struct {
	mu      sync.Mutex
	roles   map[string]bool
	holders map[string]map[string]bool
}

func newMemoryRoles() *memoryRoles {
	return &memoryRoles{roles: map[string]bool{}, holders: map[string]map[string]bool{}}
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
	for role, holders := range m.holders {
		if holders[userID] {
			out = append(out, role)
		}
	}
	return out, nil
}

func (m *memoryRoles) EnsureRole(_ context.Context, name string) (model.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[name] = true
	return model.Role{ID: name, Name: name}, nil
}

func (m *memoryRoles) Grant(ctx context.Context, userID string, role string) (bool, error) {
	_, _ = m.EnsureRole(ctx, role)
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

func (m *memoryRoles) RevokeOthers(_ context.Context, role string, keep string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for userID := range m.holders[role] {
		if userID != keep {
			delete(m.holders[role], userID)
			n++
		}
	}
	return n, nil
}

func (m *memoryRoles) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.roles), nil
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
	var out []model.AuditEntry
	for _, e := range m.entries {
		if q.Action == "" || e.Action == q.Action {
			out = append(out, e)
		}
	}
	return out, model.Meta{Page: q.Page, Limit: q.Limit, Total: len(out)}, nil
}

func (m *memoryAudit) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Action+":"+e.Status)
	}
	return out
}
