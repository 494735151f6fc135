package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"anything-world/internal/identity"
	"anything-world/internal/mailer"
	"anything-world/internal/model"
)

const bcryptCost = 12

type UserStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	FindByIdentifier(ctx context.Context, identifier string) (model.User, error)
	Create(ctx context.Context, u model.User) (model.User, error)
	FindOrCreateByEmail(ctx context.Context, email string) (model.User, error)
	ExistsByEmailOrUsername(ctx context.Context, email string, username string) (bool, error)
	UpdatePassword(ctx context.Context, userID string, passwordHash string) error
}

type CodeStore interface {
	Store(ctx context.Context, codeHash string, userID string, purpose model.CodePurpose, expiresAt time.Time) error
}

// Sessions is the part of the identity resolver the auth flows drive.
type Sessions interface {
	SignIn(cookies identity.CookieAdapter, id model.Identity) error
	SignOut(cookies identity.CookieAdapter)
	ExchangeOneTimeCode(ctx context.Context, cookies identity.CookieAdapter, code string) (*model.Identity, model.CodePurpose, error)
}

type AuthConfig struct {
	SiteURL string
	CodeTTL time.Duration
}

type AuthService struct {
	users    UserStore
	codes    CodeStore
	sessions Sessions
	roles    *RoleService
	mail     mailer.Mailer
	audit    *AuditService
	siteURL  string
	codeTTL  time.Duration
}

func NewAuthService(users UserStore, codes CodeStore, sessions Sessions, roles *RoleService, mail mailer.Mailer, audit *AuditService, cfg AuthConfig) *AuthService {
	ttl := cfg.CodeTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &AuthService{
		users:    users,
		codes:    codes,
		sessions: sessions,
		roles:    roles,
		mail:     mail,
		audit:    audit,
		siteURL:  strings.TrimRight(cfg.SiteURL, "/"),
		codeTTL:  ttl,
	}
}

// SignUp creates a password account and emails a confirmation link.
func (s *AuthService) SignUp(ctx context.Context, req model.SignUpRequest, actor model.AuditActor) (model.AuthUser, error) {
	email := normalizeEmail(req.Email)
	username := strings.TrimSpace(req.Username)

	if err := validateEmail(email); err != nil {
		return model.AuthUser{}, err
	}
	if err := validateUsername(username); err != nil {
		return model.AuthUser{}, err
	}
	if err := validatePassword(req.Password); err != nil {
		return model.AuthUser{}, err
	}

	exists, err := s.users.ExistsByEmailOrUsername(ctx, email, username)
	if err != nil {
		return model.AuthUser{}, err
	}
	if exists {
		return model.AuthUser{}, model.ErrUserAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return model.AuthUser{}, fmt.Errorf("hash password: %w", err)
	}
	hashed := string(hash)

	user, err := s.users.Create(ctx, model.User{
		Email:           email,
		Username:        &username,
		PasswordHash:    &hashed,
		NewsletterOptIn: req.Newsletter,
	})
	if err != nil {
		return model.AuthUser{}, err
	}

	actor.UserID, actor.Email = user.ID, user.Email
	s.audit.Log(ctx, model.AuditActionSignup, actor, "success", "user:"+user.ID, nil, nil, "")

	roles := []string{}
	if s.roles != nil {
		if _, err := s.roles.grant(ctx, user.ID, model.RoleViewer); err != nil {
			slog.Warn("default role grant failed", "user_id", user.ID, "error", err)
		} else {
			roles = append(roles, model.RoleViewer)
		}
	}

	if err := s.sendCode(ctx, user, model.CodePurposeSignup, ""); err != nil {
		slog.Warn("signup confirmation not sent", "user_id", user.ID, "error", err)
	}

	return model.AuthUser{ID: user.ID, Email: user.Email, Username: username, Roles: roles}, nil
}

// SignIn checks a password against an email or username and starts a
// session through cookies.
func (s *AuthService) SignIn(ctx context.Context, cookies identity.CookieAdapter, req model.SignInRequest, actor model.AuditActor) (model.Identity, error) {
	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" || req.Password == "" {
		return model.Identity{}, model.ErrInvalidCredentials
	}

	user, err := s.users.FindByIdentifier(ctx, identifier)
	if errors.Is(err, model.ErrUserNotFound) {
		s.audit.Log(ctx, model.AuditActionSignIn, actor, "failure", "identifier:"+identifier, nil, nil, "unknown user")
		return model.Identity{}, model.ErrInvalidCredentials
	}
	if err != nil {
		return model.Identity{}, err
	}

	if user.PasswordHash == nil || bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)) != nil {
		actor.UserID = user.ID
		s.audit.Log(ctx, model.AuditActionSignIn, actor, "failure", "user:"+user.ID, nil, nil, "bad password")
		return model.Identity{}, model.ErrInvalidCredentials
	}

	id := user.Identity()
	if err := s.sessions.SignIn(cookies, id); err != nil {
		return model.Identity{}, err
	}

	actor.UserID, actor.Email = user.ID, user.Email
	s.audit.Log(ctx, model.AuditActionSignIn, actor, "success", "user:"+user.ID, nil, nil, "")

	return id, nil
}

// SendMagicLink emails a one-time sign-in link, creating the account on
// first use. Only malformed input is reported; delivery problems are logged
// so the response does not reveal whether the address is known.
func (s *AuthService) SendMagicLink(ctx context.Context, email string, redirect string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	user, err := s.users.FindOrCreateByEmail(ctx, email)
	if err != nil {
		slog.Error("magic link user lookup failed", "error", err)
		return nil
	}

	if err := s.sendCode(ctx, user, model.CodePurposeMagicLink, redirect); err != nil {
		slog.Error("magic link not sent", "user_id", user.ID, "error", err)
	}
	return nil
}

// ForgotPassword emails a recovery link when the address has an account.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		slog.Error("recovery user lookup failed", "error", err)
		return nil
	}

	if err := s.sendCode(ctx, user, model.CodePurposeRecovery, ""); err != nil {
		slog.Error("recovery email not sent", "user_id", user.ID, "error", err)
	}
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, id model.Identity, password string, actor model.AuditActor) error {
	if err := validatePassword(password); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	actor.UserID, actor.Email = id.ID, id.Email
	if err := s.users.UpdatePassword(ctx, id.ID, string(hash)); err != nil {
		s.audit.Log(ctx, model.AuditActionPasswordSet, actor, "failure", "user:"+id.ID, nil, nil, err.Error())
		return err
	}

	s.audit.Log(ctx, model.AuditActionPasswordSet, actor, "success", "user:"+id.ID, nil, nil, "")
	return nil
}

// Exchange trades a one-time code for a session. Failures are always
// ErrAuthExchangeFailed.
func (s *AuthService) Exchange(ctx context.Context, cookies identity.CookieAdapter, code string, actor model.AuditActor) (*model.Identity, model.CodePurpose, error) {
	id, purpose, err := s.sessions.ExchangeOneTimeCode(ctx, cookies, code)
	if err != nil {
		s.audit.Log(ctx, model.AuditActionCodeExchange, actor, "failure", "", nil, nil, err.Error())
		return nil, "", err
	}

	actor.UserID, actor.Email = id.ID, id.Email
	s.audit.Log(ctx, model.AuditActionCodeExchange, actor, "success", "user:"+id.ID, nil, map[string]string{"purpose": string(purpose)}, "")
	return id, purpose, nil
}

func (s *AuthService) SignOut(cookies identity.CookieAdapter) {
	s.sessions.SignOut(cookies)
}

// Me returns the account behind id with its roles.
func (s *AuthService) Me(ctx context.Context, id model.Identity) (model.AuthUser, error) {
	user, err := s.users.FindByID(ctx, id.ID)
	if err != nil {
		return model.AuthUser{}, err
	}

	out := model.AuthUser{ID: user.ID, Email: user.Email, Roles: []string{}}
	if user.Username != nil {
		out.Username = *user.Username
	}

	if s.roles != nil {
		roles, err := s.roles.Roles(ctx, user.ID)
		if err != nil {
			return model.AuthUser{}, err
		}
		out.Roles = roles
	}

	return out, nil
}

func (s *AuthService) sendCode(ctx context.Context, user model.User, purpose model.CodePurpose, redirect string) error {
	code, hash, err := identity.NewOneTimeCode()
	if err != nil {
		return err
	}

	if err := s.codes.Store(ctx, hash, user.ID, purpose, time.Now().UTC().Add(s.codeTTL)); err != nil {
		return err
	}

	link := s.CallbackLink(code, purpose, redirect)

	var msg mailer.Message
	switch purpose {
	case model.CodePurposeSignup:
		msg = mailer.ConfirmSignupMessage(user.Email, link)
	case model.CodePurposeRecovery:
		msg = mailer.RecoveryMessage(user.Email, link)
	default:
		msg = mailer.MagicLinkMessage(user.Email, link)
	}

	return s.mail.Send(ctx, msg)
}

// CallbackLink builds the emailed link that lands on the auth callback.
func (s *AuthService) CallbackLink(code string, purpose model.CodePurpose, redirect string) string {
	q := url.Values{}
	q.Set("code", code)
	q.Set("type", string(purpose))
	if redirect != "" {
		q.Set("redirect", redirect)
	}
	return s.siteURL + "/api/auth/callback?" + q.Encode()
}
