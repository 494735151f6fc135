package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"anything-world/internal/model"
)

type UserStore interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	ConfirmEmail(ctx context.Context, userID string) error
}

type CodeConsumer interface {
	Consume(ctx context.Context, codeHash string) (model.OneTimeCode, error)
}

// Resolver turns a request's session cookie into an Identity and exchanges
// one-time codes for new sessions. A Resolver without a codec is disabled:
// every caller is anonymous and every exchange fails.
type Resolver struct {
	codec      *TokenCodec
	users      UserStore
	codes      CodeConsumer
	cookieName string
}

func NewResolver(codec *TokenCodec, users UserStore, codes CodeConsumer, cookieName string) *Resolver {
	return &Resolver{codec: codec, users: users, codes: codes, cookieName: cookieName}
}

func (r *Resolver) Enabled() bool {
	return r.codec != nil
}

func (r *Resolver) CookieName() string {
	return r.cookieName
}

// Resolve returns nil without an error when the caller is anonymous. Errors
// are reserved for store failures.
func (r *Resolver) Resolve(ctx context.Context, cookies CookieAdapter) (*model.Identity, error) {
	if r.codec == nil {
		return nil, nil
	}

	raw, ok := cookies.Get(r.cookieName)
	if !ok {
		return nil, nil
	}

	claims, err := r.codec.Parse(raw)
	if err != nil {
		cookies.Remove(r.cookieName)
		return nil, nil
	}

	user, err := r.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		cookies.Remove(r.cookieName)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session user: %w", err)
	}

	id := user.Identity()

	remaining := claims.ExpiresAt.Sub(r.codec.now())
	if remaining < r.codec.TTL()/2 {
		if err := r.SignIn(cookies, id); err != nil {
			slog.Warn("session refresh failed", "user_id", id.ID, "error", err)
		}
	}

	return &id, nil
}

// PeekUserID returns the subject of a valid session token without touching
// the user store or the cookie. It is used for rate limit keys.
func (r *Resolver) PeekUserID(cookies CookieAdapter) string {
	if r.codec == nil {
		return ""
	}

	raw, ok := cookies.Get(r.cookieName)
	if !ok {
		return ""
	}

	claims, err := r.codec.Parse(raw)
	if err != nil {
		return ""
	}
	return claims.UserID
}

// ExchangeOneTimeCode consumes code and starts a session for its owner. Any
// failure is reported as ErrAuthExchangeFailed; the code is never retried.
func (r *Resolver) ExchangeOneTimeCode(ctx context.Context, cookies CookieAdapter, code string) (*model.Identity, model.CodePurpose, error) {
	code = strings.TrimSpace(code)
	if r.codec == nil || code == "" {
		return nil, "", model.ErrAuthExchangeFailed
	}

	consumed, err := r.codes.Consume(ctx, HashCode(code))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", model.ErrAuthExchangeFailed, err)
	}

	user, err := r.users.FindByID(ctx, consumed.UserID)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", model.ErrAuthExchangeFailed, err)
	}

	if user.EmailConfirmedAt == nil {
		if err := r.users.ConfirmEmail(ctx, user.ID); err != nil {
			slog.Warn("confirm email after exchange failed", "user_id", user.ID, "error", err)
		}
	}

	id := user.Identity()
	if err := r.SignIn(cookies, id); err != nil {
		return nil, "", fmt.Errorf("%w: %v", model.ErrAuthExchangeFailed, err)
	}

	return &id, consumed.Purpose, nil
}

func (r *Resolver) SignIn(cookies CookieAdapter, id model.Identity) error {
	if r.codec == nil {
		return model.ErrUnauthenticated
	}

	token, _, err := r.codec.Issue(id)
	if err != nil {
		return err
	}

	cookies.Set(r.cookieName, token, r.codec.TTL())
	return nil
}

func (r *Resolver) SignOut(cookies CookieAdapter) {
	cookies.Remove(r.cookieName)
}

// NewOneTimeCode returns a random URL-safe code and the hash that is stored
// in place of it.
func NewOneTimeCode() (string, string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate one-time code: %w", err)
	}

	code := base64.RawURLEncoding.EncodeToString(buf)
	return code, HashCode(code), nil
}

func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
