package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"anything-world/internal/model"
)

const (
	defaultNewsletterSource = "site_form"
	unsubscribeSigLen       = 16
	maxTags                 = 20
)

type NewsletterStore interface {
	Upsert(ctx context.Context, s model.Subscriber) (model.Subscriber, error)
	Unsubscribe(ctx context.Context, email string) error
}

type NewsletterService struct {
	store   NewsletterStore
	secret  []byte
	siteURL string
	policy  *bluemonday.Policy
}

func NewNewsletterService(store NewsletterStore, unsubscribeSecret string, siteURL string) *NewsletterService {
	return &NewsletterService{
		store:   store,
		secret:  []byte(unsubscribeSecret),
		siteURL: strings.TrimRight(siteURL, "/"),
		policy:  bluemonday.StrictPolicy(),
	}
}

// clean strips markup from free-text fields supplied by the signup form.
func (s *NewsletterService) clean(value string) string {
	return strings.TrimSpace(s.policy.Sanitize(strings.TrimSpace(value)))
}

func (s *NewsletterService) optional(value string) *string {
	cleaned := s.clean(value)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

func (s *NewsletterService) Subscribe(ctx context.Context, req model.SubscribeRequest) (model.Subscriber, error) {
	email := normalizeEmail(req.Email)
	if err := validateEmail(email); err != nil {
		return model.Subscriber{}, err
	}

	source := s.clean(req.Source)
	if source == "" {
		source = defaultNewsletterSource
	}

	tags := make([]string, 0, len(req.Tags))
	for _, tag := range req.Tags {
		if len(tags) == maxTags {
			break
		}
		if cleaned := s.clean(tag); cleaned != "" {
			tags = append(tags, cleaned)
		}
	}

	return s.store.Upsert(ctx, model.Subscriber{
		Email:     email,
		FirstName: s.optional(req.FirstName),
		LastName:  s.optional(req.LastName),
		Source:    source,
		Tags:      tags,
	})
}

// Sign returns the unsubscribe signature for email: the first 16 hex
// characters of HMAC-SHA256(secret, email).
func (s *NewsletterService) Sign(email string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(email))
	return hex.EncodeToString(mac.Sum(nil))[:unsubscribeSigLen]
}

// Verify accepts any signature when no secret is configured.
func (s *NewsletterService) Verify(email string, signature string) bool {
	if len(s.secret) == 0 {
		return true
	}
	if signature == "" {
		return false
	}
	return hmac.Equal([]byte(s.Sign(email)), []byte(signature))
}

func (s *NewsletterService) Unsubscribe(ctx context.Context, email string, signature string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return model.ErrInvalidInput
	}
	if !s.Verify(email, signature) {
		return model.ErrInvalidSignature
	}
	// Addresses that already left or never joined get the same answer.
	if err := s.store.Unsubscribe(ctx, email); err != nil && !errors.Is(err, model.ErrSubscriberNotFound) {
		return err
	}
	return nil
}

// UnsubscribeLink is the signed link placed in newsletter footers.
func (s *NewsletterService) UnsubscribeLink(email string) string {
	q := url.Values{}
	q.Set("email", email)
	if len(s.secret) > 0 {
		q.Set("s", s.Sign(email))
	}
	return s.siteURL + "/api/newsletter/unsubscribe?" + q.Encode()
}
