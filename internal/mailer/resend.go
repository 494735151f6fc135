package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const defaultResendEndpoint = "https://api.resend.com/emails"

// ResendMailer sends through the Resend HTTP API. Sends are paced so bursts
// of sign-up traffic stay under the provider's request rate.
type ResendMailer struct {
	apiKey   string
	from     string
	endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

type ResendOption func(*ResendMailer)

func WithEndpoint(endpoint string) ResendOption {
	return func(m *ResendMailer) { m.endpoint = endpoint }
}

func WithHTTPClient(client *http.Client) ResendOption {
	return func(m *ResendMailer) { m.client = client }
}

func NewResendMailer(apiKey string, from string, perSecond float64, opts ...ResendOption) *ResendMailer {
	if perSecond <= 0 {
		perSecond = 2
	}

	m := &ResendMailer{
		apiKey:   apiKey,
		from:     from,
		endpoint: defaultResendEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(perSecond), 1),
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

func (m *ResendMailer) Send(ctx context.Context, msg Message) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for send slot: %w", err)
	}

	payload, err := json.Marshal(resendRequest{
		From:    m.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("send email: provider returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	return nil
}
