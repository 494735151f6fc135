// Package mailer delivers transactional email.
package mailer

import (
	"context"
	"fmt"
	"html"
	"log/slog"
)

type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of sending them. It is used
// when no provider key is configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, msg Message) error {
	slog.Info("email not sent, no provider configured", "to", msg.To, "subject", msg.Subject, "body", msg.Text)
	return nil
}

type EmailRecorder interface {
	RecordEmail(status string)
}

type instrumented struct {
	next     Mailer
	recorder EmailRecorder
}

// WithMetrics counts deliveries by status.
func WithMetrics(next Mailer, recorder EmailRecorder) Mailer {
	return &instrumented{next: next, recorder: recorder}
}

func (m *instrumented) Send(ctx context.Context, msg Message) error {
	err := m.next.Send(ctx, msg)
	if err != nil {
		m.recorder.RecordEmail("failed")
		return err
	}
	m.recorder.RecordEmail("sent")
	return nil
}

func linkMessage(to string, subject string, intro string, action string, link string) Message {
	return Message{
		To:      to,
		Subject: subject,
		Text:    fmt.Sprintf("%s\n\n%s: %s\n\nIf you did not request this, you can ignore this email.\n", intro, action, link),
		HTML: fmt.Sprintf(`<p>%s</p><p><a href="%s">%s</a></p><p>If you did not request this, you can ignore this email.</p>`,
			html.EscapeString(intro), html.EscapeString(link), html.EscapeString(action)),
	}
}

func ConfirmSignupMessage(to string, link string) Message {
	return linkMessage(to, "Confirm your Anything World account",
		"Welcome to Anything World. Confirm your email address to finish signing up.",
		"Confirm email", link)
}

func MagicLinkMessage(to string, link string) Message {
	return linkMessage(to, "Your Anything World sign-in link",
		"Use this link to sign in. It can be used once.",
		"Sign in", link)
}

func RecoveryMessage(to string, link string) Message {
	return linkMessage(to, "Reset your Anything World password",
		"We received a request to reset your password.",
		"Reset password", link)
}
