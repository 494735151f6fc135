package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"anything-world/internal/model"
)

type NewsletterRepository struct {
	pool *pgxpool.Pool
}

func NewNewsletterRepository(pool *pgxpool.Pool) *NewsletterRepository {
	return &NewsletterRepository{pool: pool}
}

// Upsert subscribes the email, reviving an earlier unsubscribe.
func (r *NewsletterRepository) Upsert(ctx context.Context, s model.Subscriber) (model.Subscriber, error) {
	now := time.Now().UTC()
	tags := s.Tags
	if tags == nil {
		tags = []string{}
	}

	var out model.Subscriber
	err := r.pool.QueryRow(ctx,
		`INSERT INTO newsletter_subscribers
		 (email, first_name, last_name, status, source, tags, confirmed_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		 ON CONFLICT (email) DO UPDATE SET
		   first_name = EXCLUDED.first_name,
		   last_name = EXCLUDED.last_name,
		   status = EXCLUDED.status,
		   source = EXCLUDED.source,
		   tags = EXCLUDED.tags,
		   confirmed_at = EXCLUDED.confirmed_at,
		   unsubscribed_at = NULL
		 RETURNING email, first_name, last_name, status, source, tags, confirmed_at, unsubscribed_at, created_at`,
		strings.ToLower(strings.TrimSpace(s.Email)), s.FirstName, s.LastName,
		model.SubscriberStatusSubscribed, s.Source, tags, now).
		Scan(&out.Email, &out.FirstName, &out.LastName, &out.Status, &out.Source, &out.Tags,
			&out.ConfirmedAt, &out.UnsubscribedAt, &out.CreatedAt)
	if err != nil {
		return model.Subscriber{}, fmt.Errorf("upsert subscriber: %w", err)
	}
	return out, nil
}

func (r *NewsletterRepository) Unsubscribe(ctx context.Context, email string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE newsletter_subscribers
		 SET status = $2, unsubscribed_at = $3
		 WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)), model.SubscriberStatusUnsubscribed, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrSubscriberNotFound
	}
	return nil
}
