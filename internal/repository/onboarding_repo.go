package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"anything-world/internal/model"
)

type OnboardingRepository struct {
	pool *pgxpool.Pool
}

func NewOnboardingRepository(pool *pgxpool.Pool) *OnboardingRepository {
	return &OnboardingRepository{pool: pool}
}

func (r *OnboardingRepository) Upsert(ctx context.Context, userID string, choices []string) (model.Onboarding, error) {
	out := model.Onboarding{UserID: userID}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO onboarding (user_id, usage_choices, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET
		   usage_choices = EXCLUDED.usage_choices,
		   updated_at = EXCLUDED.updated_at
		 RETURNING usage_choices, updated_at`,
		userID, choices, time.Now().UTC()).
		Scan(&out.UsageChoices, &out.UpdatedAt)
	if err != nil {
		return model.Onboarding{}, fmt.Errorf("upsert onboarding: %w", err)
	}
	return out, nil
}
