package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"anything-world/internal/model"
)

type CodeRepository struct {
	pool *pgxpool.Pool
}

func NewCodeRepository(pool *pgxpool.Pool) *CodeRepository {
	return &CodeRepository{pool: pool}
}

func (r *CodeRepository) Store(ctx context.Context, codeHash string, userID string, purpose model.CodePurpose, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO one_time_codes (code_hash, user_id, purpose, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		codeHash, userID, string(purpose), time.Now().UTC(), expiresAt)
	if err != nil {
		return fmt.Errorf("store one-time code: %w", err)
	}
	return nil
}

// Consume marks the code used and returns it in a single statement, so two
// concurrent exchanges of the same code cannot both succeed.
func (r *CodeRepository) Consume(ctx context.Context, codeHash string) (model.OneTimeCode, error) {
	var code model.OneTimeCode
	var purpose string
	err := r.pool.QueryRow(ctx,
		`UPDATE one_time_codes
		 SET consumed_at = now()
		 WHERE code_hash = $1 AND consumed_at IS NULL AND expires_at > now()
		 RETURNING user_id, purpose, expires_at, consumed_at`, codeHash).
		Scan(&code.UserID, &purpose, &code.ExpiresAt, &code.ConsumedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.OneTimeCode{}, model.ErrCodeNotFound
	}
	if err != nil {
		return model.OneTimeCode{}, fmt.Errorf("consume one-time code: %w", err)
	}

	code.Purpose = model.CodePurpose(purpose)
	return code, nil
}

func (r *CodeRepository) CleanExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM one_time_codes WHERE expires_at <= now() OR consumed_at IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("clean expired codes: %w", err)
	}
	return tag.RowsAffected(), nil
}
