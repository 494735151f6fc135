package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"anything-world/internal/model"
)

const uniqueViolation = "23505"

const userColumns = `id, email, username, name, password_hash, newsletter_opt_in,
	email_confirmed_at, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.Name, &u.PasswordHash, &u.NewsletterOptIn,
		&u.EmailConfirmedAt, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	return u, err
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.User{}, model.ErrUserNotFound
	}

	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil && !errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, fmt.Errorf("find user by id: %w", err)
	}
	return u, err
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, strings.TrimSpace(email)))
	if err != nil && !errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, fmt.Errorf("find user by email: %w", err)
	}
	return u, err
}

// FindByIdentifier accepts an email address or a username.
func (r *UserRepository) FindByIdentifier(ctx context.Context, identifier string) (model.User, error) {
	identifier = strings.TrimSpace(identifier)
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE lower(email) = lower($1) OR lower(username) = lower($1)
		 ORDER BY (lower(email) = lower($1)) DESC
		 LIMIT 1`, identifier))
	if err != nil && !errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, fmt.Errorf("find user by identifier: %w", err)
	}
	return u, err
}

func (r *UserRepository) Create(ctx context.Context, u model.User) (model.User, error) {
	created, err := scanUser(r.pool.QueryRow(ctx,
		`INSERT INTO users (email, username, name, password_hash, newsletter_opt_in, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)
		 RETURNING `+userColumns,
		strings.TrimSpace(u.Email), u.Username, u.Name, u.PasswordHash, u.NewsletterOptIn, time.Now().UTC()))

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return model.User{}, model.ErrUserAlreadyExists
	}
	if err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

// FindOrCreateByEmail returns the user with the email, creating a bare
// account on first use (magic link sign-in).
func (r *UserRepository) FindOrCreateByEmail(ctx context.Context, email string) (model.User, error) {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (email) VALUES ($1) ON CONFLICT DO NOTHING`, strings.TrimSpace(email))
	if err != nil {
		return model.User{}, fmt.Errorf("insert user by email: %w", err)
	}
	return r.FindByEmail(ctx, email)
}

func (r *UserRepository) ExistsByEmailOrUsername(ctx context.Context, email string, username string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE lower(email) = lower($1) OR lower(username) = lower($2))`,
		strings.TrimSpace(email), strings.TrimSpace(username)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID string, passwordHash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		userID, passwordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) ConfirmEmail(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET email_confirmed_at = COALESCE(email_confirmed_at, $2), updated_at = $2 WHERE id = $1`,
		userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("confirm email: %w", err)
	}
	return nil
}

func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}
