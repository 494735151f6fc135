package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"anything-world/internal/model"
)

type RoleRepository struct {
	pool *pgxpool.Pool
}

func NewRoleRepository(pool *pgxpool.Pool) *RoleRepository {
	return &RoleRepository{pool: pool}
}

func normalizeRole(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// HasRole is a read-only lookup against the assignment relation. Unknown
// users and unknown roles both answer false.
func (r *RoleRepository) HasRole(ctx context.Context, userID string, roleName string) (bool, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return false, nil
	}

	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM user_roles ur
			JOIN roles ro ON ro.id = ur.role_id
			WHERE ur.user_id = $1 AND ro.name = $2
		)`, userID, normalizeRole(roleName)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user role: %w", err)
	}
	return exists, nil
}

func (r *RoleRepository) ListForUser(ctx context.Context, userID string) ([]string, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return []string{}, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT ro.name FROM user_roles ur
		 JOIN roles ro ON ro.id = ur.role_id
		 WHERE ur.user_id = $1
		 ORDER BY ro.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user roles: %w", err)
	}
	defer rows.Close()

	roles := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, name)
	}
	return roles, rows.Err()
}

func (r *RoleRepository) EnsureRole(ctx context.Context, name string) (model.Role, error) {
	name = normalizeRole(name)
	if name == "" {
		return model.Role{}, model.ErrInvalidInput
	}

	var role model.Role
	err := r.pool.QueryRow(ctx,
		`INSERT INTO roles (name, description) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id, name, description`, name, name+" role").
		Scan(&role.ID, &role.Name, &role.Description)
	if err != nil {
		return model.Role{}, fmt.Errorf("ensure role: %w", err)
	}
	return role, nil
}

// Grant assigns the role. Duplicate assignments are absorbed by the
// (user_id, role_id) primary key; granted is false when nothing changed.
func (r *RoleRepository) Grant(ctx context.Context, userID string, roleName string) (bool, error) {
	role, err := r.EnsureRole(ctx, roleName)
	if err != nil {
		return false, err
	}

	tag, err := r.pool.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, role_id) DO NOTHING`, userID, role.ID)
	if err != nil {
		return false, fmt.Errorf("grant role: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *RoleRepository) Revoke(ctx context.Context, userID string, roleName string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM user_roles ur USING roles ro
		 WHERE ur.role_id = ro.id AND ur.user_id = $1 AND ro.name = $2`,
		userID, normalizeRole(roleName))
	if err != nil {
		return false, fmt.Errorf("revoke role: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RevokeOthers removes the role from every user except keepUserID.
func (r *RoleRepository) RevokeOthers(ctx context.Context, roleName string, keepUserID string) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM user_roles ur USING roles ro
		 WHERE ur.role_id = ro.id AND ro.name = $1 AND ur.user_id <> $2`,
		normalizeRole(roleName), keepUserID)
	if err != nil {
		return 0, fmt.Errorf("revoke role from others: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *RoleRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM roles`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count roles: %w", err)
	}
	return count, nil
}
