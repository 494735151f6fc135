package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"anything-world/internal/model"
	"anything-world/pkg/apierror"
)

type RoleStore interface {
	HasRole(ctx context.Context, userID string, roleName string) (bool, error)
	ListForUser(ctx context.Context, userID string) ([]string, error)
	EnsureRole(ctx context.Context, name string) (model.Role, error)
	Grant(ctx context.Context, userID string, roleName string) (bool, error)
	Revoke(ctx context.Context, userID string, roleName string) (bool, error)
	RevokeOthers(ctx context.Context, roleName string, keepUserID string) (int64, error)
	Count(ctx context.Context) (int, error)
}

type UserLookup interface {
	FindByID(ctx context.Context, id string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
}

// RoleChange describes the effect of a grant or revoke.
type RoleChange struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Changed    bool   `json:"changed"`
	RevokedFor int64  `json:"revoked_from_others,omitempty"`
}

type RoleService struct {
	roles RoleStore
	users UserLookup
	audit *AuditService
}

func NewRoleService(roles RoleStore, users UserLookup, audit *AuditService) *RoleService {
	return &RoleService{roles: roles, users: users, audit: audit}
}

// HasRole is a direct lookup with no caching; callers memoize per request.
func (s *RoleService) HasRole(ctx context.Context, userID string, role string) (bool, error) {
	return s.roles.HasRole(ctx, userID, role)
}

func (s *RoleService) Roles(ctx context.Context, userID string) ([]string, error) {
	roles, err := s.roles.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if roles == nil {
		roles = []string{}
	}
	return roles, nil
}

func (s *RoleService) Count(ctx context.Context) (int, error) {
	return s.roles.Count(ctx)
}

func (s *RoleService) EnsureDefaults(ctx context.Context) error {
	for _, name := range model.DefaultRoles {
		if _, err := s.roles.EnsureRole(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// ResolveUser accepts a user id or an email address.
func (s *RoleService) ResolveUser(ctx context.Context, ref string) (model.User, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.User{}, apierror.BadRequest("user is required", "")
	}

	user, err := s.users.FindByID(ctx, ref)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, err
	}

	return s.users.FindByEmail(ctx, ref)
}

func normalizeRoleName(role string) (string, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return "", apierror.BadRequest("role is required", "")
	}
	return role, nil
}

// Grant assigns role to the referenced user. With exclusive set, every other
// holder of the role loses it.
func (s *RoleService) Grant(ctx context.Context, actor model.AuditActor, ref string, role string, exclusive bool) (RoleChange, error) {
	role, err := normalizeRoleName(role)
	if err != nil {
		return RoleChange{}, err
	}

	user, err := s.ResolveUser(ctx, ref)
	if err != nil {
		return RoleChange{}, err
	}

	change := RoleChange{UserID: user.ID, Email: user.Email, Role: role}

	change.Changed, err = s.grant(ctx, user.ID, role)
	if err != nil {
		s.audit.Log(ctx, model.AuditActionRoleGrant, actor, "failure", "user:"+user.ID, nil, change, err.Error())
		return RoleChange{}, err
	}

	if exclusive {
		change.RevokedFor, err = s.roles.RevokeOthers(ctx, role, user.ID)
		if err != nil {
			s.audit.Log(ctx, model.AuditActionRoleGrant, actor, "failure", "user:"+user.ID, nil, change, err.Error())
			return RoleChange{}, err
		}
	}

	s.audit.Log(ctx, model.AuditActionRoleGrant, actor, "success", "user:"+user.ID, nil, change, "")
	return change, nil
}

func (s *RoleService) Revoke(ctx context.Context, actor model.AuditActor, ref string, role string) (RoleChange, error) {
	role, err := normalizeRoleName(role)
	if err != nil {
		return RoleChange{}, err
	}

	user, err := s.ResolveUser(ctx, ref)
	if err != nil {
		return RoleChange{}, err
	}

	change := RoleChange{UserID: user.ID, Email: user.Email, Role: role}
	change.Changed, err = s.roles.Revoke(ctx, user.ID, role)
	if err != nil {
		s.audit.Log(ctx, model.AuditActionRoleRevoke, actor, "failure", "user:"+user.ID, change, nil, err.Error())
		return RoleChange{}, err
	}

	s.audit.Log(ctx, model.AuditActionRoleRevoke, actor, "success", "user:"+user.ID, change, nil, "")
	return change, nil
}

// PromoteAdminEmail grants admin to the configured operator account when it
// exists. A missing account is not an error: it is promoted on a later start.
func (s *RoleService) PromoteAdminEmail(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return nil
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, model.ErrUserNotFound) {
		slog.Info("admin email has no account yet", "email", email)
		return nil
	}
	if err != nil {
		return fmt.Errorf("find admin user: %w", err)
	}

	granted, err := s.grant(ctx, user.ID, model.RoleAdmin)
	if err != nil {
		return err
	}
	if granted {
		slog.Info("admin role granted", "email", email)
		s.audit.Log(ctx, model.AuditActionRoleGrant, model.AuditActor{Email: "system"}, "success", "user:"+user.ID, nil,
			RoleChange{UserID: user.ID, Email: user.Email, Role: model.RoleAdmin, Changed: true}, "")
	}
	return nil
}

func (s *RoleService) grant(ctx context.Context, userID string, role string) (bool, error) {
	return s.roles.Grant(ctx, userID, role)
}
