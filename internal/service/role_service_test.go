package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anything-world/internal/model"
)

func newRoleFixture() (*RoleService, *memoryUsers, *memoryRoles, *memoryAudit) {
	users := newMemoryUsers()
	roles := newMemoryRoles()
	audit := &memoryAudit{}
	return NewRoleService(roles, users, NewAuditService(audit)), users, roles, audit
}

func TestRoleGrantIsVisibleImmediately(t *testing.T) {
	t.Parallel()

	svc, users, _, _ := newRoleFixture()
	user := users.add(model.User{Email: "ada@example.com"})
	ctx := context.Background()

	ok, err := svc.HasRole(ctx, user.ID, model.RoleCreator)
	require.NoError(t, err)
	assert.False(t, ok)

	change, err := svc.Grant(ctx, model.AuditActor{}, "ada@example.com", "Creator", false)
	require.NoError(t, err)
	assert.True(t, change.Changed)
	assert.Equal(t, model.RoleCreator, change.Role)

	ok, err = svc.HasRole(ctx, user.ID, model.RoleCreator)
	require.NoError(t, err)
	assert.True(t, ok)

	again, err := svc.Grant(ctx, model.AuditActor{}, user.ID, model.RoleCreator, false)
	require.NoError(t, err)
	assert.False(t, again.Changed)
}

func TestRoleGrantExclusive(t *testing.T) {
	t.Parallel()

	svc, users, _, audit := newRoleFixture()
	first := users.add(model.User{Email: "first@example.com"})
	second := users.add(model.User{Email: "second@example.com"})
	ctx := context.Background()

	_, err := svc.Grant(ctx, model.AuditActor{}, first.ID, model.RoleAdmin, false)
	require.NoError(t, err)

	change, err := svc.Grant(ctx, model.AuditActor{}, second.Email, model.RoleAdmin, true)
	require.NoError(t, err)
	assert.EqualValues(t, 1, change.RevokedFor)

	ok, err := svc.HasRole(ctx, first.ID, model.RoleAdmin)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, []string{model.AuditActionRoleGrant + ":success", model.AuditActionRoleGrant + ":success"}, audit.actions())
}

func TestRoleRevokeAndErrors(t *testing.T) {
	t.Parallel()

	svc, users, _, _ := newRoleFixture()
	user := users.add(model.User{Email: "ada@example.com"})
	ctx := context.Background()

	_, err := svc.Grant(ctx, model.AuditActor{}, user.ID, model.RoleModerator, false)
	require.NoError(t, err)

	change, err := svc.Revoke(ctx, model.AuditActor{}, user.ID, model.RoleModerator)
	require.NoError(t, err)
	assert.True(t, change.Changed)

	_, err = svc.Grant(ctx, model.AuditActor{}, "ghost@example.com", model.RoleAdmin, false)
	assert.ErrorIs(t, err, model.ErrUserNotFound)

	_, err = svc.Grant(ctx, model.AuditActor{}, user.ID, " ", false)
	requireAPIStatus(t, err, http.StatusBadRequest)
}

func TestPromoteAdminEmail(t *testing.T) {
	t.Parallel()

	svc, users, _, _ := newRoleFixture()
	ctx := context.Background()

	require.NoError(t, svc.PromoteAdminEmail(ctx, "ops@example.com"))

	user := users.add(model.User{Email: "ops@example.com"})
	require.NoError(t, svc.PromoteAdminEmail(ctx, "OPS@example.com"))

	ok, err := svc.HasRole(ctx, user.ID, model.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnsureDefaults(t *testing.T) {
	t.Parallel()

	svc, _, roles, _ := newRoleFixture()
	require.NoError(t, svc.EnsureDefaults(context.Background()))

	count, err := roles.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(model.DefaultRoles), count)
}
