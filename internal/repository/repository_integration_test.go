//go:build integration

package repository

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anything-world/internal/database"
	"anything-world/internal/model"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	require.NoError(t, database.RunMigrations(url))

	db, err := database.New(context.Background(), url, 4, 1)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return db
}

func createUser(t *testing.T, users *UserRepository) model.User {
	t.Helper()

	email := "it-" + uuid.NewString() + "@example.com"
	u, err := users.Create(context.Background(), model.User{Email: email})
	require.NoError(t, err)
	return u
}

func TestRoleGrantIsVisibleImmediately(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(db.Pool)
	roles := NewRoleRepository(db.Pool)

	u := createUser(t, users)

	ok, err := roles.HasRole(ctx, u.ID, model.RoleCreator)
	require.NoError(t, err)
	assert.False(t, ok)

	granted, err := roles.Grant(ctx, u.ID, model.RoleCreator)
	require.NoError(t, err)
	assert.True(t, granted)

	ok, err = roles.HasRole(ctx, u.ID, model.RoleCreator)
	require.NoError(t, err)
	assert.True(t, ok)

	granted, err = roles.Grant(ctx, u.ID, model.RoleCreator)
	require.NoError(t, err)
	assert.False(t, granted, "duplicate grants are absorbed by the primary key")

	revoked, err := roles.Revoke(ctx, u.ID, model.RoleCreator)
	require.NoError(t, err)
	assert.True(t, revoked)

	ok, err = roles.HasRole(ctx, u.ID, model.RoleCreator)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnknownRoleIsNotHeld(t *testing.T) {
	db := newTestDB(t)
	roles := NewRoleRepository(db.Pool)

	ok, err := roles.HasRole(context.Background(), uuid.NewString(), "no-such-role")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOneTimeCodeIsConsumedOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(db.Pool)
	codes := NewCodeRepository(db.Pool)

	u := createUser(t, users)
	hash := "it-" + uuid.NewString()
	require.NoError(t, codes.Store(ctx, hash, u.ID, model.CodePurposeMagicLink, time.Now().Add(time.Hour)))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := codes.Consume(ctx, hash); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)

	_, err := codes.Consume(ctx, hash)
	assert.ErrorIs(t, err, model.ErrCodeNotFound)
}

func TestExpiredCodeIsRejected(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(db.Pool)
	codes := NewCodeRepository(db.Pool)

	u := createUser(t, users)
	hash := "it-" + uuid.NewString()
	require.NoError(t, codes.Store(ctx, hash, u.ID, model.CodePurposeRecovery, time.Now().Add(-time.Minute)))

	_, err := codes.Consume(ctx, hash)
	assert.ErrorIs(t, err, model.ErrCodeNotFound)

	removed, err := codes.CleanExpired(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, removed, int64(1))
}

func TestNewsletterUpsertRevivesSubscription(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	subs := NewNewsletterRepository(db.Pool)

	email := "it-" + uuid.NewString() + "@example.com"
	_, err := subs.Upsert(ctx, model.Subscriber{Email: email, Source: "site_form"})
	require.NoError(t, err)
	require.NoError(t, subs.Unsubscribe(ctx, email))

	out, err := subs.Upsert(ctx, model.Subscriber{Email: email, Source: "footer", Tags: []string{"beta"}})
	require.NoError(t, err)
	assert.Equal(t, model.SubscriberStatusSubscribed, out.Status)
	assert.Nil(t, out.UnsubscribedAt)
	assert.Equal(t, []string{"beta"}, out.Tags)

	assert.ErrorIs(t, subs.Unsubscribe(ctx, "missing-"+email), model.ErrSubscriberNotFound)
}

func TestUserIdentifierLookup(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(db.Pool)

	username := "it_" + uuid.NewString()[:8]
	email := username + "@example.com"
	created, err := users.Create(ctx, model.User{Email: email, Username: &username})
	require.NoError(t, err)

	byName, err := users.FindByIdentifier(ctx, username)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)

	_, err = users.Create(ctx, model.User{Email: email})
	assert.ErrorIs(t, err, model.ErrUserAlreadyExists)

	_, err = users.FindByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestAuditQueryFiltersAndPages(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	audit := NewAuditRepository(db.Pool)

	actorID := uuid.NewString()
	for i := range 3 {
		status := "success"
		if i == 2 {
			status = "failure"
		}
		require.NoError(t, audit.Log(ctx, model.AuditEntry{
			Action:     model.AuditActionRoleGrant,
			OccurredAt: time.Now().UTC().Add(time.Duration(i) * time.Second).Format(time.RFC3339Nano),
			Actor:      model.AuditActor{UserID: actorID},
			Status:     status,
			After:      map[string]any{"role": "creator"},
		}))
	}

	items, meta, err := audit.Query(ctx, model.AuditQuery{ActorID: actorID, Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 3, meta.Total)
	assert.Equal(t, 2, meta.TotalPages)
	assert.Equal(t, "failure", items[0].Status, "newest first")
	assert.Equal(t, map[string]any{"role": "creator"}, items[0].After)

	items, meta, err = audit.Query(ctx, model.AuditQuery{ActorID: actorID, Status: "success", Page: 5, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 2, meta.Total)
}
