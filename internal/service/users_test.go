package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/taskhub_auth/internal/events"
	"github.com/Skotchmaster/taskhub_auth/internal/models"
)

type fakeIndex struct {
	ids     []uuid.UUID
	err     error
	indexed []string
	deleted []uuid.UUID
}

func (f *fakeIndex) IndexUser(_ context.Context, u *models.User) error {
	f.indexed = append(f.indexed, u.Username)
	return nil
}

func (f *fakeIndex) DeleteUser(_ context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeIndex) SearchUsers(context.Context, string, int, int) (int64, []uuid.UUID, error) {
	if f.err != nil {
		return 0, nil, f.err
	}
	return int64(len(f.ids)), f.ids, nil
}

func ptr[T any](v T) *T { return &v }

func TestListUsers_DirectoryAndFallbackSearch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	for _, name := range []string{"alice", "albert", "bob"} {
		env.register(t, name)
	}

	all, total, err := env.svc.ListUsers(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, all, 3)

	page, total, err := env.svc.ListUsers(ctx, "", -5, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 1)

	found, total, err := env.svc.ListUsers(ctx, "al", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, found, 2)
}

func TestListUsers_UsesIndexInRelevanceOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	alice := env.register(t, "alice").User
	bob := env.register(t, "bob").User

	idx := &fakeIndex{ids: []uuid.UUID{bob.ID, uuid.New(), alice.ID}}
	env.svc.Index = idx

	got, total, err := env.svc.ListUsers(ctx, "anything", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, got, 2)
	assert.Equal(t, "bob", got[0].Username)
	assert.Equal(t, "alice", got[1].Username)

	idx.err = errors.New("cluster red")
	got, total, err = env.svc.ListUsers(ctx, "bo", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, got, 1)
	assert.Equal(t, "bob", got[0].Username)
}

func TestUpdateUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	idx := &fakeIndex{}
	env.svc.Index = idx

	alice := env.register(t, "alice").User
	env.register(t, "bob")

	_, err := env.svc.UpdateUser(ctx, alice.ID, UpdateInput{Username: ptr("bob")})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = env.svc.UpdateUser(ctx, alice.ID, UpdateInput{Email: ptr("bob@x.com")})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = env.svc.UpdateUser(ctx, alice.ID, UpdateInput{Role: ptr(models.Role("ROOT"))})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.svc.UpdateUser(ctx, uuid.New(), UpdateInput{})
	assert.ErrorIs(t, err, ErrUserNotFound)

	updated, err := env.svc.UpdateUser(ctx, alice.ID, UpdateInput{
		Email:      ptr("alice@corp.com"),
		Password:   ptr("new-pw"),
		Role:       ptr(models.RoleAdmin),
		Department: ptr("R&D"),
		Avatar:     ptr("https://img/alice.png"),
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@corp.com", updated.Email)
	assert.Equal(t, models.RoleAdmin, updated.Role)
	require.NotNil(t, updated.Avatar)

	_, err = env.svc.Login(ctx, "alice", "pw123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	login, err := env.svc.Login(ctx, "alice", "new-pw")
	require.NoError(t, err)

	claims, err := env.issuer.Validate(login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	same, err := env.svc.UpdateUser(ctx, alice.ID, UpdateInput{Password: ptr("")})
	require.NoError(t, err)
	assert.Equal(t, updated.PasswordHash, same.PasswordHash, "empty password keeps the digest")

	assert.Contains(t, env.pub.types(), events.UserUpdated)
	assert.Contains(t, idx.indexed, "alice")
}

func TestDeleteUser_Unindexes(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	idx := &fakeIndex{}
	env.svc.Index = idx
	alice := env.register(t, "alice").User

	require.NoError(t, env.svc.DeleteUser(context.Background(), alice.ID))
	assert.Equal(t, []uuid.UUID{alice.ID}, idx.deleted)
}

func TestProvisionAdmin_Idempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	seed := AdminSeed{Username: "admin", Email: "admin@x.com", Password: "s3cret", FirstName: "Ada"}

	created, err := env.svc.ProvisionAdmin(ctx, seed)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = env.svc.ProvisionAdmin(ctx, seed)
	require.NoError(t, err)
	assert.False(t, created)

	seed.Username = "admin2"
	created, err = env.svc.ProvisionAdmin(ctx, seed)
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.False(t, created)

	_, total, err := env.svc.ListUsers(ctx, "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	login, err := env.svc.Login(ctx, "admin", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, login.User.Role)

	_, err = env.svc.ProvisionAdmin(ctx, AdminSeed{Username: "x", Email: "x@x.com"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestProvisionAdmin_RefusesNonAdminHolder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	env.register(t, "admin")

	created, err := env.svc.ProvisionAdmin(ctx, AdminSeed{Username: "admin", Email: "root@x.com", Password: "s3cret"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
	assert.False(t, created)

	user, err := env.users.FindByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, user.Role, "the squatted account is left untouched")

	created, err = env.svc.ProvisionAdmin(ctx, AdminSeed{Username: "root", Email: "admin@x.com", Password: "s3cret"})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.False(t, created)
}

func TestUpdateUser_RenameRevokesSessions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	env := newTestEnv(t)
	reg := env.register(t, "alice")

	renamed, err := env.svc.UpdateUser(ctx, reg.User.ID, UpdateInput{Username: ptr("alicia")})
	require.NoError(t, err)
	assert.Equal(t, "alicia", renamed.Username)

	_, err = env.svc.Refresh(ctx, reg.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	n, err := env.store.CountByUser(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	login, err := env.svc.Login(ctx, "alicia", "pw123")
	require.NoError(t, err)
	_, err = env.svc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)

	kept, err := env.svc.UpdateUser(ctx, reg.User.ID, UpdateInput{Username: ptr("alicia"), Department: ptr("Ops")})
	require.NoError(t, err)
	assert.Equal(t, "Ops", kept.Department)
	_, err = env.svc.Refresh(ctx, login.RefreshToken)
	assert.NoError(t, err, "an unchanged username keeps sessions")
}
