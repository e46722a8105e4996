package repo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/taskhub_auth/internal/db"
	"github.com/Skotchmaster/taskhub_auth/internal/models"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	ctx := context.Background()
	gdb, err := db.Open(ctx, "sqlite", "file::memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx, gdb))
	t.Cleanup(func() { _ = db.Close(gdb) })
	return gdb
}

func newUser(username string) *models.User {
	return &models.User{
		Username:     username,
		Email:        username + "@x.com",
		PasswordHash: "hash",
		FirstName:    "First",
		LastName:     "Last",
		Active:       true,
	}
}

func TestUserRepo_CreateAndFind(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	users := &UserRepo{DB: newTestDB(t)}

	u := newUser("alice")
	require.NoError(t, users.Create(ctx, u))
	assert.NotEqual(t, uuid.Nil, u.ID)
	assert.Equal(t, models.RoleUser, u.Role)

	ok, err := users.ExistsByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = users.ExistsByEmail(ctx, "alice@x.com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = users.ExistsByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	byName, err := users.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	byID, err := users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@x.com", byID.Email)

	_, err = users.FindByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = users.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepo_StoreRejectsDuplicates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	users := &UserRepo{DB: newTestDB(t)}
	require.NoError(t, users.Create(ctx, newUser("alice")))

	sameName := newUser("alice")
	sameName.Email = "other@x.com"
	assert.ErrorIs(t, users.Create(ctx, sameName), ErrDuplicate)

	sameEmail := newUser("alice2")
	sameEmail.Email = "alice@x.com"
	assert.ErrorIs(t, users.Create(ctx, sameEmail), ErrDuplicate)

	bob := newUser("bob")
	require.NoError(t, users.Create(ctx, bob))
	bob.Username = "alice"
	assert.ErrorIs(t, users.Save(ctx, bob), ErrDuplicate)
}

func TestUserRepo_TouchLastLoginAndDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	users := &UserRepo{DB: newTestDB(t)}
	u := newUser("carol")
	require.NoError(t, users.Create(ctx, u))

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, users.TouchLastLogin(ctx, u.ID, at))

	got, err := users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLogin)
	assert.True(t, at.Equal(*got.LastLogin))

	require.NoError(t, users.Delete(ctx, u.ID))
	assert.ErrorIs(t, users.Delete(ctx, u.ID), ErrNotFound)
	assert.ErrorIs(t, users.TouchLastLogin(ctx, u.ID, at), ErrNotFound)
}

func TestUserRepo_ListAndSearch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	users := &UserRepo{DB: newTestDB(t)}
	for _, name := range []string{"alice", "bob", "albert"} {
		require.NoError(t, users.Create(ctx, newUser(name)))
	}

	items, total, err := users.List(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, items, 2)

	found, total, err := users.Search(ctx, "AL", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, found, 2)

	ids := []uuid.UUID{found[0].ID, found[1].ID}
	byIDs, err := users.FindByIDs(ctx, ids)
	require.NoError(t, err)
	assert.Len(t, byIDs, 2)
}

func newTestStore(t *testing.T, ttl time.Duration) (*RefreshStore, *UserRepo, *fakeClock) {
	t.Helper()
	gdb := newTestDB(t)
	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewRefreshStore(gdb, ttl)
	store.Now = clk.Now
	return store, &UserRepo{DB: gdb}, clk
}

func TestRefreshStore_CreateFind(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, users, clk := newTestStore(t, time.Hour)
	u := newUser("alice")
	require.NoError(t, users.Create(ctx, u))

	token, rec, err := store.Create(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, token, 2*refreshTokenBytes)
	assert.NotEqual(t, token, rec.TokenHash)
	assert.True(t, clk.now.Add(time.Hour).Equal(rec.ExpiresAt))

	other, _, err := store.Create(ctx, u.ID)
	require.NoError(t, err)
	assert.NotEqual(t, token, other)

	got, ok, err := store.FindByToken(ctx, token)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, u.ID, got.UserID)

	_, ok, err = store.FindByToken(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = store.FindByToken(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := store.CountByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestRefreshStore_VerifyExpiration_DeletesExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, users, clk := newTestStore(t, time.Hour)
	u := newUser("alice")
	require.NoError(t, users.Create(ctx, u))

	token, rec, err := store.Create(ctx, u.ID)
	require.NoError(t, err)

	clk.now = clk.now.Add(59 * time.Minute)
	same, err := store.VerifyExpiration(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, rec, same)

	clk.now = clk.now.Add(time.Minute)
	_, err = store.VerifyExpiration(ctx, rec)
	assert.ErrorIs(t, err, ErrExpiredRefreshToken)

	_, ok, err := store.FindByToken(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok, "expired token must be removed on verification")
}

func TestRefreshStore_DeleteByUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, users, _ := newTestStore(t, time.Hour)
	alice, bob := newUser("alice"), newUser("bob")
	require.NoError(t, users.Create(ctx, alice))
	require.NoError(t, users.Create(ctx, bob))

	for i := 0; i < 3; i++ {
		_, _, err := store.Create(ctx, alice.ID)
		require.NoError(t, err)
	}
	bobToken, _, err := store.Create(ctx, bob.ID)
	require.NoError(t, err)

	n, err := store.DeleteByUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = store.DeleteByUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, ok, err := store.FindByToken(ctx, bobToken)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRefreshStore_SweepExpired_Idempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store, users, clk := newTestStore(t, time.Hour)
	u := newUser("alice")
	require.NoError(t, users.Create(ctx, u))

	_, _, err := store.Create(ctx, u.ID)
	require.NoError(t, err)
	clk.now = clk.now.Add(30 * time.Minute)
	fresh, _, err := store.Create(ctx, u.ID)
	require.NoError(t, err)

	sweepAt := clk.now.Add(45 * time.Minute)
	n, err := store.SweepExpired(ctx, sweepAt)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = store.SweepExpired(ctx, sweepAt)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, ok, err := store.FindByToken(ctx, fresh)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSha256Hex(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", Sha256Hex("hello"))
}
