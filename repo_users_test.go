package accounts_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	accounts "github.com/goliatone/go-accounts"
)

func TestUsersCreateAndLookup(t *testing.T) {
	ctx := context.Background()
	users := accounts.NewUsersRepository(newTestDB(t))

	user, err := accounts.CreateUser(ctx, users, "  Ada@EXAMPLE.com ", "correct horse", accounts.WithFullName("Ada Lovelace"))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "Ada@example.com", user.Email)
	assert.Equal(t, accounts.RoleMember, user.Role)
	assert.True(t, user.Active)
	assert.False(t, user.Verified)

	tests := []struct {
		name       string
		identifier string
		wantErr    bool
	}{
		{name: "by email", identifier: "Ada@example.com"},
		{name: "domain case is ignored", identifier: "Ada@Example.COM"},
		{name: "by id", identifier: user.ID.String()},
		{name: "local part is case sensitive", identifier: "ada@example.com", wantErr: true},
		{name: "blank", identifier: "  ", wantErr: true},
		{name: "unknown id", identifier: uuid.NewString(), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := users.GetByIdentifier(ctx, tt.identifier)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, accounts.IsNotFound(err))
				assert.Equal(t, accounts.CodeNotFound, accounts.ErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, user.ID, found.ID)
			assert.Equal(t, "Ada Lovelace", found.FullName)
		})
	}
}

func TestUsersCreateEmailTaken(t *testing.T) {
	ctx := context.Background()
	users := accounts.NewUsersRepository(newTestDB(t))

	_, err := accounts.CreateUser(ctx, users, "grace@example.com", "correct horse")
	require.NoError(t, err)

	_, err = accounts.CreateUser(ctx, users, "grace@EXAMPLE.com", "another password")
	require.Error(t, err)
	assert.ErrorIs(t, err, accounts.ErrEmailTaken)
	assert.Equal(t, accounts.CodeEmailTaken, accounts.ErrorCode(err))
}

func TestUsersUpdates(t *testing.T) {
	ctx := context.Background()
	users := accounts.NewUsersRepository(newTestDB(t))

	user, err := accounts.CreateUser(ctx, users, "linus@example.com", "correct horse")
	require.NoError(t, err)

	require.NoError(t, users.SetVerified(ctx, user.ID, true))
	require.NoError(t, users.SetActive(ctx, user.ID, false))
	require.NoError(t, users.SetRole(ctx, user.ID, accounts.RoleAdmin))

	hash, err := accounts.HashPassword("a brand new password")
	require.NoError(t, err)
	require.NoError(t, users.SetPassword(ctx, user.ID, hash))

	found, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, found.Verified)
	assert.False(t, found.Active)
	assert.Equal(t, accounts.RoleAdmin, found.Role)
	assert.NoError(t, accounts.ComparePasswordAndHash("a brand new password", found.PasswordHash))

	err = users.SetRole(ctx, user.ID, accounts.UserRole("emperor"))
	assert.Equal(t, accounts.CodeValidationFailed, accounts.ErrorCode(err))

	err = users.SetActive(ctx, uuid.New(), true)
	assert.True(t, accounts.IsNotFound(err))
}

func TestUsersTrackLogins(t *testing.T) {
	ctx := context.Background()
	users := accounts.NewUsersRepository(newTestDB(t))

	user, err := accounts.CreateUser(ctx, users, "tracked@example.com", "correct horse")
	require.NoError(t, err)

	policy := accounts.DefaultLockoutPolicy()
	require.NoError(t, users.TrackAttemptedLogin(ctx, user, policy, time.Now()))
	require.NoError(t, users.TrackAttemptedLogin(ctx, user, policy, time.Now()))
	assert.Equal(t, 2, user.LoginAttempts)
	require.NotNil(t, user.LoginAttemptAt)

	found, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, found.LoginAttempts)

	before := time.Now().Add(-time.Second)
	require.NoError(t, users.TrackSuccessfulLogin(ctx, user))
	assert.Zero(t, user.LoginAttempts)
	assert.Nil(t, user.LoginAttemptAt)
	require.NotNil(t, user.LastLogin)
	assert.True(t, user.LastLogin.After(before))

	found, err = users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, found.LoginAttempts)
	assert.Nil(t, found.LoginAttemptAt)
}

func TestUsersTrackAttemptedLoginLockout(t *testing.T) {
	ctx := context.Background()
	users := accounts.NewUsersRepository(newTestDB(t))
	policy := accounts.LockoutPolicy{MaxAttempts: 3, CoolDown: time.Hour}

	user, err := accounts.CreateUser(ctx, users, "locked@example.com", "correct horse")
	require.NoError(t, err)

	now := time.Now()
	for i := 0; i < policy.MaxAttempts; i++ {
		require.NoError(t, users.TrackAttemptedLogin(ctx, user, policy, now))
	}
	assert.Equal(t, 3, user.LoginAttempts)

	err = users.TrackAttemptedLogin(ctx, user, policy, now.Add(time.Minute))
	assert.ErrorIs(t, err, accounts.ErrTooManyLoginAttempts)
	assert.Equal(t, accounts.CodeTooManyLoginAttempts, accounts.ErrorCode(err))

	found, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, found.LoginAttempts)
	require.NotNil(t, found.LoginAttemptAt)
	assert.WithinDuration(t, now, *found.LoginAttemptAt, time.Second)

	later := now.Add(policy.CoolDown + time.Minute)
	require.NoError(t, users.TrackAttemptedLogin(ctx, found, policy, later))
	assert.Equal(t, 1, found.LoginAttempts)

	disabled := accounts.LockoutPolicy{CoolDown: time.Hour}
	for i := 0; i < 5; i++ {
		require.NoError(t, users.TrackAttemptedLogin(ctx, found, disabled, later))
	}
	assert.Equal(t, 6, found.LoginAttempts)
}

func TestUserProviderConcurrentGuesses(t *testing.T) {
	ctx := context.Background()
	users := accounts.NewUsersRepository(newTestDB(t))
	provider := accounts.NewUserProvider(users)

	_, err := accounts.CreateUser(ctx, users, "target@example.com", "correct horse")
	require.NoError(t, err)

	const guesses = 20
	codes := make(chan string, guesses)

	var wg sync.WaitGroup
	for i := 0; i < guesses; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := provider.VerifyIdentity(ctx, "target@example.com", "wrong horse")
			codes <- accounts.ErrorCode(err)
		}()
	}
	wg.Wait()
	close(codes)

	counted := map[string]int{}
	for code := range codes {
		counted[code]++
	}

	assert.Equal(t, accounts.MaxLoginAttempts, counted[accounts.CodeInvalidCredentials])
	assert.Equal(t, guesses-accounts.MaxLoginAttempts, counted[accounts.CodeTooManyLoginAttempts])

	found, err := users.GetByIdentifier(ctx, "target@example.com")
	require.NoError(t, err)
	assert.Equal(t, accounts.MaxLoginAttempts, found.LoginAttempts)

	_, err = provider.VerifyIdentity(ctx, "target@example.com", "correct horse")
	assert.Equal(t, accounts.CodeTooManyLoginAttempts, accounts.ErrorCode(err))
}

func TestUsersCountAndList(t *testing.T) {
	ctx := context.Background()
	users := accounts.NewUsersRepository(newTestDB(t))

	count, err := users.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	for _, name := range []string{"carol", "alice", "bob"} {
		_, err := accounts.CreateUser(ctx, users, fmt.Sprintf("%s@example.com", name), "correct horse")
		require.NoError(t, err)
	}

	count, err = users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	page, err := users.List(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "bob@example.com", page[0].Email)
	assert.Equal(t, "carol@example.com", page[1].Email)

	empty, err := users.List(ctx, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPasswordResetsLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := accounts.NewRepositoryManager(db)
	require.NoError(t, repo.Validate())

	user, err := accounts.CreateUser(ctx, repo.Users(), "reset@example.com", "correct horse")
	require.NoError(t, err)

	old := time.Now().Add(-48 * time.Hour)
	stale, err := repo.PasswordResets().CreateTx(ctx, db, &accounts.PasswordReset{
		UserID:    user.ID,
		Email:     user.Email,
		CreatedAt: &old,
	})
	require.NoError(t, err)
	assert.Equal(t, accounts.ResetRequestedStatus, stale.Status)

	fresh, err := repo.PasswordResets().CreateTx(ctx, db, &accounts.PasswordReset{UserID: user.ID, Email: user.Email})
	require.NoError(t, err)

	expired, err := repo.PasswordResets().ExpireStaleTx(ctx, db, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	latest, err := repo.PasswordResets().LatestForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, latest.ID)

	closed, err := repo.PasswordResets().MarkChangedTx(ctx, db, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	latest, err = repo.PasswordResets().LatestForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, accounts.ResetChangedStatus, latest.Status)
	assert.NotNil(t, latest.ResetedAt)

	_, err = repo.PasswordResets().LatestForUser(ctx, uuid.New())
	assert.True(t, accounts.IsNotFound(err))
}

func TestUserPageSource(t *testing.T) {
	ctx := context.Background()
	users := accounts.NewUsersRepository(newTestDB(t))

	for i := 0; i < 5; i++ {
		_, err := accounts.CreateUser(ctx, users, fmt.Sprintf("user%d@example.com", i), "correct horse")
		require.NoError(t, err)
	}

	source := accounts.NewUserPageSource(users)

	count, err := source.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	items, err := source.Slice(ctx, 4, 2)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "user4@example.com", items[0].Email)
}
