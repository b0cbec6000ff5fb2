package accounts_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	accounts "github.com/goliatone/go-accounts"
)

func newProviderUser(t *testing.T, password string) *accounts.User {
	t.Helper()
	hash, err := accounts.HashPassword(password)
	require.NoError(t, err)
	return &accounts.User{
		ID:           uuid.New(),
		Email:        "test@example.com",
		FullName:     "Test User",
		PasswordHash: hash,
		Role:         accounts.RoleAdmin,
		Active:       true,
	}
}

func TestUserProviderVerifyIdentity(t *testing.T) {
	ctx := context.Background()

	t.Run("Successful verification", func(t *testing.T) {
		tracker := new(MockUserTracker)
		provider := accounts.NewUserProvider(tracker)
		user := newProviderUser(t, "password123")

		tracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()
		tracker.On("TrackAttemptedLogin", ctx, user, accounts.DefaultLockoutPolicy(), mock.Anything).Return(nil).Once()
		tracker.On("TrackSuccessfulLogin", ctx, user).Return(nil).Once()

		identity, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		require.NoError(t, err)
		assert.Equal(t, user.ID.String(), identity.ID())
		assert.Equal(t, "test@example.com", identity.Email())
		assert.Equal(t, "Test User", identity.Name())
		assert.Equal(t, string(accounts.RoleAdmin), identity.Role())

		tracker.AssertExpectations(t)
	})

	t.Run("Invalid password", func(t *testing.T) {
		tracker := new(MockUserTracker)
		provider := accounts.NewUserProvider(tracker)
		user := newProviderUser(t, "correct_password")

		tracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()
		tracker.On("TrackAttemptedLogin", ctx, user, accounts.DefaultLockoutPolicy(), mock.Anything).Return(nil).Once()

		identity, err := provider.VerifyIdentity(ctx, "test@example.com", "wrong_password")

		assert.Nil(t, identity)
		assert.ErrorIs(t, err, accounts.ErrMismatchedHashAndPassword)
		assert.Equal(t, accounts.CodeInvalidCredentials, accounts.ErrorCode(err))

		tracker.AssertExpectations(t)
	})

	t.Run("Unknown user looks like a bad password", func(t *testing.T) {
		tracker := new(MockUserTracker)
		provider := accounts.NewUserProvider(tracker)

		tracker.On("GetByIdentifier", ctx, "missing@example.com").Return(nil, accounts.ErrNotFound).Once()

		identity, err := provider.VerifyIdentity(ctx, "missing@example.com", "password123")

		assert.Nil(t, identity)
		assert.Equal(t, accounts.CodeInvalidCredentials, accounts.ErrorCode(err))
		tracker.AssertNotCalled(t, "TrackAttemptedLogin", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Store failure", func(t *testing.T) {
		tracker := new(MockUserTracker)
		provider := accounts.NewUserProvider(tracker)

		tracker.On("GetByIdentifier", ctx, "test@example.com").Return(nil, errors.New("connection refused")).Once()

		_, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		assert.Equal(t, accounts.CodeInternal, accounts.ErrorCode(err))
	})

	t.Run("Locked after too many attempts", func(t *testing.T) {
		tracker := new(MockUserTracker)
		provider := accounts.NewUserProvider(tracker)
		user := newProviderUser(t, "password123")
		recent := time.Now().Add(-time.Minute)
		user.LoginAttempts = accounts.MaxLoginAttempts
		user.LoginAttemptAt = &recent

		tracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()

		_, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		assert.ErrorIs(t, err, accounts.ErrTooManyLoginAttempts)
		assert.Equal(t, accounts.CodeTooManyLoginAttempts, accounts.ErrorCode(err))
		tracker.AssertExpectations(t)
	})

	t.Run("Store refuses the attempt once locked", func(t *testing.T) {
		tracker := new(MockUserTracker)
		provider := accounts.NewUserProvider(tracker)
		user := newProviderUser(t, "password123")
		locked := oops.Code(accounts.CodeTooManyLoginAttempts).Wrap(accounts.ErrTooManyLoginAttempts)

		tracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()
		tracker.On("TrackAttemptedLogin", ctx, user, accounts.DefaultLockoutPolicy(), mock.Anything).Return(locked).Once()

		_, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		assert.ErrorIs(t, err, accounts.ErrTooManyLoginAttempts)
		assert.Equal(t, accounts.CodeTooManyLoginAttempts, accounts.ErrorCode(err))
		tracker.AssertNotCalled(t, "TrackSuccessfulLogin", mock.Anything, mock.Anything)
	})

	t.Run("Attempts reset after the cool down period", func(t *testing.T) {
		tracker := new(MockUserTracker)
		provider := accounts.NewUserProvider(tracker)
		user := newProviderUser(t, "password123")
		old := time.Now().Add(-48 * time.Hour)
		user.LoginAttempts = accounts.MaxLoginAttempts
		user.LoginAttemptAt = &old

		tracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()
		tracker.On("TrackAttemptedLogin", ctx, user, accounts.DefaultLockoutPolicy(), mock.Anything).Return(nil).Once()
		tracker.On("TrackSuccessfulLogin", ctx, user).Return(nil).Once()

		identity, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		require.NoError(t, err)
		assert.NotNil(t, identity)
		tracker.AssertExpectations(t)
	})

	t.Run("Custom lockout policy", func(t *testing.T) {
		tracker := new(MockUserTracker)
		provider := accounts.NewUserProvider(tracker).
			WithLockoutPolicy(accounts.LockoutPolicy{MaxAttempts: 1, CoolDown: time.Hour})
		user := newProviderUser(t, "password123")
		recent := time.Now().Add(-time.Minute)
		user.LoginAttempts = 1
		user.LoginAttemptAt = &recent

		tracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()

		_, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		assert.Equal(t, accounts.CodeTooManyLoginAttempts, accounts.ErrorCode(err))
		tracker.AssertExpectations(t)
	})

	t.Run("Inactive user", func(t *testing.T) {
		tracker := new(MockUserTracker)
		provider := accounts.NewUserProvider(tracker)
		user := newProviderUser(t, "password123")
		user.Active = false

		tracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()
		tracker.On("TrackAttemptedLogin", ctx, user, accounts.DefaultLockoutPolicy(), mock.Anything).Return(nil).Once()

		_, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		assert.ErrorIs(t, err, accounts.ErrUserInactive)
		assert.Equal(t, accounts.CodeUserInactive, accounts.ErrorCode(err))
		tracker.AssertNotCalled(t, "TrackSuccessfulLogin", mock.Anything, mock.Anything)
	})

	t.Run("Tracking failure does not fail the login", func(t *testing.T) {
		tracker := new(MockUserTracker)
		provider := accounts.NewUserProvider(tracker)
		user := newProviderUser(t, "password123")

		tracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()
		tracker.On("TrackAttemptedLogin", ctx, user, accounts.DefaultLockoutPolicy(), mock.Anything).Return(nil).Once()
		tracker.On("TrackSuccessfulLogin", ctx, user).Return(errors.New("disk full")).Once()

		identity, err := provider.VerifyIdentity(ctx, "test@example.com", "password123")

		require.NoError(t, err)
		assert.NotNil(t, identity)
	})
}

func TestUserProviderFindIdentityByIdentifier(t *testing.T) {
	ctx := context.Background()

	t.Run("Active user", func(t *testing.T) {
		tracker := new(MockUserTracker)
		provider := accounts.NewUserProvider(tracker)
		user := newProviderUser(t, "password123")

		tracker.On("GetByIdentifier", ctx, user.ID.String()).Return(user, nil).Once()

		identity, err := provider.FindIdentityByIdentifier(ctx, user.ID.String())

		require.NoError(t, err)
		holder, ok := identity.(interface{ User() *accounts.User })
		require.True(t, ok)
		assert.Same(t, user, holder.User())
	})

	t.Run("Custom validator", func(t *testing.T) {
		tracker := new(MockUserTracker)
		provider := accounts.NewUserProvider(tracker)
		provider.Validator = func(u *accounts.User) error {
			if !u.Verified {
				return errors.New("unverified")
			}
			return nil
		}
		user := newProviderUser(t, "password123")

		tracker.On("GetByIdentifier", ctx, "test@example.com").Return(user, nil).Once()

		_, err := provider.FindIdentityByIdentifier(ctx, "test@example.com")
		assert.EqualError(t, err, "unverified")
	})
}
