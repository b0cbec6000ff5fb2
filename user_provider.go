package accounts

import (
	"context"
	"errors"
	"time"
)

// UserTracker is a store we can use to retrieve users
type UserTracker interface {
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
	TrackAttemptedLogin(ctx context.Context, user *User, policy LockoutPolicy, now time.Time) error
	TrackSuccessfulLogin(ctx context.Context, user *User) error
}

// UserProvider handles users
type UserProvider struct {
	store     UserTracker
	Validator func(*User) error
	lockout   LockoutPolicy
	now       func() time.Time
	logger    Logger
}

// NewUserProvider will create a new UserProvider
func NewUserProvider(store UserTracker) *UserProvider {
	return &UserProvider{
		store:     store,
		logger:    defLogger{},
		Validator: defaultValidator,
		lockout:   DefaultLockoutPolicy(),
		now:       time.Now,
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	u.logger = normalizeLogger(l)
	return u
}

// WithLockoutPolicy replaces DefaultLockoutPolicy.
func (u *UserProvider) WithLockoutPolicy(policy LockoutPolicy) *UserProvider {
	u.lockout = policy
	return u
}

func (u *UserProvider) validate(user *User) error {
	if u.Validator != nil {
		return u.Validator(user)
	}
	return defaultValidator(user)
}

// VerifyIdentity will find the user, compare to the password, and return identity
func (u *UserProvider) VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error) {
	user, err := u.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if IsNotFound(err) {
			return nil, accountsError(CodeInvalidCredentials).Wrap(ErrMismatchedHashAndPassword)
		}
		return nil, internalError(err, "failed to retrieve user during verification")
	}

	// failures from before the cool down start a fresh count
	now := u.now()
	user.LoginAttempts = u.lockout.Attempts(user, now)

	if u.lockout.Locked(user, now) {
		return nil, accountsError(CodeTooManyLoginAttempts).
			With("user_id", user.ID.String()).
			Wrap(ErrTooManyLoginAttempts)
	}

	// the attempt is counted before the password check so concurrent
	// guesses share the same budget
	if err := u.store.TrackAttemptedLogin(ctx, user, u.lockout, now); err != nil {
		if errors.Is(err, ErrTooManyLoginAttempts) {
			return nil, err
		}
		return nil, internalError(err, "failed to track login attempt")
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return nil, accountsError(CodeInvalidCredentials).Wrap(ErrMismatchedHashAndPassword)
	}

	if err := u.validate(user); err != nil {
		return nil, err
	}

	if err := u.store.TrackSuccessfulLogin(ctx, user); err != nil {
		u.logger.Error("failed to track successful login: %v", err)
	}

	return NewIdentityFromUser(user), nil
}

func (u *UserProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	user, err := u.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if err := u.validate(user); err != nil {
		return nil, err
	}

	return NewIdentityFromUser(user), nil
}

func defaultValidator(u *User) error {
	if u == nil {
		return accountsError(CodeNotFound).Wrap(ErrIdentityNotFound)
	}

	if !u.Active {
		return accountsError(CodeUserInactive).
			With("user_id", u.ID.String()).
			Wrap(ErrUserInactive)
	}

	if !u.Role.IsValid() {
		return accountsError(CodeForbidden).
			With("role", u.Role).
			With("user_id", u.ID.String()).
			Errorf("user has an unknown or invalid role")
	}

	return nil
}

func markLoggedIn(user *User, at time.Time) {
	user.LastLogin = &at
	user.LoginAttempts = 0
	user.LoginAttemptAt = nil
}
